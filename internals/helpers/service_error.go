package helper

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"academia_backend/internals/features/finance/billings/repository"
)

// Validate is the shared validator for request DTOs.
var Validate = validator.New()

// FieldErrorer is implemented by service validation errors.
type FieldErrorer interface {
	FieldErrors() map[string][]string
}

// FromServiceError maps service/repository errors onto the standard error shape.
func FromServiceError(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}

	var fe FieldErrorer
	if errors.As(err, &fe) {
		return JsonValidationError(c, fe.FieldErrors())
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return JsonValidatorError(c, ve)
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return JsonError(c, fiberErr.Code, fiberErr.Message)
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return JsonError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrForbidden):
		return JsonError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, repository.ErrConflict):
		return JsonError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrTransient):
		c.Set(fiber.HeaderRetryAfter, "5")
		return JsonError(c, fiber.StatusServiceUnavailable, "storage temporarily unavailable, retry later")
	}
	return JsonError(c, fiber.StatusInternalServerError, err.Error())
}

// JsonValidatorError renders validator.v10 failures as field errors.
func JsonValidatorError(c *fiber.Ctx, ve validator.ValidationErrors) error {
	out := make(map[string][]string, len(ve))
	for _, f := range ve {
		key := strings.ToLower(f.Field())
		msg := f.Tag()
		if p := f.Param(); p != "" {
			msg += "=" + p
		}
		out[key] = append(out[key], msg)
	}
	return JsonValidationError(c, out)
}
