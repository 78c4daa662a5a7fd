package middleware

import (
	"github.com/gofiber/fiber/v2"

	"academia_backend/internals/constants"
	helper "academia_backend/internals/helpers"
)

func requireTenantRole(label string, roles []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := helper.GetTenantIDFromToken(c); err != nil {
			return helper.FromServiceError(c, err)
		}
		if !helper.HasRole(c, roles...) {
			return helper.JsonError(c, fiber.StatusForbidden, constants.RoleError(label))
		}
		return c.Next()
	}
}

// IsTenantAdmin requires a tenant-scoped token carrying admin (or platform owner).
func IsTenantAdmin() fiber.Handler {
	return requireTenantRole(constants.RoleAdmin, constants.AdminAndAbove)
}

// IsOwnerGlobal guards platform-level routes.
func IsOwnerGlobal() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !helper.HasRole(c, constants.OwnerOnly...) {
			return helper.JsonError(c, fiber.StatusForbidden, constants.RoleError(constants.RoleOwner))
		}
		return c.Next()
	}
}
