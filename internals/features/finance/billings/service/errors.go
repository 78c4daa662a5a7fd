package service

import (
	"fmt"
	"sort"
	"strings"

	"academia_backend/internals/features/finance/billings/repository"
)

// ErrAlreadySettled is returned when a settlement loses the race or repeats.
var ErrAlreadySettled = fmt.Errorf("charge already settled: %w", repository.ErrConflict)

// ValidationError is a rejected request; nothing was written.
type ValidationError struct {
	Fields map[string][]string
}

func newValidation(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {msg}}}
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) FieldErrors() map[string][]string { return e.Fields }
