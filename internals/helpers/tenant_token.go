package helper

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Locals populated by the tenant JWT middleware.
const (
	LocUserID   = "user_id"
	LocTenantID = "tenant_id"
	LocRoles    = "roles"
)

func uuidFromLocals(c *fiber.Ctx, key string) (uuid.UUID, error) {
	v := c.Locals(key)
	if v == nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, key+" missing from token")
	}

	var raw string
	switch t := v.(type) {
	case string:
		raw = t
	case uuid.UUID:
		return t, nil
	case []string:
		if len(t) > 0 {
			raw = t[0]
		}
	case []interface{}:
		if len(t) > 0 {
			raw, _ = t[0].(string)
		}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, key+" empty in token")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+key+" in token")
	}
	return id, nil
}

// GetTenantIDFromToken returns the gym the caller is scoped to.
func GetTenantIDFromToken(c *fiber.Ctx) (uuid.UUID, error) {
	return uuidFromLocals(c, LocTenantID)
}

func GetUserIDFromToken(c *fiber.Ctx) (uuid.UUID, error) {
	return uuidFromLocals(c, LocUserID)
}

// GetRolesFromToken returns lower-cased roles from the token.
func GetRolesFromToken(c *fiber.Ctx) []string {
	switch t := c.Locals(LocRoles).(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, it := range t {
			if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.ToLower(strings.TrimSpace(s)))
			}
		}
		return out
	case string:
		if strings.TrimSpace(t) != "" {
			return []string{strings.ToLower(strings.TrimSpace(t))}
		}
	}
	return nil
}

func HasRole(c *fiber.Ctx, roles ...string) bool {
	for _, have := range GetRolesFromToken(c) {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// ParseUUIDParam parses a path param as uuid or answers 400.
func ParseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Params(name)))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
