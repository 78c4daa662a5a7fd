package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	helper "academia_backend/internals/helpers"
)

type AuthJWTOpts struct {
	Secret              string
	AllowCookieFallback bool // use the access_token cookie when no Bearer header is sent
}

// AuthJWT verifies an HMAC token and hydrates user, tenant and roles into Locals.
func AuthJWT(o AuthJWTOpts) fiber.Handler {
	secret := strings.TrimSpace(o.Secret)
	if secret == "" {
		panic("AuthJWT: Secret is required")
	}

	return func(c *fiber.Ctx) error {
		raw := helper.GetRawAccessToken(c, o.AllowCookieFallback)
		if raw == "" {
			return helper.JsonError(c, fiber.StatusUnauthorized, "Unauthorized")
		}

		tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !tok.Valid {
			return helper.JsonError(c, fiber.StatusUnauthorized, "Invalid token")
		}
		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			return helper.JsonError(c, fiber.StatusUnauthorized, "Invalid token claims")
		}
		c.Locals("jwt_claims", claims)

		// user id: id > sub > user_id
		for _, k := range []string{"id", "sub", "user_id"} {
			if s := strClaim(claims, k); s != "" {
				c.Locals(helper.LocUserID, s)
				break
			}
		}

		if tid := strClaim(claims, "tenant_id"); tid != "" {
			if _, err := uuid.Parse(tid); err != nil {
				return helper.JsonError(c, fiber.StatusUnauthorized, "tenant_id is not a valid uuid")
			}
			c.Locals(helper.LocTenantID, tid)
		}

		roles := append(readStringSlice(claims["roles"]), readStringSlice(claims["roles_global"])...)
		c.Locals(helper.LocRoles, roles)

		return c.Next()
	}
}

func strClaim(m jwt.MapClaims, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// readStringSlice accepts []string, []any or a single string; values are lower-cased.
func readStringSlice(v any) []string {
	out := make([]string, 0)
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	switch t := v.(type) {
	case []string:
		for _, s := range t {
			add(s)
		}
	case []any:
		for _, it := range t {
			if s, ok := it.(string); ok {
				add(s)
			}
		}
	case string:
		add(t)
	}
	return out
}
