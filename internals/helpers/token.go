// file: internals/helpers/token.go
package helper

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GetRawAccessToken returns the access token from:
// 1) Authorization header "Bearer <token>"
// 2) cookie "access_token", only when allowCookie
func GetRawAccessToken(c *fiber.Ctx, allowCookie bool) string {
	const p = "bearer "
	if auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization)); len(auth) > len(p) && strings.EqualFold(auth[:len(p)], p) {
		return strings.TrimSpace(auth[len(p):])
	}
	if allowCookie {
		return strings.TrimSpace(c.Cookies("access_token"))
	}
	return ""
}
