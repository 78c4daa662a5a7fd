package middleware_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	helper "academia_backend/internals/helpers"
	middleware "academia_backend/internals/middlewares/auth_tenant"
	guards "academia_backend/internals/middlewares/features"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func newApp() *fiber.App {
	app := fiber.New()
	auth := middleware.AuthJWT(middleware.AuthJWTOpts{Secret: secret, AllowCookieFallback: true})
	app.Get("/admin", auth, guards.IsTenantAdmin(), func(c *fiber.Ctx) error {
		id, err := helper.GetTenantIDFromToken(c)
		if err != nil {
			return err
		}
		return c.SendString(id.String())
	})
	app.Get("/owner", auth, guards.IsOwnerGlobal(), func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func call(t *testing.T, app *fiber.App, path, token string, cookie bool) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if token != "" {
		if cookie {
			req.Header.Set("Cookie", "access_token="+token)
		} else {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAuthJWTTenantAdmin(t *testing.T) {
	app := newApp()
	tenant := uuid.NewString()
	exp := time.Now().Add(time.Hour).Unix()

	admin := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub": uuid.NewString(), "tenant_id": tenant, "roles": []string{"Admin"}, "exp": exp,
	})
	assert.Equal(t, fiber.StatusOK, call(t, app, "/admin", admin, false))
	assert.Equal(t, fiber.StatusOK, call(t, app, "/admin", admin, true), "cookie fallback")
	assert.Equal(t, fiber.StatusForbidden, call(t, app, "/owner", admin, false))

	staff := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub": uuid.NewString(), "tenant_id": tenant, "roles": []string{"staff"}, "exp": exp,
	})
	assert.Equal(t, fiber.StatusForbidden, call(t, app, "/admin", staff, false))

	noTenant := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub": uuid.NewString(), "roles": []string{"admin"}, "exp": exp,
	})
	assert.Equal(t, fiber.StatusUnauthorized, call(t, app, "/admin", noTenant, false))

	owner := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub": uuid.NewString(), "roles_global": []string{"owner"}, "exp": exp,
	})
	assert.Equal(t, fiber.StatusOK, call(t, app, "/owner", owner, false))
}

func TestAuthJWTRejectsBadTokens(t *testing.T) {
	app := newApp()
	claims := jwt.MapClaims{"sub": uuid.NewString(), "tenant_id": uuid.NewString(), "roles": []string{"admin"}}

	assert.Equal(t, fiber.StatusUnauthorized, call(t, app, "/admin", "", false))

	wrongKey := sign(t, jwt.SigningMethodHS256, []byte("other"), claims)
	assert.Equal(t, fiber.StatusUnauthorized, call(t, app, "/admin", wrongKey, false))

	expired := jwt.MapClaims{"sub": uuid.NewString(), "tenant_id": uuid.NewString(), "roles": []string{"admin"},
		"exp": time.Now().Add(-time.Minute).Unix()}
	assert.Equal(t, fiber.StatusUnauthorized, call(t, app, "/admin", sign(t, jwt.SigningMethodHS256, []byte(secret), expired), false))

	badTenant := jwt.MapClaims{"sub": uuid.NewString(), "tenant_id": "gym-1", "roles": []string{"admin"}}
	assert.Equal(t, fiber.StatusUnauthorized, call(t, app, "/admin", sign(t, jwt.SigningMethodHS256, []byte(secret), badTenant), false))

	none := sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, claims)
	assert.Equal(t, fiber.StatusUnauthorized, call(t, app, "/admin", none, false))
}
