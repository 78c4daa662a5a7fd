package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	helper "academia_backend/internals/helpers"
)

// Global limiter for ordinary endpoints
func GlobalRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return helper.JsonError(c, fiber.StatusTooManyRequests, "too many requests, try again later")
		},
	})
}

// Batch endpoints (generate/sweep) are expensive: a handful per minute per caller.
func BatchRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        6,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if v, ok := c.Locals(helper.LocTenantID).(string); ok && v != "" {
				return "batch:" + v
			}
			return "batch:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return helper.JsonError(c, fiber.StatusTooManyRequests, "batch job requested too often")
		},
	})
}
