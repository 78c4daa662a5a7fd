package middlewares

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"academia_backend/internals/middlewares/logger"
)

// SetupMiddlewares installs the global chain shared by every route.
func SetupMiddlewares(app *fiber.App, log *zap.Logger) {
	app.Use(RecoveryMiddleware())
	app.Use(logger.LoggerMiddleware(log))
	app.Use(CorsMiddleware())
	app.Use(GlobalRateLimiter())
}
