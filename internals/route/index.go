// file: internals/route/index.go
package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	tenantAuth "academia_backend/internals/middlewares/auth_tenant"
	featuresMiddleware "academia_backend/internals/middlewares/features"
	routeDetails "academia_backend/internals/route/details"
)

var startTime time.Time

type Options struct {
	JWTSecret string
	Gatherer  prometheus.Gatherer
	Env       string
	Logger    *zap.Logger
}

func SetupRoutes(app *fiber.App, s routeDetails.Services, o Options) {
	startTime = time.Now()
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}

	BaseRoutes(app, o)

	// ===================== GROUPS =====================

	// PUBLIC → gateway callbacks, no JWT
	log.Info("setting up PUBLIC group")
	public := app.Group("/api")

	// ===================== ADMIN (per gym) =====================
	log.Info("setting up ADMIN group (auth + tenant admin)")
	admin := app.Group("/api/a",
		tenantAuth.AuthJWT(tenantAuth.AuthJWTOpts{
			Secret:              o.JWTSecret,
			AllowCookieFallback: true,
		}),
		featuresMiddleware.IsTenantAdmin(),
	)

	// ===================== OWNER (GLOBAL) =====================
	log.Info("setting up OWNER group (auth + owner global)")
	owner := app.Group("/api/o",
		tenantAuth.AuthJWT(tenantAuth.AuthJWTOpts{
			Secret:              o.JWTSecret,
			AllowCookieFallback: true,
		}),
		featuresMiddleware.IsOwnerGlobal(),
	)

	// ===================== MOUNT ROUTES =====================

	log.Info("mounting finance routes")
	routeDetails.FinancePublicRoutes(public, s)
	routeDetails.FinanceAdminRoutes(admin, s)
	routeDetails.FinanceOwnerRoutes(owner, s)

	log.Info("mounting access routes")
	routeDetails.AccessAdminRoutes(admin, s)
}
