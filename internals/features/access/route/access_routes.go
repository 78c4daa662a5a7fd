package route

import (
	"github.com/gofiber/fiber/v2"

	accessController "academia_backend/internals/features/access/controller"
	"academia_backend/internals/features/access/service"
)

/*
Admin routes (tenant scoped)
- POST /access/members/:id/reconcile
- POST /access/members/:id/reconcile/async
*/
func AccessAdminRoutes(admin fiber.Router, rec *service.Reconciler, pool service.Enqueuer) {
	h := accessController.NewAccessHandler(rec, pool)

	grp := admin.Group("/access/members/:id")
	grp.Post("/reconcile", h.Reconcile)
	grp.Post("/reconcile/async", h.Enqueue)
}
