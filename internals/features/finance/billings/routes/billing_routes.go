package route

import (
	"github.com/gofiber/fiber/v2"

	billingapi "academia_backend/internals/features/finance/billings/controller"
	"academia_backend/internals/features/finance/billings/service"
	middlewares "academia_backend/internals/middlewares"
)

/*
Admin routes (tenant scoped)
Diproteksi IsTenantAdmin(); tenant_id selalu dari token.
*/
func BillingAdminRoutes(admin fiber.Router, svc *service.Service) {
	h := billingapi.NewBillingHandler(svc)

	grp := admin.Group("/billing")
	{
		// =========================
		// Policy
		// =========================
		grp.Get("/policy", h.GetPolicy)
		grp.Put("/policy", h.UpdatePolicy)

		// =========================
		// Charges
		// =========================
		grp.Get("/charges/:id/fees", h.PreviewFees)
		grp.Post("/charges/:id/pay", h.MarkPaid)

		// =========================
		// Installments
		// =========================
		grp.Post("/installments", h.SplitInstallments)

		// =========================
		// Batch triggers
		// =========================
		grp.Post("/generate", middlewares.BatchRateLimiter(), h.GenerateCharges)
		grp.Post("/sweep", middlewares.BatchRateLimiter(), h.Sweep)
	}
}

/*
Owner routes (platform level)
*/
func BillingOwnerRoutes(owner fiber.Router, svc *service.Service) {
	h := billingapi.NewBillingHandler(svc)

	grp := owner.Group("/billing-cycles")
	{
		grp.Post("/generate", middlewares.BatchRateLimiter(), h.GenerateBillingCycles)
		grp.Post("/sweep", middlewares.BatchRateLimiter(), h.SweepBillingCycles)
		grp.Post("/:id/pay", h.MarkBillingCyclePaid)
	}
}
