// file: internals/route/details/finance_routes.go
package details

import (
	"github.com/gofiber/fiber/v2"

	accessRoute "academia_backend/internals/features/access/route"
	accessService "academia_backend/internals/features/access/service"
	billingRoute "academia_backend/internals/features/finance/billings/routes"
	billingService "academia_backend/internals/features/finance/billings/service"
	paymentRoute "academia_backend/internals/features/finance/payments/route"
	paymentService "academia_backend/internals/features/finance/payments/service"
)

// Services are built once in main and shared by every route group.
// Gateway is nil when no payment gateway is configured.
type Services struct {
	Billing    *billingService.Service
	Gateway    *paymentService.GatewayService
	Reconciler *accessService.Reconciler
	Pool       *accessService.Pool
}

func FinancePublicRoutes(r fiber.Router, s Services) {
	if s.Gateway != nil {
		paymentRoute.PaymentPublicRoutes(r, s.Gateway)
	}
}

func FinanceAdminRoutes(r fiber.Router, s Services) {
	billingRoute.BillingAdminRoutes(r, s.Billing)
	if s.Gateway != nil {
		paymentRoute.PaymentAdminRoutes(r, s.Gateway)
	}
}

func FinanceOwnerRoutes(r fiber.Router, s Services) {
	billingRoute.BillingOwnerRoutes(r, s.Billing)
	if s.Gateway != nil {
		paymentRoute.PaymentOwnerRoutes(r, s.Gateway)
	}
}

func AccessAdminRoutes(r fiber.Router, s Services) {
	var pool accessService.Enqueuer
	if s.Pool != nil {
		pool = s.Pool
	}
	accessRoute.AccessAdminRoutes(r, s.Reconciler, pool)
}
