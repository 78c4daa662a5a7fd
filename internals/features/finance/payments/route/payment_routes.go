package route

import (
	"github.com/gofiber/fiber/v2"

	paymentController "academia_backend/internals/features/finance/payments/controller"
	"academia_backend/internals/features/finance/payments/service"
)

/*
Public routes: gateway callbacks (no JWT, signature checked in the service)
Final paths:
- POST /api/webhooks/midtrans
*/
func PaymentPublicRoutes(r fiber.Router, svc *service.GatewayService) {
	ctl := paymentController.NewGatewayHandler(svc)
	r.Post("/webhooks/midtrans", ctl.MidtransWebhook)
}

/*
Admin routes (tenant scoped): QR for a charge + manual poll
- POST /billing/charges/:id/gateway
- POST /billing/charges/:id/gateway/poll
*/
func PaymentAdminRoutes(admin fiber.Router, svc *service.GatewayService) {
	ctl := paymentController.NewGatewayHandler(svc)

	grp := admin.Group("/billing/charges/:id/gateway")
	grp.Post("/", ctl.CreateGatewayCharge)
	grp.Post("/poll", ctl.PollGatewayCharge)
}

/*
Owner routes: gateway event log
- GET /payment-gateway-events?provider=&status=&charge_id=&tenant_id=&q=&start=&end=&page=&limit=
- GET /payment-gateway-events/:id
*/
func PaymentOwnerRoutes(owner fiber.Router, svc *service.GatewayService) {
	ctl := paymentController.NewGatewayHandler(svc)

	grp := owner.Group("/payment-gateway-events")
	grp.Get("/", ctl.ListEvents)
	grp.Get("/:id", ctl.GetEvent)
}
