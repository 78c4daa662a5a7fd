// file: internals/features/finance/payments/controller/midtrans_webhook_controller.go
package controller

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"academia_backend/internals/features/finance/payments/dto"
	"academia_backend/internals/features/finance/payments/service"
	helper "academia_backend/internals/helpers"
)

/* =======================================================================
   Controller
======================================================================= */

type GatewayHandler struct {
	Svc *service.GatewayService
}

func NewGatewayHandler(svc *service.GatewayService) *GatewayHandler {
	return &GatewayHandler{Svc: svc}
}

/* =======================================================================
   Webhook Midtrans (public, authenticated by signature)
======================================================================= */

// POST /webhooks/midtrans
func (h *GatewayHandler) MidtransWebhook(c *fiber.Ctx) error {
	var notif service.MidtransNotification
	if err := c.BodyParser(&notif); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(notif.OrderID) == "" {
		return helper.JsonError(c, fiber.StatusBadRequest, "order_id is required")
	}

	headers := map[string]string{}
	for k, v := range c.GetReqHeaders() {
		if strings.EqualFold(k, fiber.HeaderAuthorization) {
			continue
		}
		headers[k] = strings.Join(v, ",")
	}

	res, err := h.Svc.HandleMidtransNotification(c.UserContext(), notif, headers)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	// 200 for every verified notification so Midtrans stops retrying
	return helper.JsonOK(c, "notification "+string(res.Status), res)
}

/* =======================================================================
   Admin: issue / poll a gateway charge
======================================================================= */

// POST /billing/charges/:id/gateway
func (h *GatewayHandler) CreateGatewayCharge(c *fiber.Ctx) error {
	tenantID, err := helper.GetTenantIDFromToken(c)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	chargeID, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	charge, err := h.Svc.CreateGatewayCharge(c.UserContext(), tenantID, chargeID)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	return helper.JsonCreated(c, "gateway charge ready", dto.ToGatewayChargeResponse(*charge))
}

// POST /billing/charges/:id/gateway/poll
func (h *GatewayHandler) PollGatewayCharge(c *fiber.Ctx) error {
	tenantID, err := helper.GetTenantIDFromToken(c)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	chargeID, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	charge, st, err := h.Svc.PollGatewayCharge(c.UserContext(), tenantID, chargeID)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	return helper.JsonOK(c, "ok", dto.ToGatewayPollResponse(*charge, st))
}
