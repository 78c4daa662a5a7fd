// file: internals/features/finance/payments/controller/payment_gateway_events_controller.go
package controller

import (
	"github.com/gofiber/fiber/v2"

	"academia_backend/internals/features/finance/payments/dto"
	helper "academia_backend/internals/helpers"
)

/* =======================================================================
   List (filter + pagination)
   Query params:
     - provider: midtrans|other
     - status: received|processed|ignored|duplicated|failed
     - charge_id, tenant_id: uuid
     - q: search in external_id / external_ref
     - start, end: RFC3339 (filter received_at)
     - page (default 1), per_page|limit (default 50, max 500)
     - sort_by: received_at|status|provider, order: asc|desc
======================================================================= */

// GET /payment-gateway-events
func (h *GatewayHandler) ListEvents(c *fiber.Ctx) error {
	var q dto.GatewayEventListQuery
	if err := c.QueryParser(&q); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid query")
	}
	if err := helper.Validate.Struct(q); err != nil {
		return helper.FromServiceError(c, err)
	}

	p := helper.ParseFiber(c, "received_at", "desc", helper.AdminOpts)
	f := q.ToFilter(p)
	rows, total, err := h.Svc.ListEvents(c.UserContext(), f)
	if err != nil {
		return helper.FromServiceError(c, err)
	}

	out := make([]*dto.GatewayEventResponse, 0, len(rows))
	for i := range rows {
		out = append(out, dto.FromEventModel(&rows[i]))
	}
	return helper.JsonOK(c, "ok", fiber.Map{
		"items": out,
		"meta":  helper.BuildMeta(total, p),
	})
}

/* =======================================================================
   Detail
======================================================================= */

// GET /payment-gateway-events/:id
func (h *GatewayHandler) GetEvent(c *fiber.Ctx) error {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	ev, err := h.Svc.GetEvent(c.UserContext(), id)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	return helper.JsonOK(c, "ok", dto.FromEventModel(ev))
}
