package controller

import (
	"github.com/gofiber/fiber/v2"

	"academia_backend/internals/features/access/service"
	helper "academia_backend/internals/helpers"
)

type AccessHandler struct {
	Rec  *service.Reconciler
	Pool service.Enqueuer
}

func NewAccessHandler(rec *service.Reconciler, pool service.Enqueuer) *AccessHandler {
	return &AccessHandler{Rec: rec, Pool: pool}
}

// POST /access/members/:id/reconcile
// Synchronous: the response carries the decision and what the controller was told.
func (h *AccessHandler) Reconcile(c *fiber.Ctx) error {
	tenantID, err := helper.GetTenantIDFromToken(c)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	memberID, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	out, err := h.Rec.Reconcile(c.UserContext(), tenantID, memberID)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	return helper.JsonOK(c, "access reconciled", out)
}

// POST /access/members/:id/reconcile/async
func (h *AccessHandler) Enqueue(c *fiber.Ctx) error {
	tenantID, err := helper.GetTenantIDFromToken(c)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	memberID, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	if h.Pool == nil || !h.Pool.Enqueue(tenantID, memberID) {
		return helper.JsonError(c, fiber.StatusServiceUnavailable, "reconcile queue unavailable")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"message": "reconcile queued",
		"data":    fiber.Map{"tenant_id": tenantID, "member_id": memberID},
	})
}
