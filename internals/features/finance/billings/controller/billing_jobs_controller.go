// file: internals/features/finance/billings/controller/billing_jobs_controller.go
package controller

import (
	"github.com/gofiber/fiber/v2"

	"academia_backend/internals/features/finance/billings/dto"
	helper "academia_backend/internals/helpers"
)

/* =========================================================
   POLICY (per tenant)
========================================================= */

// GET /billing/policy
func (h *BillingHandler) GetPolicy(c *fiber.Ctx) error {
	tenantID, err := helper.GetTenantIDFromToken(c)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	p, stored, err := h.Svc.GetPolicy(c.UserContext(), tenantID)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	return helper.JsonOK(c, "ok", dto.BillingPolicyResponse{BillingPolicy: p, IsDefault: !stored})
}

// PUT /billing/policy
func (h *BillingHandler) UpdatePolicy(c *fiber.Ctx) error {
	tenantID, err := helper.GetTenantIDFromToken(c)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	var in dto.BillingPolicyUpsertDTO
	if err := c.BodyParser(&in); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid json")
	}
	if err := helper.Validate.Struct(in); err != nil {
		return helper.FromServiceError(c, err)
	}
	p, err := h.Svc.UpdatePolicy(c.UserContext(), in.ToModel(tenantID))
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	return helper.JsonUpdated(c, "billing policy updated", dto.BillingPolicyResponse{BillingPolicy: p})
}

/* =========================================================
   BATCH TRIGGERS (tenant scoped)
========================================================= */

// POST /billing/generate
func (h *BillingHandler) GenerateCharges(c *fiber.Ctx) error {
	tenantID, err := helper.GetTenantIDFromToken(c)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	var in dto.GenerateChargesDTO
	if err := c.BodyParser(&in); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid json")
	}
	if err := helper.Validate.Struct(in); err != nil {
		return helper.FromServiceError(c, err)
	}
	res, err := h.Svc.GenerateMonthly(c.UserContext(), in.ToInput(tenantID))
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	return helper.JsonOK(c, "charges generated", res)
}

// POST /billing/sweep
func (h *BillingHandler) Sweep(c *fiber.Ctx) error {
	tenantID, err := helper.GetTenantIDFromToken(c)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	res, err := h.Svc.SweepTenant(c.UserContext(), tenantID)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	return helper.JsonOK(c, "sweep done", res)
}

/* =========================================================
   PLATFORM BILLING CYCLES (owner)
========================================================= */

// POST /billing-cycles/generate
func (h *BillingHandler) GenerateBillingCycles(c *fiber.Ctx) error {
	var in dto.BillingCycleGenerateDTO
	if err := c.BodyParser(&in); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid json")
	}
	if err := helper.Validate.Struct(in); err != nil {
		return helper.FromServiceError(c, err)
	}
	res, err := h.Svc.GenerateBillingCycles(c.UserContext(), in.ReferenceMonth)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	return helper.JsonOK(c, "billing cycles generated", res)
}

// POST /billing-cycles/sweep
func (h *BillingHandler) SweepBillingCycles(c *fiber.Ctx) error {
	res, err := h.Svc.SweepBillingCycles(c.UserContext())
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	return helper.JsonOK(c, "billing cycle sweep done", res)
}

// POST /billing-cycles/:id/pay
func (h *BillingHandler) MarkBillingCyclePaid(c *fiber.Ctx) error {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	var in dto.BillingCycleMarkPaidDTO
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "invalid json")
		}
	}
	if err := helper.Validate.Struct(in); err != nil {
		return helper.FromServiceError(c, err)
	}
	bc, err := h.Svc.MarkBillingCyclePaid(c.UserContext(), id, in.ToInput())
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	return helper.JsonUpdated(c, "billing cycle paid", bc)
}
