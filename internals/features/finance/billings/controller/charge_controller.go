// file: internals/features/finance/billings/controller/charge_controller.go
package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"academia_backend/internals/features/finance/billings/dto"
	"academia_backend/internals/features/finance/billings/service"
	helper "academia_backend/internals/helpers"
)

// =======================================================
// BOOTSTRAP
// =======================================================

type BillingHandler struct {
	Svc *service.Service
}

func NewBillingHandler(svc *service.Service) *BillingHandler {
	return &BillingHandler{Svc: svc}
}

// -----------------------------------------
// Fee preview (GET /billing/charges/:id/fees?at=RFC3339)
// -----------------------------------------
func (h *BillingHandler) PreviewFees(c *fiber.Ctx) error {
	tenantID, err := helper.GetTenantIDFromToken(c)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	chargeID, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return helper.FromServiceError(c, err)
	}

	var at time.Time
	if raw := c.Query("at"); raw != "" {
		at, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "at must be RFC3339")
		}
	}

	fees, charge, err := h.Svc.PreviewFees(c.UserContext(), tenantID, chargeID, at)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return helper.JsonOK(c, "ok", dto.FeePreviewResponse{
		Charge: dto.ToChargeResponse(*charge),
		Fees:   fees,
		AsOf:   at,
	})
}

// -----------------------------------------
// Settle (POST /billing/charges/:id/pay)
// -----------------------------------------
func (h *BillingHandler) MarkPaid(c *fiber.Ctx) error {
	tenantID, err := helper.GetTenantIDFromToken(c)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	chargeID, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return helper.FromServiceError(c, err)
	}

	var in dto.ChargeMarkPaidDTO
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "invalid json")
		}
	}
	if err := helper.Validate.Struct(in); err != nil {
		return helper.FromServiceError(c, err)
	}

	charge, err := h.Svc.MarkChargePaid(c.UserContext(), tenantID, chargeID, in.ToInput())
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	return helper.JsonUpdated(c, "charge paid", dto.ToChargeResponse(*charge))
}

// -----------------------------------------
// Installments (POST /billing/installments)
// -----------------------------------------
func (h *BillingHandler) SplitInstallments(c *fiber.Ctx) error {
	tenantID, err := helper.GetTenantIDFromToken(c)
	if err != nil {
		return helper.FromServiceError(c, err)
	}

	var in dto.InstallmentPlanCreateDTO
	if err := c.BodyParser(&in); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid json")
	}
	if err := helper.Validate.Struct(in); err != nil {
		return helper.FromServiceError(c, err)
	}
	input, err := in.ToInput()
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	}

	plan, err := h.Svc.SplitInstallments(c.UserContext(), tenantID, input)
	if err != nil {
		return helper.FromServiceError(c, err)
	}
	return helper.JsonCreated(c, "installment plan created", plan)
}
