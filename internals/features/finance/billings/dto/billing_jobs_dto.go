// file: internals/features/finance/billings/dto/billing_jobs_dto.go
package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	billing "academia_backend/internals/features/finance/billings/model"
	"academia_backend/internals/features/finance/billings/service"
)

////////////////////////////////////////////////////////////////////////////////
// MONTHLY GENERATOR
////////////////////////////////////////////////////////////////////////////////

type GenerateChargesDTO struct {
	ReferenceMonth string      `json:"reference_month" validate:"required,len=7"` // YYYY-MM
	PayerIDs       []uuid.UUID `json:"payer_ids,omitempty"`
	PlanID         *uuid.UUID  `json:"plan_id,omitempty"`
	DueDay         *int        `json:"due_day,omitempty" validate:"omitempty,min=1,max=31"`
}

func (d GenerateChargesDTO) ToInput(tenantID uuid.UUID) service.GenerateInput {
	return service.GenerateInput{
		TenantID:       tenantID,
		PayerIDs:       d.PayerIDs,
		PlanID:         d.PlanID,
		ReferenceMonth: strings.TrimSpace(d.ReferenceMonth),
		DueDay:         d.DueDay,
	}
}

////////////////////////////////////////////////////////////////////////////////
// INSTALLMENTS
////////////////////////////////////////////////////////////////////////////////

type InstallmentPlanCreateDTO struct {
	PayerID         uuid.UUID   `json:"payer_id" validate:"required"`
	ChargeIDs       []uuid.UUID `json:"charge_ids" validate:"required,min=1,max=24"`
	Installments    int         `json:"installments" validate:"required,min=1,max=60"`
	Total           *int64      `json:"total,omitempty" validate:"omitempty,min=0"` // nil = derive from charges
	ForgiveInterest bool        `json:"forgive_interest"`
	FirstDueDate    string      `json:"first_due_date" validate:"required,datetime=2006-01-02"`
}

func (d InstallmentPlanCreateDTO) ToInput() (service.InstallmentInput, error) {
	first, err := time.Parse(DateLayout, d.FirstDueDate)
	if err != nil {
		return service.InstallmentInput{}, fmt.Errorf("first_due_date: %w", err)
	}
	in := service.InstallmentInput{
		PayerID:         d.PayerID,
		ChargeIDs:       d.ChargeIDs,
		Count:           d.Installments,
		ForgiveInterest: d.ForgiveInterest,
		FirstDueDate:    first,
	}
	if d.Total != nil {
		in.Total = *d.Total
	}
	return in, nil
}

////////////////////////////////////////////////////////////////////////////////
// POLICY
////////////////////////////////////////////////////////////////////////////////

type BillingPolicyUpsertDTO struct {
	LateFeePercent         decimal.Decimal `json:"late_fee_percent"`
	MonthlyInterestPercent decimal.Decimal `json:"monthly_interest_percent"`
	GraceDays              int             `json:"grace_days" validate:"min=0,max=365"`
	InstallmentsEnabled    bool            `json:"installments_enabled"`
	MaxInstallments        int             `json:"max_installments" validate:"min=1,max=60"`
	MinInstallmentAmount   int64           `json:"min_installment_amount" validate:"min=0"`
	DefaultDueDay          int             `json:"default_due_day" validate:"min=0,max=31"`
	BlockAfterOverdueDays  int             `json:"block_after_overdue_days" validate:"min=0"`
	Timezone               string          `json:"timezone" validate:"omitempty,max=64"`
}

func (d BillingPolicyUpsertDTO) ToModel(tenantID uuid.UUID) billing.BillingPolicy {
	return billing.BillingPolicy{
		BillingPolicyTenantID:               tenantID,
		BillingPolicyLateFeePercent:         d.LateFeePercent,
		BillingPolicyMonthlyInterestPercent: d.MonthlyInterestPercent,
		BillingPolicyGraceDays:              d.GraceDays,
		BillingPolicyInstallmentsEnabled:    d.InstallmentsEnabled,
		BillingPolicyMaxInstallments:        d.MaxInstallments,
		BillingPolicyMinInstallmentAmount:   d.MinInstallmentAmount,
		BillingPolicyDefaultDueDay:          d.DefaultDueDay,
		BillingPolicyBlockAfterOverdueDays:  d.BlockAfterOverdueDays,
		BillingPolicyTimezone:               d.Timezone,
	}
}

type BillingPolicyResponse struct {
	billing.BillingPolicy
	IsDefault bool `json:"is_default"`
}

////////////////////////////////////////////////////////////////////////////////
// PLATFORM BILLING CYCLES
////////////////////////////////////////////////////////////////////////////////

type BillingCycleGenerateDTO struct {
	ReferenceMonth string `json:"reference_month" validate:"required,len=7"`
}

type BillingCycleMarkPaidDTO struct {
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	Reference *string    `json:"reference,omitempty" validate:"omitempty,max=120"`
}

func (d BillingCycleMarkPaidDTO) ToInput() service.BillingCyclePaymentInput {
	return service.BillingCyclePaymentInput{PaidAt: d.PaidAt, Reference: strPtrOrNil(d.Reference)}
}
