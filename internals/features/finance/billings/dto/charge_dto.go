// file: internals/features/finance/billings/dto/charge_dto.go
package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"

	billing "academia_backend/internals/features/finance/billings/model"
	"academia_backend/internals/features/finance/billings/service"
)

////////////////////////////////////////////////////////////////////////////////
// CHARGES: DTO
////////////////////////////////////////////////////////////////////////////////

// Response
type ChargeResponse struct {
	ChargeID             uuid.UUID  `json:"charge_id"`
	ChargeTenantID       uuid.UUID  `json:"charge_tenant_id"`
	ChargePayerID        uuid.UUID  `json:"charge_payer_id"`
	ChargeSubscriptionID *uuid.UUID `json:"charge_subscription_id,omitempty"`
	ChargeReferenceMonth *string    `json:"charge_reference_month,omitempty"`
	ChargeDescription    string     `json:"charge_description"`

	ChargeAmount         int64  `json:"charge_amount"`
	ChargeOriginalAmount *int64 `json:"charge_original_amount,omitempty"`
	ChargeLateFeeAmount  int64  `json:"charge_late_fee_amount"`
	ChargeInterestAmount int64  `json:"charge_interest_amount"`
	ChargeDueDate        string `json:"charge_due_date"` // YYYY-MM-DD
	ChargeStatus         string `json:"charge_status"`   // pending|overdue|paid|cancelled

	ChargePaidAt        *time.Time `json:"charge_paid_at,omitempty"`
	ChargePaymentMethod *string    `json:"charge_payment_method,omitempty"`
	ChargePaymentRef    *string    `json:"charge_payment_ref,omitempty"`

	ChargeGatewayReference *string    `json:"charge_gateway_reference,omitempty"`
	ChargeGatewayQRPayload *string    `json:"charge_gateway_qr_payload,omitempty"`
	ChargeGatewayExpiresAt *time.Time `json:"charge_gateway_expires_at,omitempty"`

	ChargeInstallmentPlanID *uuid.UUID  `json:"charge_installment_plan_id,omitempty"`
	ChargeInstallmentNumber *int        `json:"charge_installment_number,omitempty"`
	ChargeInstallmentCount  *int        `json:"charge_installment_count,omitempty"`
	ChargeReplacedChargeIDs []uuid.UUID `json:"charge_replaced_charge_ids,omitempty"`
	ChargeSupersededBy      *uuid.UUID  `json:"charge_superseded_by,omitempty"`

	ChargeCreatedAt time.Time `json:"charge_created_at"`
	ChargeUpdatedAt time.Time `json:"charge_updated_at"`
}

type FeePreviewResponse struct {
	Charge ChargeResponse       `json:"charge"`
	Fees   service.FeeBreakdown `json:"fees"`
	AsOf   time.Time            `json:"as_of"`
}

////////////////////////////////////////////////////////////////////////////////
// SETTLEMENT: DTO
////////////////////////////////////////////////////////////////////////////////

type ChargeMarkPaidDTO struct {
	PaidAt    *time.Time `json:"paid_at,omitempty"` // nil = now
	Method    string     `json:"method" validate:"omitempty,oneof=manual cash pix gateway"`
	Reference *string    `json:"reference,omitempty" validate:"omitempty,max=120"`
}

func (d ChargeMarkPaidDTO) ToInput() service.SettlementInput {
	in := service.SettlementInput{
		PaidAt:    d.PaidAt,
		Method:    billing.PaymentMethod(strings.ToLower(strings.TrimSpace(d.Method))),
		Reference: strPtrOrNil(d.Reference),
	}
	return in
}

////////////////////////////////////////////////////////////////////////////////
// MAPPERS: Model -> DTO
////////////////////////////////////////////////////////////////////////////////

func ToChargeResponse(m billing.Charge) ChargeResponse {
	var method *string
	if m.ChargePaymentMethod != nil {
		s := string(*m.ChargePaymentMethod)
		method = &s
	}
	return ChargeResponse{
		ChargeID:                m.ChargeID,
		ChargeTenantID:          m.ChargeTenantID,
		ChargePayerID:           m.ChargePayerID,
		ChargeSubscriptionID:    m.ChargeSubscriptionID,
		ChargeReferenceMonth:    m.ChargeReferenceMonth,
		ChargeDescription:       m.ChargeDescription,
		ChargeAmount:            m.ChargeAmount,
		ChargeOriginalAmount:    m.ChargeOriginalAmount,
		ChargeLateFeeAmount:     m.ChargeLateFeeAmount,
		ChargeInterestAmount:    m.ChargeInterestAmount,
		ChargeDueDate:           m.ChargeDueDate.Format(DateLayout),
		ChargeStatus:            string(m.ChargeStatus),
		ChargePaidAt:            m.ChargePaidAt,
		ChargePaymentMethod:     method,
		ChargePaymentRef:        m.ChargePaymentRef,
		ChargeGatewayReference:  m.ChargeGatewayReference,
		ChargeGatewayQRPayload:  m.ChargeGatewayQRPayload,
		ChargeGatewayExpiresAt:  m.ChargeGatewayExpiresAt,
		ChargeInstallmentPlanID: m.ChargeInstallmentPlanID,
		ChargeInstallmentNumber: m.ChargeInstallmentNumber,
		ChargeInstallmentCount:  m.ChargeInstallmentCount,
		ChargeReplacedChargeIDs: m.ReplacedChargeIDs(),
		ChargeSupersededBy:      m.ChargeSupersededBy,
		ChargeCreatedAt:         m.ChargeCreatedAt,
		ChargeUpdatedAt:         m.ChargeUpdatedAt,
	}
}

////////////////////////////////////////////////////////////////////////////////
// SMALL UTILS
////////////////////////////////////////////////////////////////////////////////

const DateLayout = "2006-01-02"

func strPtrOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
