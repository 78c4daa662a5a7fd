// file: internals/features/finance/billings/model/charge_model.go
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/* ==============================
   ENUM: status charge
============================== */

type ChargeStatus string

const (
	ChargeStatusPending   ChargeStatus = "pending"
	ChargeStatusPaid      ChargeStatus = "paid"
	ChargeStatusOverdue   ChargeStatus = "overdue"
	ChargeStatusCancelled ChargeStatus = "cancelled"
)

// OpenChargeStatuses are the statuses that still accept fees, settlement or cancellation.
var OpenChargeStatuses = []ChargeStatus{ChargeStatusPending, ChargeStatusOverdue}

func (s ChargeStatus) IsOpen() bool {
	return s == ChargeStatusPending || s == ChargeStatusOverdue
}

func (s ChargeStatus) IsTerminal() bool {
	return s == ChargeStatusPaid || s == ChargeStatusCancelled
}

// CanTransitionTo reports whether s -> next is a valid charge transition.
// pending -> paid|overdue|cancelled, overdue -> paid|cancelled. Nothing leaves paid/cancelled.
func (s ChargeStatus) CanTransitionTo(next ChargeStatus) bool {
	switch s {
	case ChargeStatusPending:
		return next == ChargeStatusPaid || next == ChargeStatusOverdue || next == ChargeStatusCancelled
	case ChargeStatusOverdue:
		return next == ChargeStatusPaid || next == ChargeStatusCancelled
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodManual  PaymentMethod = "manual"
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodPix     PaymentMethod = "pix"
	PaymentMethodGateway PaymentMethod = "gateway"
)

/* ==============================================
   MODEL: charges
============================================== */

type Charge struct {
	// PK
	ChargeID uuid.UUID `gorm:"column:charge_id;type:uuid;primaryKey" json:"charge_id"`

	// Tenant & payer
	ChargeTenantID uuid.UUID `gorm:"column:charge_tenant_id;type:uuid;not null;index:ix_charges_tenant_status,priority:1" json:"charge_tenant_id"`
	ChargePayerID  uuid.UUID `gorm:"column:charge_payer_id;type:uuid;not null;index" json:"charge_payer_id"`

	// Origin: monthly generation
	ChargeSubscriptionID *uuid.UUID `gorm:"column:charge_subscription_id;type:uuid;uniqueIndex:uq_charges_subscription_month,priority:1" json:"charge_subscription_id,omitempty"`
	ChargeReferenceMonth *string    `gorm:"column:charge_reference_month;type:varchar(7);uniqueIndex:uq_charges_subscription_month,priority:2" json:"charge_reference_month,omitempty"`
	ChargeDescription    string     `gorm:"column:charge_description;type:text;not null;default:''" json:"charge_description"`

	// Amounts (minor units)
	ChargeAmount         int64  `gorm:"column:charge_amount;not null;check:charge_amount>=0" json:"charge_amount"`
	ChargeOriginalAmount *int64 `gorm:"column:charge_original_amount" json:"charge_original_amount,omitempty"`
	ChargeLateFeeAmount  int64  `gorm:"column:charge_late_fee_amount;not null;default:0" json:"charge_late_fee_amount"`
	ChargeInterestAmount int64  `gorm:"column:charge_interest_amount;not null;default:0" json:"charge_interest_amount"`

	ChargeDueDate            time.Time    `gorm:"column:charge_due_date;type:date;not null;index" json:"charge_due_date"`
	ChargeStatus             ChargeStatus `gorm:"column:charge_status;type:varchar(20);not null;default:'pending';index:ix_charges_tenant_status,priority:2" json:"charge_status"`
	ChargeLastRecalculatedAt *time.Time   `gorm:"column:charge_last_recalculated_at" json:"charge_last_recalculated_at,omitempty"`

	// Settlement
	ChargePaidAt        *time.Time     `gorm:"column:charge_paid_at" json:"charge_paid_at,omitempty"`
	ChargePaymentMethod *PaymentMethod `gorm:"column:charge_payment_method;type:varchar(20)" json:"charge_payment_method,omitempty"`
	ChargePaymentRef    *string        `gorm:"column:charge_payment_ref;type:text" json:"charge_payment_ref,omitempty"`

	// Gateway (PIX / QRIS)
	ChargeGatewayReference *string    `gorm:"column:charge_gateway_reference;type:varchar(100);index" json:"charge_gateway_reference,omitempty"`
	ChargeGatewayQRPayload *string    `gorm:"column:charge_gateway_qr_payload;type:text" json:"charge_gateway_qr_payload,omitempty"`
	ChargeGatewayExpiresAt *time.Time `gorm:"column:charge_gateway_expires_at" json:"charge_gateway_expires_at,omitempty"`

	// Installment plan
	ChargeInstallmentPlanID         *uuid.UUID     `gorm:"column:charge_installment_plan_id;type:uuid;index" json:"charge_installment_plan_id,omitempty"`
	ChargeInstallmentNumber         *int           `gorm:"column:charge_installment_number" json:"charge_installment_number,omitempty"`
	ChargeInstallmentCount          *int           `gorm:"column:charge_installment_count" json:"charge_installment_count,omitempty"`
	ChargeInstallmentInterestWaived bool           `gorm:"column:charge_installment_interest_waived;not null;default:false" json:"charge_installment_interest_waived"`
	ChargeReplacedChargeIDs         datatypes.JSON `gorm:"column:charge_replaced_charge_ids" json:"charge_replaced_charge_ids,omitempty"`

	// Cancellation
	ChargeCancelledAt  *time.Time `gorm:"column:charge_cancelled_at" json:"charge_cancelled_at,omitempty"`
	ChargeCancelReason *string    `gorm:"column:charge_cancel_reason;type:text" json:"charge_cancel_reason,omitempty"`
	ChargeSupersededBy *uuid.UUID `gorm:"column:charge_superseded_by;type:uuid" json:"charge_superseded_by,omitempty"`

	// Audit (no soft delete: charges are only status-transitioned)
	ChargeCreatedAt time.Time `gorm:"column:charge_created_at;not null;autoCreateTime" json:"charge_created_at"`
	ChargeUpdatedAt time.Time `gorm:"column:charge_updated_at;not null;autoUpdateTime" json:"charge_updated_at"`
}

func (Charge) TableName() string { return "charges" }

/* ======================================
   HOOKS
====================================== */

func (m *Charge) BeforeCreate(tx *gorm.DB) error {
	if m.ChargeID == uuid.Nil {
		m.ChargeID = uuid.New()
	}
	if m.ChargeStatus == "" {
		m.ChargeStatus = ChargeStatusPending
	}
	m.ChargeDueDate = DateOnly(m.ChargeDueDate)
	return nil
}

/* ======================================
   HELPERS
====================================== */

// BaseAmount is the pre-fee amount fees are computed on.
func (m Charge) BaseAmount() int64 {
	if m.ChargeOriginalAmount != nil {
		return *m.ChargeOriginalAmount
	}
	return m.ChargeAmount - m.ChargeLateFeeAmount - m.ChargeInterestAmount
}

func (m Charge) ReplacedChargeIDs() []uuid.UUID {
	if len(m.ChargeReplacedChargeIDs) == 0 {
		return nil
	}
	var out []uuid.UUID
	_ = json.Unmarshal(m.ChargeReplacedChargeIDs, &out)
	return out
}

func ReplacedChargeIDsJSON(ids []uuid.UUID) datatypes.JSON {
	if len(ids) == 0 {
		return nil
	}
	b, _ := json.Marshal(ids)
	return datatypes.JSON(b)
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

/* ======================================
   TYPED UPDATES
====================================== */

// ChargeFeeUpdate is what the overdue sweep writes.
type ChargeFeeUpdate struct {
	OriginalAmount int64
	LateFeeAmount  int64
	InterestAmount int64
	Amount         int64
	Status         ChargeStatus
	RecalculatedAt time.Time
}

// ChargeSettlementUpdate freezes a charge as paid.
type ChargeSettlementUpdate struct {
	PaidAt         time.Time
	Method         PaymentMethod
	Reference      *string
	OriginalAmount int64
	LateFeeAmount  int64
	InterestAmount int64
	Amount         int64
}

// ChargeCancelUpdate supersedes open charges.
type ChargeCancelUpdate struct {
	CancelledAt  time.Time
	Reason       string
	SupersededBy *uuid.UUID
}

// ChargeGatewayUpdate stores the gateway charge that will settle this charge.
type ChargeGatewayUpdate struct {
	Reference string
	QRPayload string
	ExpiresAt time.Time
}
