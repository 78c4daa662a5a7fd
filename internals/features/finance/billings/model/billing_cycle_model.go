// file: internals/features/finance/billings/model/billing_cycle_model.go
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BillingCycle is the tenant-level analogue of Charge: one SaaS invoice per tenant per reference month.
type BillingCycle struct {
	BillingCycleID             uuid.UUID    `gorm:"type:uuid;primaryKey;column:billing_cycle_id" json:"billing_cycle_id"`
	BillingCycleTenantID       uuid.UUID    `gorm:"type:uuid;not null;column:billing_cycle_tenant_id;uniqueIndex:uq_billing_cycles_tenant_month,priority:1" json:"billing_cycle_tenant_id"`
	BillingCycleReferenceMonth string       `gorm:"type:varchar(7);not null;column:billing_cycle_reference_month;uniqueIndex:uq_billing_cycles_tenant_month,priority:2" json:"billing_cycle_reference_month"`
	BillingCycleDueDate        time.Time    `gorm:"type:date;not null;column:billing_cycle_due_date;index" json:"billing_cycle_due_date"`
	BillingCycleAmount         int64        `gorm:"not null;column:billing_cycle_amount;check:billing_cycle_amount>=0" json:"billing_cycle_amount"`
	BillingCycleStatus         ChargeStatus `gorm:"type:varchar(20);not null;default:'pending';column:billing_cycle_status;index" json:"billing_cycle_status"`
	BillingCyclePaidAt         *time.Time   `gorm:"column:billing_cycle_paid_at" json:"billing_cycle_paid_at,omitempty"`
	BillingCycleSettlementRef  *string      `gorm:"type:text;column:billing_cycle_settlement_ref" json:"billing_cycle_settlement_ref,omitempty"`
	BillingCycleNote           *string      `gorm:"type:text;column:billing_cycle_note" json:"billing_cycle_note,omitempty"`

	BillingCycleCreatedAt time.Time `gorm:"not null;autoCreateTime;column:billing_cycle_created_at" json:"billing_cycle_created_at"`
	BillingCycleUpdatedAt time.Time `gorm:"not null;autoUpdateTime;column:billing_cycle_updated_at" json:"billing_cycle_updated_at"`
}

func (BillingCycle) TableName() string {
	return "billing_cycles"
}

func (b *BillingCycle) BeforeCreate(tx *gorm.DB) error {
	if b.BillingCycleID == uuid.Nil {
		b.BillingCycleID = uuid.New()
	}
	if b.BillingCycleTenantID == uuid.Nil {
		return fmt.Errorf("billing_cycle_tenant_id is required")
	}
	if b.BillingCycleStatus == "" {
		b.BillingCycleStatus = ChargeStatusPending
	}
	b.BillingCycleDueDate = DateOnly(b.BillingCycleDueDate)
	return nil
}

// BillingCycleSettlementUpdate freezes a cycle as paid and links what settled it.
type BillingCycleSettlementUpdate struct {
	PaidAt    time.Time
	Reference *string
}
