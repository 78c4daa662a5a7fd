// file: internals/features/finance/billings/model/billing_policy_model.go
package model

import (
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- MODEL tenant_billing_policies -------------------------------------------
// One row per tenant. Tenants without a row run on the configured defaults.
type BillingPolicy struct {
	BillingPolicyTenantID uuid.UUID `json:"billing_policy_tenant_id" gorm:"column:billing_policy_tenant_id;type:uuid;primaryKey"`

	// Lateness
	BillingPolicyLateFeePercent         decimal.Decimal `json:"billing_policy_late_fee_percent" gorm:"column:billing_policy_late_fee_percent;type:numeric(8,4);not null;default:0"`
	BillingPolicyMonthlyInterestPercent decimal.Decimal `json:"billing_policy_monthly_interest_percent" gorm:"column:billing_policy_monthly_interest_percent;type:numeric(8,4);not null;default:0"`
	BillingPolicyGraceDays              int             `json:"billing_policy_grace_days" gorm:"column:billing_policy_grace_days;not null;default:0"`

	// Installments
	BillingPolicyInstallmentsEnabled  bool  `json:"billing_policy_installments_enabled" gorm:"column:billing_policy_installments_enabled;not null;default:false"`
	BillingPolicyMaxInstallments      int   `json:"billing_policy_max_installments" gorm:"column:billing_policy_max_installments;not null;default:1"`
	BillingPolicyMinInstallmentAmount int64 `json:"billing_policy_min_installment_amount" gorm:"column:billing_policy_min_installment_amount;not null;default:0"`

	// Generation & access
	BillingPolicyDefaultDueDay        int `json:"billing_policy_default_due_day" gorm:"column:billing_policy_default_due_day;not null;default:0"`
	BillingPolicyBlockAfterOverdueDays int `json:"billing_policy_block_after_overdue_days" gorm:"column:billing_policy_block_after_overdue_days;not null;default:0"`

	// IANA zone whose calendar decides when a due date has passed
	BillingPolicyTimezone string `json:"billing_policy_timezone" gorm:"column:billing_policy_timezone;type:varchar(64);not null;default:'UTC'"`

	BillingPolicyCreatedAt time.Time `json:"billing_policy_created_at" gorm:"column:billing_policy_created_at;not null;autoCreateTime"`
	BillingPolicyUpdatedAt time.Time `json:"billing_policy_updated_at" gorm:"column:billing_policy_updated_at;not null;autoUpdateTime"`
}

func (BillingPolicy) TableName() string { return "tenant_billing_policies" }

var zones sync.Map // name -> *time.Location

// Location is the policy's zone; empty or unknown names fall back to UTC.
func (p BillingPolicy) Location() *time.Location {
	name := p.BillingPolicyTimezone
	if name == "" || name == "UTC" {
		return time.UTC
	}
	if loc, ok := zones.Load(name); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	zones.Store(name, loc)
	return loc
}

// LocalDate is the tenant's calendar day at t, as a UTC midnight comparable with due dates.
func (p BillingPolicy) LocalDate(t time.Time) time.Time {
	return DateOnly(t.In(p.Location()))
}

// DueDayOrNil returns the default due day as an optional parameter for the generator.
func (p BillingPolicy) DueDayOrNil() *int {
	if p.BillingPolicyDefaultDueDay <= 0 {
		return nil
	}
	d := p.BillingPolicyDefaultDueDay
	return &d
}
