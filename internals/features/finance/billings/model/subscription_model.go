// file: internals/features/finance/billings/model/subscription_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/* ==============================
   ENUM: status subscription
============================== */

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

/* ==============================
   MODEL: plans
============================== */

type Plan struct {
	PlanID       uuid.UUID `gorm:"column:plan_id;type:uuid;primaryKey" json:"plan_id"`
	PlanTenantID uuid.UUID `gorm:"column:plan_tenant_id;type:uuid;not null;index" json:"plan_tenant_id"`
	PlanName     string    `gorm:"column:plan_name;type:varchar(120);not null" json:"plan_name"`
	PlanPrice    int64     `gorm:"column:plan_price;not null;check:plan_price>=0" json:"plan_price"`
	PlanIsActive bool      `gorm:"column:plan_is_active;not null;default:true" json:"plan_is_active"`

	PlanCreatedAt time.Time `gorm:"column:plan_created_at;not null;autoCreateTime" json:"plan_created_at"`
	PlanUpdatedAt time.Time `gorm:"column:plan_updated_at;not null;autoUpdateTime" json:"plan_updated_at"`
}

func (Plan) TableName() string { return "plans" }

func (m *Plan) BeforeCreate(tx *gorm.DB) error {
	if m.PlanID == uuid.Nil {
		m.PlanID = uuid.New()
	}
	return nil
}

/* ==============================
   MODEL: subscriptions
============================== */

type Subscription struct {
	SubscriptionID        uuid.UUID          `gorm:"column:subscription_id;type:uuid;primaryKey" json:"subscription_id"`
	SubscriptionTenantID  uuid.UUID          `gorm:"column:subscription_tenant_id;type:uuid;not null;index:ix_subscriptions_tenant_status,priority:1" json:"subscription_tenant_id"`
	SubscriptionPayerID   uuid.UUID          `gorm:"column:subscription_payer_id;type:uuid;not null;index" json:"subscription_payer_id"`
	SubscriptionPlanID    uuid.UUID          `gorm:"column:subscription_plan_id;type:uuid;not null;index" json:"subscription_plan_id"`
	SubscriptionStatus    SubscriptionStatus `gorm:"column:subscription_status;type:varchar(20);not null;default:'active';index:ix_subscriptions_tenant_status,priority:2" json:"subscription_status"`
	SubscriptionStartDate time.Time          `gorm:"column:subscription_start_date;type:date;not null" json:"subscription_start_date"`
	SubscriptionEndDate   *time.Time         `gorm:"column:subscription_end_date;type:date" json:"subscription_end_date,omitempty"`

	Plan *Plan `gorm:"foreignKey:SubscriptionPlanID;references:PlanID" json:"plan,omitempty"`

	SubscriptionCreatedAt time.Time `gorm:"column:subscription_created_at;not null;autoCreateTime" json:"subscription_created_at"`
	SubscriptionUpdatedAt time.Time `gorm:"column:subscription_updated_at;not null;autoUpdateTime" json:"subscription_updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

func (m *Subscription) BeforeCreate(tx *gorm.DB) error {
	if m.SubscriptionID == uuid.Nil {
		m.SubscriptionID = uuid.New()
	}
	if m.SubscriptionStatus == "" {
		m.SubscriptionStatus = SubscriptionStatusActive
	}
	m.SubscriptionStartDate = DateOnly(m.SubscriptionStartDate)
	if m.SubscriptionEndDate != nil {
		end := DateOnly(*m.SubscriptionEndDate)
		m.SubscriptionEndDate = &end
	}
	return nil
}

// CoversDay reports whether an active subscription is in force on the given day.
func (m Subscription) CoversDay(day time.Time) bool {
	if m.SubscriptionStatus != SubscriptionStatusActive {
		return false
	}
	day = DateOnly(day)
	if day.Before(m.SubscriptionStartDate) {
		return false
	}
	return m.SubscriptionEndDate == nil || !day.After(*m.SubscriptionEndDate)
}
