// file: internals/features/finance/billings/model/tenant_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusCancelled TenantStatus = "cancelled"
)

// Tenant is a gym paying the platform. Device fields point at the gym's own access controller.
type Tenant struct {
	TenantID            uuid.UUID    `gorm:"column:tenant_id;type:uuid;primaryKey" json:"tenant_id"`
	TenantName          string       `gorm:"column:tenant_name;type:varchar(160);not null" json:"tenant_name"`
	TenantStatus        TenantStatus `gorm:"column:tenant_status;type:varchar(20);not null;default:'active';index" json:"tenant_status"`
	TenantPlatformPrice int64        `gorm:"column:tenant_platform_price;not null;default:0" json:"tenant_platform_price"`
	TenantBillingDay    int          `gorm:"column:tenant_billing_day;not null;default:10" json:"tenant_billing_day"`
	TenantSuspendedAt   *time.Time   `gorm:"column:tenant_suspended_at" json:"tenant_suspended_at,omitempty"`

	TenantDeviceBaseURL  *string `gorm:"column:tenant_device_base_url;type:text" json:"tenant_device_base_url,omitempty"`
	TenantDeviceLogin    *string `gorm:"column:tenant_device_login;type:varchar(80)" json:"-"`
	TenantDevicePassword *string `gorm:"column:tenant_device_password;type:varchar(120)" json:"-"`
	TenantDeviceGroupID  int64   `gorm:"column:tenant_device_group_id;not null;default:1" json:"tenant_device_group_id"`

	TenantCreatedAt time.Time `gorm:"column:tenant_created_at;not null;autoCreateTime" json:"tenant_created_at"`
	TenantUpdatedAt time.Time `gorm:"column:tenant_updated_at;not null;autoUpdateTime" json:"tenant_updated_at"`
}

func (Tenant) TableName() string { return "tenants" }

func (m *Tenant) BeforeCreate(tx *gorm.DB) error {
	if m.TenantID == uuid.Nil {
		m.TenantID = uuid.New()
	}
	if m.TenantStatus == "" {
		m.TenantStatus = TenantStatusActive
	}
	return nil
}

// HasDevice reports whether the tenant has an access controller configured.
func (m Tenant) HasDevice() bool {
	return m.TenantDeviceBaseURL != nil && *m.TenantDeviceBaseURL != ""
}

// AllModels lists every table the billing engine owns, in migration order.
func AllModels() []any {
	return []any{
		&Tenant{},
		&BillingPolicy{},
		&Plan{},
		&Member{},
		&Subscription{},
		&Charge{},
		&BillingCycle{},
	}
}
