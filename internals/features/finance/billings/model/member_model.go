// file: internals/features/finance/billings/model/member_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MembershipStatus string

const (
	MembershipStatusActive   MembershipStatus = "active"
	MembershipStatusInactive MembershipStatus = "inactive"
	MembershipStatusBlocked  MembershipStatus = "blocked"
)

// Member is the billing/access view of a gym student. The CRUD layer owns the rest of the record.
type Member struct {
	MemberID           uuid.UUID        `gorm:"column:member_id;type:uuid;primaryKey" json:"member_id"`
	MemberTenantID     uuid.UUID        `gorm:"column:member_tenant_id;type:uuid;not null;index" json:"member_tenant_id"`
	MemberName         string           `gorm:"column:member_name;type:varchar(160);not null" json:"member_name"`
	MemberStatus       MembershipStatus `gorm:"column:member_status;type:varchar(20);not null;default:'active'" json:"member_status"`
	MemberExternalCode string           `gorm:"column:member_external_code;type:varchar(60);not null;default:''" json:"member_external_code"`

	// Access-control device enrollment (nil = no physical credential yet)
	MemberDeviceUserID     *int64     `gorm:"column:member_device_user_id" json:"member_device_user_id,omitempty"`
	MemberDeviceEnrolledAt *time.Time `gorm:"column:member_device_enrolled_at" json:"member_device_enrolled_at,omitempty"`

	MemberCreatedAt time.Time `gorm:"column:member_created_at;not null;autoCreateTime" json:"member_created_at"`
	MemberUpdatedAt time.Time `gorm:"column:member_updated_at;not null;autoUpdateTime" json:"member_updated_at"`
}

func (Member) TableName() string { return "members" }

func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.MemberID == uuid.Nil {
		m.MemberID = uuid.New()
	}
	if m.MemberStatus == "" {
		m.MemberStatus = MembershipStatusActive
	}
	return nil
}
