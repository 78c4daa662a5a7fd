// file: internals/features/finance/payments/model/payment_gateway_events_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*
  payment_gateway_events = webhook / callback log from the payment gateway
  - many rows per charge (one per notification)
  - keeps raw headers, payload and signature for replay
*/

type PaymentGatewayEvent struct {
	GatewayEventID uuid.UUID `gorm:"column:gateway_event_id;type:uuid;primaryKey" json:"gateway_event_id"`

	GatewayEventTenantID *uuid.UUID `gorm:"column:gateway_event_tenant_id;type:uuid;index" json:"gateway_event_tenant_id,omitempty"`
	GatewayEventChargeID *uuid.UUID `gorm:"column:gateway_event_charge_id;type:uuid;index" json:"gateway_event_charge_id,omitempty"`

	// Provider & event identity
	GatewayEventProvider    PaymentGatewayProvider `gorm:"column:gateway_event_provider;type:varchar(20);not null" json:"gateway_event_provider"`
	GatewayEventType        *string                `gorm:"column:gateway_event_type;type:varchar(40)" json:"gateway_event_type,omitempty"`
	GatewayEventExternalID  *string                `gorm:"column:gateway_event_external_id;type:varchar(100)" json:"gateway_event_external_id,omitempty"`
	GatewayEventExternalRef *string                `gorm:"column:gateway_event_external_ref;type:varchar(100);index" json:"gateway_event_external_ref,omitempty"`

	// Raw data
	GatewayEventHeaders   datatypes.JSON `gorm:"column:gateway_event_headers" json:"gateway_event_headers,omitempty"`
	GatewayEventPayload   datatypes.JSON `gorm:"column:gateway_event_payload" json:"gateway_event_payload,omitempty"`
	GatewayEventSignature *string        `gorm:"column:gateway_event_signature;type:text" json:"gateway_event_signature,omitempty"`

	// Internal processing status
	GatewayEventStatus   GatewayEventStatus `gorm:"column:gateway_event_status;type:varchar(20);not null;default:'received'" json:"gateway_event_status"`
	GatewayEventError    *string            `gorm:"column:gateway_event_error;type:text" json:"gateway_event_error,omitempty"`
	GatewayEventTryCount int                `gorm:"column:gateway_event_try_count;not null;default:0" json:"gateway_event_try_count"`

	GatewayEventReceivedAt  time.Time  `gorm:"column:gateway_event_received_at;not null" json:"gateway_event_received_at"`
	GatewayEventProcessedAt *time.Time `gorm:"column:gateway_event_processed_at" json:"gateway_event_processed_at,omitempty"`

	GatewayEventCreatedAt time.Time `gorm:"column:gateway_event_created_at;not null;autoCreateTime" json:"gateway_event_created_at"`
	GatewayEventUpdatedAt time.Time `gorm:"column:gateway_event_updated_at;not null;autoUpdateTime" json:"gateway_event_updated_at"`
}

func (PaymentGatewayEvent) TableName() string {
	return "payment_gateway_events"
}

func (e *PaymentGatewayEvent) BeforeCreate(tx *gorm.DB) error {
	if e.GatewayEventID == uuid.Nil {
		e.GatewayEventID = uuid.New()
	}
	if e.GatewayEventStatus == "" {
		e.GatewayEventStatus = GatewayEventStatusReceived
	}
	if e.GatewayEventReceivedAt.IsZero() {
		e.GatewayEventReceivedAt = time.Now().UTC()
	}
	return nil
}

func AllModels() []any {
	return []any{&PaymentGatewayEvent{}}
}
