package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	billingdto "academia_backend/internals/features/finance/billings/dto"
	bm "academia_backend/internals/features/finance/billings/model"
	model "academia_backend/internals/features/finance/payments/model"
	paymentrepo "academia_backend/internals/features/finance/payments/repository"
	"academia_backend/internals/features/finance/payments/service"
	helper "academia_backend/internals/helpers"
)

/* =========================================================
   GATEWAY CHARGE
========================================================= */

type GatewayChargeResponse struct {
	ChargeID  uuid.UUID  `json:"charge_id"`
	Amount    int64      `json:"amount"`
	Reference string     `json:"reference"`
	QRPayload string     `json:"qr_payload"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func ToGatewayChargeResponse(c bm.Charge) GatewayChargeResponse {
	out := GatewayChargeResponse{
		ChargeID:  c.ChargeID,
		Amount:    c.ChargeAmount,
		ExpiresAt: c.ChargeGatewayExpiresAt,
	}
	if c.ChargeGatewayReference != nil {
		out.Reference = *c.ChargeGatewayReference
	}
	if c.ChargeGatewayQRPayload != nil {
		out.QRPayload = *c.ChargeGatewayQRPayload
	}
	return out
}

type GatewayPollResponse struct {
	Charge         billingdto.ChargeResponse `json:"charge"`
	GatewayStatus  string                    `json:"gateway_status"`
	GatewaySettled bool                      `json:"gateway_settled"`
	GatewayFinal   bool                      `json:"gateway_final"`
}

func ToGatewayPollResponse(c bm.Charge, st service.GatewayStatus) GatewayPollResponse {
	return GatewayPollResponse{
		Charge:         billingdto.ToChargeResponse(c),
		GatewayStatus:  st.Status,
		GatewaySettled: st.Settled,
		GatewayFinal:   st.Final,
	}
}

/* =========================================================
   EVENT LOG: LIST QUERY
   provider, status, charge_id, tenant_id, q, start, end (RFC3339); paging via helper.ParseFiber
========================================================= */

type GatewayEventListQuery struct {
	Provider string `query:"provider" validate:"omitempty,oneof=midtrans other"`
	Status   string `query:"status" validate:"omitempty,oneof=received processed ignored duplicated failed"`
	ChargeID string `query:"charge_id" validate:"omitempty,uuid"`
	TenantID string `query:"tenant_id" validate:"omitempty,uuid"`
	Q        string `query:"q" validate:"omitempty,max=100"`
	Start    string `query:"start" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	End      string `query:"end" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// EventSortColumns whitelists sort_by values for the event log.
var EventSortColumns = map[string]string{
	"received_at": "gateway_event_received_at",
	"status":      "gateway_event_status",
	"provider":    "gateway_event_provider",
}

// ToFilter assumes the query already passed validation.
func (q GatewayEventListQuery) ToFilter(p helper.Params) paymentrepo.EventFilter {
	f := paymentrepo.EventFilter{
		Provider: strings.TrimSpace(q.Provider),
		Status:   strings.TrimSpace(q.Status),
		Query:    q.Q,
		OrderBy:  p.SafeOrder(EventSortColumns, "received_at"),
		Limit:    p.Limit(),
		Offset:   p.Offset(),
	}
	if id, err := uuid.Parse(q.ChargeID); err == nil {
		f.ChargeID = &id
	}
	if id, err := uuid.Parse(q.TenantID); err == nil {
		f.TenantID = &id
	}
	if t, err := time.Parse(time.RFC3339, q.Start); err == nil {
		f.Start = &t
	}
	if t, err := time.Parse(time.RFC3339, q.End); err == nil {
		f.End = &t
	}
	return f
}

/* =========================================================
   EVENT LOG: RESPONSE
========================================================= */

type GatewayEventResponse struct {
	GatewayEventID uuid.UUID `json:"gateway_event_id"`

	GatewayEventTenantID *uuid.UUID `json:"gateway_event_tenant_id,omitempty"`
	GatewayEventChargeID *uuid.UUID `json:"gateway_event_charge_id,omitempty"`

	GatewayEventProvider    string  `json:"gateway_event_provider"`
	GatewayEventType        *string `json:"gateway_event_type,omitempty"`
	GatewayEventExternalID  *string `json:"gateway_event_external_id,omitempty"`
	GatewayEventExternalRef *string `json:"gateway_event_external_ref,omitempty"`

	GatewayEventHeaders datatypes.JSON `json:"gateway_event_headers,omitempty"`
	GatewayEventPayload datatypes.JSON `json:"gateway_event_payload,omitempty"`

	GatewayEventStatus   string  `json:"gateway_event_status"`
	GatewayEventError    *string `json:"gateway_event_error,omitempty"`
	GatewayEventTryCount int     `json:"gateway_event_try_count"`

	GatewayEventReceivedAt  time.Time  `json:"gateway_event_received_at"`
	GatewayEventProcessedAt *time.Time `json:"gateway_event_processed_at,omitempty"`
}

// FromEventModel never exposes the stored signature.
func FromEventModel(m *model.PaymentGatewayEvent) *GatewayEventResponse {
	if m == nil {
		return nil
	}
	return &GatewayEventResponse{
		GatewayEventID: m.GatewayEventID,

		GatewayEventTenantID: m.GatewayEventTenantID,
		GatewayEventChargeID: m.GatewayEventChargeID,

		GatewayEventProvider:    string(m.GatewayEventProvider),
		GatewayEventType:        m.GatewayEventType,
		GatewayEventExternalID:  m.GatewayEventExternalID,
		GatewayEventExternalRef: m.GatewayEventExternalRef,

		GatewayEventHeaders: m.GatewayEventHeaders,
		GatewayEventPayload: m.GatewayEventPayload,

		GatewayEventStatus:   string(m.GatewayEventStatus),
		GatewayEventError:    m.GatewayEventError,
		GatewayEventTryCount: m.GatewayEventTryCount,

		GatewayEventReceivedAt:  m.GatewayEventReceivedAt,
		GatewayEventProcessedAt: m.GatewayEventProcessedAt,
	}
}
