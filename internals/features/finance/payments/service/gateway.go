package service

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChargeRequest asks the gateway for a QR charge. Amount is in minor units.
type ChargeRequest struct {
	OrderID     string
	Amount      int64
	PayerID     uuid.UUID
	Description string
	Expiry      time.Duration
}

// GatewayCharge is what the payer scans.
type GatewayCharge struct {
	Reference string
	QRPayload string
	ExpiresAt time.Time
}

// GatewayStatus is the gateway's view of a reference.
type GatewayStatus struct {
	Settled   bool
	SettledAt time.Time
	Status    string // raw provider status
	Final     bool   // expired/cancelled/denied: will never settle
	Reference string // provider transaction id, when known
}

// Gateway is the external payment provider.
type Gateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (GatewayCharge, error)
	PollStatus(ctx context.Context, reference string) (GatewayStatus, error)
}
