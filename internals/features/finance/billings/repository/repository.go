// file: internals/features/finance/billings/repository/repository.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	m "academia_backend/internals/features/finance/billings/model"
)

// SubscriptionFilter narrows the generator's scope inside one tenant.
type SubscriptionFilter struct {
	PayerIDs []uuid.UUID
	PlanID   *uuid.UUID
}

// Repository is the ledger store. Every charge/member/subscription call is tenant scoped.
// Conditional writes return (false, nil) when the row exists but is no longer open.
type Repository interface {
	// Transaction runs fn against a repository bound to one database transaction.
	// Inside fn only the tx repository may be used.
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	// policies & tenants
	GetPolicy(ctx context.Context, tenantID uuid.UUID) (*m.BillingPolicy, error)
	UpsertPolicy(ctx context.Context, p *m.BillingPolicy) error
	GetTenant(ctx context.Context, tenantID uuid.UUID) (*m.Tenant, error)
	ListTenants(ctx context.Context, statuses ...m.TenantStatus) ([]m.Tenant, error)
	UpdateTenantStatus(ctx context.Context, tenantID uuid.UUID, from []m.TenantStatus, to m.TenantStatus, suspendedAt *time.Time) (bool, error)

	// members & subscriptions
	GetMember(ctx context.Context, tenantID, memberID uuid.UUID) (*m.Member, error)
	SetMemberDeviceUserID(ctx context.Context, tenantID, memberID uuid.UUID, deviceUserID int64, at time.Time) error
	ListActiveSubscriptions(ctx context.Context, tenantID uuid.UUID, f SubscriptionFilter) ([]m.Subscription, error)
	HasActiveSubscription(ctx context.Context, tenantID, payerID uuid.UUID, day time.Time) (bool, error)

	// charges
	GetCharge(ctx context.Context, tenantID, chargeID uuid.UUID) (*m.Charge, error)
	ListChargesByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]m.Charge, error)
	ListChargesForSweep(ctx context.Context, tenantID uuid.UUID, dueBefore time.Time) ([]m.Charge, error)
	ListChargesAwaitingGateway(ctx context.Context, now time.Time, limit int) ([]m.Charge, error)
	GetChargeByGatewayReference(ctx context.Context, reference string) (*m.Charge, error)
	// GetChargeByID is not tenant scoped: only for signed gateway callbacks.
	GetChargeByID(ctx context.Context, chargeID uuid.UUID) (*m.Charge, error)
	ExistsChargeForSubscriptionBetween(ctx context.Context, subscriptionID uuid.UUID, from, to time.Time) (bool, error)
	CountOpenChargesDueBefore(ctx context.Context, tenantID, payerID uuid.UUID, dueBefore time.Time) (int64, error)
	CreateCharge(ctx context.Context, c *m.Charge) error
	CreateCharges(ctx context.Context, cs []m.Charge) error
	ApplyChargeFees(ctx context.Context, tenantID, chargeID uuid.UUID, upd m.ChargeFeeUpdate) (bool, error)
	SettleCharge(ctx context.Context, tenantID, chargeID uuid.UUID, upd m.ChargeSettlementUpdate) (bool, error)
	CancelCharges(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, upd m.ChargeCancelUpdate) (int64, error)
	SetChargeGateway(ctx context.Context, tenantID, chargeID uuid.UUID, upd m.ChargeGatewayUpdate) (bool, error)

	// billing cycles (platform level)
	GetBillingCycle(ctx context.Context, cycleID uuid.UUID) (*m.BillingCycle, error)
	ExistsBillingCycle(ctx context.Context, tenantID uuid.UUID, referenceMonth string) (bool, error)
	CreateBillingCycle(ctx context.Context, bc *m.BillingCycle) error
	ListBillingCyclesForSweep(ctx context.Context, dueBefore time.Time) ([]m.BillingCycle, error)
	MarkBillingCycleOverdue(ctx context.Context, cycleID uuid.UUID) (bool, error)
	SettleBillingCycle(ctx context.Context, cycleID uuid.UUID, upd m.BillingCycleSettlementUpdate) (bool, error)
	CountOpenBillingCyclesDueBefore(ctx context.Context, tenantID uuid.UUID, dueBefore time.Time) (int64, error)
}
