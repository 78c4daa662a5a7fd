package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"academia_backend/internals/configs"
	"academia_backend/internals/databases/dbtest"
	m "academia_backend/internals/features/finance/billings/model"
	"academia_backend/internals/features/finance/billings/repository"
	"academia_backend/internals/features/finance/billings/service"
)

type enqueued struct{ tenant, payer uuid.UUID }

type fakeTrigger struct {
	mu    sync.Mutex
	calls []enqueued
}

func (f *fakeTrigger) Enqueue(tenantID, payerID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, enqueued{tenantID, payerID})
	return true
}

func (f *fakeTrigger) payers() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uuid.UUID, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.payer)
	}
	return out
}

type fixture struct {
	db      *gorm.DB
	repo    repository.Repository
	svc     *service.Service
	opts    service.Options
	trigger *fakeTrigger
	now     time.Time
	tenant  uuid.UUID
	ctx     context.Context
}

func day(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	repo := repository.New(db)
	f := &fixture{
		db:      db,
		repo:    repo,
		trigger: &fakeTrigger{},
		now:     now,
		tenant:  uuid.New(),
		ctx:     context.Background(),
	}
	f.opts = service.Options{
		Defaults: configs.PolicyDefaults{
			MaxInstallments: 1,
		},
		Access:           f.trigger,
		Concurrency:      2,
		SuspendAfterDays: 15,
		Clock:            func() time.Time { return f.now },
	}
	f.svc = service.New(repo, f.opts)
	require.NoError(t, db.Create(&m.Tenant{TenantID: f.tenant, TenantName: "Gym Test"}).Error)
	return f
}

// lateFeePolicy is 10% flat, 2% a month, 3 days of grace.
func (f *fixture) lateFeePolicy(t *testing.T) {
	t.Helper()
	_, err := f.svc.UpdatePolicy(f.ctx, m.BillingPolicy{
		BillingPolicyTenantID:               f.tenant,
		BillingPolicyLateFeePercent:         decimal.NewFromInt(10),
		BillingPolicyMonthlyInterestPercent: decimal.NewFromInt(2),
		BillingPolicyGraceDays:              3,
		BillingPolicyInstallmentsEnabled:    true,
		BillingPolicyMaxInstallments:        6,
		BillingPolicyMinInstallmentAmount:   1000,
	})
	require.NoError(t, err)
}

func (f *fixture) charge(t *testing.T, payer uuid.UUID, amount int64, due time.Time, status m.ChargeStatus) m.Charge {
	t.Helper()
	c := m.Charge{
		ChargeTenantID: f.tenant,
		ChargePayerID:  payer,
		ChargeAmount:   amount,
		ChargeDueDate:  due,
		ChargeStatus:   status,
	}
	require.NoError(t, f.db.Create(&c).Error)
	return c
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) m.Charge {
	t.Helper()
	var c m.Charge
	require.NoError(t, f.db.Where("charge_id = ?", id).Take(&c).Error)
	return c
}

func (f *fixture) countCharges(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&m.Charge{}).Where("charge_tenant_id = ?", f.tenant).Count(&n).Error)
	return n
}

// on builds a second service over repo, sharing the fixture's clock and trigger.
func (f *fixture) on(repo repository.Repository) *service.Service {
	return service.New(repo, f.opts)
}

// faultyRepo injects store failures into an otherwise real repository,
// including inside transactions.
type faultyRepo struct {
	repository.Repository
	failFeesFor uuid.UUID
	cancelErr   error
	cancelShort bool
	tenantErr   error
}

func (r *faultyRepo) Transaction(ctx context.Context, fn func(tx repository.Repository) error) error {
	return r.Repository.Transaction(ctx, func(tx repository.Repository) error {
		wrapped := *r
		wrapped.Repository = tx
		return fn(&wrapped)
	})
}

func (r *faultyRepo) ApplyChargeFees(ctx context.Context, tenantID, chargeID uuid.UUID, upd m.ChargeFeeUpdate) (bool, error) {
	if chargeID == r.failFeesFor {
		return false, fmt.Errorf("apply charge fees: %w", repository.ErrTransient)
	}
	return r.Repository.ApplyChargeFees(ctx, tenantID, chargeID, upd)
}

func (r *faultyRepo) CancelCharges(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID, upd m.ChargeCancelUpdate) (int64, error) {
	if r.cancelErr != nil {
		return 0, r.cancelErr
	}
	if r.cancelShort && len(ids) > 0 {
		ids = ids[:len(ids)-1]
	}
	return r.Repository.CancelCharges(ctx, tenantID, ids, upd)
}

func (r *faultyRepo) GetTenant(ctx context.Context, tenantID uuid.UUID) (*m.Tenant, error) {
	if r.tenantErr != nil {
		return nil, r.tenantErr
	}
	return r.Repository.GetTenant(ctx, tenantID)
}
