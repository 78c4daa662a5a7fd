package service_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "academia_backend/internals/features/finance/billings/model"
	"academia_backend/internals/features/finance/billings/repository"
	"academia_backend/internals/features/finance/billings/service"
)

func TestBillingCycleLifecycle(t *testing.T) {
	f := newFixture(t, time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC))
	require.NoError(t, f.db.Model(&m.Tenant{}).Where("tenant_id = ?", f.tenant).
		Updates(map[string]any{"tenant_platform_price": 19900, "tenant_billing_day": 31}).Error)
	free := m.Tenant{TenantName: "Free Gym"}
	require.NoError(t, f.db.Create(&free).Error)

	res, err := f.svc.GenerateBillingCycles(f.ctx, "2025-02")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Skipped)

	var bc m.BillingCycle
	require.NoError(t, f.db.Where("billing_cycle_tenant_id = ?", f.tenant).Take(&bc).Error)
	assert.Equal(t, int64(19900), bc.BillingCycleAmount)
	assert.True(t, bc.BillingCycleDueDate.Equal(day(2025, 2, 28)), bc.BillingCycleDueDate)

	res, err = f.svc.GenerateBillingCycles(f.ctx, "2025-02")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)

	// a few days late: overdue, tenant still active
	f.now = time.Date(2025, 3, 5, 3, 0, 0, 0, time.UTC)
	sw, err := f.svc.SweepBillingCycles(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sw.MarkedOverdue)
	assert.Equal(t, 0, sw.Suspended)

	// past the suspension window
	f.now = time.Date(2025, 3, 20, 3, 0, 0, 0, time.UTC)
	sw, err = f.svc.SweepBillingCycles(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sw.Suspended)

	tenant, err := f.repo.GetTenant(f.ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, m.TenantStatusSuspended, tenant.TenantStatus)
	assert.NotNil(t, tenant.TenantSuspendedAt)

	paid, err := f.svc.MarkBillingCyclePaid(f.ctx, bc.BillingCycleID, service.BillingCyclePaymentInput{})
	require.NoError(t, err)
	assert.Equal(t, m.ChargeStatusPaid, paid.BillingCycleStatus)

	tenant, err = f.repo.GetTenant(f.ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, m.TenantStatusActive, tenant.TenantStatus)
	assert.Nil(t, tenant.TenantSuspendedAt)

	_, err = f.svc.MarkBillingCyclePaid(f.ctx, bc.BillingCycleID, service.BillingCyclePaymentInput{})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestUpdatePolicyValidation(t *testing.T) {
	f := newFixture(t, time.Now())
	p := f.svc.DefaultPolicy(f.tenant)
	p.BillingPolicyGraceDays = -1
	p.BillingPolicyMaxInstallments = 0
	p.BillingPolicyTimezone = "Mars/Olympus"

	_, err := f.svc.UpdatePolicy(f.ctx, p)
	var ve *service.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "grace_days")
	assert.Contains(t, ve.Fields, "max_installments")
	assert.Contains(t, ve.Fields, "timezone")

	_, stored, err := f.svc.GetPolicy(f.ctx, f.tenant)
	require.NoError(t, err)
	assert.False(t, stored)
}

func TestMarkBillingCyclePaidSurvivesTenantLookupFailure(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 20, 3, 0, 0, 0, time.UTC))
	bc := m.BillingCycle{
		BillingCycleTenantID:       f.tenant,
		BillingCycleReferenceMonth: "2025-02",
		BillingCycleDueDate:        day(2025, 2, 28),
		BillingCycleAmount:         19900,
		BillingCycleStatus:         m.ChargeStatusOverdue,
	}
	require.NoError(t, f.db.Create(&bc).Error)

	ref := "TRF-001"
	svc := f.on(&faultyRepo{Repository: f.repo, tenantErr: fmt.Errorf("get tenant: %w", repository.ErrTransient)})
	paid, err := svc.MarkBillingCyclePaid(f.ctx, bc.BillingCycleID, service.BillingCyclePaymentInput{Reference: &ref})
	require.NoError(t, err)
	assert.Equal(t, m.ChargeStatusPaid, paid.BillingCycleStatus)
	require.NotNil(t, paid.BillingCycleSettlementRef)
	assert.Equal(t, ref, *paid.BillingCycleSettlementRef)

	stored, err := f.repo.GetBillingCycle(f.ctx, bc.BillingCycleID)
	require.NoError(t, err)
	assert.Equal(t, m.ChargeStatusPaid, stored.BillingCycleStatus)

	// a retry now sees the payment, not a second settlement
	_, err = f.svc.MarkBillingCyclePaid(f.ctx, bc.BillingCycleID, service.BillingCyclePaymentInput{})
	assert.ErrorIs(t, err, repository.ErrConflict)
}
