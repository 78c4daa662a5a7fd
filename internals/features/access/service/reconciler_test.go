package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"academia_backend/internals/configs"
	"academia_backend/internals/databases/dbtest"
	"academia_backend/internals/features/access/service"
	m "academia_backend/internals/features/finance/billings/model"
	"academia_backend/internals/features/finance/billings/repository"
	billingsvc "academia_backend/internals/features/finance/billings/service"
)

type fakeDevice struct {
	mu       sync.Mutex
	calls    []string
	nextID   int64
	failWith error
	delay    time.Duration
}

func (d *fakeDevice) record(call string) error {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
	return d.failWith
}

func (d *fakeDevice) Enroll(_ context.Context, label, code string) (int64, error) {
	if err := d.record("enroll:" + code); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID, nil
}

func (d *fakeDevice) GrantAccess(_ context.Context, id, group int64) error {
	return d.record(fmt.Sprintf("grant:%d:%d", id, group))
}

func (d *fakeDevice) DenyAccess(_ context.Context, id int64) error {
	return d.record(fmt.Sprintf("deny:%d", id))
}

func (d *fakeDevice) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

type fixture struct {
	db      *gorm.DB
	repo    repository.Repository
	billing *billingsvc.Service
	dev     *fakeDevice
	rec     *service.Reconciler
	tenant  uuid.UUID
	now     time.Time
	ctx     context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	repo := repository.New(db)
	f := &fixture{
		db:     db,
		repo:   repo,
		dev:    &fakeDevice{nextID: 500},
		tenant: uuid.New(),
		now:    time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
		ctx:    context.Background(),
	}
	clock := func() time.Time { return f.now }
	f.billing = billingsvc.New(repo, billingsvc.Options{
		Defaults: configs.PolicyDefaults{MaxInstallments: 1},
		Clock:    clock,
	})
	f.rec = service.NewReconciler(repo, f.billing, f.dev, service.Options{GroupID: 7, Clock: clock})
	require.NoError(t, db.Create(&m.Tenant{TenantID: f.tenant, TenantName: "Gym Test"}).Error)
	return f
}

func (f *fixture) member(t *testing.T, status m.MembershipStatus, deviceID *int64) m.Member {
	t.Helper()
	mem := m.Member{
		MemberTenantID:     f.tenant,
		MemberName:         "Ana Souza",
		MemberStatus:       status,
		MemberExternalCode: "M-" + uuid.NewString()[:8],
		MemberDeviceUserID: deviceID,
	}
	require.NoError(t, f.db.Create(&mem).Error)
	return mem
}

func (f *fixture) subscribe(t *testing.T, memberID uuid.UUID, status m.SubscriptionStatus, end *time.Time) {
	t.Helper()
	plan := m.Plan{PlanTenantID: f.tenant, PlanName: "Muay Thai", PlanPrice: 15000, PlanIsActive: true}
	require.NoError(t, f.db.Create(&plan).Error)
	require.NoError(t, f.db.Create(&m.Subscription{
		SubscriptionTenantID:  f.tenant,
		SubscriptionPayerID:   memberID,
		SubscriptionPlanID:    plan.PlanID,
		SubscriptionStatus:    status,
		SubscriptionStartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		SubscriptionEndDate:   end,
	}).Error)
}

func (f *fixture) openCharge(t *testing.T, memberID uuid.UUID, due time.Time) {
	t.Helper()
	require.NoError(t, f.db.Create(&m.Charge{
		ChargeTenantID: f.tenant,
		ChargePayerID:  memberID,
		ChargeAmount:   15000,
		ChargeDueDate:  due,
		ChargeStatus:   m.ChargeStatusOverdue,
	}).Error)
}

func (f *fixture) blockAfter(t *testing.T, days int) {
	t.Helper()
	p := f.billing.DefaultPolicy(f.tenant)
	p.BillingPolicyBlockAfterOverdueDays = days
	_, err := f.billing.UpdatePolicy(f.ctx, p)
	require.NoError(t, err)
}

func int64p(v int64) *int64 { return &v }

func TestReconcileEnrollsThenGrants(t *testing.T) {
	f := newFixture(t)
	mem := f.member(t, m.MembershipStatusActive, nil)
	f.subscribe(t, mem.MemberID, m.SubscriptionStatusActive, nil)

	out, err := f.rec.Reconcile(f.ctx, f.tenant, mem.MemberID)
	require.NoError(t, err)
	assert.Equal(t, service.DecisionGrant, out.Decision)
	assert.Equal(t, service.ActionEnrolledGranted, out.Action)
	require.NotNil(t, out.DeviceUserID)
	assert.Equal(t, int64(501), *out.DeviceUserID)
	assert.Equal(t, []string{"enroll:" + mem.MemberExternalCode, "grant:501:7"}, f.dev.Calls())

	stored, err := f.repo.GetMember(f.ctx, f.tenant, mem.MemberID)
	require.NoError(t, err)
	require.NotNil(t, stored.MemberDeviceUserID)
	assert.Equal(t, int64(501), *stored.MemberDeviceUserID)
	assert.NotNil(t, stored.MemberDeviceEnrolledAt)

	// enrolled now: a single grant, no second enrollment
	out, err = f.rec.Reconcile(f.ctx, f.tenant, mem.MemberID)
	require.NoError(t, err)
	assert.Equal(t, service.ActionGranted, out.Action)
	assert.Len(t, f.dev.Calls(), 3)
}

func TestReconcileNeverGrantsWithoutActiveSubscription(t *testing.T) {
	expired := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		setup func(t *testing.T, f *fixture, memberID uuid.UUID)
	}{
		{"no subscription", func(*testing.T, *fixture, uuid.UUID) {}},
		{"ended yesterday", func(t *testing.T, f *fixture, id uuid.UUID) {
			f.subscribe(t, id, m.SubscriptionStatusActive, &expired)
		}},
		{"cancelled", func(t *testing.T, f *fixture, id uuid.UUID) {
			f.subscribe(t, id, m.SubscriptionStatusCancelled, nil)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			enrolled := f.member(t, m.MembershipStatusActive, int64p(42))
			fresh := f.member(t, m.MembershipStatusActive, nil)
			tc.setup(t, f, enrolled.MemberID)
			tc.setup(t, f, fresh.MemberID)

			out, err := f.rec.Reconcile(f.ctx, f.tenant, enrolled.MemberID)
			require.NoError(t, err)
			assert.Equal(t, service.DecisionDeny, out.Decision)
			assert.Equal(t, service.ActionDenied, out.Action)

			// no credential + deny = nothing to send
			out, err = f.rec.Reconcile(f.ctx, f.tenant, fresh.MemberID)
			require.NoError(t, err)
			assert.Equal(t, service.DecisionDeny, out.Decision)
			assert.Equal(t, service.ActionSkipped, out.Action)

			assert.Equal(t, []string{"deny:42"}, f.dev.Calls())
		})
	}
}

func TestReconcileDeniesInactiveMember(t *testing.T) {
	f := newFixture(t)
	mem := f.member(t, m.MembershipStatusBlocked, int64p(9))
	f.subscribe(t, mem.MemberID, m.SubscriptionStatusActive, nil)

	out, err := f.rec.Reconcile(f.ctx, f.tenant, mem.MemberID)
	require.NoError(t, err)
	assert.Equal(t, service.DecisionDeny, out.Decision)
	assert.Equal(t, "member blocked", out.Reason)
	assert.Equal(t, []string{"deny:9"}, f.dev.Calls())
}

func TestReconcileBlocksOnOldDebt(t *testing.T) {
	f := newFixture(t)
	f.blockAfter(t, 5)

	recent := f.member(t, m.MembershipStatusActive, int64p(1))
	f.subscribe(t, recent.MemberID, m.SubscriptionStatusActive, nil)
	f.openCharge(t, recent.MemberID, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)) // 5 days

	late := f.member(t, m.MembershipStatusActive, int64p(2))
	f.subscribe(t, late.MemberID, m.SubscriptionStatusActive, nil)
	f.openCharge(t, late.MemberID, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)) // 6 days

	out, err := f.rec.Reconcile(f.ctx, f.tenant, recent.MemberID)
	require.NoError(t, err)
	assert.Equal(t, service.DecisionGrant, out.Decision)

	out, err = f.rec.Reconcile(f.ctx, f.tenant, late.MemberID)
	require.NoError(t, err)
	assert.Equal(t, service.DecisionDeny, out.Decision)
	assert.Equal(t, "overdue charges", out.Reason)
}

func TestReconcileIgnoresDebtWhenPolicyDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	mem := f.member(t, m.MembershipStatusActive, int64p(1))
	f.subscribe(t, mem.MemberID, m.SubscriptionStatusActive, nil)
	f.openCharge(t, mem.MemberID, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC))

	out, err := f.rec.Reconcile(f.ctx, f.tenant, mem.MemberID)
	require.NoError(t, err)
	assert.Equal(t, service.DecisionGrant, out.Decision)
}

func TestReconcileSwallowsDeviceErrors(t *testing.T) {
	f := newFixture(t)
	mem := f.member(t, m.MembershipStatusActive, int64p(3))
	f.subscribe(t, mem.MemberID, m.SubscriptionStatusActive, nil)
	f.dev.failWith = errors.New("turnstile offline")

	out, err := f.rec.Reconcile(f.ctx, f.tenant, mem.MemberID)
	require.NoError(t, err)
	assert.Equal(t, service.DecisionGrant, out.Decision)
	assert.Equal(t, service.ActionFailed, out.Action)
	assert.Equal(t, "turnstile offline", out.DeviceError)
}

func TestReconcileFailedEnrollmentPersistsNothing(t *testing.T) {
	f := newFixture(t)
	mem := f.member(t, m.MembershipStatusActive, nil)
	f.subscribe(t, mem.MemberID, m.SubscriptionStatusActive, nil)
	f.dev.failWith = errors.New("turnstile offline")

	out, err := f.rec.Reconcile(f.ctx, f.tenant, mem.MemberID)
	require.NoError(t, err)
	assert.Equal(t, service.ActionFailed, out.Action)

	stored, err := f.repo.GetMember(f.ctx, f.tenant, mem.MemberID)
	require.NoError(t, err)
	assert.Nil(t, stored.MemberDeviceUserID)
}

func TestReconcileUnknownMember(t *testing.T) {
	f := newFixture(t)
	_, err := f.rec.Reconcile(f.ctx, f.tenant, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// other tenant's member is invisible
	mem := f.member(t, m.MembershipStatusActive, nil)
	_, err = f.rec.Reconcile(f.ctx, uuid.New(), mem.MemberID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, f.dev.Calls())
}

func TestReconcileUsesTenantCalendar(t *testing.T) {
	f := newFixture(t)
	p := f.billing.DefaultPolicy(f.tenant)
	p.BillingPolicyTimezone = "America/Sao_Paulo"
	_, err := f.billing.UpdatePolicy(f.ctx, p)
	require.NoError(t, err)

	lastDay := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	mem := f.member(t, m.MembershipStatusActive, int64p(4))
	f.subscribe(t, mem.MemberID, m.SubscriptionStatusActive, &lastDay)

	// 23:00 on the 14th at the gym, already the 15th in UTC
	f.now = time.Date(2025, 3, 15, 2, 0, 0, 0, time.UTC)
	out, err := f.rec.Reconcile(f.ctx, f.tenant, mem.MemberID)
	require.NoError(t, err)
	assert.Equal(t, service.DecisionGrant, out.Decision)

	f.now = time.Date(2025, 3, 15, 3, 0, 0, 0, time.UTC)
	out, err = f.rec.Reconcile(f.ctx, f.tenant, mem.MemberID)
	require.NoError(t, err)
	assert.Equal(t, service.DecisionDeny, out.Decision)
}
