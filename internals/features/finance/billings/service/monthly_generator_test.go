package service_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "academia_backend/internals/features/finance/billings/model"
	"academia_backend/internals/features/finance/billings/service"
)

func (f *fixture) subscribe(t *testing.T, price int64, start time.Time, end *time.Time) (m.Plan, m.Subscription) {
	t.Helper()
	plan := m.Plan{PlanTenantID: f.tenant, PlanName: "Jiu-Jitsu Adult", PlanPrice: price, PlanIsActive: true}
	require.NoError(t, f.db.Create(&plan).Error)
	sub := m.Subscription{
		SubscriptionTenantID:  f.tenant,
		SubscriptionPayerID:   uuid.New(),
		SubscriptionPlanID:    plan.PlanID,
		SubscriptionStartDate: start,
		SubscriptionEndDate:   end,
	}
	require.NoError(t, f.db.Create(&sub).Error)
	return plan, sub
}

func TestGenerateMonthlyIsIdempotent(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC))
	_, sub := f.subscribe(t, 5000, day(2025, 1, 20), nil)
	dueDay := 10

	in := service.GenerateInput{TenantID: f.tenant, ReferenceMonth: "2025-03", DueDay: &dueDay}
	res, err := f.svc.GenerateMonthly(f.ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Skipped)

	var charges []m.Charge
	require.NoError(t, f.db.Where("charge_subscription_id = ?", sub.SubscriptionID).Find(&charges).Error)
	require.Len(t, charges, 1)
	c := charges[0]
	assert.Equal(t, int64(5000), c.ChargeAmount)
	assert.Equal(t, m.ChargeStatusPending, c.ChargeStatus)
	assert.True(t, c.ChargeDueDate.Equal(day(2025, 3, 10)), c.ChargeDueDate)
	assert.Equal(t, sub.SubscriptionPayerID, c.ChargePayerID)
	require.NotNil(t, c.ChargeReferenceMonth)
	assert.Equal(t, "2025-03", *c.ChargeReferenceMonth)

	res, err = f.svc.GenerateMonthly(f.ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, int64(1), f.countCharges(t))
}

func TestGenerateMonthlyDueDay(t *testing.T) {
	f := newFixture(t, time.Date(2025, 2, 1, 6, 0, 0, 0, time.UTC))
	_, sub := f.subscribe(t, 8000, day(2024, 10, 31), nil)

	// start day 31 clamps to the end of February
	res, err := f.svc.GenerateMonthly(f.ctx, service.GenerateInput{TenantID: f.tenant, ReferenceMonth: "2025-02"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	var c m.Charge
	require.NoError(t, f.db.Where("charge_subscription_id = ?", sub.SubscriptionID).Take(&c).Error)
	assert.True(t, c.ChargeDueDate.Equal(day(2025, 2, 28)), c.ChargeDueDate)
}

func TestGenerateMonthlySkipsSubscriptionsOutsideMonth(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC))
	ended := day(2025, 2, 20)
	f.subscribe(t, 5000, day(2024, 6, 1), &ended)
	f.subscribe(t, 5000, day(2025, 4, 1), nil)

	res, err := f.svc.GenerateMonthly(f.ctx, service.GenerateInput{TenantID: f.tenant, ReferenceMonth: "2025-03"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, int64(0), f.countCharges(t))
}

func TestGenerateMonthlyFiltersByPayer(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC))
	_, a := f.subscribe(t, 5000, day(2025, 1, 5), nil)
	f.subscribe(t, 7000, day(2025, 1, 5), nil)

	res, err := f.svc.GenerateMonthly(f.ctx, service.GenerateInput{
		TenantID:       f.tenant,
		ReferenceMonth: "2025-03",
		PayerIDs:       []uuid.UUID{a.SubscriptionPayerID},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, int64(1), f.countCharges(t))
}

func TestGenerateMonthlyValidation(t *testing.T) {
	f := newFixture(t, time.Now())
	bad := 32

	_, err := f.svc.GenerateMonthly(f.ctx, service.GenerateInput{TenantID: f.tenant, ReferenceMonth: "2025-13", DueDay: &bad})
	var ve *service.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "reference_month")
	assert.Contains(t, ve.Fields, "due_day")
}

func TestGenerateAllUsesPolicyDueDay(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC))
	_, sub := f.subscribe(t, 5000, day(2025, 1, 20), nil)
	p := f.svc.DefaultPolicy(f.tenant)
	p.BillingPolicyDefaultDueDay = 5
	_, err := f.svc.UpdatePolicy(f.ctx, p)
	require.NoError(t, err)

	res, err := f.svc.GenerateAll(f.ctx, "2025-03")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	var c m.Charge
	require.NoError(t, f.db.Where("charge_subscription_id = ?", sub.SubscriptionID).Take(&c).Error)
	assert.True(t, c.ChargeDueDate.Equal(day(2025, 3, 5)), c.ChargeDueDate)
}
