package configs

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoadBillingConfigDefaults(t *testing.T) {
	for _, k := range []string{
		"BILLING_LATE_FEE_PERCENT", "BILLING_GRACE_DAYS", "BILLING_SWEEP_INTERVAL", "PLATFORM_SUSPEND_AFTER_DAYS",
		"BILLING_TIMEZONE",
	} {
		t.Setenv(k, "")
	}

	cfg := LoadBillingConfig()

	assert.True(t, cfg.Policy.LateFeePercent.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, 0, cfg.Policy.GraceDays)
	assert.Equal(t, "UTC", cfg.Policy.Timezone)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, 15, cfg.PlatformSuspendAfterDays)
	assert.Equal(t, "access_reconcile", cfg.ReconcileChannel)
}

func TestLoadBillingConfigFromEnv(t *testing.T) {
	t.Setenv("BILLING_LATE_FEE_PERCENT", "10")
	t.Setenv("BILLING_MONTHLY_INTEREST_PERCENT", "2.5")
	t.Setenv("BILLING_GRACE_DAYS", "3")
	t.Setenv("BILLING_INSTALLMENTS_ENABLED", "true")
	t.Setenv("BILLING_MAX_INSTALLMENTS", "12")
	t.Setenv("BILLING_SWEEP_INTERVAL", "15m")
	t.Setenv("BILLING_TIMEZONE", "Asia/Jakarta")

	cfg := LoadBillingConfig()
	assert.Equal(t, "Asia/Jakarta", cfg.Policy.Timezone)

	assert.True(t, cfg.Policy.LateFeePercent.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "2.5", cfg.Policy.MonthlyInterestPercent.String())
	assert.Equal(t, 3, cfg.Policy.GraceDays)
	assert.True(t, cfg.Policy.InstallmentsEnabled)
	assert.Equal(t, 12, cfg.Policy.MaxInstallments)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
}

func TestLoadBillingConfigIgnoresGarbage(t *testing.T) {
	t.Setenv("BILLING_LATE_FEE_PERCENT", "-4")
	t.Setenv("BILLING_GRACE_DAYS", "three")
	t.Setenv("BILLING_SWEEP_INTERVAL", "soon")

	cfg := LoadBillingConfig()

	assert.True(t, cfg.Policy.LateFeePercent.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, 0, cfg.Policy.GraceDays)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
}
