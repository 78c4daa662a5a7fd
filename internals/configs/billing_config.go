package configs

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PolicyDefaults apply to tenants that never stored their own billing policy.
type PolicyDefaults struct {
	LateFeePercent         decimal.Decimal
	MonthlyInterestPercent decimal.Decimal
	GraceDays              int
	InstallmentsEnabled    bool
	MaxInstallments        int
	MinInstallmentCents    int64
	DefaultDueDay          int
	BlockAfterOverdueDays  int
	Timezone               string
}

type BillingConfig struct {
	Policy PolicyDefaults

	// batch jobs
	SchedulerEnabled    bool
	SweepInterval       time.Duration
	GenerateInterval    time.Duration
	GatewayPollInterval time.Duration
	BatchConcurrency    int
	SchedulerLockTTL    time.Duration
	RedisURL            string

	// access reconciliation
	ReconcileWorkers    int
	ReconcileQueueSize  int
	ReconcileJobTimeout time.Duration
	DeviceTimeout       time.Duration
	DeviceRatePerSecond float64
	DeviceBurst         int
	ReconcileChannel    string
	DeviceBaseURL       string
	DeviceLogin         string
	DevicePassword      string
	DeviceGroupID       int64

	// platform (tenant) billing
	PlatformSuspendAfterDays int

	// gateway
	MidtransServerKey string
	MidtransEnv       string
	GatewayExpiry     time.Duration
}

func LoadBillingConfig() BillingConfig {
	return BillingConfig{
		Policy: PolicyDefaults{
			LateFeePercent:         getDecimal("BILLING_LATE_FEE_PERCENT", decimal.NewFromInt(2)),
			MonthlyInterestPercent: getDecimal("BILLING_MONTHLY_INTEREST_PERCENT", decimal.NewFromInt(1)),
			GraceDays:              getInt("BILLING_GRACE_DAYS", 0),
			InstallmentsEnabled:    getBool("BILLING_INSTALLMENTS_ENABLED", false),
			MaxInstallments:        getInt("BILLING_MAX_INSTALLMENTS", 1),
			MinInstallmentCents:    int64(getInt("BILLING_MIN_INSTALLMENT_CENTS", 0)),
			DefaultDueDay:          getInt("BILLING_DEFAULT_DUE_DAY", 0),
			BlockAfterOverdueDays:  getInt("BILLING_BLOCK_AFTER_OVERDUE_DAYS", 0),
			Timezone:               getString("BILLING_TIMEZONE", "UTC"),
		},

		SchedulerEnabled:    getBool("BILLING_SCHEDULER_ENABLED", true),
		SweepInterval:       getDuration("BILLING_SWEEP_INTERVAL", time.Hour),
		GenerateInterval:    getDuration("BILLING_GENERATE_INTERVAL", 6*time.Hour),
		GatewayPollInterval: getDuration("BILLING_GATEWAY_POLL_INTERVAL", time.Minute),
		BatchConcurrency:    getInt("BILLING_BATCH_CONCURRENCY", 8),
		SchedulerLockTTL:    getDuration("BILLING_SCHEDULER_LOCK_TTL", 10*time.Minute),
		RedisURL:            GetEnv("REDIS_URL"),

		ReconcileWorkers:    getInt("ACCESS_RECONCILE_WORKERS", 4),
		ReconcileQueueSize:  getInt("ACCESS_RECONCILE_QUEUE", 256),
		ReconcileJobTimeout: getDuration("ACCESS_RECONCILE_TIMEOUT", 15*time.Second),
		DeviceTimeout:       getDuration("ACCESS_DEVICE_TIMEOUT", 5*time.Second),
		DeviceRatePerSecond: float64(getInt("ACCESS_DEVICE_RPS", 5)),
		DeviceBurst:         getInt("ACCESS_DEVICE_BURST", 5),
		ReconcileChannel:    GetEnv("ACCESS_RECONCILE_CHANNEL", "access_reconcile"),
		DeviceBaseURL:       GetEnv("ACCESS_DEVICE_URL"),
		DeviceLogin:         GetEnv("ACCESS_DEVICE_LOGIN", "admin"),
		DevicePassword:      GetEnv("ACCESS_DEVICE_PASSWORD"),
		DeviceGroupID:       int64(getInt("ACCESS_DEVICE_GROUP_ID", 1)),

		PlatformSuspendAfterDays: getInt("PLATFORM_SUSPEND_AFTER_DAYS", 15),

		MidtransServerKey: GetEnv("MIDTRANS_SERVER_KEY"),
		MidtransEnv:       GetEnv("MIDTRANS_ENV", "sandbox"),
		GatewayExpiry:     getDuration("BILLING_GATEWAY_EXPIRY", 30*time.Minute),
	}
}

func getDecimal(key string, def decimal.Decimal) decimal.Decimal {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		log.Printf("⚠️ %s=%q is not a non-negative decimal, using %s", key, v, def)
		return def
	}
	return d
}
