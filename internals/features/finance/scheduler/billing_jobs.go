package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	billingsvc "academia_backend/internals/features/finance/billings/service"
	paymentsvc "academia_backend/internals/features/finance/payments/service"
	"academia_backend/internals/helpers/dbtime"
)

const (
	JobSweep       = "billing-sweep"
	JobGenerate    = "billing-generate"
	JobGatewayPoll = "gateway-poll"
)

// Billing is the part of the billing service the scheduler drives.
type Billing interface {
	SweepAll(ctx context.Context) (billingsvc.SweepResult, error)
	SweepBillingCycles(ctx context.Context) (billingsvc.BillingCycleSweepResult, error)
	GenerateAll(ctx context.Context, referenceMonth string) (billingsvc.GenerateResult, error)
	GenerateBillingCycles(ctx context.Context, referenceMonth string) (billingsvc.BillingCycleResult, error)
}

// GatewayPoller is satisfied by *paymentsvc.GatewayService.
type GatewayPoller interface {
	PollPending(ctx context.Context) (paymentsvc.PollResult, error)
}

type Intervals struct {
	Sweep       time.Duration
	Generate    time.Duration
	GatewayPoll time.Duration
}

// BillingJobs builds the periodic jobs. A nil poller drops the gateway job.
func BillingJobs(b Billing, poller GatewayPoller, iv Intervals, clock func() time.Time, log *zap.Logger) []Job {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}

	jobs := []Job{
		{
			Name:     JobSweep,
			Interval: iv.Sweep,
			Run: func(ctx context.Context) error {
				res, err := b.SweepAll(ctx)
				if err != nil {
					return err
				}
				cyc, cerr := b.SweepBillingCycles(ctx)
				log.Info("sweep",
					zap.Int("charges_updated", res.Updated),
					zap.Int("charges_failed", res.Failed),
					zap.Int("cycles_overdue", cyc.MarkedOverdue),
					zap.Int("tenants_suspended", cyc.Suspended),
					zap.Int("tenants_reactivated", cyc.Reactivated))
				return cerr
			},
		},
		{
			Name:     JobGenerate,
			Interval: iv.Generate,
			Run: func(ctx context.Context) error {
				month := dbtime.ReferenceMonth(clock().UTC())
				res, err := b.GenerateAll(ctx, month)
				if err != nil {
					return err
				}
				cyc, cerr := b.GenerateBillingCycles(ctx, month)
				log.Info("generate",
					zap.String("reference_month", month),
					zap.Int("charges_created", res.Created),
					zap.Int("charges_skipped", res.Skipped),
					zap.Int("charges_failed", res.Failed),
					zap.Int("cycles_created", cyc.Created))
				return cerr
			},
		},
	}

	if poller != nil {
		jobs = append(jobs, Job{
			Name:     JobGatewayPoll,
			Interval: iv.GatewayPoll,
			Run: func(ctx context.Context) error {
				res, err := poller.PollPending(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				if res.Checked > 0 {
					log.Info("gateway poll",
						zap.Int("checked", res.Checked),
						zap.Int("settled", res.Settled),
						zap.Int("failed", res.Failed))
				}
				return err
			},
		})
	}
	return jobs
}
