package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"academia_backend/internals/configs"
	m "academia_backend/internals/features/finance/billings/model"
	"academia_backend/internals/features/finance/billings/repository"
)

// AccessTrigger receives (tenant, payer) pairs whose access may have changed.
// Implementations must not block the caller on device I/O.
type AccessTrigger interface {
	Enqueue(tenantID, payerID uuid.UUID) bool
}

type noopTrigger struct{}

func (noopTrigger) Enqueue(uuid.UUID, uuid.UUID) bool { return false }

type Options struct {
	Defaults    configs.PolicyDefaults
	Logger      *zap.Logger
	Access      AccessTrigger
	Metrics     *Metrics
	Concurrency int
	// SuspendAfterDays is how long a platform billing cycle may stay open before the tenant is suspended.
	SuspendAfterDays int
	Clock            func() time.Time
}

// Service is the billing engine: fees, sweep, generation, installments, settlement.
type Service struct {
	repo             repository.Repository
	defaults         configs.PolicyDefaults
	log              *zap.Logger
	access           AccessTrigger
	metrics          *Metrics
	concurrency      int
	suspendAfterDays int
	now              func() time.Time
}

func New(repo repository.Repository, o Options) *Service {
	s := &Service{
		repo:             repo,
		defaults:         o.Defaults,
		log:              o.Logger,
		access:           o.Access,
		metrics:          o.Metrics,
		concurrency:      o.Concurrency,
		suspendAfterDays: o.SuspendAfterDays,
		now:              o.Clock,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("billing")
	if s.access == nil {
		s.access = noopTrigger{}
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.concurrency <= 0 {
		s.concurrency = 4
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SetAccessTrigger wires the reconciler after construction (the reconciler itself depends on the repository).
func (s *Service) SetAccessTrigger(t AccessTrigger) {
	if t != nil {
		s.access = t
	}
}

func (s *Service) clock() time.Time { return s.now().UTC() }

// DefaultPolicy is what a tenant without a stored policy runs on.
func (s *Service) DefaultPolicy(tenantID uuid.UUID) m.BillingPolicy {
	d := s.defaults
	return m.BillingPolicy{
		BillingPolicyTenantID:               tenantID,
		BillingPolicyLateFeePercent:         d.LateFeePercent,
		BillingPolicyMonthlyInterestPercent: d.MonthlyInterestPercent,
		BillingPolicyGraceDays:              d.GraceDays,
		BillingPolicyInstallmentsEnabled:    d.InstallmentsEnabled,
		BillingPolicyMaxInstallments:        d.MaxInstallments,
		BillingPolicyMinInstallmentAmount:   d.MinInstallmentCents,
		BillingPolicyDefaultDueDay:          d.DefaultDueDay,
		BillingPolicyBlockAfterOverdueDays:  d.BlockAfterOverdueDays,
		BillingPolicyTimezone:               d.Timezone,
	}
}

// policyFor resolves the tenant's stored policy, falling back to defaults.
func (s *Service) policyFor(ctx context.Context, repo repository.Repository, tenantID uuid.UUID) (m.BillingPolicy, bool, error) {
	p, err := repo.GetPolicy(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return s.DefaultPolicy(tenantID), false, nil
	}
	if err != nil {
		return m.BillingPolicy{}, false, err
	}
	return *p, true, nil
}
