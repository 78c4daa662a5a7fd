package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	m "academia_backend/internals/features/finance/billings/model"
)

// GetPolicy returns the tenant's effective policy and whether it is stored or the defaults.
func (s *Service) GetPolicy(ctx context.Context, tenantID uuid.UUID) (m.BillingPolicy, bool, error) {
	return s.policyFor(ctx, s.repo, tenantID)
}

func validatePolicy(p m.BillingPolicy) error {
	ve := &ValidationError{}
	hundred := decimal.NewFromInt(100)
	if p.BillingPolicyLateFeePercent.IsNegative() || p.BillingPolicyLateFeePercent.GreaterThan(hundred) {
		ve.add("late_fee_percent", "must be between 0 and 100")
	}
	if p.BillingPolicyMonthlyInterestPercent.IsNegative() || p.BillingPolicyMonthlyInterestPercent.GreaterThan(hundred) {
		ve.add("monthly_interest_percent", "must be between 0 and 100")
	}
	if p.BillingPolicyGraceDays < 0 {
		ve.add("grace_days", "must not be negative")
	}
	if p.BillingPolicyMaxInstallments < 1 {
		ve.add("max_installments", "must be at least 1")
	}
	if p.BillingPolicyMinInstallmentAmount < 0 {
		ve.add("min_installment_amount", "must not be negative")
	}
	if p.BillingPolicyDefaultDueDay < 0 || p.BillingPolicyDefaultDueDay > 31 {
		ve.add("default_due_day", "must be between 0 and 31")
	}
	if p.BillingPolicyBlockAfterOverdueDays < 0 {
		ve.add("block_after_overdue_days", "must not be negative")
	}
	if p.BillingPolicyTimezone != "" {
		if _, err := time.LoadLocation(p.BillingPolicyTimezone); err != nil {
			ve.add("timezone", "unknown time zone")
		}
	}
	return ve.orNil()
}

// UpdatePolicy validates and stores the tenant's policy. New values only affect
// charges that are still open; frozen amounts are never touched.
func (s *Service) UpdatePolicy(ctx context.Context, p m.BillingPolicy) (m.BillingPolicy, error) {
	if p.BillingPolicyTenantID == uuid.Nil {
		return m.BillingPolicy{}, newValidation("tenant_id", "required")
	}
	if p.BillingPolicyTimezone == "" {
		p.BillingPolicyTimezone = "UTC"
	}
	if err := validatePolicy(p); err != nil {
		return m.BillingPolicy{}, err
	}
	if err := s.repo.UpsertPolicy(ctx, &p); err != nil {
		return m.BillingPolicy{}, err
	}
	s.log.Info("billing policy updated",
		zap.String("tenant_id", p.BillingPolicyTenantID.String()),
		zap.String("late_fee_percent", p.BillingPolicyLateFeePercent.String()),
		zap.String("monthly_interest_percent", p.BillingPolicyMonthlyInterestPercent.String()),
		zap.Int("grace_days", p.BillingPolicyGraceDays))
	stored, _, err := s.policyFor(ctx, s.repo, p.BillingPolicyTenantID)
	return stored, err
}
