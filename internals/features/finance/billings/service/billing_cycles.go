package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	m "academia_backend/internals/features/finance/billings/model"
	"academia_backend/internals/features/finance/billings/repository"
	"academia_backend/internals/helpers/dbtime"
)

type BillingCycleResult struct {
	ReferenceMonth string `json:"reference_month"`
	Created        int    `json:"created"`
	Skipped        int    `json:"skipped"`
	Failed         int    `json:"failed"`
}

type BillingCycleSweepResult struct {
	MarkedOverdue int `json:"marked_overdue"`
	Suspended     int `json:"suspended"`
	Reactivated   int `json:"reactivated"`
	Failed        int `json:"failed"`
}

/* =========================================================
   GENERATE: one platform invoice per active tenant
========================================================= */

func (s *Service) GenerateBillingCycles(ctx context.Context, referenceMonth string) (BillingCycleResult, error) {
	res := BillingCycleResult{ReferenceMonth: referenceMonth}
	month, err := dbtime.ParseReferenceMonth(referenceMonth)
	if err != nil {
		return res, newValidation("reference_month", err.Error())
	}

	tenants, err := s.repo.ListTenants(ctx, m.TenantStatusActive)
	if err != nil {
		return res, err
	}
	for _, t := range tenants {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if t.TenantPlatformPrice <= 0 {
			res.Skipped++
			continue
		}
		exists, err := s.repo.ExistsBillingCycle(ctx, t.TenantID, referenceMonth)
		if err != nil {
			res.Failed++
			s.log.Warn("billing cycle lookup failed", zap.String("tenant_id", t.TenantID.String()), zap.Error(err))
			continue
		}
		if exists {
			res.Skipped++
			continue
		}
		bc := &m.BillingCycle{
			BillingCycleTenantID:       t.TenantID,
			BillingCycleReferenceMonth: referenceMonth,
			BillingCycleDueDate:        dbtime.ClampedDate(month.Year(), month.Month(), t.TenantBillingDay),
			BillingCycleAmount:         t.TenantPlatformPrice,
			BillingCycleStatus:         m.ChargeStatusPending,
		}
		if err := s.repo.CreateBillingCycle(ctx, bc); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				res.Skipped++
				continue
			}
			res.Failed++
			s.log.Warn("create billing cycle failed", zap.String("tenant_id", t.TenantID.String()), zap.Error(err))
			continue
		}
		res.Created++
		s.metrics.BillingCycles.WithLabelValues("created").Inc()
	}

	s.log.Info("billing cycles generated",
		zap.String("reference_month", referenceMonth),
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res, nil
}

/* =========================================================
   SWEEP: overdue marking + tenant suspension
========================================================= */

// SweepBillingCycles marks past-due cycles overdue, then suspends tenants with a cycle
// open longer than the suspension window and reactivates suspended tenants that caught up.
func (s *Service) SweepBillingCycles(ctx context.Context) (BillingCycleSweepResult, error) {
	var res BillingCycleSweepResult
	now := s.clock()
	today := m.DateOnly(now)

	cycles, err := s.repo.ListBillingCyclesForSweep(ctx, today)
	if err != nil {
		return res, err
	}
	for _, bc := range cycles {
		ok, err := s.repo.MarkBillingCycleOverdue(ctx, bc.BillingCycleID)
		if err != nil {
			res.Failed++
			s.log.Warn("mark billing cycle overdue failed", zap.String("billing_cycle_id", bc.BillingCycleID.String()), zap.Error(err))
			continue
		}
		if ok {
			res.MarkedOverdue++
			s.metrics.BillingCycles.WithLabelValues("overdue").Inc()
		}
	}

	tenants, err := s.repo.ListTenants(ctx, m.TenantStatusActive, m.TenantStatusSuspended)
	if err != nil {
		return res, err
	}
	cutoff := today.AddDate(0, 0, -s.suspendAfterDays)
	for _, t := range tenants {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		changed, to, err := s.reconcileTenantStatus(ctx, t, cutoff, now)
		if err != nil {
			res.Failed++
			s.log.Warn("tenant status check failed", zap.String("tenant_id", t.TenantID.String()), zap.Error(err))
			continue
		}
		if !changed {
			continue
		}
		if to == m.TenantStatusSuspended {
			res.Suspended++
		} else {
			res.Reactivated++
		}
	}

	s.log.Info("billing cycle sweep done",
		zap.Int("marked_overdue", res.MarkedOverdue),
		zap.Int("suspended", res.Suspended),
		zap.Int("reactivated", res.Reactivated),
		zap.Int("failed", res.Failed))
	return res, nil
}

func (s *Service) reconcileTenantStatus(ctx context.Context, t m.Tenant, cutoff, now time.Time) (bool, m.TenantStatus, error) {
	late, err := s.repo.CountOpenBillingCyclesDueBefore(ctx, t.TenantID, cutoff)
	if err != nil {
		return false, "", err
	}

	switch {
	case late > 0 && t.TenantStatus == m.TenantStatusActive:
		ok, err := s.repo.UpdateTenantStatus(ctx, t.TenantID,
			[]m.TenantStatus{m.TenantStatusActive}, m.TenantStatusSuspended, &now)
		if err != nil || !ok {
			return false, "", err
		}
		s.metrics.TenantStatus.WithLabelValues(string(m.TenantStatusSuspended)).Inc()
		s.log.Warn("tenant suspended", zap.String("tenant_id", t.TenantID.String()), zap.Int64("late_cycles", late))
		return true, m.TenantStatusSuspended, nil

	case late == 0 && t.TenantStatus == m.TenantStatusSuspended:
		ok, err := s.repo.UpdateTenantStatus(ctx, t.TenantID,
			[]m.TenantStatus{m.TenantStatusSuspended}, m.TenantStatusActive, nil)
		if err != nil || !ok {
			return false, "", err
		}
		s.metrics.TenantStatus.WithLabelValues(string(m.TenantStatusActive)).Inc()
		s.log.Info("tenant reactivated", zap.String("tenant_id", t.TenantID.String()))
		return true, m.TenantStatusActive, nil
	}
	return false, "", nil
}

/* =========================================================
   SETTLE
========================================================= */

type BillingCyclePaymentInput struct {
	PaidAt    *time.Time
	Reference *string
}

// MarkBillingCyclePaid settles a platform invoice and reactivates the tenant when nothing else is late.
func (s *Service) MarkBillingCyclePaid(ctx context.Context, cycleID uuid.UUID, in BillingCyclePaymentInput) (*m.BillingCycle, error) {
	paidAt := s.clock()
	if in.PaidAt != nil {
		paidAt = in.PaidAt.UTC()
	}

	bc, err := s.repo.GetBillingCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	switch bc.BillingCycleStatus {
	case m.ChargeStatusPaid:
		return nil, fmt.Errorf("billing cycle already paid: %w", repository.ErrConflict)
	case m.ChargeStatusCancelled:
		return nil, newValidation("billing_cycle", "billing cycle is cancelled")
	}

	ok, err := s.repo.SettleBillingCycle(ctx, cycleID, m.BillingCycleSettlementUpdate{PaidAt: paidAt, Reference: in.Reference})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("billing cycle already paid: %w", repository.ErrConflict)
	}
	s.metrics.BillingCycles.WithLabelValues("paid").Inc()

	// the payment is committed from here on: later failures are logged, never returned
	paid := *bc
	paid.BillingCycleStatus = m.ChargeStatusPaid
	paid.BillingCyclePaidAt = &paidAt
	paid.BillingCycleSettlementRef = in.Reference

	tenant, err := s.repo.GetTenant(ctx, bc.BillingCycleTenantID)
	switch {
	case err != nil:
		s.log.Warn("tenant lookup after cycle payment failed",
			zap.String("tenant_id", bc.BillingCycleTenantID.String()),
			zap.String("billing_cycle_id", cycleID.String()),
			zap.Error(err))
	case tenant.TenantStatus == m.TenantStatusSuspended:
		cutoff := m.DateOnly(s.clock()).AddDate(0, 0, -s.suspendAfterDays)
		if _, _, err := s.reconcileTenantStatus(ctx, *tenant, cutoff, s.clock()); err != nil {
			s.log.Warn("tenant reactivation failed", zap.String("tenant_id", tenant.TenantID.String()), zap.Error(err))
		}
	}

	stored, err := s.repo.GetBillingCycle(ctx, cycleID)
	if err != nil {
		s.log.Warn("reload paid billing cycle failed", zap.String("billing_cycle_id", cycleID.String()), zap.Error(err))
		return &paid, nil
	}
	return stored, nil
}
