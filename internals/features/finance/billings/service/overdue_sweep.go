package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	m "academia_backend/internals/features/finance/billings/model"
	"academia_backend/internals/features/finance/billings/repository"
)

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
}

func (r *SweepResult) merge(o SweepResult) {
	r.Processed += o.Processed
	r.Updated += o.Updated
	r.Failed += o.Failed
}

type sweepOutcome int

const (
	sweepUnchanged sweepOutcome = iota
	sweepUpdated
	sweepBecameOverdue
	sweepSkipped
)

// SweepTenant recomputes fees on every open charge of the tenant whose due date has passed.
// One failing charge never stops the rest. Payers are processed in parallel, their charges in order.
func (s *Service) SweepTenant(ctx context.Context, tenantID uuid.UUID) (SweepResult, error) {
	policy, _, err := s.policyFor(ctx, s.repo, tenantID)
	if err != nil {
		return SweepResult{}, err
	}
	now := s.clock()
	// zones east of UTC may already be a day ahead
	charges, err := s.repo.ListChargesForSweep(ctx, tenantID, m.DateOnly(now).AddDate(0, 0, 1))
	if err != nil {
		return SweepResult{}, err
	}
	today := policy.LocalDate(now)
	charges = lo.Filter(charges, func(c m.Charge, _ int) bool {
		return m.DateOnly(c.ChargeDueDate).Before(today)
	})

	var (
		mu       sync.Mutex
		res      SweepResult
		newlyDue []uuid.UUID
	)
	byPayer := lo.GroupBy(charges, func(c m.Charge) uuid.UUID { return c.ChargePayerID })

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for payerID, list := range byPayer {
		if ctx.Err() != nil {
			break
		}
		payerID, list := payerID, list
		g.Go(func() error {
			var local SweepResult
			flagged := false
			for _, c := range list {
				out, err := s.sweepCharge(ctx, tenantID, c.ChargeID, policy)
				if err != nil {
					local.Failed++
					s.metrics.SweepCharges.WithLabelValues("failed").Inc()
					s.log.Warn("sweep charge failed",
						zap.String("tenant_id", tenantID.String()),
						zap.String("charge_id", c.ChargeID.String()),
						zap.Error(err))
					continue
				}
				local.Processed++
				switch out {
				case sweepUnchanged:
					s.metrics.SweepCharges.WithLabelValues("unchanged").Inc()
				case sweepUpdated, sweepBecameOverdue:
					local.Updated++
					s.metrics.SweepCharges.WithLabelValues("updated").Inc()
					if out == sweepBecameOverdue {
						flagged = true
					}
				}
			}
			mu.Lock()
			res.merge(local)
			if flagged {
				newlyDue = append(newlyDue, payerID)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// payers that just turned overdue may now be past the block threshold
	for _, payerID := range newlyDue {
		s.access.Enqueue(tenantID, payerID)
	}

	s.log.Info("sweep done",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("processed", res.Processed),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed))
	return res, ctx.Err()
}

// sweepCharge applies fees to one charge inside its own transaction.
func (s *Service) sweepCharge(ctx context.Context, tenantID, chargeID uuid.UUID, policy m.BillingPolicy) (sweepOutcome, error) {
	var out sweepOutcome
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		c, err := tx.GetCharge(ctx, tenantID, chargeID)
		if err != nil {
			return err
		}
		if !c.ChargeStatus.IsOpen() {
			out = sweepSkipped
			return nil
		}

		now := s.clock()
		fees := CalculateLateFee(*c, policy, now)
		if !fees.Overdue() {
			out = sweepSkipped
			return nil
		}

		frozen := c.ChargeOriginalAmount != nil
		if frozen && c.ChargeStatus == m.ChargeStatusOverdue &&
			c.ChargeLateFeeAmount == fees.LateFee &&
			c.ChargeInterestAmount == fees.Interest &&
			c.ChargeAmount == fees.Total {
			out = sweepUnchanged
			return nil
		}

		ok, err := tx.ApplyChargeFees(ctx, tenantID, chargeID, m.ChargeFeeUpdate{
			OriginalAmount: fees.Base,
			LateFeeAmount:  fees.LateFee,
			InterestAmount: fees.Interest,
			Amount:         fees.Total,
			Status:         m.ChargeStatusOverdue,
			RecalculatedAt: now,
		})
		if err != nil {
			return err
		}
		if !ok {
			out = sweepSkipped
			return nil
		}
		out = sweepUpdated
		if c.ChargeStatus == m.ChargeStatusPending {
			out = sweepBecameOverdue
		}
		return nil
	})
	return out, err
}

// SweepAll runs SweepTenant for every tenant that is not cancelled.
func (s *Service) SweepAll(ctx context.Context) (SweepResult, error) {
	tenants, err := s.repo.ListTenants(ctx, m.TenantStatusActive, m.TenantStatusSuspended)
	if err != nil {
		return SweepResult{}, err
	}
	var total SweepResult
	for _, t := range tenants {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		res, err := s.SweepTenant(ctx, t.TenantID)
		total.merge(res)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("sweep tenant failed", zap.String("tenant_id", t.TenantID.String()), zap.Error(err))
		}
	}
	return total, ctx.Err()
}
