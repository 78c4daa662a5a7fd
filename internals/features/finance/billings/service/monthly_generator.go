package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	m "academia_backend/internals/features/finance/billings/model"
	"academia_backend/internals/features/finance/billings/repository"
	"academia_backend/internals/helpers/dbtime"
)

type GenerateInput struct {
	TenantID       uuid.UUID
	PayerIDs       []uuid.UUID
	PlanID         *uuid.UUID
	ReferenceMonth string // YYYY-MM
	DueDay         *int   // nil = subscription start day
}

type GenerateResult struct {
	ReferenceMonth string `json:"reference_month"`
	Created        int    `json:"created"`
	Skipped        int    `json:"skipped"`
	Failed         int    `json:"failed"`
}

type genOutcome int

const (
	genCreated genOutcome = iota
	genSkipped
)

func (in GenerateInput) validate() (time.Time, error) {
	ve := &ValidationError{}
	if in.TenantID == uuid.Nil {
		ve.add("tenant_id", "required")
	}
	month, err := dbtime.ParseReferenceMonth(in.ReferenceMonth)
	if err != nil {
		ve.add("reference_month", err.Error())
	}
	if in.DueDay != nil && (*in.DueDay < 1 || *in.DueDay > 31) {
		ve.add("due_day", "must be between 1 and 31")
	}
	return month, ve.orNil()
}

// GenerateMonthly creates the reference month's pending charge for every active
// subscription in scope. Re-running for the same month creates nothing new.
func (s *Service) GenerateMonthly(ctx context.Context, in GenerateInput) (GenerateResult, error) {
	month, err := in.validate()
	if err != nil {
		return GenerateResult{}, err
	}
	res := GenerateResult{ReferenceMonth: in.ReferenceMonth}

	subs, err := s.repo.ListActiveSubscriptions(ctx, in.TenantID, repository.SubscriptionFilter{
		PayerIDs: in.PayerIDs,
		PlanID:   in.PlanID,
	})
	if err != nil {
		return res, err
	}

	var mu sync.Mutex
	byPayer := lo.GroupBy(subs, func(sub m.Subscription) uuid.UUID { return sub.SubscriptionPayerID })

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, list := range byPayer {
		if ctx.Err() != nil {
			break
		}
		list := list
		g.Go(func() error {
			var created, skipped, failed int
			for _, sub := range list {
				out, err := s.generateOne(ctx, sub, month, in.ReferenceMonth, in.DueDay)
				switch {
				case err != nil:
					failed++
					s.metrics.GeneratedCharges.WithLabelValues("failed").Inc()
					s.log.Warn("generate charge failed",
						zap.String("tenant_id", in.TenantID.String()),
						zap.String("subscription_id", sub.SubscriptionID.String()),
						zap.Error(err))
				case out == genCreated:
					created++
					s.metrics.GeneratedCharges.WithLabelValues("created").Inc()
				default:
					skipped++
					s.metrics.GeneratedCharges.WithLabelValues("skipped").Inc()
				}
			}
			mu.Lock()
			res.Created += created
			res.Skipped += skipped
			res.Failed += failed
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("monthly generation done",
		zap.String("tenant_id", in.TenantID.String()),
		zap.String("reference_month", in.ReferenceMonth),
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res, ctx.Err()
}

func (s *Service) generateOne(ctx context.Context, sub m.Subscription, month time.Time, ref string, dueDay *int) (genOutcome, error) {
	if sub.Plan == nil {
		return genSkipped, fmt.Errorf("subscription %s: plan %s: %w", sub.SubscriptionID, sub.SubscriptionPlanID, repository.ErrNotFound)
	}

	day := sub.SubscriptionStartDate.Day()
	if dueDay != nil {
		day = *dueDay
	}
	due := dbtime.ClampedDate(month.Year(), month.Month(), day)

	from, to := dbtime.MonthBounds(month)
	// subscription must be in force at some point of the month
	if !sub.SubscriptionStartDate.Before(to) {
		return genSkipped, nil
	}
	if sub.SubscriptionEndDate != nil && sub.SubscriptionEndDate.Before(from) {
		return genSkipped, nil
	}

	exists, err := s.repo.ExistsChargeForSubscriptionBetween(ctx, sub.SubscriptionID, from, to)
	if err != nil {
		return genSkipped, err
	}
	if exists {
		return genSkipped, nil
	}

	subID := sub.SubscriptionID
	refMonth := ref
	price := sub.Plan.PlanPrice
	charge := &m.Charge{
		ChargeTenantID:       sub.SubscriptionTenantID,
		ChargePayerID:        sub.SubscriptionPayerID,
		ChargeSubscriptionID: &subID,
		ChargeReferenceMonth: &refMonth,
		ChargeDescription:    fmt.Sprintf("%s %s", sub.Plan.PlanName, ref),
		ChargeAmount:         price,
		ChargeOriginalAmount: &price,
		ChargeDueDate:        due,
		ChargeStatus:         m.ChargeStatusPending,
	}
	if err := s.repo.CreateCharge(ctx, charge); err != nil {
		// a concurrent run won the unique (subscription, month) slot
		if errors.Is(err, repository.ErrConflict) {
			return genSkipped, nil
		}
		return genSkipped, err
	}
	return genCreated, nil
}

// GenerateAll runs the generator for every active tenant using each tenant's default due day.
func (s *Service) GenerateAll(ctx context.Context, referenceMonth string) (GenerateResult, error) {
	total := GenerateResult{ReferenceMonth: referenceMonth}
	tenants, err := s.repo.ListTenants(ctx, m.TenantStatusActive)
	if err != nil {
		return total, err
	}
	for _, t := range tenants {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		policy, _, err := s.policyFor(ctx, s.repo, t.TenantID)
		if err != nil {
			s.log.Error("load policy failed", zap.String("tenant_id", t.TenantID.String()), zap.Error(err))
			continue
		}
		res, err := s.GenerateMonthly(ctx, GenerateInput{
			TenantID:       t.TenantID,
			ReferenceMonth: referenceMonth,
			DueDay:         policy.DueDayOrNil(),
		})
		total.Created += res.Created
		total.Skipped += res.Skipped
		total.Failed += res.Failed
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("generate tenant failed", zap.String("tenant_id", t.TenantID.String()), zap.Error(err))
		}
	}
	return total, ctx.Err()
}
