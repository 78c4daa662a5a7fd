package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	m "academia_backend/internals/features/finance/billings/model"
	"academia_backend/internals/features/finance/billings/repository"
	"academia_backend/internals/helpers/dbtime"
)

type InstallmentInput struct {
	PayerID         uuid.UUID
	ChargeIDs       []uuid.UUID
	Count           int
	Total           int64 // 0 = derive from the charges
	ForgiveInterest bool
	FirstDueDate    time.Time
}

type Installment struct {
	ChargeID uuid.UUID `json:"charge_id"`
	Number   int       `json:"number"`
	Amount   int64     `json:"amount"`
	DueDate  time.Time `json:"due_date"`
}

type InstallmentPlan struct {
	PlanID            uuid.UUID     `json:"plan_id"`
	Total             int64         `json:"total"`
	Count             int           `json:"count"`
	InterestForgiven  bool          `json:"interest_forgiven"`
	FirstDueDate      time.Time     `json:"first_due_date"`
	ReplacedChargeIDs []uuid.UUID   `json:"replaced_charge_ids"`
	Installments      []Installment `json:"installments"`
}

func (in InstallmentInput) validate() error {
	ve := &ValidationError{}
	if in.PayerID == uuid.Nil {
		ve.add("payer_id", "required")
	}
	if len(in.ChargeIDs) == 0 {
		ve.add("charge_ids", "at least one charge is required")
	}
	if in.Count < 1 {
		ve.add("installments", "must be at least 1")
	}
	if in.Total < 0 {
		ve.add("total", "must not be negative")
	}
	if in.FirstDueDate.IsZero() {
		ve.add("first_due_date", "required")
	}
	return ve.orNil()
}

// SplitInstallments replaces open charges of a payer with Count new charges due
// monthly from FirstDueDate. Everything runs in one transaction: either the full
// plan exists and every original is cancelled, or nothing changed.
func (s *Service) SplitInstallments(ctx context.Context, tenantID uuid.UUID, in InstallmentInput) (*InstallmentPlan, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	ids := lo.Uniq(in.ChargeIDs)
	now := s.clock()

	var plan *InstallmentPlan
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		policy, _, err := s.policyFor(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		if !policy.BillingPolicyInstallmentsEnabled {
			return newValidation("policy", "installments are disabled for this tenant")
		}
		if in.Count > policy.BillingPolicyMaxInstallments {
			return newValidation("installments", fmt.Sprintf("must not exceed %d", policy.BillingPolicyMaxInstallments))
		}

		charges, err := tx.ListChargesByIDs(ctx, tenantID, ids)
		if err != nil {
			return err
		}
		if len(charges) != len(ids) {
			found := lo.Map(charges, func(c m.Charge, _ int) uuid.UUID { return c.ChargeID })
			missing, _ := lo.Difference(ids, found)
			return fmt.Errorf("charges %v: %w", missing, repository.ErrNotFound)
		}
		for _, c := range charges {
			if c.ChargePayerID != in.PayerID {
				return fmt.Errorf("charge %s: %w", c.ChargeID, repository.ErrForbidden)
			}
			if !c.ChargeStatus.IsOpen() {
				return newValidation("charge_ids", fmt.Sprintf("charge %s is %s", c.ChargeID, c.ChargeStatus))
			}
		}

		total := in.Total
		if total == 0 {
			total = lo.SumBy(charges, func(c m.Charge) int64 {
				f := CalculateLateFee(c, policy, now)
				if in.ForgiveInterest {
					return f.Base + f.LateFee
				}
				return f.Total
			})
		}
		if total <= 0 {
			return newValidation("total", "nothing to finance")
		}
		per := total / int64(in.Count)
		if per < policy.BillingPolicyMinInstallmentAmount {
			return newValidation("installments",
				fmt.Sprintf("installment amount %d is below the minimum %d", per, policy.BillingPolicyMinInstallmentAmount))
		}

		planID := uuid.New()
		first := m.DateOnly(in.FirstDueDate)
		replaced := m.ReplacedChargeIDsJSON(ids)
		count := in.Count

		news := make([]m.Charge, 0, count)
		for i := 0; i < count; i++ {
			amount := per
			if i == count-1 {
				amount = total - per*int64(count-1)
			}
			number := i + 1
			amt := amount
			news = append(news, m.Charge{
				ChargeID:                        uuid.New(),
				ChargeTenantID:                  tenantID,
				ChargePayerID:                   in.PayerID,
				ChargeDescription:               fmt.Sprintf("Installment %d/%d", number, count),
				ChargeAmount:                    amount,
				ChargeOriginalAmount:            &amt,
				ChargeDueDate:                   dbtime.AddMonthsClamped(first, i, first.Day()),
				ChargeStatus:                    m.ChargeStatusPending,
				ChargeInstallmentPlanID:         &planID,
				ChargeInstallmentNumber:         &number,
				ChargeInstallmentCount:          &count,
				ChargeInstallmentInterestWaived: in.ForgiveInterest,
				ChargeReplacedChargeIDs:         replaced,
			})
		}
		if err := tx.CreateCharges(ctx, news); err != nil {
			return err
		}

		n, err := tx.CancelCharges(ctx, tenantID, ids, m.ChargeCancelUpdate{
			CancelledAt:  now,
			Reason:       "consolidated into installment plan " + planID.String(),
			SupersededBy: &planID,
		})
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return fmt.Errorf("cancelled %d of %d charges: %w", n, len(ids), repository.ErrConflict)
		}

		plan = &InstallmentPlan{
			PlanID:            planID,
			Total:             total,
			Count:             count,
			InterestForgiven:  in.ForgiveInterest,
			FirstDueDate:      first,
			ReplacedChargeIDs: ids,
			Installments: lo.Map(news, func(c m.Charge, i int) Installment {
				return Installment{ChargeID: c.ChargeID, Number: i + 1, Amount: c.ChargeAmount, DueDate: c.ChargeDueDate}
			}),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InstallmentPlans.Inc()
	s.log.Info("installment plan created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("payer_id", in.PayerID.String()),
		zap.String("plan_id", plan.PlanID.String()),
		zap.Int64("total", plan.Total),
		zap.Int("count", plan.Count))
	s.access.Enqueue(tenantID, in.PayerID)
	return plan, nil
}
