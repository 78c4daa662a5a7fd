package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	m "academia_backend/internals/features/finance/billings/model"
	"academia_backend/internals/features/finance/billings/repository"
)

type SettlementInput struct {
	PaidAt    *time.Time // nil = now
	Method    m.PaymentMethod
	Reference *string
}

// MarkChargePaid settles one charge. Fees of a late charge are recomputed as of
// the payment time and frozen with it. Two concurrent settlements of the same
// charge serialize on the conditional update: the loser gets ErrAlreadySettled.
func (s *Service) MarkChargePaid(ctx context.Context, tenantID, chargeID uuid.UUID, in SettlementInput) (*m.Charge, error) {
	if in.Method == "" {
		in.Method = m.PaymentMethodManual
	}
	paidAt := s.clock()
	if in.PaidAt != nil {
		paidAt = in.PaidAt.UTC()
	}
	if paidAt.After(s.clock().Add(5 * time.Minute)) {
		return nil, newValidation("paid_at", "must not be in the future")
	}

	var settled *m.Charge
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		c, err := tx.GetCharge(ctx, tenantID, chargeID)
		if err != nil {
			return err
		}
		switch c.ChargeStatus {
		case m.ChargeStatusPaid:
			return ErrAlreadySettled
		case m.ChargeStatusCancelled:
			return newValidation("charge", "charge is cancelled")
		}

		policy, _, err := s.policyFor(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		fees := CalculateLateFee(*c, policy, paidAt)

		ok, err := tx.SettleCharge(ctx, tenantID, chargeID, m.ChargeSettlementUpdate{
			PaidAt:         paidAt,
			Method:         in.Method,
			Reference:      in.Reference,
			OriginalAmount: fees.Base,
			LateFeeAmount:  fees.LateFee,
			InterestAmount: fees.Interest,
			Amount:         fees.Total,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadySettled
		}
		settled, err = tx.GetCharge(ctx, tenantID, chargeID)
		return err
	})
	if err != nil {
		s.metrics.Settlements.WithLabelValues(string(in.Method), "rejected").Inc()
		return nil, err
	}

	s.metrics.Settlements.WithLabelValues(string(in.Method), "settled").Inc()
	s.log.Info("charge settled",
		zap.String("tenant_id", tenantID.String()),
		zap.String("charge_id", chargeID.String()),
		zap.String("method", string(in.Method)),
		zap.Int64("amount", settled.ChargeAmount))

	// device sync happens after commit, outside the transaction
	s.access.Enqueue(tenantID, settled.ChargePayerID)
	return settled, nil
}

// PreviewFees returns what the charge would cost if paid at `at`. Nothing is written.
func (s *Service) PreviewFees(ctx context.Context, tenantID, chargeID uuid.UUID, at time.Time) (FeeBreakdown, *m.Charge, error) {
	c, err := s.repo.GetCharge(ctx, tenantID, chargeID)
	if err != nil {
		return FeeBreakdown{}, nil, err
	}
	if !c.ChargeStatus.IsOpen() {
		// frozen
		return FeeBreakdown{
			Base:     c.BaseAmount(),
			LateFee:  c.ChargeLateFeeAmount,
			Interest: c.ChargeInterestAmount,
			Total:    c.ChargeAmount,
		}, c, nil
	}
	policy, _, err := s.policyFor(ctx, s.repo, tenantID)
	if err != nil {
		return FeeBreakdown{}, nil, err
	}
	if at.IsZero() {
		at = s.clock()
	}
	fees := CalculateLateFee(*c, policy, at)
	return fees, c, nil
}
