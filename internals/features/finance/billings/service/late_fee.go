package service

import (
	"time"

	"github.com/shopspring/decimal"

	m "academia_backend/internals/features/finance/billings/model"
)

var (
	hundred       = decimal.NewFromInt(100)
	daysPerMonth  = decimal.NewFromInt(30)
	one           = decimal.NewFromInt(1)
	compoundScale = int32(24)
)

// FeeBreakdown is the late-fee calculator output. Total = Base + LateFee + Interest.
type FeeBreakdown struct {
	Base            int64 `json:"base_amount"`
	LateFee         int64 `json:"late_fee_amount"`
	Interest        int64 `json:"interest_amount"`
	Total           int64 `json:"total_amount"`
	DaysOverdue     int   `json:"days_overdue"`
	DaysForInterest int   `json:"days_for_interest"`
}

// Overdue reports whether the charge is past due at all.
func (f FeeBreakdown) Overdue() bool { return f.DaysOverdue > 0 }

// CalculateLateFee computes penalty and interest for c as of now. It never mutates c.
//
// Days overdue are counted on the tenant's calendar. The flat fee is pct of the
// base, charged once. Interest compounds daily at monthly/30 starting on the grace
// day, always on the base amount, and is zero on installments whose interest was
// forgiven. Each component is rounded half away from zero once, at the end.
func CalculateLateFee(c m.Charge, p m.BillingPolicy, now time.Time) FeeBreakdown {
	base := c.BaseAmount()
	out := FeeBreakdown{Base: base, Total: base}

	days := int(p.LocalDate(now).Sub(m.DateOnly(c.ChargeDueDate)) / (24 * time.Hour))
	if days <= 0 {
		return out
	}
	out.DaysOverdue = days

	baseDec := decimal.NewFromInt(base)
	out.LateFee = baseDec.Mul(p.BillingPolicyLateFeePercent).Div(hundred).Round(0).IntPart()

	grace := p.BillingPolicyGraceDays
	if grace < 0 {
		grace = 0
	}
	if days >= grace && p.BillingPolicyMonthlyInterestPercent.IsPositive() && !c.ChargeInstallmentInterestWaived {
		out.DaysForInterest = days - grace + 1
		daily := p.BillingPolicyMonthlyInterestPercent.Div(hundred).Div(daysPerMonth)
		factor := compound(one.Add(daily), out.DaysForInterest)
		out.Interest = baseDec.Mul(factor.Sub(one)).Round(0).IntPart()
	}

	out.Total = base + out.LateFee + out.Interest
	return out
}

// compound returns x^n by squaring, keeping a fixed scale far below a cent's worth of error.
func compound(x decimal.Decimal, n int) decimal.Decimal {
	result := one
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(x).Round(compoundScale)
		}
		x = x.Mul(x).Round(compoundScale)
		n >>= 1
	}
	return result
}
