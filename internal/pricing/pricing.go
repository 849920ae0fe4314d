// Package pricing computes recurring amounts and discount stacking in exact
// integer minor currency units.
package pricing

import (
	"errors"
	"time"
)

// Model enumerates plan pricing models.
type Model string

const (
	ModelFlat         Model = "flat"
	ModelPerSeat      Model = "per_seat"
	ModelUsageMetered Model = "usage_metered"
)

// Cycle enumerates billing cycles.
type Cycle string

const (
	CycleMonthly Cycle = "monthly"
	CycleYearly  Cycle = "yearly"
)

// DiscountKind enumerates discount value semantics.
type DiscountKind string

const (
	DiscountPercentage     DiscountKind = "percentage"
	DiscountFixedAmount    DiscountKind = "fixed_amount"
	DiscountFreeMonths     DiscountKind = "free_months"
	DiscountTrialExtension DiscountKind = "trial_extension"
)

var (
	ErrInvalidSeats        = errors.New("invalid_seats")
	ErrInvalidBillingCycle = errors.New("invalid_billing_cycle")
	ErrMissingBasePrice    = errors.New("missing_base_price")
)

// PlanPricing is the pricing definition of a plan, normalized for resolution.
type PlanPricing struct {
	Model         Model
	MonthlyAmount int64
	YearlyAmount  int64
	PerSeatAmount *int64
}

// Discount is a monetary or non-monetary reduction applied to a base amount.
type Discount struct {
	Kind  DiscountKind
	Value int64
}

// Breakdown is the result of stacking discounts against a base amount.
type Breakdown struct {
	BaseAmount            int64
	AccountDiscountAmount int64
	CouponDiscountAmount  int64
	NetAmount             int64
}

// ParseCycle validates a billing cycle token.
func ParseCycle(value string) (Cycle, error) {
	switch Cycle(value) {
	case CycleMonthly, CycleYearly:
		return Cycle(value), nil
	default:
		return "", ErrInvalidBillingCycle
	}
}

// ResolveBaseAmount computes the monthly-equivalent recurring amount for a
// plan, billing cycle, and seat count. A yearly base price is converted with
// round(yearly/12), rounding exactly once; the result is never re-rounded.
func ResolveBaseAmount(p PlanPricing, cycle Cycle, seats int) (int64, error) {
	if cycle != CycleMonthly && cycle != CycleYearly {
		return 0, ErrInvalidBillingCycle
	}
	if seats < 1 {
		return 0, ErrInvalidSeats
	}

	var base int64
	switch {
	case p.MonthlyAmount > 0:
		base = p.MonthlyAmount
	case p.YearlyAmount > 0:
		base = roundDiv(p.YearlyAmount, 12)
	default:
		return 0, ErrMissingBasePrice
	}

	if p.PerSeatAmount != nil && *p.PerSeatAmount > 0 {
		base += *p.PerSeatAmount * int64(seats)
	}

	return base, nil
}

// ApplyDiscounts stacks an account discount and a coupon discount against the
// base amount. Both are computed independently against the original base, not
// against each other's result. Non-monetary coupon kinds contribute zero here.
func ApplyDiscounts(base int64, account, coupon *Discount) Breakdown {
	accountAmount := MonetaryAmount(account, base)
	couponAmount := MonetaryAmount(coupon, base)

	net := base - accountAmount - couponAmount
	if net < 0 {
		net = 0
	}

	return Breakdown{
		BaseAmount:            base,
		AccountDiscountAmount: accountAmount,
		CouponDiscountAmount:  couponAmount,
		NetAmount:             net,
	}
}

// MonetaryAmount computes the discount value of d against base. Percentage
// discounts round half-up; fixed amounts are capped so a single discount can
// never exceed the base on its own. free_months and trial_extension are
// non-monetary and always return zero.
func MonetaryAmount(d *Discount, base int64) int64 {
	if d == nil || base <= 0 {
		return 0
	}

	switch d.Kind {
	case DiscountPercentage:
		if d.Value <= 0 {
			return 0
		}
		return roundDiv(base*d.Value, 100)
	case DiscountFixedAmount:
		if d.Value <= 0 {
			return 0
		}
		if d.Value > base {
			return base
		}
		return d.Value
	default:
		return 0
	}
}

// IsNonMonetary reports whether the discount kind adjusts periods rather than
// amounts.
func IsNonMonetary(kind DiscountKind) bool {
	return kind == DiscountFreeMonths || kind == DiscountTrialExtension
}

// PeriodEnd computes the end of a billing period starting at start.
func PeriodEnd(start time.Time, cycle Cycle) time.Time {
	if cycle == CycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// ScaleForCycle converts a monthly-equivalent amount to the amount billed for
// one full period of the given cycle. Multiplication introduces no rounding.
func ScaleForCycle(monthlyEquivalent int64, cycle Cycle) int64 {
	if cycle == CycleYearly {
		return monthlyEquivalent * 12
	}
	return monthlyEquivalent
}

// ClampLineAmounts returns the account and coupon discount amounts to place on
// an invoice so the resulting subtotal matches the clamped net amount: the sum
// of both lines never exceeds the base charge.
func ClampLineAmounts(base, accountAmount, couponAmount int64) (int64, int64) {
	if accountAmount > base {
		accountAmount = base
	}
	remaining := base - accountAmount
	if couponAmount > remaining {
		couponAmount = remaining
	}
	return accountAmount, couponAmount
}

// roundDiv divides non-negative n by positive d, rounding half away from zero.
func roundDiv(n, d int64) int64 {
	return (n + d/2) / d
}
