// Package latefee computes late fees accrued by overdue receivables.
package latefee

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	basePercent  = decimal.NewFromInt(2)
	dailyPercent = decimal.RequireFromString("0.1")
	hundred      = decimal.NewFromInt(100)
	centPlaces   = int32(2)
	hoursPerDay  = 24 * time.Hour
)

// Policy computes the fee owed on amount when evaluated at asOf.
type Policy interface {
	Compute(amount decimal.Decimal, dueDate, asOf time.Time) decimal.Decimal
}

// Standard charges 2% plus 0.1% per full day late. When CapPercent is positive
// the percentage never exceeds it.
type Standard struct {
	CapPercent decimal.Decimal
}

// Compute implements Policy.
func (p Standard) Compute(amount decimal.Decimal, dueDate, asOf time.Time) decimal.Decimal {
	days := DaysLate(dueDate, asOf)
	if days <= 0 || !amount.IsPositive() {
		return decimal.Zero
	}
	pct := Percent(days)
	if p.CapPercent.IsPositive() && pct.GreaterThan(p.CapPercent) {
		pct = p.CapPercent
	}
	return amount.Mul(pct).Div(hundred).Round(centPlaces)
}

// Percent returns the uncapped fee percentage for the given days late.
func Percent(daysLate int) decimal.Decimal {
	if daysLate <= 0 {
		return decimal.Zero
	}
	return basePercent.Add(dailyPercent.Mul(decimal.NewFromInt(int64(daysLate))))
}

// DaysLate returns the number of whole days elapsed between dueDate and asOf.
// It is zero or negative when asOf is not after dueDate.
func DaysLate(dueDate, asOf time.Time) int {
	d := asOf.Sub(dueDate)
	if d < 0 {
		// floor towards negative infinity
		return -int((-d + hoursPerDay - 1) / hoursPerDay)
	}
	return int(d / hoursPerDay)
}

// ComputeLateFee applies the uncapped Standard policy.
func ComputeLateFee(amount decimal.Decimal, dueDate, asOf time.Time) decimal.Decimal {
	return Standard{}.Compute(amount, dueDate, asOf)
}
