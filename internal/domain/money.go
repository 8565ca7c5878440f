package domain

import (
	"github.com/shopspring/decimal"
)

var centsPerUnit = decimal.NewFromInt(100)

// Money is an order amount stored as integer cents to avoid floating point errors.
type Money struct {
	Cents int64
}

// NewMoney creates a Money from cents.
func NewMoney(cents int64) Money {
	return Money{Cents: cents}
}

// MoneyFromDecimal converts a decimal amount (e.g. 23.50) to cents, rounding
// half away from zero at the second decimal place.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Mul(centsPerUnit).Round(0).IntPart()}
}

// ToDecimal converts the cents to a decimal amount.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Cents).Div(centsPerUnit)
}

// Points returns the loyalty points earned for this amount: one point per
// whole currency unit, rounded down. Non-positive amounts earn nothing.
func (m Money) Points() int64 {
	if m.Cents <= 0 {
		return 0
	}
	return m.ToDecimal().Floor().IntPart()
}

// String returns the amount with two decimal places.
func (m Money) String() string {
	return m.ToDecimal().StringFixed(2)
}
