package pricing

import "github.com/shopspring/decimal"

// Money represents a monetary value in whole currency units with exact decimal precision.
type Money = decimal.Decimal

var (
	zero    = decimal.Zero
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// RoundCents snaps an amount to two decimals, the precision of stored subtotal and total columns.
func RoundCents(v Money) Money {
	return v.Round(2)
}

// RoundUnits snaps an amount to whole currency units. Only the registration surcharge uses it.
func RoundUnits(v Money) Money {
	return v.Round(0)
}

// LineTotal multiplies a unit price by quantity, treating non-positive quantities as one unit.
func LineTotal(unitPrice Money, quantity int) Money {
	if quantity <= 0 {
		quantity = 1
	}
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Percent returns pct percent of base.
func Percent(base, pct Money) Money {
	return base.Mul(pct).Div(hundred)
}
