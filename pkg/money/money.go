// Package money holds the decimal arithmetic shared by order creation and
// checkout: amounts stay in currency units until they are submitted to the
// payment processor, where each one is rounded to minor units independently.
package money

import (
	"github.com/shopspring/decimal"
)

const (
	// Places is the precision persisted for currency amounts.
	Places int32 = 2
	// MinorUnitsPerUnit converts currency units to cents.
	MinorUnitsPerUnit = 100
)

var hundred = decimal.NewFromInt(100)

// LineTotal returns price x quantity.
func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// Commission returns subtotal x rate / 100 rounded to cents.
func Commission(subtotal, ratePercent decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(ratePercent).Div(hundred).Round(Places)
}

// ToMinorUnits rounds amount x 100 half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(MinorUnitsPerUnit)).Round(0).IntPart()
}

// ValidRate reports whether ratePercent lies in [0, 100].
func ValidRate(ratePercent decimal.Decimal) bool {
	return !ratePercent.IsNegative() && ratePercent.LessThanOrEqual(hundred)
}
