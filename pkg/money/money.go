// Package money holds the decimal helpers shared by pricing and checkout.
// Amounts are whole-currency decimals; totals are rounded up to the next unit.
package money

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// FromFloat converts an upstream float into a non-negative decimal. NaN,
// infinities and negative values collapse to zero.
func FromFloat(value float64) decimal.Decimal {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(value)
}

// Parse reads a decimal string, returning zero for blank or malformed input.
func Parse(raw string) decimal.Decimal {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero
	}
	return NonNegative(value)
}

// NonNegative clamps negative amounts to zero.
func NonNegative(value decimal.Decimal) decimal.Decimal {
	if value.IsNegative() {
		return decimal.Zero
	}
	return value
}

// CeilTotal returns ceil(count × unitPrice), never negative.
func CeilTotal(count int, unitPrice decimal.Decimal) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}
	return NonNegative(unitPrice.Mul(decimal.NewFromInt(int64(count))).Ceil())
}

// Times multiplies a per-unit amount by count without rounding.
func Times(count int, amount decimal.Decimal) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}
	return NonNegative(amount).Mul(decimal.NewFromInt(int64(count)))
}

// OfferOr returns the offer price when present, otherwise the list price.
func OfferOr(offer *decimal.Decimal, price decimal.Decimal) decimal.Decimal {
	if offer != nil {
		return NonNegative(*offer)
	}
	return NonNegative(price)
}
