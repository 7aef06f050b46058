// Package commission splits a vendor subtotal into platform commission and
// vendor earnings.
package commission

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Split is the result of applying a commission rate to a subtotal.
type Split struct {
	SubtotalCents   int64
	Percentage      decimal.Decimal
	CommissionCents int64
	EarningsCents   int64
}

// Calculate applies pct (0-100) to subtotalCents. The commission is rounded
// half-up to the cent and earnings take the remainder, so the two always sum
// to the subtotal.
func Calculate(subtotalCents int64, pct decimal.Decimal) (Split, error) {
	if subtotalCents < 0 {
		return Split{}, fmt.Errorf("subtotal must be non-negative, got %d", subtotalCents)
	}
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return Split{}, fmt.Errorf("commission percentage must be between 0 and 100, got %s", pct.String())
	}

	// Round(0) is half away from zero, which is half-up for non-negative values.
	commission := decimal.NewFromInt(subtotalCents).Mul(pct).Div(hundred).Round(0).IntPart()
	return Split{
		SubtotalCents:   subtotalCents,
		Percentage:      pct,
		CommissionCents: commission,
		EarningsCents:   subtotalCents - commission,
	}, nil
}

// LineTotal multiplies a unit price by a quantity, refusing overflow.
func LineTotal(unitPriceCents int64, qty int) (int64, error) {
	if unitPriceCents < 0 {
		return 0, fmt.Errorf("unit price must be non-negative, got %d", unitPriceCents)
	}
	if qty <= 0 {
		return 0, fmt.Errorf("quantity must be positive, got %d", qty)
	}
	total := unitPriceCents * int64(qty)
	if unitPriceCents != 0 && total/unitPriceCents != int64(qty) {
		return 0, fmt.Errorf("line total overflows")
	}
	return total, nil
}
