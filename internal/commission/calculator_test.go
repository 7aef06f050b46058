package commission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name       string
		subtotal   int64
		pct        string
		commission int64
		earnings   int64
	}{
		{name: "ten percent", subtotal: 6000, pct: "10", commission: 600, earnings: 5400},
		{name: "twenty percent", subtotal: 5000, pct: "20", commission: 1000, earnings: 4000},
		{name: "half cent rounds up", subtotal: 5, pct: "10", commission: 1, earnings: 4},
		{name: "below half rounds down", subtotal: 14, pct: "10", commission: 1, earnings: 13},
		{name: "fractional rate", subtotal: 999, pct: "12.5", commission: 125, earnings: 874},
		{name: "zero rate", subtotal: 1234, pct: "0", commission: 0, earnings: 1234},
		{name: "full rate", subtotal: 1234, pct: "100", commission: 1234, earnings: 0},
		{name: "empty subtotal", subtotal: 0, pct: "15", commission: 0, earnings: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			split, err := Calculate(tc.subtotal, decimal.RequireFromString(tc.pct))
			require.NoError(t, err)
			require.Equal(t, tc.commission, split.CommissionCents)
			require.Equal(t, tc.earnings, split.EarningsCents)
			require.Equal(t, tc.subtotal, split.SubtotalCents)
		})
	}
}

func TestCalculateRejectsInvalidInput(t *testing.T) {
	_, err := Calculate(-1, decimal.NewFromInt(10))
	require.Error(t, err)

	_, err = Calculate(100, decimal.NewFromInt(-1))
	require.Error(t, err)

	_, err = Calculate(100, decimal.NewFromInt(101))
	require.Error(t, err)
}

func TestLineTotal(t *testing.T) {
	total, err := LineTotal(3000, 2)
	require.NoError(t, err)
	require.Equal(t, int64(6000), total)

	_, err = LineTotal(100, 0)
	require.Error(t, err)

	_, err = LineTotal(-5, 1)
	require.Error(t, err)

	_, err = LineTotal(1<<62, 4)
	require.Error(t, err)
}

func TestCalculateSplitAlwaysSumsToSubtotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		subtotal := rapid.Int64Range(0, 1_000_000_000).Draw(t, "subtotal")
		basisPoints := rapid.Int64Range(0, 10_000).Draw(t, "basisPoints")
		pct := decimal.New(basisPoints, -2)

		split, err := Calculate(subtotal, pct)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if split.CommissionCents+split.EarningsCents != subtotal {
			t.Fatalf("commission %d + earnings %d != subtotal %d", split.CommissionCents, split.EarningsCents, subtotal)
		}
		if split.CommissionCents < 0 || split.EarningsCents < 0 {
			t.Fatalf("negative split: %+v", split)
		}
		exact := decimal.NewFromInt(subtotal).Mul(pct).Div(decimal.NewFromInt(100))
		diff := exact.Sub(decimal.NewFromInt(split.CommissionCents)).Abs()
		if diff.GreaterThan(decimal.RequireFromString("0.5")) {
			t.Fatalf("commission %d too far from exact %s", split.CommissionCents, exact.String())
		}
	})
}
