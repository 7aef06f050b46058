package orders

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/angelmondragon/vendorledger/internal/cart"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
)

func TestSplitGroupsByVendorInFirstSeenOrder(t *testing.T) {
	vendorA, vendorB := uuid.New(), uuid.New()
	items := []cart.Item{
		{ProductID: uuid.New(), VendorID: vendorB, Qty: 1, UnitPriceCents: 5000},
		{ProductID: uuid.New(), VendorID: vendorA, Qty: 2, UnitPriceCents: 3000},
		{ProductID: uuid.New(), VendorID: vendorB, Qty: 3, UnitPriceCents: 100},
	}
	rates := map[uuid.UUID]decimal.Decimal{
		vendorA: decimal.NewFromInt(10),
		vendorB: decimal.NewFromInt(20),
	}

	shares, err := Split(items, rates)
	require.NoError(t, err)
	require.Len(t, shares, 2)

	require.Equal(t, vendorB, shares[0].VendorID)
	require.Len(t, shares[0].Items, 2)
	require.Equal(t, int64(5300), shares[0].SubtotalCents)
	require.Equal(t, int64(1060), shares[0].CommissionCents)
	require.Equal(t, int64(4240), shares[0].EarningsCents)

	require.Equal(t, vendorA, shares[1].VendorID)
	require.Equal(t, int64(6000), shares[1].SubtotalCents)
	require.Equal(t, int64(600), shares[1].CommissionCents)
}

func TestSplitRejectsVendorWithoutRate(t *testing.T) {
	vendorID := uuid.New()
	_, err := Split([]cart.Item{{ProductID: uuid.New(), VendorID: vendorID, Qty: 1, UnitPriceCents: 100}}, nil)
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	require.Equal(t, vendorID.String(), details["vendor_id"])
}

func TestSplitRejectsOverflowingLine(t *testing.T) {
	vendorID := uuid.New()
	_, err := Split([]cart.Item{{ProductID: uuid.New(), VendorID: vendorID, Qty: 3, UnitPriceCents: 1 << 62}},
		map[uuid.UUID]decimal.Decimal{vendorID: decimal.NewFromInt(10)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestBuildOrderTotalsAndPositions(t *testing.T) {
	vendorA, vendorB := uuid.New(), uuid.New()
	shares, err := Split([]cart.Item{
		{ProductID: uuid.New(), VendorID: vendorA, Name: "mug", Qty: 2, UnitPriceCents: 3000},
		{ProductID: uuid.New(), VendorID: vendorB, Name: "lamp", Qty: 1, UnitPriceCents: 5000},
	}, map[uuid.UUID]decimal.Decimal{
		vendorA: decimal.NewFromInt(10),
		vendorB: decimal.NewFromInt(20),
	})
	require.NoError(t, err)

	now := time.Date(2026, time.March, 18, 12, 0, 0, 0, time.UTC)
	order, err := buildOrder(orderDraft{
		CustomerID:    uuid.New(),
		PaymentMethod: "card",
		TaxCents:      500,
		ShippingCents: 200,
		Now:           now,
	}, shares)
	require.NoError(t, err)

	require.Equal(t, int64(11700), order.TotalCents)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.True(t, order.IsPaid)
	require.Equal(t, now, *order.PaidAt)
	require.Len(t, order.VendorOrders, 2)
	for i, sub := range order.VendorOrders {
		require.Equal(t, i, sub.Position)
		require.Equal(t, order.ID, sub.OrderID)
		require.Equal(t, enums.OrderStatusPending, sub.Status)
		for _, item := range sub.Items {
			require.Equal(t, sub.ID, item.SubOrderID)
		}
	}
	require.Equal(t, int64(6000), order.VendorOrders[0].Items[0].TotalCents)
}

func TestSplitProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		vendorCount := rapid.IntRange(1, 4).Draw(t, "vendors")
		vendorIDs := make([]uuid.UUID, vendorCount)
		rates := make(map[uuid.UUID]decimal.Decimal, vendorCount)
		for i := range vendorIDs {
			vendorIDs[i] = uuid.New()
			basisPoints := rapid.Int64Range(0, 10000).Draw(t, "rate")
			rates[vendorIDs[i]] = decimal.New(basisPoints, -2)
		}

		n := rapid.IntRange(1, 12).Draw(t, "items")
		items := make([]cart.Item, n)
		var lineSum int64
		for i := range items {
			qty := rapid.IntRange(1, 50).Draw(t, "qty")
			price := rapid.Int64Range(0, 1_000_000).Draw(t, "price")
			items[i] = cart.Item{
				ProductID:      uuid.New(),
				VendorID:       rapid.SampledFrom(vendorIDs).Draw(t, "vendor"),
				Qty:            qty,
				UnitPriceCents: price,
			}
			lineSum += price * int64(qty)
		}
		tax := rapid.Int64Range(0, 100_000).Draw(t, "tax")
		shipping := rapid.Int64Range(0, 100_000).Draw(t, "shipping")

		shares, err := Split(items, rates)
		if err != nil {
			t.Fatalf("split: %v", err)
		}

		expectedOrder := VendorIDs(items)
		if len(shares) != len(expectedOrder) {
			t.Fatalf("expected %d shares, got %d", len(expectedOrder), len(shares))
		}
		var subtotalSum int64
		for i, share := range shares {
			if share.VendorID != expectedOrder[i] {
				t.Fatalf("share %d out of first-seen order", i)
			}
			if share.CommissionCents+share.EarningsCents != share.SubtotalCents {
				t.Fatalf("commission %d + earnings %d != subtotal %d", share.CommissionCents, share.EarningsCents, share.SubtotalCents)
			}
			if share.CommissionCents < 0 || share.CommissionCents > share.SubtotalCents {
				t.Fatalf("commission %d outside [0, %d]", share.CommissionCents, share.SubtotalCents)
			}
			subtotalSum += share.SubtotalCents
		}
		if subtotalSum != lineSum {
			t.Fatalf("subtotals %d != line sum %d", subtotalSum, lineSum)
		}

		order, err := buildOrder(orderDraft{CustomerID: uuid.New(), TaxCents: tax, ShippingCents: shipping, Now: time.Now()}, shares)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if order.TotalCents != lineSum+tax+shipping {
			t.Fatalf("total %d != %d", order.TotalCents, lineSum+tax+shipping)
		}
	})
}
