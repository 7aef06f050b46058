package orders

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorledger/internal/cart"
	"github.com/angelmondragon/vendorledger/internal/commission"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

// Share is one vendor's slice of a cart.
type Share struct {
	VendorID uuid.UUID
	Items    []cart.Item
	commission.Split
}

// VendorIDs returns the distinct vendors of items in first-seen order.
func VendorIDs(items []cart.Item) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	out := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.VendorID]; ok {
			continue
		}
		seen[item.VendorID] = struct{}{}
		out = append(out, item.VendorID)
	}
	return out
}

// Split groups items by vendor in first-seen order and applies each vendor's
// commission rate to its subtotal. Every vendor in items must have a rate.
func Split(items []cart.Item, rates map[uuid.UUID]decimal.Decimal) ([]Share, error) {
	index := make(map[uuid.UUID]int)
	shares := make([]Share, 0)
	subtotals := make([]int64, 0)

	for i, item := range items {
		lineTotal, err := commission.LineTotal(item.UnitPriceCents, item.Qty)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart item").
				WithDetails(map[string]any{"item": i})
		}
		pos, ok := index[item.VendorID]
		if !ok {
			pos = len(shares)
			index[item.VendorID] = pos
			shares = append(shares, Share{VendorID: item.VendorID})
			subtotals = append(subtotals, 0)
		}
		if subtotals[pos] > math.MaxInt64-lineTotal {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor subtotal overflows").
				WithDetails(map[string]any{"vendor_id": item.VendorID.String()})
		}
		subtotals[pos] += lineTotal
		shares[pos].Items = append(shares[pos].Items, item)
	}

	for i := range shares {
		rate, ok := rates[shares[i].VendorID]
		if !ok {
			return nil, invalidVendor(shares[i].VendorID)
		}
		split, err := commission.Calculate(subtotals[i], rate)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid commission").
				WithDetails(map[string]any{"vendor_id": shares[i].VendorID.String()})
		}
		shares[i].Split = split
	}
	return shares, nil
}

// orderDraft carries the non-cart inputs of a new order.
type orderDraft struct {
	CustomerID      uuid.UUID
	DedupKey        *string
	ShippingAddress types.ShippingAddress
	PaymentMethod   string
	TaxCents        int64
	ShippingCents   int64
	Now             time.Time
}

// buildOrder materializes shares into an order aggregate with ids assigned.
func buildOrder(draft orderDraft, shares []Share) (*models.Order, error) {
	now := draft.Now.UTC()
	order := &models.Order{
		ID:              uuid.New(),
		CustomerID:      draft.CustomerID,
		DedupKey:        draft.DedupKey,
		ShippingAddress: draft.ShippingAddress,
		PaymentMethod:   draft.PaymentMethod,
		TaxCents:        draft.TaxCents,
		ShippingCents:   draft.ShippingCents,
		IsPaid:          true,
		PaidAt:          &now,
		Status:          enums.OrderStatusPending,
	}

	for pos, share := range shares {
		sub := models.VendorSubOrder{
			ID:                   uuid.New(),
			OrderID:              order.ID,
			VendorID:             share.VendorID,
			Position:             pos,
			SubtotalCents:        share.SubtotalCents,
			CommissionPercentage: share.Percentage,
			CommissionCents:      share.CommissionCents,
			EarningsCents:        share.EarningsCents,
			Status:               enums.OrderStatusPending,
		}
		for i, item := range share.Items {
			sub.Items = append(sub.Items, models.OrderLineItem{
				ID:             uuid.New(),
				SubOrderID:     sub.ID,
				Position:       i,
				ProductID:      item.ProductID,
				Name:           item.Name,
				Image:          item.Image,
				Qty:            item.Qty,
				UnitPriceCents: item.UnitPriceCents,
				TotalCents:     item.UnitPriceCents * int64(item.Qty),
			})
		}
		order.VendorOrders = append(order.VendorOrders, sub)
	}

	subtotal := order.SubtotalCents()
	if subtotal > math.MaxInt64-draft.TaxCents-draft.ShippingCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total overflows")
	}
	order.TotalCents = subtotal + draft.TaxCents + draft.ShippingCents
	return order, nil
}

func invalidVendor(vendorID uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "vendor %s is not available", vendorID).
		WithDetails(map[string]any{"vendor_id": vendorID.String()})
}
