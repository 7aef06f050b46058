// Package cart supplies the priced cart consumed by checkout. Pricing and
// stock validation happen before items land here.
package cart

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
)

// Item is one priced cart entry.
type Item struct {
	ProductID      uuid.UUID
	VendorID       uuid.UUID
	Name           string
	Image          *string
	Qty            int
	UnitPriceCents int64
}

// Cart is an owned snapshot of a customer's cart. Checkout receives it by
// value and never reaches back into shared state.
type Cart struct {
	CustomerID uuid.UUID
	Items      []Item
}

// IsEmpty reports whether the cart has no items.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Validate checks every entry. Index details point at the offending item.
func (c Cart) Validate() error {
	if c.IsEmpty() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}
	for i, item := range c.Items {
		switch {
		case item.ProductID == uuid.Nil:
			return itemError(i, "product id is required")
		case item.VendorID == uuid.Nil:
			return itemError(i, "vendor id is required")
		case item.Qty <= 0:
			return itemError(i, "quantity must be greater than zero")
		case item.UnitPriceCents < 0:
			return itemError(i, "unit price must not be negative")
		}
	}
	return nil
}

func itemError(index int, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"item": index})
}

// ProductIDs returns the distinct product ids in the cart.
func (c Cart) ProductIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(c.Items))
	ids := make([]uuid.UUID, 0, len(c.Items))
	for _, item := range c.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// FromModels converts stored cart rows into a Cart.
func FromModels(customerID uuid.UUID, rows []models.CartItem) Cart {
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, Item{
			ProductID:      row.ProductID,
			VendorID:       row.VendorID,
			Name:           row.Name,
			Image:          row.Image,
			Qty:            row.Qty,
			UnitPriceCents: row.UnitPriceCents,
		})
	}
	return Cart{CustomerID: customerID, Items: items}
}
