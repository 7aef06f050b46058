// Package inventory decrements live stock for checkout.
package inventory

import (
	"bytes"
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
)

// Line is a quantity to take from one product.
type Line struct {
	ProductID uuid.UUID
	Qty       int
}

// Repository exposes the stock operations checkout depends on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Decrement(ctx context.Context, lines []Line) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Decrement takes stock for every line or fails. Lines for the same product
// are merged and products are updated in id order so concurrent checkouts
// lock rows consistently. Run it inside the checkout transaction.
func (r *repository) Decrement(ctx context.Context, lines []Line) error {
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}
	for _, line := range merged {
		res := r.db.WithContext(ctx).
			Model(&models.InventoryItem{}).
			Where("product_id = ? AND available_qty >= ?", line.ProductID, line.Qty).
			Update("available_qty", gorm.Expr("available_qty - ?", line.Qty))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement inventory")
		}
		if res.RowsAffected == 1 {
			continue
		}

		var item models.InventoryItem
		err := r.db.WithContext(ctx).Where("product_id = ?", line.ProductID).First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
			WithDetails(map[string]any{
				"product_id":    line.ProductID.String(),
				"requested":     line.Qty,
				"available_qty": item.AvailableQty,
			})
	}
	return nil
}

func mergeLines(lines []Line) ([]Line, error) {
	totals := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
		totals[line.ProductID] += line.Qty
	}
	out := make([]Line, 0, len(totals))
	for id, qty := range totals {
		out = append(out, Line{ProductID: id, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ProductID[:], out[j].ProductID[:]) < 0
	})
	return out, nil
}
