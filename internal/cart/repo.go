package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
)

// Repository exposes the cart operations checkout depends on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Load(ctx context.Context, customerID uuid.UUID) (Cart, error)
	Clear(ctx context.Context, customerID uuid.UUID, productIDs []uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Load returns the customer's cart in insertion order.
func (r *repository) Load(ctx context.Context, customerID uuid.UUID) (Cart, error) {
	var rows []models.CartItem
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return Cart{}, err
	}
	return FromModels(customerID, rows), nil
}

// Clear removes the customer's rows for the given products. Rows for other
// products stay in the cart.
func (r *repository) Clear(ctx context.Context, customerID uuid.UUID, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("customer_id = ? AND product_id IN ?", customerID, productIDs).
		Delete(&models.CartItem{}).Error
}
