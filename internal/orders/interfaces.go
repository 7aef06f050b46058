package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

// VendorOrderFilter narrows a vendor's sub-order listing.
type VendorOrderFilter struct {
	Status *enums.OrderStatus
	Page   pagination.Page
}

// Repository exposes persistence for orders and their vendor sub-orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByDedupKey(ctx context.Context, key string) (*models.Order, error)
	FindHeaders(ctx context.Context, ids []uuid.UUID) ([]models.Order, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Page) ([]models.Order, int64, error)
	ListSubOrdersForVendor(ctx context.Context, vendorID uuid.UUID, filter VendorOrderFilter) ([]models.VendorSubOrder, int64, error)
	UpdateSubOrder(ctx context.Context, sub *models.VendorSubOrder) error
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, deliveredAt *time.Time) error
}
