package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order, its sub-orders and their line items. Ids must be
// assigned by the caller.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}
	if len(order.VendorOrders) == 0 {
		return nil
	}
	if err := conn.Omit(clause.Associations).Create(&order.VendorOrders).Error; err != nil {
		return err
	}
	var items []models.OrderLineItem
	for _, sub := range order.VendorOrders {
		items = append(items, sub.Items...)
	}
	if len(items) == 0 {
		return nil
	}
	return conn.Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := withSubOrders(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate locks the order row so concurrent sub-order updates derive
// the parent status one at a time.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := withSubOrders(r.db.WithContext(ctx)).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByDedupKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := withSubOrders(r.db.WithContext(ctx)).
		Where("dedup_key = ?", key).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindHeaders loads orders without their sub-orders.
func (r *repository) FindHeaders(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	if len(ids) == 0 {
		return orders, nil
	}
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ListForCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Page) ([]models.Order, int64, error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&models.Order{}).Where("customer_id = ?", customerID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	var orders []models.Order
	err := withSubOrders(r.db.WithContext(ctx)).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *repository) ListSubOrdersForVendor(ctx context.Context, vendorID uuid.UUID, filter VendorOrderFilter) ([]models.VendorSubOrder, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("vendor_id = ?", vendorID)
		if filter.Status != nil {
			db = db.Where("status = ?", *filter.Status)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.VendorSubOrder{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page.Normalize()
	var subs []models.VendorSubOrder
	err := r.db.WithContext(ctx).
		Scopes(scope).
		Preload("Items", orderByPosition).
		Order("created_at DESC").
		Order("id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&subs).Error
	if err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// UpdateSubOrder persists the mutable fields of a sub-order.
func (r *repository) UpdateSubOrder(ctx context.Context, sub *models.VendorSubOrder) error {
	res := r.db.WithContext(ctx).
		Model(&models.VendorSubOrder{ID: sub.ID}).
		Select("status", "tracking").
		Updates(&models.VendorSubOrder{Status: sub.Status, Tracking: sub.Tracking})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateOrderStatus sets the parent status. A non-nil deliveredAt also marks
// the order delivered.
func (r *repository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, deliveredAt *time.Time) error {
	updates := map[string]any{"status": status}
	if deliveredAt != nil {
		updates["is_delivered"] = true
		updates["delivered_at"] = deliveredAt.UTC()
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func withSubOrders(db *gorm.DB) *gorm.DB {
	return db.
		Preload("VendorOrders", orderByPosition).
		Preload("VendorOrders.Items", orderByPosition)
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
