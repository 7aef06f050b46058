package vendors

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

// EarningsAggregate sums delivered sub-orders of one vendor.
type EarningsAggregate struct {
	Orders          int64
	EarningsCents   int64
	CommissionCents int64
}

// Repository is the vendor directory.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Vendor, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Vendor, error)
	UpdateBankDetails(ctx context.Context, id uuid.UUID, details types.BankDetails) error
	IncrementOrderStats(ctx context.Context, id uuid.UUID, orders, salesCents int64) error
	DeliveredSince(ctx context.Context, vendorID uuid.UUID, since time.Time) (EarningsAggregate, error)
	CountProducts(ctx context.Context, vendorID uuid.UUID) (int64, error)
	RecentSubOrders(ctx context.Context, vendorID uuid.UUID, limit int) ([]RecentOrder, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a vendor repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Vendor, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var vendors []models.Vendor
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&vendors).Error; err != nil {
		return nil, err
	}
	return vendors, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) UpdateBankDetails(ctx context.Context, id uuid.UUID, details types.BankDetails) error {
	res := r.db.WithContext(ctx).
		Model(&models.Vendor{ID: id}).
		Select("bank_details").
		Updates(&models.Vendor{BankDetails: &details})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementOrderStats bumps the denormalized counters with a single UPDATE.
func (r *repository) IncrementOrderStats(ctx context.Context, id uuid.UUID, orders, salesCents int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Vendor{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_orders":      gorm.Expr("total_orders + ?", orders),
			"total_sales_cents": gorm.Expr("total_sales_cents + ?", salesCents),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeliveredSince aggregates the vendor's delivered sub-orders whose parent
// order was placed at or after since.
func (r *repository) DeliveredSince(ctx context.Context, vendorID uuid.UUID, since time.Time) (EarningsAggregate, error) {
	var agg EarningsAggregate
	err := r.db.WithContext(ctx).
		Table("vendor_sub_orders AS vso").
		Select("COUNT(*) AS orders, COALESCE(SUM(vso.earnings_cents), 0) AS earnings_cents, COALESCE(SUM(vso.commission_cents), 0) AS commission_cents").
		Joins("JOIN orders o ON o.id = vso.order_id").
		Where("vso.vendor_id = ? AND vso.status = ? AND o.created_at >= ?", vendorID, enums.OrderStatusDelivered, since.UTC()).
		Scan(&agg).Error
	return agg, err
}

func (r *repository) CountProducts(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("vendor_id = ?", vendorID).
		Count(&count).Error
	return count, err
}

// RecentSubOrders returns the vendor's newest sub-orders with their parent
// order's status and placement time.
func (r *repository) RecentSubOrders(ctx context.Context, vendorID uuid.UUID, limit int) ([]RecentOrder, error) {
	var rows []RecentOrder
	err := r.db.WithContext(ctx).
		Table("vendor_sub_orders AS vso").
		Select(strings.Join([]string{
			"vso.order_id AS order_id",
			"vso.id AS sub_order_id",
			"o.customer_id AS customer_id",
			"o.status AS order_status",
			"vso.status AS status",
			"vso.subtotal_cents AS subtotal_cents",
			"vso.earnings_cents AS earnings_cents",
			"o.created_at AS placed_at",
		}, ", ")).
		Joins("JOIN orders o ON o.id = vso.order_id").
		Where("vso.vendor_id = ?", vendorID).
		Order("o.created_at DESC").
		Order("vso.id DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
