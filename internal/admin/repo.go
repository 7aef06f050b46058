package admin

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
)

// OrderTotals aggregates every placed order.
type OrderTotals struct {
	Orders     int64
	Paid       int64
	TotalCents int64
}

// PayoutBucket is the count and amount of payouts in one status.
type PayoutBucket struct {
	Count       int64 `json:"count"`
	AmountCents int64 `json:"amount_cents"`
}

// Repository runs the platform-wide aggregates behind the admin dashboard.
type Repository interface {
	VendorsByStatus(ctx context.Context) (map[enums.VendorStatus]int64, error)
	CountProducts(ctx context.Context) (int64, error)
	OrderTotals(ctx context.Context) (OrderTotals, error)
	PayoutsByStatus(ctx context.Context) (map[enums.PayoutStatus]PayoutBucket, error)
	PlatformRevenue(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the aggregate repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) VendorsByStatus(ctx context.Context) (map[enums.VendorStatus]int64, error) {
	var rows []struct {
		Status enums.VendorStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Vendor{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.VendorStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

func (r *repository) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.InventoryItem{}).Count(&count).Error
	return count, err
}

func (r *repository) OrderTotals(ctx context.Context) (OrderTotals, error) {
	var totals OrderTotals
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("COUNT(*) AS orders, COALESCE(SUM(CASE WHEN is_paid THEN 1 ELSE 0 END), 0) AS paid, COALESCE(SUM(total_cents), 0) AS total_cents").
		Scan(&totals).Error
	return totals, err
}

func (r *repository) PayoutsByStatus(ctx context.Context) (map[enums.PayoutStatus]PayoutBucket, error) {
	var rows []struct {
		Status      enums.PayoutStatus
		Count       int64
		AmountCents int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount_cents), 0) AS amount_cents").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.PayoutStatus]PayoutBucket, len(rows))
	for _, row := range rows {
		out[row.Status] = PayoutBucket{Count: row.Count, AmountCents: row.AmountCents}
	}
	return out, nil
}

// PlatformRevenue sums the commission withheld on sub-orders of paid orders.
func (r *repository) PlatformRevenue(ctx context.Context) (int64, error) {
	var revenue int64
	err := r.db.WithContext(ctx).
		Table("vendor_sub_orders AS vso").
		Select("COALESCE(SUM(vso.commission_cents), 0)").
		Joins("JOIN orders o ON o.id = vso.order_id").
		Where("o.is_paid = ?", true).
		Scan(&revenue).Error
	return revenue, err
}
