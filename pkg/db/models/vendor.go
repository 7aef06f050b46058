package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

// Vendor is the directory record consulted for commission rates and bank
// details. Approval itself is managed elsewhere.
type Vendor struct {
	ID                   uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	UserID               uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	StoreName            string             `gorm:"column:store_name;not null"`
	Status               enums.VendorStatus `gorm:"column:status;type:vendor_status;not null;default:'pending'"`
	CommissionPercentage decimal.Decimal    `gorm:"column:commission_percentage;type:numeric(5,2);not null"`
	BankDetails          *types.BankDetails `gorm:"column:bank_details;type:jsonb;serializer:json"`
	TotalOrders          int64              `gorm:"column:total_orders;not null;default:0"`
	TotalSalesCents      int64              `gorm:"column:total_sales_cents;not null;default:0"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
