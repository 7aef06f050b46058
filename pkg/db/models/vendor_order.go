package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

// VendorSubOrder is one vendor's share of an order. It has no lifecycle
// outside its parent.
type VendorSubOrder struct {
	ID                   uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID              uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	VendorID             uuid.UUID         `gorm:"column:vendor_id;type:uuid;not null;index"`
	Position             int               `gorm:"column:position;not null"`
	SubtotalCents        int64             `gorm:"column:subtotal_cents;not null"`
	CommissionPercentage decimal.Decimal   `gorm:"column:commission_percentage;type:numeric(5,2);not null"`
	CommissionCents      int64             `gorm:"column:commission_cents;not null"`
	EarningsCents        int64             `gorm:"column:earnings_cents;not null"`
	Status               enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Tracking             *types.Tracking   `gorm:"column:tracking;type:jsonb;serializer:json"`
	Items                []OrderLineItem   `gorm:"foreignKey:SubOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
