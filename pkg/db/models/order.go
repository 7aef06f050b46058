package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

// Order is the customer-facing aggregate created once per checkout.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID      uuid.UUID             `gorm:"column:customer_id;type:uuid;not null;index"`
	DedupKey        *string               `gorm:"column:dedup_key;uniqueIndex"`
	ShippingAddress types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	PaymentMethod   string                `gorm:"column:payment_method;not null"`
	TaxCents        int64                 `gorm:"column:tax_cents;not null;default:0"`
	ShippingCents   int64                 `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents      int64                 `gorm:"column:total_cents;not null"`
	IsPaid          bool                  `gorm:"column:is_paid;not null;default:false"`
	PaidAt          *time.Time            `gorm:"column:paid_at"`
	IsDelivered     bool                  `gorm:"column:is_delivered;not null;default:false"`
	DeliveredAt     *time.Time            `gorm:"column:delivered_at"`
	Status          enums.OrderStatus     `gorm:"column:status;type:order_status;not null;default:'pending'"`
	VendorOrders    []VendorSubOrder      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// SubtotalCents sums the vendor subtotals.
func (o *Order) SubtotalCents() int64 {
	var sum int64
	for _, vo := range o.VendorOrders {
		sum += vo.SubtotalCents
	}
	return sum
}

// SubOrderFor returns the sub-order owned by vendorID, if any.
func (o *Order) SubOrderFor(vendorID uuid.UUID) *VendorSubOrder {
	for i := range o.VendorOrders {
		if o.VendorOrders[i].VendorID == vendorID {
			return &o.VendorOrders[i]
		}
	}
	return nil
}

// AllDelivered reports whether every sub-order has been delivered.
func (o *Order) AllDelivered() bool {
	if len(o.VendorOrders) == 0 {
		return false
	}
	for _, vo := range o.VendorOrders {
		if vo.Status != enums.OrderStatusDelivered {
			return false
		}
	}
	return true
}
