package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

// CheckoutRequest is the customer input of a checkout. The cart itself is
// loaded server side.
type CheckoutRequest struct {
	ShippingAddress types.ShippingAddress `json:"shipping_address" validate:"required"`
	PaymentMethod   string                `json:"payment_method" validate:"required"`
	TaxCents        int64                 `json:"tax_cents" validate:"gte=0"`
	ShippingCents   int64                 `json:"shipping_cents" validate:"gte=0"`
}

// StatusUpdateRequest moves a sub-order or an order to a new status. Carrier
// and tracking number only apply to vendor updates.
type StatusUpdateRequest struct {
	Status         string `json:"status" validate:"required"`
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

type LineItemDTO struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	Image          *string   `json:"image,omitempty"`
	Qty            int       `json:"qty"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	TotalCents     int64     `json:"total_cents"`
}

type SubOrderDTO struct {
	ID                   uuid.UUID         `json:"id"`
	VendorID             uuid.UUID         `json:"vendor_id"`
	Position             int               `json:"position"`
	SubtotalCents        int64             `json:"subtotal_cents"`
	CommissionPercentage string            `json:"commission_percentage"`
	CommissionCents      int64             `json:"commission_cents"`
	EarningsCents        int64             `json:"earnings_cents"`
	Status               enums.OrderStatus `json:"status"`
	Tracking             *types.Tracking   `json:"tracking,omitempty"`
	Items                []LineItemDTO     `json:"items"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

type OrderDTO struct {
	ID              uuid.UUID             `json:"id"`
	CustomerID      uuid.UUID             `json:"customer_id"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                `json:"payment_method"`
	SubtotalCents   int64                 `json:"subtotal_cents"`
	TaxCents        int64                 `json:"tax_cents"`
	ShippingCents   int64                 `json:"shipping_cents"`
	TotalCents      int64                 `json:"total_cents"`
	IsPaid          bool                  `json:"is_paid"`
	PaidAt          *time.Time            `json:"paid_at,omitempty"`
	IsDelivered     bool                  `json:"is_delivered"`
	DeliveredAt     *time.Time            `json:"delivered_at,omitempty"`
	Status          enums.OrderStatus     `json:"status"`
	VendorOrders    []SubOrderDTO         `json:"vendor_orders"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// VendorOrderDTO is the vendor's view of an order: the parent header plus the
// vendor's own sub-order only.
type VendorOrderDTO struct {
	OrderID         uuid.UUID             `json:"order_id"`
	CustomerID      uuid.UUID             `json:"customer_id"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	OrderStatus     enums.OrderStatus     `json:"order_status"`
	CreatedAt       time.Time             `json:"created_at"`
	SubOrder        SubOrderDTO           `json:"sub_order"`
}

type CustomerOrderList struct {
	Orders []OrderDTO          `json:"orders"`
	Page   pagination.PageInfo `json:"page"`
}

type VendorOrderList struct {
	Orders []VendorOrderDTO    `json:"orders"`
	Page   pagination.PageInfo `json:"page"`
}

// OrderFromModel maps an order aggregate into its API shape.
func OrderFromModel(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:              order.ID,
		CustomerID:      order.CustomerID,
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		SubtotalCents:   order.SubtotalCents(),
		TaxCents:        order.TaxCents,
		ShippingCents:   order.ShippingCents,
		TotalCents:      order.TotalCents,
		IsPaid:          order.IsPaid,
		PaidAt:          order.PaidAt,
		IsDelivered:     order.IsDelivered,
		DeliveredAt:     order.DeliveredAt,
		Status:          order.Status,
		VendorOrders:    make([]SubOrderDTO, 0, len(order.VendorOrders)),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for i := range order.VendorOrders {
		dto.VendorOrders = append(dto.VendorOrders, subOrderFromModel(&order.VendorOrders[i]))
	}
	return dto
}

// VendorOrderFromModel builds the vendor view from an order header and one of
// its sub-orders.
func VendorOrderFromModel(order *models.Order, sub *models.VendorSubOrder) VendorOrderDTO {
	return VendorOrderDTO{
		OrderID:         order.ID,
		CustomerID:      order.CustomerID,
		ShippingAddress: order.ShippingAddress,
		OrderStatus:     order.Status,
		CreatedAt:       order.CreatedAt,
		SubOrder:        subOrderFromModel(sub),
	}
}

func subOrderFromModel(sub *models.VendorSubOrder) SubOrderDTO {
	dto := SubOrderDTO{
		ID:                   sub.ID,
		VendorID:             sub.VendorID,
		Position:             sub.Position,
		SubtotalCents:        sub.SubtotalCents,
		CommissionPercentage: sub.CommissionPercentage.StringFixed(2),
		CommissionCents:      sub.CommissionCents,
		EarningsCents:        sub.EarningsCents,
		Status:               sub.Status,
		Tracking:             sub.Tracking,
		Items:                make([]LineItemDTO, 0, len(sub.Items)),
		UpdatedAt:            sub.UpdatedAt,
	}
	for _, item := range sub.Items {
		dto.Items = append(dto.Items, LineItemDTO{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Name:           item.Name,
			Image:          item.Image,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		})
	}
	return dto
}
