package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/enums"
)

// VendorShare is one vendor's slice of a new order.
type VendorShare struct {
	VendorID        uuid.UUID `json:"vendor_id"`
	SubOrderID      uuid.UUID `json:"sub_order_id"`
	SubtotalCents   int64     `json:"subtotal_cents"`
	CommissionCents int64     `json:"commission_cents"`
	EarningsCents   int64     `json:"earnings_cents"`
	CommissionPct   string    `json:"commission_pct"`
}

// OrderCreatedEvent signals a checkout split across vendors.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID     `json:"order_id"`
	CustomerID    uuid.UUID     `json:"customer_id"`
	TotalCents    int64         `json:"total_cents"`
	TaxCents      int64         `json:"tax_cents"`
	ShippingCents int64         `json:"shipping_cents"`
	Vendors       []VendorShare `json:"vendors"`
}

// VendorOrderStatusChangedEvent is emitted when a vendor moves its sub-order.
type VendorOrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	SubOrderID uuid.UUID         `json:"sub_order_id"`
	VendorID   uuid.UUID         `json:"vendor_id"`
	From       enums.OrderStatus `json:"from"`
	To         enums.OrderStatus `json:"to"`
}

// OrderStatusChangedEvent is emitted when the parent order status changes,
// either derived from sub-orders or forced by an admin.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	DeliveredAt *time.Time        `json:"delivered_at,omitempty"`
}

// PayoutEvent describes a payout state change.
type PayoutEvent struct {
	PayoutID      uuid.UUID          `json:"payout_id"`
	VendorID      uuid.UUID          `json:"vendor_id"`
	AmountCents   int64              `json:"amount_cents"`
	From          enums.PayoutStatus `json:"from,omitempty"`
	To            enums.PayoutStatus `json:"to"`
	TransactionID *string            `json:"transaction_id,omitempty"`
	Reason        *string            `json:"reason,omitempty"`
	RefundedCents int64              `json:"refunded_cents,omitempty"`
}

// BankDetailsUpdatedEvent records that a vendor changed its payout account.
// Account numbers are masked.
type BankDetailsUpdatedEvent struct {
	VendorID      uuid.UUID `json:"vendor_id"`
	BankName      string    `json:"bank_name"`
	AccountMasked string    `json:"account_masked"`
}
