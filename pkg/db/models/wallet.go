package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/enums"
)

// Wallet holds the running totals of a vendor ledger. Every column is a fold
// over the vendor's wallet_transactions rows.
type Wallet struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	VendorID             uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex" json:"vendor_id"`
	BalanceCents         int64     `gorm:"column:balance_cents;not null;default:0" json:"balance_cents"`
	TotalEarningsCents   int64     `gorm:"column:total_earnings_cents;not null;default:0" json:"total_earnings_cents"`
	TotalCommissionCents int64     `gorm:"column:total_commission_cents;not null;default:0" json:"total_commission_cents"`
	TotalRefundsCents    int64     `gorm:"column:total_refunds_cents;not null;default:0" json:"total_refunds_cents"`
	TotalDebitsCents     int64     `gorm:"column:total_debits_cents;not null;default:0" json:"total_debits_cents"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// WalletTransaction is an append-only ledger entry. Rows are never updated.
type WalletTransaction struct {
	ID          uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	WalletID    uuid.UUID                   `gorm:"column:wallet_id;type:uuid;not null;index" json:"wallet_id"`
	VendorID    uuid.UUID                   `gorm:"column:vendor_id;type:uuid;not null;index" json:"vendor_id"`
	Type        enums.WalletTransactionType `gorm:"column:type;type:wallet_transaction_type;not null" json:"type"`
	AmountCents int64                       `gorm:"column:amount_cents;not null" json:"amount_cents"`
	Description string                      `gorm:"column:description;not null" json:"description"`
	OrderID     *uuid.UUID                  `gorm:"column:order_id;type:uuid" json:"order_id,omitempty"`
	PayoutID    *uuid.UUID                  `gorm:"column:payout_id;type:uuid" json:"payout_id,omitempty"`
	DedupKey    string                      `gorm:"column:dedup_key;not null;uniqueIndex" json:"-"`
	CreatedAt   time.Time                   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
