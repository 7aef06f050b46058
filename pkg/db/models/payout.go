package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

// Payout is a vendor withdrawal request. BankDetails is the snapshot taken at
// request time.
type Payout struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	VendorID        uuid.UUID          `gorm:"column:vendor_id;type:uuid;not null;index"`
	AmountCents     int64              `gorm:"column:amount_cents;not null"`
	BankDetails     types.BankDetails  `gorm:"column:bank_details;type:jsonb;serializer:json;not null"`
	Status          enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'pending'"`
	Notes           *string            `gorm:"column:notes"`
	RequestedAt     time.Time          `gorm:"column:requested_at;not null"`
	ApprovedAt      *time.Time         `gorm:"column:approved_at"`
	ApprovedBy      *uuid.UUID         `gorm:"column:approved_by;type:uuid"`
	ProcessedAt     *time.Time         `gorm:"column:processed_at"`
	TransactionID   *string            `gorm:"column:transaction_id"`
	RejectionReason *string            `gorm:"column:rejection_reason"`
	FailureReason   *string            `gorm:"column:failure_reason"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
