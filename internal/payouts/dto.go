package payouts

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/pagination"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

type RequestPayoutInput struct {
	AmountCents int64   `json:"amount_cents" validate:"gt=0"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type ProcessPayoutInput struct {
	TransactionID string `json:"transaction_id" validate:"required,notblank,max=200"`
}

// RejectPayoutInput carries an optional reason. A blank reason is stored as
// DefaultRejectionReason.
type RejectPayoutInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

// PayoutDTO is the API shape of a payout. Bank account numbers are masked.
type PayoutDTO struct {
	ID              uuid.UUID          `json:"id"`
	VendorID        uuid.UUID          `json:"vendor_id"`
	AmountCents     int64              `json:"amount_cents"`
	BankDetails     types.BankDetails  `json:"bank_details"`
	Status          enums.PayoutStatus `json:"status"`
	Notes           *string            `json:"notes,omitempty"`
	RequestedAt     time.Time          `json:"requested_at"`
	ApprovedAt      *time.Time         `json:"approved_at,omitempty"`
	ApprovedBy      *uuid.UUID         `json:"approved_by,omitempty"`
	ProcessedAt     *time.Time         `json:"processed_at,omitempty"`
	TransactionID   *string            `json:"transaction_id,omitempty"`
	RejectionReason *string            `json:"rejection_reason,omitempty"`
	FailureReason   *string            `json:"failure_reason,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

type PayoutList struct {
	Payouts []PayoutDTO         `json:"payouts"`
	Page    pagination.PageInfo `json:"page"`
}

func FromModel(p *models.Payout) *PayoutDTO {
	if p == nil {
		return nil
	}
	return &PayoutDTO{
		ID:              p.ID,
		VendorID:        p.VendorID,
		AmountCents:     p.AmountCents,
		BankDetails:     p.BankDetails.Masked(),
		Status:          p.Status,
		Notes:           p.Notes,
		RequestedAt:     p.RequestedAt,
		ApprovedAt:      p.ApprovedAt,
		ApprovedBy:      p.ApprovedBy,
		ProcessedAt:     p.ProcessedAt,
		TransactionID:   p.TransactionID,
		RejectionReason: p.RejectionReason,
		FailureReason:   p.FailureReason,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
