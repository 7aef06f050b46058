package types

import (
	"strings"
	"time"

	"github.com/angelmondragon/vendorledger/pkg/enums"
)

// ShippingAddress is stored as jsonb on the order.
type ShippingAddress struct {
	FullName   string  `json:"full_name" validate:"required"`
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" validate:"required"`
	State      string  `json:"state" validate:"required"`
	PostalCode string  `json:"postal_code" validate:"required"`
	Country    string  `json:"country" validate:"required,iso3166_1_alpha2"`
	Phone      string  `json:"phone,omitempty"`
}

// BankDetails holds the payout destination of a vendor. Payouts keep their own
// copy taken at request time.
type BankDetails struct {
	AccountHolderName string                `json:"account_holder_name"`
	AccountNumber     string                `json:"account_number"`
	BankName          string                `json:"bank_name"`
	IFSCCode          string                `json:"ifsc_code"`
	AccountType       enums.BankAccountType `json:"account_type"`
}

// Complete reports whether enough is on file to send money.
func (b *BankDetails) Complete() bool {
	if b == nil {
		return false
	}
	return strings.TrimSpace(b.AccountHolderName) != "" &&
		strings.TrimSpace(b.AccountNumber) != "" &&
		strings.TrimSpace(b.BankName) != ""
}

// Masked returns a copy with all but the last four account digits hidden.
func (b BankDetails) Masked() BankDetails {
	n := len(b.AccountNumber)
	if n > 4 {
		b.AccountNumber = strings.Repeat("*", n-4) + b.AccountNumber[n-4:]
	}
	return b
}

// Tracking is the shipment sub-record of a vendor sub-order.
type Tracking struct {
	Carrier           string            `json:"carrier,omitempty"`
	TrackingNumber    string            `json:"tracking_number,omitempty"`
	Status            enums.OrderStatus `json:"status,omitempty"`
	EstimatedDelivery *time.Time        `json:"estimated_delivery,omitempty"`
}
