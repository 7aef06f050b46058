package vendors

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/types"
)

// VendorDTO exposes the vendor profile. Account numbers are masked.
type VendorDTO struct {
	ID                   uuid.UUID          `json:"id"`
	StoreName            string             `json:"store_name"`
	Status               enums.VendorStatus `json:"status"`
	CommissionPercentage string             `json:"commission_percentage"`
	BankDetails          *types.BankDetails `json:"bank_details,omitempty"`
	TotalOrders          int64              `json:"total_orders"`
	TotalSalesCents      int64              `json:"total_sales_cents"`
	CreatedAt            time.Time          `json:"created_at"`
}

// FromModel maps the persisted vendor into a DTO.
func FromModel(m *models.Vendor) *VendorDTO {
	if m == nil {
		return nil
	}
	dto := &VendorDTO{
		ID:                   m.ID,
		StoreName:            m.StoreName,
		Status:               m.Status,
		CommissionPercentage: m.CommissionPercentage.StringFixed(2),
		TotalOrders:          m.TotalOrders,
		TotalSalesCents:      m.TotalSalesCents,
		CreatedAt:            m.CreatedAt,
	}
	if m.BankDetails != nil {
		masked := m.BankDetails.Masked()
		dto.BankDetails = &masked
	}
	return dto
}

// BankDetailsInput is the payload of a bank details update.
type BankDetailsInput struct {
	AccountHolderName string `json:"account_holder_name" validate:"required,max=120"`
	AccountNumber     string `json:"account_number" validate:"required,max=34"`
	BankName          string `json:"bank_name" validate:"required,max=120"`
	IFSCCode          string `json:"ifsc_code" validate:"omitempty,ifsc"`
	AccountType       string `json:"account_type" validate:"omitempty,oneof=savings current"`
}

// WalletSnapshot is the wallet portion of an earnings summary.
type WalletSnapshot struct {
	BalanceCents         int64 `json:"balance_cents"`
	TotalEarningsCents   int64 `json:"total_earnings_cents"`
	TotalCommissionCents int64 `json:"total_commission_cents"`
}

// EarningsSummary reports delivered sales for a calendar period.
type EarningsSummary struct {
	Period                 enums.EarningsPeriod `json:"period"`
	Since                  time.Time            `json:"since"`
	TotalOrders            int64                `json:"total_orders"`
	TotalEarningsCents     int64                `json:"total_earnings_cents"`
	TotalCommissionCents   int64                `json:"total_commission_cents"`
	AverageOrderValueCents int64                `json:"average_order_value_cents"`
	Wallet                 WalletSnapshot       `json:"wallet"`
}

// RecentOrder is one line of the vendor dashboard's order feed.
type RecentOrder struct {
	OrderID       uuid.UUID         `json:"order_id"`
	SubOrderID    uuid.UUID         `json:"sub_order_id"`
	CustomerID    uuid.UUID         `json:"customer_id"`
	OrderStatus   enums.OrderStatus `json:"order_status"`
	Status        enums.OrderStatus `json:"status"`
	SubtotalCents int64             `json:"subtotal_cents"`
	EarningsCents int64             `json:"earnings_cents"`
	PlacedAt      time.Time         `json:"placed_at"`
}

// DashboardStats are the vendor's lifetime counters.
type DashboardStats struct {
	TotalProducts   int64 `json:"total_products"`
	TotalOrders     int64 `json:"total_orders"`
	TotalSalesCents int64 `json:"total_sales_cents"`
}

// Dashboard is the vendor landing view.
type Dashboard struct {
	Vendor       VendorDTO      `json:"vendor"`
	Stats        DashboardStats `json:"stats"`
	Wallet       WalletSnapshot `json:"wallet"`
	RecentOrders []RecentOrder  `json:"recent_orders"`
}
