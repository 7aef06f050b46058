package admin

import "github.com/angelmondragon/vendorledger/pkg/enums"

type VendorCounts struct {
	Total     int64 `json:"total"`
	Approved  int64 `json:"approved"`
	Pending   int64 `json:"pending"`
	Suspended int64 `json:"suspended"`
}

type ProductCounts struct {
	Total int64 `json:"total"`
}

type OrderCounts struct {
	Total      int64 `json:"total"`
	Paid       int64 `json:"paid"`
	TotalCents int64 `json:"total_cents"`
}

// PayoutCounts keeps the per-status buckets next to the headline numbers.
type PayoutCounts struct {
	Total    int64                               `json:"total"`
	Pending  int64                               `json:"pending"`
	ByStatus map[enums.PayoutStatus]PayoutBucket `json:"by_status"`
}

type Revenue struct {
	PlatformRevenueCents int64 `json:"platform_revenue_cents"`
}

// Dashboard is the admin landing view.
type Dashboard struct {
	Vendors  VendorCounts  `json:"vendors"`
	Products ProductCounts `json:"products"`
	Orders   OrderCounts   `json:"orders"`
	Payouts  PayoutCounts  `json:"payouts"`
	Revenue  Revenue       `json:"revenue"`
}

func buildDashboard(vendors map[enums.VendorStatus]int64, products int64, orders OrderTotals, payouts map[enums.PayoutStatus]PayoutBucket, revenue int64) *Dashboard {
	dash := &Dashboard{
		Vendors: VendorCounts{
			Approved:  vendors[enums.VendorStatusApproved],
			Pending:   vendors[enums.VendorStatusPending],
			Suspended: vendors[enums.VendorStatusSuspended],
		},
		Products: ProductCounts{Total: products},
		Orders: OrderCounts{
			Total:      orders.Orders,
			Paid:       orders.Paid,
			TotalCents: orders.TotalCents,
		},
		Payouts: PayoutCounts{
			Pending:  payouts[enums.PayoutStatusPending].Count,
			ByStatus: make(map[enums.PayoutStatus]PayoutBucket, len(payouts)),
		},
		Revenue: Revenue{PlatformRevenueCents: revenue},
	}
	for _, count := range vendors {
		dash.Vendors.Total += count
	}
	for status, bucket := range payouts {
		dash.Payouts.Total += bucket.Count
		dash.Payouts.ByStatus[status] = bucket
	}
	return dash
}
