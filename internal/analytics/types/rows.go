package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// LedgerEventRow mirrors the ledger_events BigQuery schema. An order split
// produces one row per vendor; every other event produces a single row.
type LedgerEventRow struct {
	EventID         string             `bigquery:"event_id"`
	EventType       string             `bigquery:"event_type"`
	OccurredAt      time.Time          `bigquery:"occurred_at"`
	AggregateType   string             `bigquery:"aggregate_type"`
	AggregateID     string             `bigquery:"aggregate_id"`
	VendorID        *string            `bigquery:"vendor_id"`
	OrderID         *string            `bigquery:"order_id"`
	SubOrderID      *string            `bigquery:"sub_order_id"`
	PayoutID        *string            `bigquery:"payout_id"`
	CustomerID      *string            `bigquery:"customer_id"`
	StatusFrom      *string            `bigquery:"status_from"`
	StatusTo        *string            `bigquery:"status_to"`
	GrossCents      *int64             `bigquery:"gross_cents"`
	CommissionCents *int64             `bigquery:"commission_cents"`
	NetCents        *int64             `bigquery:"net_cents"`
	AmountCents     *int64             `bigquery:"amount_cents"`
	Payload         cbigquery.NullJSON `bigquery:"payload"`
}
