package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder  OutboxAggregateType = "order"
	AggregateWallet OutboxAggregateType = "wallet"
	AggregatePayout OutboxAggregateType = "payout"
	AggregateVendor OutboxAggregateType = "vendor"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateWallet,
	AggregatePayout,
	AggregateVendor,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated             OutboxEventType = "order_created"
	EventOrderStatusChanged       OutboxEventType = "order_status_changed"
	EventVendorOrderStatusChanged OutboxEventType = "vendor_order_status_changed"
	EventOrderDelivered           OutboxEventType = "order_delivered"
	EventPayoutRequested          OutboxEventType = "payout_requested"
	EventPayoutApproved           OutboxEventType = "payout_approved"
	EventPayoutProcessing         OutboxEventType = "payout_processing"
	EventPayoutCompleted          OutboxEventType = "payout_completed"
	EventPayoutRejected           OutboxEventType = "payout_rejected"
	EventPayoutFailed             OutboxEventType = "payout_failed"
	EventPayoutCancelled          OutboxEventType = "payout_cancelled"
	EventBankDetailsUpdated       OutboxEventType = "bank_details_updated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventVendorOrderStatusChanged,
	EventOrderDelivered,
	EventPayoutRequested,
	EventPayoutApproved,
	EventPayoutProcessing,
	EventPayoutCompleted,
	EventPayoutRejected,
	EventPayoutFailed,
	EventPayoutCancelled,
	EventBankDetailsUpdated,
}

// OutboxEventTypes lists every event type in declaration order.
func OutboxEventTypes() []OutboxEventType {
	return append([]OutboxEventType(nil), validOutboxEventTypes...)
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
