package router

import (
	"errors"
	"fmt"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
	"github.com/angelmondragon/vendorledger/pkg/outbox/payloads"
)

func orderCreatedRows(envelope types.Envelope, payload any) ([]types.LedgerEventRow, error) {
	event, ok := payload.(*payloads.OrderCreatedEvent)
	if !ok {
		return nil, fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	if len(event.Vendors) == 0 {
		return nil, errors.New("order has no vendor shares")
	}
	rows := make([]types.LedgerEventRow, 0, len(event.Vendors))
	for _, share := range event.Vendors {
		row, err := baseRow(envelope)
		if err != nil {
			return nil, err
		}
		row.OrderID = uuidPtr(event.OrderID)
		row.CustomerID = uuidPtr(event.CustomerID)
		row.VendorID = uuidPtr(share.VendorID)
		row.SubOrderID = uuidPtr(share.SubOrderID)
		row.GrossCents = int64Ptr(share.SubtotalCents)
		row.CommissionCents = int64Ptr(share.CommissionCents)
		row.NetCents = int64Ptr(share.EarningsCents)
		rows = append(rows, row)
	}
	return rows, nil
}

func vendorOrderStatusRows(envelope types.Envelope, payload any) ([]types.LedgerEventRow, error) {
	event, ok := payload.(*payloads.VendorOrderStatusChangedEvent)
	if !ok {
		return nil, fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	row, err := baseRow(envelope)
	if err != nil {
		return nil, err
	}
	row.OrderID = uuidPtr(event.OrderID)
	row.SubOrderID = uuidPtr(event.SubOrderID)
	row.VendorID = uuidPtr(event.VendorID)
	row.StatusFrom = stringPtr(string(event.From))
	row.StatusTo = stringPtr(string(event.To))
	return []types.LedgerEventRow{row}, nil
}

func orderStatusRows(envelope types.Envelope, payload any) ([]types.LedgerEventRow, error) {
	event, ok := payload.(*payloads.OrderStatusChangedEvent)
	if !ok {
		return nil, fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	row, err := baseRow(envelope)
	if err != nil {
		return nil, err
	}
	row.OrderID = uuidPtr(event.OrderID)
	row.StatusFrom = stringPtr(string(event.From))
	row.StatusTo = stringPtr(string(event.To))
	return []types.LedgerEventRow{row}, nil
}
