package router

import (
	"fmt"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
	"github.com/angelmondragon/vendorledger/pkg/outbox/payloads"
)

func payoutRows(envelope types.Envelope, payload any) ([]types.LedgerEventRow, error) {
	event, ok := payload.(*payloads.PayoutEvent)
	if !ok {
		return nil, fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	row, err := baseRow(envelope)
	if err != nil {
		return nil, err
	}
	row.PayoutID = uuidPtr(event.PayoutID)
	row.VendorID = uuidPtr(event.VendorID)
	row.AmountCents = int64Ptr(event.AmountCents)
	row.StatusFrom = stringPtr(string(event.From))
	row.StatusTo = stringPtr(string(event.To))
	return []types.LedgerEventRow{row}, nil
}

func bankDetailsRows(envelope types.Envelope, payload any) ([]types.LedgerEventRow, error) {
	event, ok := payload.(*payloads.BankDetailsUpdatedEvent)
	if !ok {
		return nil, fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	row, err := baseRow(envelope)
	if err != nil {
		return nil, err
	}
	row.VendorID = uuidPtr(event.VendorID)
	return []types.LedgerEventRow{row}, nil
}
