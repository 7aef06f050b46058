package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
	"github.com/angelmondragon/vendorledger/internal/analytics/writer"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/outbox/payloads"
)

// Writer delivers ledger_events rows.
type Writer interface {
	InsertLedgerEvents(ctx context.Context, rows []types.LedgerEventRow) error
}

type rowBuilder func(envelope types.Envelope, payload any) ([]types.LedgerEventRow, error)

type route struct {
	factory func() any
	build   rowBuilder
}

// Router decodes each envelope into its typed payload and turns it into
// ledger_events rows.
type Router struct {
	writer Writer
	routes map[enums.OutboxEventType]route
	logg   *logger.Logger
}

func NewRouter(w Writer, logg *logger.Logger) (*Router, error) {
	if w == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	routes := map[enums.OutboxEventType]route{
		enums.EventOrderCreated: {
			factory: func() any { return &payloads.OrderCreatedEvent{} },
			build:   orderCreatedRows,
		},
		enums.EventVendorOrderStatusChanged: {
			factory: func() any { return &payloads.VendorOrderStatusChangedEvent{} },
			build:   vendorOrderStatusRows,
		},
		enums.EventOrderStatusChanged: {
			factory: func() any { return &payloads.OrderStatusChangedEvent{} },
			build:   orderStatusRows,
		},
		enums.EventOrderDelivered: {
			factory: func() any { return &payloads.OrderStatusChangedEvent{} },
			build:   orderStatusRows,
		},
		enums.EventBankDetailsUpdated: {
			factory: func() any { return &payloads.BankDetailsUpdatedEvent{} },
			build:   bankDetailsRows,
		},
	}
	for _, eventType := range []enums.OutboxEventType{
		enums.EventPayoutRequested,
		enums.EventPayoutApproved,
		enums.EventPayoutProcessing,
		enums.EventPayoutCompleted,
		enums.EventPayoutRejected,
		enums.EventPayoutFailed,
		enums.EventPayoutCancelled,
	} {
		routes[eventType] = route{
			factory: func() any { return &payloads.PayoutEvent{} },
			build:   payoutRows,
		}
	}

	return &Router{writer: w, routes: routes, logg: logg}, nil
}

// Handle builds and writes the rows for one envelope.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	rt, ok := r.routes[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnsupportedEvent, envelope.EventType)
	}
	payload := rt.factory()
	if err := envelope.DecodePayload(payload); err != nil {
		return err
	}

	rows, err := rt.build(envelope, payload)
	if err != nil {
		return fmt.Errorf("build %s rows: %w", envelope.EventType, err)
	}
	if err := r.writer.InsertLedgerEvents(ctx, rows); err != nil {
		return err
	}

	logCtx := r.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"rows":       len(rows),
	})
	r.logg.Info(logCtx, "ledger event rows written")
	return nil
}

func baseRow(envelope types.Envelope) (types.LedgerEventRow, error) {
	payload, err := writer.EncodeJSON(envelope.Payload)
	if err != nil {
		return types.LedgerEventRow{}, err
	}
	return types.LedgerEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		OccurredAt:    envelope.OccurredAt.UTC(),
		AggregateType: string(envelope.AggregateType),
		AggregateID:   envelope.AggregateID,
		Payload:       payload,
	}, nil
}
