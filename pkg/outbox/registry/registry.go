// Package registry decides, for each outbox row, which topic it goes to and
// which payload schema it must decode into before it may leave the database.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
	"github.com/angelmondragon/vendorledger/pkg/outbox/payloads"
)

// EventDescriptor routes one event type.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

// ResolvedEvent is a row that passed validation, with its typed payload.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks rows that can never be published as they are.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func schema[T any]() func(json.RawMessage) (any, error) {
	return func(data json.RawMessage) (any, error) {
		v := new(T)
		if err := json.Unmarshal(data, v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// EventRegistry is immutable after construction.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes order events to the orders topic and payout and
// bank detail events to the payouts topic. Every known event type must be
// routed.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	if cfg.PayoutsTopic == "" {
		return nil, errors.New("payouts topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	orderStatus := schema[payloads.OrderStatusChangedEvent]()
	reg.add(cfg.OrdersTopic, enums.AggregateOrder, schema[payloads.OrderCreatedEvent](), enums.EventOrderCreated)
	reg.add(cfg.OrdersTopic, enums.AggregateOrder, orderStatus, enums.EventOrderStatusChanged, enums.EventOrderDelivered)
	reg.add(cfg.OrdersTopic, enums.AggregateOrder, schema[payloads.VendorOrderStatusChangedEvent](), enums.EventVendorOrderStatusChanged)
	reg.add(cfg.PayoutsTopic, enums.AggregatePayout, schema[payloads.PayoutEvent](),
		enums.EventPayoutRequested,
		enums.EventPayoutApproved,
		enums.EventPayoutProcessing,
		enums.EventPayoutCompleted,
		enums.EventPayoutRejected,
		enums.EventPayoutFailed,
		enums.EventPayoutCancelled,
	)
	reg.add(cfg.PayoutsTopic, enums.AggregateVendor, schema[payloads.BankDetailsUpdatedEvent](), enums.EventBankDetailsUpdated)

	for _, eventType := range enums.OutboxEventTypes() {
		if _, ok := reg.entries[eventType]; !ok {
			return nil, fmt.Errorf("event type %s has no route", eventType)
		}
	}
	return reg, nil
}

func (r *EventRegistry) add(topic string, aggregate enums.OutboxAggregateType, decode func(json.RawMessage) (any, error), types ...enums.OutboxEventType) {
	for _, eventType := range types {
		r.entries[eventType] = EventDescriptor{
			EventType:     eventType,
			AggregateType: aggregate,
			Topic:         topic,
			decode:        decode,
		}
	}
}

// Topics returns the distinct topics, sorted.
func (r *EventRegistry) Topics() []string {
	set := make(map[string]struct{}, 2)
	for _, desc := range r.entries {
		set[desc.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(set))
	for topic := range set {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Resolve checks the row against its route and decodes the payload. Every
// failure is a NonRetryableError: retrying cannot fix a malformed row.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, err := r.lookup(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	if !envelope.HasData() {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}
	payload, err := desc.decode(envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func (r *EventRegistry) lookup(event models.OutboxEvent) (EventDescriptor, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return desc, fmt.Errorf("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return desc, fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return desc, errors.New("missing aggregate_id")
	}
	return desc, nil
}
