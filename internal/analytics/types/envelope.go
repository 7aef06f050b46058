package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/vendorledger/pkg/enums"
)

var (
	// ErrUnsupportedEvent marks events the analytics sink deliberately ignores.
	ErrUnsupportedEvent = errors.New("unsupported analytics event type")
	ErrEmptyPayload     = errors.New("empty event payload")
)

// Envelope is an outbox event as received from Pub/Sub, with the routing
// attributes already validated.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}

// DecodePayload unmarshals the event data into dst. A missing or JSON null
// payload is ErrEmptyPayload.
func (e Envelope) DecodePayload(dst any) error {
	raw := bytes.TrimSpace(e.Payload)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: %s", ErrEmptyPayload, e.EventType)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}
