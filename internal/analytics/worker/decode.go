package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
)

var (
	errNoAggregateID = errors.New("aggregate_id missing")
	errNoEventID     = errors.New("event_id missing")
)

// messageAttrs are the routing attributes set by the outbox publisher.
type messageAttrs map[string]string

func (a messageAttrs) get(key string) string {
	return strings.TrimSpace(a[key])
}

// timestamp returns the zero time when the attribute is absent or malformed.
func (a messageAttrs) timestamp(key string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, a.get(key))
	if err != nil {
		return time.Time{}
	}
	return t
}

// decodeMessage rebuilds an envelope from a delivered message. The body wins
// over the attributes for event id and occurrence time.
func decodeMessage(msg *gcppubsub.Message) (*types.Envelope, error) {
	var body outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &body); err != nil {
		return nil, fmt.Errorf("message body: %w", err)
	}
	attrs := messageAttrs(msg.Attributes)

	env := &types.Envelope{
		EventID:     strings.TrimSpace(body.EventID),
		AggregateID: attrs.get("aggregate_id"),
		OccurredAt:  body.OccurredAt,
		Payload:     body.Data,
	}

	var err error
	if env.EventType, err = enums.ParseOutboxEventType(attrs.get("event_type")); err != nil {
		return nil, fmt.Errorf("event_type attribute: %w", err)
	}
	if env.AggregateType, err = enums.ParseOutboxAggregateType(attrs.get("aggregate_type")); err != nil {
		return nil, fmt.Errorf("aggregate_type attribute: %w", err)
	}
	if env.AggregateID == "" {
		return nil, errNoAggregateID
	}

	if env.EventID == "" {
		env.EventID = attrs.get("event_id")
	}
	if env.EventID == "" {
		return nil, errNoEventID
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = attrs.timestamp("created_at")
	}
	env.OccurredAt = env.OccurredAt.UTC()
	return env, nil
}
