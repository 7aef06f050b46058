// Package idempotency deduplicates outbox events per consumer. A consumer
// claims an event before handling it and completes the claim afterwards; a
// claim left behind by a crashed consumer expires on its own.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/vendorledger/pkg/redis"
)

const (
	markerClaimed = "claimed"
	markerDone    = "done"

	DefaultClaimTTL = 5 * time.Minute
)

// Claim is the outcome of trying to take an event.
type Claim int

const (
	// Acquired means the caller now owns the event and must Complete or
	// Release it.
	Acquired Claim = iota
	// Done means the event was handled before.
	Done
	// InFlight means another delivery currently holds the claim.
	InFlight
)

func (c Claim) String() string {
	switch c {
	case Acquired:
		return "acquired"
	case Done:
		return "done"
	case InFlight:
		return "in_flight"
	}
	return fmt.Sprintf("claim(%d)", int(c))
}

// Manager stores one marker per consumer and event under
// vl:idempotency:evt:<consumer>:<event_id>.
type Manager struct {
	store    redis.IdempotencyStore
	ttl      time.Duration
	claimTTL time.Duration
}

// NewManager keeps completed markers for ttl and in-flight claims for
// claimTTL (DefaultClaimTTL when zero).
func NewManager(store redis.IdempotencyStore, ttl, claimTTL time.Duration) (*Manager, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl <= 0:
		return nil, errors.New("ttl must be positive")
	case claimTTL < 0:
		return nil, errors.New("claim ttl must be non-negative")
	}
	if claimTTL == 0 {
		claimTTL = DefaultClaimTTL
	}
	return &Manager{store: store, ttl: ttl, claimTTL: claimTTL}, nil
}

func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (Claim, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return InFlight, err
	}
	ok, err := m.store.SetNX(ctx, key, markerClaimed, m.claimTTL)
	if err != nil {
		return InFlight, err
	}
	if ok {
		return Acquired, nil
	}

	marker, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// expired between the two calls; the next delivery claims it
		return InFlight, nil
	case err != nil:
		return InFlight, err
	case marker == markerDone:
		return Done, nil
	}
	return InFlight, nil
}

// Complete turns an acquired claim into a long-lived done marker.
func (m *Manager) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, markerDone, m.ttl)
}

// Release drops a claim so the next delivery can retry the event.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
