package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/vendorledger/internal/analytics/types"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/outbox/idempotency"
)

const consumerName = "ledger-analytics"

// Handler records one decoded ledger event. Returning types.ErrUnsupportedEvent
// marks the event as seen without writing anything.
type Handler interface {
	Handle(ctx context.Context, env types.Envelope) error
}

// Receiver is satisfied by *pubsub.Subscriber.
type Receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type idempotencyChecker interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.Claim, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// ServiceParams wires the analytics worker.
type ServiceParams struct {
	Subscriptions map[string]Receiver
	Handler       Handler
	Idempotency   idempotencyChecker
	Logger        *logger.Logger
}

// Service consumes outbox events from one or more Pub/Sub subscriptions and
// hands them to the router, skipping events already recorded in Redis.
type Service struct {
	subscriptions map[string]Receiver
	handler       Handler
	manager       idempotencyChecker
	logg          *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case len(params.Subscriptions) == 0:
		return nil, errors.New("no subscriptions to consume")
	case params.Handler == nil:
		return nil, errors.New("handler is required")
	case params.Idempotency == nil:
		return nil, errors.New("idempotency store is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	for name, sub := range params.Subscriptions {
		if sub == nil {
			return nil, fmt.Errorf("subscription %q has no receiver", name)
		}
	}

	return &Service{
		subscriptions: params.Subscriptions,
		handler:       params.Handler,
		manager:       params.Idempotency,
		logg:          params.Logger,
	}, nil
}

// verdict tells the receive callback how to settle a message.
type verdict int

const (
	ack verdict = iota
	nack
)

func (v verdict) settle(msg *gcppubsub.Message) {
	if v == nack {
		msg.Nack()
		return
	}
	msg.Ack()
}

// Run consumes every subscription concurrently. The first receive error
// cancels the others.
func (s *Service) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for name, sub := range s.subscriptions {
		group.Go(func() error {
			subCtx := s.logg.WithField(groupCtx, "subscription", name)
			s.logg.Info(subCtx, "ledger subscription started")
			err := sub.Receive(subCtx, func(msgCtx context.Context, msg *gcppubsub.Message) {
				s.process(msgCtx, msg).settle(msg)
			})
			if err != nil {
				return fmt.Errorf("receive %s: %w", name, err)
			}
			return nil
		})
	}
	return group.Wait()
}

// process claims the event, runs the handler and decides the verdict.
// Malformed messages are acked since redelivery cannot fix them.
func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) verdict {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	env, err := decodeMessage(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping undecodable ledger message")
		return ack
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":       env.EventID,
		"event_type":     env.EventType,
		"aggregate_type": env.AggregateType,
		"aggregate_id":   env.AggregateID,
		"occurred_at":    env.OccurredAt.Format(time.RFC3339Nano),
	})

	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		s.logg.Warn(ctx, "dropping ledger message with non-uuid event id")
		return ack
	}

	claim, err := s.manager.Claim(ctx, consumerName, eventID)
	switch {
	case err != nil:
		s.logg.Error(ctx, "claim ledger event", err)
		return nack
	case claim == idempotency.Done:
		s.logg.Info(ctx, "duplicate ledger event skipped")
		return ack
	case claim == idempotency.InFlight:
		s.logg.Info(ctx, "ledger event claimed elsewhere, redelivering")
		return nack
	}

	// settle bookkeeping even when the delivery context is gone
	bg := context.WithoutCancel(ctx)
	switch err := s.handler.Handle(ctx, *env); {
	case err == nil:
		s.logg.Info(ctx, "ledger event recorded")
	case errors.Is(err, types.ErrUnsupportedEvent):
		s.logg.Debug(ctx, "event type has no ledger_events row")
	default:
		s.logg.Error(ctx, "handle ledger event", err)
		if relErr := s.manager.Release(bg, consumerName, eventID); relErr != nil {
			s.logg.Error(ctx, "release ledger event claim", relErr)
		}
		return nack
	}

	// a lost marker costs one redelivery, which the BigQuery insert id absorbs
	if err := s.manager.Complete(bg, consumerName, eventID); err != nil {
		s.logg.Error(ctx, "complete ledger event claim", err)
	}
	return ack
}
