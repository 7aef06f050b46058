package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/vendorledger/internal/analytics/router"
	"github.com/angelmondragon/vendorledger/internal/analytics/worker"
	"github.com/angelmondragon/vendorledger/internal/analytics/writer"
	"github.com/angelmondragon/vendorledger/pkg/bigquery"
	"github.com/angelmondragon/vendorledger/pkg/bootstrap"
	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/metrics"
	"github.com/angelmondragon/vendorledger/pkg/outbox/idempotency"
	"github.com/angelmondragon/vendorledger/pkg/pubsub"
	"github.com/angelmondragon/vendorledger/pkg/redis"
)

const serviceName = "analytics-worker"

func main() {
	cfg, logg, err := bootstrap.Load(serviceName)
	bootstrap.Exit(context.Background(), logg, "startup failed", err)

	ctx, stop := bootstrap.SignalContext(context.Background())
	defer stop()

	var closers bootstrap.Closers
	err = run(ctx, cfg, logg, &closers)
	closers.Close(context.Background(), logg)
	if err != nil {
		logg.Error(ctx, "analytics worker failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "analytics worker shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, closers *bootstrap.Closers) error {
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return resourceErr("redis", err)
	}
	closers.Add("redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.AnalyticsResources(cfg.PubSub), logg)
	if err != nil {
		return resourceErr("pubsub", err)
	}
	closers.Add("pubsub", pubsubClient.Close)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return resourceErr("bigquery", err)
	}
	closers.Add("bigquery", bqClient.Close)

	tableSpec, err := writer.LedgerEventsTable(cfg.BigQuery.LedgerEventsTable)
	if err != nil {
		return err
	}
	if err := bqClient.EnsureTable(ctx, tableSpec); err != nil {
		return resourceErr("ledger events table", err)
	}

	subscriptions := subscriptionsFor(cfg.PubSub, pubsubClient)
	if len(subscriptions) == 0 {
		return resourceErr("subscriptions", errors.New("no ledger subscription configured"))
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL, cfg.Eventing.EventClaimTTL)
	if err != nil {
		return err
	}
	ledgerWriter, err := writer.New(bqClient, writer.Config{Table: cfg.BigQuery.LedgerEventsTable})
	if err != nil {
		return err
	}
	handler, err := router.NewRouter(ledgerWriter, logg)
	if err != nil {
		return err
	}
	service, err := worker.NewService(worker.ServiceParams{
		Subscriptions: subscriptions,
		Handler:       handler,
		Idempotency:   manager,
		Logger:        logg,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "analytics worker ready")

	return bootstrap.RunAll(ctx,
		func(ctx context.Context) error {
			return metrics.Serve(ctx, cfg.App.MetricsAddr, prometheus.DefaultGatherer)
		},
		service.Run,
	)
}

func subscriptionsFor(cfg config.PubSubConfig, client *pubsub.Client) map[string]worker.Receiver {
	subs := make(map[string]worker.Receiver)
	if sub := client.LedgerSubscription(); sub != nil {
		subs[cfg.LedgerSubscription] = sub
	}
	if sub := client.PayoutsSubscription(); sub != nil {
		subs[cfg.PayoutsSubscription] = sub
	}
	return subs
}

func resourceErr(resource string, err error) error {
	return fmt.Errorf("resource not working: %s: %w", resource, err)
}
