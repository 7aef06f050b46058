package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/vendorledger/pkg/bootstrap"
	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/metrics"
	"github.com/angelmondragon/vendorledger/pkg/migrate"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
	"github.com/angelmondragon/vendorledger/pkg/outbox/registry"
	"github.com/angelmondragon/vendorledger/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	cfg, logg, err := bootstrap.Load(serviceName)
	bootstrap.Exit(context.Background(), logg, "startup failed", err)

	ctx, stop := bootstrap.SignalContext(context.Background())
	defer stop()

	var closers bootstrap.Closers
	err = run(ctx, cfg, logg, &closers)
	closers.Close(context.Background(), logg)
	if err != nil {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, closers *bootstrap.Closers) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers.Add("database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.PublisherResources(cfg.PubSub), logg)
	if err != nil {
		return err
	}
	closers.Add("pubsub", pubsubClient.Close)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}

	// flushed before the pubsub client closes
	publishers := newPublisherCache(pubsubClient)
	closers.Add("publishers", func() error { publishers.Stop(); return nil })

	service, err := NewService(ServiceParams{
		Config:     &cfg.Outbox,
		Logger:     logg,
		DB:         dbClient,
		PubSub:     pubsubClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   eventRegistry,
		Publishers: publishers,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"topics":      eventRegistry.Topics(),
	})
	logg.Info(ctx, "starting outbox publisher")

	return bootstrap.RunAll(ctx,
		func(ctx context.Context) error {
			return metrics.Serve(ctx, cfg.App.MetricsAddr, prometheus.DefaultGatherer)
		},
		service.Run,
	)
}
