package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/vendorledger/internal/cron"
	"github.com/angelmondragon/vendorledger/internal/wallet"
	"github.com/angelmondragon/vendorledger/pkg/bootstrap"
	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/metrics"
	"github.com/angelmondragon/vendorledger/pkg/migrate"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
	"github.com/angelmondragon/vendorledger/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	cfg, logg, err := bootstrap.Load(serviceName)
	bootstrap.Exit(context.Background(), logg, "startup failed", err)

	ctx, stop := bootstrap.SignalContext(context.Background())
	defer stop()

	var closers bootstrap.Closers
	err = run(ctx, cfg, logg, &closers)
	closers.Close(context.Background(), logg)
	if err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down gracefully")
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

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	closers.Add("redis", redisClient.Close)

	service, err := buildService(cfg, logg, dbClient, redisClient, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	return bootstrap.RunAll(ctx,
		func(ctx context.Context) error {
			return metrics.Serve(ctx, cfg.App.MetricsAddr, prometheus.DefaultGatherer)
		},
		service.Run,
	)
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (*cron.Service, error) {
	ledgerMetrics := metrics.NewLedgerMetrics(reg)

	ledger, err := wallet.NewLedger(wallet.LedgerParams{
		Repo:    wallet.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Metrics: ledgerMetrics,
		Logger:  logg,
	})
	if err != nil {
		return nil, err
	}
	reconcile, err := cron.NewWalletReconciliationJob(cron.WalletReconciliationJobParams{
		Logger:  logg,
		Ledger:  ledger,
		Metrics: ledgerMetrics,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		Repository:    outbox.NewRepository(dbClient.DB()),
		RetentionDays: cfg.Outbox.RetentionDays,
		BatchSize:     cfg.Outbox.RetentionBatch,
	})
	if err != nil {
		return nil, err
	}

	lock, err := cron.NewRedisLock(redisClient, lockName(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   cron.NewRegistry(reconcile, retention),
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(reg),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
}

// lockName is scoped per environment; replicas of one env share it.
func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
