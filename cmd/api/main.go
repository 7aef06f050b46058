package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/vendorledger/api/controllers"
	"github.com/angelmondragon/vendorledger/api/routes"
	"github.com/angelmondragon/vendorledger/internal/admin"
	"github.com/angelmondragon/vendorledger/internal/cart"
	"github.com/angelmondragon/vendorledger/internal/inventory"
	"github.com/angelmondragon/vendorledger/internal/orders"
	"github.com/angelmondragon/vendorledger/internal/payouts"
	"github.com/angelmondragon/vendorledger/internal/vendors"
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

const (
	serviceName       = "api"
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	cfg, logg, err := bootstrap.Load(serviceName)
	bootstrap.Exit(context.Background(), logg, "startup failed", err)

	ctx, stop := bootstrap.SignalContext(context.Background())
	defer stop()

	var closers bootstrap.Closers
	err = run(ctx, cfg, logg, &closers)
	closers.Close(context.Background(), logg)
	if err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient, metrics.NewLedgerMetrics(registry))
	if err != nil {
		return err
	}
	deps.Metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	deps.HTTPMetrics = metrics.NewHTTPMetrics(registry)

	server := &http.Server{
		Addr:              listenAddr(cfg.App.Port),
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": server.Addr,
	})
	logg.Info(ctx, "starting api server")

	return bootstrap.RunAll(ctx,
		func(context.Context) error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		func(ctx context.Context) error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	)
}

// listenAddr honours PORT as set by the hosting platform.
func listenAddr(port string) string {
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}
	return ":" + port
}

func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, ledgerMetrics *metrics.LedgerMetrics) (routes.Dependencies, error) {
	conn := dbClient.DB()
	events := outbox.NewService(outbox.NewRepository(conn), logg)
	vendorRepo := vendors.NewRepository(conn)

	ledger, err := wallet.NewLedger(wallet.LedgerParams{
		Repo:    wallet.NewRepository(conn),
		Tx:      dbClient,
		Metrics: ledgerMetrics,
		Logger:  logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:              orders.NewRepository(conn),
		Carts:             cart.NewRepository(conn),
		Inventory:         inventory.NewRepository(conn),
		Vendors:           vendorRepo,
		Ledger:            ledger,
		Tx:                dbClient,
		Outbox:            events,
		Metrics:           ledgerMetrics,
		Logger:            logg,
		EstimatedDelivery: time.Duration(cfg.Ledger.EstimatedDeliveryDays) * 24 * time.Hour,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	payoutService, err := payouts.NewService(payouts.ServiceParams{
		Repo:    payouts.NewRepository(conn),
		Vendors: vendorRepo,
		Ledger:  ledger,
		Tx:      dbClient,
		Outbox:  events,
		Limiter: redisClient,
		Metrics: ledgerMetrics,
		Logger:  logg,
		Policy: payouts.Policy{
			RefundOnReject: cfg.Ledger.RefundOnReject,
			RequestLimit:   cfg.Ledger.PayoutRequestLimit,
			RequestWindow:  cfg.Ledger.PayoutRequestWindow,
		},
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	vendorService, err := vendors.NewService(vendors.ServiceParams{
		Repo:    vendorRepo,
		Tx:      dbClient,
		Outbox:  events,
		Wallets: ledger,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	adminService, err := admin.NewService(admin.ServiceParams{
		Repo:   admin.NewRepository(conn),
		Logger: logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		Config: cfg,
		Logger: logg,
		Readiness: map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		},
		Idempotency: redisClient,
		Revocations: redisClient,
		Sessions:    redisClient,
		Admin:       adminService,
		Orders:      orderService,
		Payouts:     payoutService,
		Vendors:     vendorService,
		Wallets:     ledger,
	}, nil
}
