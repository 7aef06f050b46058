package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/vendorledger/api/controllers"
	admincontrollers "github.com/angelmondragon/vendorledger/api/controllers/admin"
	ordercontrollers "github.com/angelmondragon/vendorledger/api/controllers/orders"
	payoutcontrollers "github.com/angelmondragon/vendorledger/api/controllers/payouts"
	vendorcontrollers "github.com/angelmondragon/vendorledger/api/controllers/vendors"
	"github.com/angelmondragon/vendorledger/api/middleware"
	"github.com/angelmondragon/vendorledger/internal/admin"
	"github.com/angelmondragon/vendorledger/internal/orders"
	"github.com/angelmondragon/vendorledger/internal/payouts"
	"github.com/angelmondragon/vendorledger/internal/vendors"
	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/metrics"
	"github.com/angelmondragon/vendorledger/pkg/redis"
)

// Dependencies is everything the HTTP surface needs.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	Readiness   map[string]controllers.Pinger
	Idempotency redis.IdempotencyStore
	Revocations middleware.RevocationChecker
	Sessions    controllers.TokenRevoker
	Metrics     http.Handler
	HTTPMetrics *metrics.HTTPMetrics

	Admin   admin.Service
	Orders  orders.Service
	Payouts payouts.Service
	Vendors vendors.Service
	Wallets vendorcontrollers.WalletReader
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Revocations, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Get("/orders/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
		if deps.Sessions != nil {
			r.Post("/session/revoke", controllers.RevokeSession(deps.Sessions, logg))
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleCustomer))
			r.Post("/checkout", ordercontrollers.Checkout(deps.Orders, logg))
			r.Get("/orders", ordercontrollers.List(deps.Orders, logg))
		})

		r.Route("/vendor", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.ActorRoleVendor))
			r.Get("/dashboard", vendorcontrollers.Dashboard(deps.Vendors, logg))
			r.Get("/profile", vendorcontrollers.Profile(deps.Vendors, logg))
			r.Get("/orders", ordercontrollers.VendorList(deps.Orders, logg))
			r.Put("/orders/{orderId}/status", ordercontrollers.VendorStatus(deps.Orders, logg))
			r.Get("/wallet", vendorcontrollers.Wallet(deps.Wallets, logg))
			r.Get("/earnings", vendorcontrollers.Earnings(deps.Vendors, logg))
			r.Put("/bank-details", vendorcontrollers.BankDetails(deps.Vendors, logg))
			r.Route("/payouts", func(r chi.Router) {
				r.Get("/", payoutcontrollers.History(deps.Payouts, logg))
				r.Post("/", payoutcontrollers.Request(deps.Payouts, logg))
				r.Post("/{payoutId}/cancel", payoutcontrollers.Cancel(deps.Payouts, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Revocations, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Get("/dashboard", admincontrollers.Dashboard(deps.Admin, logg))
		r.Put("/orders/{orderId}/status", ordercontrollers.AdminStatus(deps.Orders, logg))
		r.Route("/payouts", func(r chi.Router) {
			r.Get("/", payoutcontrollers.AdminList(deps.Payouts, logg))
			r.Post("/{payoutId}/approve", payoutcontrollers.Approve(deps.Payouts, logg))
			r.Post("/{payoutId}/processing", payoutcontrollers.StartProcessing(deps.Payouts, logg))
			r.Post("/{payoutId}/process", payoutcontrollers.Process(deps.Payouts, logg))
			r.Post("/{payoutId}/reject", payoutcontrollers.Reject(deps.Payouts, logg))
		})
	})

	return r
}
