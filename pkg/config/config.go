package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Ledger       LedgerConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VENDORLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"VENDORLEDGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VENDORLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VENDORLEDGER_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"VENDORLEDGER_LOG_FORMAT" default:"json"`
	// MetricsAddr is where background workers expose /metrics. Empty disables it.
	MetricsAddr string `envconfig:"VENDORLEDGER_METRICS_ADDR" default:":9090"`
	// CORSOrigins is a comma separated allow list for browser clients.
	CORSOrigins []string `envconfig:"VENDORLEDGER_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VENDORLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VENDORLEDGER_DB_DSN"`
	Driver string `envconfig:"VENDORLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VENDORLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"VENDORLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VENDORLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"VENDORLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"VENDORLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"VENDORLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENDORLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDORLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDORLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDORLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"VENDORLEDGER_DB_SLOW_QUERY" default:"500ms"`
	TxRetries       int           `envconfig:"VENDORLEDGER_DB_TX_RETRIES" default:"2"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDORLEDGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VENDORLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"VENDORLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDORLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDORLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDORLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDORLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDORLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDORLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes the tokens issued by the identity service. This service
// only verifies them.
type JWTConfig struct {
	Secret            string `envconfig:"VENDORLEDGER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VENDORLEDGER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VENDORLEDGER_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VENDORLEDGER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VENDORLEDGER_AUTO_MIGRATE" default:"false"`
}

// LedgerConfig holds the money-movement policies.
type LedgerConfig struct {
	// RefundOnReject appends a refund entry when an approved or processing
	// payout is rejected, even though no debit has happened yet.
	RefundOnReject        bool          `envconfig:"VENDORLEDGER_LEDGER_REFUND_ON_REJECT" default:"true"`
	EstimatedDeliveryDays int           `envconfig:"VENDORLEDGER_LEDGER_ESTIMATED_DELIVERY_DAYS" default:"7"`
	DefaultCommissionPct  string        `envconfig:"VENDORLEDGER_LEDGER_DEFAULT_COMMISSION_PCT" default:"10"`
	PayoutRequestLimit    int           `envconfig:"VENDORLEDGER_LEDGER_PAYOUT_REQUEST_LIMIT" default:"5"`
	PayoutRequestWindow   time.Duration `envconfig:"VENDORLEDGER_LEDGER_PAYOUT_REQUEST_WINDOW" default:"1h"`
}

// DefaultCommission parses DefaultCommissionPct. Load rejects invalid values.
func (l LedgerConfig) DefaultCommission() decimal.Decimal {
	pct, err := decimal.NewFromString(strings.TrimSpace(l.DefaultCommissionPct))
	if err != nil {
		return decimal.NewFromInt(10)
	}
	return pct
}

// EstimatedDelivery returns the placeholder delivery window used for tracking.
func (l LedgerConfig) EstimatedDelivery() time.Duration {
	days := l.EstimatedDeliveryDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

func (l LedgerConfig) validate() error {
	pct, err := decimal.NewFromString(strings.TrimSpace(l.DefaultCommissionPct))
	if err != nil {
		return fmt.Errorf("%s must be a decimal: %w", EnvLedgerDefaultCommission, err)
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%s must be between 0 and 100", EnvLedgerDefaultCommission)
	}
	return nil
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"VENDORLEDGER_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	EventClaimTTL        time.Duration `envconfig:"VENDORLEDGER_EVENTING_CLAIM_TTL" default:"5m"`
	HTTPIdempotencyTTL   time.Duration `envconfig:"VENDORLEDGER_HTTP_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VENDORLEDGER_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VENDORLEDGER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VENDORLEDGER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic         string `envconfig:"VENDORLEDGER_PUBSUB_ORDERS_TOPIC" default:"vl-order-events"`
	PayoutsTopic        string `envconfig:"VENDORLEDGER_PUBSUB_PAYOUTS_TOPIC" default:"vl-payout-events"`
	LedgerSubscription  string `envconfig:"VENDORLEDGER_PUBSUB_LEDGER_SUBSCRIPTION" default:"vl-ledger-analytics"`
	PayoutsSubscription string `envconfig:"VENDORLEDGER_PUBSUB_PAYOUTS_SUBSCRIPTION" default:"vl-payout-analytics"`
}

type BigQueryConfig struct {
	Dataset           string `envconfig:"VENDORLEDGER_BIGQUERY_DATASET" default:"vendorledger"`
	LedgerEventsTable string `envconfig:"VENDORLEDGER_BIGQUERY_LEDGER_TABLE" default:"ledger_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VENDORLEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VENDORLEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VENDORLEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"VENDORLEDGER_OUTBOX_RETENTION_DAYS" default:"30"`
	RetentionBatch int `envconfig:"VENDORLEDGER_OUTBOX_RETENTION_BATCH" default:"1000"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"VENDORLEDGER_CRON_INTERVAL" default:"1h"`
	LockTTL    time.Duration `envconfig:"VENDORLEDGER_CRON_LOCK_TTL" default:"10m"`
	JobTimeout time.Duration `envconfig:"VENDORLEDGER_CRON_JOB_TIMEOUT" default:"5m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
