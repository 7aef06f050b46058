package config

const EnvPrefix = "VENDORLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "VENDORLEDGER_APP_ENV"
	EnvPort     = "VENDORLEDGER_APP_PORT"
	EnvLogLevel = "VENDORLEDGER_LOG_LEVEL"

	EnvDBDSN    = "VENDORLEDGER_DB_DSN"
	EnvDBDriver = "VENDORLEDGER_DB_DRIVER"
	EnvDBHost   = "VENDORLEDGER_DB_HOST"
	EnvDBPort   = "VENDORLEDGER_DB_PORT"
	EnvDBUser   = "VENDORLEDGER_DB_USER"
	EnvDBPass   = "VENDORLEDGER_DB_PASSWORD"
	EnvDBName   = "VENDORLEDGER_DB_NAME"

	EnvRedisURL = "VENDORLEDGER_REDIS_URL"

	EnvJWTSecret = "VENDORLEDGER_JWT_SECRET"
	EnvJWTIssuer = "VENDORLEDGER_JWT_ISSUER"

	EnvUseSQLite   = "VENDORLEDGER_USE_SQLITE"
	EnvAutoMigrate = "VENDORLEDGER_AUTO_MIGRATE"

	EnvLedgerRefundOnReject     = "VENDORLEDGER_LEDGER_REFUND_ON_REJECT"
	EnvLedgerDefaultCommission  = "VENDORLEDGER_LEDGER_DEFAULT_COMMISSION_PCT"
	EnvLedgerEstimatedDelivery  = "VENDORLEDGER_LEDGER_ESTIMATED_DELIVERY_DAYS"
	EnvLedgerPayoutRequestLimit = "VENDORLEDGER_LEDGER_PAYOUT_REQUEST_LIMIT"

	EnvGCPProjectID   = "VENDORLEDGER_GCP_PROJECT_ID"
	EnvPubSubOrders   = "VENDORLEDGER_PUBSUB_ORDERS_TOPIC"
	EnvBigQueryTable  = "VENDORLEDGER_BIGQUERY_LEDGER_TABLE"
	EnvCronInterval   = "VENDORLEDGER_CRON_INTERVAL"
	EnvOutboxAttempts = "VENDORLEDGER_OUTBOX_MAX_ATTEMPTS"
)

// legacyDBEnvVars must all be set when no DSN is provided.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
