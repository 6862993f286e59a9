package config

const (
	EnvPrefix = "STOCKROOM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "STOCKROOM_APP_ENV"
	EnvPort     = "STOCKROOM_APP_PORT"
	EnvLogLevel = "STOCKROOM_LOG_LEVEL"

	EnvDBDSN  = "STOCKROOM_DB_DSN"
	EnvDBHost = "STOCKROOM_DB_HOST"
	EnvDBUser = "STOCKROOM_DB_USER"
	EnvDBName = "STOCKROOM_DB_NAME"

	EnvRedisURL  = "STOCKROOM_REDIS_URL"
	EnvJWTSecret = "STOCKROOM_JWT_SECRET"
	EnvJWTIssuer = "STOCKROOM_JWT_ISSUER"

	EnvTxMaxRetries    = "STOCKROOM_TX_MAX_RETRIES"
	EnvTxLockTimeoutMS = "STOCKROOM_TX_LOCK_TIMEOUT_MS"

	EnvGCPProjectID         = "STOCKROOM_GCP_PROJECT_ID"
	EnvPubSubInventoryTopic = "STOCKROOM_PUBSUB_INVENTORY_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
