package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

const defaultSQLiteDSN = "file:stockroom.db?_foreign_keys=on"

type Config struct {
	App            AppConfig
	Service        ServiceConfig
	DB             DBConfig
	Redis          RedisConfig
	JWT            JWTConfig
	FeatureFlags   FeatureFlagsConfig
	Receiving      ReceivingConfig
	Pricing        PricingConfig
	Reconciliation ReconciliationConfig
	Idempotency    IdempotencyConfig
	RateLimit      RateLimitConfig
	GCP            GCPConfig
	PubSub         PubSubConfig
	Outbox         OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = defaultSQLiteDSN
		}
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate catches settings envconfig accepts but the services cannot run
// with. Every problem is reported, not just the first.
func (c *Config) validate() error {
	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf(format, args...))
		}
	}
	check(!(c.App.IsProd() && c.FeatureFlags.UseSQLite), "sqlite is not allowed in %s", c.App.Env)
	check(c.DB.Driver == "postgres" || c.DB.Driver == "sqlite", "db driver %q is not postgres or sqlite", c.DB.Driver)
	check(c.JWT.Leeway >= 0, "jwt leeway must not be negative")
	check(c.Pricing.MaxLookupBatch > 0, "pricing lookup batch must be positive")
	check(c.Reconciliation.BatchSize > 0, "reconciliation batch size must be positive")
	check(c.Reconciliation.Interval > 0, "reconciliation interval must be positive")
	check(c.Reconciliation.LockTTL >= c.Reconciliation.Interval/2, "reconciliation lock ttl %s is shorter than half the interval", c.Reconciliation.LockTTL)
	check(c.Outbox.BatchSize > 0, "outbox batch size must be positive")
	check(c.Outbox.MaxAttempts > 0, "outbox max attempts must be positive")
	check(c.Outbox.DeadLetterRetention >= c.Outbox.Retention, "dead letter retention must be at least the published retention")
	check(c.RateLimit.WriteLimit >= 0, "rate limit must not be negative")
	if errs != nil {
		return fmt.Errorf("invalid config: %w", errs)
	}
	return nil
}

type AppConfig struct {
	Env          string   `envconfig:"STOCKROOM_APP_ENV" required:"true"`
	Port         string   `envconfig:"STOCKROOM_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"STOCKROOM_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"STOCKROOM_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"STOCKROOM_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"STOCKROOM_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOCKROOM_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOCKROOM_DB_DSN"`
	Driver string `envconfig:"STOCKROOM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOCKROOM_DB_HOST"`
	LegacyPort     int    `envconfig:"STOCKROOM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOCKROOM_DB_USER"`
	LegacyPassword string `envconfig:"STOCKROOM_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOCKROOM_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOCKROOM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOCKROOM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOCKROOM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOCKROOM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOCKROOM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the threshold above which statements are logged at warn.
	SlowQuery time.Duration `envconfig:"STOCKROOM_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOCKROOM_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOCKROOM_REDIS_ADDR"`
	Password     string        `envconfig:"STOCKROOM_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOCKROOM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOCKROOM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOCKROOM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOCKROOM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOCKROOM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOCKROOM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig only verifies tokens; issuance lives in the identity service.
type JWTConfig struct {
	Secret string `envconfig:"STOCKROOM_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STOCKROOM_JWT_ISSUER" required:"true"`
	// Leeway absorbs clock skew on exp/iat checks.
	Leeway time.Duration `envconfig:"STOCKROOM_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOCKROOM_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOCKROOM_AUTO_MIGRATE" default:"false"`
}

// ReceivingConfig bounds the lock wait and retry loop around stock mutations.
type ReceivingConfig struct {
	MaxRetries    int `envconfig:"STOCKROOM_TX_MAX_RETRIES" default:"4"`
	RetryBaseMS   int `envconfig:"STOCKROOM_TX_RETRY_BASE_MS" default:"25"`
	LockTimeoutMS int `envconfig:"STOCKROOM_TX_LOCK_TIMEOUT_MS" default:"3000"`
}

func (r ReceivingConfig) RetryBase() time.Duration {
	if r.RetryBaseMS <= 0 {
		return 25 * time.Millisecond
	}
	return time.Duration(r.RetryBaseMS) * time.Millisecond
}

func (r ReceivingConfig) LockTimeout() time.Duration {
	if r.LockTimeoutMS <= 0 {
		return 0
	}
	return time.Duration(r.LockTimeoutMS) * time.Millisecond
}

type PricingConfig struct {
	CacheTTLSeconds int `envconfig:"STOCKROOM_PRICING_CACHE_TTL_SECONDS" default:"300"`
	MaxLookupBatch  int `envconfig:"STOCKROOM_PRICING_MAX_LOOKUP_BATCH" default:"100"`
}

func (p PricingConfig) CacheTTL() time.Duration {
	if p.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(p.CacheTTLSeconds) * time.Second
}

type ReconciliationConfig struct {
	Interval  time.Duration `envconfig:"STOCKROOM_RECONCILIATION_INTERVAL" default:"15m"`
	LockTTL   time.Duration `envconfig:"STOCKROOM_RECONCILIATION_LOCK_TTL" default:"10m"`
	BatchSize int           `envconfig:"STOCKROOM_RECONCILIATION_BATCH_SIZE" default:"500"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"STOCKROOM_IDEMPOTENCY_TTL" default:"24h"`
}

// RateLimitConfig throttles writes per caller. A zero limit disables it.
type RateLimitConfig struct {
	Window     time.Duration `envconfig:"STOCKROOM_RATE_LIMIT_WINDOW" default:"1m"`
	WriteLimit int           `envconfig:"STOCKROOM_RATE_LIMIT_WRITES" default:"600"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"STOCKROOM_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	InventoryTopic string `envconfig:"STOCKROOM_PUBSUB_INVENTORY_TOPIC" default:"stockroom-inventory-events"`
	PosTopic       string `envconfig:"STOCKROOM_PUBSUB_POS_TOPIC" default:"stockroom-pos-events"`
	IntegrityTopic string `envconfig:"STOCKROOM_PUBSUB_INTEGRITY_TOPIC" default:"stockroom-integrity-events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"STOCKROOM_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"STOCKROOM_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"STOCKROOM_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"STOCKROOM_OUTBOX_RETENTION" default:"720h"`
	RetentionEvery time.Duration `envconfig:"STOCKROOM_OUTBOX_RETENTION_EVERY" default:"24h"`
	// DeadLetterRetention is longer so operators have time to requeue.
	DeadLetterRetention time.Duration `envconfig:"STOCKROOM_OUTBOX_DLQ_RETENTION" default:"2160h"`
	RetentionBatchSize  int           `envconfig:"STOCKROOM_OUTBOX_RETENTION_BATCH" default:"1000"`
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
