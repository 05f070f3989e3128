package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Checkout     CheckoutConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
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
	if err := cfg.App.validatePublicURL(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MARKETPLACE_APP_ENV" required:"true"`
	Port         string `envconfig:"MARKETPLACE_APP_PORT" required:"true"`
	PublicURL    string `envconfig:"MARKETPLACE_PUBLIC_URL" required:"true"`
	LogLevel     string `envconfig:"MARKETPLACE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"MARKETPLACE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"MARKETPLACE_LOG_WARN_STACK" default:"false"`
	// CORSOrigins lists storefront origins allowed to call the API from a browser.
	CORSOrigins []string `envconfig:"MARKETPLACE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BaseURL returns the public application URL without a trailing slash.
func (a AppConfig) BaseURL() string {
	return strings.TrimRight(strings.TrimSpace(a.PublicURL), "/")
}

func (a AppConfig) validatePublicURL() error {
	u, err := url.Parse(a.BaseURL())
	if err != nil {
		return fmt.Errorf("%s is not a valid url: %w", EnvPublicURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an absolute http(s) url", EnvPublicURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", EnvPublicURL)
	}
	return nil
}

type ServiceConfig struct {
	Kind string `envconfig:"MARKETPLACE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"MARKETPLACE_DB_DSN"`

	LegacyHost     string `envconfig:"MARKETPLACE_DB_HOST"`
	LegacyPort     int    `envconfig:"MARKETPLACE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MARKETPLACE_DB_USER"`
	LegacyPassword string `envconfig:"MARKETPLACE_DB_PASSWORD"`
	LegacyName     string `envconfig:"MARKETPLACE_DB_NAME"`
	LegacySSLMode  string `envconfig:"MARKETPLACE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKETPLACE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKETPLACE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKETPLACE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKETPLACE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQueryThreshold logs statements slower than this at warn level.
	SlowQueryThreshold time.Duration `envconfig:"MARKETPLACE_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKETPLACE_REDIS_URL"`
	Address      string        `envconfig:"MARKETPLACE_REDIS_ADDR"`
	Password     string        `envconfig:"MARKETPLACE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKETPLACE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKETPLACE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKETPLACE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKETPLACE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKETPLACE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKETPLACE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes the access tokens minted by the hosted auth provider.
type JWTConfig struct {
	Secret   string        `envconfig:"MARKETPLACE_JWT_SECRET" required:"true"`
	Issuer   string        `envconfig:"MARKETPLACE_JWT_ISSUER" required:"true"`
	Audience string        `envconfig:"MARKETPLACE_JWT_AUDIENCE"`
	Leeway   time.Duration `envconfig:"MARKETPLACE_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MARKETPLACE_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	SecretKey      string        `envconfig:"MARKETPLACE_STRIPE_SECRET_KEY"`
	PublishableKey string        `envconfig:"MARKETPLACE_STRIPE_PUBLISHABLE_KEY"`
	WebhookSecret  string        `envconfig:"MARKETPLACE_STRIPE_WEBHOOK_SECRET"`
	Env            string        `envconfig:"MARKETPLACE_STRIPE_ENV" default:"test"`
	Currency       string        `envconfig:"MARKETPLACE_STRIPE_CURRENCY" default:"usd"`
	AccountCountry string        `envconfig:"MARKETPLACE_STRIPE_ACCOUNT_COUNTRY" default:"US"`
	APITimeout     time.Duration `envconfig:"MARKETPLACE_STRIPE_API_TIMEOUT" default:"30s"`
	// MaxNetworkRetries is how often stripe-go retries idempotent requests on network errors.
	MaxNetworkRetries int64 `envconfig:"MARKETPLACE_STRIPE_MAX_NETWORK_RETRIES" default:"2"`
	// SearchConcurrency bounds parallel session lookups across connected accounts.
	SearchConcurrency int `envconfig:"MARKETPLACE_STRIPE_SEARCH_CONCURRENCY" default:"4"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// NormalizedCurrency returns the lower-case ISO currency code, defaulting to usd.
func (s StripeConfig) NormalizedCurrency() string {
	cur := strings.TrimSpace(strings.ToLower(s.Currency))
	if cur == "" {
		return "usd"
	}
	return cur
}

type CheckoutConfig struct {
	OrderIdempotencyTTL   time.Duration `envconfig:"MARKETPLACE_ORDER_IDEMPOTENCY_TTL" default:"24h"`
	WebhookIdempotencyTTL time.Duration `envconfig:"MARKETPLACE_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	PendingStaleAfter     time.Duration `envconfig:"MARKETPLACE_PENDING_ORDER_STALE_AFTER" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MARKETPLACE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MARKETPLACE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MARKETPLACE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"MARKETPLACE_PUBSUB_DOMAIN_TOPIC" default:"marketplace-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MARKETPLACE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MARKETPLACE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MARKETPLACE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"MARKETPLACE_CRON_INTERVAL" default:"1h"`
	LockTTL             time.Duration `envconfig:"MARKETPLACE_CRON_LOCK_TTL" default:"55m"`
	OutboxRetentionDays int           `envconfig:"MARKETPLACE_OUTBOX_RETENTION_DAYS" default:"30"`
	PendingReportLimit  int           `envconfig:"MARKETPLACE_PENDING_ORDER_REPORT_LIMIT" default:"50"`
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
