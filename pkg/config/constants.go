package config

const (
	EnvPrefix = "MARKETPLACE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "MARKETPLACE_APP_ENV"
	EnvPort         = "MARKETPLACE_APP_PORT"
	EnvPublicURL    = "MARKETPLACE_PUBLIC_URL"
	EnvLogLevel     = "MARKETPLACE_LOG_LEVEL"
	EnvLogFormat    = "MARKETPLACE_LOG_FORMAT"
	EnvLogWarnStack = "MARKETPLACE_LOG_WARN_STACK"

	EnvDBDSN      = "MARKETPLACE_DB_DSN"
	EnvDBHost     = "MARKETPLACE_DB_HOST"
	EnvDBPort     = "MARKETPLACE_DB_PORT"
	EnvDBUser     = "MARKETPLACE_DB_USER"
	EnvDBPassword = "MARKETPLACE_DB_PASSWORD"
	EnvDBName     = "MARKETPLACE_DB_NAME"
	EnvDBSSLMode  = "MARKETPLACE_DB_SSLMODE"

	EnvRedisURL = "MARKETPLACE_REDIS_URL"

	EnvJWTSecret = "MARKETPLACE_JWT_SECRET"
	EnvJWTIssuer = "MARKETPLACE_JWT_ISSUER"

	EnvAutoMigrate = "MARKETPLACE_AUTO_MIGRATE"

	EnvStripeSecretKey      = "MARKETPLACE_STRIPE_SECRET_KEY"
	EnvStripePublishableKey = "MARKETPLACE_STRIPE_PUBLISHABLE_KEY"
	EnvStripeWebhookSecret  = "MARKETPLACE_STRIPE_WEBHOOK_SECRET"
	EnvStripeEnv            = "MARKETPLACE_STRIPE_ENV"
	EnvStripeCurrency       = "MARKETPLACE_STRIPE_CURRENCY"

	EnvGCPProjectID      = "MARKETPLACE_GCP_PROJECT_ID"
	EnvPubSubDomainTopic = "MARKETPLACE_PUBSUB_DOMAIN_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
