package config

// EnvPrefix is handed to envconfig; every field carries an explicit tag so it
// only matters for error messages.
const EnvPrefix = "SUCCESSPLUS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv             = "SUCCESSPLUS_APP_ENV"
	EnvPort               = "SUCCESSPLUS_APP_PORT"
	EnvDBDSN              = "SUCCESSPLUS_DB_DSN"
	EnvDBDriver           = "SUCCESSPLUS_DB_DRIVER"
	EnvDBHost             = "SUCCESSPLUS_DB_HOST"
	EnvDBUser             = "SUCCESSPLUS_DB_USER"
	EnvDBName             = "SUCCESSPLUS_DB_NAME"
	EnvRedisURL           = "SUCCESSPLUS_REDIS_URL"
	EnvJWTSecret          = "SUCCESSPLUS_JWT_SECRET"
	EnvJWTIssuer          = "SUCCESSPLUS_JWT_ISSUER"
	EnvPaykickstartSecret = "SUCCESSPLUS_PAYKICKSTART_WEBHOOK_SECRET"
	EnvStripeSecret       = "SUCCESSPLUS_STRIPE_SECRET"
	EnvPubSubProjectID    = "SUCCESSPLUS_GCP_PROJECT_ID"
	EnvPubSubAuditTopic   = "SUCCESSPLUS_PUBSUB_AUDIT_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
