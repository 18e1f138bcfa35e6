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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Webhooks     WebhooksConfig
	Stripe       StripeConfig
	PubSub       PubSubConfig
	Metrics      MetricsConfig
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
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects combinations that are only tolerable outside production.
func (c *Config) validate() error {
	if c.App.IsProd() && strings.TrimSpace(c.Webhooks.PaykickstartSecret) == "" {
		return fmt.Errorf("%s is required when %s=%s", EnvPaykickstartSecret, EnvAppEnv, AppEnvProd)
	}
	if c.App.IsProd() && strings.TrimSpace(c.Stripe.Secret) == "" {
		return fmt.Errorf("%s is required when %s=%s", EnvStripeSecret, EnvAppEnv, AppEnvProd)
	}
	return nil
}

type AppConfig struct {
	Env          string        `envconfig:"SUCCESSPLUS_APP_ENV" required:"true"`
	Port         string        `envconfig:"SUCCESSPLUS_APP_PORT" required:"true"`
	LogLevel     string        `envconfig:"SUCCESSPLUS_LOG_LEVEL" default:"info"`
	LogFormat    string        `envconfig:"SUCCESSPLUS_LOG_FORMAT" default:"json"`
	LogWarnStack bool          `envconfig:"SUCCESSPLUS_LOG_WARN_STACK" default:"false"`
	ReadTimeout  time.Duration `envconfig:"SUCCESSPLUS_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"SUCCESSPLUS_HTTP_WRITE_TIMEOUT" default:"30s"`
	CORSOrigins  []string      `envconfig:"SUCCESSPLUS_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"SUCCESSPLUS_DB_DSN"`
	Driver string `envconfig:"SUCCESSPLUS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SUCCESSPLUS_DB_HOST"`
	LegacyPort     int    `envconfig:"SUCCESSPLUS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SUCCESSPLUS_DB_USER"`
	LegacyPassword string `envconfig:"SUCCESSPLUS_DB_PASSWORD"`
	LegacyName     string `envconfig:"SUCCESSPLUS_DB_NAME"`
	LegacySSLMode  string `envconfig:"SUCCESSPLUS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SUCCESSPLUS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SUCCESSPLUS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SUCCESSPLUS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SUCCESSPLUS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

// RedisConfig is optional: an empty URL and address disables delivery dedupe.
type RedisConfig struct {
	URL          string        `envconfig:"SUCCESSPLUS_REDIS_URL"`
	Address      string        `envconfig:"SUCCESSPLUS_REDIS_ADDR"`
	Password     string        `envconfig:"SUCCESSPLUS_REDIS_PASSWORD"`
	DB           int           `envconfig:"SUCCESSPLUS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SUCCESSPLUS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SUCCESSPLUS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SUCCESSPLUS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SUCCESSPLUS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SUCCESSPLUS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"SUCCESSPLUS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SUCCESSPLUS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SUCCESSPLUS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SUCCESSPLUS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SUCCESSPLUS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SUCCESSPLUS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SUCCESSPLUS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SUCCESSPLUS_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SUCCESSPLUS_AUTO_MIGRATE" default:"false"`
}

type WebhooksConfig struct {
	PaykickstartSecret string        `envconfig:"SUCCESSPLUS_PAYKICKSTART_WEBHOOK_SECRET"`
	MaxBodyBytes       int64         `envconfig:"SUCCESSPLUS_WEBHOOK_MAX_BODY_BYTES" default:"1048576"`
	IdempotencyTTL     time.Duration `envconfig:"SUCCESSPLUS_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type StripeConfig struct {
	APIKey string `envconfig:"SUCCESSPLUS_STRIPE_API_KEY"`
	Secret string `envconfig:"SUCCESSPLUS_STRIPE_SECRET"`
	Env    string `envconfig:"SUCCESSPLUS_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// PubSubConfig enables the audit mirror when both values are set.
type PubSubConfig struct {
	ProjectID  string `envconfig:"SUCCESSPLUS_GCP_PROJECT_ID"`
	AuditTopic string `envconfig:"SUCCESSPLUS_PUBSUB_AUDIT_TOPIC"`
	// One of these may carry service account credentials; otherwise ADC.
	CredentialsJSON        string `envconfig:"SUCCESSPLUS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SUCCESSPLUS_GOOGLE_APPLICATION_CREDENTIALS"`
}

// Enabled reports whether audit entries should be mirrored to Pub/Sub.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.ProjectID) != "" && strings.TrimSpace(p.AuditTopic) != ""
}

type MetricsConfig struct {
	Enabled bool `envconfig:"SUCCESSPLUS_METRICS_ENABLED" default:"true"`
}

// CronConfig drives cmd/cron-worker. PeriodEndGrace is how long past
// current_period_end a deferred cancellation may linger before the sweep
// finalizes it.
type CronConfig struct {
	Interval       time.Duration `envconfig:"SUCCESSPLUS_CRON_INTERVAL" default:"1h"`
	PeriodEndGrace time.Duration `envconfig:"SUCCESSPLUS_PERIOD_END_GRACE" default:"24h"`
	BatchLimit     int           `envconfig:"SUCCESSPLUS_PERIOD_END_BATCH_LIMIT" default:"200"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
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
