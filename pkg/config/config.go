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
	Payments     PaymentsConfig
	Quota        QuotaConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
	Idempotency  IdempotencyConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CLOUDDRIVE_APP_ENV" required:"true"`
	Port         string `envconfig:"CLOUDDRIVE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CLOUDDRIVE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CLOUDDRIVE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CLOUDDRIVE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CLOUDDRIVE_DB_DSN"`
	Driver string `envconfig:"CLOUDDRIVE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CLOUDDRIVE_DB_HOST"`
	LegacyPort     int    `envconfig:"CLOUDDRIVE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CLOUDDRIVE_DB_USER"`
	LegacyPassword string `envconfig:"CLOUDDRIVE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CLOUDDRIVE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CLOUDDRIVE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CLOUDDRIVE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CLOUDDRIVE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CLOUDDRIVE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CLOUDDRIVE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CLOUDDRIVE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CLOUDDRIVE_REDIS_ADDR"`
	Password     string        `envconfig:"CLOUDDRIVE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CLOUDDRIVE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CLOUDDRIVE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CLOUDDRIVE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CLOUDDRIVE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CLOUDDRIVE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CLOUDDRIVE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CLOUDDRIVE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CLOUDDRIVE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CLOUDDRIVE_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTokenTTL returns the access token lifetime configured in minutes.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PaymentsConfig struct {
	PayeeVPA          string        `envconfig:"CLOUDDRIVE_PAYMENTS_PAYEE_VPA" required:"true"`
	PayeeName         string        `envconfig:"CLOUDDRIVE_PAYMENTS_PAYEE_NAME" default:"CloudDrive"`
	Currency          string        `envconfig:"CLOUDDRIVE_PAYMENTS_CURRENCY" default:"INR"`
	SubmitTimeout     time.Duration `envconfig:"CLOUDDRIVE_PAYMENTS_SUBMIT_TIMEOUT" default:"30s"`
	MaxSubmitAttempts int           `envconfig:"CLOUDDRIVE_PAYMENTS_MAX_SUBMIT_ATTEMPTS" default:"3"`
	BackoffBase       time.Duration `envconfig:"CLOUDDRIVE_PAYMENTS_BACKOFF_BASE" default:"1s"`
	IntentTTL         time.Duration `envconfig:"CLOUDDRIVE_PAYMENTS_INTENT_TTL" default:"30m"`
}

type QuotaConfig struct {
	DefaultPlanID string `envconfig:"CLOUDDRIVE_QUOTA_DEFAULT_PLAN_ID" default:"free"`
}

type CronConfig struct {
	IntentExpiryInterval        time.Duration `envconfig:"CLOUDDRIVE_CRON_INTENT_EXPIRY_INTERVAL" default:"1m"`
	NotificationCleanupInterval time.Duration `envconfig:"CLOUDDRIVE_CRON_NOTIFICATION_CLEANUP_INTERVAL" default:"1h"`
	NotificationRetention       time.Duration `envconfig:"CLOUDDRIVE_CRON_NOTIFICATION_RETENTION" default:"720h"`
	LockTTL                     time.Duration `envconfig:"CLOUDDRIVE_CRON_LOCK_TTL" default:"5m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CLOUDDRIVE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CLOUDDRIVE_AUTO_MIGRATE" default:"false"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"CLOUDDRIVE_IDEMPOTENCY_TTL" default:"24h"`
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
