package config

// EnvPrefix is passed to envconfig; all variables are fully qualified in
// struct tags so the prefix is effectively documentation.
const EnvPrefix = "CLOUDDRIVE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "CLOUDDRIVE_APP_ENV"
	EnvPort     = "CLOUDDRIVE_APP_PORT"
	EnvLogLevel = "CLOUDDRIVE_LOG_LEVEL"

	EnvDBDSN  = "CLOUDDRIVE_DB_DSN"
	EnvDBHost = "CLOUDDRIVE_DB_HOST"
	EnvDBUser = "CLOUDDRIVE_DB_USER"
	EnvDBName = "CLOUDDRIVE_DB_NAME"

	EnvRedisURL = "CLOUDDRIVE_REDIS_URL"

	EnvJWTSecret  = "CLOUDDRIVE_JWT_SECRET"
	EnvJWTIssuer  = "CLOUDDRIVE_JWT_ISSUER"
	EnvJWTExpMins = "CLOUDDRIVE_JWT_EXPIRATION_MINUTES"

	EnvPaymentsPayeeVPA = "CLOUDDRIVE_PAYMENTS_PAYEE_VPA"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
