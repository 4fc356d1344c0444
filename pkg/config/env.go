package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "TRADELINE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "TRADELINE_APP_ENV"
	EnvPort     = "TRADELINE_APP_PORT"
	EnvRedisURL = "TRADELINE_REDIS_URL"

	EnvDBDSN  = "TRADELINE_DB_DSN"
	EnvDBHost = "TRADELINE_DB_HOST"
	EnvDBUser = "TRADELINE_DB_USER"
	EnvDBName = "TRADELINE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
