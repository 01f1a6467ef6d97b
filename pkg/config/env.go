package config

// EnvPrefix is empty because every variable carries its full MAPFINDERZ_ name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "MAPFINDERZ_APP_ENV"
	EnvPort     = "MAPFINDERZ_APP_PORT"
	EnvDBDSN    = "MAPFINDERZ_DB_DSN"
	EnvDBHost   = "MAPFINDERZ_DB_HOST"
	EnvDBUser   = "MAPFINDERZ_DB_USER"
	EnvDBName   = "MAPFINDERZ_DB_NAME"
	EnvRedisURL = "MAPFINDERZ_REDIS_URL"

	EnvJWTSecret  = "MAPFINDERZ_JWT_SECRET"
	EnvJWTIssuer  = "MAPFINDERZ_JWT_ISSUER"
	EnvJWTExpMins = "MAPFINDERZ_JWT_EXPIRATION_MINUTES"

	EnvUseSQLite          = "MAPFINDERZ_USE_SQLITE"
	EnvFallbackSurveyType = "MAPFINDERZ_PRICING_FALLBACK_SURVEY_TYPE"
	EnvQuotaTimezone      = "MAPFINDERZ_QUOTA_TIMEZONE"
	EnvRetryMaxAttempts   = "MAPFINDERZ_RETRY_MAX_ATTEMPTS"
	EnvStoreAPIBaseURL    = "MAPFINDERZ_STOREAPI_BASE_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
