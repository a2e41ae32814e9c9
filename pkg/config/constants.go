package config

// EnvPrefix scopes every environment variable the service reads.
const EnvPrefix = "vidacare"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Canonical environment variable names, shared with tests and deploy tooling.
const (
	EnvAppEnv                 = "VIDACARE_APP_ENV"
	EnvPort                   = "VIDACARE_APP_PORT"
	EnvDBDSN                  = "VIDACARE_DB_DSN"
	EnvDBHost                 = "VIDACARE_DB_HOST"
	EnvDBUser                 = "VIDACARE_DB_USER"
	EnvDBName                 = "VIDACARE_DB_NAME"
	EnvRedisURL               = "VIDACARE_REDIS_URL"
	EnvJWTSecret              = "VIDACARE_JWT_SECRET"
	EnvJWTIssuer              = "VIDACARE_JWT_ISSUER"
	EnvJWTExpMins             = "VIDACARE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "VIDACARE_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "VIDACARE_GCP_PROJECT_ID"
	EnvPubSubDomainTopic      = "VIDACARE_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub        = "VIDACARE_PUBSUB_DOMAIN_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
