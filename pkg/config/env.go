package config

// EnvPrefix is handed to envconfig. Every field carries an explicit full name,
// which envconfig falls back to when the prefixed key is unset.
const EnvPrefix = "UMMATI"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                      = "UMMATI_APP_ENV"
	EnvPort                        = "UMMATI_APP_PORT"
	EnvFrontendURL                 = "UMMATI_FRONTEND_URL"
	EnvDBDSN                       = "UMMATI_DB_DSN"
	EnvDBHost                      = "UMMATI_DB_HOST"
	EnvDBUser                      = "UMMATI_DB_USER"
	EnvDBName                      = "UMMATI_DB_NAME"
	EnvDBPassword                  = "UMMATI_DB_PASSWORD"
	EnvRedisURL                    = "UMMATI_REDIS_URL"
	EnvJWTSecret                   = "UMMATI_JWT_SECRET"
	EnvJWTIssuer                   = "UMMATI_JWT_ISSUER"
	EnvJWTExpMins                  = "UMMATI_JWT_EXPIRATION_MINUTES"
	EnvMembershipGracePeriod       = "UMMATI_MEMBERSHIP_GRACE_PERIOD"
	EnvMembershipMaxFailedPayments = "UMMATI_MEMBERSHIP_MAX_FAILED_PAYMENTS"
	EnvMembershipFreePeriod        = "UMMATI_MEMBERSHIP_FREE_PERIOD"
	EnvQRCodeTTL                   = "UMMATI_QR_CODE_TTL"
	EnvStripeAPIKey                = "UMMATI_STRIPE_API_KEY"
	EnvStripeSecret                = "UMMATI_STRIPE_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
