package config

// EnvPrefix is empty because every field spells out its full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv      = "FARMLOOP_APP_ENV"
	EnvPort        = "FARMLOOP_APP_PORT"
	EnvDBDSN       = "FARMLOOP_DB_DSN"
	EnvDBHost      = "FARMLOOP_DB_HOST"
	EnvDBUser      = "FARMLOOP_DB_USER"
	EnvDBName      = "FARMLOOP_DB_NAME"
	EnvRedisURL    = "FARMLOOP_REDIS_URL"
	EnvJWTSecret   = "FARMLOOP_JWT_SECRET"
	EnvJWTIssuer   = "FARMLOOP_JWT_ISSUER"
	EnvJWTExpMins  = "FARMLOOP_JWT_EXPIRATION_MINUTES"
	EnvRazorpayKey = "FARMLOOP_RAZORPAY_KEY_ID"
	EnvRazorpaySec = "FARMLOOP_RAZORPAY_KEY_SECRET"
	EnvNotifTopic  = "FARMLOOP_PUBSUB_NOTIFICATION_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
