package config

const EnvPrefix = "ACAI"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "ACAI_APP_ENV"
	EnvPort     = "ACAI_APP_PORT"
	EnvLogLevel = "ACAI_LOG_LEVEL"

	EnvDBDSN  = "ACAI_DB_DSN"
	EnvDBHost = "ACAI_DB_HOST"
	EnvDBUser = "ACAI_DB_USER"
	EnvDBName = "ACAI_DB_NAME"

	EnvRedisURL = "ACAI_REDIS_URL"

	EnvJWTSecret   = "ACAI_JWT_SECRET"
	EnvJWTIssuer   = "ACAI_JWT_ISSUER"
	EnvJWTExpMins  = "ACAI_JWT_EXPIRATION_MINUTES"
	EnvJWTAnonMins = "ACAI_JWT_ANON_EXPIRATION_MINUTES"

	EnvStoreScope       = "ACAI_STORE_SCOPE"
	EnvStoreDriver      = "ACAI_STORE_DRIVER"
	EnvStoreAdminEmail  = "ACAI_STORE_ADMIN_EMAIL"
	EnvStoreWhatsApp    = "ACAI_STORE_WHATSAPP_NUMBER"
	EnvStoreDeliveryFee = "ACAI_STORE_DELIVERY_FEE"

	EnvMercadoPagoToken = "ACAI_MERCADOPAGO_ACCESS_TOKEN"
	EnvGCPProjectID     = "ACAI_GCP_PROJECT_ID"
	EnvCronInterval     = "ACAI_CRON_INTERVAL"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
