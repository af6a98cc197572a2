package config

// EnvPrefix is passed to envconfig; every field carries its full variable name.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Event sink kinds accepted by STOREFRONT_EVENTS_SINK.
const (
	SinkLog    = "log"
	SinkRedis  = "redis"
	SinkPubSub = "pubsub"
	SinkKafka  = "kafka"
)

const (
	EnvAppEnv         = "STOREFRONT_APP_ENV"
	EnvPort           = "STOREFRONT_APP_PORT"
	EnvDBDSN          = "STOREFRONT_DB_DSN"
	EnvDBHost         = "STOREFRONT_DB_HOST"
	EnvDBUser         = "STOREFRONT_DB_USER"
	EnvDBName         = "STOREFRONT_DB_NAME"
	EnvRedisURL       = "STOREFRONT_REDIS_URL"
	EnvJWTSecret      = "STOREFRONT_JWT_SECRET"
	EnvCatalogBaseURL = "STOREFRONT_CATALOG_BASE_URL"
	EnvCatalogTimeout = "STOREFRONT_CATALOG_TIMEOUT"
	EnvEventsSink     = "STOREFRONT_EVENTS_SINK"
	EnvGCPProjectID   = "STOREFRONT_GCP_PROJECT_ID"
	EnvKafkaBrokers   = "STOREFRONT_KAFKA_BROKERS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
