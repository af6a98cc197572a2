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
	FeatureFlags FeatureFlagsConfig
	Catalog      CatalogConfig
	Checkout     CheckoutConfig
	Events       EventsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	Outbox       OutboxConfig
	Notifier     NotifierConfig
	Retention    RetentionConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validateEventSink(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDatabase reads only the app and database sections, for tools that never
// touch Redis, the catalog or the event sinks.
func LoadDatabase() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg.App); err != nil {
		return nil, fmt.Errorf("parsing app config: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg.DB); err != nil {
		return nil, fmt.Errorf("parsing db config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string   `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"STOREFRONT_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQueryThreshold logs statements slower than this at warn; zero disables.
	SlowQueryThreshold time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

// RedisConfig carries address, credentials and database in URL; the pool
// settings override whatever the URL query sets.
type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies bearer tokens issued by the storefront identity provider.
type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" default:"storefront"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
	// ClockSkew is tolerated on exp/iat/nbf when verifying.
	ClockSkew time.Duration `envconfig:"STOREFRONT_JWT_CLOCK_SKEW" default:"30s"`
}

// Enabled reports whether bearer tokens can be verified.
func (j JWTConfig) Enabled() bool {
	return strings.TrimSpace(j.Secret) != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

// CatalogConfig points the checkout service at the catalog read API.
type CatalogConfig struct {
	BaseURL             string        `envconfig:"STOREFRONT_CATALOG_BASE_URL" required:"true"`
	Timeout             time.Duration `envconfig:"STOREFRONT_CATALOG_TIMEOUT" default:"3s"`
	BreakerMaxRequests  uint32        `envconfig:"STOREFRONT_CATALOG_BREAKER_MAX_REQUESTS" default:"1"`
	BreakerInterval     time.Duration `envconfig:"STOREFRONT_CATALOG_BREAKER_INTERVAL" default:"60s"`
	BreakerOpenTimeout  time.Duration `envconfig:"STOREFRONT_CATALOG_BREAKER_OPEN_TIMEOUT" default:"30s"`
	BreakerFailureLimit uint32        `envconfig:"STOREFRONT_CATALOG_BREAKER_FAILURES" default:"5"`
}

type CheckoutConfig struct {
	PublishTimeout time.Duration `envconfig:"STOREFRONT_CHECKOUT_PUBLISH_TIMEOUT" default:"5s"`
}

// EventsConfig selects where OrderCreated events are delivered.
type EventsConfig struct {
	Sink           string        `envconfig:"STOREFRONT_EVENTS_SINK" default:"log"`
	Queue          string        `envconfig:"STOREFRONT_EVENTS_QUEUE" default:"order-events"`
	IdempotencyTTL time.Duration `envconfig:"STOREFRONT_EVENTS_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrderEventsTopic        string `envconfig:"STOREFRONT_PUBSUB_ORDER_EVENTS_TOPIC" default:"order-events"`
	OrderEventsSubscription string `envconfig:"STOREFRONT_PUBSUB_ORDER_EVENTS_SUBSCRIPTION" default:"order-events-email"`
}

type KafkaConfig struct {
	Brokers []string `envconfig:"STOREFRONT_KAFKA_BROKERS"`
	Topic   string   `envconfig:"STOREFRONT_KAFKA_TOPIC" default:"order-events"`
	GroupID string   `envconfig:"STOREFRONT_KAFKA_GROUP_ID" default:"email-notifier"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type NotifierConfig struct {
	FromAddress  string `envconfig:"STOREFRONT_NOTIFIER_FROM" default:"orders@storefront.local"`
	ConsumerName string `envconfig:"STOREFRONT_NOTIFIER_CONSUMER" default:"email-notifier"`
}

// RetentionConfig bounds the delivery bookkeeping tables. A zero duration keeps rows forever.
type RetentionConfig struct {
	Interval        time.Duration `envconfig:"STOREFRONT_RETENTION_INTERVAL" default:"24h"`
	LockTTL         time.Duration `envconfig:"STOREFRONT_RETENTION_LOCK_TTL" default:"1h"`
	OutboxPublished time.Duration `envconfig:"STOREFRONT_RETENTION_OUTBOX_PUBLISHED" default:"720h"`
	OutboxDLQ       time.Duration `envconfig:"STOREFRONT_RETENTION_OUTBOX_DLQ" default:"2160h"`
	EmailLogs       time.Duration `envconfig:"STOREFRONT_RETENTION_EMAIL_LOGS" default:"2160h"`
}

func (c *Config) validateEventSink() error {
	c.Events.Sink = strings.ToLower(strings.TrimSpace(c.Events.Sink))
	if c.Events.Sink == "" {
		c.Events.Sink = SinkLog
	}
	switch c.Events.Sink {
	case SinkLog, SinkRedis:
		return nil
	case SinkPubSub:
		if strings.TrimSpace(c.GCP.ProjectID) == "" {
			return fmt.Errorf("%s is required for the %s event sink", EnvGCPProjectID, SinkPubSub)
		}
		return nil
	case SinkKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("%s is required for the %s event sink", EnvKafkaBrokers, SinkKafka)
		}
		return nil
	default:
		return fmt.Errorf("unsupported event sink %q", c.Events.Sink)
	}
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
