package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Razorpay      RazorpayConfig
	Points        PointsConfig
	Leaderboard   LeaderboardConfig
	Cron          CronConfig
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
	Env          string `envconfig:"FARMLOOP_APP_ENV" required:"true"`
	Port         string `envconfig:"FARMLOOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FARMLOOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FARMLOOP_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"FARMLOOP_LOG_FORMAT" default:"json"`

	CORSOrigins []string `envconfig:"FARMLOOP_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"FARMLOOP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FARMLOOP_DB_DSN"`
	Driver string `envconfig:"FARMLOOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FARMLOOP_DB_HOST"`
	LegacyPort     int    `envconfig:"FARMLOOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FARMLOOP_DB_USER"`
	LegacyPassword string `envconfig:"FARMLOOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"FARMLOOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"FARMLOOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FARMLOOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FARMLOOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FARMLOOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FARMLOOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FARMLOOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FARMLOOP_REDIS_ADDR"`
	Password     string        `envconfig:"FARMLOOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"FARMLOOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FARMLOOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FARMLOOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FARMLOOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FARMLOOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FARMLOOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FARMLOOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FARMLOOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FARMLOOP_JWT_EXPIRATION_MINUTES" required:"true"`
}

// TTL returns the access token lifetime configured in minutes.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FARMLOOP_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FARMLOOP_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FARMLOOP_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FARMLOOP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FARMLOOP_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"FARMLOOP_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"FARMLOOP_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"FARMLOOP_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`

	RegisterWindow     time.Duration `envconfig:"FARMLOOP_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit    int           `envconfig:"FARMLOOP_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"10"`
	RegisterEmailLimit int           `envconfig:"FARMLOOP_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FARMLOOP_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"FARMLOOP_EVENTING_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FARMLOOP_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FARMLOOP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FARMLOOP_GOOGLE_APPLICATION_CREDENTIALS"`
}

// PubSubConfig is optional; an empty NotificationTopic keeps notifications in-app only.
type PubSubConfig struct {
	NotificationTopic string `envconfig:"FARMLOOP_PUBSUB_NOTIFICATION_TOPIC"`
	// EmulatorHost points the client at a local emulator without credentials.
	EmulatorHost   string        `envconfig:"FARMLOOP_PUBSUB_EMULATOR_HOST"`
	BatchDelay     time.Duration `envconfig:"FARMLOOP_PUBSUB_BATCH_DELAY" default:"50ms"`
	BatchCount     int           `envconfig:"FARMLOOP_PUBSUB_BATCH_COUNT" default:"100"`
	PublishTimeout time.Duration `envconfig:"FARMLOOP_PUBSUB_PUBLISH_TIMEOUT" default:"30s"`
}

type RazorpayConfig struct {
	KeyID     string `envconfig:"FARMLOOP_RAZORPAY_KEY_ID"`
	KeySecret string `envconfig:"FARMLOOP_RAZORPAY_KEY_SECRET"`
	// Mode is "test" or "live" and must match the key id prefix.
	Mode     string `envconfig:"FARMLOOP_RAZORPAY_MODE" default:"test"`
	Currency string `envconfig:"FARMLOOP_RAZORPAY_CURRENCY" default:"INR"`
}

type PointsConfig struct {
	// EarnDivisor is the order amount that earns one reward point.
	EarnDivisor int `envconfig:"FARMLOOP_POINTS_EARN_DIVISOR" default:"10"`
}

type LeaderboardConfig struct {
	CacheTTL     time.Duration `envconfig:"FARMLOOP_LEADERBOARD_CACHE_TTL" default:"5m"`
	DefaultLimit int           `envconfig:"FARMLOOP_LEADERBOARD_DEFAULT_LIMIT" default:"10"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"FARMLOOP_CRON_INTERVAL" default:"1h"`
	LockTTL               time.Duration `envconfig:"FARMLOOP_CRON_LOCK_TTL" default:"10m"`
	NotificationRetention time.Duration `envconfig:"FARMLOOP_NOTIFICATION_RETENTION" default:"720h"`
	ImpactLookback        time.Duration `envconfig:"FARMLOOP_IMPACT_LOOKBACK" default:"24h"`
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
