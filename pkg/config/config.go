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
	Ledger        LedgerConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
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
	Env          string `envconfig:"VIDACARE_APP_ENV" required:"true"`
	Port         string `envconfig:"VIDACARE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VIDACARE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VIDACARE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VIDACARE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VIDACARE_DB_DSN"`
	Driver string `envconfig:"VIDACARE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VIDACARE_DB_HOST"`
	LegacyPort     int    `envconfig:"VIDACARE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VIDACARE_DB_USER"`
	LegacyPassword string `envconfig:"VIDACARE_DB_PASSWORD"`
	LegacyName     string `envconfig:"VIDACARE_DB_NAME"`
	LegacySSLMode  string `envconfig:"VIDACARE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VIDACARE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VIDACARE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VIDACARE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VIDACARE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VIDACARE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VIDACARE_REDIS_ADDR"`
	Password     string        `envconfig:"VIDACARE_REDIS_PASSWORD"`
	DB           int           `envconfig:"VIDACARE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VIDACARE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VIDACARE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VIDACARE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VIDACARE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VIDACARE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"VIDACARE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"VIDACARE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"VIDACARE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"VIDACARE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"VIDACARE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"VIDACARE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"VIDACARE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"VIDACARE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"VIDACARE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"VIDACARE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"VIDACARE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"VIDACARE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"VIDACARE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"VIDACARE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"VIDACARE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VIDACARE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VIDACARE_AUTO_MIGRATE" default:"false"`
}

// LedgerConfig tunes the wallet mutation path.
type LedgerConfig struct {
	ApplyMaxAttempts int           `envconfig:"VIDACARE_LEDGER_APPLY_MAX_ATTEMPTS" default:"5"`
	IdempotencyTTL   time.Duration `envconfig:"VIDACARE_LEDGER_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VIDACARE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VIDACARE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VIDACARE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"VIDACARE_PUBSUB_DOMAIN_TOPIC" default:"vc-domain-events"`
	DomainSubscription string `envconfig:"VIDACARE_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VIDACARE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VIDACARE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VIDACARE_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
