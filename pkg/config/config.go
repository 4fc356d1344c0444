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
	Credit       CreditConfig
	Stock        StockConfig
	Routing      RoutingConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"TRADELINE_APP_ENV" required:"true"`
	Port         string `envconfig:"TRADELINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TRADELINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TRADELINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TRADELINE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TRADELINE_DB_DSN"`
	Driver string `envconfig:"TRADELINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRADELINE_DB_HOST"`
	LegacyPort     int    `envconfig:"TRADELINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRADELINE_DB_USER"`
	LegacyPassword string `envconfig:"TRADELINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRADELINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRADELINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRADELINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRADELINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRADELINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRADELINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRADELINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TRADELINE_REDIS_ADDR"`
	Password     string        `envconfig:"TRADELINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRADELINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRADELINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRADELINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRADELINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRADELINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRADELINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// DefaultLockRetryBase is the fallback backoff base when a zero-valued
// CreditConfig or StockConfig reaches a service (tests construct them bare).
const DefaultLockRetryBase = 100 * time.Millisecond

// CreditConfig bounds the per-pair lock retry loop for credit reservations.
type CreditConfig struct {
	LockRetryBase time.Duration `envconfig:"TRADELINE_CREDIT_LOCK_RETRY_BASE" default:"100ms"`
	LockRetryMax  int           `envconfig:"TRADELINE_CREDIT_LOCK_RETRY_MAX" default:"3"`
	LockTimeout   time.Duration `envconfig:"TRADELINE_CREDIT_LOCK_TIMEOUT" default:"2s"`
}

// StockConfig bounds the per-item lock retry loop for stock reservations.
type StockConfig struct {
	LockRetryBase time.Duration `envconfig:"TRADELINE_STOCK_LOCK_RETRY_BASE" default:"100ms"`
	LockRetryMax  int           `envconfig:"TRADELINE_STOCK_LOCK_RETRY_MAX" default:"3"`
	LockTimeout   time.Duration `envconfig:"TRADELINE_STOCK_LOCK_TIMEOUT" default:"2s"`
}

// RoutingConfig controls vendor broadcast fan-out and expiry.
type RoutingConfig struct {
	ResponseTTL       time.Duration `envconfig:"TRADELINE_ROUTING_RESPONSE_TTL" default:"15m"`
	TierSize          int           `envconfig:"TRADELINE_ROUTING_TIER_SIZE" default:"5"`
	MaxTiers          int           `envconfig:"TRADELINE_ROUTING_MAX_TIERS" default:"3"`
	WeightStock       float64       `envconfig:"TRADELINE_ROUTING_WEIGHT_STOCK" default:"0.5"`
	WeightProximity   float64       `envconfig:"TRADELINE_ROUTING_WEIGHT_PROXIMITY" default:"0.2"`
	WeightReliability float64       `envconfig:"TRADELINE_ROUTING_WEIGHT_RELIABILITY" default:"0.3"`
	SweepInterval     time.Duration `envconfig:"TRADELINE_ROUTING_SWEEP_INTERVAL" default:"1m"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TRADELINE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TRADELINE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TRADELINE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TRADELINE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TRADELINE_AUTO_MIGRATE" default:"false"`
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
