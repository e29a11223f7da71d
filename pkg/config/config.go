package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

// Config is shared by every binary; each one reads only the sections it needs.
type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Maintenance  MaintenanceConfig
}

// Load reads the environment, fills the database DSN from its parts when
// needed, and rejects combinations that cannot work together.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	dsn, err := cfg.DB.resolveDSN()
	if err != nil {
		return nil, err
	}
	cfg.DB.DSN = dsn
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	var err error
	if c.DB.MaxIdleConns > c.DB.MaxOpenConns && c.DB.MaxOpenConns > 0 {
		err = multierr.Append(err, errors.New("db max idle conns exceeds max open conns"))
	}
	if c.Maintenance.Interval > 0 && c.Maintenance.LockTTL >= c.Maintenance.Interval {
		err = multierr.Append(err, errors.New("maintenance lock ttl must be shorter than the interval"))
	}
	if c.Eventing.HTTPIdempotencyTTL < 0 {
		err = multierr.Append(err, errors.New("http idempotency ttl cannot be negative"))
	}
	return err
}

type AppConfig struct {
	Env          string `envconfig:"TIPLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"TIPLEDGER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"TIPLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TIPLEDGER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

// IsProd also accepts "production".
func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// DBConfig takes either a full DSN or the host/user/name parts it is built from.
type DBConfig struct {
	DSN string `envconfig:"TIPLEDGER_DB_DSN"`

	Host     string `envconfig:"TIPLEDGER_DB_HOST"`
	Port     int    `envconfig:"TIPLEDGER_DB_PORT" default:"5432"`
	User     string `envconfig:"TIPLEDGER_DB_USER"`
	Password string `envconfig:"TIPLEDGER_DB_PASSWORD"`
	Name     string `envconfig:"TIPLEDGER_DB_NAME"`
	SSLMode  string `envconfig:"TIPLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TIPLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TIPLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TIPLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TIPLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// LockTimeout bounds how long a transition waits for a tip intent row lock.
	LockTimeout time.Duration `envconfig:"TIPLEDGER_DB_LOCK_TIMEOUT" default:"5s"`

	SlowQueryThreshold time.Duration `envconfig:"TIPLEDGER_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

func (db DBConfig) resolveDSN() (string, error) {
	if db.DSN != "" {
		return db.DSN, nil
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	return u.String(), nil
}

// RedisConfig accepts a redis:// URL or a bare address. Redis is optional;
// without it the HTTP replay cache is off and the maintenance lock is local.
type RedisConfig struct {
	URL          string        `envconfig:"TIPLEDGER_REDIS_URL"`
	Address      string        `envconfig:"TIPLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"TIPLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"TIPLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TIPLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TIPLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TIPLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TIPLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TIPLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TIPLEDGER_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	PublishTimeout         time.Duration `envconfig:"TIPLEDGER_EVENTING_PUBLISH_TIMEOUT" default:"10s"`
	MaxOutstandingMessages int           `envconfig:"TIPLEDGER_EVENTING_MAX_OUTSTANDING" default:"100"`
	HTTPIdempotencyTTL     time.Duration `envconfig:"TIPLEDGER_EVENTING_HTTP_IDEMPOTENCY_TTL" default:"24h"`
}

// MaintenanceConfig drives the maintenance worker.
type MaintenanceConfig struct {
	Interval                 time.Duration `envconfig:"TIPLEDGER_MAINTENANCE_INTERVAL" default:"1h"`
	LockTTL                  time.Duration `envconfig:"TIPLEDGER_MAINTENANCE_LOCK_TTL" default:"55m"`
	ProcessedEventsRetention time.Duration `envconfig:"TIPLEDGER_MAINTENANCE_PROCESSED_EVENTS_RETENTION" default:"720h"`
	ReconcileLimit           int           `envconfig:"TIPLEDGER_MAINTENANCE_RECONCILE_LIMIT" default:"100"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TIPLEDGER_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"TIPLEDGER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	TipEventsTopic        string `envconfig:"TIPLEDGER_PUBSUB_TIP_EVENTS_TOPIC"`
	TipEventsSubscription string `envconfig:"TIPLEDGER_PUBSUB_TIP_EVENTS_SUBSCRIPTION"`
}

// PublishingEnabled reports whether the API should publish tip events to Pub/Sub.
func (p PubSubConfig) PublishingEnabled(gcp GCPConfig) bool {
	return strings.TrimSpace(gcp.ProjectID) != "" && strings.TrimSpace(p.TipEventsTopic) != ""
}
