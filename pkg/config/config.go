// Package config loads the service configuration from a YAML file and the
// environment. Environment variables take precedence over the file; the
// variable names are the ones the service has always used (DB_HOST,
// JWT_SECRET, ...), without a prefix.
package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the full static configuration of the service.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Worker    WorkerConfig    `mapstructure:"worker" yaml:"worker"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Admin     AdminConfig     `mapstructure:"admin" yaml:"admin"`

	// OnlyGlobalCidrs drops non-routable prefixes from add jobs.
	OnlyGlobalCidrs bool `mapstructure:"only_global_cidrs" yaml:"only_global_cidrs"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// DatabaseConfig describes the PostgreSQL connection and pool limits.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required" yaml:"host"`
	Port     int    `mapstructure:"port" validate:"required,gt=0,lte=65535" yaml:"port"`
	Name     string `mapstructure:"name" validate:"required" yaml:"name"`
	Username string `mapstructure:"username" validate:"required" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	SSLMode  string `mapstructure:"ssl_mode" yaml:"ssl_mode"`

	PoolMinSize        int           `mapstructure:"pool_min_size" validate:"gte=0" yaml:"pool_min_size"`
	PoolMaxSize        int           `mapstructure:"pool_max_size" validate:"gt=0" yaml:"pool_max_size"`
	PoolMaxIdleTime    time.Duration `mapstructure:"pool_max_idle_timeout" yaml:"pool_max_idle_timeout"`
	PoolAcquireTimeout time.Duration `mapstructure:"pool_acquire_conn_timeout" yaml:"pool_acquire_conn_timeout"`
	PoolCloseTimeout   time.Duration `mapstructure:"pool_close_timeout" yaml:"pool_close_timeout"`

	// AutoMigrate runs pending migrations at startup.
	AutoMigrate bool `mapstructure:"auto_migrate" yaml:"auto_migrate"`
}

// DSN renders the connection string used by pgx and golang-migrate.
func (c DatabaseConfig) DSN() string {
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.Name, ssl)
}

// APIConfig describes the HTTP listener.
type APIConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr" validate:"required" yaml:"listen_addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// AuthConfig describes token issuance and the auth cache.
type AuthConfig struct {
	// JWTSecret is the HS256 signing key. Must be at least 32 characters.
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32" yaml:"jwt_secret"`

	// TokenTTL is the lifetime of issued access tokens.
	TokenTTL time.Duration `mapstructure:"default_token_ttl" validate:"gt=0" yaml:"default_token_ttl"`

	// CacheTTL bounds how long verified token/user pairs are reused
	// without touching the database. Zero disables the cache.
	CacheTTL time.Duration `mapstructure:"auth_cache_ttl" yaml:"auth_cache_ttl"`

	// CookieName is the fallback cookie checked when no Authorization
	// header is present.
	CookieName string `mapstructure:"api_key_cookie" validate:"required" yaml:"api_key_cookie"`
}

// WorkerConfig controls the job queue consumer.
type WorkerConfig struct {
	QueryInterval time.Duration `mapstructure:"job_queue_query_interval" validate:"gt=0" yaml:"job_queue_query_interval"`
}

// SchedulerConfig controls the background maintenance tasks.
type SchedulerConfig struct {
	DeleteExpiredInterval time.Duration `mapstructure:"delete_expired_interval" validate:"gt=0" yaml:"delete_expired_interval"`
}

// AdminConfig bootstraps the first superuser at startup. Both fields must
// be set for the bootstrap to run.
type AdminConfig struct {
	Login    string `mapstructure:"login" yaml:"login"`
	Password string `mapstructure:"password" yaml:"password"`
}

// envBindings maps the historical environment variable names onto viper
// keys. Interval and TTL variables are plain integers in seconds.
var envBindings = map[string]string{
	"database.host":                      "DB_HOST",
	"database.port":                      "DB_PORT",
	"database.name":                      "DB_NAME",
	"database.username":                  "DB_USERNAME",
	"database.password":                  "DB_PASSWORD",
	"database.pool_min_size":             "DB_POOL_MIN_SIZE",
	"database.pool_max_size":             "DB_POOL_MAX_SIZE",
	"database.pool_max_idle_timeout":     "DB_POOL_MAX_IDLE_TIMEOUT",
	"database.pool_acquire_conn_timeout": "DB_POOL_ACQUIRE_CONN_TIMEOUT",
	"database.pool_close_timeout":        "DB_POOL_CLOSE_TIMEOUT",
	"worker.job_queue_query_interval":    "JOB_QUEUE_QUERY_INTERVAL",
	"scheduler.delete_expired_interval":  "SCHEDULER_DELETE_EXPIRED_INTERVAL",
	"auth.jwt_secret":                    "JWT_SECRET",
	"auth.default_token_ttl":             "DEFAULT_TOKEN_TTL_SECONDS",
	"auth.auth_cache_ttl":                "AUTH_CACHE_SECONDS",
	"auth.api_key_cookie":                "API_KEY_COOKIE",
	"admin.login":                        "DEFAULT_ADMIN_USER",
	"admin.password":                     "DEFAULT_ADMIN_USER_PASSWORD",
	"only_global_cidrs":                  "ONLY_GLOBAL_CIDRS",
	"logging.level":                      "LOG_LEVEL",
	"api.listen_addr":                    "LISTEN_ADDR",
}

// Load reads the configuration from the optional file at path plus the
// environment, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook,
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsToDurationHook interprets bare integers targeting a time.Duration
// field as seconds, so AUTH_CACHE_SECONDS=120 means two minutes. Values
// with a unit suffix ("5s", "2m") pass through to the duration parser.
var secondsToDurationHook mapstructure.DecodeHookFuncType = func(from, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch val := data.(type) {
	case int:
		return time.Duration(val) * time.Second, nil
	case int64:
		return time.Duration(val) * time.Second, nil
	case float64:
		return time.Duration(val) * time.Second, nil
	case string:
		if secs, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
	}
	return data, nil
}
