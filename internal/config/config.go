// Package config provides configuration management for the review screening engine.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Auth modes for backend credentials.
const (
	// AuthModeStatic sends a fixed bearer token.
	AuthModeStatic = "static"
	// AuthModeSession exchanges a refresh token for short-lived access tokens.
	AuthModeSession = "session"
)

// Journal drivers.
const (
	JournalDriverMemory   = "memory"
	JournalDriverPostgres = "postgres"
)

// EnvPrefix is the prefix for every environment variable the engine reads.
const EnvPrefix = "SCREENING"

// Config holds all configuration for the review screening engine.
type Config struct {
	// Server contains console HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Backend contains systematic-review backend client settings.
	Backend BackendConfig `mapstructure:"backend"`
	// Auth contains backend credential settings.
	Auth AuthConfig `mapstructure:"auth"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Journal contains decision journal settings.
	Journal JournalConfig `mapstructure:"journal"`
	// Events contains screening event publisher settings.
	Events EventsConfig `mapstructure:"events"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 127.0.0.1).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// BackendConfig holds settings for the systematic-review backend.
type BackendConfig struct {
	// BaseURL is the backend origin, e.g. http://localhost:8000.
	BaseURL string `mapstructure:"base_url"`
	// Timeout bounds every backend request.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// RateBurst is the rate limiter burst size.
	RateBurst int `mapstructure:"rate_burst"`
	// UserAgent is sent with every request.
	UserAgent string `mapstructure:"user_agent"`
}

// AuthConfig holds backend credential settings.
type AuthConfig struct {
	// Mode is "static" or "session".
	Mode string `mapstructure:"mode"`
	// Token is the static bearer token (loaded from SCREENING_AUTH_TOKEN env var).
	Token string `mapstructure:"-"`
	// SessionURL is the token endpoint used in session mode.
	SessionURL string `mapstructure:"session_url"`
	// RefreshToken is exchanged for access tokens (loaded from SCREENING_AUTH_REFRESH_TOKEN env var).
	RefreshToken string `mapstructure:"-"`
	// ExpirySkew refreshes session tokens this long before they expire.
	ExpirySkew time.Duration `mapstructure:"expiry_skew"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// JournalConfig holds decision journal settings.
type JournalConfig struct {
	// Driver is "memory" or "postgres".
	Driver string `mapstructure:"driver"`
	// Database is used when Driver is "postgres".
	Database DatabaseConfig `mapstructure:"database"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (loaded from SCREENING_JOURNAL_DATABASE_PASSWORD env var).
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun applies pending migrations on startup.
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// EventsConfig holds screening event publisher settings.
type EventsConfig struct {
	// Enabled controls whether events are published to Kafka.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic screening events are written to.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/review-screening")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets use mapstructure:"-" and are read from the environment only.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.Auth.Token = os.Getenv(EnvPrefix + "_AUTH_TOKEN")
	cfg.Auth.RefreshToken = os.Getenv(EnvPrefix + "_AUTH_REFRESH_TOKEN")
	cfg.Journal.Database.Password = os.Getenv(EnvPrefix + "_JOURNAL_DATABASE_PASSWORD")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")

	// Backend defaults
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", "60s")
	v.SetDefault("backend.rate_limit", 10.0)
	v.SetDefault("backend.rate_burst", 5)
	v.SetDefault("backend.user_agent", "review-screening/1.0")

	// Auth defaults. Tokens are loaded from the environment (see loadSecrets).
	v.SetDefault("auth.mode", AuthModeStatic)
	v.SetDefault("auth.session_url", "")
	v.SetDefault("auth.expiry_skew", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "review_screening")

	// Journal defaults
	v.SetDefault("journal.driver", JournalDriverMemory)
	v.SetDefault("journal.database.host", "localhost")
	v.SetDefault("journal.database.port", 5432)
	v.SetDefault("journal.database.user", "screening")
	v.SetDefault("journal.database.name", "review_screening")
	// Use SCREENING_JOURNAL_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("journal.database.ssl_mode", SSLModeRequire)
	v.SetDefault("journal.database.max_conns", 10)
	v.SetDefault("journal.database.min_conns", 1)
	v.SetDefault("journal.database.max_conn_lifetime", "1h")
	v.SetDefault("journal.database.max_conn_idle_time", "30m")
	v.SetDefault("journal.database.health_check_period", "30s")
	v.SetDefault("journal.database.connect_timeout", "10s")
	v.SetDefault("journal.database.migration_path", "migrations")
	v.SetDefault("journal.database.migration_auto_run", false)

	// Events defaults
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{"localhost:9092"})
	v.SetDefault("events.topic", "events.review_screening")
	v.SetDefault("events.batch_size", 100)
	v.SetDefault("events.batch_timeout", "10ms")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	// Backend
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend base_url: %q", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}
	if c.Backend.RateLimit <= 0 {
		return fmt.Errorf("backend rate_limit must be positive")
	}

	// Auth
	switch strings.ToLower(c.Auth.Mode) {
	case AuthModeStatic:
	case AuthModeSession:
		if c.Auth.SessionURL == "" {
			return fmt.Errorf("auth session_url is required in session mode")
		}
		if c.Auth.RefreshToken == "" {
			return fmt.Errorf("auth mode %q requires %s_AUTH_REFRESH_TOKEN to be set", c.Auth.Mode, EnvPrefix)
		}
	default:
		return fmt.Errorf("invalid auth mode: %s", c.Auth.Mode)
	}
	if c.Auth.ExpirySkew < 0 {
		return fmt.Errorf("auth expiry_skew must not be negative")
	}

	// Log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Journal
	switch c.Journal.Driver {
	case JournalDriverMemory:
	case JournalDriverPostgres:
		db := c.Journal.Database
		if db.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if db.Port <= 0 || db.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", db.Port)
		}
		if db.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if db.MaxConns < db.MinConns {
			return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", db.MaxConns, db.MinConns)
		}
	default:
		return fmt.Errorf("invalid journal driver: %s", c.Journal.Driver)
	}

	// Events
	if c.Events.Enabled {
		if len(c.Events.Brokers) == 0 {
			return fmt.Errorf("events brokers are required when events are enabled")
		}
		if c.Events.Topic == "" {
			return fmt.Errorf("events topic is required when events are enabled")
		}
	}

	return nil
}
