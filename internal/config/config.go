// Package config provides centralized configuration management for the mirror.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Source   SourceConfig
	Refresh  RefreshConfig
	Logging  LoggingConfig
}

// ServerConfig holds browse server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers are honoured
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// APIKeys enables POST /api/refresh for requests carrying one of them in X-API-Key
	APIKeys []string `env:"SDE_API_KEYS"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver selects the store: postgres or sqlite (default: postgres)
	Driver string `env:"SDE_DB_DRIVER" default:"postgres"`

	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file of the sqlite driver (default: sde.db)
	SQLitePath string `env:"SDE_SQLITE_PATH" default:"sde.db"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// SourceConfig holds the upstream locations and HTTP settings.
type SourceConfig struct {
	TokenURL       string `env:"SDE_TOKEN_URL" default:"https://www.fuzzwork.co.uk/dump/mysql-latest.tar.bz2.md5"`
	CategoryURL    string `env:"SDE_CATEGORY_URL" default:"https://www.fuzzwork.co.uk/dump/latest/invCategories.csv"`
	GroupURL       string `env:"SDE_GROUP_URL" default:"https://www.fuzzwork.co.uk/dump/latest/invGroups.csv"`
	MarketGroupURL string `env:"SDE_MARKET_GROUP_URL" default:"https://www.fuzzwork.co.uk/dump/latest/invMarketGroups.csv"`
	TypeURL        string `env:"SDE_TYPE_URL" default:"https://www.fuzzwork.co.uk/dump/latest/invTypes-nodescription.csv"`
	VolumeURL      string `env:"SDE_VOLUME_URL" default:"https://www.fuzzwork.co.uk/dump/latest/invVolumes.csv"`

	// HTTPTimeout bounds each request (default: 2m)
	HTTPTimeout time.Duration `env:"SDE_HTTP_TIMEOUT" default:"2m"`

	// UserAgent is sent with every request; empty means sdemirror/<version>
	UserAgent string `env:"SDE_USER_AGENT"`
}

// RefreshConfig holds refresh run settings.
type RefreshConfig struct {
	// Timeout bounds a whole refresh (default: 30m)
	Timeout time.Duration `env:"SDE_REFRESH_TIMEOUT" default:"30m"`

	// Interval makes serve refresh periodically; 0 disables it (default: 0)
	Interval time.Duration `env:"SDE_REFRESH_INTERVAL" default:"0s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
