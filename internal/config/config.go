// Package config provides application configuration through environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// ServerHost is the host address the local sync API will bind to.
	ServerHost string
	// ServerPort is the port number the local sync API will listen on.
	ServerPort int

	// DBDriver is the database driver backing the operation store ("sqlite", "postgres" or "mysql").
	DBDriver string
	// DBConnectionString is the connection string for the database.
	DBConnectionString string
	// DBMaxOpenConnections is the maximum number of open connections to the database.
	DBMaxOpenConnections int
	// DBMaxIdleConnections is the maximum number of idle connections in the database pool.
	DBMaxIdleConnections int
	// DBConnMaxLifetime is the maximum amount of time a connection may be reused.
	DBConnMaxLifetime time.Duration

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string

	// APIBaseURL is the base URL of the inventory REST API operations are replayed against.
	APIBaseURL string
	// APIAuthToken is sent as a bearer token on every call to the inventory API when set.
	APIAuthToken string
	// APITimeout bounds every call to the inventory API; a timeout is a retryable failure.
	APITimeout time.Duration

	// ConnectivityProbeURL is the URL probed to decide whether the device is online.
	ConnectivityProbeURL string
	// ConnectivityProbeInterval is how often the connectivity probe runs.
	ConnectivityProbeInterval time.Duration

	// ReplayMaxAttempts is the number of retryable failures after which an operation is dead-lettered.
	ReplayMaxAttempts int
	// ReplayInitialBackoff is the wait after the first retryable failure.
	ReplayInitialBackoff time.Duration
	// ReplayMaxBackoff caps the exponential wait between replay passes.
	ReplayMaxBackoff time.Duration
	// ReplayRateLimitPerSec is the number of replayed calls allowed per second.
	ReplayRateLimitPerSec float64
	// ReplayRateLimitBurst is the burst size for replayed calls.
	ReplayRateLimitBurst int

	// RateLimitEnabled indicates whether rate limiting for the local API is enabled.
	RateLimitEnabled bool
	// RateLimitRequestsPerSec is the number of requests allowed per second per client IP.
	RateLimitRequestsPerSec float64
	// RateLimitBurst is the burst size for local API rate limiting.
	RateLimitBurst int

	// CORSEnabled indicates whether CORS is enabled.
	CORSEnabled bool
	// CORSAllowOrigins is a comma-separated list of allowed origins for CORS.
	CORSAllowOrigins string

	// MetricsEnabled indicates whether metrics collection is enabled.
	MetricsEnabled bool
	// MetricsNamespace is the namespace for the application metrics.
	MetricsNamespace string
	// MetricsPort is the port number for the metrics server.
	MetricsPort int
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	// Try to load .env file recursively
	loadDotEnv()

	apiBaseURL := strings.TrimRight(env.GetString("API_BASE_URL", "http://localhost:8080"), "/")

	return &Config{
		// Server configuration
		ServerHost: env.GetString("SERVER_HOST", "127.0.0.1"),
		ServerPort: env.GetInt("SERVER_PORT", 8090),

		// Database configuration
		DBDriver: env.GetString("DB_DRIVER", "sqlite"),
		DBConnectionString: env.GetString(
			"DB_CONNECTION_STRING",
			"file:invsync.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		),
		DBMaxOpenConnections: env.GetInt("DB_MAX_OPEN_CONNECTIONS", 1),
		DBMaxIdleConnections: env.GetInt("DB_MAX_IDLE_CONNECTIONS", 1),
		DBConnMaxLifetime:    env.GetDuration("DB_CONN_MAX_LIFETIME", 5, time.Minute),

		// Logging
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		// Inventory API
		APIBaseURL:   apiBaseURL,
		APIAuthToken: env.GetString("API_AUTH_TOKEN", ""),
		APITimeout:   env.GetDuration("API_TIMEOUT_SECONDS", 15, time.Second),

		// Connectivity
		ConnectivityProbeURL:      env.GetString("CONNECTIVITY_PROBE_URL", apiBaseURL+"/health"),
		ConnectivityProbeInterval: env.GetDuration("CONNECTIVITY_PROBE_INTERVAL_SECONDS", 5, time.Second),

		// Replay
		ReplayMaxAttempts:     env.GetInt("REPLAY_MAX_ATTEMPTS", 5),
		ReplayInitialBackoff:  env.GetDuration("REPLAY_INITIAL_BACKOFF_MS", 1000, time.Millisecond),
		ReplayMaxBackoff:      env.GetDuration("REPLAY_MAX_BACKOFF_SECONDS", 30, time.Second),
		ReplayRateLimitPerSec: env.GetFloat64("REPLAY_RATE_LIMIT_PER_SEC", 10.0),
		ReplayRateLimitBurst:  env.GetInt("REPLAY_RATE_LIMIT_BURST", 5),

		// Rate Limiting (local API, IP-based)
		RateLimitEnabled:        env.GetBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequestsPerSec: env.GetFloat64("RATE_LIMIT_REQUESTS_PER_SEC", 20.0),
		RateLimitBurst:          env.GetInt("RATE_LIMIT_BURST", 40),

		// CORS
		CORSEnabled:      env.GetBool("CORS_ENABLED", false),
		CORSAllowOrigins: env.GetString("CORS_ALLOW_ORIGINS", ""),

		// Metrics
		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "invsync"),
		MetricsPort:      env.GetInt("METRICS_PORT", 8091),
	}
}

// GetGinMode returns the appropriate Gin mode based on log level.
func (c *Config) GetGinMode() string {
	switch c.LogLevel {
	case "debug":
		return "debug"
	case "info", "warn", "error":
		return "release"
	default:
		return "release"
	}
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	// Search for .env file recursively up the directory tree
	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			// .env file found, load it
			_ = godotenv.Load(envPath)
			return
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root directory
			break
		}
		dir = parent
	}
}
