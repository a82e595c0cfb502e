package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

// Environment variables that address the data store.
const (
	EnvStoreURL = "ECOGEN_STORE_URL"
	EnvStoreKey = "ECOGEN_STORE_KEY"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Auth   AuthConfig
	Query  QueryConfig
	Redis  RedisConfig
	OTEL   OTELConfig
	Log    LogConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// StoreConfig addresses the relational data store
type StoreConfig struct {
	URL          string
	Key          string
	MaxOpenConns int
	MaxIdleConns int
}

// AuthConfig holds session configuration
type AuthConfig struct {
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

// QueryConfig holds facility query defaults
type QueryConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// RedisConfig holds Redis configuration. An empty Host disables Redis.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// LogConfig holds logger configuration
type LogConfig struct {
	Env   string
	Level string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Store: StoreConfig{
			URL:          getEnv(EnvStoreURL, ""),
			Key:          getEnv(EnvStoreKey, ""),
			MaxOpenConns: getEnvAsInt("STORE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("STORE_MAX_IDLE_CONNS", 5),
		},
		Auth: AuthConfig{
			SessionTTL:    getEnvAsDuration("SESSION_TTL", 7*24*time.Hour),
			SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		},
		Query: QueryConfig{
			DefaultPageSize: getEnvAsInt("FACILITY_PAGE_SIZE", 6),
			MaxPageSize:     getEnvAsInt("FACILITY_MAX_PAGE_SIZE", 50),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "ecogen-api"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Log: LogConfig{
			Env:   getEnv("APP_ENV", "development"),
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if cfg.Query.DefaultPageSize <= 0 {
		return nil, fmt.Errorf("FACILITY_PAGE_SIZE must be positive, got %d", cfg.Query.DefaultPageSize)
	}
	if cfg.Query.MaxPageSize < cfg.Query.DefaultPageSize {
		cfg.Query.MaxPageSize = cfg.Query.DefaultPageSize
	}

	return cfg, nil
}

// Validate reports missing store addressing values. The returned error is a
// STORE error so callers can run degraded instead of exiting.
func (c *Config) Validate() error {
	var missing []string
	if c.Store.URL == "" {
		missing = append(missing, EnvStoreURL)
	}
	if c.Store.Key == "" {
		missing = append(missing, EnvStoreKey)
	}
	if len(missing) > 0 {
		return apperrors.NewStoreError(
			fmt.Sprintf("missing data store configuration: %s", strings.Join(missing, ", ")),
			nil,
		)
	}
	return nil
}

// Enabled reports whether Redis is configured
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
