package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Calendar CalendarConfig
	Sync     SyncConfig
	WhatsApp WhatsAppConfig
	OTEL     OTELConfig
	Env      string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CalendarConfig holds external calendar provider configuration
type CalendarConfig struct {
	// Provider selects the default adapter variant: "google" or "mock"
	Provider string

	// CallTimeout bounds every adapter call; exceeding it is treated as
	// an unavailable provider
	CallTimeout time.Duration
}

// SyncConfig holds reconciliation policy
type SyncConfig struct {
	// Interval between scheduled reconciliation passes per resource
	Interval time.Duration

	// FreshnessThreshold is the maximum cursor age before the
	// availability path forces a just-in-time sync. This bounds the
	// staleness window for external-vs-local collisions.
	FreshnessThreshold time.Duration

	// Lookahead is how far into the future busy intervals are mirrored
	Lookahead time.Duration
}

// WhatsAppConfig holds booking-confirmation messaging configuration
type WhatsAppConfig struct {
	Enabled       bool
	AccessToken   string
	PhoneNumberID string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "ventaflow_scheduling"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Calendar: CalendarConfig{
			Provider:    getEnv("CALENDAR_PROVIDER", "mock"),
			CallTimeout: getEnvAsDuration("CALENDAR_CALL_TIMEOUT_SECONDS", 10*time.Second),
		},
		Sync: SyncConfig{
			Interval:           getEnvAsDuration("SYNC_INTERVAL_SECONDS", 60*time.Second),
			FreshnessThreshold: getEnvAsDuration("SYNC_FRESHNESS_SECONDS", 120*time.Second),
			Lookahead:          time.Duration(getEnvAsInt("SYNC_LOOKAHEAD_DAYS", 14)) * 24 * time.Hour,
		},
		WhatsApp: WhatsAppConfig{
			Enabled:       getEnvAsBool("WHATSAPP_ENABLED", false),
			AccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "ventaflow-scheduling"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Env: getEnv("APP_ENV", "development"),
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
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
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
