package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	StaffJWTSecret string

	// AvailabilityTimeout bounds each availability check; expiry is a
	// failure, never "no conflict".
	AvailabilityTimeout time.Duration
	// ValidationDebounce is how long form input must stay quiet before a
	// check fires.
	ValidationDebounce time.Duration
	// CatalogCacheTTL bounds staleness of the procedure cache.
	CatalogCacheTTL time.Duration
	// OutboxInterval is the calendar event delivery poll interval.
	OutboxInterval time.Duration

	// Calendar grid geometry served to clients.
	GridColumnWidth  int
	GridRowHeight    int
	GridHeaderOffset int
	GridSlotMinutes  int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		StaffJWTSecret: getEnv("STAFF_JWT_SECRET", ""),

		AvailabilityTimeout: getEnvAsDuration("AVAILABILITY_TIMEOUT", 10*time.Second),
		ValidationDebounce:  getEnvAsDuration("VALIDATION_DEBOUNCE", 300*time.Millisecond),
		CatalogCacheTTL:     getEnvAsDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		OutboxInterval:      getEnvAsDuration("OUTBOX_INTERVAL", time.Second),

		GridColumnWidth:  getEnvAsInt("GRID_COLUMN_WIDTH", 140),
		GridRowHeight:    getEnvAsInt("GRID_ROW_HEIGHT", 40),
		GridHeaderOffset: getEnvAsInt("GRID_HEADER_OFFSET", 60),
		GridSlotMinutes:  getEnvAsInt("GRID_SLOT_MINUTES", 15),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
