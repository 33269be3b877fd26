package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	OTEL      OTELConfig
	Analytics AnalyticsConfig
}

// AppConfig holds process-level settings
type AppConfig struct {
	Env      string
	LogLevel string
	// StorageDriver selects the repository backend: "postgres" or "memory".
	StorageDriver string
	// CacheDriver selects the view cache: "redis" or "memory".
	CacheDriver string
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
	// EventsEnabled turns on cross-process invalidation over pub/sub.
	EventsEnabled bool
}

// KafkaConfig holds the attempt-completed consumer configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
	// DeadLetterTopic receives messages that cannot be decoded or applied. Empty disables it.
	DeadLetterTopic string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// AnalyticsConfig tunes the aggregation and view layers
type AnalyticsConfig struct {
	ViewTTL         time.Duration
	SweepInterval   time.Duration
	WarmInterval    time.Duration
	ReviewThreshold float64
	Workers         int
}

// Load loads configuration from environment variables. A dotenv file named by
// ENV_FILE (default ".env") is read first when it exists; variables already set
// in the environment win.
func Load() (*Config, error) {
	if err := loadDotEnv(getEnv("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Env:           getEnv("APP_ENV", "development"),
			LogLevel:      getEnv("LOG_LEVEL", "info"),
			StorageDriver: getEnv("STORAGE_DRIVER", "postgres"),
			CacheDriver:   getEnv("CACHE_DRIVER", "redis"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "knowledge_analytics"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnvAsInt("REDIS_PORT", 6379),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvAsInt("REDIS_DB", 0),
			EventsEnabled: getEnvAsBool("REDIS_EVENTS_ENABLED", true),
		},
		Kafka: KafkaConfig{
			Enabled:         getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:         getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:           getEnv("KAFKA_ATTEMPTS_TOPIC", "quiz.attempts.completed"),
			GroupID:         getEnv("KAFKA_GROUP_ID", "knowledge-analytics"),
			DeadLetterTopic: getEnv("KAFKA_DEAD_LETTER_TOPIC", "quiz.attempts.dlq"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "knowledge-analytics"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Analytics: AnalyticsConfig{
			ViewTTL:         getEnvAsDuration("ANALYTICS_VIEW_TTL", 5*time.Minute),
			SweepInterval:   getEnvAsDuration("ANALYTICS_SWEEP_INTERVAL", 10*time.Minute),
			WarmInterval:    getEnvAsDuration("ANALYTICS_WARM_INTERVAL", 30*time.Minute),
			ReviewThreshold: getEnvAsFloat("ANALYTICS_REVIEW_THRESHOLD", 0.6),
			Workers:         getEnvAsInt("ANALYTICS_WORKERS", 4),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	switch c.App.StorageDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q: want postgres or memory", c.App.StorageDriver)
	}
	switch c.App.CacheDriver {
	case "redis", "memory":
	default:
		return fmt.Errorf("invalid CACHE_DRIVER %q: want redis or memory", c.App.CacheDriver)
	}
	if c.Analytics.ReviewThreshold < 0 || c.Analytics.ReviewThreshold > 1 {
		return fmt.Errorf("invalid ANALYTICS_REVIEW_THRESHOLD %v: want a value in [0, 1]", c.Analytics.ReviewThreshold)
	}
	if c.Analytics.Workers < 1 {
		return fmt.Errorf("invalid ANALYTICS_WORKERS %d: want at least 1", c.Analytics.Workers)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	return nil
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

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
	return out
}
