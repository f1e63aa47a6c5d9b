// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Import        ImportConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AuthConfig struct {
	JWTSecret string
}

// ImportConfig tunes the statement import pipeline.
type ImportConfig struct {
	// Mode selects how accepted jobs are executed: "inline" runs them on a
	// goroutine in the API process, "queue" leaves them for a worker binary.
	Mode string
	// JobTimeout bounds one execution attempt of a job.
	JobTimeout time.Duration
	// PollInterval is the queue worker's idle sleep.
	PollInterval time.Duration
	// MaxAttempts caps queue retries per job.
	MaxAttempts int
	// RetryBackoff is the base retry delay, doubled on every attempt.
	RetryBackoff time.Duration
	// MaxUploadBytes limits the size of an uploaded statement file.
	MaxUploadBytes int64
}

type ObservabilityConfig struct {
	MetricsEnabled bool
}

type ProfilingConfig struct {
	Enabled bool
	Port    int
}

const (
	ImportModeInline = "inline"
	ImportModeQueue  = "queue"
)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getEnvInt("SERVER_PORT", 8080),
			RateLimitPerSecond: getEnvInt("RATE_LIMIT_PER_SECOND", 50),
			RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 100),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "smartkosh"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Import: ImportConfig{
			Mode:           getEnv("IMPORT_MODE", ImportModeInline),
			JobTimeout:     getEnvDuration("IMPORT_JOB_TIMEOUT", 10*time.Minute),
			PollInterval:   getEnvDuration("IMPORT_POLL_INTERVAL", 2*time.Second),
			MaxAttempts:    getEnvInt("IMPORT_MAX_ATTEMPTS", 3),
			RetryBackoff:   getEnvDuration("IMPORT_RETRY_BACKOFF", 5*time.Second),
			MaxUploadBytes: int64(getEnvInt("IMPORT_MAX_UPLOAD_BYTES", 10<<20)),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		},
		Profiling: ProfilingConfig{
			Enabled: getEnvBool("PPROF_ENABLED", false),
			Port:    getEnvInt("PPROF_PORT", 6060),
		},
	}

	if cfg.Import.Mode != ImportModeInline && cfg.Import.Mode != ImportModeQueue {
		return nil, fmt.Errorf("invalid IMPORT_MODE %q: must be %q or %q",
			cfg.Import.Mode, ImportModeInline, ImportModeQueue)
	}

	return cfg, nil
}

// DSN builds the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
