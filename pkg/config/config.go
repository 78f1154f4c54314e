package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application. Every environment
// variable is read here and nowhere else.
type Config struct {
	Env string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Model artifacts
	Models ModelsConfig

	// Forecast pipeline
	Predict PredictConfig

	// Scheduled job cadence
	Schedule ScheduleConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ModelsConfig locates the pretrained per-class model artifacts.
type ModelsConfig struct {
	HighPath string
	LowPath  string
}

// PredictConfig tunes the forecast pipeline.
type PredictConfig struct {
	// Workers bounds concurrent date partitions in a batch run.
	Workers int
	// HistoryDays is the historical window, counted as most recent valid
	// records rather than calendar days.
	HistoryDays int
	// MinHistoryDays is the eligibility threshold: items with fewer valid
	// price records are skipped entirely.
	MinHistoryDays int
	// LookbackDays is the accuracy reconciliation window.
	LookbackDays int
	// WeightsYear selects the regional yield weights used by the merge
	// stage. 0 means the previous calendar year.
	WeightsYear int
}

// ScheduleConfig holds the five-field cron expressions for the daily
// pipeline stages.
type ScheduleConfig struct {
	Merge     string
	Predict   string
	Reconcile string
	Status    string
}

// Load reads configuration from environment variables. Only this
// function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Models: ModelsConfig{
			HighPath: getEnv("MODEL_HIGH_PATH", "models/high_volatility.json"),
			LowPath:  getEnv("MODEL_LOW_PATH", "models/low_volatility.json"),
		},

		Predict: PredictConfig{
			Workers:        getEnvAsInt("PREDICT_WORKERS", 10),
			HistoryDays:    getEnvAsInt("PREDICT_HISTORY_DAYS", 180),
			MinHistoryDays: getEnvAsInt("PREDICT_MIN_HISTORY", 20),
			LookbackDays:   getEnvAsInt("PREDICT_LOOKBACK_DAYS", 3),
			WeightsYear:    getEnvAsInt("MERGE_WEIGHTS_YEAR", 0),
		},

		Schedule: ScheduleConfig{
			Merge:     getEnv("SCHEDULE_MERGE", "30 5 * * *"),
			Predict:   getEnv("SCHEDULE_PREDICT", "0 6 * * *"),
			Reconcile: getEnv("SCHEDULE_RECONCILE", "30 6 * * *"),
			Status:    getEnv("SCHEDULE_STATUS", "45 6 * * *"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Predict.Workers < 1 {
		return fmt.Errorf("PREDICT_WORKERS must be at least 1")
	}
	if c.Predict.HistoryDays < c.Predict.MinHistoryDays {
		return fmt.Errorf("PREDICT_HISTORY_DAYS must cover PREDICT_MIN_HISTORY")
	}
	if c.Predict.LookbackDays < 1 {
		return fmt.Errorf("PREDICT_LOOKBACK_DAYS must be at least 1")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
