// Package config provides configuration management for the holdings
// valuation engine. It loads configuration from environment variables
// and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Sources   SourcesConfig
	Valuation ValuationConfig
	Cache     CacheConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// SourcesConfig holds endpoints of the external data collaborators
type SourcesConfig struct {
	VaultDirectoryURL string
	SharePriceURL     string
	PriceOracleURL    string
	RequestTimeout    time.Duration
}

// ValuationConfig holds knobs of the daily valuation pipeline.
// Batch limits track the price oracle's request-size limits; the wave
// pause is deliberate spacing against upstream rate limits.
type ValuationConfig struct {
	PeriodDays            int
	MaxTokensPerBatch     int
	MaxTimestampsPerBatch int
	MaxConcurrentBatches  int
	WavePause             time.Duration
	OracleRequestsPerSec  float64
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	ResponseTTL time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional, environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "vault_holdings"),
				User:           getEnv("POSTGRES_USER", "holdings"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "vault_holdings"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Sources: SourcesConfig{
			VaultDirectoryURL: getEnv("VAULT_DIRECTORY_URL", ""),
			SharePriceURL:     getEnv("SHARE_PRICE_URL", ""),
			PriceOracleURL:    getEnv("PRICE_ORACLE_URL", "https://coins.llama.fi"),
			RequestTimeout:    getEnvAsDuration("SOURCE_REQUEST_TIMEOUT", 15*time.Second),
		},
		Valuation: ValuationConfig{
			PeriodDays:            getEnvAsInt("VALUATION_PERIOD_DAYS", 30),
			MaxTokensPerBatch:     getEnvAsInt("ORACLE_MAX_TOKENS_PER_BATCH", 10),
			MaxTimestampsPerBatch: getEnvAsInt("ORACLE_MAX_TIMESTAMPS_PER_BATCH", 20),
			MaxConcurrentBatches:  getEnvAsInt("ORACLE_MAX_CONCURRENT_BATCHES", 10),
			WavePause:             getEnvAsDuration("ORACLE_WAVE_PAUSE", 50*time.Millisecond),
			OracleRequestsPerSec:  getEnvAsFloat("ORACLE_REQUESTS_PER_SEC", 50),
		},
		Cache: CacheConfig{
			ResponseTTL: getEnvAsDuration("RESPONSE_CACHE_TTL", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
