// Package config loads application settings from environment variables.
// Every field has a default except where noted, and Load validates the
// result so a bad deployment fails at startup rather than mid-request.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Alert    AlertConfig
	Queue    QueueConfig
	SMS      SMSConfig
	Security SecurityConfig
	Rate     RateLimitConfig
	Logging  LoggingConfig
	History  HistoryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds every request except imports, which use
	// Import.Timeout instead.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	// Driver is postgres or sqlite (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is the PostgreSQL connection string, required for the postgres driver.
	// DB_URL is accepted for compatibility.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" secret:"true"`

	SQLitePath        string        `env:"SQLITE_PATH" default:"data/regionalert.db"`
	SQLiteBusyTimeout time.Duration `env:"SQLITE_BUSY_TIMEOUT" default:"5s"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	// ChunkSize is the number of rows per multi-row INSERT (default: 25)
	ChunkSize int `env:"IMPORT_CHUNK_SIZE" default:"25"`

	// MaxFileSize caps HTTP uploads in bytes (default: 20MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"20971520"`

	MaxConcurrent int           `env:"IMPORT_MAX_CONCURRENT" default:"3"`
	MaxWaitTime   time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"10s"`
	Timeout       time.Duration `env:"IMPORT_TIMEOUT" default:"5m"`
}

// AlertConfig holds dispatch settings.
type AlertConfig struct {
	LookupTimeout  time.Duration `env:"ALERT_LOOKUP_TIMEOUT" default:"5s"`
	PublishTimeout time.Duration `env:"ALERT_PUBLISH_TIMEOUT" default:"10s"`
}

// QueueConfig selects the notification channel and consumer pool.
type QueueConfig struct {
	// Backend is memory, redis or kafka (default: memory)
	Backend string `env:"QUEUE_BACKEND" default:"memory"`

	// Buffer is the memory channel capacity (default: 1024)
	Buffer int `env:"QUEUE_BUFFER" default:"1024"`

	Workers     int           `env:"QUEUE_WORKERS" default:"4"`
	SendTimeout time.Duration `env:"QUEUE_SEND_TIMEOUT" default:"10s"`

	RedisAddr     string `env:"REDIS_ADDR" envAlt:"REDIS_URL" default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" secret:"true"`
	RedisDB       int    `env:"REDIS_DB" default:"0"`
	RedisKey      string `env:"REDIS_QUEUE_KEY" default:"regionalert:notifications"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" default:"regionalert.notifications"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" default:"regionalert-senders"`
}

// SMSConfig selects the SMS sender used by the consumer.
type SMSConfig struct {
	// Provider is log or http (default: log)
	Provider string        `env:"SMS_PROVIDER" default:"log"`
	URL      string        `env:"SMS_API_URL"`
	APIKey   string        `env:"SMS_API_KEY" secret:"true"`
	SenderID string        `env:"SMS_SENDER_ID"`
	Timeout  time.Duration `env:"SMS_TIMEOUT" default:"10s"`
}

// SecurityConfig holds API access settings.
type SecurityConfig struct {
	// RequireAPIKey gates /api and /alerter behind X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS" secret:"true"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Forwarded-For / X-Real-IP headers are honored
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// RateLimitConfig holds per-IP inbound rate limits.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
	Burst             int  `env:"RATE_LIMIT_BURST" default:"20"`

	// ImportsPerMinute applies to POST /api/imports (default: 10)
	ImportsPerMinute int `env:"RATE_LIMIT_IMPORTS" default:"10"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is debug, info, warn or error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// HistoryConfig controls import history retention.
type HistoryConfig struct {
	Enabled       bool          `env:"HISTORY_ENABLED" default:"true"`
	Retention     time.Duration `env:"HISTORY_RETENTION" default:"2160h"`
	CheckInterval time.Duration `env:"HISTORY_CHECK_INTERVAL" default:"24h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
