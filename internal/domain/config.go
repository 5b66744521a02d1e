package domain

import (
	"time"
)

// Config is the complete engine configuration loaded by internal/config.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Store       StoreConfig    `mapstructure:"store"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Provider    ProviderConfig `mapstructure:"provider"`
	Logging     LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP boundary settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// StoreConfig holds the registry persistence settings.
type StoreConfig struct {
	// Path of the SQLite database backing the rule and interaction
	// registries. Evaluation results are never persisted here.
	Path string `mapstructure:"path"`
	Seed bool   `mapstructure:"seed"`
}

// CacheConfig holds Redis settings for calibration externalization.
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// ProviderConfig holds the resilience settings wrapped around the external
// LLM provider client.
type ProviderConfig struct {
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	BreakerRequests uint32        `mapstructure:"breaker_requests"`
	BreakerInterval time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// AuditBuffer is the capacity of the fire-and-forget audit channel.
	AuditBuffer int `mapstructure:"audit_buffer"`
}
