// internal/config/config.go
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Dead-letter backends.
const (
	DeadLetterNone  = "none"
	DeadLetterRedis = "redis"
	DeadLetterEtcd  = "etcd"
)

// Config holds all configuration for our application.
// The mapstructure tags are used by Viper to unmarshal the data.
type Config struct {
	ServiceName    string `mapstructure:"service_name"`
	HttpListenAddr string `mapstructure:"http_listen_addr"`
	GrpcListenAddr string `mapstructure:"grpc_listen_addr"`
	LogLevel       string `mapstructure:"log_level"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`

	// MaxConcurrentJobs bounds running jobs per kind; 0 means one goroutine per job.
	MaxConcurrentJobs  int           `mapstructure:"max_concurrent_jobs"`
	DeliveryMaxRetries int           `mapstructure:"delivery_max_retries"`
	DeliveryTimeout    time.Duration `mapstructure:"delivery_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`

	ValidatorTimeout         time.Duration `mapstructure:"validator_timeout"`
	VolumeTypeValidatorURL   string        `mapstructure:"volume_type_validator_url"`
	InstanceTypeValidatorURL string        `mapstructure:"instance_type_validator_url"`
	VolumeTypeAIService      string        `mapstructure:"volume_type_ai_service"`
	InstanceTypeAIService    string        `mapstructure:"instance_type_ai_service"`

	DeadLetterBackend  string        `mapstructure:"dead_letter_backend"`
	RedisAddr          string        `mapstructure:"redis_addr"`
	RedisPassword      string        `mapstructure:"redis_password"`
	RedisDB            int           `mapstructure:"redis_db"`
	RedisDeadLetterKey string        `mapstructure:"redis_dead_letter_key"`
	EtcdEndpoints      []string      `mapstructure:"etcd_endpoints"`
	EtcdTimeout        time.Duration `mapstructure:"etcd_timeout"`
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("service_name", "validation-worker")
	v.SetDefault("http_listen_addr", ":8080")
	v.SetDefault("grpc_listen_addr", ":50052")
	v.SetDefault("log_level", "info")
	v.SetDefault("tracing_enabled", false)
	v.SetDefault("max_concurrent_jobs", 0)
	v.SetDefault("delivery_max_retries", 3)
	v.SetDefault("delivery_timeout", "30s")
	v.SetDefault("shutdown_timeout", "30s")
	v.SetDefault("validator_timeout", "60s")
	v.SetDefault("volume_type_validator_url", "")
	v.SetDefault("instance_type_validator_url", "")
	v.SetDefault("volume_type_ai_service", "volume-type-ai")
	v.SetDefault("instance_type_ai_service", "instance-type-ai")
	v.SetDefault("dead_letter_backend", DeadLetterNone)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_dead_letter_key", "validation:dead-letters:")
	v.SetDefault("etcd_endpoints", []string{"localhost:2379"})
	v.SetDefault("etcd_timeout", "5s")

	// Set config file details
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Read environment variables
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.DeadLetterBackend {
	case DeadLetterNone, DeadLetterRedis, DeadLetterEtcd:
	default:
		return fmt.Errorf("invalid dead_letter_backend %q: want none, redis or etcd", c.DeadLetterBackend)
	}
	if c.DeliveryMaxRetries < 1 {
		return fmt.Errorf("delivery_max_retries must be at least 1, got %d", c.DeliveryMaxRetries)
	}
	if c.VolumeTypeAIService == "" || c.InstanceTypeAIService == "" {
		return fmt.Errorf("volume_type_ai_service and instance_type_ai_service cannot be empty")
	}
	if c.MaxConcurrentJobs < 0 {
		return fmt.Errorf("max_concurrent_jobs cannot be negative, got %d", c.MaxConcurrentJobs)
	}
	return nil
}

// SlogLevel maps log_level to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
