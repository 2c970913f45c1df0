// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Realtime drivers accepted by REALTIME_DRIVER.
const (
	RealtimeRedis = "redis"
	RealtimeKafka = "kafka"
	RealtimeNone  = "none"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBSchemaMode             string `mapstructure:"DB_SCHEMA_MODE"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	RedisURL string `mapstructure:"REDIS_URL"`

	RealtimeDriver   string `mapstructure:"REALTIME_DRIVER"`
	KafkaBrokers     string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopicPrefix string `mapstructure:"KAFKA_TOPIC_PREFIX"`
	FanoutTimeoutMS  int    `mapstructure:"FANOUT_TIMEOUT_MS"`

	HeartbeatSweepEnabled         bool `mapstructure:"HEARTBEAT_SWEEP_ENABLED"`
	HeartbeatTimeoutSeconds       int  `mapstructure:"HEARTBEAT_TIMEOUT_SECONDS"`
	HeartbeatSweepIntervalSeconds int  `mapstructure:"HEARTBEAT_SWEEP_INTERVAL_SECONDS"`

	StreamingIngestURL       string `mapstructure:"STREAMING_INGEST_URL"`
	StreamingPlaybackBaseURL string `mapstructure:"STREAMING_PLAYBACK_BASE_URL"`
	StreamingWebhookSecret   string `mapstructure:"STREAMING_WEBHOOK_SECRET"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string `mapstructure:"OTLP_ENDPOINT"`

	RateLimitWritesPerMinute int `mapstructure:"RATE_LIMIT_WRITES_PER_MINUTE"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "livemarket")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)

	viper.SetDefault("REDIS_URL", "localhost:6379")

	viper.SetDefault("REALTIME_DRIVER", RealtimeRedis)
	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("KAFKA_TOPIC_PREFIX", "livemarket")
	viper.SetDefault("FANOUT_TIMEOUT_MS", 2000)

	viper.SetDefault("HEARTBEAT_SWEEP_ENABLED", false)
	viper.SetDefault("HEARTBEAT_TIMEOUT_SECONDS", 90)
	viper.SetDefault("HEARTBEAT_SWEEP_INTERVAL_SECONDS", 30)

	viper.SetDefault("STREAMING_INGEST_URL", "rtmp://localhost:1935/live")
	viper.SetDefault("STREAMING_PLAYBACK_BASE_URL", "http://localhost:8080/hls")
	viper.SetDefault("STREAMING_WEBHOOK_SECRET", "")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")

	viper.SetDefault("RATE_LIMIT_WRITES_PER_MINUTE", 60)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.RealtimeDriver = strings.ToLower(strings.TrimSpace(c.RealtimeDriver))
}

// IsProduction reports whether the service runs with production safeguards.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// FanoutTimeout bounds a single publish attempt.
func (c *Config) FanoutTimeout() time.Duration {
	return time.Duration(c.FanoutTimeoutMS) * time.Millisecond
}

func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutSeconds) * time.Second
}

func (c *Config) HeartbeatSweepInterval() time.Duration {
	return time.Duration(c.HeartbeatSweepIntervalSeconds) * time.Second
}

// KafkaBrokerList splits KAFKA_BROKERS on commas.
func (c *Config) KafkaBrokerList() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.FanoutTimeoutMS <= 0 {
		return errors.New("FANOUT_TIMEOUT_MS must be positive")
	}
	if c.DBConnMaxLifetimeMinutes <= 0 {
		return errors.New("DB_CONN_MAX_LIFETIME_MINUTES must be positive")
	}

	switch c.RealtimeDriver {
	case RealtimeRedis, RealtimeNone:
	case RealtimeKafka:
		if len(c.KafkaBrokerList()) == 0 {
			return errors.New("KAFKA_BROKERS is required when REALTIME_DRIVER=kafka")
		}
	default:
		return fmt.Errorf("unsupported REALTIME_DRIVER %q", c.RealtimeDriver)
	}

	if c.HeartbeatSweepEnabled {
		if c.HeartbeatTimeoutSeconds <= 0 || c.HeartbeatSweepIntervalSeconds <= 0 {
			return errors.New("HEARTBEAT_TIMEOUT_SECONDS and HEARTBEAT_SWEEP_INTERVAL_SECONDS must be positive when the sweep is enabled")
		}
	}

	if c.IsProduction() {
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.StreamingWebhookSecret == "" {
			return errors.New("STREAMING_WEBHOOK_SECRET is required in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	}

	return nil
}
