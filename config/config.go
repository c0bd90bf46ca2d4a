package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/clinova/booking-api/pkg/messaging/redis"
)

type ServerConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	URL          string        `yaml:"url"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
}

type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	Enabled  bool   `yaml:"enabled"`
}

// GatewayConfig carries the payment gateway credentials and posture.
type GatewayConfig struct {
	BaseURL         string        `yaml:"base_url"`
	CheckoutURL     string        `yaml:"checkout_url"`
	PublicKey       string        `yaml:"public_key"`
	PrivateKey      string        `yaml:"private_key"`
	MerchantID      string        `yaml:"merchant_id"`
	Currency        string        `yaml:"currency"`
	TestMode        bool          `yaml:"test_mode"`
	ResponseURL     string        `yaml:"response_url"`
	ConfirmationURL string        `yaml:"confirmation_url"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	TokenTTLMargin  float64       `yaml:"token_ttl_margin"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxRetries      int           `yaml:"max_retries"`
}

// SchedulerConfig drives the reconciliation poller and the expiry sweep.
type SchedulerConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	GraceWindow   time.Duration `yaml:"grace_window"`
	BatchSize     int           `yaml:"batch_size"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	ExpiryAfter   time.Duration `yaml:"expiry_after"`
}

type BookingConfig struct {
	QuantumMins     int `yaml:"quantum_mins"`
	MinDurationMins int `yaml:"min_duration_mins"`
	MaxDurationMins int `yaml:"max_duration_mins"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Email     EmailConfig     `yaml:"email"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Booking   BookingConfig   `yaml:"booking"`
	RateLimit struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	Security struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
		AllowedMethods []string `yaml:"allowed_methods"`
		AllowedHeaders []string `yaml:"allowed_headers"`
	} `yaml:"security"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app")
	viper.AddConfigPath("/app/config")

	setDefaults()

	viper.SetEnvPrefix("BOOKING")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.retry_backoff", "100ms")
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)

	viper.SetDefault("email.port", 587)
	viper.SetDefault("email.enabled", false)

	viper.SetDefault("gateway.currency", "COP")
	viper.SetDefault("gateway.token_ttl", "10m")
	viper.SetDefault("gateway.token_ttl_margin", 0.9)
	viper.SetDefault("gateway.request_timeout", "10s")
	viper.SetDefault("gateway.max_retries", 2)

	viper.SetDefault("scheduler.poll_interval", "5m")
	viper.SetDefault("scheduler.grace_window", "2m")
	viper.SetDefault("scheduler.batch_size", 100)
	viper.SetDefault("scheduler.sweep_interval", "1h")
	viper.SetDefault("scheduler.expiry_after", "24h")

	viper.SetDefault("booking.quantum_mins", 30)
	viper.SetDefault("booking.min_duration_mins", 15)
	viper.SetDefault("booking.max_duration_mins", 240)

	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests_per_second", 50)
	viper.SetDefault("rate_limit.burst", 100)
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}
