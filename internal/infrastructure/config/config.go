package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Outbox        OutboxConfig        `mapstructure:"outbox"`
	SMTP          SMTPConfig          `mapstructure:"smtp"`
	Sender        SenderConfig        `mapstructure:"sender"`
	Mention       MentionConfig       `mapstructure:"mention"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration   `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration   `mapstructure:"request_timeout"`
	CORS            CORSConfig      `mapstructure:"cors"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	IdempotencyTTL  time.Duration   `mapstructure:"idempotency_ttl"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MigrationsPath  string        `mapstructure:"migrations_path"` // file:// URL; empty uses the embedded set
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
	DLQStream         string        `mapstructure:"dlq_stream"`
	ChatStream        string        `mapstructure:"chat_stream"`
	StreamMaxLen      int64         `mapstructure:"stream_max_len"`
	SeedLockTTL       time.Duration `mapstructure:"seed_lock_ttl"`
}

type OutboxConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	BatchSize         int           `mapstructure:"batch_size"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	Concurrency       int           `mapstructure:"concurrency"`
	ClaimTTL          time.Duration `mapstructure:"claim_ttl"`
	SendTimeout       time.Duration `mapstructure:"send_timeout"`
	BackoffInitial    time.Duration `mapstructure:"backoff_initial"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	MetricsPort       int           `mapstructure:"metrics_port"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type SMTPConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	FromAddress string        `mapstructure:"from_address"`
	FromName    string        `mapstructure:"from_name"`
	TLSPolicy   string        `mapstructure:"tls_policy"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type SenderConfig struct {
	Driver                  string        `mapstructure:"driver"`
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_timeout"`
	MockFailureRate         float64       `mapstructure:"mock_failure_rate"`
	MockLatency             time.Duration `mapstructure:"mock_latency"`
}

type MentionConfig struct {
	ExcerptLength int `mapstructure:"excerpt_length"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables, e.g. NOTIFY_OUTBOX_BATCH_SIZE
	v.SetEnvPrefix("NOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/notifications")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}

	if c.Outbox.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("outbox.poll_interval must be positive"))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("outbox.batch_size must be positive"))
	}
	if c.Outbox.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("outbox.max_attempts must be positive"))
	}
	if c.Outbox.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("outbox.concurrency must be positive"))
	}
	if c.Outbox.ClaimTTL <= c.Outbox.SendTimeout {
		errs = append(errs, fmt.Errorf("outbox.claim_ttl must exceed outbox.send_timeout"))
	}
	if c.Outbox.BackoffInitial <= 0 || c.Outbox.BackoffMax < c.Outbox.BackoffInitial {
		errs = append(errs, fmt.Errorf("outbox.backoff_initial must be positive and not exceed outbox.backoff_max"))
	}
	if c.Outbox.BackoffMultiplier < 1 {
		errs = append(errs, fmt.Errorf("outbox.backoff_multiplier must be at least 1"))
	}

	switch c.Sender.Driver {
	case "smtp":
		if c.SMTP.Host == "" {
			errs = append(errs, fmt.Errorf("smtp.host is required when sender.driver is smtp"))
		}
		if c.SMTP.FromAddress == "" {
			errs = append(errs, fmt.Errorf("smtp.from_address is required when sender.driver is smtp"))
		}
	case "mock":
		if c.Sender.MockFailureRate < 0 || c.Sender.MockFailureRate > 1 {
			errs = append(errs, fmt.Errorf("sender.mock_failure_rate must be between 0 and 1"))
		}
	default:
		errs = append(errs, fmt.Errorf("sender.driver must be smtp or mock, got %q", c.Sender.Driver))
	}

	switch c.Observability.LogFormat {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("observability.log_format must be json or console, got %q", c.Observability.LogFormat))
	}

	if c.Mention.ExcerptLength <= 0 {
		errs = append(errs, fmt.Errorf("mention.excerpt_length must be positive"))
	}

	// Production environment checks
	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt_secret required in production"))
		}
		if c.Sender.Driver == "mock" {
			errs = append(errs, fmt.Errorf("sender.driver mock is not allowed in production"))
		}
	}

	// JWT secret length validation
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.rate_limit.requests", 100)
	v.SetDefault("server.rate_limit.window", "1m")
	v.SetDefault("server.idempotency_ttl", "24h")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "notifications")
	v.SetDefault("database.database", "notifications")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.migrations_path", "")
	v.SetDefault("database.auto_migrate", false)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")
	v.SetDefault("redis.dlq_stream", "notifications:dlq")
	v.SetDefault("redis.chat_stream", "chat:messages")
	v.SetDefault("redis.stream_max_len", 10000)
	v.SetDefault("redis.seed_lock_ttl", "30s")

	// Outbox defaults
	v.SetDefault("outbox.poll_interval", "5s")
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.max_attempts", 5)
	v.SetDefault("outbox.concurrency", 4)
	v.SetDefault("outbox.claim_ttl", "2m")
	v.SetDefault("outbox.send_timeout", "30s")
	v.SetDefault("outbox.backoff_initial", "30s")
	v.SetDefault("outbox.backoff_max", "30m")
	v.SetDefault("outbox.backoff_multiplier", 2.0)
	v.SetDefault("outbox.metrics_port", 9091)
	v.SetDefault("outbox.cleanup_interval", "1h")

	// SMTP defaults
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from_name", "Task Manager")
	v.SetDefault("smtp.tls_policy", "opportunistic")
	v.SetDefault("smtp.timeout", "15s")

	// Sender defaults
	v.SetDefault("sender.driver", "mock")
	v.SetDefault("sender.circuit_breaker_threshold", 5)
	v.SetDefault("sender.circuit_breaker_timeout", "30s")
	v.SetDefault("sender.mock_failure_rate", 0.0)
	v.SetDefault("sender.mock_latency", "50ms")

	// Mention defaults
	v.SetDefault("mention.excerpt_length", 200)

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Auth defaults
	v.SetDefault("auth.jwt_expiry", "24h")

	// Instance ID
	v.SetDefault("instance_id", "notifications-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DatabaseURL is the URL form used by golang-migrate.
func (c *DatabaseConfig) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
