// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Redis, Kafka, Engine, Sampler, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Engine    EngineConfig    `yaml:"engine"`
	Sampler   SamplerConfig   `yaml:"sampler"`
	Auth      AuthConfig      `yaml:"auth"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StoreConfig selects the record store backend: "postgres" for durable
// deployments, "memory" for development and tests.
type StoreConfig struct {
	Backend string `yaml:"backend"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection parameters. Redis backs the sampler's
// idempotency register and distributed rate-limit counters; it is optional
// and the service degrades to in-process equivalents without it.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents      string `yaml:"searchEvents"`
	ObservationEvents string `yaml:"observationEvents"`
}

// EngineConfig controls ranking-engine limits and defaults.
type EngineConfig struct {
	MaxCandidates   int           `yaml:"maxCandidates"`
	DefaultAlpha    float64       `yaml:"defaultAlpha"`
	DefaultPageSize int           `yaml:"defaultPageSize"`
	MaxPageSize     int           `yaml:"maxPageSize"`
	FetchTimeout    time.Duration `yaml:"fetchTimeout"`
}

// SamplerConfig controls the periodic price-observation job.
type SamplerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Workers     int           `yaml:"workers"`
	PriceJitter float64       `yaml:"priceJitter"`
	Source      string        `yaml:"source"`
	DedupeTTL   time.Duration `yaml:"dedupeTTL"`
}

// AuthConfig controls API-key verification and per-key rate limiting. Each
// key carries its own request budget; rateWindow is the period that budget
// applies to.
type AuthConfig struct {
	Enabled        bool          `yaml:"enabled"`
	RateWindow     time.Duration `yaml:"rateWindow"`
	CacheKeyLookup bool          `yaml:"cacheKeyLookup"`
}

// AnalyticsConfig controls the search-event pipeline.
type AnalyticsConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"bufferSize"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// TracingConfig controls in-process span logging.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service could not run with, naming the
// offending field.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	switch c.Store.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: store.backend %q must be postgres or memory", c.Store.Backend)
	}
	if c.Engine.MaxCandidates <= 0 {
		return fmt.Errorf("config: engine.maxCandidates must be positive, got %d", c.Engine.MaxCandidates)
	}
	if c.Engine.DefaultAlpha < 0 || c.Engine.DefaultAlpha > 1 {
		return fmt.Errorf("config: engine.defaultAlpha %g outside [0,1]", c.Engine.DefaultAlpha)
	}
	if c.Engine.DefaultPageSize <= 0 || c.Engine.DefaultPageSize > c.Engine.MaxPageSize {
		return fmt.Errorf("config: engine.defaultPageSize %d outside (0,%d]", c.Engine.DefaultPageSize, c.Engine.MaxPageSize)
	}
	if c.Sampler.Workers <= 0 {
		return fmt.Errorf("config: sampler.workers must be positive, got %d", c.Sampler.Workers)
	}
	if c.Sampler.Interval <= 0 {
		return fmt.Errorf("config: sampler.interval must be positive, got %s", c.Sampler.Interval)
	}
	// API keys live in the flights database; there is no memory-backed
	// deployment with auth.
	if c.Auth.Enabled && c.Store.Backend != "postgres" {
		return fmt.Errorf("config: auth.enabled requires store.backend postgres, got %q", c.Store.Backend)
	}
	return nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "farescout",
			User:            "farescout",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "farescout-analytics",
			Topics: KafkaTopics{
				SearchEvents:      "farescout.search-events",
				ObservationEvents: "farescout.observation-events",
			},
		},
		Engine: EngineConfig{
			MaxCandidates:   500,
			DefaultAlpha:    0.5,
			DefaultPageSize: 20,
			MaxPageSize:     100,
			FetchTimeout:    5 * time.Second,
		},
		Sampler: SamplerConfig{
			Interval:    5 * time.Minute,
			Workers:     8,
			PriceJitter: 0.15,
			Source:      "sampler",
			DedupeTTL:   4 * time.Minute,
		},
		Auth: AuthConfig{
			Enabled:        false,
			RateWindow:     time.Minute,
			CacheKeyLookup: true,
		},
		Analytics: AnalyticsConfig{
			Enabled:    true,
			BufferSize: 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			SampleRate: 0.1,
		},
	}
}

// applyEnvOverrides reads FS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FS_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("FS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("FS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("FS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("FS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("FS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("FS_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("FS_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = v == "true"
	}
	if v := os.Getenv("FS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("FS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("FS_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = v == "true"
	}
	if v := os.Getenv("FS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("FS_ENGINE_MAX_CANDIDATES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxCandidates = n
		}
	}
	if v := os.Getenv("FS_ENGINE_DEFAULT_ALPHA"); v != "" {
		if a, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.DefaultAlpha = a
		}
	}
	if v := os.Getenv("FS_SAMPLER_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sampler.Interval = d
		}
	}
	if v := os.Getenv("FS_SAMPLER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sampler.Workers = n
		}
	}
	if v := os.Getenv("FS_AUTH_ENABLED"); v != "" {
		cfg.Auth.Enabled = v == "true"
	}
	if v := os.Getenv("FS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("FS_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
