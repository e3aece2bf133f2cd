// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Index, Search, Cache, Redis, Kafka, Postgres, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	RPC      RPCConfig      `yaml:"rpc"`
	HTTP     HTTPConfig     `yaml:"http"`
	Index    IndexConfig    `yaml:"index"`
	Search   SearchConfig   `yaml:"search"`
	Cache    CacheConfig    `yaml:"cache"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// RPCConfig controls the internal JSON-over-TCP listener.
type RPCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// HTTPConfig holds cross-cutting HTTP middleware settings.
type HTTPConfig struct {
	CORSAllowedOrigins []string      `yaml:"corsAllowedOrigins"`
	RateLimitRequests  int           `yaml:"rateLimitRequests"`
	RateLimitWindow    time.Duration `yaml:"rateLimitWindow"`
}

// IndexConfig points at the three artifacts produced by one offline build.
type IndexConfig struct {
	Dir              string        `yaml:"dir"`
	VectorizerFile   string        `yaml:"vectorizerFile"`
	MatrixFile       string        `yaml:"matrixFile"`
	CatalogFile      string        `yaml:"catalogFile"`
	LoadAttempts     int           `yaml:"loadAttempts"`
	LoadInitialDelay time.Duration `yaml:"loadInitialDelay"`
}

// SearchConfig controls match and recommendation behaviour.
type SearchConfig struct {
	MatchThreshold          float64 `yaml:"matchThreshold"`
	ReportSubThresholdScore bool    `yaml:"reportSubThresholdScore"`
	DefaultRecommendations  int     `yaml:"defaultRecommendations"`
	MaxRecommendations      int     `yaml:"maxRecommendations"`
	MoodSampleSize          int     `yaml:"moodSampleSize"`
	MaxQueryLength          int     `yaml:"maxQueryLength"`
	ParallelThreshold       int     `yaml:"parallelThreshold"`
	ScanWorkers             int     `yaml:"scanWorkers"`
}

// CacheConfig controls the two-tier result cache.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	LocalSize int           `yaml:"localSize"`
	LocalTTL  time.Duration `yaml:"localTTL"`
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

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	ConsumerGroup string        `yaml:"consumerGroup"`
	Topics        KafkaTopics   `yaml:"topics"`
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level, output format and an
// optional rotating log file.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
}

// TracingConfig controls request span logging.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
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
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the search path cannot honour.
func (c *Config) Validate() error {
	var errs []error
	if c.Search.MatchThreshold < 0 || c.Search.MatchThreshold > 1 {
		errs = append(errs, fmt.Errorf("search.matchThreshold must be within [0, 1], got %v", c.Search.MatchThreshold))
	}
	if c.Search.DefaultRecommendations < 0 {
		errs = append(errs, fmt.Errorf("search.defaultRecommendations must not be negative"))
	}
	if c.Search.MaxRecommendations < c.Search.DefaultRecommendations {
		errs = append(errs, fmt.Errorf("search.maxRecommendations (%d) is below defaultRecommendations (%d)",
			c.Search.MaxRecommendations, c.Search.DefaultRecommendations))
	}
	if c.Search.MoodSampleSize <= 0 {
		errs = append(errs, fmt.Errorf("search.moodSampleSize must be positive"))
	}
	if c.Index.VectorizerFile == "" || c.Index.MatrixFile == "" || c.Index.CatalogFile == "" {
		errs = append(errs, fmt.Errorf("index artifact file names must be set"))
	}
	return errors.Join(errs...)
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		RPC: RPCConfig{
			Enabled: true,
			Addr:    ":9100",
		},
		HTTP: HTTPConfig{
			CORSAllowedOrigins: []string{"*"},
			RateLimitRequests:  120,
			RateLimitWindow:    time.Minute,
		},
		Index: IndexConfig{
			Dir:              "data/index",
			VectorizerFile:   "vectorizer.json",
			MatrixFile:       "matrix.lvx",
			CatalogFile:      "catalog.json",
			LoadAttempts:     5,
			LoadInitialDelay: 500 * time.Millisecond,
		},
		Search: SearchConfig{
			MatchThreshold:          0.1,
			ReportSubThresholdScore: true,
			DefaultRecommendations:  5,
			MaxRecommendations:      50,
			MoodSampleSize:          5,
			MaxQueryLength:          20000,
			ParallelThreshold:       4096,
			ScanWorkers:             0,
		},
		Cache: CacheConfig{
			Enabled:   true,
			LocalSize: 4096,
			LocalTTL:  30 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "melodetect",
			User:            "melodetect",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "melodetect-analytics",
			Topics: KafkaTopics{
				AnalyticsEvents: "lyric-analytics",
			},
			BatchSize:     100,
			FlushInterval: 2 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads MD_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MD_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MD_RPC_ADDR"); v != "" {
		cfg.RPC.Addr = v
	}
	if v := os.Getenv("MD_INDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}
	if v := os.Getenv("MD_SEARCH_MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.MatchThreshold = f
		}
	}
	if v := os.Getenv("MD_SEARCH_REPORT_SUB_THRESHOLD_SCORE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Search.ReportSubThresholdScore = b
		}
	}
	if v := os.Getenv("MD_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if v := os.Getenv("MD_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("MD_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("MD_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("MD_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("MD_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("MD_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("MD_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MD_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MD_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("MD_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MD_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MD_LOGGING_FILE"); v != "" {
		cfg.Logging.File = v
	}
}
