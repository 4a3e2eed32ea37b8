// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Index, Cache, Search, etc.).
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
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Index    IndexConfig    `yaml:"index"`
	Cache    CacheConfig    `yaml:"cache"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
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
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ShardRebuilt string `yaml:"shardRebuilt"`
	SearchEvents string `yaml:"searchEvents"`
}

// RedisConfig holds Redis connection and result-caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexConfig controls the offline index build.
type IndexConfig struct {
	// Normalizer selects the term-normalization strategy: "passthrough"
	// expects pre-normalized whitespace separated terms, "standard" lowercases,
	// drops stop-words and stems.
	Normalizer       string `yaml:"normalizer"`
	BatchSize        int    `yaml:"batchSize"`
	WriteBatchSize   int    `yaml:"writeBatchSize"`
	BuildConcurrency int    `yaml:"buildConcurrency"`
}

// CacheConfig controls the shard cache: where materialized shard files live,
// how they are compressed, and how backing-store loads are bounded.
type CacheConfig struct {
	Dir                 string        `yaml:"dir"`
	Compression         string        `yaml:"compression"`
	LoadTimeout         time.Duration `yaml:"loadTimeout"`
	LoadAttempts        int           `yaml:"loadAttempts"`
	BreakerThreshold    int           `yaml:"breakerThreshold"`
	BreakerResetTimeout time.Duration `yaml:"breakerResetTimeout"`
	WarmOnStart         bool          `yaml:"warmOnStart"`
	WarmConcurrency     int           `yaml:"warmConcurrency"`
	RefreshOnRebuild    bool          `yaml:"refreshOnRebuild"`
}

// SearchConfig controls query evaluation, fallback, and ranking limits.
type SearchConfig struct {
	FallbackThreshold int    `yaml:"fallbackThreshold"`
	MaxCandidates     int    `yaml:"maxCandidates"`
	TopN              int    `yaml:"topN"`
	RankMode          string `yaml:"rankMode"`
	DefaultLimit      int    `yaml:"defaultLimit"`
	MaxResults        int    `yaml:"maxResults"`
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

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.Index.Normalizer {
	case "passthrough", "standard":
	default:
		return fmt.Errorf("index.normalizer must be passthrough or standard, got %q", c.Index.Normalizer)
	}
	switch c.Cache.Compression {
	case "zstd", "lz4", "none":
	default:
		return fmt.Errorf("cache.compression must be zstd, lz4 or none, got %q", c.Cache.Compression)
	}
	switch c.Search.RankMode {
	case "fast", "full":
	default:
		return fmt.Errorf("search.rankMode must be fast or full, got %q", c.Search.RankMode)
	}
	if c.Search.MaxCandidates <= 0 || c.Search.TopN <= 0 {
		return fmt.Errorf("search.maxCandidates and search.topN must be positive")
	}
	if c.Index.BatchSize <= 0 || c.Index.WriteBatchSize <= 0 {
		return fmt.Errorf("index.batchSize and index.writeBatchSize must be positive")
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
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "termshard",
			User:            "termshard",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "termshard-group",
			Topics: KafkaTopics{
				ShardRebuilt: "shard-rebuilt",
				SearchEvents: "search-events",
			},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Index: IndexConfig{
			Normalizer:       "standard",
			BatchSize:        1000,
			WriteBatchSize:   1000,
			BuildConcurrency: 4,
		},
		Cache: CacheConfig{
			Dir:                 "cache",
			Compression:         "zstd",
			LoadTimeout:         30 * time.Second,
			LoadAttempts:        3,
			BreakerThreshold:    5,
			BreakerResetTimeout: 30 * time.Second,
			WarmOnStart:         false,
			WarmConcurrency:     8,
			RefreshOnRebuild:    false,
		},
		Search: SearchConfig{
			FallbackThreshold: 30,
			MaxCandidates:     5000,
			TopN:              300,
			RankMode:          "fast",
			DefaultLimit:      10,
			MaxResults:        300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

type envOverride struct {
	key   string
	apply func(cfg *Config, v string)
}

func setInt(dst *int) func(string) {
	return func(v string) {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// overrides lists every SP_* variable the services honor. Setting a broker or
// Redis address also enables that integration.
var overrides = []envOverride{
	{"SP_SERVER_PORT", func(c *Config, v string) { setInt(&c.Server.Port)(v) }},
	{"SP_POSTGRES_HOST", func(c *Config, v string) { c.Postgres.Host = v }},
	{"SP_POSTGRES_PORT", func(c *Config, v string) { setInt(&c.Postgres.Port)(v) }},
	{"SP_POSTGRES_DATABASE", func(c *Config, v string) { c.Postgres.Database = v }},
	{"SP_POSTGRES_USER", func(c *Config, v string) { c.Postgres.User = v }},
	{"SP_POSTGRES_PASSWORD", func(c *Config, v string) { c.Postgres.Password = v }},
	{"SP_POSTGRES_SSLMODE", func(c *Config, v string) { c.Postgres.SSLMode = v }},
	{"SP_KAFKA_BROKERS", func(c *Config, v string) {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}},
	{"SP_REDIS_ADDR", func(c *Config, v string) {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}},
	{"SP_REDIS_PASSWORD", func(c *Config, v string) { c.Redis.Password = v }},
	{"SP_CACHE_DIR", func(c *Config, v string) { c.Cache.Dir = v }},
	{"SP_CACHE_COMPRESSION", func(c *Config, v string) { c.Cache.Compression = v }},
	{"SP_INDEX_NORMALIZER", func(c *Config, v string) { c.Index.Normalizer = v }},
	{"SP_SEARCH_RANK_MODE", func(c *Config, v string) { c.Search.RankMode = v }},
	{"SP_LOGGING_LEVEL", func(c *Config, v string) { c.Logging.Level = v }},
	{"SP_LOGGING_FORMAT", func(c *Config, v string) { c.Logging.Format = v }},
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			o.apply(cfg, v)
		}
	}
}
