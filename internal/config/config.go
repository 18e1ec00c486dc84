// Package config loads pipeline configuration from config.yaml and
// environment variables via viper, applying production-safe defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultDBHost    = "localhost"
	defaultDBPort    = 5432
	defaultDBUser    = "postgres"
	defaultDBName    = "seoul_sister"
	defaultDBSSLMode = "disable"

	defaultFetchConcurrency = 3
	defaultFetchMinDelay    = 2 * time.Second
	defaultFetchMaxRetries  = 3
	defaultFetchTimeout     = 30 * time.Second
	defaultRetryAfterCap    = 60 * time.Second

	defaultBatchSize        = 25
	defaultChunkConcurrency = 5

	defaultLinkBatchSize = 50

	defaultPriceMinConfidence = 0.5
	defaultPriceStaleness     = 24 * time.Hour
	defaultPriceBatchSize     = 20

	defaultModel          = "claude-sonnet-4-5"
	defaultMaxTokens      = 2048
	defaultRequestTimeout = 120 * time.Second

	defaultHTTPAddress = ":8085"

	defaultLogLevel = "info"
)

// Config holds all pipeline configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Prices    PricesConfig    `mapstructure:"prices"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// FetchConfig controls the shared resilient fetch client.
type FetchConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	MinDelay      time.Duration `mapstructure:"min_delay"`
	MaxRetries    int           `mapstructure:"max_retries"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAfterCap time.Duration `mapstructure:"retry_after_cap"`
}

// AnthropicConfig holds language-model settings.
type AnthropicConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// PipelineConfig controls the batch processor and ingredient linker.
type PipelineConfig struct {
	BatchSize        int `mapstructure:"batch_size"`
	ChunkConcurrency int `mapstructure:"chunk_concurrency"`
	LinkBatchSize    int `mapstructure:"link_batch_size"`
}

// PricesConfig controls the price pipeline.
type PricesConfig struct {
	MinConfidence float64       `mapstructure:"min_confidence"`
	Staleness     time.Duration `mapstructure:"staleness"`
	BatchSize     int           `mapstructure:"batch_size"`
}

// ServerConfig holds the ops HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load decodes the viper state into a Config and applies defaults.
// SetDefaults must have been registered on viper by the root command.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	applyDatabaseDefaults(&cfg.Database)
	applyFetchDefaults(&cfg.Fetch)
	applyAnthropicDefaults(&cfg.Anthropic)
	applyPipelineDefaults(&cfg.Pipeline)
	applyPricesDefaults(&cfg.Prices)

	if cfg.Server.Address == "" {
		cfg.Server.Address = defaultHTTPAddress
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogLevel
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == 0 {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.Database == "" {
		d.Database = defaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}
}

func applyFetchDefaults(f *FetchConfig) {
	if f.Concurrency <= 0 {
		f.Concurrency = defaultFetchConcurrency
	}
	if f.MinDelay <= 0 {
		f.MinDelay = defaultFetchMinDelay
	}
	if f.MaxRetries <= 0 {
		f.MaxRetries = defaultFetchMaxRetries
	}
	if f.Timeout <= 0 {
		f.Timeout = defaultFetchTimeout
	}
	if f.RetryAfterCap <= 0 {
		f.RetryAfterCap = defaultRetryAfterCap
	}
}

func applyAnthropicDefaults(a *AnthropicConfig) {
	if a.Model == "" {
		a.Model = defaultModel
	}
	if a.MaxTokens <= 0 {
		a.MaxTokens = defaultMaxTokens
	}
	if a.Timeout <= 0 {
		a.Timeout = defaultRequestTimeout
	}
}

func applyPipelineDefaults(p *PipelineConfig) {
	if p.BatchSize <= 0 {
		p.BatchSize = defaultBatchSize
	}
	if p.ChunkConcurrency <= 0 {
		p.ChunkConcurrency = defaultChunkConcurrency
	}
	if p.LinkBatchSize <= 0 {
		p.LinkBatchSize = defaultLinkBatchSize
	}
}

func applyPricesDefaults(p *PricesConfig) {
	if p.MinConfidence <= 0 {
		p.MinConfidence = defaultPriceMinConfidence
	}
	if p.Staleness <= 0 {
		p.Staleness = defaultPriceStaleness
	}
	if p.BatchSize <= 0 {
		p.BatchSize = defaultPriceBatchSize
	}
}
