// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Chunker   ChunkerConfig   `mapstructure:"chunker"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Chat      ChatConfig      `mapstructure:"chat"`
	DB        DBConfig        `mapstructure:"db"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs the ingestion pipeline.
type CrawlerConfig struct {
	UserAgent          string `mapstructure:"user_agent"`
	FetchTimeoutSec    int    `mapstructure:"fetch_timeout_seconds"`
	MaxDepthDefault    int    `mapstructure:"max_depth_default"`
	MaxPagesDefault    int    `mapstructure:"max_pages_default"`
	EmbeddingBatchSize int    `mapstructure:"embedding_batch_size"`
}

// ChunkerConfig bounds chunk sizes.
type ChunkerConfig struct {
	MaxChunkSize int `mapstructure:"max_chunk_size"`
	MinChunkSize int `mapstructure:"min_chunk_size"`
}

// ProvidersConfig holds model provider connection settings.
type ProvidersConfig struct {
	AIML   ProviderConfig `mapstructure:"aiml"`
	OpenAI ProviderConfig `mapstructure:"openai"`

	EmbeddingPrimary   string `mapstructure:"embedding_primary"`
	EmbeddingSecondary string `mapstructure:"embedding_secondary"`
}

// ProviderConfig is one provider endpoint.
type ProviderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RetrievalConfig tunes the similarity cascade.
type RetrievalConfig struct {
	Limit               int     `mapstructure:"limit"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

// ChatConfig tunes completion parameters.
type ChatConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// DBConfig controls access to Postgres. An empty DSN selects the in-memory
// stores, which is the development default.
type DBConfig struct {
	DSN           string `mapstructure:"dsn"`
	MaxConns      int32  `mapstructure:"max_conns"`
	MinConns      int32  `mapstructure:"min_conns"`
	MaxConnLifeMs int    `mapstructure:"max_conn_lifetime_ms"`
}

// ArchiveConfig sets paths and content types for raw page snapshots.
type ArchiveConfig struct {
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for crawl completion notifications. An empty
// project id disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EVENTPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 120)
	v.SetDefault("crawler.user_agent", "eventpilot-bot/1.0 (+https://github.com/hackdesk/eventpilot)")
	v.SetDefault("crawler.fetch_timeout_seconds", 15)
	v.SetDefault("crawler.max_depth_default", 2)
	v.SetDefault("crawler.max_pages_default", 10)
	v.SetDefault("crawler.embedding_batch_size", 8)
	v.SetDefault("chunker.max_chunk_size", 1500)
	v.SetDefault("chunker.min_chunk_size", 50)
	v.SetDefault("providers.aiml.base_url", "https://api.aimlapi.com")
	v.SetDefault("providers.aiml.timeout_seconds", 60)
	v.SetDefault("providers.openai.base_url", "https://api.openai.com")
	v.SetDefault("providers.openai.timeout_seconds", 60)
	v.SetDefault("providers.embedding_primary", "text-embedding-3-large")
	v.SetDefault("providers.embedding_secondary", "text-embedding-3-small")
	v.SetDefault("retrieval.limit", 5)
	v.SetDefault("retrieval.similarity_threshold", 0.3)
	v.SetDefault("chat.temperature", 0.5)
	v.SetDefault("chat.max_tokens", 900)
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.MaxDepthDefault < 0 {
		return fmt.Errorf("crawler.max_depth_default must be >= 0")
	}
	if c.Crawler.MaxPagesDefault <= 0 {
		return fmt.Errorf("crawler.max_pages_default must be > 0")
	}
	if c.Crawler.EmbeddingBatchSize <= 0 {
		return fmt.Errorf("crawler.embedding_batch_size must be > 0")
	}
	if c.Chunker.MaxChunkSize <= 0 {
		return fmt.Errorf("chunker.max_chunk_size must be > 0")
	}
	if c.Chunker.MinChunkSize < 0 || c.Chunker.MinChunkSize >= c.Chunker.MaxChunkSize {
		return fmt.Errorf("chunker.min_chunk_size must be in [0, max_chunk_size)")
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		return fmt.Errorf("retrieval.similarity_threshold must be in [0, 1]")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required when auth is enabled")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name is required when pubsub.project_id is set")
	}
	return nil
}
