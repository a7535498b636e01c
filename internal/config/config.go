package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"

	"github.com/xxxsen/mrag/internal/model"
)

type Config struct {
	Port             int              `json:"port"`
	Database         DatabaseConfig   `json:"database"`
	LogConfig        logger.LogConfig `json:"log_config"`
	FileStore        FileStoreConfig  `json:"file_store"`
	AI               AIConfig         `json:"ai"`
	Ingest           IngestConfig     `json:"ingest"`
	Search           SearchConfig     `json:"search"`
	Synthesis        SynthesisConfig  `json:"synthesis"`
	Admin            AdminConfig      `json:"admin"`
	CORS             []string         `json:"cors"`
	RateLimitSeconds int              `json:"rate_limit_seconds"`
	Jobs             JobsConfig       `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ProviderConfig struct {
	Name string      `json:"name"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ModelRef points at a model served by a named provider.
type ModelRef struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type RetryConfig struct {
	MaxAttempts    int `json:"max_attempts"`
	BaseDelayMs    int `json:"base_delay_ms"`
	MaxDelayMs     int `json:"max_delay_ms"`
	TimeoutSeconds int `json:"timeout_seconds"`
}

type RateLimitConfig struct {
	RPS   float64 `json:"rps"`
	Burst int     `json:"burst"`
}

type EmbedCacheConfig struct {
	LRUSize       int  `json:"lru_size"`
	LRUTTLSeconds int  `json:"lru_ttl_seconds"`
	DB            bool `json:"db"`
}

type AIConfig struct {
	Providers      []ProviderConfig `json:"providers"`
	Embedder       ModelRef         `json:"embedder"`
	Dimension      int              `json:"dimension"`
	Generators     []ModelRef       `json:"generators"`
	Summarizers    []ModelRef       `json:"summarizers"`
	Retry          RetryConfig      `json:"retry"`
	EmbedRateLimit RateLimitConfig  `json:"embed_rate_limit"`
	EmbedCache     EmbedCacheConfig `json:"embed_cache"`
	MaxInputChars  int              `json:"max_input_chars"`
}

type IngestConfig struct {
	ChunkSize      int   `json:"chunk_size"`
	ChunkOverlap   *int  `json:"chunk_overlap"` // nil means unset; 0 is a valid overlap
	Concurrency    int   `json:"concurrency"`
	MaxUploadBytes int64 `json:"max_upload_bytes"`
}

type SearchConfig struct {
	Backend     string `json:"backend"`
	DefaultTopK int    `json:"default_top_k"`
	MaxTopK     int    `json:"max_top_k"`
}

type SynthesisConfig struct {
	MaxContextChars int     `json:"max_context_chars"`
	MaxTokens       int     `json:"max_tokens"`
	Temperature     float32 `json:"temperature"`
	CacheSize       int     `json:"cache_size"`
	CacheTTLSeconds int     `json:"cache_ttl_seconds"`
}

type AdminConfig struct {
	JWTSecret     string `json:"jwt_secret"`
	TokenTTLHours int    `json:"token_ttl_hours"`
}

type JobsConfig struct {
	SummaryCron          string `json:"summary_cron"`
	SummaryBatch         int    `json:"summary_batch"`
	StaleCron            string `json:"stale_cron"`
	StaleAfterMinutes    int    `json:"stale_after_minutes"`
	CacheCleanupCron     string `json:"cache_cleanup_cron"`
	CacheRetentionHours  int    `json:"cache_retention_hours"`
	DisableSummary       bool   `json:"disable_summary"`
	DisableStaleRecovery bool   `json:"disable_stale_recovery"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	return Parse(raw, filepath.Ext(path))
}

// Parse decodes a JSON document, or YAML when ext is .yaml/.yml, and applies
// defaults. YAML is normalised through JSON so both formats share the json tags.
func Parse(raw []byte, ext string) (*Config, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var doc map[string]interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		raw = data
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.FileStore.Type == "local" && cfg.FileStore.Data == nil {
		cfg.FileStore.Data = map[string]interface{}{"dir": "./data/files"}
	}

	ai := &cfg.AI
	if len(ai.Providers) == 0 {
		ai.Providers = []ProviderConfig{{Name: "openai", Type: "openai"}}
	}
	if ai.Embedder.Provider == "" {
		ai.Embedder.Provider = ai.Providers[0].Name
	}
	if ai.Embedder.Model == "" {
		ai.Embedder.Model = "text-embedding-3-small"
	}
	if ai.Dimension == 0 {
		ai.Dimension = model.EmbeddingDimension
	}
	if ai.Dimension != model.EmbeddingDimension {
		return fmt.Errorf("ai.dimension must be %d to match the rag_chunks vector column", model.EmbeddingDimension)
	}
	if len(ai.Generators) == 0 {
		ai.Generators = []ModelRef{{Provider: ai.Providers[0].Name, Model: "gpt-3.5-turbo"}}
	}
	for _, ref := range append(append([]ModelRef{ai.Embedder}, ai.Generators...), ai.Summarizers...) {
		if !cfg.hasProvider(ref.Provider) {
			return fmt.Errorf("ai provider %q is not defined", ref.Provider)
		}
	}
	if ai.Retry.MaxAttempts == 0 {
		ai.Retry.MaxAttempts = 3
	}
	if ai.Retry.BaseDelayMs == 0 {
		ai.Retry.BaseDelayMs = 500
	}
	if ai.Retry.MaxDelayMs == 0 {
		ai.Retry.MaxDelayMs = 5000
	}
	if ai.Retry.TimeoutSeconds == 0 {
		ai.Retry.TimeoutSeconds = 30
	}
	if ai.MaxInputChars == 0 {
		ai.MaxInputChars = 20000
	}

	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == nil {
		overlap := min(200, cfg.Ingest.ChunkSize/5)
		cfg.Ingest.ChunkOverlap = &overlap
	}
	if *cfg.Ingest.ChunkOverlap < 0 || cfg.Ingest.ChunkSize <= *cfg.Ingest.ChunkOverlap {
		return fmt.Errorf("ingest.chunk_size must be greater than ingest.chunk_overlap")
	}
	if cfg.Ingest.Concurrency <= 0 {
		cfg.Ingest.Concurrency = 1
	}
	if cfg.Ingest.MaxUploadBytes <= 0 {
		cfg.Ingest.MaxUploadBytes = 10 << 20
	}

	if cfg.Search.Backend == "" {
		cfg.Search.Backend = "pgvector"
	}
	if cfg.Search.Backend != "pgvector" && cfg.Search.Backend != "exact" {
		return fmt.Errorf("search.backend must be pgvector or exact")
	}
	if cfg.Search.DefaultTopK <= 0 {
		cfg.Search.DefaultTopK = 5
	}
	if cfg.Search.MaxTopK <= 0 {
		cfg.Search.MaxTopK = 100
	}

	if cfg.Synthesis.MaxContextChars <= 0 {
		cfg.Synthesis.MaxContextChars = 12000
	}
	if cfg.Synthesis.MaxTokens <= 0 {
		cfg.Synthesis.MaxTokens = 512
	}
	if cfg.Synthesis.Temperature == 0 {
		cfg.Synthesis.Temperature = 0.2
	}

	if cfg.Admin.TokenTTLHours == 0 {
		cfg.Admin.TokenTTLHours = 72
	}

	if cfg.Jobs.SummaryCron == "" {
		cfg.Jobs.SummaryCron = "@every 1m"
	}
	if cfg.Jobs.SummaryBatch <= 0 {
		cfg.Jobs.SummaryBatch = 10
	}
	if cfg.Jobs.StaleCron == "" {
		cfg.Jobs.StaleCron = "@every 5m"
	}
	if cfg.Jobs.StaleAfterMinutes <= 0 {
		cfg.Jobs.StaleAfterMinutes = 30
	}
	if cfg.Jobs.CacheCleanupCron == "" {
		cfg.Jobs.CacheCleanupCron = "0 3 * * *"
	}
	if cfg.Jobs.CacheRetentionHours <= 0 {
		cfg.Jobs.CacheRetentionHours = 24 * 30
	}
	return nil
}

func (cfg *Config) hasProvider(name string) bool {
	for _, p := range cfg.AI.Providers {
		if p.Name == name {
			return true
		}
	}
	return false
}
