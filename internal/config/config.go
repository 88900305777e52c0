package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration for the docqa service.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Upload limits
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10MB in bytes

	// Store
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"memory"` // "memory" or "postgres"
	DBURL         string `env:"DB_URL"`

	// Answer cache
	CacheProvider string `env:"CACHE_PROVIDER" envDefault:"none"` // "redis" or "none"
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	CacheTTL      int    `env:"CACHE_TTL" envDefault:"3600"` // seconds

	// Lifecycle events
	EventsProvider string `env:"EVENTS_PROVIDER" envDefault:"none"` // "nats" or "none"
	NATSURL        string `env:"NATS_URL"`

	// LLM & Embeddings
	LLMProvider       string        `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIKey         string        `env:"OPENAI_API_KEY"`
	LLMModel          string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	EmbeddingModel    string        `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDim      int           `env:"EMBEDDING_DIM" envDefault:"1536"`
	EmbedTimeout      time.Duration `env:"EMBED_TIMEOUT" envDefault:"30s"`
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT" envDefault:"60s"`

	// Reranker
	RerankProvider string        `env:"RERANK_PROVIDER" envDefault:"none"` // "http" or "none"
	RerankURL      string        `env:"RERANK_URL"`
	RerankTimeout  time.Duration `env:"RERANK_TIMEOUT" envDefault:"15s"`

	// Chunking (measured in runes)
	ChunkSize    int `env:"CHUNK_SIZE" envDefault:"400"`
	ChunkOverlap int `env:"CHUNK_OVERLAP" envDefault:"100"`

	// Retrieval
	SearchK        int `env:"SEARCH_K" envDefault:"30"`         // initial candidates from vector search
	FinalK         int `env:"FINAL_K" envDefault:"15"`          // max chunks after rerank
	NeighborWindow int `env:"NEIGHBOR_WINDOW" envDefault:"2"`   // adjacent chunks fetched per hit
	ContextBudget  int `env:"CONTEXT_BUDGET" envDefault:"3000"` // token budget for the context block

	// Ingestion
	EmbedConcurrency int `env:"EMBED_CONCURRENCY" envDefault:"4"`
}

// Load reads configuration from environment variables with defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that would break pipeline invariants.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.SearchK <= 0 || c.FinalK <= 0 {
		return fmt.Errorf("SEARCH_K and FINAL_K must be positive")
	}
	if c.NeighborWindow < 0 {
		return fmt.Errorf("NEIGHBOR_WINDOW must not be negative, got %d", c.NeighborWindow)
	}
	if c.ContextBudget <= 0 {
		return fmt.Errorf("CONTEXT_BUDGET must be positive, got %d", c.ContextBudget)
	}
	if c.EmbedConcurrency <= 0 {
		return fmt.Errorf("EMBED_CONCURRENCY must be positive, got %d", c.EmbedConcurrency)
	}
	return nil
}
