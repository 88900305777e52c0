package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"

	"docqa/internal/answer"
	"docqa/internal/cache"
	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/corpus"
	"docqa/internal/embeddings"
	"docqa/internal/events"
	"docqa/internal/extract"
	"docqa/internal/llm"
	"docqa/internal/logger"
	"docqa/internal/rerank"
	"docqa/internal/retrieval"
	"docqa/internal/store"
)

// Deps bundles the runtime dependencies of the server.
type Deps struct {
	Config       config.Config
	Log          *slog.Logger
	Corpus       *corpus.Corpus
	Retriever    *retrieval.Retriever
	Orchestrator *answer.Orchestrator
	Cache        cache.Cache
	Events       events.Publisher
}

// Build loads env, config, and wires the full pipeline.
func Build() (Deps, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Deps{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return Deps{}, err
	}
	log := logger.New(cfg.LogLevel)

	st, err := buildStore(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	embedder, err := buildEmbedder(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	llmClient, err := buildLLM(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	reranker, err := buildReranker(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize reranker: %w", err)
	}
	answerCache, err := buildCache(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}
	publisher, err := buildEvents(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize events: %w", err)
	}

	corp := corpus.New(log, st, extract.NewPDFExtractor(), embedder, corpus.Options{
		Chunk: chunker.Options{
			Size:    cfg.ChunkSize,
			Overlap: cfg.ChunkOverlap,
		},
		EmbedConcurrency: cfg.EmbedConcurrency,
	})
	retriever := retrieval.New(log, corp, embedder, reranker, retrieval.Options{
		SearchK:        cfg.SearchK,
		FinalK:         cfg.FinalK,
		NeighborWindow: cfg.NeighborWindow,
		ContextBudget:  cfg.ContextBudget,
	})
	orchestrator := answer.New(log, retriever, llmClient)

	return Deps{
		Config:       cfg,
		Log:          log,
		Corpus:       corp,
		Retriever:    retriever,
		Orchestrator: orchestrator,
		Cache:        answerCache,
		Events:       publisher,
	}, nil
}

// Close releases every dependency that holds a connection.
func (d Deps) Close() {
	if d.Corpus != nil {
		if err := d.Corpus.Close(); err != nil {
			d.Log.Warn("corpus close failed", "err", err)
		}
	}
	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil {
			d.Log.Warn("cache close failed", "err", err)
		}
	}
	if d.Events != nil {
		if err := d.Events.Close(); err != nil {
			d.Log.Warn("events close failed", "err", err)
		}
	}
}

func buildStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
		}
		db, err := store.NewPostgres(cfg.DBURL, cfg.EmbeddingDim)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres store")
		return db, nil
	case "memory":
		st, err := store.NewMemory(cfg.EmbeddingDim)
		if err != nil {
			return nil, err
		}
		log.Info("using in-memory store")
		return st, nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid options: memory, postgres)", cfg.StoreProvider)
	}
}

func buildEmbedder(cfg config.Config, log *slog.Logger) (embeddings.Embedder, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		embedder, err := embeddings.NewOpenAIEmbedder(cfg.OpenAIKey, openai.EmbeddingModel(cfg.EmbeddingModel), cfg.EmbedTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI embedder: %w", err)
		}
		log.Info("using OpenAI embedder", "model", cfg.EmbeddingModel)
		return embedder, nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid option: openai)", cfg.LLMProvider)
	}
}

func buildLLM(cfg config.Config, log *slog.Logger) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		client, err := llm.NewOpenAIClient(cfg.OpenAIKey, openai.ChatModel(cfg.LLMModel), cfg.GenerationTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		log.Info("using OpenAI LLM client", "model", cfg.LLMModel)
		return client, nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid option: openai)", cfg.LLMProvider)
	}
}

func buildReranker(cfg config.Config, log *slog.Logger) (rerank.Reranker, error) {
	switch cfg.RerankProvider {
	case "http":
		if cfg.RerankURL == "" {
			return nil, fmt.Errorf("RERANK_URL is required when RERANK_PROVIDER=http")
		}
		r, err := rerank.NewHTTP(cfg.RerankURL, cfg.RerankTimeout)
		if err != nil {
			return nil, err
		}
		log.Info("using HTTP reranker", "url", cfg.RerankURL)
		return r, nil
	case "none":
		return rerank.NewNoop(), nil
	default:
		return nil, fmt.Errorf("invalid RERANK_PROVIDER: %s (valid options: http, none)", cfg.RerankProvider)
	}
}

func buildCache(cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "redis":
		c, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		log.Info("using Redis answer cache", "addr", cfg.RedisAddr)
		return c, nil
	case "none":
		return cache.NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: redis, none)", cfg.CacheProvider)
	}
}

func buildEvents(cfg config.Config, log *slog.Logger) (events.Publisher, error) {
	switch cfg.EventsProvider {
	case "nats":
		if cfg.NATSURL == "" {
			return nil, fmt.Errorf("NATS_URL is required when EVENTS_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("publishing corpus events to NATS")
		return events.NewNATS(log, nc), nil
	case "none":
		return events.NewNoOpPublisher(), nil
	default:
		return nil, fmt.Errorf("invalid EVENTS_PROVIDER: %s (valid options: nats, none)", cfg.EventsProvider)
	}
}
