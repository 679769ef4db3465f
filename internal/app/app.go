// Package app assembles the components selected by the configuration.
package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"bilingual-rag/internal/answer"
	"bilingual-rag/internal/chunker"
	"bilingual-rag/internal/config"
	"bilingual-rag/internal/domain"
	"bilingual-rag/internal/embedding"
	"bilingual-rag/internal/embedding/hashing"
	"bilingual-rag/internal/embedding/openai"
	"bilingual-rag/internal/language"
	"bilingual-rag/internal/retriever"
	"bilingual-rag/internal/service"
	"bilingual-rag/internal/vectorstore"
)

// App holds the wired components for one process.
type App struct {
	Config        *config.AppConfig
	Logger        *zap.Logger
	// Embedder feeds index builds. QueryEmbedder wraps it with the query
	// cache and feeds retrieval only.
	Embedder      domain.Embedder
	QueryEmbedder domain.Embedder
	Chunker       *chunker.Chunker
	Store         *vectorstore.Store
	Retriever     *retriever.Retriever
	Pipeline      *service.Pipeline
}

// New wires every component needed to build indexes and answer questions.
func New(cfg *config.AppConfig, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a, err := NewIndexer(cfg, logger)
	if err != nil {
		return nil, err
	}
	detector, err := NewDetector(cfg.Detector)
	if err != nil {
		return nil, err
	}
	router, err := language.NewRouter(detector, logger.Named("router"))
	if err != nil {
		return nil, err
	}
	a.QueryEmbedder = NewQueryEmbedder(cfg, a.Embedder, logger.Named("embedding"))
	a.Retriever, err = retriever.New(router, a.Store, a.QueryEmbedder, logger.Named("retriever"))
	if err != nil {
		return nil, err
	}
	gen, err := NewGenerator(cfg.Generator)
	if err != nil {
		return nil, err
	}
	a.Pipeline = service.NewPipeline(service.Deps{
		Chunker:    a.Chunker,
		Store:      a.Store,
		Retriever:  a.Retriever,
		Generator:  gen,
		Corpora:    cfg.Corpora,
		ChunkedDir: cfg.Paths.ChunkedDir,
		Logger:     logger.Named("pipeline"),
	})
	return a, nil
}

// NewIndexer wires the embedder and the store only. Building indexes needs
// neither a detector nor a generator.
func NewIndexer(cfg *config.AppConfig, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ch, err := NewChunker(cfg)
	if err != nil {
		return nil, err
	}
	emb, err := NewEmbedder(cfg, logger.Named("embedding"))
	if err != nil {
		return nil, err
	}
	store, err := vectorstore.NewStore(cfg.Paths.VectorDir, emb, logger.Named("store"))
	if err != nil {
		return nil, err
	}
	pipeline := service.NewPipeline(service.Deps{
		Chunker:    ch,
		Store:      store,
		Corpora:    cfg.Corpora,
		ChunkedDir: cfg.Paths.ChunkedDir,
		Logger:     logger.Named("pipeline"),
	})
	return &App{Config: cfg, Logger: logger, Embedder: emb, Chunker: ch, Store: store, Pipeline: pipeline}, nil
}

// NewChunker returns the configured chunker.
func NewChunker(cfg *config.AppConfig) (*chunker.Chunker, error) {
	return chunker.New(cfg.Chunker.MaxLength, cfg.Chunker.OverlapLength)
}

// NewEmbedder builds the provider and wraps it in the gateway.
func NewEmbedder(cfg *config.AppConfig, logger *zap.Logger) (*embedding.Gateway, error) {
	gw := embedding.GatewayConfig{
		Timeout:           cfg.EmbedderTimeout(),
		RequestsPerSecond: cfg.Embedder.RequestsPerSecond,
		Burst:             cfg.Embedder.Burst,
	}
	var provider embedding.Provider
	switch cfg.Embedder.Type {
	case "hashing", "":
		dim := 0
		if cfg.Embedder.Hashing != nil {
			dim = cfg.Embedder.Hashing.Dimension
		}
		h, err := hashing.NewEmbedder(dim)
		if err != nil {
			return nil, err
		}
		gw.Dimension = h.Dimension()
		provider = h
	case "openai":
		oc := cfg.Embedder.OpenAI
		if oc == nil {
			return nil, fmt.Errorf("%w: openai embedder config missing", domain.ErrConfiguration)
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    oc.BaseURL,
			APIKeyEnv:  oc.APIKeyEnv,
			Model:      oc.Model,
			Timeout:    time.Duration(oc.TimeoutSecs) * time.Second,
			MaxRetries: oc.MaxRetries,
			Dimensions: oc.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		gw.BatchSize = oc.BatchSize
		gw.Dimension = oc.Dimensions
		provider = client
	default:
		return nil, fmt.Errorf("%w: unknown embedder: %s", domain.ErrConfiguration, cfg.Embedder.Type)
	}
	return embedding.NewGateway(provider, gw, logger)
}

// NewQueryEmbedder wraps base in the query cache when one is configured.
func NewQueryEmbedder(cfg *config.AppConfig, base domain.Embedder, logger *zap.Logger) domain.Embedder {
	c := cfg.Embedder.Cache
	return embedding.NewCachedEmbedder(base, c.Size, time.Duration(c.TTLSecs)*time.Second, logger)
}

// NewDetector returns the configured language detector.
func NewDetector(cfg config.DetectorConfig) (domain.LanguageDetector, error) {
	switch cfg.Type {
	case "lingua", "":
		return language.NewLinguaDetector(cfg.LowAccuracy), nil
	case "script":
		return language.ScriptDetector{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown detector: %s", domain.ErrConfiguration, cfg.Type)
	}
}

// NewGenerator returns the configured answer generator.
func NewGenerator(cfg config.GeneratorConfig) (domain.Generator, error) {
	switch cfg.Type {
	case "extractive", "":
		return answer.NewExtractive(cfg.MaxSentences), nil
	case "openai":
		return answer.NewOpenAIChat(answer.OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("%w: unknown generator: %s", domain.ErrConfiguration, cfg.Type)
	}
}
