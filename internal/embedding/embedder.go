package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bilingual-rag/internal/domain"
)

// Provider is a raw embedding backend. Implementations talk to a model and
// return one vector per input text in input order.
type Provider interface {
	Name() string
	ModelName() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// GatewayConfig controls how a Gateway calls its provider.
type GatewayConfig struct {
	// Timeout bounds every provider call. Zero means no extra deadline.
	Timeout time.Duration
	// BatchSize is the maximum number of texts per provider call.
	BatchSize int
	// RequestsPerSecond and Burst configure the token bucket. Zero disables it.
	RequestsPerSecond float64
	Burst             int
	// Dimension pins the expected vector length. Zero learns it from the
	// first successful call.
	Dimension int
}

const defaultBatchSize = 64

// Gateway turns a Provider into a domain.Embedder with timeouts, batching,
// rate limiting and output validation.
type Gateway struct {
	provider Provider
	cfg      GatewayConfig
	limiter  *rate.Limiter
	logger   *zap.Logger

	mu  sync.RWMutex
	dim int
}

// NewGateway wraps provider. A nil logger is replaced by a no-op logger.
func NewGateway(provider Provider, cfg GatewayConfig, logger *zap.Logger) (*Gateway, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: embedding provider is required", domain.ErrConfiguration)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Timeout < 0 || cfg.Dimension < 0 || cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("%w: negative embedding gateway setting", domain.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With(zap.String("provider", provider.Name()), zap.String("model", provider.ModelName())),
		dim:      cfg.Dimension,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return g, nil
}

// ModelName identifies the model behind the provider.
func (g *Gateway) ModelName() string { return g.provider.ModelName() }

// Dimension returns the vector length, or zero before the first call when
// no dimension was configured.
func (g *Gateway) Dimension() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dim
}

// EmbedOne embeds a single text.
func (g *Gateway) EmbedOne(ctx context.Context, text string) (domain.Vector, error) {
	vecs, err := g.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany embeds texts in batches and returns one vector per text.
func (g *Gateway) EmbedMany(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([]domain.Vector, 0, len(texts))
	for start := 0; start < len(texts); start += g.cfg.BatchSize {
		end := min(start+g.cfg.BatchSize, len(texts))
		vecs, err := g.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (g *Gateway) embedBatch(ctx context.Context, batch []string) ([]domain.Vector, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %w", domain.ErrEmbeddingService, err)
		}
	}

	callCtx := ctx
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	started := time.Now()
	raw, err := g.provider.Embed(callCtx, batch)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			g.logger.Warn("embedding call timed out", zap.Int("batch", len(batch)), zap.Duration("timeout", g.cfg.Timeout))
			return nil, fmt.Errorf("%w: timed out after %s", domain.ErrEmbeddingService, g.cfg.Timeout)
		}
		if errors.Is(err, domain.ErrEmbeddingService) || errors.Is(err, domain.ErrConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
	}

	vecs, err := g.validate(batch, raw)
	if err != nil {
		g.logger.Warn("embedding provider returned malformed output", zap.Error(err))
		return nil, err
	}
	g.logger.Debug("embedded batch",
		zap.Int("batch", len(batch)),
		zap.Int("dimension", len(vecs[0])),
		zap.Duration("elapsed", time.Since(started)))
	return vecs, nil
}

func (g *Gateway) validate(batch []string, raw [][]float32) ([]domain.Vector, error) {
	if len(raw) != len(batch) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", domain.ErrEmbeddingService, len(batch), len(raw))
	}
	dim := len(raw[0])
	vecs := make([]domain.Vector, len(raw))
	for i, v := range raw {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty vector at %d", domain.ErrEmbeddingService, i)
		}
		if len(v) != dim {
			return nil, fmt.Errorf("%w: mixed dimensions %d and %d", domain.ErrEmbeddingService, dim, len(v))
		}
		for _, x := range v {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return nil, fmt.Errorf("%w: non-finite value in vector %d", domain.ErrEmbeddingService, i)
			}
		}
		vecs[i] = domain.Vector(v)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dim == 0 {
		g.dim = dim
	} else if g.dim != dim {
		return nil, fmt.Errorf("%w: expected dimension %d, got %d", domain.ErrEmbeddingService, g.dim, dim)
	}
	return vecs, nil
}
