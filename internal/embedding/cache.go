package embedding

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"bilingual-rag/internal/domain"
)

// NewCachedEmbedder wraps e with an expiring LRU keyed by text. It returns e
// unchanged when size or ttl is not positive.
func NewCachedEmbedder(e domain.Embedder, size int, ttl time.Duration, logger *zap.Logger) domain.Embedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedEmbedder{
		next:   e,
		cache:  expirable.NewLRU[string, domain.Vector](size, nil, ttl),
		logger: logger,
	}
}

type cachedEmbedder struct {
	next   domain.Embedder
	cache  *expirable.LRU[string, domain.Vector]
	logger *zap.Logger
}

func (c *cachedEmbedder) ModelName() string { return c.next.ModelName() }

func (c *cachedEmbedder) Dimension() int { return c.next.Dimension() }

func (c *cachedEmbedder) EmbedOne(ctx context.Context, text string) (domain.Vector, error) {
	if cached, ok := c.cache.Get(text); ok {
		c.logger.Debug("embedding cache hit")
		return clone(cached), nil
	}
	v, err := c.next.EmbedOne(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, clone(v))
	return v, nil
}

// EmbedMany serves hits from the cache and embeds the misses in one call.
func (c *cachedEmbedder) EmbedMany(ctx context.Context, texts []string) ([]domain.Vector, error) {
	out := make([]domain.Vector, len(texts))
	var missing []string
	var slots []int
	for i, t := range texts {
		if cached, ok := c.cache.Get(t); ok {
			out[i] = clone(cached)
			continue
		}
		missing = append(missing, t)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vecs, err := c.next.EmbedMany(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, v := range vecs {
		out[slots[j]] = v
		c.cache.Add(missing[j], clone(v))
	}
	return out, nil
}

func clone(v domain.Vector) domain.Vector {
	if len(v) == 0 {
		return nil
	}
	c := make(domain.Vector, len(v))
	copy(c, v)
	return c
}
