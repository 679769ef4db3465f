// Package retriever answers k-nearest-neighbour queries against the index
// of the query's language.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"bilingual-rag/internal/domain"
	"bilingual-rag/internal/vectorstore"
	"bilingual-rag/internal/vectorstore/flat"
)

// DefaultTopK matches the number of passages handed to the generator.
const DefaultTopK = 2

// IndexSource yields the index handle for a language.
type IndexSource interface {
	Open(ctx context.Context, lang domain.Language) (*vectorstore.Handle, error)
}

// LanguageResolver picks the corpus language for a query and optional hint.
type LanguageResolver interface {
	Resolve(query, hint string) (domain.Language, error)
}

// Options controls a single retrieval.
type Options struct {
	// Language is an optional hint that bypasses detection.
	Language string
	TopK     int
}

// Response carries the routed language with the ranked results.
type Response struct {
	Language domain.Language
	Results  []domain.Result
}

// Retriever embeds queries and searches the matching language index.
type Retriever struct {
	router   LanguageResolver
	indexes  IndexSource
	embedder domain.Embedder
	logger   *zap.Logger
}

// New wires a Retriever.
func New(router LanguageResolver, indexes IndexSource, embedder domain.Embedder, logger *zap.Logger) (*Retriever, error) {
	if router == nil || indexes == nil || embedder == nil {
		return nil, fmt.Errorf("%w: retriever needs a router, an index source and an embedder", domain.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{router: router, indexes: indexes, embedder: embedder, logger: logger}, nil
}

// Retrieve returns up to opts.TopK results by ascending distance. When no
// index position maps to a chunk it returns the single NoMatch sentinel.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) (Response, error) {
	if opts.TopK <= 0 {
		return Response{}, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidInput, opts.TopK)
	}
	if strings.TrimSpace(query) == "" {
		return Response{}, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}

	lang, err := r.router.Resolve(query, opts.Language)
	if err != nil {
		return Response{}, err
	}
	h, err := r.indexes.Open(ctx, lang)
	if err != nil {
		return Response{}, err
	}

	qv, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return Response{}, err
	}

	k := min(opts.TopK, h.Len())
	hits, err := h.Index.Search(ctx, qv, k)
	if err != nil {
		if errors.Is(err, flat.ErrDimensionMismatch) {
			return Response{}, fmt.Errorf("%w: query embedding does not fit the %s index: %w", domain.ErrEmbeddingService, lang, err)
		}
		return Response{}, fmt.Errorf("search %s index: %w", lang, err)
	}

	results := make([]domain.Result, 0, len(hits))
	for _, hit := range hits {
		if hit.Position < 0 || hit.Position >= len(h.Corpus) {
			r.logger.Warn("index position outside corpus",
				zap.String("language", string(lang)),
				zap.Int("position", hit.Position),
				zap.Int("corpus", len(h.Corpus)))
			continue
		}
		c := h.Corpus[hit.Position]
		results = append(results, domain.Result{
			Text:     c.Text,
			Source:   c.Source,
			Position: hit.Position,
			Distance: hit.Distance,
		})
	}
	if len(results) == 0 {
		results = []domain.Result{domain.NoMatchResult()}
	}
	r.logger.Debug("retrieved",
		zap.String("language", string(lang)),
		zap.Int("top_k", opts.TopK),
		zap.Int("results", len(results)))
	return Response{Language: lang, Results: results}, nil
}
