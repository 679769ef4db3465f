// Package language maps queries onto the corpus language that should answer them.
package language

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"bilingual-rag/internal/domain"
)

// codes maps detector output onto corpus languages. Anything else is unsupported.
var codes = map[string]domain.Language{
	"en": domain.English,
	"bn": domain.Bangla,
}

// Router selects a corpus language for a query.
type Router struct {
	detector domain.LanguageDetector
	logger   *zap.Logger
}

// NewRouter returns a Router backed by detector.
func NewRouter(detector domain.LanguageDetector, logger *zap.Logger) (*Router, error) {
	if detector == nil {
		return nil, fmt.Errorf("%w: language detector is required", domain.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{detector: detector, logger: logger}, nil
}

// Route detects the language of query. Languages without a corpus, and text
// whose language cannot be determined, yield *domain.UnsupportedLanguageError.
func (r *Router) Route(query string) (domain.Language, error) {
	code, ok := r.detector.Detect(query)
	if !ok {
		r.logger.Debug("language not detected")
		return "", &domain.UnsupportedLanguageError{}
	}
	code = strings.ToLower(code)
	lang, ok := codes[code]
	if !ok {
		r.logger.Debug("unsupported query language", zap.String("detected", code))
		return "", &domain.UnsupportedLanguageError{Detected: code}
	}
	return lang, nil
}

// Resolve honours a caller hint when given and falls back to detection.
func (r *Router) Resolve(query, hint string) (domain.Language, error) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return r.Route(query)
	}
	lang, ok := domain.ParseLanguage(hint)
	if !ok {
		return "", &domain.UnsupportedLanguageError{Detected: hint}
	}
	return lang, nil
}
