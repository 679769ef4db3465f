package domain

import (
	"errors"
	"fmt"
)

// Pipeline errors. Callers branch on these with errors.Is, never on text.
var (
	// ErrConfiguration covers missing credentials and invalid parameters.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidInput indicates a malformed request argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingService indicates the embedding provider was unreachable,
	// rate limited, timed out or returned malformed output.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrGenerationService indicates the answer generator failed.
	ErrGenerationService = errors.New("generation service error")

	// ErrIndexNotFound indicates a persisted index or corpus is missing.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexCorrupt indicates the index and corpus disagree or are unreadable.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrIndexExists is returned when a build would overwrite an index
	// without an explicit rebuild request.
	ErrIndexExists = errors.New("index already exists")

	// ErrUnsupportedLanguage indicates a query in a language with no corpus.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// UnsupportedLanguageError carries the detected language code.
type UnsupportedLanguageError struct {
	Detected string
}

func (e *UnsupportedLanguageError) Error() string {
	if e.Detected == "" {
		return "unsupported language: could not detect language; only english and bangla are supported"
	}
	return fmt.Sprintf("unsupported language %q: only english and bangla are supported", e.Detected)
}

// Is makes errors.Is(err, ErrUnsupportedLanguage) hold.
func (e *UnsupportedLanguageError) Is(target error) bool {
	return target == ErrUnsupportedLanguage
}

// ErrorKind is a stable tag for an error class.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindConfiguration       ErrorKind = "configuration"
	KindInvalidInput        ErrorKind = "invalid_input"
	KindEmbeddingService    ErrorKind = "embedding_service"
	KindGenerationService   ErrorKind = "generation_service"
	KindIndexNotFound       ErrorKind = "index_not_found"
	KindIndexCorrupt        ErrorKind = "index_corrupt"
	KindIndexExists         ErrorKind = "index_exists"
	KindUnsupportedLanguage ErrorKind = "unsupported_language"
	KindInternal            ErrorKind = "internal"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrUnsupportedLanguage, KindUnsupportedLanguage},
	{ErrInvalidInput, KindInvalidInput},
	{ErrConfiguration, KindConfiguration},
	{ErrIndexNotFound, KindIndexNotFound},
	{ErrIndexCorrupt, KindIndexCorrupt},
	{ErrIndexExists, KindIndexExists},
	{ErrEmbeddingService, KindEmbeddingService},
	{ErrGenerationService, KindGenerationService},
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
