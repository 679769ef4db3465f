package domain

import "context"

// Language is a supported corpus language tag.
type Language string

const (
	English Language = "english"
	Bangla  Language = "bangla"
)

// Languages lists every supported language in a stable order.
var Languages = []Language{English, Bangla}

// ParseLanguage maps a tag or ISO 639-1 code onto a supported language.
func ParseLanguage(s string) (Language, bool) {
	switch s {
	case "english", "English", "en", "EN":
		return English, true
	case "bangla", "Bangla", "bengali", "Bengali", "bn", "BN":
		return Bangla, true
	}
	return "", false
}

// Document is raw extracted text with its language and source.
type Document struct {
	Source   string
	Language Language
	Content  string
}

// Chunk is a contiguous segment of a source document.
// Index is the chunk's position within its source (or corpus, once merged).
type Chunk struct {
	Source string `json:"source"`
	Index  int    `json:"index"`
	Text   string `json:"text"`
}

// Vector is a fixed-length embedding.
type Vector []float32

// Result is one ranked retrieval hit. When NoMatch is set the result is the
// sentinel returned for queries with no usable neighbours.
type Result struct {
	Text     string  `json:"text"`
	Source   string  `json:"source,omitempty"`
	Position int     `json:"position"`
	Distance float64 `json:"distance"`
	NoMatch  bool    `json:"no_match,omitempty"`
}

// NoRelevantText is the text of the sentinel result.
const NoRelevantText = "No relevant text found."

// NoMatchResult returns the sentinel result.
func NoMatchResult() Result {
	return Result{Text: NoRelevantText, Position: -1, NoMatch: true}
}

// Embedder converts text into vectors through an external provider.
// Output order matches input order and every vector in a call has the same
// dimensionality.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([]Vector, error)
	EmbedOne(ctx context.Context, text string) (Vector, error)
	Dimension() int
	ModelName() string
}

// LanguageDetector reports an ISO 639-1 code for a piece of text.
// ok is false when the language cannot be determined.
type LanguageDetector interface {
	Detect(text string) (code string, ok bool)
}

// Generator produces a natural-language answer from retrieved context.
type Generator interface {
	Generate(ctx context.Context, question string, lang Language, contexts []string) (string, error)
}
