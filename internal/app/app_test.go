package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilingual-rag/internal/answer"
	"bilingual-rag/internal/chunker"
	"bilingual-rag/internal/config"
	"bilingual-rag/internal/domain"
	"bilingual-rag/internal/embedding"
	"bilingual-rag/internal/language"
	"bilingual-rag/internal/retriever"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedder:
  type: hashing
  hashing:
    dimension: 64
  cache:
    size: 16
detector:
  type: script
generator:
  type: extractive
  max_sentences: 1
paths:
  chunked_dir: `+filepath.Join(root, "chunked")+`
  vector_dir: `+filepath.Join(root, "vectors")+`
corpora:
  english: [textbook_english_chunks.txt]
  bangla: [textbook_bangla_chunks.txt]
`), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestNew_BuildsAndAnswers(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, chunker.WriteFile(filepath.Join(cfg.Paths.ChunkedDir, "textbook_english_chunks.txt"), []string{
		"Rivers carry water to the sea.",
		"The national flower is the water lily.",
	}))
	require.NoError(t, chunker.WriteFile(filepath.Join(cfg.Paths.ChunkedDir, "textbook_bangla_chunks.txt"), []string{
		"জাতীয় ফুল শাপলা।",
		"নদী সাগরে পানি বয়ে নিয়ে যায়।",
	}))

	a, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 64, a.Embedder.Dimension())
	assert.Equal(t, 64, a.QueryEmbedder.Dimension())

	built, err := a.Pipeline.BuildAll(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, built, 2)

	ans, err := a.Pipeline.Answer(context.Background(), "What is the national flower?", retriever.Options{TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.English, ans.Language)
	assert.Equal(t, "The national flower is the water lily.", ans.Text)

	ans, err = a.Pipeline.Answer(context.Background(), "জাতীয় ফুল কী?", retriever.Options{TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.Bangla, ans.Language)
	assert.Equal(t, "জাতীয় ফুল শাপলা।", ans.Results[0].Text)
}

func TestNew_CachesQueryEmbeddingsOnly(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, nil)
	require.NoError(t, err)

	assert.IsType(t, &embedding.Gateway{}, a.Embedder, "index builds embed through the uncached gateway")
	_, uncached := a.QueryEmbedder.(*embedding.Gateway)
	assert.False(t, uncached, "retrieval embeds through the query cache")

	cfg.Embedder.Cache.Size = 0
	b, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Same(t, b.Embedder, b.QueryEmbedder)
}

func TestNewEmbedder_UnknownType(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedder.Type = "word2vec"
	_, err := NewEmbedder(cfg, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNewEmbedder_OpenAIMissingKey(t *testing.T) {
	t.Setenv("TEST_APP_OPENAI_KEY", "")
	cfg := testConfig(t)
	cfg.Embedder.Type = "openai"
	cfg.Embedder.OpenAI = &config.OpenAIEmbedderConfig{APIKeyEnv: "TEST_APP_OPENAI_KEY"}
	_, err := NewEmbedder(cfg, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNewDetector(t *testing.T) {
	d, err := NewDetector(config.DetectorConfig{Type: "script"})
	require.NoError(t, err)
	assert.IsType(t, language.ScriptDetector{}, d)

	d, err = NewDetector(config.DetectorConfig{Type: "lingua"})
	require.NoError(t, err)
	assert.IsType(t, &language.LinguaDetector{}, d)

	_, err = NewDetector(config.DetectorConfig{Type: "langdetect"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNewGenerator(t *testing.T) {
	g, err := NewGenerator(config.GeneratorConfig{Type: "extractive"})
	require.NoError(t, err)
	assert.IsType(t, &answer.Extractive{}, g)

	t.Setenv("TEST_APP_CHAT_KEY", "k")
	g, err = NewGenerator(config.GeneratorConfig{Type: "openai", APIKeyEnv: "TEST_APP_CHAT_KEY"})
	require.NoError(t, err)
	assert.IsType(t, &answer.OpenAIChat{}, g)

	_, err = NewGenerator(config.GeneratorConfig{Type: "llama"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
