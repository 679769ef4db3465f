package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilingual-rag/internal/chunker"
	"bilingual-rag/internal/domain"
	"bilingual-rag/internal/embedding"
	"bilingual-rag/internal/embedding/hashing"
	"bilingual-rag/internal/language"
	"bilingual-rag/internal/retriever"
	"bilingual-rag/internal/vectorstore"
	"bilingual-rag/internal/vectorstore/flat"
)

type countingGenerator struct {
	calls    int
	contexts []string
}

func (g *countingGenerator) Generate(_ context.Context, _ string, _ domain.Language, contexts []string) (string, error) {
	g.calls++
	g.contexts = contexts
	return "generated", nil
}

type env struct {
	pipeline  *Pipeline
	store     *vectorstore.Store
	generator *countingGenerator
	extracted string
	chunked   string
}

func newEnv(t *testing.T) env {
	t.Helper()
	root := t.TempDir()
	e := env{extracted: filepath.Join(root, "extracted"), chunked: filepath.Join(root, "chunked"), generator: &countingGenerator{}}
	require.NoError(t, os.MkdirAll(e.extracted, 0o755))

	h, err := hashing.NewEmbedder(128)
	require.NoError(t, err)
	gw, err := embedding.NewGateway(h, embedding.GatewayConfig{BatchSize: 4}, nil)
	require.NoError(t, err)
	e.store, err = vectorstore.NewStore(filepath.Join(root, "vectors"), gw, nil)
	require.NoError(t, err)
	router, err := language.NewRouter(language.ScriptDetector{}, nil)
	require.NoError(t, err)
	r, err := retriever.New(router, e.store, gw, nil)
	require.NoError(t, err)
	c, err := chunker.New(120, 20)
	require.NoError(t, err)

	e.pipeline = NewPipeline(Deps{
		Chunker:   c,
		Store:     e.store,
		Retriever: r,
		Generator: e.generator,
		Corpora: map[domain.Language][]string{
			domain.English: {"textbook_english_chunks.txt", "teachers_guide_english_chunks.txt"},
			domain.Bangla:  {"textbook_bangla_chunks.txt"},
		},
		ChunkedDir: e.chunked,
	})
	return e
}

func (e env) writeText(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.extracted, name), []byte(content), 0o644))
}

func TestPipeline_EndToEnd(t *testing.T) {
	e := newEnv(t)
	e.writeText(t, "textbook_english.txt",
		"Photosynthesis happens in green leaves. Plants use sunlight to make food. "+
			"Chlorophyll gives leaves their colour. Roots absorb water from the soil.")
	e.writeText(t, "teachers_guide_english.txt",
		"Ask students to observe a leaf under sunlight. Discuss why roots need water.")

	written, err := e.pipeline.ChunkDir(context.Background(), e.extracted, e.chunked)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(e.chunked, "teachers_guide_english_chunks.txt"),
		filepath.Join(e.chunked, "textbook_english_chunks.txt"),
	}, written)

	built, err := e.pipeline.BuildAll(context.Background(), false)
	require.NoError(t, err)
	require.Contains(t, built, domain.English)
	assert.NotContains(t, built, domain.Bangla, "bangla has no chunk files")

	h := built[domain.English]
	assert.Equal(t, h.Index.Len(), h.Len())
	for i, c := range h.Corpus {
		assert.Equal(t, i, c.Index)
	}
	assert.Equal(t, "textbook_english_chunks.txt", h.Corpus[0].Source)
	assert.Equal(t, "teachers_guide_english_chunks.txt", h.Corpus[h.Len()-1].Source)

	again, err := e.pipeline.BuildAll(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, again)

	ans, err := e.pipeline.Answer(context.Background(), "Why do roots need water?", retriever.Options{TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, "generated", ans.Text)
	assert.Equal(t, domain.English, ans.Language)
	assert.Len(t, ans.Results, 2)
	assert.Len(t, e.generator.contexts, 2)

	_, err = e.pipeline.Answer(context.Background(), "শিকড় কেন পানি শোষণ করে?", retriever.Options{TopK: 2})
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
}

func TestPipeline_ChunkDirEmpty(t *testing.T) {
	e := newEnv(t)
	_, err := e.pipeline.ChunkDir(context.Background(), e.extracted, e.chunked)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPipeline_LoadCorpusRenumbers(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, chunker.WriteFile(filepath.Join(e.chunked, "a_chunks.txt"), []string{"one.", "two."}))
	require.NoError(t, chunker.WriteFile(filepath.Join(e.chunked, "b_chunks.txt"), []string{"three."}))

	corpus, err := e.pipeline.LoadCorpus([]string{"a_chunks.txt", "missing_chunks.txt", "b_chunks.txt"})
	require.NoError(t, err)
	require.Len(t, corpus, 3)
	assert.Equal(t, domain.Chunk{Source: "b_chunks.txt", Index: 2, Text: "three."}, corpus[2])
}

type staticSource struct{ h *vectorstore.Handle }

func (s staticSource) Open(context.Context, domain.Language) (*vectorstore.Handle, error) {
	return s.h, nil
}

func TestPipeline_AnswerSentinelSkipsGenerator(t *testing.T) {
	idx, err := flat.New(128)
	require.NoError(t, err)
	h, err := hashing.NewEmbedder(128)
	require.NoError(t, err)
	gw, err := embedding.NewGateway(h, embedding.GatewayConfig{}, nil)
	require.NoError(t, err)
	router, err := language.NewRouter(language.ScriptDetector{}, nil)
	require.NoError(t, err)
	r, err := retriever.New(router, staticSource{&vectorstore.Handle{Language: domain.English, Index: idx}}, gw, nil)
	require.NoError(t, err)

	gen := &countingGenerator{}
	p := NewPipeline(Deps{Retriever: r, Generator: gen})
	ans, err := p.Answer(context.Background(), "anything at all?", retriever.Options{TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.NoRelevantText, ans.Text)
	assert.True(t, ans.Results[0].NoMatch)
	assert.Zero(t, gen.calls)
}
