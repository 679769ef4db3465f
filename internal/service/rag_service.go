// Package service runs the offline pipeline steps and answers questions on
// top of the retriever.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"bilingual-rag/internal/chunker"
	"bilingual-rag/internal/domain"
	"bilingual-rag/internal/retriever"
	"bilingual-rag/internal/vectorstore"
)

// Pipeline ties the chunker, the index store, the retriever and the answer
// generator together.
type Pipeline struct {
	chunker    *chunker.Chunker
	store      *vectorstore.Store
	retriever  *retriever.Retriever
	generator  domain.Generator
	corpora    map[domain.Language][]string
	chunkedDir string
	logger     *zap.Logger
}

// Deps holds the Pipeline collaborators.
type Deps struct {
	Chunker   *chunker.Chunker
	Store     *vectorstore.Store
	Retriever *retriever.Retriever
	Generator domain.Generator
	// Corpora lists the chunk files per language, relative to ChunkedDir.
	Corpora    map[domain.Language][]string
	ChunkedDir string
	Logger     *zap.Logger
}

// NewPipeline returns a Pipeline. Collaborators a step does not use may be nil.
func NewPipeline(d Deps) *Pipeline {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		chunker:    d.Chunker,
		store:      d.Store,
		retriever:  d.Retriever,
		generator:  d.Generator,
		corpora:    d.Corpora,
		chunkedDir: d.ChunkedDir,
		logger:     logger,
	}
}

// ChunkFile chunks one text file into outDir and returns the chunk file path
// and the number of chunks written.
func (p *Pipeline) ChunkFile(ctx context.Context, textPath, outDir string) (string, int, error) {
	if p.chunker == nil {
		return "", 0, fmt.Errorf("%w: no chunker configured", domain.ErrConfiguration)
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	data, err := os.ReadFile(textPath)
	if err != nil {
		return "", 0, fmt.Errorf("read %s: %w", textPath, err)
	}
	chunks, err := chunker.Chunk(string(data), p.chunker.MaxLength(), p.chunker.OverlapLength())
	if err != nil {
		return "", 0, err
	}
	out := filepath.Join(outDir, chunker.ChunkFileName(filepath.Base(textPath)))
	if err := chunker.WriteFile(out, chunks); err != nil {
		return "", 0, err
	}
	return out, len(chunks), nil
}

// ChunkDir chunks every .txt file in inDir into outDir in name order.
func (p *Pipeline) ChunkDir(ctx context.Context, inDir, outDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(inDir, "*.txt"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	var written []string
	for _, m := range matches {
		if strings.HasSuffix(m, chunker.ChunkFileSuffix) {
			continue
		}
		out, n, err := p.ChunkFile(ctx, m, outDir)
		if err != nil {
			return written, err
		}
		if n == 0 {
			p.logger.Warn("text file produced no chunks", zap.String("file", m))
		}
		p.logger.Info("chunked text file", zap.String("file", m), zap.String("out", out), zap.Int("chunks", n))
		written = append(written, out)
	}
	if len(written) == 0 {
		return nil, fmt.Errorf("%w: no .txt documents found in %s", domain.ErrInvalidInput, inDir)
	}
	return written, nil
}

// LoadCorpus concatenates the chunk files in order and renumbers the chunks
// by corpus position. Missing files are skipped with a warning.
func (p *Pipeline) LoadCorpus(files []string) ([]domain.Chunk, error) {
	var corpus []domain.Chunk
	for _, f := range files {
		path := f
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.chunkedDir, f)
		}
		chunks, err := chunker.ReadFile(path, filepath.Base(path))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				p.logger.Warn("chunk file not found, skipping", zap.String("file", path))
				continue
			}
			return nil, err
		}
		for _, c := range chunks {
			c.Index = len(corpus)
			corpus = append(corpus, c)
		}
	}
	return corpus, nil
}

// BuildCorpus builds the index for lang from the given chunk files.
func (p *Pipeline) BuildCorpus(ctx context.Context, lang domain.Language, files []string, rebuild bool) (*vectorstore.Handle, error) {
	if p.store == nil {
		return nil, fmt.Errorf("%w: no vector store configured", domain.ErrConfiguration)
	}
	corpus, err := p.LoadCorpus(files)
	if err != nil {
		return nil, err
	}
	return p.store.Build(ctx, lang, corpus, vectorstore.BuildOptions{Rebuild: rebuild})
}

// BuildAll builds every configured language. Languages without chunk files
// are skipped, as are existing indexes unless rebuild is set.
func (p *Pipeline) BuildAll(ctx context.Context, rebuild bool) (map[domain.Language]*vectorstore.Handle, error) {
	built := make(map[domain.Language]*vectorstore.Handle)
	var errs []error
	for _, lang := range domain.Languages {
		files := p.corpora[lang]
		if len(files) == 0 {
			p.logger.Info("no corpus configured", zap.String("language", string(lang)))
			continue
		}
		h, err := p.BuildCorpus(ctx, lang, files, rebuild)
		switch {
		case err == nil:
			built[lang] = h
		case errors.Is(err, domain.ErrIndexExists):
			p.logger.Info("index already built, skipping", zap.String("language", string(lang)))
		case errors.Is(err, domain.ErrInvalidInput):
			p.logger.Warn("no chunks found for language", zap.String("language", string(lang)), zap.Error(err))
		default:
			errs = append(errs, fmt.Errorf("%s: %w", lang, err))
		}
	}
	return built, errors.Join(errs...)
}

// Retrieve delegates to the retriever.
func (p *Pipeline) Retrieve(ctx context.Context, query string, opts retriever.Options) (retriever.Response, error) {
	if p.retriever == nil {
		return retriever.Response{}, fmt.Errorf("%w: no retriever configured", domain.ErrConfiguration)
	}
	return p.retriever.Retrieve(ctx, query, opts)
}

// Answer is a generated reply with the passages it was based on.
type Answer struct {
	Text     string          `json:"response"`
	Language domain.Language `json:"language"`
	Results  []domain.Result `json:"results"`
}

// Answer retrieves passages for question and asks the generator to answer
// from them. When nothing relevant is found the generator is not called.
func (p *Pipeline) Answer(ctx context.Context, question string, opts retriever.Options) (Answer, error) {
	resp, err := p.Retrieve(ctx, question, opts)
	if err != nil {
		return Answer{}, err
	}
	out := Answer{Language: resp.Language, Results: resp.Results}
	contexts := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if !r.NoMatch {
			contexts = append(contexts, r.Text)
		}
	}
	if len(contexts) == 0 {
		out.Text = domain.NoRelevantText
		return out, nil
	}
	if p.generator == nil {
		return Answer{}, fmt.Errorf("%w: no answer generator configured", domain.ErrConfiguration)
	}
	text, err := p.generator.Generate(ctx, question, resp.Language, contexts)
	if err != nil {
		return Answer{}, err
	}
	out.Text = text
	return out, nil
}
