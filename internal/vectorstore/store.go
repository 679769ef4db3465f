// Package vectorstore builds, persists and caches one vector index per
// language together with its aligned chunk corpus.
//
// Layout on disk:
//
//	<root>/<language>/CURRENT              committed build id
//	<root>/<language>/<build id>/index.bin  flat index (see package flat)
//	<root>/<language>/<build id>/corpus.json
//
// A build is written into a staging directory, renamed to its build id and
// then published by atomically replacing CURRENT, so readers always see a
// complete index/corpus pair.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bilingual-rag/internal/domain"
	"bilingual-rag/internal/fsutil"
	"bilingual-rag/internal/vectorstore/flat"
)

const (
	indexFile     = "index.bin"
	corpusFile    = "corpus.json"
	currentFile   = "CURRENT"
	corpusVersion = 1
)

// Handle is a loaded index with its aligned corpus. Position i of Index
// corresponds to Corpus[i].
type Handle struct {
	Language  domain.Language
	BuildID   string
	Model     string
	CreatedAt time.Time
	Index     *flat.Index
	Corpus    []domain.Chunk
}

// Len returns the corpus size.
func (h *Handle) Len() int { return len(h.Corpus) }

// BuildOptions controls Build and Save.
type BuildOptions struct {
	// Rebuild allows replacing an existing index.
	Rebuild bool
}

type corpusDoc struct {
	Version   int             `json:"version"`
	BuildID   string          `json:"build_id"`
	Language  domain.Language `json:"language"`
	Model     string          `json:"model"`
	Dimension int             `json:"dimension"`
	Count     int             `json:"count"`
	CreatedAt time.Time       `json:"created_at"`
	Chunks    []domain.Chunk  `json:"chunks"`
}

// Store manages index generations under a root directory and keeps a
// process-wide cache of loaded handles.
type Store struct {
	root     string
	embedder domain.Embedder
	logger   *zap.Logger
	now      func() time.Time
	rename   func(oldpath, newpath string) error

	// mu serialises Build and Save.
	mu sync.Mutex

	cacheMu sync.Mutex
	handles map[domain.Language]*Handle
}

// NewStore returns a Store rooted at root. embedder is only needed for Build.
func NewStore(root string, embedder domain.Embedder, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: vector store root is empty", domain.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		root:     root,
		embedder: embedder,
		logger:   logger,
		now:      time.Now,
		rename:   os.Rename,
		handles:  make(map[domain.Language]*Handle),
	}, nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// Build embeds chunks, builds an index and persists it. The resulting handle
// replaces any cached handle for lang.
func (s *Store) Build(ctx context.Context, lang domain.Language, chunks []domain.Chunk, opts BuildOptions) (*Handle, error) {
	if err := checkLanguage(lang); err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to index for %s", domain.ErrInvalidInput, lang)
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured for index build", domain.ErrConfiguration)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !opts.Rebuild && s.Exists(lang) {
		return nil, fmt.Errorf("%w: %s (rebuild to replace it)", domain.ErrIndexExists, lang)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	started := time.Now()
	vecs, err := s.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %s corpus: %w", lang, err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("%w: %d vectors for %d chunks", domain.ErrEmbeddingService, len(vecs), len(chunks))
	}
	idx, err := flat.New(len(vecs[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
	}
	if err := idx.Add(vecs...); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
	}

	h := &Handle{
		Language:  lang,
		BuildID:   uuid.NewString(),
		Model:     s.embedder.ModelName(),
		CreatedAt: s.now().UTC(),
		Index:     idx,
		Corpus:    append([]domain.Chunk(nil), chunks...),
	}
	if err := s.save(h); err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.handles[lang] = h
	s.cacheMu.Unlock()

	s.logger.Info("built index",
		zap.String("language", string(lang)),
		zap.String("build_id", h.BuildID),
		zap.Int("chunks", len(chunks)),
		zap.Int("dimension", idx.Dimension()),
		zap.Duration("elapsed", time.Since(started)))
	return h, nil
}

// Save persists h and publishes it as the current generation for its
// language. Replacing a different committed build requires opts.Rebuild.
// On success h becomes the cached handle.
func (s *Store) Save(h *Handle, opts BuildOptions) error {
	if h == nil || h.Index == nil {
		return fmt.Errorf("%w: nil index handle", domain.ErrInvalidInput)
	}
	if err := checkLanguage(h.Language); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !opts.Rebuild {
		current, err := readCurrent(s.langDir(h.Language))
		if err == nil && current != h.BuildID {
			return fmt.Errorf("%w: %s build %s (rebuild to replace it)", domain.ErrIndexExists, h.Language, current)
		}
	}
	if err := s.save(h); err != nil {
		return err
	}
	s.cacheMu.Lock()
	s.handles[h.Language] = h
	s.cacheMu.Unlock()
	return nil
}

func (s *Store) save(h *Handle) error {
	if h == nil || h.Index == nil {
		return fmt.Errorf("%w: nil index handle", domain.ErrInvalidInput)
	}
	if err := checkLanguage(h.Language); err != nil {
		return err
	}
	if _, err := uuid.Parse(h.BuildID); err != nil {
		return fmt.Errorf("%w: build id %q: %w", domain.ErrInvalidInput, h.BuildID, err)
	}
	if h.Index.Len() != len(h.Corpus) {
		return fmt.Errorf("%w: index has %d vectors but corpus has %d chunks", domain.ErrIndexCorrupt, h.Index.Len(), len(h.Corpus))
	}

	langDir := s.langDir(h.Language)
	if err := fsutil.EnsureDir(langDir); err != nil {
		return err
	}
	previous, _ := readCurrent(langDir)
	genDir := filepath.Join(langDir, h.BuildID)
	written := false
	info, err := os.Stat(genDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := s.writeGeneration(langDir, genDir, h); err != nil {
			return err
		}
		written = true
	case err != nil:
		return fmt.Errorf("stat %s: %w", genDir, err)
	case !info.IsDir():
		return fmt.Errorf("%w: %s is not a generation directory", domain.ErrIndexCorrupt, genDir)
	}

	if err := fsutil.WriteTextAtomic(filepath.Join(langDir, currentFile), h.BuildID+"\n"); err != nil {
		if written {
			_ = os.RemoveAll(genDir)
		}
		return fmt.Errorf("publish %s index: %w", h.Language, err)
	}
	s.logger.Debug("published index generation", zap.String("language", string(h.Language)), zap.String("build_id", h.BuildID))
	s.pruneGenerations(langDir, h.BuildID, previous)
	return nil
}

func (s *Store) writeGeneration(langDir, genDir string, h *Handle) (err error) {
	staging, err := os.MkdirTemp(langDir, ".staging-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(staging)
		}
	}()

	indexData, err := h.Index.Encode(h.BuildID)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	corpusData, err := json.MarshalIndent(corpusDoc{
		Version:   corpusVersion,
		BuildID:   h.BuildID,
		Language:  h.Language,
		Model:     h.Model,
		Dimension: h.Index.Dimension(),
		Count:     len(h.Corpus),
		CreatedAt: h.CreatedAt,
		Chunks:    h.Corpus,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}
	if err = fsutil.WriteFileAtomic(filepath.Join(staging, indexFile), indexData); err != nil {
		return err
	}
	if err = fsutil.WriteFileAtomic(filepath.Join(staging, corpusFile), corpusData); err != nil {
		return err
	}
	if err = s.rename(staging, genDir); err != nil {
		return fmt.Errorf("commit generation %s: %w", h.BuildID, err)
	}
	return nil
}

// pruneGenerations removes every generation except the published one and
// the one it replaced, which readers that resolved CURRENT before the swap
// may still be loading. Failures are logged; the published generation is
// already consistent.
func (s *Store) pruneGenerations(langDir string, keep ...string) {
	entries, err := os.ReadDir(langDir)
	if err != nil {
		s.logger.Warn("list index generations", zap.String("dir", langDir), zap.Error(err))
		return
	}
	for _, e := range entries {
		if !e.IsDir() || slices.Contains(keep, e.Name()) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := os.RemoveAll(filepath.Join(langDir, e.Name())); err != nil {
			s.logger.Warn("remove old index generation", zap.String("build_id", e.Name()), zap.Error(err))
			continue
		}
		s.logger.Debug("removed old index generation", zap.String("build_id", e.Name()))
	}
}

// Load reads the current generation for lang from disk, bypassing the cache.
func (s *Store) Load(ctx context.Context, lang domain.Language) (*Handle, error) {
	if err := checkLanguage(lang); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	langDir := s.langDir(lang)
	buildID, err := readCurrent(langDir)
	if err != nil {
		return nil, err
	}
	genDir := filepath.Join(langDir, buildID)

	indexData, err := readArtifact(filepath.Join(genDir, indexFile))
	if err != nil {
		return nil, err
	}
	corpusData, err := readArtifact(filepath.Join(genDir, corpusFile))
	if err != nil {
		return nil, err
	}

	idx, indexBuildID, err := flat.Decode(indexData)
	if err != nil {
		return nil, fmt.Errorf("%s index: %w", lang, err)
	}
	var doc corpusDoc
	if err := json.Unmarshal(corpusData, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s corpus: %w", domain.ErrIndexCorrupt, lang, err)
	}
	if err := verify(lang, buildID, indexBuildID, idx, &doc); err != nil {
		return nil, err
	}

	if model := s.modelName(); model != "" && doc.Model != "" && model != doc.Model {
		s.logger.Warn("index was built with a different embedding model",
			zap.String("language", string(lang)), zap.String("index_model", doc.Model), zap.String("model", model))
	}
	s.logger.Info("loaded index",
		zap.String("language", string(lang)),
		zap.String("build_id", buildID),
		zap.Int("chunks", len(doc.Chunks)),
		zap.Int("dimension", idx.Dimension()))

	return &Handle{
		Language:  lang,
		BuildID:   buildID,
		Model:     doc.Model,
		CreatedAt: doc.CreatedAt,
		Index:     idx,
		Corpus:    doc.Chunks,
	}, nil
}

func verify(lang domain.Language, buildID, indexBuildID string, idx *flat.Index, doc *corpusDoc) error {
	corrupt := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", domain.ErrIndexCorrupt, lang, fmt.Sprintf(format, args...))
	}
	switch {
	case doc.Version != corpusVersion:
		return corrupt("unsupported corpus version %d", doc.Version)
	case indexBuildID != buildID || doc.BuildID != buildID:
		return corrupt("build id mismatch (current %s, index %s, corpus %s)", buildID, indexBuildID, doc.BuildID)
	case doc.Language != lang:
		return corrupt("corpus language is %q", doc.Language)
	case doc.Count != len(doc.Chunks):
		return corrupt("corpus declares %d chunks but holds %d", doc.Count, len(doc.Chunks))
	case idx.Len() != len(doc.Chunks):
		return corrupt("index has %d vectors but corpus has %d chunks", idx.Len(), len(doc.Chunks))
	case doc.Dimension != idx.Dimension():
		return corrupt("corpus dimension %d, index dimension %d", doc.Dimension, idx.Dimension())
	}
	return nil
}

// Open returns the cached handle for lang, loading it on first use.
func (s *Store) Open(ctx context.Context, lang domain.Language) (*Handle, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if h, ok := s.handles[lang]; ok {
		return h, nil
	}
	h, err := s.Load(ctx, lang)
	if err != nil {
		return nil, err
	}
	s.handles[lang] = h
	return h, nil
}

// Invalidate drops the cached handle for lang.
func (s *Store) Invalidate(lang domain.Language) {
	s.cacheMu.Lock()
	delete(s.handles, lang)
	s.cacheMu.Unlock()
}

// Exists reports whether a committed generation exists for lang.
func (s *Store) Exists(lang domain.Language) bool {
	langDir := s.langDir(lang)
	buildID, err := readCurrent(langDir)
	if err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(langDir, buildID))
	return err == nil && info.IsDir()
}

func (s *Store) langDir(lang domain.Language) string {
	return filepath.Join(s.root, string(lang))
}

func (s *Store) modelName() string {
	if s.embedder == nil {
		return ""
	}
	return s.embedder.ModelName()
}

func readCurrent(langDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(langDir, currentFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: no index under %s", domain.ErrIndexNotFound, langDir)
		}
		return "", fmt.Errorf("read %s pointer: %w", currentFile, err)
	}
	id := strings.TrimSpace(string(data))
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: invalid build id %q in %s", domain.ErrIndexCorrupt, id, filepath.Join(langDir, currentFile))
	}
	return id, nil
}

func readArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func checkLanguage(lang domain.Language) error {
	for _, l := range domain.Languages {
		if l == lang {
			return nil
		}
	}
	return &domain.UnsupportedLanguageError{Detected: string(lang)}
}
