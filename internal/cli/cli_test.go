package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilingual-rag/internal/domain"
)

type workspace struct {
	root   string
	config string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	root := t.TempDir()
	w := workspace{root: root, config: filepath.Join(root, "config.yaml")}
	require.NoError(t, os.WriteFile(w.config, []byte(`
embedder:
  type: hashing
  hashing:
    dimension: 64
chunker:
  max_length: 80
  overlap_length: 10
detector:
  type: script
generator:
  type: extractive
  max_sentences: 1
paths:
  pdf_dir: `+filepath.Join(root, "pdf")+`
  extracted_dir: `+filepath.Join(root, "extracted")+`
  chunked_dir: `+filepath.Join(root, "chunked")+`
  vector_dir: `+filepath.Join(root, "vectors")+`
corpora:
  english: [textbook_english_chunks.txt]
  bangla: [textbook_bangla_chunks.txt]
log:
  level: error
`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "extracted"), 0o755))
	return w
}

func (w workspace) writeText(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(w.root, "extracted", name), []byte(content), 0o644))
}

func (w workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--config=" + w.config, "--env-file="}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"extract", "chunk", "index", "query", "ask", "serve", "console"} {
		assert.Contains(t, names, want)
	}
	require.NotNil(t, root.PersistentFlags().Lookup("config"))
	require.NotNil(t, root.PersistentFlags().Lookup("verbose"))
}

func TestIndexCommand_RebuildFlag(t *testing.T) {
	root := NewRootCommand()
	idx, _, err := root.Find([]string{"index"})
	require.NoError(t, err)
	f := idx.Flags().Lookup("rebuild")
	require.NotNil(t, f)
	assert.Equal(t, "false", f.DefValue)
}

func TestCLI_ChunkIndexQueryAsk(t *testing.T) {
	w := newWorkspace(t)
	w.writeText(t, "textbook_english.txt",
		"The Padma is a major river. It flows through Bangladesh. The capital city is Dhaka. Dhaka is very crowded.")
	w.writeText(t, "textbook_bangla.txt",
		"পদ্মা একটি বড় নদী। এটি বাংলাদেশের মধ্য দিয়ে প্রবাহিত। রাজধানী শহর ঢাকা।")

	out, err := w.run(t, "chunk")
	require.NoError(t, err)
	assert.Contains(t, out, "textbook_english_chunks.txt")
	assert.Contains(t, out, "textbook_bangla_chunks.txt")

	out, err = w.run(t, "index")
	require.NoError(t, err)
	assert.Contains(t, out, "english:")
	assert.Contains(t, out, "bangla:")

	out, err = w.run(t, "index")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to build")

	_, err = w.run(t, "index", "--language", "english", "--rebuild")
	require.NoError(t, err)

	out, err = w.run(t, "query", "--json", "-k", "1", "What", "is", "the", "capital", "city?")
	require.NoError(t, err)
	var resp struct {
		Language domain.Language `json:"language"`
		Results  []domain.Result `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, domain.English, resp.Language)
	require.Len(t, resp.Results, 1)
	assert.Contains(t, resp.Results[0].Text, "Dhaka")

	out, err = w.run(t, "ask", "রাজধানী শহর কোনটি?")
	require.NoError(t, err)
	assert.Contains(t, out, "language: bangla")
}

func TestCLI_Errors(t *testing.T) {
	w := newWorkspace(t)

	_, err := w.run(t, "query", "Where is the river?")
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)

	_, err = w.run(t, "query", "--language", "fr", "Où est la rivière?")
	assert.ErrorIs(t, err, domain.ErrUnsupportedLanguage)

	_, err = w.run(t, "query", "-k", "-1", "river")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = w.run(t, "chunk")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = w.run(t, "index", "--language", "klingon")
	assert.ErrorIs(t, err, domain.ErrUnsupportedLanguage)
}

func TestCLI_QueryNeedsArgument(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run(t, "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b", snippet(" a\n b ", 10))
	assert.Equal(t, "আমা...", snippet("আমার সোনার বাংলা", 3))
}
