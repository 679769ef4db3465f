package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilingual-rag/internal/domain"
	"bilingual-rag/internal/retriever"
	"bilingual-rag/internal/service"
)

type fakePipeline struct {
	err      error
	lastOpts retriever.Options
	lastText string
}

func (f *fakePipeline) Answer(_ context.Context, question string, opts retriever.Options) (service.Answer, error) {
	f.lastText, f.lastOpts = question, opts
	if f.err != nil {
		return service.Answer{}, f.err
	}
	return service.Answer{
		Text:     "Bangladesh became independent in 1971.",
		Language: domain.English,
		Results:  []domain.Result{{Text: "In 1971 ...", Source: "textbook_english_chunks.txt", Position: 3, Distance: 0.4}},
	}, nil
}

func (f *fakePipeline) Retrieve(_ context.Context, query string, opts retriever.Options) (retriever.Response, error) {
	f.lastText, f.lastOpts = query, opts
	if f.err != nil {
		return retriever.Response{}, f.err
	}
	return retriever.Response{Language: domain.Bangla, Results: []domain.Result{domain.NoMatchResult()}}, nil
}

func newTestRouter(p Pipeline) http.Handler {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewHandler(p, 2, nil), Options{})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestQuery(t *testing.T) {
	p := &fakePipeline{}
	rec := do(t, newTestRouter(p), http.MethodPost, "/query/", `{"question":"When did Bangladesh become independent?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Bangladesh became independent in 1971.", got.Response)
	assert.Equal(t, domain.English, got.Language)
	require.Len(t, got.Results, 1)
	assert.Equal(t, 3, got.Results[0].Position)
	assert.Equal(t, retriever.Options{TopK: 2}, p.lastOpts)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRetrieve_PassesOptions(t *testing.T) {
	p := &fakePipeline{}
	rec := do(t, newTestRouter(p), http.MethodPost, "/retrieve", `{"query":"স্বাধীনতা","language":" bn ","top_k":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, retriever.Options{Language: "bn", TopK: 5}, p.lastOpts)
	assert.Equal(t, "স্বাধীনতা", p.lastText)

	var got retrieveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.Bangla, got.Language)
	assert.True(t, got.Results[0].NoMatch)
}

func TestErrorMapping(t *testing.T) {
	for _, tc := range []struct {
		err    error
		status int
		kind   domain.ErrorKind
	}{
		{fmt.Errorf("%w: top_k must be positive", domain.ErrInvalidInput), http.StatusBadRequest, domain.KindInvalidInput},
		{&domain.UnsupportedLanguageError{Detected: "fr"}, http.StatusBadRequest, domain.KindUnsupportedLanguage},
		{fmt.Errorf("open: %w", domain.ErrIndexNotFound), http.StatusNotFound, domain.KindIndexNotFound},
		{fmt.Errorf("%w: timeout", domain.ErrEmbeddingService), http.StatusBadGateway, domain.KindEmbeddingService},
		{fmt.Errorf("%w: 500", domain.ErrGenerationService), http.StatusBadGateway, domain.KindGenerationService},
		{fmt.Errorf("load: %w", domain.ErrIndexCorrupt), http.StatusInternalServerError, domain.KindIndexCorrupt},
		{errors.New("boom"), http.StatusInternalServerError, domain.KindInternal},
	} {
		t.Run(string(tc.kind), func(t *testing.T) {
			rec := do(t, newTestRouter(&fakePipeline{err: tc.err}), http.MethodPost, "/query/", `{"question":"q"}`)
			assert.Equal(t, tc.status, rec.Code)
			var got errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tc.kind, got.Kind)
			if tc.status == http.StatusInternalServerError {
				assert.Equal(t, "internal error", got.Error)
			} else {
				assert.Equal(t, tc.err.Error(), got.Error)
			}
		})
	}
}

func TestQuery_MalformedBody(t *testing.T) {
	p := &fakePipeline{}
	rec := do(t, newTestRouter(p), http.MethodPost, "/query/", `{"question":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, p.lastText)
}

func TestHealthAndCORS(t *testing.T) {
	h := newTestRouter(&fakePipeline{})
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodOptions, "/query/", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORS_Allowlist(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewRouter(NewHandler(&fakePipeline{}, 0, nil), Options{AllowedOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID_Reused(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc")
	rec := httptest.NewRecorder()
	newTestRouter(&fakePipeline{}).ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(requestIDHeader))
}
