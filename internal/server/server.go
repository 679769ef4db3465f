// Package server exposes question answering and retrieval over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bilingual-rag/internal/domain"
	"bilingual-rag/internal/retriever"
	"bilingual-rag/internal/service"
)

// Pipeline is the subset of the service the API needs.
type Pipeline interface {
	Answer(ctx context.Context, question string, opts retriever.Options) (service.Answer, error)
	Retrieve(ctx context.Context, query string, opts retriever.Options) (retriever.Response, error)
}

// Handler serves the API routes.
type Handler struct {
	pipeline    Pipeline
	defaultTopK int
	logger      *zap.Logger
}

// NewHandler returns a Handler. defaultTopK applies when a request omits top_k.
func NewHandler(p Pipeline, defaultTopK int, logger *zap.Logger) *Handler {
	if defaultTopK <= 0 {
		defaultTopK = retriever.DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pipeline: p, defaultTopK: defaultTopK, logger: logger}
}

type queryRequest struct {
	Question string `json:"question"`
	Language string `json:"language"`
	TopK     *int   `json:"top_k"`
}

type queryResponse struct {
	Response string          `json:"response"`
	Language domain.Language `json:"language"`
	Results  []domain.Result `json:"results"`
}

type retrieveRequest struct {
	Query    string `json:"query"`
	Language string `json:"language"`
	TopK     *int   `json:"top_k"`
}

type retrieveResponse struct {
	Language domain.Language `json:"language"`
	Results  []domain.Result `json:"results"`
}

type errorResponse struct {
	Error string           `json:"error"`
	Kind  domain.ErrorKind `json:"kind"`
}

// Query answers a question from the corpus of its language.
func (h *Handler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Join(domain.ErrInvalidInput, err))
		return
	}
	ans, err := h.pipeline.Answer(c.Request.Context(), req.Question, h.options(req.Language, req.TopK))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, queryResponse{Response: ans.Text, Language: ans.Language, Results: ans.Results})
}

// Retrieve returns the nearest chunks without generating an answer.
func (h *Handler) Retrieve(c *gin.Context) {
	var req retrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Join(domain.ErrInvalidInput, err))
		return
	}
	resp, err := h.pipeline.Retrieve(c.Request.Context(), req.Query, h.options(req.Language, req.TopK))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, retrieveResponse{Language: resp.Language, Results: resp.Results})
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) options(lang string, topK *int) retriever.Options {
	opts := retriever.Options{Language: strings.TrimSpace(lang), TopK: h.defaultTopK}
	if topK != nil {
		opts.TopK = *topK
	}
	return opts
}

// StatusFor maps an error onto its HTTP status.
func StatusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidInput, domain.KindUnsupportedLanguage:
		return http.StatusBadRequest
	case domain.KindIndexNotFound:
		return http.StatusNotFound
	case domain.KindEmbeddingService, domain.KindGenerationService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Kind: domain.KindOf(err)})
}

// Options configures the router.
type Options struct {
	AllowedOrigins []string
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(h *Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(h.logger), CORS(opts.AllowedOrigins))
	r.GET("/healthz", h.Health)
	r.POST("/query/", h.Query)
	r.POST("/retrieve", h.Retrieve)
	return r
}

// Run serves handler on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
