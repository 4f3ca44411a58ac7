package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scribekit/dictation-service/internal/auth"
	"github.com/scribekit/dictation-service/internal/config"
	"github.com/scribekit/dictation-service/internal/metrics"
	"github.com/scribekit/dictation-service/internal/session"
	"github.com/scribekit/dictation-service/internal/store"
	"github.com/scribekit/dictation-service/internal/transcription"
)

// TranscriptionStats exposes backend client statistics for the
// monitoring endpoints.
type TranscriptionStats interface {
	GetStats() transcription.ClientStats
}

// HTTPServer provides the dictation REST API plus monitoring endpoints.
type HTTPServer struct {
	server      *http.Server
	handler     http.Handler
	logger      *slog.Logger
	coordinator *session.Coordinator
	authn       auth.Authenticator
	metrics     *metrics.Metrics
	registry    *prometheus.Registry
	sttStats    TranscriptionStats

	startTime time.Time
}

// NewHTTPServer creates the API server.
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, coordinator *session.Coordinator,
	authn auth.Authenticator, m *metrics.Metrics, registry *prometheus.Registry,
	sttStats TranscriptionStats) *HTTPServer {

	h := &HTTPServer{
		logger:      logger,
		coordinator: coordinator,
		authn:       authn,
		metrics:     m,
		registry:    registry,
		sttStats:    sttStats,
		startTime:   time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)
	h.handler = mux

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Session lifecycle
	mux.HandleFunc("POST /v1/sessions", h.withMetrics("/v1/sessions", h.handleCreateSession))
	mux.HandleFunc("POST /v1/sessions/{id}/chunks", h.withMetrics("/v1/sessions/{id}/chunks", h.handleIngestChunk))
	mux.HandleFunc("POST /v1/sessions/{id}/complete", h.withMetrics("/v1/sessions/{id}/complete", h.handleCompleteSession))
	mux.HandleFunc("POST /v1/sessions/{id}/cancel", h.withMetrics("/v1/sessions/{id}/cancel", h.handleCancelSession))
	mux.HandleFunc("GET /v1/sessions/{id}", h.withMetrics("/v1/sessions/{id}", h.handleGetSession))

	// Monitoring
	mux.HandleFunc("GET /health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("GET /stats", h.withMetrics("/stats", h.handleStats))
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler returns the routed handler, used directly in tests.
func (h *HTTPServer) Handler() http.Handler {
	return h.handler
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

type createSessionRequest struct {
	Title         string `json:"title"`
	Language      string `json:"language"`
	Model         string `json:"model"`
	PromptContext string `json:"prompt_context"`
}

type chunkRequest struct {
	Audio  string `json:"audio"`
	IsLast bool   `json:"is_last"`
}

type sessionResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Status      string     `json:"status"`
	Language    string     `json:"language,omitempty"`
	Model       string     `json:"model,omitempty"`
	Transcript  string     `json:"transcript"`
	DurationMs  int64      `json:"duration_ms"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type chunkView struct {
	Sequence  int       `json:"sequence"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionDetailResponse struct {
	sessionResponse
	Chunks []chunkView `json:"chunks"`
}

func toSessionResponse(sess *store.Session) sessionResponse {
	return sessionResponse{
		ID:          sess.ID,
		Title:       sess.Title,
		Status:      sess.Status,
		Language:    sess.Language,
		Model:       sess.Model,
		Transcript:  sess.Transcript,
		DurationMs:  sess.DurationMs,
		CreatedAt:   sess.CreatedAt,
		UpdatedAt:   sess.UpdatedAt,
		CompletedAt: sess.CompletedAt,
	}
}

// handleCreateSession implements POST /v1/sessions
func (h *HTTPServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	user, err := h.authn.Authenticate(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: malformed JSON body", session.ErrBadRequest))
		return
	}

	sess, err := h.coordinator.Start(r.Context(), session.StartParams{
		UserID:        user.ID,
		Title:         req.Title,
		Language:      req.Language,
		Model:         req.Model,
		PromptContext: req.PromptContext,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// handleIngestChunk implements POST /v1/sessions/{id}/chunks
func (h *HTTPServer) handleIngestChunk(w http.ResponseWriter, r *http.Request) {
	user, err := h.authn.Authenticate(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req chunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: malformed JSON body", session.ErrBadRequest))
		return
	}

	id := r.PathValue("id")
	if err := h.coordinator.Ingest(r.Context(), id, user.ID, req.Audio); err != nil {
		h.writeError(w, err)
		return
	}

	// is_last lets the client close the session with the final chunk
	// instead of a separate complete call.
	if req.IsLast {
		sess, err := h.coordinator.Finalize(r.Context(), id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, toSessionResponse(sess))
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleCompleteSession implements POST /v1/sessions/{id}/complete
func (h *HTTPServer) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	user, err := h.authn.Authenticate(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	id := r.PathValue("id")
	if err := h.authorizeOwner(r.Context(), id, user); err != nil {
		h.writeError(w, err)
		return
	}

	sess, err := h.coordinator.Finalize(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// handleCancelSession implements POST /v1/sessions/{id}/cancel
func (h *HTTPServer) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	user, err := h.authn.Authenticate(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	id := r.PathValue("id")
	if err := h.authorizeOwner(r.Context(), id, user); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.coordinator.Cancel(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetSession implements GET /v1/sessions/{id}
func (h *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	user, err := h.authn.Authenticate(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	sess, chunks, err := h.coordinator.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if sess.UserID != user.ID {
		// Do not reveal that the session exists to other users.
		h.writeError(w, session.ErrNotFound)
		return
	}

	resp := sessionDetailResponse{
		sessionResponse: toSessionResponse(sess),
		Chunks:          make([]chunkView, 0, len(chunks)),
	}
	for _, c := range chunks {
		resp.Chunks = append(resp.Chunks, chunkView{
			Sequence: c.Sequence, Text: c.Text, CreatedAt: c.CreatedAt,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "dictation-service",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"coordinator": map[string]interface{}{
				"status":          "running",
				"active_sessions": h.coordinator.ActiveCount(),
			},
		},
	}

	if h.sttStats != nil {
		stats := h.sttStats.GetStats()
		health["components"].(map[string]interface{})["transcription"] = map[string]interface{}{
			"status":          "running",
			"total_requests":  stats.TotalRequests,
			"success_rate":    stats.SuccessRate,
			"active_requests": stats.ActiveRequests,
		}
	}

	h.writeJSON(w, http.StatusOK, health)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"sessions": map[string]interface{}{
			"active_count": h.coordinator.ActiveCount(),
		},
	}

	if h.sttStats != nil {
		stats["transcription"] = h.sttStats.GetStats()
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// authorizeOwner returns ErrNotFound for sessions owned by other users.
func (h *HTTPServer) authorizeOwner(ctx context.Context, id string, user auth.User) error {
	sess, _, err := h.coordinator.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.UserID != user.ID {
		return session.ErrNotFound
	}
	return nil
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response encoding failed", slog.String("error", err.Error()))
	}
}

func (h *HTTPServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, session.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		status = http.StatusUnauthorized
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", slog.String("error", err.Error()))
	}

	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
