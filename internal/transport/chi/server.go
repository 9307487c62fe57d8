// Package chi exposes the HTTP API: the chat endpoint, session history,
// index rebuild, health and metrics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/timtro-cloud/trobot/internal/domain"
	chatuc "github.com/timtro-cloud/trobot/internal/usecase/chat"
	healthuc "github.com/timtro-cloud/trobot/internal/usecase/health"
	indexeruc "github.com/timtro-cloud/trobot/internal/usecase/indexer"
)

const maxMessageBytes = 4 << 10

// ChatService is the conversation entrypoint the API exposes.
type ChatService interface {
	Ask(ctx context.Context, sessionID, text string, authenticated bool) (chatuc.Reply, error)
	History(ctx context.Context, sessionID string) (*domain.History, error)
	Clear(ctx context.Context, sessionID string) error
}

// Indexer rebuilds the retrieval corpus on demand.
type Indexer interface {
	Rebuild(ctx context.Context) (indexeruc.Stats, error)
}

// HealthService aggregates component checks.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// Server hosts the HTTP handlers.
type Server struct {
	chat    ChatService
	indexer Indexer
	health  HealthService
	logger  *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(chat ChatService, indexer Indexer, health HealthService, logger *zap.Logger) *Server {
	return &Server{chat: chat, indexer: indexer, health: health, logger: logger}
}

// Routes mounts every endpoint on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/chat", s.handleChat)
	r.Get("/history/{sessionID}", s.handleHistory)
	r.Delete("/history/{sessionID}", s.handleClearHistory)
	r.Post("/reindex", s.handleReindex)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

type chatRequest struct {
	SessionID     string `json:"session_id"`
	Message       string `json:"message"`
	Authenticated bool   `json:"authenticated"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "session_id is required")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "message is required")
		return
	}

	reply, err := s.chat.Ask(r.Context(), req.SessionID, req.Message, req.Authenticated)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type historyEntry struct {
	User      string    `json:"user"`
	Bot       string    `json:"bot"`
	Timestamp time.Time `json:"timestamp"`
}

type historyResponse struct {
	SessionID string         `json:"session_id"`
	Entries   []historyEntry `json:"entries"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	hist, err := s.chat.History(r.Context(), sessionID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := historyResponse{SessionID: sessionID, Entries: []historyEntry{}}
	if hist != nil {
		for _, ex := range hist.Entries() {
			resp.Entries = append(resp.Entries, historyEntry{
				User:      ex.UserText,
				Bot:       ex.BotText,
				Timestamp: ex.Timestamp,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.chat.Clear(r.Context(), sessionID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.indexer.Rebuild(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrListingNotFound), errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrIndexNotBuilt):
		writeError(w, http.StatusServiceUnavailable, "index_not_built", err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusRequestTimeout, "canceled", "request canceled")
	default:
		s.logger.Error("unhandled request error",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
