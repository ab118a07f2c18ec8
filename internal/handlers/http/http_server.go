package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Mastero4ek/bull-diary-sub002/internal/app/dto"
	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/model"
	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/useCases"
)

// Server represents an HTTP server with all routes configured
type Server struct {
	syncService useCases.SyncService
	progress    useCases.ProgressReader
	broadcaster useCases.ProgressBroadcaster
	logger      *slog.Logger
	mux         *http.ServeMux
	server      *http.Server
}

// NewServer creates a new HTTP server with configured routes
func NewServer(addr string, syncService useCases.SyncService, progress useCases.ProgressReader, broadcaster useCases.ProgressBroadcaster, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	server := &Server{
		syncService: syncService,
		progress:    progress,
		broadcaster: broadcaster,
		logger:      logger,
		mux:         mux,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 10 * time.Minute, // a sync run completes within the request
			IdleTimeout:  60 * time.Second,
		},
	}

	server.registerRoutes()
	return server
}

// registerRoutes configures all HTTP routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/sync", s.handleSync)
	s.mux.HandleFunc("/sync/progress", s.handleProgress)
	s.mux.HandleFunc("/health", s.handleHealth)
	if s.broadcaster != nil {
		s.mux.HandleFunc("/ws/progress", s.broadcaster.Handler())
	}
}

// handleSync triggers one synchronous sync run. The response only
// reports a total failure to start; failures mid-run surface through
// progress polling and the per-stream success flags.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		s.writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	var req dto.SyncRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	window, err := req.Window()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.syncService.SyncExchangeData(r.Context(), userID, req.Exchange, window)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, dto.SyncResponseFromModel(summary))
}

// handleProgress returns the polling client's view of the sync state.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		s.writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	s.writeJSON(w, http.StatusOK, dto.ProgressFromModel(s.progress.Get(userID)))
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForError maps the engine's error taxonomy onto HTTP codes:
// user-correctable failures are 4xx, an exhausted upstream is 502,
// anything else is a 500.
func statusForError(err error) int {
	switch {
	case model.IsValidation(err),
		errors.Is(err, model.ErrNotConfigured),
		errors.Is(err, model.ErrIncompleteCredentials),
		errors.Is(err, model.ErrUnknownExchange):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrExchangeUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"success": false, "message": message})
}

// Handler exposes the configured routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
