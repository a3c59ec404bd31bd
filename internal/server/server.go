// Package server exposes the queue manager over HTTP: job submission and
// inspection, queue control, stream reads, and an SSE feed of change
// notifications.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/notify"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/payload"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/queue"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/store"
	"github.com/rhanka/top-ai-ideas-fullstack-sub001/internal/stream"
)

// Server is the HTTP front end for one queue manager process.
type Server struct {
	manager    *queue.Manager
	hub        *notify.Hub
	streams    *stream.Log // optional
	httpServer *http.Server
	router     chi.Router
}

// Options configures a Server. Manager and Hub are required; Streams enables
// the /streams endpoints when present.
type Options struct {
	Manager  *queue.Manager
	Hub      *notify.Hub
	Streams  *stream.Log
	BindAddr string
}

// New creates a new Server.
func New(opts Options) *Server {
	srv := &Server{
		manager: opts.Manager,
		hub:     opts.Hub,
		streams: opts.Streams,
	}
	srv.router = srv.buildRouter()
	srv.httpServer = &http.Server{
		Addr:    opts.BindAddr,
		Handler: srv.router,
	}
	return srv
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(structuredLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Jobs
		r.Post("/jobs", s.handleSubmit)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)

		// Queue control
		r.Get("/queue/stats", s.handleQueueStats)
		r.Post("/queue/pause", s.handlePause)
		r.Post("/queue/resume", s.handleResume)
		r.Post("/queue/cancel", s.handleCancelAll)
		r.Post("/queue/reload", s.handleReloadSettings)
		r.Post("/workspaces/{id}/cancel", s.handleCancelWorkspace)

		// Event streams
		r.Get("/streams/{id}/events", s.handleReadStream)
	})

	r.Get("/events", s.handleSSE)
	r.Get("/healthz", s.handleHealthz)

	return r
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	slog.Info("HTTP server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitRequest struct {
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	WorkspaceID string          `json:"workspaceId"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_JSON")
		return
	}

	id, err := s.manager.Submit(r.Context(), payload.JobType(req.Type), req.Payload, req.WorkspaceID)
	if err != nil {
		var ve *payload.ValidationError
		switch {
		case errors.As(err, &ve):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "invalid payload",
				"code":   "INVALID_PAYLOAD",
				"detail": ve.Errors,
			})
		case errors.Is(err, queue.ErrNotAccepting):
			writeError(w, http.StatusConflict, "queue is not accepting jobs", "NOT_ACCEPTING")
		default:
			writeError(w, http.StatusInternalServerError, err.Error(), "SUBMIT_FAILED")
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.manager.ListJobs(r.URL.Query().Get("workspace_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "LIST_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.manager.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), "GET_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleQueueStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.manager.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "STATS_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.manager.Pause()
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.manager.Resume()
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_JSON")
		return
	}
	if req.Reason == "" {
		req.Reason = "operator request"
	}
	s.manager.CancelAll(req.Reason)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleCancelWorkspace(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_JSON")
		return
	}
	if req.Reason == "" {
		req.Reason = "workspace cancel"
	}
	if err := s.manager.CancelForScope(r.Context(), chi.URLParam(r, "id"), req.Reason); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "CANCEL_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleReloadSettings(w http.ResponseWriter, _ *http.Request) {
	if err := s.manager.ReloadConcurrencySettings(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "RELOAD_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// JSON response helpers

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, code string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// Middleware

func structuredLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
