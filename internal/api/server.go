package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/decoy/internal/processor"
	"github.com/MikeSquared-Agency/decoy/internal/store"
)

// maxBodyBytes bounds request bodies; a message plus fifty history entries
// fits comfortably.
const maxBodyBytes = 1 << 20

type Options struct {
	Port      int
	APIKey    string  // empty disables auth
	RateLimit float64 // requests per second per client, 0 disables limiting
	RateBurst int
}

type Server struct {
	router *chi.Mux
	port   int
	proc   *processor.Processor
	store  store.SessionStore
	logger *slog.Logger
	srv    *http.Server
}

func NewServer(opts Options, proc *processor.Processor, st store.SessionStore, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   opts.Port,
		proc:   proc,
		store:  st,
		logger: logger,
	}

	router.Get("/health", s.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKeyMiddleware(opts.APIKey))
		if opts.RateLimit > 0 {
			r.Use(NewClientRateLimiter(opts.RateLimit, opts.RateBurst).Middleware)
		}
		r.Post("/messages", s.handleMessage)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/stats", s.handleStats)
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.listSessions)
			r.Get("/{id}", s.getSession)
			r.Get("/{id}/intelligence", s.getIntelligence)
			r.Get("/{id}/summary", s.getSummary)
			r.Get("/{id}/history", s.getHistory)
			r.Post("/{id}/report", s.triggerReport)
		})
	})

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Code   string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Status: "error", Error: msg, Code: code})
}

// writeProcessorError maps processor error kinds to HTTP statuses.
func (s *Server) writeProcessorError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, processor.ErrMalformedInput):
		writeError(w, http.StatusBadRequest, "MALFORMED_INPUT", err.Error())
	case errors.Is(err, processor.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
	case errors.Is(err, processor.ErrStorageUnavailable):
		s.logger.Error("storage unavailable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage unavailable, retry later")
	case errors.Is(err, processor.ErrReportDeliveryFailed):
		writeError(w, http.StatusBadGateway, "REPORT_DELIVERY_FAILED", err.Error())
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
