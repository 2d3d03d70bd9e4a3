package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"checkexplorer/internal/explorer"
)

// Server wraps HTTP serving of the explorer API.
type Server struct {
	httpServer   *http.Server
	registry     *explorer.Registry
	gatherer     prometheus.Gatherer
	log          *zap.Logger
	pushInterval time.Duration
}

// Options configures a Server.
type Options struct {
	Addr         string
	Registry     *explorer.Registry
	Gatherer     prometheus.Gatherer
	Logger       *zap.Logger
	PushInterval time.Duration
}

// New creates a configured HTTP server for the explorer.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.PushInterval <= 0 {
		opts.PushInterval = 30 * time.Second
	}

	s := &Server{
		registry:     opts.Registry,
		gatherer:     opts.Gatherer,
		log:          opts.Logger,
		pushInterval: opts.PushInterval,
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.registry.Len()})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleView)
			r.Delete("/", s.handleDelete)
			r.Put("/view", s.handleBoundary)
			r.Post("/pages/{section}/retry", s.handleRetry)
			r.Get("/ws", s.handleViewWS)
		})
	})
	return r
}

type createRequest struct {
	CheckID string `json:"check_id"`
	From    int64  `json:"from"`
	To      int64  `json:"to"`
}

type boundaryRequest struct {
	Reference *int64 `json:"reference"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.CheckID == "" {
		writeError(w, http.StatusBadRequest, "check_id is required")
		return
	}
	if req.To <= req.From {
		writeError(w, http.StatusBadRequest, "to must be after from")
		return
	}

	session, err := s.registry.Create(r.Context(), req.CheckID, req.From, req.To)
	if err != nil {
		s.log.Warn("create session failed", zap.String("check", req.CheckID), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.log.Info("session created", zap.String("session", session.ID()), zap.String("check", req.CheckID))
	writeJSON(w, http.StatusCreated, session.Snapshot())
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBoundary(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	var req boundaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reference == nil {
		writeError(w, http.StatusBadRequest, "reference is required")
		return
	}
	session.SetViewBoundary(r.Context(), *req.Reference)
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	section, err := strconv.Atoi(chi.URLParam(r, "section"))
	if err != nil || section < 0 {
		writeError(w, http.StatusBadRequest, "invalid section")
		return
	}

	err = session.Retry(r.Context(), section)
	var ferr *explorer.FetchError
	switch {
	case errors.Is(err, explorer.ErrUnknownSection):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ferr) && !ferr.Retryable():
		writeJSON(w, http.StatusUnprocessableEntity, session.Snapshot())
	case errors.As(err, &ferr):
		writeJSON(w, http.StatusBadGateway, session.Snapshot())
	default:
		writeJSON(w, http.StatusOK, session.Snapshot())
	}
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*explorer.Session, bool) {
	session, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return session, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
