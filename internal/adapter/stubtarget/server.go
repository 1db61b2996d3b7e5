package stubtarget

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/queue-latency-bench/internal/adapter/httpserver"
	"github.com/fairyhunter13/queue-latency-bench/internal/adapter/observability"
	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
	obsctx "github.com/fairyhunter13/queue-latency-bench/internal/observability"
)

const maxBodyBytes = 64 << 10

// Server serves the two contract points of the task API.
type Server struct {
	store *Store
	// RateLimitPerMin limits submissions per client IP; 0 disables the limit.
	RateLimitPerMin int
}

// NewServer creates a Server over store.
func NewServer(store *Store, rateLimitPerMin int) *Server {
	return &Server{store: store, RateLimitPerMin: rateLimitPerMin}
}

type submitBody struct {
	ID      string `json:"id"`
	JobType string `json:"job_type"`
	Payload string `json:"payload"`
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Group(func(wr chi.Router) {
		if s.RateLimitPerMin > 0 {
			wr.Use(httprate.LimitByIP(s.RateLimitPerMin, time.Minute))
		}
		wr.Post("/task/{queue}", s.SubmitHandler())
	})
	r.Get("/task/{id}", s.StatusHandler())
	r.Get("/healthz", s.HealthHandler())
	r.Handle("/metrics", promhttp.Handler())
	return httpserver.SecurityHeaders(r)
}

// SubmitHandler handles POST /task/{queue}.
func (s *Server) SubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := domain.QueueKind(chi.URLParam(r, "queue"))
		if !kind.Valid() {
			httpserver.WriteError(w, fmt.Errorf("%w: unknown queue %q", domain.ErrInvalidArgument, kind))
			return
		}
		var body submitBody
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
			httpserver.WriteError(w, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidArgument))
			return
		}
		cat, err := domain.ParseJobCategory(body.JobType)
		if err != nil {
			httpserver.WriteError(w, err)
			return
		}
		id := body.ID
		if id == "" {
			id = uuid.NewString()
		}
		task, err := s.store.Create(r.Context(), id, cat, kind, body.Payload)
		if err != nil {
			obsctx.LoggerFromContext(r.Context()).Warn("create task failed", slog.String("task_id", id), slog.Any("error", err))
			httpserver.WriteError(w, err)
			return
		}
		httpserver.WriteJSON(w, http.StatusCreated, map[string]any{"task": task})
	}
}

// StatusHandler handles GET /task/{id}.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := s.store.Read(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpserver.WriteError(w, err)
			return
		}
		httpserver.WriteJSON(w, http.StatusOK, task)
	}
}

// HealthHandler reports 200 when Redis answers.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			httpserver.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httpserver.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
