// Package api exposes the HTTP interface for the catalog crawler.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/boqlabs/catalog-crawler/internal/catalog"
	"github.com/boqlabs/catalog-crawler/internal/crawl"
	"github.com/boqlabs/catalog-crawler/internal/dispatcher"
	"github.com/boqlabs/catalog-crawler/internal/metrics"
)

// Config holds HTTP-facing knobs.
type Config struct {
	// SyncTimeout bounds an inline (non-async) scrape request.
	SyncTimeout time.Duration
}

// Server wires HTTP handlers to the dispatcher, stores and crawl engine.
type Server struct {
	router      chi.Router
	jobStore    catalog.JobStore
	resultStore catalog.ResultStore
	dispatcher  *dispatcher.Dispatcher
	engine      *crawl.Engine
	idGen       catalog.IDGenerator
	clock       catalog.Clock
	cfg         Config
	logger      *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobStore catalog.JobStore,
	resultStore catalog.ResultStore,
	dispatcher *dispatcher.Dispatcher,
	engine *crawl.Engine,
	idGen catalog.IDGenerator,
	clock catalog.Clock,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 5 * time.Minute
	}
	s := &Server{
		jobStore:    jobStore,
		resultStore: resultStore,
		dispatcher:  dispatcher,
		engine:      engine,
		idGen:       idGen,
		clock:       clock,
		cfg:         cfg,
		logger:      logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(corsMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/scrape", s.scrape)
	r.Route("/tasks/{task_id}", func(r chi.Router) {
		r.Get("/", s.getTask)
		r.Delete("/", s.cancelTask)
	})
	r.Route("/results", func(r chi.Router) {
		r.Get("/", s.listResults)
		r.Route("/{key}", func(r chi.Router) {
			r.Get("/", s.getResult)
			r.Delete("/", s.deleteResult)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "catalog-crawler",
		"timestamp": s.clock.Now().UTC().Format(time.RFC3339),
		"features":  []string{"brand_detection", "category_discovery", "pagination", "async_tasks"},
	})
}

type scrapeRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Sync bool   `json:"sync"`
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	if req.Sync {
		s.scrapeSync(w, r, req)
		return
	}
	s.scrapeAsync(w, r, req)
}

func (s *Server) scrapeSync(w http.ResponseWriter, r *http.Request, req scrapeRequest) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.SyncTimeout)
	defer cancel()

	result, err := s.engine.Run(ctx, req.URL, crawl.Hooks{})
	if err != nil {
		s.logger.Error("inline scrape failed", zap.String("url", req.URL), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"products":     result.Products,
		"brandInfo":    result.Brand,
		"productCount": len(result.Products),
	})
}

func (s *Server) scrapeAsync(w http.ResponseWriter, r *http.Request, req scrapeRequest) {
	taskID, err := s.createTask(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		writeError(w, status, err.Error())
		return
	}
	// Creation semantics are 202-ish but the body ships with a plain 200.
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Scraping started in background",
		"taskId":  taskID,
	})
}

func (s *Server) createTask(ctx context.Context, req scrapeRequest) (string, error) {
	id, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate task id: %w", err)
	}
	taskID := "task_" + id
	now := s.clock.Now()
	job := catalog.Job{
		ID:        taskID,
		Status:    catalog.JobStatusQueued,
		Progress:  0,
		Stage:     "Queued",
		SourceURL: req.URL,
		BrandName: req.Name,
		CreatedAt: now,
	}
	if err := s.jobStore.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}

	queueCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	item := catalog.QueueItem{
		JobID:     taskID,
		SourceURL: req.URL,
		BrandHint: req.Name,
		Submitted: now.Unix(),
	}
	if err := s.dispatcher.Enqueue(queueCtx, item); err != nil {
		return "", fmt.Errorf("enqueue task: %w", err)
	}
	return taskID, nil
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	job, err := s.jobStore.Get(r.Context(), taskID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) cancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	if _, err := s.jobStore.Get(r.Context(), taskID); err != nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	if err := s.jobStore.Cancel(r.Context(), taskID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Task cancellation requested",
	})
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	keys, err := s.resultStore.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": keys})
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	result, err := s.resultStore.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Result not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) deleteResult(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := s.resultStore.Delete(r.Context(), key); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Result not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
