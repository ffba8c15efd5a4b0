// Package api exposes the HTTP interface for the campaign service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpage/campaign-generator/internal/campaign"
	"github.com/adpage/campaign-generator/internal/metrics"
	"github.com/adpage/campaign-generator/internal/render"
)

// Server wires HTTP handlers to the generator, store, and renderer.
type Server struct {
	router    chi.Router
	generator campaign.Generator
	store     campaign.Store
	publisher campaign.Publisher
	renderer  *render.Renderer
	topic     string
	logger    *zap.Logger
}

// Options carries the optional collaborators for NewServer.
type Options struct {
	// Publisher receives a campaign-created event after each successful
	// generation. Nil disables event publishing.
	Publisher campaign.Publisher
	// Topic names the event topic for publishes.
	Topic string
	// RequestTimeout bounds each request; zero means 60 seconds.
	RequestTimeout time.Duration
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	generator campaign.Generator,
	store campaign.Store,
	renderer *render.Renderer,
	logger *zap.Logger,
	opts Options,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	s := &Server{
		generator: generator,
		store:     store,
		publisher: opts.Publisher,
		renderer:  renderer,
		topic:     opts.Topic,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/", s.homePage)
	r.Get("/campaign/{campaign_id}", s.campaignPage)

	r.Route("/api/campaigns", func(r chi.Router) {
		r.Get("/", s.listCampaigns)
		r.Post("/generate", s.generateCampaign)
		r.Get("/{campaign_id}", s.getCampaign)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The store is the only hard dependency; a cheap list proves it answers.
	if _, err := s.store.ListAll(r.Context()); err != nil {
		writeJSON(s.logger, w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) homePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Home(w); err != nil {
		s.requestLogger(r).Error("render home page failed", zap.Error(err))
	}
}

func (s *Server) campaignPage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "campaign_id"), 10, 64)
	if err != nil {
		writePlain(s.logger, w, http.StatusNotFound, "Campaign not found")
		return
	}
	c, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, campaign.ErrNotFound) {
			s.requestLogger(r).Error("fetch campaign for page failed", zap.Int64("id", id), zap.Error(err))
		}
		writePlain(s.logger, w, http.StatusNotFound, "Campaign not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Campaign(w, c); err != nil {
		s.requestLogger(r).Error("render campaign page failed", zap.Int64("id", id), zap.Error(err))
	}
}

type generateRequest struct {
	URL string `json:"url"`
}

func (s *Server) generateCampaign(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(s.logger, w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeMessage(s.logger, w, http.StatusBadRequest, "URL required")
		return
	}

	c, err := s.generator.Generate(r.Context(), url)
	if err != nil {
		s.requestLogger(r).Error("generate campaign failed", zap.String("url", url), zap.Error(err))
		metrics.ObserveGeneration("failed")
		writeMessage(s.logger, w, http.StatusInternalServerError, "Failed to generate campaign")
		return
	}

	stored, err := s.store.Insert(r.Context(), c)
	if err != nil {
		s.requestLogger(r).Error("save campaign failed", zap.String("url", url), zap.Error(err))
		metrics.ObserveGeneration("store_error")
		writeMessage(s.logger, w, http.StatusInternalServerError, "Failed to save")
		return
	}
	metrics.ObserveGeneration("succeeded")

	s.publishCreated(r.Context(), stored)
	writeJSON(s.logger, w, http.StatusCreated, stored)
}

func (s *Server) listCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.store.ListAll(r.Context())
	if err != nil {
		// The home page polls this endpoint; an empty list degrades better
		// than an error banner.
		s.requestLogger(r).Error("list campaigns failed", zap.Error(err))
		writeJSON(s.logger, w, http.StatusOK, []campaign.Campaign{})
		return
	}
	writeJSON(s.logger, w, http.StatusOK, campaigns)
}

func (s *Server) getCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "campaign_id"), 10, 64)
	if err != nil {
		writePlain(s.logger, w, http.StatusNotFound, "Not found")
		return
	}
	c, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, campaign.ErrNotFound) {
			s.requestLogger(r).Error("fetch campaign failed", zap.Int64("id", id), zap.Error(err))
		}
		writePlain(s.logger, w, http.StatusNotFound, "Not found")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, c)
}

// publishCreated emits a campaign-created event. Failures are logged and do
// not affect the HTTP response.
func (s *Server) publishCreated(ctx context.Context, c campaign.Campaign) {
	if s.publisher == nil {
		return
	}
	event := map[string]any{
		"campaignId":  c.ID,
		"originalUrl": c.OriginalURL,
		"productName": c.ProductName,
		"createdAt":   c.CreatedAt,
	}
	if _, err := s.publisher.Publish(ctx, s.topic, event); err != nil {
		s.logger.Warn("publish campaign-created event failed",
			zap.String("request_id", requestIDFrom(ctx)),
			zap.Int64("id", c.ID),
			zap.Error(err),
		)
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeMessage(s.logger, w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		metrics.ObserveHTTPRequest(r.Method, route, ww.status, time.Since(start))
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// requestLogger returns the server logger annotated with the request ID.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return s.logger.With(zap.String("request_id", requestIDFrom(r.Context())))
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeMessage(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"message": msg})
}

func writePlain(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(msg)); err != nil {
		logger.Error("write response failed", zap.Error(err))
	}
}
