// Package server exposes the chart engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/natal-cli/internal/chart"
	"github.com/sells-group/natal-cli/internal/instant"
	"github.com/sells-group/natal-cli/internal/model"
	"github.com/sells-group/natal-cli/pkg/geocode"
)

// maxBodyBytes bounds chart request bodies.
const maxBodyBytes = 64 << 10

// Calculator computes charts.
type Calculator interface {
	Calculate(ctx context.Context, req chart.Request) (*chart.Chart, error)
}

// Locator resolves place names.
type Locator interface {
	Resolve(ctx context.Context, place string) (model.GeoLocation, error)
}

// Server holds the HTTP handlers.
type Server struct {
	calc           Calculator
	places         Locator
	metrics        http.Handler
	allowedOrigins []string
	timeout        time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithAllowedOrigins sets the CORS origins.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a Server.
func New(calc Calculator, places Locator, opts ...Option) *Server {
	s := &Server{
		calc:           calc,
		places:         places,
		allowedOrigins: []string{"*"},
		timeout:        30 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/charts", s.createChart)
		r.Get("/places", s.lookupPlace)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createChart computes a chart. ?format=record returns the flattened form.
func (s *Server) createChart(w http.ResponseWriter, r *http.Request) {
	var req chart.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := s.calc.Calculate(r.Context(), req)
	if err != nil {
		status, msg := classify(err)
		if status >= http.StatusInternalServerError {
			zap.L().Error("server: chart calculation failed",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Error(err),
			)
		}
		respondError(w, status, msg)
		return
	}

	if r.URL.Query().Get("format") == "record" {
		respondJSON(w, http.StatusCreated, c.Record())
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (s *Server) lookupPlace(w http.ResponseWriter, r *http.Request) {
	loc, err := s.places.Resolve(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		status, msg := classify(err)
		respondError(w, status, msg)
		return
	}
	if !loc.Found {
		respondJSON(w, http.StatusNotFound, loc)
		return
	}
	respondJSON(w, http.StatusOK, loc)
}

// classify maps engine errors onto a status and a message safe to show.
func classify(err error) (int, string) {
	var terr *instant.InvalidTimeError
	switch {
	case errors.As(err, &terr):
		return http.StatusBadRequest, terr.Error()
	case errors.Is(err, geocode.ErrEmptyInput):
		return http.StatusBadRequest, "birth place is required"
	case errors.Is(err, chart.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, chart.ErrLocationNotFound):
		return http.StatusUnprocessableEntity, "location not found, try a different city"
	case errors.Is(err, chart.ErrMissingTimezone):
		return http.StatusUnprocessableEntity, "no timezone is known for this location"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
