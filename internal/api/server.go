package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/siteintel/internal/analytics"
	"github.com/JakeFAU/siteintel/internal/config"
	"github.com/JakeFAU/siteintel/internal/metrics"
	"github.com/JakeFAU/siteintel/internal/service"
)

const maxBodyBytes = 1 << 20

// Analyzer runs the analysis operations behind the HTTP routes.
type Analyzer interface {
	Analyze(ctx context.Context, req analytics.AnalysisRequest) (analytics.AnalysisResponse, error)
	AnalyzeTechStack(ctx context.Context, req analytics.AnalysisRequest) (analytics.AnalysisResponse, error)
}

// Server wires HTTP handlers to the analyzer.
type Server struct {
	router   chi.Router
	analyzer Analyzer
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(analyzer Analyzer, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		analyzer: analyzer,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware(cfg.Server.CORSOrigins))
	r.Use(timeoutMiddleware(cfg.RequestTimeout()))

	r.Get("/", s.root)
	r.Get("/health", s.health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Options("/analyze", s.options)
		r.Options("/analyze-tech-stack", s.options)
		r.Group(func(r chi.Router) {
			if cfg.Auth.Enabled {
				r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
			}
			r.Post("/analyze", s.analyze)
			r.Post("/analyze-tech-stack", s.analyzeTechStack)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "SimilarWeb Analysis API",
		"usage":   "POST /api/analyze with { 'websites': ['domain1.com', 'domain2.com'] }",
	})
}

// options answers bare OPTIONS requests; CORS preflights never reach it.
func (s *Server) options(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	s.handleAnalysis(w, r, "analyze", s.analyzer.Analyze)
}

func (s *Server) analyzeTechStack(w http.ResponseWriter, r *http.Request) {
	s.handleAnalysis(w, r, "analyze-tech-stack", s.analyzer.AnalyzeTechStack)
}

type analysisFunc func(context.Context, analytics.AnalysisRequest) (analytics.AnalysisResponse, error)

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request, op string, run analysisFunc) {
	req, err := decodeRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := run(r.Context(), req)
	if err != nil {
		if service.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("analysis failed",
			zap.String("op", op),
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (analytics.AnalysisRequest, error) {
	var req analytics.AnalysisRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return req, fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return req, errors.New("request body is required")
		default:
			return req, errors.New("invalid JSON body")
		}
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
