package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kirillkom/docflow-ai/internal/config"
	"github.com/kirillkom/docflow-ai/internal/core/domain"
	"github.com/kirillkom/docflow-ai/internal/core/ports"
	"github.com/kirillkom/docflow-ai/internal/observability/metrics"
)

const maxRequestBodyBytes = 16 << 20

type Router struct {
	cfg       config.Config
	analyzer  ports.DocumentAnalyzer
	providers ports.ProviderAdmin
	journal   ports.JournalReader
	metrics   *metrics.HTTPServerMetrics
	validator *requestValidator
}

func NewRouter(
	cfg config.Config,
	analyzer ports.DocumentAnalyzer,
	providers ports.ProviderAdmin,
	journal ports.JournalReader,
	httpMetrics *metrics.HTTPServerMetrics,
) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	return &Router{
		cfg:       cfg,
		analyzer:  analyzer,
		providers: providers,
		journal:   journal,
		metrics:   httpMetrics,
		validator: validator,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIDHeader, "Retry-After"},
		MaxAge:         300,
	}))

	mux.Get("/health", rt.health)
	if rt.metrics != nil && rt.cfg.MetricsEnabled {
		mux.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	mux.Group(func(r chi.Router) {
		r.Use(rt.validator.middleware)
		r.Post("/analyze", rt.analyze)
		r.Post("/review", rt.review)
	})
	mux.Get("/analyses/{request_id}", rt.getAnalysis)

	mux.Route("/ai", func(r chi.Router) {
		r.Get("/providers", rt.listProviders)
		r.Get("/config", rt.providerConfig)
		r.Get("/status", rt.providerStatus)
		r.With(adminAuthMiddleware(rt.cfg.APIAdminToken)).Post("/provider/{name}", rt.switchProvider)
		r.Post("/test-provider/{name}", rt.testProvider)
	})

	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorMessage(w, r, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorMessage(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait, rt.recordRejected)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.recordRejected)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.serviceName(), handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) serviceName() string {
	if rt.cfg.AppName == "" {
		return "docflow-api"
	}
	return rt.cfg.AppName
}

func (rt *Router) recordRejected(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(rt.serviceName(), reason)
	}
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": rt.serviceName(),
		"env":     rt.cfg.AppEnv,
	})
}

func (rt *Router) analyze(w http.ResponseWriter, r *http.Request) {
	rt.runAnalysis(w, r, rt.analyzer.Analyze)
}

func (rt *Router) review(w http.ResponseWriter, r *http.Request) {
	rt.runAnalysis(w, r, rt.analyzer.Review)
}

type analysisFunc func(ctx context.Context, requestID string, req domain.AnalysisRequest) (*domain.AnalysisResult, error)

func (rt *Router) runAnalysis(w http.ResponseWriter, r *http.Request, run analysisFunc) {
	var req domain.AnalysisRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := run(r.Context(), requestIDFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getAnalysis(w http.ResponseWriter, r *http.Request) {
	requestID := strings.TrimSpace(chi.URLParam(r, "request_id"))
	if requestID == "" {
		writeError(w, r, fmt.Errorf("%w: request id is required", domain.ErrInvalidInput))
		return
	}
	entry, err := rt.journal.GetByRequestID(r.Context(), requestID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (rt *Router) listProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": rt.providers.ListProviders()})
}

func (rt *Router) providerConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.providers.Config())
}

func (rt *Router) providerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": rt.providers.Status(r.Context())})
}

func (rt *Router) switchProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	provider, err := rt.providers.Switch(name)
	if err != nil {
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			err = fmt.Errorf("%w: cannot initialize provider %s: %v", domain.ErrInvalidInput, name, err)
		}
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordProviderSwitch(rt.serviceName(), provider)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Provider switched to " + string(provider),
		"provider": provider,
		"status":   "success",
	})
}

func (rt *Router) testProvider(w http.ResponseWriter, r *http.Request) {
	report, err := rt.providers.Test(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, out any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(out); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body exceeds %d bytes", domain.ErrInvalidInput, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", domain.ErrInvalidInput)
		default:
			return fmt.Errorf("%w: invalid json: %v", domain.ErrInvalidInput, err)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
