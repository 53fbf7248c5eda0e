package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

// PipelineMetrics records analysis stage and LLM call outcomes. It is embedded
// by both the API and worker metric sets.
type PipelineMetrics struct {
	service string

	stageTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	llmCallsTotal *prometheus.CounterVec
	llmDuration   *prometheus.HistogramVec
}

func newPipelineMetrics(service string) *PipelineMetrics {
	return &PipelineMetrics{
		service: service,
		stageTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docflow",
				Subsystem: "pipeline",
				Name:      "stage_total",
				Help:      "Pipeline stage completions by operation, stage and outcome.",
			},
			[]string{"service", "operation", "stage", "outcome", "error_code"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "docflow",
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"service", "operation", "stage"},
		),
		llmCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "docflow",
				Subsystem: "llm",
				Name:      "calls_total",
				Help:      "LLM generate calls by provider and outcome.",
			},
			[]string{"service", "provider", "outcome"},
		),
		llmDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "docflow",
				Subsystem: "llm",
				Name:      "call_duration_seconds",
				Help:      "LLM generate duration in seconds, retries included.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 40, 60, 120},
			},
			[]string{"service", "provider"},
		),
	}
}

func (m *PipelineMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.stageTotal, m.stageDuration, m.llmCallsTotal, m.llmDuration}
}

func (m *PipelineMetrics) ObserveStage(operation string, stage domain.Stage, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.stageTotal.WithLabelValues(m.service, operation, string(stage), outcome, domain.ErrorCode(err)).Inc()
	m.stageDuration.WithLabelValues(m.service, operation, string(stage)).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveLLMCall(provider domain.Provider, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.llmCallsTotal.WithLabelValues(m.service, string(provider), outcome).Inc()
	m.llmDuration.WithLabelValues(m.service, string(provider)).Observe(duration.Seconds())
}
