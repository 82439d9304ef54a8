package invoke

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Metrics holds Prometheus collectors for LLM calls on its own registry.
// It implements Callback.
type Metrics struct {
	registry *prometheus.Registry

	Calls     *prometheus.CounterVec
	InFlight  prometheus.Gauge
	Duration  *prometheus.HistogramVec
	Attempts  *prometheus.HistogramVec
	TokensIn  *prometheus.CounterVec
	TokensOut *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_calls_total",
				Help:      "Total number of LLM calls by operation and status",
			},
			[]string{"operation", "status"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "llm_calls_in_flight",
				Help:      "Number of LLM calls currently running",
			},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_call_duration_seconds",
				Help:      "LLM call duration in seconds, including retries",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"operation"},
		),
		Attempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_call_attempts",
				Help:      "Provider requests made per LLM call",
				Buckets:   []float64{1, 2, 3, 4, 6, 8},
			},
			[]string{"operation"},
		),
		TokensIn: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_prompt_tokens_total",
				Help:      "Prompt tokens reported by the provider",
			},
			[]string{"operation"},
		),
		TokensOut: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_completion_tokens_total",
				Help:      "Completion tokens reported by the provider",
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(m.Calls, m.InFlight, m.Duration, m.Attempts, m.TokensIn, m.TokensOut)
	return m
}

// Registry returns the registry holding these collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// OnStart implements Callback.
func (m *Metrics) OnStart(ctx context.Context, _ *Call) context.Context {
	m.InFlight.Inc()
	return ctx
}

// OnEnd implements Callback.
func (m *Metrics) OnEnd(_ context.Context, call *Call, resp *driven.GenerateResponse, err error) {
	m.InFlight.Dec()

	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Calls.WithLabelValues(call.Operation, status).Inc()
	m.Duration.WithLabelValues(call.Operation).Observe(time.Since(call.StartedAt).Seconds())
	m.Attempts.WithLabelValues(call.Operation).Observe(float64(call.Attempt))

	if resp != nil {
		m.TokensIn.WithLabelValues(call.Operation).Add(float64(resp.Usage.PromptTokens))
		m.TokensOut.WithLabelValues(call.Operation).Add(float64(resp.Usage.CompletionTokens))
	}
}
