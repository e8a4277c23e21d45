// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeranaias/rigrun-cascade/internal/cascade"
	cerrors "github.com/jeranaias/rigrun-cascade/internal/errors"
	"github.com/jeranaias/rigrun-cascade/internal/router"
)

// Outcome labels for requests_total.
const (
	OutcomeAccepted  = "accepted"
	OutcomeEscalated = "escalated"
	OutcomeDirect    = "direct"
)

// =============================================================================
// PROMETHEUS METRICS
// =============================================================================

// Metrics exports cascade activity to Prometheus. It implements
// cascade.Observer.
type Metrics struct {
	requests     *prometheus.CounterVec
	errors       *prometheus.CounterVec
	cost         *prometheus.CounterVec
	tokens       *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	draftQuality prometheus.Histogram
	savings      prometheus.Histogram
	complexity   *prometheus.CounterVec
	domain       *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

var _ cascade.Observer = (*Metrics)(nil)

// NewMetrics creates the collectors under namespace and registers them with
// reg. A nil reg uses a fresh registry.
func NewMetrics(namespace string, reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Completed requests by routing strategy and outcome",
			},
			[]string{"strategy", "outcome"}, // outcome: accepted|escalated|direct
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Failed requests by error kind and stage",
			},
			[]string{"kind", "stage"},
		),
		cost: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cost_usd_total",
				Help:      "Model spend in USD by tier",
			},
			[]string{"tier"}, // tier: draft|verifier
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_total",
				Help:      "Tokens consumed by the model that produced the response",
			},
			[]string{"model", "type"}, // type: input|output
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "End-to-end request latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		draftQuality: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "draft_quality_score",
				Help:      "Quality score of judged drafts",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),
		savings: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "savings_ratio",
				Help:      "Fraction saved by accepted drafts against the verifier price",
				Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.9, 0.95, 0.99},
			},
		),
		complexity: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "complexity_total",
				Help:      "Requests by detected complexity",
			},
			[]string{"complexity"},
		),
		domain: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "domain_total",
				Help:      "Requests by detected domain",
			},
			[]string{"domain"},
		),
		gatherer: reg,
	}

	for _, c := range []prometheus.Collector{
		m.requests, m.errors, m.cost, m.tokens, m.latency,
		m.draftQuality, m.savings, m.complexity, m.domain,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordResult implements cascade.Observer.
func (m *Metrics) RecordResult(r *cascade.Result) {
	if r == nil {
		return
	}

	outcome := Outcome(r)
	m.requests.WithLabelValues(r.Routing.Strategy.String(), outcome).Inc()
	m.latency.WithLabelValues(outcome).Observe(float64(r.LatencyMs) / 1000)
	m.complexity.WithLabelValues(r.Complexity.Complexity.String()).Inc()
	m.domain.WithLabelValues(r.Domain.Domain.String()).Inc()

	if r.DraftCost > 0 {
		tier := string(cascade.TierDraft)
		if outcome == OutcomeDirect {
			tier = string(cascade.TierVerifier)
		}
		m.cost.WithLabelValues(tier).Add(r.DraftCost)
	}
	if r.VerifierCost > 0 {
		m.cost.WithLabelValues(string(cascade.TierVerifier)).Add(r.VerifierCost)
	}

	m.tokens.WithLabelValues(r.ModelName, "input").Add(float64(r.Usage.InputTokens))
	m.tokens.WithLabelValues(r.ModelName, "output").Add(float64(r.Usage.OutputTokens))

	if r.DraftQuality != nil {
		m.draftQuality.Observe(r.DraftQuality.Score)
	}
	if outcome == OutcomeAccepted {
		m.savings.Observe(r.SavingsPercentage)
	}
}

// RecordError implements cascade.Observer.
func (m *Metrics) RecordError(err error) {
	if err == nil {
		return
	}
	stage := "none"
	if s, ok := cerrors.StageOf(err); ok {
		stage = s.String()
	}
	m.errors.WithLabelValues(ErrorKind(err), stage).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Outcome labels how a result was produced.
func Outcome(r *cascade.Result) string {
	switch {
	case r.Routing.Strategy == router.StrategyDirectBest:
		return OutcomeDirect
	case r.Accepted:
		return OutcomeAccepted
	default:
		return OutcomeEscalated
	}
}

// ErrorKind labels an engine error.
func ErrorKind(err error) string {
	switch {
	case cerrors.IsConfiguration(err):
		return "configuration"
	case cerrors.IsFatal(err) && errors.Is(err, context.Canceled):
		return "canceled"
	case cerrors.IsFatal(err):
		return "provider_fatal"
	case cerrors.IsTransient(err):
		return "provider_transient"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
