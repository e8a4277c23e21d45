// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/jeranaias/rigrun-cascade/internal/errors"
	"github.com/jeranaias/rigrun-cascade/internal/quality"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := NewMetrics("test", prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestMetrics_RecordResult(t *testing.T) {
	m := newTestMetrics(t)

	accepted := acceptedResult()
	accepted.DraftQuality = &quality.QualityScore{Score: 0.82}
	m.RecordResult(accepted)
	m.RecordResult(escalatedResult())
	m.RecordResult(directResult())
	m.RecordResult(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("CASCADE", OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("CASCADE", OutcomeEscalated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("DIRECT_BEST", OutcomeDirect)))

	assert.InDelta(t, 0.00004, testutil.ToFloat64(m.cost.WithLabelValues("draft")), 1e-12)
	assert.InDelta(t, 0.003, testutil.ToFloat64(m.cost.WithLabelValues("verifier")), 1e-12)

	assert.Equal(t, 100.0, testutil.ToFloat64(m.tokens.WithLabelValues("small", "input")))
	assert.Equal(t, 210.0, testutil.ToFloat64(m.tokens.WithLabelValues("large", "output")))

	assert.Equal(t, 1, testutil.CollectAndCount(m.draftQuality))
	assert.Equal(t, 3, testutil.CollectAndCount(m.latency))
}

func TestMetrics_SavingsOnlyForAcceptedDrafts(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordResult(directResult())
	m.RecordResult(escalatedResult())

	families, err := m.gatherer.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "test_savings_ratio" {
			assert.Zero(t, f.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
}

func TestMetrics_RecordError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		kind  string
		stage string
	}{
		{"configuration", cerrors.NewConfigurationError("no models configured"), "configuration", "none"},
		{"fatal verifier", &cerrors.ProviderFatalError{Model: "large", Stage: cerrors.StageVerifier, Err: errors.New("500")}, "provider_fatal", "verifier"},
		{"cancelled draft", &cerrors.ProviderFatalError{Model: "small", Stage: cerrors.StageDraft, Err: context.Canceled}, "canceled", "draft"},
		{"transient", &cerrors.ProviderTransientError{Model: "small", Stage: cerrors.StageDraft, Err: errors.New("429")}, "provider_transient", "draft"},
		{"bare cancellation", fmt.Errorf("stream: %w", context.DeadlineExceeded), "canceled", "none"},
		{"other", errors.New("boom"), "other", "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMetrics(t)
			m.RecordError(tt.err)
			m.RecordError(nil)

			assert.Equal(t, tt.kind, ErrorKind(tt.err))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues(tt.kind, tt.stage)))
		})
	}
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics("dup", reg)
	require.NoError(t, err)

	_, err = NewMetrics("dup", reg)
	assert.Error(t, err)
}

func TestMetrics_Handler(t *testing.T) {
	m, err := NewMetrics("rigrun_cascade", nil)
	require.NoError(t, err)
	m.RecordResult(acceptedResult())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rigrun_cascade_requests_total{outcome="accepted",strategy="CASCADE"} 1`)
}
