// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

// TestForceDirectAlwaysWins verifies forced routing for every complexity.
func TestForceDirectAlwaysWins(t *testing.T) {
	p := NewPreRouter(DefaultPreRouterConfig())
	for _, c := range AllComplexities {
		for _, enabled := range []bool{true, false} {
			d := p.Route(ComplexityResult{Complexity: c, Confidence: 0.6}, RouteOptions{
				ForceDirect:    true,
				CascadeEnabled: boolPtr(enabled),
			})
			if d.Strategy != StrategyDirectBest || d.Confidence != 1.0 {
				t.Errorf("%v enabled=%v: got %v conf %v", c, enabled, d.Strategy, d.Confidence)
			}
			if d.Reason != ReasonForced {
				t.Errorf("reason = %q", d.Reason)
			}
		}
	}
}

// TestPreRouterPriority tests the order in which routing rules apply.
func TestPreRouterPriority(t *testing.T) {
	tests := []struct {
		name       string
		cfg        PreRouterConfig
		complexity QueryComplexity
		opts       RouteOptions
		strategy   Strategy
		reason     string
	}{
		{"disabled globally", PreRouterConfig{CascadeEnabled: false}, ComplexityTrivial, RouteOptions{}, StrategyDirectBest, ReasonDisabled},
		{"disabled per request", DefaultPreRouterConfig(), ComplexityTrivial, RouteOptions{CascadeEnabled: boolPtr(false)}, StrategyDirectBest, ReasonDisabled},
		{"enabled per request", PreRouterConfig{CascadeEnabled: false}, ComplexitySimple, RouteOptions{CascadeEnabled: boolPtr(true)}, StrategyCascade, ReasonEligible},
		{"single candidate", DefaultPreRouterConfig(), ComplexityTrivial, RouteOptions{SingleCandidate: true}, StrategyDirectBest, ReasonSingleCandidate},
		{"trivial cascades", DefaultPreRouterConfig(), ComplexityTrivial, RouteOptions{}, StrategyCascade, ReasonEligible},
		{"moderate cascades", DefaultPreRouterConfig(), ComplexityModerate, RouteOptions{}, StrategyCascade, ReasonEligible},
		{"hard goes direct", DefaultPreRouterConfig(), ComplexityHard, RouteOptions{}, StrategyDirectBest, ReasonTooComplex},
		{"expert goes direct", DefaultPreRouterConfig(), ComplexityExpert, RouteOptions{}, StrategyDirectBest, ReasonTooComplex},
		{
			"custom eligible set",
			PreRouterConfig{CascadeEnabled: true, CascadeComplexities: []QueryComplexity{ComplexityHard}},
			ComplexityHard, RouteOptions{}, StrategyCascade, ReasonEligible,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewPreRouter(tt.cfg).Route(ComplexityResult{Complexity: tt.complexity, Confidence: 0.8}, tt.opts)
			if d.Strategy != tt.strategy || d.Reason != tt.reason {
				t.Errorf("got %v/%q, want %v/%q", d.Strategy, d.Reason, tt.strategy, tt.reason)
			}
			if d.Metadata.Complexity != tt.complexity {
				t.Errorf("metadata complexity = %v", d.Metadata.Complexity)
			}
		})
	}
}

// TestArithmeticQueryCascades runs detection and routing end to end.
func TestArithmeticQueryCascades(t *testing.T) {
	c := NewComplexityDetector().Detect("What is 2+2?")
	d := NewPreRouter(DefaultPreRouterConfig()).Route(c, RouteOptions{})

	assert.Equal(t, ComplexityTrivial, c.Complexity)
	assert.Equal(t, StrategyCascade, d.Strategy)
	assert.Equal(t, ComplexityTrivial, d.Metadata.Complexity)
	assert.True(t, d.Metadata.CascadeEnabled)
}

// TestPreRouterStats verifies counters, rates and reset.
func TestPreRouterStats(t *testing.T) {
	stats := NewPreRouterStats()
	p := NewPreRouter(DefaultPreRouterConfig(), WithPreRouterStats(stats))

	p.Route(ComplexityResult{Complexity: ComplexityTrivial}, RouteOptions{})
	p.Route(ComplexityResult{Complexity: ComplexitySimple}, RouteOptions{})
	p.Route(ComplexityResult{Complexity: ComplexityExpert}, RouteOptions{})
	p.Route(ComplexityResult{Complexity: ComplexityTrivial}, RouteOptions{ForceDirect: true})
	p.Route(ComplexityResult{Complexity: ComplexityTrivial}, RouteOptions{CascadeEnabled: boolPtr(false)})

	snap := p.Stats()
	require.Equal(t, 5, snap.TotalQueries)
	assert.Equal(t, 3, snap.ByComplexity["trivial"])
	assert.Equal(t, 2, snap.ByStrategy["CASCADE"])
	assert.Equal(t, 3, snap.ByStrategy["DIRECT_BEST"])
	assert.Equal(t, 1, snap.ForcedDirect)
	assert.Equal(t, 1, snap.CascadeDisabled)
	assert.InDelta(t, 0.4, snap.CascadeRate, 1e-9)
	assert.InDelta(t, 0.6, snap.DirectRate, 1e-9)

	p.ResetStats()
	assert.Equal(t, PreRouterStatsSnapshot{
		ByComplexity: map[string]int{},
		ByStrategy:   map[string]int{},
	}, p.Stats())
}

// TestPreRouterStatsIsolated verifies two routers never share counters.
func TestPreRouterStatsIsolated(t *testing.T) {
	a := NewPreRouter(DefaultPreRouterConfig())
	b := NewPreRouter(DefaultPreRouterConfig())
	a.Route(ComplexityResult{}, RouteOptions{})
	assert.Equal(t, 1, a.Stats().TotalQueries)
	assert.Equal(t, 0, b.Stats().TotalQueries)
}

// TestPreRouterConcurrent verifies the counters under concurrent use.
func TestPreRouterConcurrent(t *testing.T) {
	p := NewPreRouter(DefaultPreRouterConfig())
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.Route(ComplexityResult{Complexity: AllComplexities[i%len(AllComplexities)]}, RouteOptions{})
		}(i)
	}
	wg.Wait()

	snap := p.Stats()
	assert.Equal(t, 100, snap.TotalQueries)
	assert.Equal(t, 60, snap.ByStrategy["CASCADE"])
}
