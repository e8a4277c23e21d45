// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ROUTER: Strategy selection ahead of any model call
package router

import (
	"sync"
)

// ============================================================================
// PRE-ROUTER CONFIGURATION
// ============================================================================

// DefaultCascadeComplexities are the levels cascaded when nothing else is
// configured.
var DefaultCascadeComplexities = []QueryComplexity{
	ComplexityTrivial,
	ComplexitySimple,
	ComplexityModerate,
}

// PreRouterConfig controls the strategy decision.
type PreRouterConfig struct {
	// CascadeEnabled turns the cascade on or off globally.
	CascadeEnabled bool
	// CascadeComplexities lists the levels eligible for a draft attempt.
	CascadeComplexities []QueryComplexity
}

// DefaultPreRouterConfig returns the configuration used when none is given.
func DefaultPreRouterConfig() PreRouterConfig {
	levels := make([]QueryComplexity, len(DefaultCascadeComplexities))
	copy(levels, DefaultCascadeComplexities)
	return PreRouterConfig{CascadeEnabled: true, CascadeComplexities: levels}
}

// RouteOptions are the per-request overrides.
type RouteOptions struct {
	// ForceDirect skips the cascade for this request.
	ForceDirect bool
	// CascadeEnabled overrides the configured global switch when set.
	CascadeEnabled *bool
	// DomainConfidence is carried into the decision metadata.
	DomainConfidence float64
	// SingleCandidate is set when only one model can serve the request, which
	// leaves nothing to escalate to.
	SingleCandidate bool
}

// Decision reasons.
const (
	ReasonForced          = "forced direct routing"
	ReasonDisabled        = "cascade disabled"
	ReasonSingleCandidate = "single candidate model"
	ReasonEligible        = "complexity eligible for cascade"
	ReasonTooComplex      = "complexity requires best model"
)

// ============================================================================
// PRE-ROUTER STATS
// ============================================================================

// PreRouterStats counts routing decisions. Safe for concurrent use.
type PreRouterStats struct {
	mu              sync.RWMutex
	total           int
	byComplexity    map[QueryComplexity]int
	byStrategy      map[Strategy]int
	forcedDirect    int
	cascadeDisabled int
}

// PreRouterStatsSnapshot is a read-only copy of PreRouterStats.
type PreRouterStatsSnapshot struct {
	TotalQueries    int            `json:"total_queries"`
	ByComplexity    map[string]int `json:"by_complexity"`
	ByStrategy      map[string]int `json:"by_strategy"`
	ForcedDirect    int            `json:"forced_direct"`
	CascadeDisabled int            `json:"cascade_disabled"`
	CascadeRate     float64        `json:"cascade_rate"`
	DirectRate      float64        `json:"direct_rate"`
}

// NewPreRouterStats creates an empty stats object.
func NewPreRouterStats() *PreRouterStats {
	return &PreRouterStats{
		byComplexity: make(map[QueryComplexity]int),
		byStrategy:   make(map[Strategy]int),
	}
}

// Record adds one decision to the counters.
func (s *PreRouterStats) Record(d RoutingDecision) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.byComplexity[d.Metadata.Complexity]++
	s.byStrategy[d.Strategy]++
	switch d.Reason {
	case ReasonForced:
		s.forcedDirect++
	case ReasonDisabled:
		s.cascadeDisabled++
	}
}

// Snapshot returns a copy of the counters with derived rates.
func (s *PreRouterStats) Snapshot() PreRouterStatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := PreRouterStatsSnapshot{
		TotalQueries:    s.total,
		ByComplexity:    make(map[string]int, len(s.byComplexity)),
		ByStrategy:      make(map[string]int, len(s.byStrategy)),
		ForcedDirect:    s.forcedDirect,
		CascadeDisabled: s.cascadeDisabled,
	}
	for c, n := range s.byComplexity {
		snap.ByComplexity[c.String()] = n
	}
	for st, n := range s.byStrategy {
		snap.ByStrategy[st.String()] = n
	}
	if s.total > 0 {
		snap.CascadeRate = float64(s.byStrategy[StrategyCascade]) / float64(s.total)
		snap.DirectRate = float64(s.byStrategy[StrategyDirectBest]) / float64(s.total)
	}
	return snap
}

// Reset clears all counters.
func (s *PreRouterStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total = 0
	s.byComplexity = make(map[QueryComplexity]int)
	s.byStrategy = make(map[Strategy]int)
	s.forcedDirect = 0
	s.cascadeDisabled = 0
}

// ============================================================================
// PRE-ROUTER
// ============================================================================

// PreRouter turns a complexity verdict and overrides into a strategy.
type PreRouter struct {
	cascadeEnabled bool
	eligible       map[QueryComplexity]bool
	stats          *PreRouterStats
}

// PreRouterOption configures a PreRouter.
type PreRouterOption func(*PreRouter)

// WithPreRouterStats injects the stats object the router records into.
func WithPreRouterStats(s *PreRouterStats) PreRouterOption {
	return func(p *PreRouter) { p.stats = s }
}

// NewPreRouter creates a pre-router. An empty eligible list falls back to
// DefaultCascadeComplexities.
func NewPreRouter(cfg PreRouterConfig, opts ...PreRouterOption) *PreRouter {
	levels := cfg.CascadeComplexities
	if len(levels) == 0 {
		levels = DefaultCascadeComplexities
	}
	p := &PreRouter{
		cascadeEnabled: cfg.CascadeEnabled,
		eligible:       make(map[QueryComplexity]bool, len(levels)),
	}
	for _, c := range levels {
		p.eligible[c] = true
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.stats == nil {
		p.stats = NewPreRouterStats()
	}
	return p
}

// Route picks the strategy. Checks run in priority order: forced direct,
// global disable, single candidate, then complexity eligibility.
func (p *PreRouter) Route(c ComplexityResult, opts RouteOptions) RoutingDecision {
	enabled := p.cascadeEnabled
	if opts.CascadeEnabled != nil {
		enabled = *opts.CascadeEnabled
	}

	decision := RoutingDecision{
		Metadata: DecisionMetadata{
			Complexity:       c.Complexity,
			DomainConfidence: opts.DomainConfidence,
			ForceDirect:      opts.ForceDirect,
			CascadeEnabled:   enabled,
		},
	}

	switch {
	case opts.ForceDirect:
		decision.Strategy = StrategyDirectBest
		decision.Confidence = 1.0
		decision.Reason = ReasonForced
	case !enabled:
		decision.Strategy = StrategyDirectBest
		decision.Confidence = 1.0
		decision.Reason = ReasonDisabled
	case opts.SingleCandidate:
		decision.Strategy = StrategyDirectBest
		decision.Confidence = 1.0
		decision.Reason = ReasonSingleCandidate
	case p.eligible[c.Complexity]:
		decision.Strategy = StrategyCascade
		decision.Confidence = c.Confidence
		decision.Reason = ReasonEligible
	default:
		decision.Strategy = StrategyDirectBest
		decision.Confidence = c.Confidence
		decision.Reason = ReasonTooComplex
	}

	p.stats.Record(decision)
	return decision
}

// Eligible reports whether a level is configured for cascading.
func (p *PreRouter) Eligible(c QueryComplexity) bool {
	return p.eligible[c]
}

// Stats returns a snapshot of the router's counters.
func (p *PreRouter) Stats() PreRouterStatsSnapshot {
	return p.stats.Snapshot()
}

// ResetStats clears the router's counters.
func (p *PreRouter) ResetStats() {
	p.stats.Reset()
}
