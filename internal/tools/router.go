// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"sort"
	"sync"

	cerrors "github.com/jeranaias/rigrun-cascade/internal/errors"
	"github.com/jeranaias/rigrun-cascade/internal/model"
)

// DefaultToolQuality ranks models that declare tool support without a score.
const DefaultToolQuality = 0.5

// =============================================================================
// TOOL ROUTER STATS
// =============================================================================

// RouterStats counts filter calls. Safe for concurrent use.
type RouterStats struct {
	mu             sync.RWMutex
	totalFilters   int
	withTools      int
	noCapable      int
	modelsIn       int
	modelsOut      int
	suggestions    int
	schemaFailures int
}

// RouterStatsSnapshot is a read-only copy of RouterStats.
type RouterStatsSnapshot struct {
	TotalFilters         int     `json:"total_filters"`
	FiltersWithTools     int     `json:"filters_with_tools"`
	NoCapableModel       int     `json:"no_capable_model"`
	Suggestions          int     `json:"suggestions"`
	SchemaFailures       int     `json:"schema_failures"`
	ToolPresentRate      float64 `json:"tool_present_rate"`
	NoCapableModelRate   float64 `json:"no_capable_model_rate"`
	AvgModelCountReduced float64 `json:"avg_model_count_reduced"`
}

// NewRouterStats creates an empty stats object.
func NewRouterStats() *RouterStats {
	return &RouterStats{}
}

func (s *RouterStats) recordFilter(hadTools bool, in, out int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalFilters++
	if !hadTools {
		return
	}
	s.withTools++
	s.modelsIn += in
	s.modelsOut += out
	if out == 0 {
		s.noCapable++
	}
}

func (s *RouterStats) recordSuggestion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestions++
}

func (s *RouterStats) recordSchemaFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemaFailures++
}

// Snapshot returns a copy of the counters with derived rates.
func (s *RouterStats) Snapshot() RouterStatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := RouterStatsSnapshot{
		TotalFilters:     s.totalFilters,
		FiltersWithTools: s.withTools,
		NoCapableModel:   s.noCapable,
		Suggestions:      s.suggestions,
		SchemaFailures:   s.schemaFailures,
	}
	if s.totalFilters > 0 {
		snap.ToolPresentRate = float64(s.withTools) / float64(s.totalFilters)
	}
	if s.withTools > 0 {
		snap.NoCapableModelRate = float64(s.noCapable) / float64(s.withTools)
		snap.AvgModelCountReduced = float64(s.modelsIn-s.modelsOut) / float64(s.withTools)
	}
	return snap
}

// Reset clears all counters.
func (s *RouterStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalFilters = 0
	s.withTools = 0
	s.noCapable = 0
	s.modelsIn = 0
	s.modelsOut = 0
	s.suggestions = 0
	s.schemaFailures = 0
}

// =============================================================================
// TOOL ROUTER
// =============================================================================

// Router filters candidate models and schemas for tool-calling requests.
type Router struct {
	stats *RouterStats
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterStats injects the stats object the router records into.
func WithRouterStats(s *RouterStats) RouterOption {
	return func(r *Router) { r.stats = s }
}

// NewRouter creates a tool router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{}
	for _, opt := range opts {
		opt(r)
	}
	if r.stats == nil {
		r.stats = NewRouterStats()
	}
	return r
}

// FilterToolCapableModels keeps only models with native tool support when
// tools are present. Order is preserved. If nothing qualifies the request
// fails with a ConfigurationError naming every excluded model.
func (r *Router) FilterToolCapableModels(models []model.ModelConfig, tools []ToolSchema) ([]model.ModelConfig, error) {
	if len(tools) == 0 {
		r.stats.recordFilter(false, len(models), len(models))
		return models, nil
	}

	capable := make([]model.ModelConfig, 0, len(models))
	var excluded []string
	for _, m := range models {
		if m.SupportsTools {
			capable = append(capable, m)
		} else {
			excluded = append(excluded, m.Name)
		}
	}
	r.stats.recordFilter(true, len(models), len(capable))

	if len(capable) == 0 {
		return nil, &cerrors.ConfigurationError{
			Reason:    "no candidate model supports tool calling",
			Models:    excluded,
			ToolCount: len(tools),
		}
	}
	return capable, nil
}

// ValidateSchemas runs ValidateToolSchemas and converts blocking issues into
// a ConfigurationError.
func (r *Router) ValidateSchemas(tools []ToolSchema) (*ValidationResult, error) {
	result := ValidateToolSchemas(tools)
	if result.HasErrors() {
		r.stats.recordSchemaFailure()
		return result, &cerrors.ConfigurationError{
			Reason:    "malformed tool schema",
			ToolCount: len(tools),
			Issues:    result.ErrorStrings(),
		}
	}
	return result, nil
}

// SuggestModels ranks tool-capable models by tool quality (highest first),
// then blended cost (cheapest first), then name. A non-nil maxCost drops
// models whose blended per-1K cost exceeds it.
func (r *Router) SuggestModels(models []model.ModelConfig, tools []ToolSchema, maxCost *float64) []model.ModelConfig {
	r.stats.recordSuggestion()

	out := make([]model.ModelConfig, 0, len(models))
	for _, m := range models {
		if len(tools) > 0 && !m.SupportsTools {
			continue
		}
		if maxCost != nil && m.BlendedCostPer1K() > *maxCost {
			continue
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		qi, qj := out[i].ToolQualityOr(DefaultToolQuality), out[j].ToolQualityOr(DefaultToolQuality)
		if qi != qj {
			return qi > qj
		}
		ci, cj := out[i].BlendedCostPer1K(), out[j].BlendedCostPer1K()
		if ci != cj {
			return ci < cj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Stats returns a snapshot of the router's counters.
func (r *Router) Stats() RouterStatsSnapshot {
	return r.stats.Snapshot()
}

// ResetStats clears the router's counters.
func (r *Router) ResetStats() {
	r.stats.Reset()
}
