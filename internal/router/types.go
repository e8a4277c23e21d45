// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ROUTER: Complexity levels, routing strategies and routing decisions
package router

import (
	"fmt"
	"strings"
)

// ============================================================================
// QUERY COMPLEXITY
// ============================================================================

// QueryComplexity represents the complexity level of a query.
// Levels are ordinal: a higher value always means a harder query.
type QueryComplexity int

const (
	// ComplexityTrivial represents lookups and one-line facts.
	ComplexityTrivial QueryComplexity = iota
	// ComplexitySimple represents basic questions, single-step reasoning.
	ComplexitySimple
	// ComplexityModerate represents multi-step reasoning with some context.
	ComplexityModerate
	// ComplexityHard represents analysis, synthesis and code review.
	ComplexityHard
	// ComplexityExpert represents novel problems and architectural decisions.
	ComplexityExpert
)

// AllComplexities lists every level in ascending order.
var AllComplexities = []QueryComplexity{
	ComplexityTrivial,
	ComplexitySimple,
	ComplexityModerate,
	ComplexityHard,
	ComplexityExpert,
}

// String returns the lowercase name of the complexity level.
func (c QueryComplexity) String() string {
	switch c {
	case ComplexityTrivial:
		return "trivial"
	case ComplexitySimple:
		return "simple"
	case ComplexityModerate:
		return "moderate"
	case ComplexityHard:
		return "hard"
	case ComplexityExpert:
		return "expert"
	default:
		return fmt.Sprintf("QueryComplexity(%d)", c)
	}
}

// Valid reports whether c is one of the defined levels.
func (c QueryComplexity) Valid() bool {
	return c >= ComplexityTrivial && c <= ComplexityExpert
}

// ParseComplexity parses a complexity name. Matching is case-insensitive and
// "complex" is accepted as an alias for hard.
func ParseComplexity(s string) (QueryComplexity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trivial":
		return ComplexityTrivial, true
	case "simple":
		return ComplexitySimple, true
	case "moderate", "medium":
		return ComplexityModerate, true
	case "hard", "complex":
		return ComplexityHard, true
	case "expert":
		return ComplexityExpert, true
	default:
		return ComplexityTrivial, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c QueryComplexity) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid complexity %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *QueryComplexity) UnmarshalText(text []byte) error {
	parsed, ok := ParseComplexity(string(text))
	if !ok {
		return fmt.Errorf("unknown complexity %q", string(text))
	}
	*c = parsed
	return nil
}

// ============================================================================
// STRATEGY
// ============================================================================

// Strategy is how a request will be served.
type Strategy int

const (
	// StrategyCascade tries the draft model first and gates it on quality.
	StrategyCascade Strategy = iota
	// StrategyDirectBest goes straight to the verifier-tier model.
	StrategyDirectBest
)

// String returns the strategy name as it appears in logs and events.
func (s Strategy) String() string {
	switch s {
	case StrategyCascade:
		return "CASCADE"
	case StrategyDirectBest:
		return "DIRECT_BEST"
	default:
		return fmt.Sprintf("Strategy(%d)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ============================================================================
// ROUTING DECISION
// ============================================================================

// DecisionMetadata records the inputs a routing decision was made from.
type DecisionMetadata struct {
	Complexity       QueryComplexity `json:"complexity"`
	DomainConfidence float64         `json:"domain_confidence"`
	ForceDirect      bool            `json:"force_direct"`
	CascadeEnabled   bool            `json:"cascade_enabled"`
}

// RoutingDecision is the single routing verdict made for a request.
type RoutingDecision struct {
	// Strategy is the selected routing strategy.
	Strategy Strategy `json:"strategy"`
	// Confidence in the decision, between 0 and 1.
	Confidence float64 `json:"confidence"`
	// Reason explains why this routing decision was made.
	Reason string `json:"reason"`
	// Metadata carries the inputs of the decision.
	Metadata DecisionMetadata `json:"metadata"`
}

// String returns a human-readable summary of the routing decision.
func (r RoutingDecision) String() string {
	return fmt.Sprintf("%s (complexity=%s, confidence=%.2f): %s",
		r.Strategy, r.Metadata.Complexity, r.Confidence, r.Reason)
}

// ============================================================================
// QUERY LIMITS
// ============================================================================

// MaxQueryLength is the maximum allowed query length in bytes (100KB).
// Queries exceeding this limit are rejected before any model call.
const MaxQueryLength = 100000

// ValidateQuery checks if the query length is within acceptable limits.
func ValidateQuery(query string) error {
	if len(query) > MaxQueryLength {
		return fmt.Errorf("query too long: %d bytes (max %d)", len(query), MaxQueryLength)
	}
	return nil
}
