// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cascade

import (
	"github.com/jeranaias/rigrun-cascade/internal/model"
	"github.com/jeranaias/rigrun-cascade/internal/quality"
	"github.com/jeranaias/rigrun-cascade/internal/router"
	"github.com/jeranaias/rigrun-cascade/internal/tools"
)

// =============================================================================
// REQUEST
// =============================================================================

// Request is one routed completion.
type Request struct {
	// Query is used as a single user message when Messages is empty.
	Query    string
	Messages []model.Message

	// Models are the ordered candidates: draft tier first, verifier tier last.
	Models []model.ModelConfig

	// Tools offered to the model. Non-empty tools restrict candidates to
	// tool-capable models.
	Tools []tools.ToolSchema

	// Quality overrides the engine's text quality thresholds for this request.
	Quality *quality.Config

	// Routing overrides.
	ForceDirect    bool
	CascadeEnabled *bool
	ComplexityHint string
	Complexity     *router.QueryComplexity

	MaxTokens   int
	Temperature *float64
}

// messages returns the conversation sent to providers.
func (r Request) messages() []model.Message {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	return []model.Message{model.NewUserMessage(r.Query)}
}

// queryText is the text classified for complexity and domain.
func (r Request) queryText() string {
	if len(r.Messages) == 0 {
		return r.Query
	}
	return model.LastUserContent(r.Messages)
}

// =============================================================================
// RESULT
// =============================================================================

// Tier names which candidate produced the final answer.
type Tier string

const (
	TierDraft    Tier = "draft"
	TierVerifier Tier = "verifier"
)

// ValidationFailure explains why a draft was not accepted. It is a routing
// signal carried on the result, never returned as an error.
type ValidationFailure struct {
	Reason    string  `json:"reason"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`

	// DraftError is set when the draft call itself failed.
	DraftError error `json:"-"`
}

// Result is the outcome of a completed request.
type Result struct {
	RequestID string `json:"request_id"`

	Content   string           `json:"content"`
	ToolCalls []tools.ToolCall `json:"tool_calls,omitempty"`
	ModelUsed Tier             `json:"model_used"`
	ModelName string           `json:"model_name"`
	Accepted  bool             `json:"accepted"`

	Routing    router.RoutingDecision  `json:"routing"`
	Complexity router.ComplexityResult `json:"complexity"`
	Domain     router.DomainResult     `json:"domain"`

	DraftQuality     *quality.QualityScore   `json:"draft_quality,omitempty"`
	DraftToolQuality *tools.ToolQualityScore `json:"draft_tool_quality,omitempty"`
	Rejection        *ValidationFailure      `json:"rejection,omitempty"`

	// DraftCost is the cost of the first model call. Under DIRECT_BEST that
	// call is the verifier, so DraftCost holds its cost and VerifierCost is 0.
	DraftCost         float64 `json:"draft_cost"`
	VerifierCost      float64 `json:"verifier_cost"`
	TotalCost         float64 `json:"total_cost"`
	SavingsPercentage float64 `json:"savings_percentage"`

	// BaselineCost is what the verifier alone would have charged.
	BaselineCost float64 `json:"baseline_cost"`

	LatencyMs int64       `json:"latency_ms"`
	Usage     model.Usage `json:"usage"`
}

// Escalated reports whether the verifier answered after a rejected draft.
func (r *Result) Escalated() bool {
	return r.Routing.Strategy == router.StrategyCascade && r.ModelUsed == TierVerifier && !r.Accepted
}
