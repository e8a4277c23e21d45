// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jeranaias/rigrun-cascade/internal/cascade"
)

// topRequestLimit bounds SessionCost.TopRequests.
const topRequestLimit = 10

// =============================================================================
// COST TRACKER
// =============================================================================

// sessionIDCounter ensures unique session IDs even when created rapidly
var sessionIDCounter uint64

// CostTracker accumulates per-session spend from cascade results. It
// implements cascade.Observer. Amounts are summed as decimals so long
// sessions of sub-cent requests do not drift.
type CostTracker struct {
	mu      sync.RWMutex
	current *SessionCost
}

var _ cascade.Observer = (*CostTracker)(nil)

// SessionCost is the spend of one tracking session.
type SessionCost struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`

	Requests  int `json:"requests"`
	Accepted  int `json:"accepted"`
	Escalated int `json:"escalated"`
	Direct    int `json:"direct"`
	Failures  int `json:"failures"`

	Tokens TokenCount `json:"tokens"`

	DraftCost    decimal.Decimal `json:"draft_cost"`
	VerifierCost decimal.Decimal `json:"verifier_cost"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	// BaselineCost is what every request would have cost on the verifier
	BaselineCost decimal.Decimal `json:"baseline_cost"`

	TopRequests []RequestCost `json:"top_requests"`
}

// TokenCount tracks input/output tokens.
type TokenCount struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// RequestCost is the cost of one request.
type RequestCost struct {
	RequestID string          `json:"request_id"`
	Timestamp time.Time       `json:"timestamp"`
	Model     string          `json:"model"`
	Outcome   string          `json:"outcome"`
	Tokens    TokenCount      `json:"tokens"`
	Cost      decimal.Decimal `json:"cost"`
	Latency   time.Duration   `json:"latency"`
}

// Savings returns baseline minus actual spend. Escalations make it
// smaller since the rejected draft was paid for.
func (s *SessionCost) Savings() decimal.Decimal {
	return s.BaselineCost.Sub(s.TotalCost)
}

// AcceptanceRate returns the share of cascaded requests answered by the
// draft model.
func (s *SessionCost) AcceptanceRate() float64 {
	cascaded := s.Accepted + s.Escalated
	if cascaded == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(cascaded)
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// NewCostTracker creates a tracker with an empty session.
func NewCostTracker() *CostTracker {
	return &CostTracker{current: newSession()}
}

func newSession() *SessionCost {
	return &SessionCost{
		ID:          generateSessionID(),
		StartTime:   time.Now(),
		TopRequests: make([]RequestCost, 0),
	}
}

// =============================================================================
// RECORDING
// =============================================================================

// RecordResult implements cascade.Observer.
func (ct *CostTracker) RecordResult(r *cascade.Result) {
	if r == nil {
		return
	}

	draft := decimal.NewFromFloat(r.DraftCost)
	verifier := decimal.NewFromFloat(r.VerifierCost)
	total := decimal.NewFromFloat(r.TotalCost)
	outcome := Outcome(r)

	ct.mu.Lock()
	defer ct.mu.Unlock()

	s := ct.current
	s.Requests++
	switch outcome {
	case OutcomeAccepted:
		s.Accepted++
	case OutcomeEscalated:
		s.Escalated++
	default:
		s.Direct++
	}

	s.Tokens.Input += r.Usage.InputTokens
	s.Tokens.Output += r.Usage.OutputTokens
	s.DraftCost = s.DraftCost.Add(draft)
	s.VerifierCost = s.VerifierCost.Add(verifier)
	s.TotalCost = s.TotalCost.Add(total)
	s.BaselineCost = s.BaselineCost.Add(decimal.NewFromFloat(r.BaselineCost))

	s.TopRequests = append(s.TopRequests, RequestCost{
		RequestID: r.RequestID,
		Timestamp: time.Now(),
		Model:     r.ModelName,
		Outcome:   outcome,
		Tokens:    TokenCount{Input: r.Usage.InputTokens, Output: r.Usage.OutputTokens},
		Cost:      total,
		Latency:   time.Duration(r.LatencyMs) * time.Millisecond,
	})
	sort.SliceStable(s.TopRequests, func(i, j int) bool {
		return s.TopRequests[i].Cost.GreaterThan(s.TopRequests[j].Cost)
	})
	if len(s.TopRequests) > topRequestLimit {
		s.TopRequests = s.TopRequests[:topRequestLimit]
	}
}

// RecordError implements cascade.Observer.
func (ct *CostTracker) RecordError(err error) {
	if err == nil {
		return
	}
	ct.mu.Lock()
	ct.current.Failures++
	ct.mu.Unlock()
}

// =============================================================================
// RETRIEVAL
// =============================================================================

// Current returns a copy of the current session.
func (ct *CostTracker) Current() *SessionCost {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return copySession(ct.current)
}

// Summary returns a one-line description of the current session.
func (ct *CostTracker) Summary() string {
	s := ct.Current()
	if s.Requests == 0 {
		return "No requests processed yet"
	}
	return fmt.Sprintf(
		"Session %s: %d requests (%d accepted, %d escalated, %d direct, %d failed) | Cost: $%s | Saved: $%s vs verifier-only",
		s.ID,
		s.Requests,
		s.Accepted,
		s.Escalated,
		s.Direct,
		s.Failures,
		s.TotalCost.StringFixed(6),
		s.Savings().StringFixed(6),
	)
}

// =============================================================================
// SESSION MANAGEMENT
// =============================================================================

// EndSession stamps the current session, starts a new one and returns the
// ended session.
func (ct *CostTracker) EndSession() *SessionCost {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ended := ct.current
	ended.EndTime = time.Now()
	ct.current = newSession()
	return ended
}

// =============================================================================
// HELPERS
// =============================================================================

// copySession creates a deep copy of a session.
func copySession(src *SessionCost) *SessionCost {
	dst := *src
	dst.TopRequests = make([]RequestCost, len(src.TopRequests))
	copy(dst.TopRequests, src.TopRequests)
	return &dst
}

// generateSessionID generates a unique session ID.
func generateSessionID() string {
	// Use date format plus atomic counter for guaranteed uniqueness
	counter := atomic.AddUint64(&sessionIDCounter, 1)
	return fmt.Sprintf("%s-%d", time.Now().Format("20060102-150405"), counter)
}
