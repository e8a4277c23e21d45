// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cascade

import (
	"fmt"

	"github.com/jeranaias/rigrun-cascade/internal/quality"
	"github.com/jeranaias/rigrun-cascade/internal/router"
	"github.com/jeranaias/rigrun-cascade/internal/tools"
)

// EventType tags a stream event.
type EventType int

const (
	// EventRouting is always first and carries the routing decision.
	EventRouting EventType = iota
	// EventChunk carries a text delta, and tool calls once they are final.
	EventChunk
	// EventDraftDecision reports whether the draft was accepted.
	EventDraftDecision
	// EventSwitch announces escalation to the verifier.
	EventSwitch
	// EventComplete is terminal and carries the result.
	EventComplete
	// EventError is terminal and carries the typed error.
	EventError
)

var eventNames = [...]string{
	EventRouting:       "ROUTING",
	EventChunk:         "CHUNK",
	EventDraftDecision: "DRAFT_DECISION",
	EventSwitch:        "SWITCH",
	EventComplete:      "COMPLETE",
	EventError:         "ERROR",
}

func (t EventType) String() string {
	if t >= 0 && int(t) < len(eventNames) {
		return eventNames[t]
	}
	return fmt.Sprintf("EventType(%d)", t)
}

// MarshalText implements encoding.TextMarshaler.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Routing is the payload of a ROUTING event.
type Routing struct {
	Decision   router.RoutingDecision  `json:"decision"`
	Complexity router.ComplexityResult `json:"complexity"`
	Domain     router.DomainResult     `json:"domain"`
	Draft      string                  `json:"draft,omitempty"`
	Verifier   string                  `json:"verifier"`
}

// DraftDecision is the payload of a DRAFT_DECISION event.
type DraftDecision struct {
	Accepted    bool                    `json:"accepted"`
	Quality     *quality.QualityScore   `json:"quality,omitempty"`
	ToolQuality *tools.ToolQualityScore `json:"tool_quality,omitempty"`
	Rejection   *ValidationFailure      `json:"rejection,omitempty"`
}

// Switch is the payload of a SWITCH event.
type Switch struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// Event is one item of a cascade stream. Exactly one payload field is set,
// matching Type.
type Event struct {
	Type      EventType `json:"type"`
	RequestID string    `json:"request_id"`

	// CHUNK
	Tier      Tier             `json:"tier,omitempty"`
	Delta     string           `json:"delta,omitempty"`
	ToolCalls []tools.ToolCall `json:"tool_calls,omitempty"`

	Routing  *Routing       `json:"routing,omitempty"`
	Decision *DraftDecision `json:"decision,omitempty"`
	Switch   *Switch        `json:"switch,omitempty"`
	Result   *Result        `json:"result,omitempty"`
	Err      error          `json:"-"`
}
