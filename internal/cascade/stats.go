// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cascade

import (
	"sync"

	cerrors "github.com/jeranaias/rigrun-cascade/internal/errors"
	"github.com/jeranaias/rigrun-cascade/internal/router"
)

// Stats tracks request outcomes for one engine. Safe for concurrent use.
type Stats struct {
	mu sync.Mutex

	requests      int
	direct        int
	accepted      int
	escalated     int
	draftFailures int
	configErrors  int
	fatalErrors   int
	totalCost     float64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Requests      int     `json:"requests"`
	Direct        int     `json:"direct"`
	Accepted      int     `json:"accepted"`
	Escalated     int     `json:"escalated"`
	DraftFailures int     `json:"draft_failures"`
	ConfigErrors  int     `json:"config_errors"`
	FatalErrors   int     `json:"fatal_errors"`
	TotalCost     float64 `json:"total_cost"`

	// AcceptanceRate is accepted drafts over cascaded requests that finished.
	AcceptanceRate float64 `json:"acceptance_rate"`
}

// NewStats creates an empty Stats.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) recordResult(r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests++
	s.totalCost += r.TotalCost
	switch {
	case r.Routing.Strategy == router.StrategyDirectBest:
		s.direct++
	case r.Accepted:
		s.accepted++
	default:
		s.escalated++
	}
}

func (s *Stats) recordDraftFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draftFailures++
}

func (s *Stats) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests++
	switch {
	case cerrors.IsConfiguration(err):
		s.configErrors++
	default:
		s.fatalErrors++
	}
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Requests:      s.requests,
		Direct:        s.direct,
		Accepted:      s.accepted,
		Escalated:     s.escalated,
		DraftFailures: s.draftFailures,
		ConfigErrors:  s.configErrors,
		FatalErrors:   s.fatalErrors,
		TotalCost:     s.totalCost,
	}
	if cascaded := s.accepted + s.escalated; cascaded > 0 {
		snap.AcceptanceRate = float64(s.accepted) / float64(cascaded)
	}
	return snap
}

// Reset clears all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = 0
	s.direct = 0
	s.accepted = 0
	s.escalated = 0
	s.draftFailures = 0
	s.configErrors = 0
	s.fatalErrors = 0
	s.totalCost = 0
}
