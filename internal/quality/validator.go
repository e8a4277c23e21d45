// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package quality

import (
	"fmt"
	"math"
	"strings"

	"github.com/jeranaias/rigrun-cascade/internal/router"
)

// Method tags how a score was derived.
type Method string

const (
	MethodLogprobs  Method = "logprobs"
	MethodHeuristic Method = "heuristic"
)

// Logprob blend weights. Mean captures overall confidence, min catches a
// single wildly unlikely token.
const (
	logprobMeanWeight = 0.7
	logprobMinWeight  = 0.3
)

// QualityScore is the verdict on one draft response.
type QualityScore struct {
	Score     float64  `json:"score"`
	Method    Method   `json:"method"`
	Signals   []Signal `json:"signals,omitempty"`
	Threshold float64  `json:"threshold"`
	Passed    bool     `json:"passed"`
	Reason    string   `json:"reason"`
}

// Validator scores text against a Config. It holds no mutable state.
type Validator struct {
	cfg Config
}

// NewValidator creates a validator. Zero thresholds are left as given, so
// Config{} accepts everything that is not empty.
func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Config returns the validator's thresholds.
func (v *Validator) Config() Config {
	return v.cfg
}

// Validate scores text. When logprobs holds at least one finite value the
// score comes from them; otherwise from the heuristic signals. Signals are
// reported either way and StrictMode fails on any of them.
func (v *Validator) Validate(text string, logprobs []float64, domain router.Domain) QualityScore {
	signals := detectSignals(text, v.cfg.MinWordCount, domain)

	qs := QualityScore{
		Method:    MethodHeuristic,
		Signals:   signals,
		Threshold: v.cfg.MinConfidence,
	}
	if score, ok := LogprobScore(logprobs); ok && strings.TrimSpace(text) != "" {
		qs.Score = score
		qs.Method = MethodLogprobs
	} else {
		qs.Score = HeuristicScore(signals)
	}

	switch {
	case qs.Score < v.cfg.MinConfidence:
		qs.Reason = fmt.Sprintf("score %.2f below threshold %.2f", qs.Score, v.cfg.MinConfidence)
		if len(signals) > 0 {
			qs.Reason += " (" + signalNames(signals) + ")"
		}
	case v.cfg.StrictMode && len(signals) > 0:
		qs.Reason = "strict mode rejected signals: " + signalNames(signals)
	default:
		qs.Passed = true
		qs.Reason = fmt.Sprintf("score %.2f meets threshold %.2f", qs.Score, v.cfg.MinConfidence)
	}
	return qs
}

// LogprobScore maps per-token log-probabilities into [0,1] as
// 0.7*exp(mean) + 0.3*exp(min). NaN entries are skipped and positive values
// are treated as 0. It reports false when no usable value remains.
func LogprobScore(logprobs []float64) (float64, bool) {
	var sum float64
	n := 0
	lowest := 0.0
	for _, lp := range logprobs {
		if math.IsNaN(lp) {
			continue
		}
		if lp > 0 {
			lp = 0
		}
		if n == 0 || lp < lowest {
			lowest = lp
		}
		sum += lp
		n++
	}
	if n == 0 {
		return 0, false
	}
	mean := sum / float64(n)
	return clamp01(logprobMeanWeight*math.Exp(mean) + logprobMinWeight*math.Exp(lowest)), true
}

// HeuristicScore subtracts every signal's penalty from 1.0.
func HeuristicScore(signals []Signal) float64 {
	score := 1.0
	for _, s := range signals {
		score -= s.Penalty
	}
	return clamp01(score)
}

func signalNames(signals []Signal) string {
	names := make([]string, len(signals))
	for i, s := range signals {
		names[i] = string(s.Type)
	}
	return strings.Join(names, ", ")
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}
