// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ROUTER: Heuristic complexity detection
package router

import (
	"math"
	"strings"
)

// ============================================================================
// SCORING TABLES
// ============================================================================

// lengthBand awards points by word count. Bands are checked in order.
type lengthBand struct {
	maxWords int
	points   float64
}

var lengthBands = []lengthBand{
	{6, 0},
	{15, 0.75},
	{30, 1.5},
	{60, 2.25},
	{math.MaxInt, 3.0},
}

// clauseMarkers are conjunctions that signal multi-part requests.
var clauseMarkers = map[string]bool{
	"and": true, "but": true, "or": true, "because": true, "while": true,
	"then": true, "however": true, "although": true, "whereas": true,
	"unless": true, "if": true, "since": true, "therefore": true, "also": true,
}

// technicalTerms is vocabulary that tends to need a stronger model.
var technicalTerms = map[string]bool{
	"algorithm": true, "api": true, "database": true, "compiler": true,
	"concurrency": true, "concurrent": true, "kubernetes": true, "latency": true,
	"throughput": true, "regression": true, "gradient": true, "neural": true,
	"protocol": true, "encryption": true, "recursion": true, "recursive": true,
	"asynchronous": true, "async": true, "microservice": true, "microservices": true,
	"schema": true, "transaction": true, "distributed": true, "cache": true,
	"thread": true, "mutex": true, "deadlock": true, "integral": true,
	"derivative": true, "eigenvalue": true, "theorem": true, "statistical": true,
	"variance": true, "optimization": true, "architecture": true, "infrastructure": true,
	"runtime": true, "pointer": true, "container": true, "deployment": true,
	"pipeline": true, "tensor": true, "regex": true, "sql": true, "http": true,
	"tcp": true, "json": true, "consistency": true, "consensus": true,
}

// markerWeight is a phrase that signals reasoning depth.
type markerWeight struct {
	phrase string
	weight float64
}

// reasoningMarkers weigh 1.0; expertMarkers weigh 2.0.
var reasoningMarkers = []markerWeight{
	{"explain", 1.0},
	{"analyze", 1.0},
	{"analyse", 1.0},
	{"compare", 1.0},
	{"step by step", 1.0},
	{"evaluate", 1.0},
	{"implement", 1.0},
	{"debug", 1.0},
	{"derive", 1.0},
	{"justify", 1.0},
	{"refactor", 1.0},
	{"walk me through", 1.0},
}

var expertMarkers = []markerWeight{
	{"architect", 2.0},
	{"trade offs", 2.0},
	{"tradeoffs", 2.0},
	{"pros and cons", 2.0},
	{"design a", 2.0},
	{"formal proof", 2.0},
	{"prove that", 2.0},
	{"novel", 2.0},
	{"scalable", 2.0},
	{"from first principles", 2.0},
}

const (
	clausePointsEach     = 0.25
	clausePointsCap      = 1.5
	technicalPointsEach  = 0.5
	technicalPointsCap   = 2.0
	extraQuestionPoints  = 0.5
	extraQuestionCap     = 1.0
	explanatoryOpener    = 0.5
	markerPointsCap      = 3.0
	minDetectConfidence  = 0.55
	confidenceSpread     = 0.4
	confidenceSaturation = 0.5
)

// levelThreshold is the minimum score for a level. A score exactly on a
// threshold takes the higher level.
type levelThreshold struct {
	level QueryComplexity
	min   float64
}

var levelThresholds = []levelThreshold{
	{ComplexityExpert, 4.5},
	{ComplexityHard, 3.0},
	{ComplexityModerate, 2.0},
	{ComplexitySimple, 1.0},
	{ComplexityTrivial, math.Inf(-1)},
}

// ============================================================================
// RESULT TYPES
// ============================================================================

// ComplexitySignals are the raw features behind a complexity score.
type ComplexitySignals struct {
	Words          int      `json:"words"`
	Clauses        int      `json:"clauses"`
	TechnicalTerms int      `json:"technical_terms"`
	QuestionMarks  int      `json:"question_marks"`
	Markers        []string `json:"markers,omitempty"`

	LengthScore    float64 `json:"length_score"`
	ClauseScore    float64 `json:"clause_score"`
	TechnicalScore float64 `json:"technical_score"`
	QuestionScore  float64 `json:"question_score"`
	MarkerScore    float64 `json:"marker_score"`
}

// Complexity sources.
const (
	SourceDetected    = "detected"
	SourceHint        = "hint"
	SourcePrecomputed = "precomputed"
)

// ComplexityResult is the outcome of complexity detection.
type ComplexityResult struct {
	Complexity QueryComplexity   `json:"complexity"`
	Confidence float64           `json:"confidence"`
	Score      float64           `json:"score"`
	Source     string            `json:"source"`
	Signals    ComplexitySignals `json:"signals"`
}

// ============================================================================
// DETECTOR
// ============================================================================

// ComplexityDetector classifies queries into complexity levels.
// It holds no state and is safe for concurrent use.
type ComplexityDetector struct{}

// NewComplexityDetector creates a detector.
func NewComplexityDetector() *ComplexityDetector {
	return &ComplexityDetector{}
}

// Detect scores a query and maps the score onto a complexity level.
func (d *ComplexityDetector) Detect(query string) ComplexityResult {
	text := normalize(query)
	sig := ComplexitySignals{
		Words:         len(strings.Fields(query)),
		QuestionMarks: strings.Count(query, "?"),
	}

	for _, band := range lengthBands {
		if sig.Words <= band.maxWords {
			sig.LengthScore = band.points
			break
		}
	}

	sig.Clauses = strings.Count(query, ",") + strings.Count(query, ";")
	seenTerms := make(map[string]bool)
	for _, tok := range text.tokens {
		if clauseMarkers[tok] {
			sig.Clauses++
		}
		if technicalTerms[tok] && !seenTerms[tok] {
			seenTerms[tok] = true
			sig.TechnicalTerms++
		}
	}
	sig.ClauseScore = math.Min(clausePointsCap, float64(sig.Clauses)*clausePointsEach)
	sig.TechnicalScore = math.Min(technicalPointsCap, float64(sig.TechnicalTerms)*technicalPointsEach)

	if sig.QuestionMarks > 1 {
		sig.QuestionScore = math.Min(extraQuestionCap, float64(sig.QuestionMarks-1)*extraQuestionPoints)
	}
	if len(text.tokens) > 0 && (text.tokens[0] == "why" || text.tokens[0] == "how") {
		sig.QuestionScore += explanatoryOpener
	}

	markers := 0.0
	for _, table := range [][]markerWeight{reasoningMarkers, expertMarkers} {
		for _, m := range table {
			if text.contains(m.phrase) {
				markers += m.weight
				sig.Markers = append(sig.Markers, m.phrase)
			}
		}
	}
	sig.MarkerScore = math.Min(markerPointsCap, markers)

	score := sig.LengthScore + sig.ClauseScore + sig.TechnicalScore + sig.QuestionScore + sig.MarkerScore
	level := levelForScore(score)

	return ComplexityResult{
		Complexity: level,
		Confidence: confidenceForScore(score),
		Score:      score,
		Source:     SourceDetected,
		Signals:    sig,
	}
}

// Resolve returns the caller's precomputed complexity when set, then a valid
// hint, and otherwise detects. An unrecognized hint is ignored.
func (d *ComplexityDetector) Resolve(query, hint string, precomputed *QueryComplexity) ComplexityResult {
	if precomputed != nil && precomputed.Valid() {
		return ComplexityResult{Complexity: *precomputed, Confidence: 1.0, Source: SourcePrecomputed}
	}
	if hint != "" {
		if level, ok := ParseComplexity(hint); ok {
			return ComplexityResult{Complexity: level, Confidence: 1.0, Source: SourceHint}
		}
	}
	return d.Detect(query)
}

// ClassifyComplexity is a convenience wrapper returning only the level.
func ClassifyComplexity(query string) QueryComplexity {
	return NewComplexityDetector().Detect(query).Complexity
}

func levelForScore(score float64) QueryComplexity {
	for _, t := range levelThresholds {
		if score >= t.min {
			return t.level
		}
	}
	return ComplexityTrivial
}

// confidenceForScore grows with the distance between the score and the
// nearest level boundary.
func confidenceForScore(score float64) float64 {
	dist := math.Inf(1)
	for _, t := range levelThresholds {
		if math.IsInf(t.min, -1) {
			continue
		}
		if d := math.Abs(score - t.min); d < dist {
			dist = d
		}
	}
	return minDetectConfidence + confidenceSpread*math.Min(1, dist/confidenceSaturation)
}
