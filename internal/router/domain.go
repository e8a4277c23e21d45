// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ROUTER: Weighted keyword domain detection
package router

import (
	"fmt"
	"sync"
)

// ============================================================================
// DOMAIN TYPE
// ============================================================================

// Domain is the topical category of a query. Declaration order breaks ties.
type Domain int

const (
	DomainCode Domain = iota
	DomainData
	DomainStructured
	DomainRAG
	DomainConversation
	DomainTool
	DomainCreative
	DomainSummary
	DomainTranslation
	DomainMath
	DomainMedical
	DomainLegal
	DomainFinancial
	DomainMultimodal
	DomainGeneral
)

var domainNames = [...]string{
	DomainCode:         "code",
	DomainData:         "data",
	DomainStructured:   "structured",
	DomainRAG:          "rag",
	DomainConversation: "conversation",
	DomainTool:         "tool",
	DomainCreative:     "creative",
	DomainSummary:      "summary",
	DomainTranslation:  "translation",
	DomainMath:         "math",
	DomainMedical:      "medical",
	DomainLegal:        "legal",
	DomainFinancial:    "financial",
	DomainMultimodal:   "multimodal",
	DomainGeneral:      "general",
}

// String returns the lowercase domain name.
func (d Domain) String() string {
	if d >= 0 && int(d) < len(domainNames) {
		return domainNames[d]
	}
	return fmt.Sprintf("Domain(%d)", d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Domain) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ParseDomain parses a domain name.
func ParseDomain(s string) (Domain, bool) {
	for i, name := range domainNames {
		if name == s {
			return Domain(i), true
		}
	}
	return DomainGeneral, false
}

// ============================================================================
// KEYWORD TABLES
// ============================================================================

// keyword is a word or phrase and its weight. Rarer, more specific terms
// weigh more.
type keyword struct {
	term   string
	weight float64
}

// domainKeywords maps every domain except general to its keyword set.
var domainKeywords = map[Domain][]keyword{
	DomainCode: {
		{"code", 1}, {"function", 1}, {"bug", 1.5}, {"debug", 2}, {"compile", 2},
		{"python", 2}, {"golang", 2}, {"javascript", 2}, {"typescript", 2},
		{"java", 1.5}, {"rust", 1.5}, {"refactor", 2}, {"stack trace", 2},
		{"api", 1}, {"class", 1}, {"variable", 1.5}, {"syntax", 1.5},
		{"repository", 1.5}, {"unit test", 2}, {"snippet", 1.5},
	},
	DomainData: {
		{"dataset", 2}, {"csv", 2}, {"dataframe", 2}, {"pandas", 2}, {"etl", 2},
		{"data pipeline", 2}, {"analytics", 1.5}, {"aggregate", 1}, {"columns", 1},
		{"rows", 1}, {"sql", 1.5}, {"warehouse", 1.5}, {"statistics", 1.5},
	},
	DomainStructured: {
		{"json", 2}, {"yaml", 2}, {"xml", 2}, {"schema", 1.5}, {"extract fields", 2},
		{"format", 1}, {"table", 1}, {"structured", 2}, {"parse", 1.5}, {"fields", 1},
	},
	DomainRAG: {
		{"document", 1.5}, {"documents", 1.5}, {"search", 1}, {"sources", 1.5},
		{"citation", 2}, {"cite", 2}, {"according to", 1.5}, {"retrieve", 2},
		{"knowledge base", 2}, {"context", 1},
	},
	DomainConversation: {
		{"hello", 2}, {"hi", 1.5}, {"thanks", 1.5}, {"thank you", 1.5},
		{"how are you", 2}, {"chat", 1}, {"talk", 1}, {"opinion", 1},
	},
	DomainTool: {
		{"tool", 2}, {"tools", 2}, {"weather", 1.5}, {"calendar", 1.5},
		{"send email", 2}, {"schedule", 1.5}, {"invoke", 2}, {"execute", 1.5},
		{"lookup", 1}, {"call", 1},
	},
	DomainCreative: {
		{"poem", 2}, {"story", 2}, {"write", 1}, {"creative", 2}, {"lyrics", 2},
		{"fiction", 2}, {"haiku", 2}, {"imagine", 1.5}, {"character", 1},
	},
	DomainSummary: {
		{"summarize", 2.5}, {"summarise", 2.5}, {"summary", 2}, {"tldr", 2.5},
		{"condense", 1.5}, {"key points", 2}, {"overview", 1.5}, {"recap", 2},
		{"brief", 1},
	},
	DomainTranslation: {
		{"translate", 2.5}, {"translation", 2.5}, {"french", 1.5}, {"spanish", 1.5},
		{"german", 1.5}, {"chinese", 1.5}, {"japanese", 1.5}, {"into english", 2},
		{"language", 1},
	},
	DomainMath: {
		{"calculate", 2}, {"equation", 2}, {"integral", 2.5}, {"derivative", 2.5},
		{"solve", 1.5}, {"algebra", 2}, {"probability", 2}, {"multiply", 1.5},
		{"divide", 1.5}, {"proof", 1.5}, {"theorem", 2}, {"matrix", 1.5},
		{"sum", 1}, {"plus", 1}, {"minus", 1},
	},
	DomainMedical: {
		{"symptom", 2}, {"symptoms", 2}, {"diagnosis", 2.5}, {"treatment", 1.5},
		{"disease", 2}, {"medication", 2}, {"dosage", 2.5}, {"patient", 1.5},
		{"doctor", 1.5}, {"clinical", 2},
	},
	DomainLegal: {
		{"contract", 2}, {"lawsuit", 2.5}, {"liability", 2}, {"legal", 2},
		{"attorney", 2.5}, {"law", 1.5}, {"clause", 1.5}, {"statute", 2.5},
		{"compliance", 1.5}, {"court", 2},
	},
	DomainFinancial: {
		{"stock", 1.5}, {"invest", 2}, {"investment", 2}, {"portfolio", 2},
		{"revenue", 1.5}, {"tax", 1.5}, {"interest rate", 2}, {"loan", 2},
		{"budget", 1.5}, {"dividend", 2.5}, {"finance", 2}, {"financial", 2},
	},
	DomainMultimodal: {
		{"image", 2}, {"picture", 2}, {"photo", 2}, {"diagram", 1.5}, {"video", 2},
		{"audio", 2}, {"screenshot", 2}, {"chart", 1},
	},
}

const (
	// domainSaturation is the raw score at which confidence reaches 0.5.
	domainSaturation = 2.0
	// DefaultDomainFloor is the minimum confidence a domain needs to beat general.
	DefaultDomainFloor = 0.3
)

// DomainKeywords returns the keyword terms for a domain, for use by quality
// heuristics that look for domain signals in responses.
func DomainKeywords(d Domain) []string {
	kws := domainKeywords[d]
	out := make([]string, len(kws))
	for i, kw := range kws {
		out[i] = kw.term
	}
	return out
}

// MentionsDomain reports whether text contains any keyword of domain d.
// General has no keywords and always reports true.
func MentionsDomain(text string, d Domain) bool {
	if d == DomainGeneral {
		return true
	}
	n := normalize(text)
	for _, kw := range domainKeywords[d] {
		if n.contains(kw.term) {
			return true
		}
	}
	return false
}

// ============================================================================
// DOMAIN STATS
// ============================================================================

// DomainStats counts domain detections. Safe for concurrent use.
type DomainStats struct {
	mu             sync.RWMutex
	total          int
	perDomain      map[Domain]int
	meanConfidence float64
}

// DomainStatsSnapshot is a read-only copy of DomainStats.
type DomainStatsSnapshot struct {
	TotalDetections int            `json:"total_detections"`
	PerDomain       map[string]int `json:"per_domain"`
	MeanConfidence  float64        `json:"mean_confidence"`
}

// NewDomainStats creates an empty stats object.
func NewDomainStats() *DomainStats {
	return &DomainStats{perDomain: make(map[Domain]int)}
}

// Record adds one detection to the running counters.
func (s *DomainStats) Record(d Domain, confidence float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.perDomain[d]++
	s.meanConfidence += (confidence - s.meanConfidence) / float64(s.total)
}

// Snapshot returns a copy of the current counters.
func (s *DomainStats) Snapshot() DomainStatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	per := make(map[string]int, len(s.perDomain))
	for d, n := range s.perDomain {
		per[d.String()] = n
	}
	return DomainStatsSnapshot{
		TotalDetections: s.total,
		PerDomain:       per,
		MeanConfidence:  s.meanConfidence,
	}
}

// Reset clears all counters.
func (s *DomainStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total = 0
	s.perDomain = make(map[Domain]int)
	s.meanConfidence = 0
}

// ============================================================================
// DOMAIN ROUTER
// ============================================================================

// DomainResult is the outcome of domain detection.
type DomainResult struct {
	Domain     Domain             `json:"domain"`
	Confidence float64            `json:"confidence"`
	Scores     map[Domain]float64 `json:"scores"`
}

// DomainRouter classifies queries into domains.
type DomainRouter struct {
	stats *DomainStats
	floor float64
}

// DomainOption configures a DomainRouter.
type DomainOption func(*DomainRouter)

// WithDomainStats injects the stats object the router records into.
func WithDomainStats(s *DomainStats) DomainOption {
	return func(r *DomainRouter) { r.stats = s }
}

// WithDomainFloor overrides the minimum confidence needed to beat general.
func WithDomainFloor(floor float64) DomainOption {
	return func(r *DomainRouter) { r.floor = floor }
}

// NewDomainRouter creates a domain router with its own stats unless one is
// injected.
func NewDomainRouter(opts ...DomainOption) *DomainRouter {
	r := &DomainRouter{floor: DefaultDomainFloor}
	for _, opt := range opts {
		opt(r)
	}
	if r.stats == nil {
		r.stats = NewDomainStats()
	}
	return r
}

// Route scores every domain and picks the strongest one.
func (r *DomainRouter) Route(query string) DomainResult {
	result := r.classify(query)
	r.stats.Record(result.Domain, result.Confidence)
	return result
}

func (r *DomainRouter) classify(query string) DomainResult {
	text := normalize(query)
	scores := make(map[Domain]float64, len(domainKeywords))
	if text.empty() {
		return DomainResult{Domain: DomainGeneral, Confidence: 0, Scores: scores}
	}

	best := DomainGeneral
	bestScore := 0.0
	for d := DomainCode; d < DomainGeneral; d++ {
		raw := 0.0
		for _, kw := range domainKeywords[d] {
			if text.contains(kw.term) {
				raw += kw.weight
			}
		}
		normalized := raw / (raw + domainSaturation)
		scores[d] = normalized
		// strict > keeps the earlier domain on ties
		if normalized > bestScore {
			best = d
			bestScore = normalized
		}
	}

	if bestScore < r.floor {
		return DomainResult{Domain: DomainGeneral, Confidence: bestScore, Scores: scores}
	}
	return DomainResult{Domain: best, Confidence: bestScore, Scores: scores}
}

// Stats returns a snapshot of the router's counters.
func (r *DomainRouter) Stats() DomainStatsSnapshot {
	return r.stats.Snapshot()
}

// ResetStats clears the router's counters.
func (r *DomainRouter) ResetStats() {
	r.stats.Reset()
}
