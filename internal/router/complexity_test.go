// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"strings"
	"testing"
)

// TestDetectComplexity tests complexity levels for representative queries.
func TestDetectComplexity(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected QueryComplexity
	}{
		{"arithmetic", "What is 2+2?", ComplexityTrivial},
		{"greeting", "hi", ComplexityTrivial},
		{"short fact", "What is the capital of France?", ComplexityTrivial},
		{"boundary goes up", "Write a short poem about the ocean and the moon", ComplexitySimple},
		{"howto with tech term", "How do I read a JSON file in Python and print each key?", ComplexityModerate},
		{"analysis", "Analyze this Go code for race conditions and suggest how to fix the deadlock in the worker pool", ComplexityHard},
		{
			"architecture",
			"Design a scalable distributed architecture for a payment system, and explain the trade-offs between consistency and availability",
			ComplexityExpert,
		},
	}

	d := NewComplexityDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(tt.query)
			if got.Complexity != tt.expected {
				t.Errorf("Detect(%q) = %v (score %.2f), want %v", tt.query, got.Complexity, got.Score, tt.expected)
			}
			if got.Source != SourceDetected {
				t.Errorf("Source = %q, want %q", got.Source, SourceDetected)
			}
		})
	}
}

// TestDetectIsDeterministic verifies identical input yields identical output.
func TestDetectIsDeterministic(t *testing.T) {
	d := NewComplexityDetector()
	query := "Explain step by step how TCP congestion control reacts to packet loss, and compare it with QUIC"
	first := d.Detect(query)
	for i := 0; i < 50; i++ {
		got := d.Detect(query)
		if got.Complexity != first.Complexity || got.Score != first.Score || got.Confidence != first.Confidence {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

// TestBoundaryConfidence verifies a score sitting on a boundary gets the
// lowest confidence and a score far from boundaries the highest.
func TestBoundaryConfidence(t *testing.T) {
	d := NewComplexityDetector()

	onBoundary := d.Detect("Write a short poem about the ocean and the moon")
	if onBoundary.Score != 1.0 {
		t.Fatalf("score = %v, want 1.0", onBoundary.Score)
	}
	if onBoundary.Confidence != minDetectConfidence {
		t.Errorf("boundary confidence = %v, want %v", onBoundary.Confidence, minDetectConfidence)
	}

	far := d.Detect("What is 2+2?")
	if far.Confidence != minDetectConfidence+confidenceSpread {
		t.Errorf("far confidence = %v, want %v", far.Confidence, minDetectConfidence+confidenceSpread)
	}
}

// TestMarkersNeverLowerComplexity verifies that adding reasoning markers to a
// query never moves it to an easier level.
func TestMarkersNeverLowerComplexity(t *testing.T) {
	d := NewComplexityDetector()
	base := []string{
		"What is 2+2?",
		"List three colors",
		"How do I read a JSON file in Python and print each key?",
	}
	for _, q := range base {
		before := d.Detect(q).Complexity
		after := d.Detect(q + " Explain the trade-offs step by step.").Complexity
		if after < before {
			t.Errorf("%q: %v -> %v after adding markers", q, before, after)
		}
	}
}

// TestLongQueriesScoreHigher checks length alone moves the level up.
func TestLongQueriesScoreHigher(t *testing.T) {
	d := NewComplexityDetector()
	short := d.Detect("tell me about cats")
	long := d.Detect(strings.Repeat("tell me about cats ", 20))
	if long.Complexity <= short.Complexity {
		t.Errorf("long query %v should exceed short query %v", long.Complexity, short.Complexity)
	}
}

// TestResolve tests precomputed values, hints and fallback to detection.
func TestResolve(t *testing.T) {
	d := NewComplexityDetector()
	hard := ComplexityHard
	invalid := QueryComplexity(99)

	tests := []struct {
		name        string
		query       string
		hint        string
		precomputed *QueryComplexity
		want        QueryComplexity
		source      string
	}{
		{"precomputed wins", "What is 2+2?", "expert", &hard, ComplexityHard, SourcePrecomputed},
		{"valid hint", "What is 2+2?", "EXPERT", nil, ComplexityExpert, SourceHint},
		{"alias hint", "What is 2+2?", "complex", nil, ComplexityHard, SourceHint},
		{"invalid hint falls back", "What is 2+2?", "bogus", nil, ComplexityTrivial, SourceDetected},
		{"invalid precomputed falls back", "What is 2+2?", "", &invalid, ComplexityTrivial, SourceDetected},
		{"no hint", "What is 2+2?", "", nil, ComplexityTrivial, SourceDetected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Resolve(tt.query, tt.hint, tt.precomputed)
			if got.Complexity != tt.want || got.Source != tt.source {
				t.Errorf("Resolve = %v/%s, want %v/%s", got.Complexity, got.Source, tt.want, tt.source)
			}
		})
	}
}

// TestParseComplexityRoundTrip tests text marshaling of every level.
func TestParseComplexityRoundTrip(t *testing.T) {
	for _, c := range AllComplexities {
		text, err := c.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", c, err)
		}
		var back QueryComplexity
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if back != c {
			t.Errorf("round trip %v -> %v", c, back)
		}
	}
	if _, err := QueryComplexity(7).MarshalText(); err == nil {
		t.Error("expected error for invalid complexity")
	}
}

// TestValidateQuery tests the query size limit.
func TestValidateQuery(t *testing.T) {
	if err := ValidateQuery(strings.Repeat("a", MaxQueryLength)); err != nil {
		t.Errorf("query at the limit rejected: %v", err)
	}
	if err := ValidateQuery(strings.Repeat("a", MaxQueryLength+1)); err == nil {
		t.Error("query over the limit accepted")
	}
}
