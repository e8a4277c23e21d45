// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDomainRoute tests domain detection for representative queries.
func TestDomainRoute(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected Domain
	}{
		{"translation", "Translate this sentence into French", DomainTranslation},
		{"summary", "Summarize the key points of this article", DomainSummary},
		{"code", "Fix the bug in my Python function", DomainCode},
		{"medical", "What is the dosage for this medication?", DomainMedical},
		{"full width text", "Ｆｉｘ the ＢＵＧ in my ＰＹＴＨＯＮ function", DomainCode},
		{"tie goes to earlier domain", "python poem", DomainCode},
		{"no keywords", "What is 2+2?", DomainGeneral},
	}

	r := NewDomainRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Route(tt.query)
			if got.Domain != tt.expected {
				t.Errorf("Route(%q) = %v (%.2f), want %v", tt.query, got.Domain, got.Confidence, tt.expected)
			}
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Errorf("confidence %v out of range", got.Confidence)
			}
		})
	}
}

// TestDomainEmptyInput verifies empty input gives general with zero confidence.
func TestDomainEmptyInput(t *testing.T) {
	r := NewDomainRouter()
	for _, q := range []string{"", "   ", "?!"} {
		got := r.Route(q)
		if got.Domain != DomainGeneral || got.Confidence != 0 {
			t.Errorf("Route(%q) = {%v, %v}, want {general, 0}", q, got.Domain, got.Confidence)
		}
	}
}

// TestDomainSaturation checks the normalization of a known raw score.
func TestDomainSaturation(t *testing.T) {
	got := NewDomainRouter().Route("Translate this sentence into French")
	// translate 2.5 + french 1.5 = 4.0 -> 4/6
	assert.InDelta(t, 4.0/6.0, got.Confidence, 1e-9)
	assert.InDelta(t, 4.0/6.0, got.Scores[DomainTranslation], 1e-9)
	assert.Zero(t, got.Scores[DomainLegal])
}

// TestDomainFloor verifies a weak winner falls back to general.
func TestDomainFloor(t *testing.T) {
	r := NewDomainRouter(WithDomainFloor(0.9))
	got := r.Route("Fix the bug in my Python function")
	if got.Domain != DomainGeneral {
		t.Errorf("Domain = %v, want general below floor", got.Domain)
	}
	if got.Confidence == 0 {
		t.Error("confidence should carry the best score even below the floor")
	}
}

// TestDomainDeterministic verifies repeated calls agree.
func TestDomainDeterministic(t *testing.T) {
	r := NewDomainRouter()
	first := r.Route("Calculate the integral of this equation")
	for i := 0; i < 20; i++ {
		got := r.Route("Calculate the integral of this equation")
		assert.Equal(t, first, got)
	}
}

// TestDomainStats verifies counting, running mean and reset.
func TestDomainStats(t *testing.T) {
	stats := NewDomainStats()
	r := NewDomainRouter(WithDomainStats(stats))

	r.Route("Translate this sentence into French")
	r.Route("Fix the bug in my Python function")
	r.Route("")

	snap := r.Stats()
	assert.Equal(t, 3, snap.TotalDetections)
	assert.Equal(t, 1, snap.PerDomain["translation"])
	assert.Equal(t, 1, snap.PerDomain["code"])
	assert.Equal(t, 1, snap.PerDomain["general"])
	assert.InDelta(t, (4.0/6.0+4.5/6.5+0)/3, snap.MeanConfidence, 1e-9)

	r.ResetStats()
	assert.Equal(t, DomainStatsSnapshot{PerDomain: map[string]int{}}, r.Stats())
}

// TestDomainStatsConcurrent verifies counters survive concurrent routing.
func TestDomainStatsConcurrent(t *testing.T) {
	r := NewDomainRouter()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Route("Fix the bug in my Python function")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, r.Stats().TotalDetections)
}

// TestParseDomain checks every name parses back.
func TestParseDomain(t *testing.T) {
	for d := DomainCode; d <= DomainGeneral; d++ {
		got, ok := ParseDomain(d.String())
		if !ok || got != d {
			t.Errorf("ParseDomain(%q) = %v, %v", d.String(), got, ok)
		}
	}
	if _, ok := ParseDomain("astrology"); ok {
		t.Error("unknown domain should not parse")
	}
}

// TestMentionsDomain tests keyword presence checks used on responses.
func TestMentionsDomain(t *testing.T) {
	assert.True(t, MentionsDomain("Here is the function you asked for.", DomainCode))
	assert.False(t, MentionsDomain("The weather is nice.", DomainCode))
	assert.True(t, MentionsDomain("", DomainGeneral))
	assert.True(t, MentionsDomain("Take the MEDICATION twice daily", DomainMedical))
}
