// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import "testing"

// TestEstimateTokens tests the token estimate on a few inputs.
func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hi", 1},
		{"What is the capital of France?", 6},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

// TestSavingsFraction tests clamping and the zero-baseline case.
func TestSavingsFraction(t *testing.T) {
	tests := []struct {
		name     string
		actual   float64
		baseline float64
		want     float64
	}{
		{"quarter cost", 0.25, 1.0, 0.75},
		{"free draft", 0, 1.0, 1.0},
		{"draft pricier than baseline", 2.0, 1.0, 0},
		{"no baseline", 0.1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SavingsFraction(tt.actual, tt.baseline); got != tt.want {
				t.Errorf("SavingsFraction(%v, %v) = %v, want %v", tt.actual, tt.baseline, got, tt.want)
			}
		})
	}
}
