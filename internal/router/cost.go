// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ROUTER: Token estimation and savings arithmetic
package router

import (
	"strings"
)

// ============================================================================
// TOKEN ESTIMATION
// ============================================================================

// EstimateTokens approximates a token count when a provider reports no usage.
// GPT-style: ~4 chars per token on average, blended with the word count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	chars := len(text)

	estimate := (words + chars/4) / 2
	if estimate == 0 {
		return 1
	}
	return estimate
}

// ============================================================================
// SAVINGS
// ============================================================================

// SavingsFraction returns 1 - actual/baseline clamped to [0, 1].
// A zero or negative baseline yields 0: there is nothing to save against.
func SavingsFraction(actual, baseline float64) float64 {
	if baseline <= 0 {
		return 0
	}
	saved := 1 - actual/baseline
	switch {
	case saved < 0:
		return 0
	case saved > 1:
		return 1
	default:
		return saved
	}
}
