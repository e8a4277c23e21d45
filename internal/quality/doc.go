// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package quality scores draft text responses for acceptability.
//
// A response with per-token log-probabilities is scored from them directly.
// Without log-probabilities the score starts at 1.0 and each detected
// signal (too short, hedging, truncation, unclosed code fence, refusal,
// missing domain vocabulary, repetition) subtracts a fixed penalty.
//
// Presets vary only the thresholds:
//
//	v := quality.NewValidator(quality.Preset("cascade"))
//	score := v.Validate(text, nil, router.DomainCode)
//	if !score.Passed {
//	    // escalate
//	}
package quality
