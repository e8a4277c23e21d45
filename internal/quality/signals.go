// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package quality

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/jeranaias/rigrun-cascade/internal/router"
)

// ============================================================================
// SIGNAL TYPES
// ============================================================================

// SignalType names a detected quality problem.
type SignalType string

const (
	SignalEmpty          SignalType = "empty"
	SignalTooShort       SignalType = "too_short"
	SignalHedging        SignalType = "hedging"
	SignalTruncated      SignalType = "truncated"
	SignalUnclosedFence  SignalType = "unclosed_code_fence"
	SignalRefusal        SignalType = "refusal"
	SignalNoDomainSignal SignalType = "no_domain_signal"
	SignalRepetition     SignalType = "repetition"
)

// Signal is one detected problem and the penalty it applied.
type Signal struct {
	Type    SignalType `json:"type"`
	Penalty float64    `json:"penalty"`
	Detail  string     `json:"detail,omitempty"`
}

// Penalties per signal. Hedging applies per phrase up to maxHedgingPenalty.
const (
	penaltyEmpty       = 1.0
	penaltyTooShort    = 0.4
	penaltyHedge       = 0.15
	maxHedgingPenalty  = 0.45
	penaltyTruncated   = 0.25
	penaltyFence       = 0.25
	penaltyRefusal     = 0.5
	penaltyNoDomain    = 0.1
	penaltyRepetition  = 0.2
	repetitionMinCount = 3
	repetitionMinWords = 4
)

// ============================================================================
// TABLES
// ============================================================================

// hedgingPhrases are matched as whole words on lowercased text with
// punctuation removed, so "I'm not sure" matches "not sure".
var hedgingPhrases = []string{
	"i think", "i believe", "i guess", "maybe", "perhaps", "possibly",
	"probably", "not sure", "not certain", "might be", "it seems",
	"hard to say", "i could be wrong",
}

// danglingWords end a sentence that was cut off mid-thought.
var danglingWords = map[string]bool{
	"and": true, "but": true, "or": true, "so": true, "then": true,
	"the": true, "a": true, "an": true, "this": true, "that": true,
	"to": true, "for": true, "with": true, "from": true, "in": true, "of": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"because": true, "which": true, "can": true, "will": true, "would": true, "should": true,
}

var refusalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^i (?:cannot|can't|can not|am unable to|won't|will not)\b`),
	regexp.MustCompile(`(?i)^(?:sorry|i'm sorry|i am sorry|i apologize),? (?:but )?i (?:cannot|can't|am unable to|won't)\b`),
	regexp.MustCompile(`(?i)^as an ai\b`),
	regexp.MustCompile(`(?i)^i'm (?:not able|unable) to\b`),
}

var sentenceSplit = regexp.MustCompile(`[.!?\n]+`)

// ============================================================================
// DETECTORS
// ============================================================================

// words lowercases text and splits it on anything that is not a letter or digit.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// detectSignals runs every heuristic over a response.
func detectSignals(text string, minWords int, domain router.Domain) []Signal {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []Signal{{Type: SignalEmpty, Penalty: penaltyEmpty, Detail: "response is empty"}}
	}

	var signals []Signal
	if n := len(strings.Fields(trimmed)); n < minWords {
		signals = append(signals, Signal{SignalTooShort, penaltyTooShort, fmt.Sprintf("%d words, minimum %d", n, minWords)})
	}

	padded := " " + strings.Join(words(trimmed), " ") + " "
	if p, found := hedging(padded); p > 0 {
		signals = append(signals, Signal{SignalHedging, p, strings.Join(found, ", ")})
	}
	if strings.Count(trimmed, "```")%2 != 0 {
		signals = append(signals, Signal{SignalUnclosedFence, penaltyFence, "code fence is not closed"})
	} else if truncated(trimmed) {
		signals = append(signals, Signal{SignalTruncated, penaltyTruncated, "response ends mid-sentence"})
	}
	if refused(trimmed) {
		signals = append(signals, Signal{SignalRefusal, penaltyRefusal, "model declined to answer"})
	}
	if !router.MentionsDomain(trimmed, domain) {
		signals = append(signals, Signal{SignalNoDomainSignal, penaltyNoDomain, "no " + domain.String() + " vocabulary"})
	}
	if s, ok := repeated(trimmed); ok {
		signals = append(signals, Signal{SignalRepetition, penaltyRepetition, s})
	}
	return signals
}

func hedging(padded string) (float64, []string) {
	var found []string
	penalty := 0.0
	for _, phrase := range hedgingPhrases {
		if strings.Contains(padded, " "+phrase+" ") {
			found = append(found, phrase)
			penalty += penaltyHedge
		}
	}
	if penalty > maxHedgingPenalty {
		penalty = maxHedgingPenalty
	}
	return penalty, found
}

// truncated reports a response that stops on a comma, an ellipsis or a word
// that cannot end a sentence.
func truncated(text string) bool {
	if strings.HasSuffix(text, "...") || strings.HasSuffix(text, "…") || strings.HasSuffix(text, ",") {
		return true
	}
	ws := words(text)
	if len(ws) < 2 {
		return false
	}
	last := []rune(text)[len([]rune(text))-1]
	if !unicode.IsLetter(last) {
		return false
	}
	return danglingWords[ws[len(ws)-1]]
}

func refused(text string) bool {
	for _, p := range refusalPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// repeated finds a sentence of at least repetitionMinWords words that occurs
// repetitionMinCount times or more.
func repeated(text string) (string, bool) {
	counts := make(map[string]int)
	for _, s := range sentenceSplit.Split(text, -1) {
		ws := words(s)
		if len(ws) < repetitionMinWords {
			continue
		}
		key := strings.Join(ws, " ")
		counts[key]++
		if counts[key] >= repetitionMinCount {
			return "repeated: " + key, true
		}
	}
	return "", false
}
