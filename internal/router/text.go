// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// normalizedText is a query prepared for keyword matching.
type normalizedText struct {
	// tokens are the case-folded words, punctuation removed.
	tokens []string
	// padded is the tokens joined by single spaces with a leading and trailing
	// space, so " phrase " matches whole words only.
	padded string
}

// normalize folds case and compatibility forms so "ＳＱＬ", "SQL" and "sql"
// all match the same keyword. A new Caser is built per call because Casers
// are not safe for concurrent use.
func normalize(s string) normalizedText {
	folded := cases.Fold().String(norm.NFKC.String(s))
	tokens := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return normalizedText{
		tokens: tokens,
		padded: " " + strings.Join(tokens, " ") + " ",
	}
}

// contains reports whether keyword (a word or space-separated phrase) occurs
// as whole words.
func (n normalizedText) contains(keyword string) bool {
	return strings.Contains(n.padded, " "+keyword+" ")
}

// empty reports whether no words survived normalization.
func (n normalizedText) empty() bool {
	return len(n.tokens) == 0
}
