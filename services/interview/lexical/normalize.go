// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lexical provides the deterministic text primitives for the
// interview analyzer: normalization, mixed Hebrew/English number
// extraction, phrase-set membership, identity capture, and ID masking.
//
// Everything in this package is pure string work. No I/O, no LLM calls,
// no shared mutable state.
package lexical

import "strings"

// Normalize collapses runs of whitespace to single spaces and trims.
//
// Description:
//
//	Hebrew has no letter case, so normalization never case-folds the
//	input; ASCII folding is applied separately via Fold only where
//	matching needs it. The original text (with case) is preserved for
//	name extraction.
//
// Thread Safety: Pure function.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Fold lowercases ASCII letters only, leaving Hebrew and all other
// runes untouched.
func Fold(text string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, text)
}

// Tokenize splits normalized text into tokens with surrounding
// punctuation stripped. Empty tokens are dropped.
func Tokenize(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		t := TrimPunct(f)
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

const edgePunct = ".,!?;:()[]{}\"'`״׳₪$%"

// TrimPunct strips leading and trailing punctuation from a token.
// Interior punctuation (thousands separators, gershayim in ת"ז) is kept.
func TrimPunct(token string) string {
	return strings.Trim(token, edgePunct)
}
