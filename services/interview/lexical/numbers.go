// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lexical

import (
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// Number Vocabulary
// =============================================================================

// numberWords maps Hebrew and English number words to their values.
// Both grammatical genders are listed for Hebrew.
var numberWords = map[string]int{
	// Hebrew units
	"אחד": 1, "אחת": 1,
	"שניים": 2, "שתיים": 2, "שני": 2, "שתי": 2,
	"שלוש": 3, "שלושה": 3,
	"ארבע": 4, "ארבעה": 4,
	"חמש": 5, "חמישה": 5,
	"שש": 6, "שישה": 6,
	"שבע": 7, "שבעה": 7,
	"שמונה": 8,
	"תשע":   9, "תשעה": 9,
	"עשר": 10, "עשרה": 10,
	// Hebrew teens
	"אחד-עשר": 11, "שתים-עשרה": 12, "שנים-עשר": 12,
	// Hebrew tens
	"עשרים": 20, "שלושים": 30, "ארבעים": 40, "חמישים": 50,
	"שישים": 60, "שבעים": 70, "שמונים": 80, "תשעים": 90,
	// Hebrew hundreds
	"מאתיים": 200,

	// English
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20, "thirty": 30, "forty": 40,
	"fifty": 50, "sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// hundredWords multiply the running accumulator by 100 ("חמש מאות").
var hundredWords = map[string]bool{
	"מאה": true, "מאות": true,
	"hundred": true, "hundreds": true,
}

// multiplierWords terminate a number phrase and scale it.
var multiplierWords = map[string]int{
	"אלף": 1_000, "אלפים": 1_000,
	"מיליון": 1_000_000, "מליון": 1_000_000, "מיליונים": 1_000_000,
	"thousand": 1_000, "thousands": 1_000,
	"million": 1_000_000, "millions": 1_000_000,
	"k": 1_000,
}

// unaryMinusPattern matches a minus sign adjacent to a digit. Its
// presence anywhere in the text invalidates numeric extraction for the
// whole turn: negative amounts are rejected, never coerced to positive.
var unaryMinusPattern = regexp.MustCompile(`-\s?\d`)

// digitTokenPattern matches a plain digit run with optional thousands
// separators ("10000", "10,000"). Decimals are deliberately excluded.
var digitTokenPattern = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$|^\d+$`)

// =============================================================================
// Extraction
// =============================================================================

// Number is one extracted numeric value with the token index where its
// phrase started, used for keyword-proximity anchoring.
type Number struct {
	Value int
	Pos   int
}

// HasUnaryMinus reports whether the text contains a minus sign adjacent
// to a digit.
func HasUnaryMinus(text string) bool {
	return unaryMinusPattern.MatchString(text)
}

// ExtractNumbers extracts every number in the text, in order.
//
// Description:
//
//	Precedence per number phrase: digit sequences first (with optional
//	thousands separators), then compound number words ("twenty five",
//	"עשרים וחמש"). Either form may be followed by a single unit
//	multiplier ("אלף" ×1000, "מיליון" ×1e6), applied once. A unary
//	minus anywhere in the text disables extraction entirely.
//
// Inputs:
//
//	text - Raw or normalized user text.
//
// Outputs:
//
//	[]Number - All extracted values with token positions. Nil when the
//	text contains a unary minus or no numbers.
//
// Thread Safety: Pure function.
func ExtractNumbers(text string) []Number {
	if HasUnaryMinus(text) {
		return nil
	}

	tokens := Tokenize(Fold(text))
	var out []Number

	i := 0
	for i < len(tokens) {
		tok := tokens[i]

		if v, ok := parseDigitToken(tok); ok {
			pos := i
			i++
			if i < len(tokens) {
				if m, ok := multiplierWords[stripVav(tokens[i])]; ok {
					v *= m
					i++
				}
			}
			out = append(out, Number{Value: v, Pos: pos})
			continue
		}

		if v, ok := wordValue(tok); ok {
			acc := v
			pos := i
			i++
			for i < len(tokens) {
				next := stripVav(tokens[i])
				if hundredWords[next] {
					acc *= 100
					i++
					continue
				}
				if m, ok := multiplierWords[next]; ok {
					acc *= m
					i++
					break
				}
				if w, ok := wordValue(tokens[i]); ok {
					acc += w
					i++
					continue
				}
				break
			}
			out = append(out, Number{Value: acc, Pos: pos})
			continue
		}

		// Bare multiplier: "אלף" alone means 1000.
		if m, ok := multiplierWords[stripVav(tok)]; ok && tok != "k" {
			out = append(out, Number{Value: m, Pos: i})
			i++
			continue
		}

		i++
	}

	return out
}

// FirstNumber returns the first number in the text, if any.
func FirstNumber(text string) (int, bool) {
	nums := ExtractNumbers(text)
	if len(nums) == 0 {
		return 0, false
	}
	return nums[0].Value, true
}

// NumberNearKeywords returns the number whose phrase starts closest to
// any of the given keywords, within a token window.
//
// Description:
//
//	Keyword-anchored extraction: "ההכנסה שלי 15,000" anchors 15000 to
//	the income keyword even when other numbers appear in the same
//	utterance. Multi-word keywords match as contiguous token runs.
//
// Inputs:
//
//	text - User text.
//	keywords - Anchor keywords, already lowercase for ASCII.
//	window - Maximum token distance between keyword and number phrase.
//
// Outputs:
//
//	int - The anchored value.
//	bool - False when no number falls within the window of any keyword.
//
// Thread Safety: Pure function.
func NumberNearKeywords(text string, keywords []string, window int) (int, bool) {
	nums := ExtractNumbers(text)
	if len(nums) == 0 {
		return 0, false
	}

	tokens := Tokenize(Fold(text))
	kwPositions := keywordPositions(tokens, keywords)
	if len(kwPositions) == 0 {
		return 0, false
	}

	// Numbers following the keyword win over numbers preceding it:
	// "המשכורת שלי היא 15,000" puts the value after the anchor.
	if v, ok := nearestNumber(nums, kwPositions, window, false); ok {
		return v, true
	}
	return nearestNumber(nums, kwPositions, window, true)
}

func nearestNumber(nums []Number, kwPositions []int, window int, allowBefore bool) (int, bool) {
	best := 0
	bestDist := window + 1
	found := false
	for _, n := range nums {
		for _, kp := range kwPositions {
			dist := n.Pos - kp
			if dist < 0 {
				if !allowBefore {
					continue
				}
				dist = -dist
			}
			if dist < bestDist {
				bestDist = dist
				best = n.Value
				found = true
			}
		}
	}
	return best, found
}

// =============================================================================
// Internals
// =============================================================================

func parseDigitToken(tok string) (int, bool) {
	if !digitTokenPattern.MatchString(tok) {
		return 0, false
	}
	v, err := strconv.Atoi(strings.ReplaceAll(tok, ",", ""))
	if err != nil {
		return 0, false
	}
	return v, true
}

// wordValue looks up a number word, tolerating a Hebrew conjunctive
// vav prefix ("עשרים וחמש"). A hundred word at phrase start is the
// value 100 ("מאה אלף").
func wordValue(tok string) (int, bool) {
	if v, ok := numberWords[tok]; ok {
		return v, true
	}
	stripped := stripVav(tok)
	if v, ok := numberWords[stripped]; ok {
		return v, true
	}
	if hundredWords[stripped] {
		return 100, true
	}
	return 0, false
}

func stripVav(tok string) string {
	if strings.HasPrefix(tok, "ו") && len(tok) > len("ו") {
		return strings.TrimPrefix(tok, "ו")
	}
	return tok
}

// keywordPositions finds token indices where any keyword starts.
// Multi-word keywords match contiguous token runs.
func keywordPositions(tokens []string, keywords []string) []int {
	var positions []int
	for _, kw := range keywords {
		kwTokens := strings.Fields(Fold(kw))
		if len(kwTokens) == 0 {
			continue
		}
		for i := 0; i+len(kwTokens) <= len(tokens); i++ {
			match := true
			for j, kt := range kwTokens {
				if !tokenMatches(tokens[i+j], kt) {
					match = false
					break
				}
			}
			if match {
				positions = append(positions, i)
			}
		}
	}
	return positions
}

// tokenMatches compares a text token against a keyword token. Hebrew
// tokens also match with common prefixes attached (ה, ב, ל, מ, ש, ו),
// so "ההכנסה" matches the keyword "הכנסה".
func tokenMatches(tok, kw string) bool {
	if tok == kw {
		return true
	}
	for _, p := range hebrewPrefixes {
		if strings.HasPrefix(tok, p) && strings.TrimPrefix(tok, p) == kw {
			return true
		}
	}
	return false
}

var hebrewPrefixes = []string{"ה", "ב", "ל", "מ", "ש", "ו", "וה", "שה", "כש"}
