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
	"strings"
)

// =============================================================================
// ID Number Extraction
// =============================================================================

// labeledIDPattern matches an ID number introduced by an explicit label
// ("תעודת זהות 012345678", "ID number: 12345678").
var labeledIDPattern = regexp.MustCompile(
	`(?i)(?:תעודת\s+זהות|ת"ז|ת״ז|מספר\s+זהות|id\s+number|\bid\b)\s*:?\s*(\d{6,9})`)

// bareIDPattern matches any standalone 7-9 digit run.
var bareIDPattern = regexp.MustCompile(`(^|\D)(\d{7,9})(\D|$)`)

// ExtractIDNumber extracts a 6-9 digit ID from the text.
//
// Description:
//
//	Labeled patterns win ("ID number: NNNNNNNNN"); otherwise any bare
//	7-9 digit token is accepted. The shorter 6-digit form requires the
//	label, to avoid swallowing loan amounts.
//
// Outputs:
//
//	string - The digit string as written, or "".
//	bool - Whether an ID was found.
//
// Thread Safety: Pure function.
func ExtractIDNumber(text string) (string, bool) {
	if m := labeledIDPattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := bareIDPattern.FindStringSubmatch(text); m != nil {
		return m[2], true
	}
	return "", false
}

// =============================================================================
// Name Extraction
// =============================================================================

// labeledNamePatterns introduce a full name explicitly. The capture is
// the remainder of the clause; CleanName trims it to name tokens.
var labeledNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`קוראים לי\s+(.+)`),
	regexp.MustCompile(`שמי\s+(.+)`),
	regexp.MustCompile(`השם שלי\s+(?:הוא\s+)?(.+)`),
	regexp.MustCompile(`(?i)my name is\s+(.+)`),
	regexp.MustCompile(`(?i)i am\s+(.+)`),
}

// nameStopwords are request verbs, fillers, and ID-label words that
// routinely trail a dictated name ("שמי דוד כהן תרשום את זה",
// "רחל לוי ותעודת זהות ..."). CleanName stops at the first one.
var nameStopwords = map[string]bool{
	"בבקשה": true, "תרשום": true, "תרשמי": true, "תכתוב": true,
	"תכתבי": true, "אז": true, "והמספר": true, "ומספר": true,
	"מספר": true, "תעודת": true, "ותעודת": true, "זהות": true,
	"ת\"ז": true, "שלי": true, "הוא": true, "היא": true, "זה": true,
	"please": true, "write": true, "and": true, "my": true,
	"number": true, "is": true, "the": true, "id": true,
}

// ExtractName extracts a full name from the text.
//
// Description:
//
//	Labeled patterns first ("קוראים לי X", "my name is X"); otherwise a
//	heuristic takes the non-stopword tokens adjacent to a digit run,
//	which covers the common "דוד כהן 012345678" dictation form.
//
// Outputs:
//
//	string - The cleaned name (1-3 tokens), or "".
//	bool - Whether a name was found.
//
// Thread Safety: Pure function.
func ExtractName(text string) (string, bool) {
	normalized := Normalize(text)

	for _, p := range labeledNamePatterns {
		if m := p.FindStringSubmatch(normalized); m != nil {
			if name := CleanName(m[1]); name != "" {
				return name, true
			}
		}
	}

	// Fallback: word tokens directly before an ID digit run. Anchoring
	// to the ID keeps loan amounts from being misread as names.
	if id, ok := ExtractIDNumber(normalized); ok {
		if idx := strings.Index(normalized, id); idx > 0 {
			if name := CleanName(normalized[:idx]); name != "" {
				return name, true
			}
		}
	}

	return "", false
}

// CleanName trims a candidate name clause: collection stops at the
// first stopword or digit-bearing token, and at most three name tokens
// are kept.
func CleanName(raw string) string {
	var kept []string
	for _, tok := range Tokenize(raw) {
		if nameStopwords[Fold(tok)] || strings.IndexFunc(tok, isDigitRune) >= 0 {
			break
		}
		kept = append(kept, tok)
		if len(kept) == 3 {
			break
		}
	}
	return strings.Join(kept, " ")
}

func isDigitRune(r rune) bool { return r >= '0' && r <= '9' }
