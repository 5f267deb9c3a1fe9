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

import "testing"

// =============================================================================
// Phrase Set Matching
// =============================================================================

func TestPhraseSet_WholeTokenMatching(t *testing.T) {
	// Single-word phrases must not match inside larger words.
	if ConfirmNoPhrases.MatchesAny("now is a good time") {
		t.Error("'no' must not match inside 'now'")
	}
	if !ConfirmNoPhrases.MatchesAny("no, cancel it") {
		t.Error("expected 'no' to match as a whole token")
	}
}

func TestPhraseSet_HebrewPrefixTolerance(t *testing.T) {
	if !BankingKeywords.MatchesAny("כמה ריבית יש על ההלוואה?") {
		t.Error("expected 'הלוואה' to match with attached ה prefix")
	}
}

func TestPhraseSet_MultiWordPhrases(t *testing.T) {
	if !RefuseProvidePhrases.MatchesAny("זה לא עניינך בכלל") {
		t.Error("expected multi-word refusal phrase to match")
	}
	if !ThreatPhrases.MatchesAny("I will kill you") {
		t.Error("expected threat phrase to match case-insensitively")
	}
}

// =============================================================================
// Repeat / Clarification Separation
// =============================================================================

func TestIsBareWhat(t *testing.T) {
	for _, text := range []string{"מה?", "מה", "what?", "huh", "אה?"} {
		if !IsBareWhat(text) {
			t.Errorf("IsBareWhat(%q) = false, want true", text)
		}
	}
	for _, text := range []string{"מה הסכום שאתה צריך", "what is your income"} {
		if IsBareWhat(text) {
			t.Errorf("IsBareWhat(%q) = true, want false", text)
		}
	}
}

func TestClarificationIsNotRefusal(t *testing.T) {
	text := "למה אתה צריך לדעת את ההכנסה שלי?"
	if !ClarificationPhrases.MatchesAny(text) {
		t.Fatal("expected clarification phrase to match")
	}
	if RefuseProvidePhrases.MatchesAny(text) {
		t.Error("clarification question must not match refusal phrases")
	}
}

// =============================================================================
// Purpose Extraction
// =============================================================================

func TestExtractGenericPurpose(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"hebrew kdei", "אני צריך הלוואה כדי לפתוח מסעדה", "לפתוח מסעדה", true},
		{"hebrew bishvil", "הלוואה בשביל לתקן את הגג", "לתקן את הגג", true},
		{"english in order to", "a loan in order to fix the roof", "fix the roof", true},
		{"too short", "כדי לחיות", "", false},
		{"no marker", "אני רוצה הלוואה", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractGenericPurpose(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (got %q)", ok, tt.wantOK, got)
			}
			if ok && got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Reset Command
// =============================================================================

func TestIsResetCommand(t *testing.T) {
	for _, text := range []string{"[RESET]", "[reset]", "אפס", "התחל מחדש", "reset"} {
		if !IsResetCommand(text) {
			t.Errorf("IsResetCommand(%q) = false, want true", text)
		}
	}
	for _, text := range []string{"אני רוצה להתחיל מחדש את החיים שלי", "preset values"} {
		if IsResetCommand(text) {
			t.Errorf("IsResetCommand(%q) = true, want false", text)
		}
	}
}
