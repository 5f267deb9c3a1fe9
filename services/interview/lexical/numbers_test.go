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
// Digit Extraction Tests
// =============================================================================

func TestExtractNumbers_Digits(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []int
	}{
		{"plain", "אני צריך 10000 שקל", []int{10000}},
		{"thousands separator", "הלוואה של 10,000", []int{10000}},
		{"multiple numbers", "בין 5,000 ל 20,000", []int{5000, 20000}},
		{"digit with thousand multiplier", "צריך 10 אלף", []int{10000}},
		{"digit with million multiplier", "2 מיליון שקל", []int{2000000}},
		{"english k suffix", "around 15 k", []int{15000}},
		{"zero", "0", []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractNumbers(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d numbers %v, want %v", len(got), got, tt.want)
			}
			for i, w := range tt.want {
				if got[i].Value != w {
					t.Errorf("number %d = %d, want %d", i, got[i].Value, w)
				}
			}
		})
	}
}

func TestExtractNumbers_Words(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"hebrew compound with multiplier", "עשרים אלף שקל", 20000},
		{"hebrew tens and units", "עשרים וחמש", 25},
		{"hebrew compound units multiplier", "עשרים וחמישה אלף", 25000},
		{"hebrew bare thousand", "אלף שקל", 1000},
		{"hebrew hundred thousand", "מאה אלף", 100000},
		{"hebrew five hundred", "חמש מאות שקל", 500},
		{"english compound", "twenty thousand shekels", 20000},
		{"english twenty five thousand", "twenty five thousand", 25000},
		{"english million", "one million", 1000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstNumber(tt.text)
			if !ok {
				t.Fatalf("no number extracted from %q", tt.text)
			}
			if got != tt.want {
				t.Errorf("FirstNumber(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Unary Minus Tests
// =============================================================================

func TestExtractNumbers_UnaryMinusInvalidatesTurn(t *testing.T) {
	inputs := []string{
		"-5000",
		"אני רוצה -5000 שקל",
		"i want a -10,000 loan",
		"- 3000 please",
	}
	for _, text := range inputs {
		if got := ExtractNumbers(text); got != nil {
			t.Errorf("ExtractNumbers(%q) = %v, want nil (unary minus)", text, got)
		}
	}
}

func TestExtractNumbers_HyphenWithoutDigitIsFine(t *testing.T) {
	if _, ok := FirstNumber("מחר - אולי 5000"); !ok {
		t.Error("hyphen not adjacent to digit should not block extraction")
	}
}

// =============================================================================
// Keyword Proximity Tests
// =============================================================================

func TestNumberNearKeywords(t *testing.T) {
	keywords := []string{"הכנסה", "משכורת", "income"}

	t.Run("anchored over distant number", func(t *testing.T) {
		text := "אני רוצה 10,000 שקל והמשכורת שלי היא 15,000"
		got, ok := NumberNearKeywords(text, keywords, 3)
		if !ok {
			t.Fatal("expected anchored number")
		}
		if got != 15000 {
			t.Errorf("got %d, want 15000", got)
		}
	})

	t.Run("no keyword present", func(t *testing.T) {
		if _, ok := NumberNearKeywords("סתם 5000", keywords, 3); ok {
			t.Error("expected no match without keywords")
		}
	})

	t.Run("keyword with attached prefix", func(t *testing.T) {
		got, ok := NumberNearKeywords("ההכנסה היא 8000", keywords, 3)
		if !ok || got != 8000 {
			t.Errorf("got %d ok=%v, want 8000", got, ok)
		}
	})

	t.Run("outside window", func(t *testing.T) {
		text := "הכנסה זה דבר חשוב מאוד בחיים אבל בכל מקרה 9000"
		if _, ok := NumberNearKeywords(text, keywords, 3); ok {
			t.Error("expected no match outside token window")
		}
	})
}
