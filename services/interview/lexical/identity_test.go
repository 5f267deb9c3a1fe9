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

func TestExtractIDNumber(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"labeled hebrew", "תעודת זהות 012345678", "012345678", true},
		{"labeled gershayim", `ת"ז: 12345678`, "12345678", true},
		{"labeled english", "my ID number: 1234567", "1234567", true},
		{"labeled six digits", "תעודת זהות 123456", "123456", true},
		{"bare nine digits", "דוד כהן 204567891", "204567891", true},
		{"bare six digits rejected", "הסכום הוא 123456", "", false},
		{"no digits", "קוראים לי דוד", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractIDNumber(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (got %q)", ok, tt.wantOK, got)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractName(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"labeled hebrew", "קוראים לי דוד כהן", "דוד כהן", true},
		{"labeled shmi", "שמי רחל לוי ותעודת זהות 012345678", "רחל לוי", true},
		{"labeled english", "my name is Dana Levi", "Dana Levi", true},
		{"adjacent to id", "דוד כהן 204567891", "דוד כהן", true},
		{"stopwords cleaned", "שמי דוד כהן תרשום בבקשה", "דוד כהן", true},
		{"amount is not a name", "אני רוצה 10,000 שקל", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractName(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (got %q)", ok, tt.wantOK, got)
			}
			if ok && got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMaskID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"012345678", "******678"},
		{"1234567", "****567"},
		{"123", "***"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MaskID(tt.id); got != tt.want {
			t.Errorf("MaskID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
