// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"regexp"
)

// redactionPattern pairs a compiled regex with a replacement label.
//
// Description:
//
//	Each pattern identifies a specific class of secret or personal
//	identifier and provides a labeled replacement string so the log reader
//	knows what was redacted without seeing the value.
//
// Thread Safety: This type is immutable after construction.
type redactionPattern struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// redactionPatterns is the ordered list of patterns to redact.
//
// IMPORTANT: Order matters. More specific patterns must appear BEFORE less
// specific ones to prevent partial redaction (e.g. a labeled national ID
// before the bare digit-run pattern).
//
// Thread Safety: This slice is initialized once and never modified.
// All access is read-only.
var redactionPatterns = []redactionPattern{
	// OpenAI-style API key: sk-<base62, 20+ chars>
	{
		Pattern:     regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`),
		Replacement: "[REDACTED:api_key]",
	},
	// Bearer token in Authorization header values
	{
		Pattern:     regexp.MustCompile(`Bearer\s+[A-Za-z0-9._-]{10,}`),
		Replacement: "[REDACTED:bearer_token]",
	},
	// Labeled national ID ("ת"ז 123456789", "ID: 123456789")
	// Must be before the bare digit-run pattern.
	{
		Pattern:     regexp.MustCompile(`(?:ת["']?ז|תעודת זהות|[Ii][Dd])[:\s]+\d{6,9}`),
		Replacement: "[REDACTED:national_id]",
	},
	// Bare 7-9 digit run — the shape of an Israeli national ID number.
	// Interview transcripts contain user-provided IDs; they must never
	// reach logs in the clear.
	{
		Pattern:     regexp.MustCompile(`\b\d{7,9}\b`),
		Replacement: "[REDACTED:id_number]",
	},
	// Password in connection strings or config: password=<value>
	{
		Pattern:     regexp.MustCompile(`password=[^\s&]{3,}`),
		Replacement: "password=[REDACTED]",
	},
}

// SafeLogString redacts known secret and identifier patterns from a string
// before logging.
//
// Description:
//
//	Iterates through a predefined set of regex patterns matching API key
//	formats, bearer tokens, passwords, and national ID numbers. Each match
//	is replaced with a labeled placeholder so the log reader knows what
//	class of value was present without seeing it.
//
// Inputs:
//   - s: The string to redact. May contain zero or more matches.
//     Empty string is valid and returns empty string.
//
// Outputs:
//   - string: The input with all matched patterns replaced.
//     If no patterns match, returns the original string unchanged.
//
// Limitations:
//   - Pattern-based detection only. A value that spans multiple lines will
//     not be matched (single-line regex).
//   - 6-digit IDs without a label are indistinguishable from loan amounts
//     and are intentionally not matched.
//
// Thread Safety: This function is safe for concurrent use.
func SafeLogString(s string) string {
	if s == "" {
		return s
	}
	for _, p := range redactionPatterns {
		s = p.Pattern.ReplaceAllString(s, p.Replacement)
	}
	return s
}
