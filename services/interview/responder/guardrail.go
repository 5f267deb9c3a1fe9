// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package responder

import (
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/AleutianSim/services/interview/session"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var responderOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "interview",
	Subsystem: "responder",
	Name:      "outcomes_total",
	Help:      "Reply phrasing outcomes",
}, []string{"outcome"})

func recordResponderOutcome(outcome string) {
	responderOutcomes.WithLabelValues(outcome).Inc()
}

// =============================================================================
// Guardrails
// =============================================================================

// The signing stage handles the customer's name and ID number, so a
// model reply there must never echo identity data or speak the
// confirmation for the customer. Every reply, at any stage, is blocked
// from containing a bare ID-length digit run.

var (
	// 7-9 consecutive digits is an Israeli ID shape. Shorter runs
	// (amounts, incomes) are fine.
	idDigitRunPattern = regexp.MustCompile(`\d{7,9}`)

	// First-person confirmation speech the clerk must never produce.
	confirmationSpeechPattern = regexp.MustCompile(
		`אני מאשרת? את הבקשה|מאשרת? בשמך|i confirm|confirmed on your behalf`)

	// Identity echo: the clerk referring to the customer's stated name
	// or ID as fact.
	identityEchoPattern = regexp.MustCompile(
		`תעודת הזהות שלך היא|השם שלך הוא|מספר הזהות שלך|your id number is|your name is`)

	// First-person disclosure: the clerk impersonating the customer by
	// stating a name or ID as its own. The bare שמי form needs an
	// explicit boundary since RE2's \b is ASCII-only.
	selfDisclosurePattern = regexp.MustCompile(
		`(^|\s)שמי\s|קוראים לי|השם שלי|תעודת הזהות שלי|מספר הזהות שלי|my name is|my id\b`)
)

// CheckGuardrails inspects a fully buffered model reply.
//
// Description:
//
//	Digit-run leakage is checked at every stage. The confirmation and
//	identity-echo checks apply only when entering sign_confirm or
//	goodbye, the stages where the model has just seen identity
//	fragments in context.
//
// Inputs:
//
//	text - The complete model reply.
//	stage - The stage the session is entering.
//
// Outputs:
//
//	string - A short reason label, for logs and metrics.
//	bool - True when the reply must be replaced by the template.
//
// Thread Safety: Safe for concurrent use.
func CheckGuardrails(text string, stage session.Stage) (string, bool) {
	if idDigitRunPattern.MatchString(text) {
		return "id_digits", true
	}
	if stage == session.StageSignConfirm || stage == session.StageGoodbye {
		lowered := foldASCII(text)
		if confirmationSpeechPattern.MatchString(lowered) {
			return "confirmation_speech", true
		}
		if identityEchoPattern.MatchString(lowered) {
			return "identity_echo", true
		}
		if selfDisclosurePattern.MatchString(lowered) {
			return "self_disclosure", true
		}
	}
	return "", false
}

// foldASCII lowercases ASCII letters only; Hebrew has no case.
func foldASCII(s string) string {
	b := []byte(s)
	changed := false
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(b)
}
