// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analyzer turns raw user text plus the current stage into
// typed slots and categorical signals. The deterministic pass is the
// source of truth; an optional LLM refinement may adjust only the three
// classification signals and never the slots or safety signals.
package analyzer

import (
	"sort"

	"github.com/AleutianAI/AleutianSim/services/interview/session"
)

// Signal is a categorical tag describing a property of the turn's
// input. Signals are non-exclusive; a turn can carry several.
type Signal string

const (
	SignalGreeting        Signal = "GREETING"
	SignalMissingGreeting Signal = "MISSING_GREETING"
	SignalRude            Signal = "RUDE_LANGUAGE"
	SignalThreat          Signal = "THREAT"
	SignalRefusesInfo     Signal = "REFUSES_INFO"
	SignalRefusesRepay    Signal = "REFUSES_REPAY"
	SignalClarification   Signal = "CLARIFICATION_REQUEST"
	SignalRepeatRequest   Signal = "REPEAT_REQUEST"
	SignalCommandingTone  Signal = "COMMANDING_TONE"

	SignalHasAmount       Signal = "HAS_AMOUNT"
	SignalHasPurpose      Signal = "HAS_PURPOSE"
	SignalHasIncome       Signal = "HAS_INCOME"
	SignalHasConfirmation Signal = "HAS_CONFIRMATION"
	SignalHasIdentity     Signal = "HAS_IDENTITY"

	SignalUnrealisticPurpose Signal = "UNREALISTIC_PURPOSE"
	SignalIllegalPurpose     Signal = "ILLEGAL_PURPOSE"
)

// =============================================================================
// Classification Triple
// =============================================================================

// Relevance, Clarity, and Appropriateness are the three parameterized
// classifications. Exactly one value per category is present per turn.
type Relevance string

const (
	RelevanceHigh Relevance = "HIGH"
	RelevanceMed  Relevance = "MED"
	RelevanceLow  Relevance = "LOW"
)

type Clarity string

const (
	ClarityClear     Clarity = "CLEAR"
	ClarityAmbiguous Clarity = "AMBIGUOUS"
)

type Appropriateness string

const (
	AppropriatenessOK    Appropriateness = "OK"
	AppropriatenessCoach Appropriateness = "COACH"
	AppropriatenessBad   Appropriateness = "BAD"
)

// =============================================================================
// Signal Set
// =============================================================================

// SignalSet is the per-turn bag of signals.
type SignalSet map[Signal]bool

func (s SignalSet) Add(sig Signal)      { s[sig] = true }
func (s SignalSet) Has(sig Signal) bool { return s[sig] }

// Tags returns a sorted string slice for event emission and logging.
func (s SignalSet) Tags() []string {
	tags := make([]string, 0, len(s))
	for sig := range s {
		tags = append(tags, string(sig))
	}
	sort.Strings(tags)
	return tags
}

// =============================================================================
// Result
// =============================================================================

// Result is the analyzer's output for one turn.
type Result struct {
	Slots   session.Slots
	Signals SignalSet

	Relevance       Relevance
	Clarity         Clarity
	Appropriateness Appropriateness

	// RelevanceReason and AppropriatenessReason are short
	// natural-language explanations of the classification, surfaced in
	// the analysis event.
	RelevanceReason       string
	AppropriatenessReason string

	// Refined marks results whose classification triple was adjusted by
	// the LLM refinement pass.
	Refined bool
}

// ClassificationTags returns the parameterized classification signals
// in their wire form ("RELEVANCE:HIGH", ...).
func (r *Result) ClassificationTags() []string {
	return []string{
		"RELEVANCE:" + string(r.Relevance),
		"CLARITY:" + string(r.Clarity),
		"APPROPRIATE_FOR_BANK:" + string(r.Appropriateness),
	}
}

// AllTags returns boolean signal tags plus the classification triple.
func (r *Result) AllTags() []string {
	return append(r.Signals.Tags(), r.ClassificationTags()...)
}
