// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyzer

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianSim/services/interview/lexical"
	"github.com/AleutianAI/AleutianSim/services/interview/session"
)

// proximityWindow is the maximum token distance between an anchor
// keyword and its number ("המשכורת שלי היא 15,000").
const proximityWindow = 4

// Analyzer runs the deterministic per-turn analysis, optionally
// escalating ambiguous turns to the LLM refiner.
//
// Description:
//
//	Pure pattern matching over the input text plus the current stage.
//	Extraction cannot fail at runtime; the only suspension point is the
//	optional refinement call, which is bounded and fail-open.
//
// Thread Safety: Safe for concurrent use; all state is read-only after
// construction.
type Analyzer struct {
	refiner *Refiner
	logger  *slog.Logger
}

// New creates an Analyzer. refiner may be nil to disable LLM
// refinement entirely.
func New(refiner *Refiner, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{refiner: refiner, logger: logger}
}

// Analyze runs the full per-turn analysis.
//
// Description:
//
//	Deterministic pass first: slot extraction conditioned on the
//	current stage, then signal derivation in the fixed order (greeting
//	independent; repeat-request before refusal; clarification distinct
//	from refusal; politeness hard-overrides commanding tone), then the
//	classification decision table. When the deterministic pass yields
//	CLARITY:AMBIGUOUS or RELEVANCE:LOW and a refiner is configured, the
//	refiner may overwrite the classification triple only.
//
// Inputs:
//
//	ctx - Context; used only by the optional refinement call.
//	text - Raw user text.
//	stage - The session's current stage.
//
// Outputs:
//
//	*Result - Slots, signals, and the classification triple. Never nil.
//
// Thread Safety: Safe for concurrent use.
func (a *Analyzer) Analyze(ctx context.Context, text string, stage session.Stage) *Result {
	ctx, span := analyzerTracer.Start(ctx, "analyzer.Analyze")
	defer span.End()
	start := time.Now()

	normalized := lexical.Normalize(text)
	result := &Result{Signals: make(SignalSet)}

	a.extractSlots(normalized, stage, result)
	a.deriveSignals(normalized, stage, result)
	a.classify(normalized, result)

	if a.refiner != nil && (result.Clarity == ClarityAmbiguous || result.Relevance == RelevanceLow) {
		a.refiner.Refine(ctx, normalized, stage, result)
	}

	analyzerTurnDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("stage", string(stage)),
		attribute.String("relevance", string(result.Relevance)),
		attribute.String("clarity", string(result.Clarity)),
		attribute.Bool("refined", result.Refined),
	)
	return result
}

// =============================================================================
// Slot Extraction
// =============================================================================

func (a *Analyzer) extractSlots(text string, stage session.Stage, r *Result) {
	a.extractIncome(text, stage, r)
	a.extractAmount(text, stage, r)
	a.extractPurpose(text, r)

	// Confirmation and identity must stay unset until the signing
	// stage; no other code path may populate them.
	if stage == session.StageSignConfirm {
		a.extractConfirmation(text, r)
		a.extractIdentity(text, r)
	}

	if r.Slots.HasAmount() {
		r.Signals.Add(SignalHasAmount)
	}
	if r.Slots.HasPurpose() {
		r.Signals.Add(SignalHasPurpose)
	}
	if r.Slots.HasIncome() {
		r.Signals.Add(SignalHasIncome)
	}
	if r.Slots.Confirmation != session.ConfirmationUnset {
		r.Signals.Add(SignalHasConfirmation)
	}
	if r.Slots.Identity.FullName != "" || r.Slots.Identity.IDNumber != "" {
		r.Signals.Add(SignalHasIdentity)
	}
}

func (a *Analyzer) extractIncome(text string, stage session.Stage, r *Result) {
	// "No income" is the literal value 0, distinct from absent.
	if lexical.NoIncomePhrases.MatchesAny(text) {
		r.Slots.Income = session.IntPtr(0)
		return
	}

	if v, ok := lexical.NumberNearKeywords(text, lexical.IncomeKeywords, proximityWindow); ok {
		if v >= 0 {
			r.Slots.Income = session.IntPtr(v)
		}
		return
	}

	// Any-number fallback only while income is the expected slot.
	if stage == session.StageCheckIncome {
		if v, ok := lexical.FirstNumber(text); ok && v >= 0 {
			r.Slots.Income = session.IntPtr(v)
		}
	}
}

func (a *Analyzer) extractAmount(text string, stage session.Stage, r *Result) {
	if v, ok := lexical.NumberNearKeywords(text, lexical.AmountKeywords, proximityWindow); ok {
		if v > 0 && !claimedByIncome(r, v) {
			r.Slots.Amount = session.IntPtr(v)
			return
		}
	}

	if stage != session.StageStart && stage != session.StageAskAmount {
		return
	}
	for _, n := range lexical.ExtractNumbers(text) {
		if n.Value > 0 && !claimedByIncome(r, n.Value) {
			r.Slots.Amount = session.IntPtr(n.Value)
			return
		}
	}
}

// claimedByIncome keeps a single number from filling both slots when it
// was already anchored to an income keyword.
func claimedByIncome(r *Result, v int) bool {
	return r.Slots.Income != nil && *r.Slots.Income == v
}

func (a *Analyzer) extractPurpose(text string, r *Result) {
	// Unrealistic or illegal purposes are detected, signaled, and the
	// slot left empty so the engine re-asks with coaching.
	if lexical.IllegalPurposePhrases.MatchesAny(text) {
		r.Signals.Add(SignalIllegalPurpose)
		return
	}
	if lexical.UnrealisticPurposePhrases.MatchesAny(text) {
		r.Signals.Add(SignalUnrealisticPurpose)
		return
	}

	for _, kp := range lexical.KnownPurposes {
		if kp.Keywords.MatchesAny(text) {
			r.Slots.Purpose = kp.Label
			return
		}
	}

	if p, ok := lexical.ExtractGenericPurpose(text); ok {
		r.Slots.Purpose = p
	}
}

func (a *Analyzer) extractConfirmation(text string, r *Result) {
	// Repeat and clarification requests are questions, not answers.
	if isRepeatRequest(text) || lexical.ClarificationPhrases.MatchesAny(text) {
		return
	}
	if lexical.ConfirmNoPhrases.MatchesAny(text) {
		r.Slots.Confirmation = session.ConfirmationDeclined
		return
	}
	if lexical.ConfirmYesPhrases.MatchesAny(text) {
		r.Slots.Confirmation = session.ConfirmationAccepted
	}
}

func (a *Analyzer) extractIdentity(text string, r *Result) {
	if id, ok := lexical.ExtractIDNumber(text); ok {
		r.Slots.Identity.IDNumber = id
		a.logger.Debug("identity extracted", "id", lexical.MaskID(id))
	}
	if name, ok := lexical.ExtractName(text); ok {
		r.Slots.Identity.FullName = name
	}
}

// =============================================================================
// Signal Derivation
// =============================================================================

func (a *Analyzer) deriveSignals(text string, stage session.Stage, r *Result) {
	// Greeting detection is independent of everything else.
	if lexical.Greetings.MatchesAny(text) {
		r.Signals.Add(SignalGreeting)
	} else if stage == session.StageStart {
		r.Signals.Add(SignalMissingGreeting)
	}

	if lexical.ThreatPhrases.MatchesAny(text) {
		r.Signals.Add(SignalThreat)
	}

	repeat := isRepeatRequest(text)
	if repeat {
		// A short "what?" or an explicit repeat phrase is never
		// refusal or rudeness.
		r.Signals.Add(SignalRepeatRequest)
		return
	}

	if lexical.RudePhrases.MatchesAny(text) {
		r.Signals.Add(SignalRude)
	}

	if lexical.ClarificationPhrases.MatchesAny(text) {
		// "Why do you need that" is a question, not a refusal.
		r.Signals.Add(SignalClarification)
	} else if lexical.RefuseProvidePhrases.MatchesAny(text) {
		r.Signals.Add(SignalRefusesInfo)
	}

	if lexical.RefuseRepayPhrases.MatchesAny(text) {
		r.Signals.Add(SignalRefusesRepay)
	}

	// Politeness marker presence is a hard override, not a tie-break.
	if lexical.CommandingOpeners.MatchesAny(text) && !lexical.PolitenessMarkers.MatchesAny(text) {
		r.Signals.Add(SignalCommandingTone)
	}
}

func isRepeatRequest(text string) bool {
	return lexical.IsBareWhat(text) || lexical.RepeatRequestPhrases.MatchesAny(text)
}

// =============================================================================
// Classification Decision Table
// =============================================================================

// classify sets the relevance/clarity/appropriateness triple. Rows are
// evaluated in priority order; the first match sets all three values.
func (a *Analyzer) classify(text string, r *Result) {
	anySlot := r.Signals.Has(SignalHasAmount) || r.Signals.Has(SignalHasPurpose) ||
		r.Signals.Has(SignalHasIncome) || r.Signals.Has(SignalHasConfirmation) ||
		r.Signals.Has(SignalHasIdentity)

	switch {
	case r.Signals.Has(SignalRepeatRequest):
		r.set(RelevanceHigh, ClarityClear, AppropriatenessOK,
			"בקשה לחזרה על השאלה", "שיח תקין מול הבנק")

	case r.Signals.Has(SignalGreeting) && !anySlot:
		r.set(RelevanceMed, ClarityClear, AppropriatenessOK,
			"ברכת פתיחה ללא מידע ענייני", "פתיחה מנומסת")

	case r.Signals.Has(SignalClarification):
		r.set(RelevanceMed, ClarityClear, AppropriatenessOK,
			"שאלת הבהרה על תהליך ההלוואה", "שאלה לגיטימית")

	case r.Signals.Has(SignalHasAmount) && r.Signals.Has(SignalHasPurpose) && r.Signals.Has(SignalHasIncome):
		r.set(RelevanceHigh, ClarityClear, AppropriatenessOK,
			"כל הפרטים הנדרשים נמסרו", "מידע ענייני ומלא")

	case anySlot || lexical.BankingKeywords.MatchesAny(text):
		r.set(RelevanceHigh, ClarityClear, AppropriatenessOK,
			"מידע רלוונטי לבקשת ההלוואה", "שיח ענייני")

	case r.Signals.Has(SignalIllegalPurpose):
		r.set(RelevanceMed, ClarityClear, AppropriatenessBad,
			"מטרה שאינה חוקית", "מטרת ההלוואה אינה מתאימה לבנק")

	case r.Signals.Has(SignalUnrealisticPurpose):
		r.set(RelevanceMed, ClarityClear, AppropriatenessCoach,
			"מטרה לא מציאותית", "כדאי לבחור מטרה ריאלית")

	default:
		r.set(RelevanceLow, ClarityAmbiguous, AppropriatenessCoach,
			"לא זוהה תוכן רלוונטי לשיחה", "כדאי להתמקד בנושא ההלוואה")
	}
}

func (r *Result) set(rel Relevance, cl Clarity, app Appropriateness, relReason, appReason string) {
	r.Relevance = rel
	r.Clarity = cl
	r.Appropriateness = app
	r.RelevanceReason = relReason
	r.AppropriatenessReason = appReason
}
