// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/AleutianSim/services/interview/analyzer"
	"github.com/AleutianAI/AleutianSim/services/interview/session"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "interview",
		Subsystem: "engine",
		Name:      "decisions_total",
		Help:      "Decisions by action and stage",
	}, []string{"action", "stage"})

	strikesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "interview",
		Subsystem: "engine",
		Name:      "strikes_total",
		Help:      "Strike increments by category",
	}, []string{"category"})
)

// =============================================================================
// Engine
// =============================================================================

// Config tunes the engine's escalation behavior.
type Config struct {
	// StrikeThreshold is the strike count at which a category
	// escalates from warning to its two-strike outcome.
	StrikeThreshold int

	// RetryEscapeThreshold is the number of consecutive non-productive
	// turns in the same stage before the engine offers an explicit
	// continue/restart choice instead of re-asking indefinitely.
	RetryEscapeThreshold int

	// MinMonthlyIncome is the lowest income that keeps the applicant
	// eligible. Income below it routes to the ineligible branch.
	MinMonthlyIncome int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		StrikeThreshold:      2,
		RetryEscapeThreshold: 3,
		MinMonthlyIncome:     1,
	}
}

// Engine is the decision FSM. It owns no I/O and no external
// dependencies; given state and signals it always produces a Decision.
//
// Thread Safety: Safe for concurrent use across sessions; the caller
// serializes turns per session.
type Engine struct {
	msgs   *Messages
	cfg    Config
	logger *slog.Logger
}

// New creates an Engine. msgs must not be nil.
func New(msgs *Messages, cfg Config, logger *slog.Logger) *Engine {
	if msgs == nil {
		panic("engine.New: msgs must not be nil")
	}
	if cfg.StrikeThreshold <= 0 {
		cfg.StrikeThreshold = DefaultConfig().StrikeThreshold
	}
	if cfg.RetryEscapeThreshold <= 0 {
		cfg.RetryEscapeThreshold = DefaultConfig().RetryEscapeThreshold
	}
	if cfg.MinMonthlyIncome <= 0 {
		cfg.MinMonthlyIncome = DefaultConfig().MinMonthlyIncome
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{msgs: msgs, cfg: cfg, logger: logger}
}

// Decide routes one turn.
//
// Description:
//
//	Applies the fixed precedence: threat, rude language, repayment
//	refusal, information refusal, repeat request, clarification,
//	coaching predicate, then the default ask-required for the farthest
//	reachable stage. Strike increments mutate st in place and are
//	suppressed when duplicate is true. The retry escape hatch
//	overrides any same-stage decision once RetryEscapeThreshold
//	consecutive non-productive turns accumulate.
//
//	An unknown stage is a programming error: silently defaulting would
//	corrupt the farthest-state computation, so Decide panics.
//
// Inputs:
//
//	st - Session state with this turn's slots already merged in.
//	Mutated: strikes, retry counter, greeted flag.
//	res - The analyzer result for this turn.
//	duplicate - True when the turn repeats the previous text in the
//	same stage; suppresses strike increments.
//
// Outputs:
//
//	Decision - Next stage, action, and text fragments. Never persisted.
//
// Thread Safety: Caller must hold the session's turn lock.
func (e *Engine) Decide(st *session.State, res *analyzer.Result, duplicate bool) Decision {
	if !st.Stage.Valid() {
		panic(fmt.Sprintf("engine.Decide: unknown stage %q", st.Stage))
	}

	d := e.route(st, res, duplicate)

	// First-turn greeting and acknowledgement, independent of routing.
	if !st.Greeted {
		st.Greeted = true
		d.Greeting = e.msgs.Greeting
		if d.Termination == "" {
			d.Acknowledgement = e.msgs.Acknowledgement
		}
	}

	// Escape hatch: stop re-asking after too many non-productive
	// retries in the same stage.
	switch d.Action {
	case ActionTerminate, ActionOfferRestart, ActionBoundaryRestart, ActionEndSafely:
		// Terminal or already-offering decisions bypass retry counting.
	default:
		if !d.Transitioned(st.Stage) {
			st.RetryCount++
			if st.RetryCount >= e.cfg.RetryEscapeThreshold {
				d = Decision{
					NextStage:      st.Stage,
					Action:         ActionOfferRestart,
					Clarification:  e.msgs.RestartOffer,
					RestartOptions: e.msgs.RestartOptions,
				}
			}
		}
	}

	decisionsTotal.WithLabelValues(string(d.Action), string(st.Stage)).Inc()
	return d
}

// route applies precedence rules in order; the first applicable rule
// returns immediately.
func (e *Engine) route(st *session.State, res *analyzer.Result, duplicate bool) Decision {
	// A threat is a strictly harder boundary than rudeness: always an
	// immediate, single-occurrence termination, outside strike
	// accounting.
	if res.Signals.Has(analyzer.SignalThreat) {
		st.Strikes.Threat++
		strikesTotal.WithLabelValues("threat").Inc()
		return Decision{
			NextStage:   session.StageTerminate,
			Action:      ActionTerminate,
			Termination: e.msgs.Terminations.Threat,
		}
	}

	target := e.target(st)

	if res.Signals.Has(analyzer.SignalRude) {
		if !duplicate {
			st.Strikes.Rude++
			strikesTotal.WithLabelValues("rude").Inc()
		}
		if st.Strikes.Rude >= e.cfg.StrikeThreshold {
			return Decision{
				NextStage:   session.StageTerminate,
				Action:      ActionTerminate,
				Termination: e.msgs.Terminations.Rude,
			}
		}
		return Decision{
			NextStage: target,
			Action:    ActionWarnAndRedirect,
			Warning:   e.msgs.Warnings.Rude,
			Question:  e.requiredQuestion(target),
		}
	}

	if res.Signals.Has(analyzer.SignalRefusesRepay) {
		if !duplicate {
			st.Strikes.RefuseRepay++
			strikesTotal.WithLabelValues("refuse_repay").Inc()
		}
		if st.Strikes.RefuseRepay >= e.cfg.StrikeThreshold {
			return Decision{
				NextStage:   session.StageTerminate,
				Action:      ActionTerminate,
				Termination: e.msgs.Terminations.Repay,
			}
		}
		return Decision{
			NextStage: target,
			Action:    ActionWarnAndRedirect,
			Warning:   e.msgs.Warnings.Repay,
			Question:  e.requiredQuestion(target),
		}
	}

	if res.Signals.Has(analyzer.SignalRefusesInfo) {
		if !duplicate {
			st.Strikes.RefuseInfo++
			strikesTotal.WithLabelValues("refuse_info").Inc()
		}
		if st.Strikes.RefuseInfo >= e.cfg.StrikeThreshold {
			// Two refusal strikes draw a boundary and leave a restart
			// offer outstanding rather than a hard termination.
			return Decision{
				NextStage:      st.Stage,
				Action:         ActionBoundaryRestart,
				Warning:        e.msgs.Terminations.Refuse,
				Clarification:  e.msgs.RestartOffer,
				RestartOptions: e.msgs.RestartOptions,
			}
		}
		return Decision{
			NextStage:   target,
			Action:      ActionWarnAndRedirect,
			Warning:     e.msgs.Warnings.Refuse,
			CoachingTip: e.msgs.ExampleFor(target),
			Question:    e.requiredQuestion(target),
		}
	}

	if res.Signals.Has(analyzer.SignalRepeatRequest) {
		question := st.LastQuestion
		if question == "" {
			question = e.requiredQuestion(target)
		}
		return Decision{
			NextStage:     st.Stage,
			Action:        ActionRepeatExplain,
			Clarification: e.msgs.ClarificationFor(st.Stage),
			Question:      question,
		}
	}

	if res.Signals.Has(analyzer.SignalClarification) {
		return Decision{
			NextStage:     target,
			Action:        ActionCoachAndAsk,
			Clarification: e.clarificationFor(target, st.Stage),
			Question:      e.requiredQuestion(target),
		}
	}

	if tip, ok := e.coachingTip(res); ok {
		return Decision{
			NextStage:   target,
			Action:      ActionCoachAndAsk,
			CoachingTip: tip,
			Question:    e.requiredQuestion(target),
		}
	}

	return e.defaultDecision(st, target)
}

// coachingTip implements the generalized coaching predicate in its
// fixed priority order: missing greeting, commanding tone, then
// low-relevance / should-coach appropriateness.
func (e *Engine) coachingTip(res *analyzer.Result) (string, bool) {
	switch {
	case res.Signals.Has(analyzer.SignalMissingGreeting):
		return e.msgs.Coaching.MissingGreeting, true
	case res.Signals.Has(analyzer.SignalCommandingTone):
		return e.msgs.Coaching.CommandingTone, true
	case res.Signals.Has(analyzer.SignalIllegalPurpose):
		return e.msgs.Coaching.IllegalPurpose, true
	case res.Signals.Has(analyzer.SignalUnrealisticPurpose):
		return e.msgs.Coaching.UnrealisticPurpose, true
	case res.Relevance == analyzer.RelevanceLow ||
		res.Appropriateness == analyzer.AppropriatenessCoach ||
		res.Appropriateness == analyzer.AppropriatenessBad:
		return e.msgs.Coaching.LowRelevance, true
	}
	return "", false
}

// defaultDecision asks the required question for the farthest reachable
// stage, or closes the conversation when nothing remains to ask.
func (e *Engine) defaultDecision(st *session.State, target session.Stage) Decision {
	switch target {
	case session.StageIneligible:
		return Decision{
			NextStage:      session.StageIneligible,
			Action:         ActionOfferRestart,
			Warning:        e.msgs.Ineligible,
			Clarification:  e.msgs.RestartOffer,
			RestartOptions: e.msgs.RestartOptions,
		}
	case session.StageGoodbye:
		d := Decision{
			NextStage: session.StageGoodbye,
			Action:    ActionEndSafely,
			Question:  e.msgs.GoodbyePrompt,
		}
		if st.Slots.Confirmation == session.ConfirmationAccepted && st.Slots.Identity.Complete() {
			d.Acknowledgement = e.msgs.Completion
		}
		return d
	default:
		return Decision{
			NextStage: target,
			Action:    ActionAskRequired,
			Question:  e.requiredQuestion(target),
		}
	}
}

// target computes the next required stage from the merged slots,
// folding in financial eligibility.
func (e *Engine) target(st *session.State) session.Stage {
	t := session.FarthestState(st.Slots)
	if t == session.StageSignConfirm &&
		st.Slots.HasIncome() && *st.Slots.Income < e.cfg.MinMonthlyIncome {
		return session.StageIneligible
	}
	return t
}

func (e *Engine) requiredQuestion(target session.Stage) string {
	if target == session.StageGoodbye {
		return e.msgs.GoodbyePrompt
	}
	return e.msgs.QuestionFor(target)
}

func (e *Engine) clarificationFor(target, current session.Stage) string {
	if c := e.msgs.ClarificationFor(current); c != "" {
		return c
	}
	return e.msgs.ClarificationFor(target)
}
