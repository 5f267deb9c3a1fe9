// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package interview is the session-level control loop. It owns session
// lifecycle, serializes turns per session, and sequences analyzer,
// decision engine, persistence, and responder into one ordered event
// stream per turn. Session state is committed before the reply is
// generated, so an aborted stream never leaves a session inconsistent.
package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianSim/services/interview/analyzer"
	"github.com/AleutianAI/AleutianSim/services/interview/engine"
	"github.com/AleutianAI/AleutianSim/services/interview/lexical"
	"github.com/AleutianAI/AleutianSim/services/interview/responder"
	"github.com/AleutianAI/AleutianSim/services/interview/session"
)

var orchestratorTracer = otel.Tracer("aleutian.sim.interview")

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "interview",
		Subsystem: "orchestrator",
		Name:      "turns_total",
		Help:      "Processed turns by outcome",
	}, []string{"outcome"})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "interview",
		Subsystem: "orchestrator",
		Name:      "turn_duration_seconds",
		Help:      "End-to-end turn latency including reply generation",
		Buckets:   prometheus.DefBuckets,
	})

	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "interview",
		Subsystem: "orchestrator",
		Name:      "sessions_created_total",
		Help:      "Sessions created since process start",
	})
)

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator drives one scripted interview per session.
//
// Thread Safety: Safe for concurrent use across sessions. Turns for the
// same session are serialized by the internal locker.
type Orchestrator struct {
	store  session.Store
	locker *session.Locker
	an     *analyzer.Analyzer
	eng    *engine.Engine
	resp   *responder.Responder
	msgs   *engine.Messages
	logger *slog.Logger
}

// NewOrchestrator wires the turn pipeline. All dependencies are
// required except logger.
func NewOrchestrator(store session.Store, an *analyzer.Analyzer, eng *engine.Engine,
	resp *responder.Responder, msgs *engine.Messages, logger *slog.Logger) (*Orchestrator, error) {

	if store == nil || an == nil || eng == nil || resp == nil || msgs == nil {
		return nil, fmt.Errorf("NewOrchestrator: all dependencies are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:  store,
		locker: session.NewLocker(),
		an:     an,
		eng:    eng,
		resp:   resp,
		msgs:   msgs,
		logger: logger,
	}, nil
}

// =============================================================================
// Session Lifecycle
// =============================================================================

// CreateSession allocates a fresh session and persists it.
func (o *Orchestrator) CreateSession(ctx context.Context) (*session.State, error) {
	st := session.NewState(uuid.NewString())
	if err := o.store.Put(ctx, st.SessionID, st); err != nil {
		return nil, fmt.Errorf("CreateSession: persist failed: %w", err)
	}
	sessionsCreated.Inc()
	o.logger.Info("session created", slog.String("session_id", st.SessionID))
	return st, nil
}

// GetSession returns the current persisted state of a session.
func (o *Orchestrator) GetSession(ctx context.Context, sessionID string) (*session.State, error) {
	return o.store.Get(ctx, sessionID)
}

// DeleteSession removes a session from the store.
func (o *Orchestrator) DeleteSession(ctx context.Context, sessionID string) error {
	unlock := o.locker.Lock(sessionID)
	defer unlock()
	return o.store.Delete(ctx, sessionID)
}

// =============================================================================
// Turn Processing
// =============================================================================

// ProcessTurn runs one user turn end to end.
//
// Description:
//
//	Order of precedence before normal analysis: an explicit reset
//	command, the terminate lock, goodbye-prompt resolution, and an
//	outstanding restart offer. The normal path analyzes the text,
//	merges slots, routes through the decision engine, commits the
//	mutated session, and only then generates the reply. Events reach
//	emit in the fixed order analysis, optional transition, message,
//	done.
//
// Inputs:
//
//	ctx - Turn context; bounds the model calls.
//	sessionID - Must name an existing session.
//	text - The raw user utterance.
//	emit - Receives the turn's ordered events.
//
// Outputs:
//
//	error - session.ErrSessionNotFound for unknown sessions; a
//	persistence failure aborts the turn before any event is emitted.
//
// Thread Safety: Safe for concurrent use; same-session calls serialize.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, text string, emit EmitFunc) error {
	start := time.Now()
	ctx, span := orchestratorTracer.Start(ctx, "interview.process_turn",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()
	defer func() { turnDuration.Observe(time.Since(start).Seconds()) }()

	unlock := o.locker.Lock(sessionID)
	defer unlock()

	st, err := o.store.Get(ctx, sessionID)
	if err != nil {
		turnsTotal.WithLabelValues("load_error").Inc()
		return err
	}
	stageAtEntry := st.Stage
	span.SetAttributes(attribute.String("stage", string(stageAtEntry)))
	o.logger.Debug("session loaded",
		slog.String("session_id", sessionID),
		slog.String("stage", string(stageAtEntry)),
		slog.Bool("warm", o.store.WasWarm(sessionID)))

	// An explicit reset always wins, from any stage including terminate.
	if lexical.IsResetCommand(text) {
		return o.resetTurn(ctx, st, stageAtEntry, emit)
	}

	// Terminate is absorbing: same locked message forever, nothing
	// persisted, no strikes, no slot changes.
	if st.Stage == session.StageTerminate {
		turnsTotal.WithLabelValues("terminated_lock").Inc()
		return emitAll(emit,
			analysisEvent(false, "השיחה כבר הסתיימה", session.StageTerminate, nil, true),
			messageEvent(o.msgs.Terminations.Exit, responder.SourceTemplate),
			Event{Type: EventDone},
		)
	}

	// Goodbye is a one-prompt sub-state: show the prompt once, then
	// interpret the next turn as restart-or-leave.
	if st.Stage == session.StageGoodbye {
		if !st.GoodbyePrompted {
			st.GoodbyePrompted = true
			st.RecordTurn(text, stageAtEntry)
			if err := o.persist(ctx, st); err != nil {
				return err
			}
			turnsTotal.WithLabelValues("goodbye_prompt").Inc()
			return emitAll(emit,
				analysisEvent(true, "הצעת סיום", session.StageGoodbye, nil, false),
				messageEvent(o.msgs.GoodbyePrompt, responder.SourceTemplate),
				Event{Type: EventDone},
			)
		}
		if wantsRestart(text) {
			return o.resetTurn(ctx, st, stageAtEntry, emit)
		}
		return o.lockTerminate(ctx, st, stageAtEntry, emit)
	}

	// An outstanding restart offer resolves to restart, continue, or
	// exit. Unrecognized input clears the offer and falls through.
	if st.RestartOffered {
		folded := lexical.Fold(lexical.Normalize(text))
		switch {
		case lexical.RestartChoicePhrases.MatchesAny(folded):
			return o.resetTurn(ctx, st, stageAtEntry, emit)
		case lexical.ExitChoicePhrases.MatchesAny(folded):
			return o.lockTerminate(ctx, st, stageAtEntry, emit)
		case lexical.ContinueChoicePhrases.MatchesAny(folded):
			return o.resolveContinue(ctx, st, stageAtEntry, emit)
		default:
			st.RestartOffered = false
		}
	}

	return o.normalTurn(ctx, st, stageAtEntry, text, emit)
}

// normalTurn is the analyze-decide-persist-respond pipeline.
func (o *Orchestrator) normalTurn(ctx context.Context, st *session.State,
	stageAtEntry session.Stage, text string, emit EmitFunc) error {

	duplicate := st.IsDuplicateTurn(text)
	res := o.an.Analyze(ctx, text, st.Stage)
	st.Slots.Merge(res.Slots)

	d := o.eng.Decide(st, res, duplicate)

	// The ineligibility message is shown once. Re-entry redirects
	// straight to goodbye instead of repeating it.
	if d.NextStage == session.StageIneligible && st.IneligiblePrompted {
		d = engine.Decision{
			NextStage: session.StageGoodbye,
			Action:    engine.ActionEndSafely,
			Question:  o.msgs.GoodbyePrompt,
		}
	}

	transitioned := d.Transitioned(stageAtEntry)
	if transitioned {
		st.RetryCount = 0
	}

	st.RecordTurn(text, stageAtEntry)
	if d.Question != "" {
		st.LastQuestion = d.Question
	}
	st.Stage = d.NextStage

	switch d.Action {
	case engine.ActionOfferRestart, engine.ActionBoundaryRestart:
		st.RestartOffered = true
	}
	switch st.Stage {
	case session.StageGoodbye:
		st.GoodbyePrompted = true
	case session.StageIneligible:
		st.IneligiblePrompted = true
	}

	if err := o.persist(ctx, st); err != nil {
		return err
	}

	events := []Event{
		analysisEvent(turnPassed(res, d), turnReasoning(res), d.NextStage, res.AllTags(), false),
	}
	if transitioned {
		events = append(events, Event{
			Type: EventTransition,
			Transition: &TransitionEvent{
				From: string(stageAtEntry),
				To:   string(d.NextStage),
			},
		})
	}

	reply, src := o.resp.Respond(ctx, st.Stage, d)
	events = append(events, messageEvent(reply, src), Event{Type: EventDone})

	turnsTotal.WithLabelValues(string(d.Action)).Inc()
	return emitAll(emit, events...)
}

// resetTurn rebuilds the session and emits only the opening greeting
// and first question, bypassing the decision engine.
func (o *Orchestrator) resetTurn(ctx context.Context, st *session.State,
	stageAtEntry session.Stage, emit EmitFunc) error {

	st.Reset()
	st.Greeted = true
	st.LastQuestion = o.msgs.QuestionFor(session.StageAskAmount)
	st.TurnCount = 1

	if err := o.persist(ctx, st); err != nil {
		return err
	}
	o.logger.Info("session reset", slog.String("session_id", st.SessionID))
	turnsTotal.WithLabelValues("reset").Inc()

	events := []Event{
		analysisEvent(true, "איפוס שיחה", st.Stage, []string{"RESET"}, false),
	}
	if stageAtEntry != st.Stage {
		events = append(events, Event{
			Type:       EventTransition,
			Transition: &TransitionEvent{From: string(stageAtEntry), To: string(st.Stage)},
		})
	}
	opening := strings.Join([]string{
		o.msgs.Greeting, o.msgs.Acknowledgement, st.LastQuestion,
	}, " ")
	events = append(events,
		messageEvent(opening, responder.SourceTemplate),
		Event{Type: EventDone},
	)
	return emitAll(emit, events...)
}

// lockTerminate freezes the session with the safe closing message.
func (o *Orchestrator) lockTerminate(ctx context.Context, st *session.State,
	stageAtEntry session.Stage, emit EmitFunc) error {

	st.Stage = session.StageTerminate
	st.TurnCount++
	if err := o.persist(ctx, st); err != nil {
		return err
	}
	turnsTotal.WithLabelValues("exit").Inc()

	events := []Event{
		analysisEvent(true, "סיום שיחה", session.StageTerminate, nil, false),
	}
	if stageAtEntry != session.StageTerminate {
		events = append(events, Event{
			Type:       EventTransition,
			Transition: &TransitionEvent{From: string(stageAtEntry), To: string(session.StageTerminate)},
		})
	}
	events = append(events,
		messageEvent(o.msgs.Terminations.Exit, responder.SourceTemplate),
		Event{Type: EventDone},
	)
	return emitAll(emit, events...)
}

// resolveContinue clears the restart offer and re-asks where the
// interview left off. Continuing from the ineligible branch has nowhere
// to go but goodbye.
func (o *Orchestrator) resolveContinue(ctx context.Context, st *session.State,
	stageAtEntry session.Stage, emit EmitFunc) error {

	st.RestartOffered = false

	if st.Stage == session.StageIneligible {
		st.Stage = session.StageGoodbye
		st.GoodbyePrompted = true
		st.TurnCount++
		if err := o.persist(ctx, st); err != nil {
			return err
		}
		turnsTotal.WithLabelValues("continue").Inc()
		return emitAll(emit,
			analysisEvent(true, "המשך שיחה", session.StageGoodbye, nil, false),
			Event{
				Type:       EventTransition,
				Transition: &TransitionEvent{From: string(stageAtEntry), To: string(session.StageGoodbye)},
			},
			messageEvent(o.msgs.GoodbyePrompt, responder.SourceTemplate),
			Event{Type: EventDone},
		)
	}

	question := st.LastQuestion
	if question == "" {
		question = o.msgs.QuestionFor(session.FarthestState(st.Slots))
	}
	st.LastQuestion = question
	st.TurnCount++
	if err := o.persist(ctx, st); err != nil {
		return err
	}
	turnsTotal.WithLabelValues("continue").Inc()
	return emitAll(emit,
		analysisEvent(true, "המשך שיחה", st.Stage, nil, false),
		messageEvent(question, responder.SourceTemplate),
		Event{Type: EventDone},
	)
}

// =============================================================================
// Helpers
// =============================================================================

func (o *Orchestrator) persist(ctx context.Context, st *session.State) error {
	st.UpdatedAt = time.Now().UTC()
	if err := o.store.Put(ctx, st.SessionID, st); err != nil {
		turnsTotal.WithLabelValues("persist_error").Inc()
		o.logger.Error("session persist failed",
			slog.String("session_id", st.SessionID),
			slog.String("error", err.Error()))
		return fmt.Errorf("ProcessTurn: persist failed for session %s: %w", st.SessionID, err)
	}
	return nil
}

// wantsRestart interprets a post-goodbye reply. Only an explicit yes or
// restart phrase reopens the session; everything else closes it.
func wantsRestart(text string) bool {
	folded := lexical.Fold(lexical.Normalize(text))
	return lexical.RestartChoicePhrases.MatchesAny(folded) ||
		lexical.ConfirmYesPhrases.MatchesAny(folded)
}

func turnPassed(res *analyzer.Result, d engine.Decision) bool {
	switch d.Action {
	case engine.ActionAskRequired, engine.ActionEndSafely, engine.ActionRepeatExplain:
		return res.Appropriateness == analyzer.AppropriatenessOK
	}
	return false
}

func turnReasoning(res *analyzer.Result) string {
	if res.AppropriatenessReason != "" && res.AppropriatenessReason != res.RelevanceReason {
		return res.RelevanceReason + "; " + res.AppropriatenessReason
	}
	return res.RelevanceReason
}

func analysisEvent(passed bool, reasoning string, next session.Stage, signals []string, skipPersist bool) Event {
	return Event{
		Type: EventAnalysis,
		Analysis: &AnalysisEvent{
			Passed:      passed,
			Reasoning:   reasoning,
			NextState:   string(next),
			Signals:     signals,
			SkipPersist: skipPersist,
		},
	}
}

func messageEvent(text string, src responder.Source) Event {
	return Event{Type: EventMessage, Text: text, Source: string(src)}
}

func emitAll(emit EmitFunc, events ...Event) error {
	for _, ev := range events {
		if err := emit(ev); err != nil {
			return err
		}
	}
	return nil
}
