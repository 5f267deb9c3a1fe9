// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package interview

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianSim/services/interview/analyzer"
	"github.com/AleutianAI/AleutianSim/services/interview/engine"
	"github.com/AleutianAI/AleutianSim/services/interview/responder"
	"github.com/AleutianAI/AleutianSim/services/interview/session"
)

// =============================================================================
// Harness
// =============================================================================

type harness struct {
	orch  *Orchestrator
	store *flakyStore
	msgs  *engine.Messages
}

// flakyStore wraps the memory store so tests can inject a write
// failure.
type flakyStore struct {
	*session.MemoryStore
	failPut bool
	warm    bool
}

func (f *flakyStore) Put(ctx context.Context, sessionID string, st *session.State) error {
	if f.failPut {
		return errors.New("disk full")
	}
	return f.MemoryStore.Put(ctx, sessionID, st)
}

func (f *flakyStore) WasWarm(string) bool { return f.warm }

// recordingHandler captures slog records so tests can assert on
// structured log attributes.
type recordingHandler struct {
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func newHarness(t *testing.T) *harness {
	t.Helper()
	msgs, err := engine.GetMessages()
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	store := &flakyStore{MemoryStore: session.NewMemoryStore()}
	orch, err := NewOrchestrator(
		store,
		analyzer.New(nil, nil),
		engine.New(msgs, engine.DefaultConfig(), nil),
		responder.New(nil, responder.DefaultConfig(), nil),
		msgs, nil,
	)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return &harness{orch: orch, store: store, msgs: msgs}
}

func (h *harness) newSession(t *testing.T) string {
	t.Helper()
	st, err := h.orch.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return st.SessionID
}

// turn runs one turn and returns its events.
func (h *harness) turn(t *testing.T, id, text string) []Event {
	t.Helper()
	var events []Event
	err := h.orch.ProcessTurn(context.Background(), id, text, func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("ProcessTurn(%q): %v", text, err)
	}
	return events
}

func (h *harness) state(t *testing.T, id string) *session.State {
	t.Helper()
	st, err := h.orch.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	return st
}

func messageText(t *testing.T, events []Event) string {
	t.Helper()
	for _, ev := range events {
		if ev.Type == EventMessage {
			return ev.Text
		}
	}
	t.Fatal("no message event emitted")
	return ""
}

func analysisOf(t *testing.T, events []Event) *AnalysisEvent {
	t.Helper()
	if len(events) == 0 || events[0].Type != EventAnalysis {
		t.Fatal("first event must be the analysis event")
	}
	return events[0].Analysis
}

func hasTransition(events []Event, from, to session.Stage) bool {
	for _, ev := range events {
		if ev.Type == EventTransition &&
			ev.Transition.From == string(from) && ev.Transition.To == string(to) {
			return true
		}
	}
	return false
}

// =============================================================================
// Happy Path
// =============================================================================

func TestFullInterviewHappyPath(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	ev := h.turn(t, id, "שלום, אני רוצה הלוואה")
	if !hasTransition(ev, session.StageStart, session.StageAskAmount) {
		t.Fatal("first turn must transition start -> ask_amount")
	}
	if !strings.Contains(messageText(t, ev), h.msgs.Greeting) {
		t.Error("first turn must include the greeting")
	}

	ev = h.turn(t, id, "עשרים אלף שקל")
	if !hasTransition(ev, session.StageAskAmount, session.StageAskPurpose) {
		t.Fatal("amount must advance to ask_purpose")
	}

	ev = h.turn(t, id, "שיפוץ הדירה")
	if !hasTransition(ev, session.StageAskPurpose, session.StageCheckIncome) {
		t.Fatal("purpose must advance to check_income")
	}

	ev = h.turn(t, id, "8,000 שקל בחודש")
	if !hasTransition(ev, session.StageCheckIncome, session.StageSignConfirm) {
		t.Fatal("income must advance to sign_confirm")
	}

	ev = h.turn(t, id, "אני מאשר. שמי דוד כהן, תעודת זהות 012345678")
	if !hasTransition(ev, session.StageSignConfirm, session.StageGoodbye) {
		t.Fatal("signed application must advance to goodbye")
	}
	if !strings.Contains(messageText(t, ev), h.msgs.Completion) {
		t.Error("signed application must include the completion message")
	}

	st := h.state(t, id)
	if st.Slots.Amount == nil || *st.Slots.Amount != 20000 {
		t.Errorf("amount = %v, want 20000", st.Slots.Amount)
	}
	if st.Slots.Income == nil || *st.Slots.Income != 8000 {
		t.Errorf("income = %v, want 8000", st.Slots.Income)
	}
	if st.Slots.Identity.IDNumber != "012345678" {
		t.Errorf("id number = %q", st.Slots.Identity.IDNumber)
	}
	if !st.GoodbyePrompted {
		t.Error("entering goodbye must mark the prompt shown")
	}
}

func TestStageSkipInFirstTurn(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	ev := h.turn(t, id, "שלום, אני צריך הלוואה של 10,000 שקל לשיפוץ, ההכנסה שלי 15,000 בחודש")

	if !hasTransition(ev, session.StageStart, session.StageSignConfirm) {
		t.Fatal("volunteering all slots must land directly at sign_confirm")
	}
	st := h.state(t, id)
	if st.Slots.Confirmation != session.ConfirmationUnset {
		t.Error("confirmation must stay unset before the signing stage")
	}
}

// =============================================================================
// Goodbye and Terminate
// =============================================================================

func TestGoodbyeDeclineLocksTerminate(t *testing.T) {
	h := newHarness(t)
	id := h.driveToGoodbye(t)

	ev := h.turn(t, id, "לא תודה, זה הכל")
	if !hasTransition(ev, session.StageGoodbye, session.StageTerminate) {
		t.Fatal("a non-restart reply after the goodbye prompt must lock terminate")
	}
	if messageText(t, ev) != h.msgs.Terminations.Exit {
		t.Error("closing must use the safe exit message")
	}
}

func TestGoodbyeYesRestartsFresh(t *testing.T) {
	h := newHarness(t)
	id := h.driveToGoodbye(t)

	h.turn(t, id, "כן, נתחיל מחדש")

	st := h.state(t, id)
	if st.Stage != session.StageStart {
		t.Errorf("stage = %s, want start", st.Stage)
	}
	if st.Slots.HasAmount() {
		t.Error("restart must clear accumulated slots")
	}
}

func TestTerminateLockHoldsForever(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	h.turn(t, id, "אני אהרוג אותך")
	if st := h.state(t, id); st.Stage != session.StageTerminate {
		t.Fatalf("threat must terminate, stage = %s", st.Stage)
	}
	before := h.state(t, id)

	for i := 0; i < 3; i++ {
		ev := h.turn(t, id, "שלום? יש שם מישהו? ההכנסה שלי 9000")
		a := analysisOf(t, ev)
		if !a.SkipPersist {
			t.Error("turns on a terminated session must skip persistence")
		}
		if messageText(t, ev) != h.msgs.Terminations.Exit {
			t.Error("terminated sessions must return the same locked message")
		}
	}

	after := h.state(t, id)
	if after.TurnCount != before.TurnCount || after.Slots.HasIncome() {
		t.Error("terminated session state must not change")
	}
}

func TestResetWinsEvenWhenTerminated(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	h.turn(t, id, "אני אהרוג אותך")
	ev := h.turn(t, id, "[RESET]")

	st := h.state(t, id)
	if st.Stage != session.StageStart {
		t.Errorf("stage = %s, want start", st.Stage)
	}
	if st.Strikes.Threat != 0 {
		t.Error("reset must clear strikes")
	}
	if !st.Greeted {
		t.Error("reset must mark the session greeted")
	}
	msg := messageText(t, ev)
	if !strings.Contains(msg, h.msgs.Greeting) ||
		!strings.Contains(msg, h.msgs.QuestionFor(session.StageAskAmount)) {
		t.Error("reset must emit the greeting and the first question")
	}
}

// =============================================================================
// Ineligible Branch and Restart Offers
// =============================================================================

// driveToIneligible fills amount and purpose, then reports no income.
func (h *harness) driveToIneligible(t *testing.T) string {
	t.Helper()
	id := h.newSession(t)
	h.turn(t, id, "שלום, אני רוצה הלוואה")
	h.turn(t, id, "עשרים אלף")
	h.turn(t, id, "שיפוץ")
	ev := h.turn(t, id, "אין לי הכנסה")
	if !hasTransition(ev, session.StageCheckIncome, session.StageIneligible) {
		t.Fatal("no income must route to ineligible_financial")
	}
	return id
}

func (h *harness) driveToGoodbye(t *testing.T) string {
	t.Helper()
	id := h.newSession(t)
	h.turn(t, id, "שלום, אני רוצה הלוואה")
	h.turn(t, id, "עשרים אלף")
	h.turn(t, id, "שיפוץ")
	h.turn(t, id, "8000 שקל")
	h.turn(t, id, "אני מאשר. שמי דוד כהן, תעודת זהות 012345678")
	if st := h.state(t, id); st.Stage != session.StageGoodbye {
		t.Fatalf("setup: stage = %s, want goodbye", st.Stage)
	}
	return id
}

func TestZeroIncomeNeverReturnsToCheckIncome(t *testing.T) {
	h := newHarness(t)
	id := h.driveToIneligible(t)

	if st := h.state(t, id); !st.RestartOffered || !st.IneligiblePrompted {
		t.Fatal("ineligible branch must leave a restart offer outstanding")
	}

	// Unrecognized reply clears the offer and falls through; re-entry
	// into ineligible redirects straight to goodbye.
	ev := h.turn(t, id, "טוב, הבנתי")
	if !hasTransition(ev, session.StageIneligible, session.StageGoodbye) {
		t.Fatal("acknowledgement after ineligibility must route to goodbye")
	}
	if st := h.state(t, id); st.Stage == session.StageCheckIncome {
		t.Error("session must never return to check_income after ineligibility")
	}
}

func TestRestartOfferNumericChoices(t *testing.T) {
	h := newHarness(t)

	t.Run("choice 1 restarts", func(t *testing.T) {
		id := h.driveToIneligible(t)
		h.turn(t, id, "1")
		if st := h.state(t, id); st.Stage != session.StageStart || st.Slots.HasAmount() {
			t.Errorf("restart choice must yield a fresh session, stage = %s", st.Stage)
		}
	})

	t.Run("choice 3 exits", func(t *testing.T) {
		id := h.driveToIneligible(t)
		ev := h.turn(t, id, "3")
		if !hasTransition(ev, session.StageIneligible, session.StageTerminate) {
			t.Error("exit choice must lock terminate")
		}
	})
}

// =============================================================================
// Duplicate Suppression and Persistence
// =============================================================================

func TestDuplicateTurnDoesNotDoubleStrike(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)
	h.turn(t, id, "שלום, אני רוצה הלוואה")

	h.turn(t, id, "אתה אידיוט")
	if st := h.state(t, id); st.Strikes.Rude != 1 {
		t.Fatalf("rude strikes = %d, want 1", st.Strikes.Rude)
	}

	h.turn(t, id, "אתה אידיוט")
	st := h.state(t, id)
	if st.Strikes.Rude != 1 {
		t.Errorf("duplicate rude turn must not add a strike, got %d", st.Strikes.Rude)
	}
	if st.Stage == session.StageTerminate {
		t.Error("duplicate turn must not escalate to termination")
	}
}

func TestPersistFailureAbortsTurn(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	h.store.failPut = true
	var events []Event
	err := h.orch.ProcessTurn(context.Background(), id, "שלום", func(ev Event) error {
		events = append(events, ev)
		return nil
	})

	if err == nil {
		t.Fatal("a failed persistence write must fail the turn")
	}
	if len(events) != 0 {
		t.Errorf("no events may be emitted for an unpersisted turn, got %d", len(events))
	}
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	h := newHarness(t)
	err := h.orch.ProcessTurn(context.Background(), "no-such-session", "שלום", func(Event) error {
		return nil
	})
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestEventOrdering(t *testing.T) {
	h := newHarness(t)
	id := h.newSession(t)

	ev := h.turn(t, id, "שלום, אני רוצה הלוואה")

	wantOrder := []EventType{EventAnalysis, EventTransition, EventMessage, EventDone}
	if len(ev) != len(wantOrder) {
		t.Fatalf("got %d events, want %d", len(ev), len(wantOrder))
	}
	for i, want := range wantOrder {
		if ev[i].Type != want {
			t.Errorf("event[%d] = %s, want %s", i, ev[i].Type, want)
		}
	}
	if ev[0].Analysis.NextState != string(session.StageAskAmount) {
		t.Errorf("analysis next_state = %s", ev[0].Analysis.NextState)
	}
}

func TestProcessTurnLogsWarmSessionLoad(t *testing.T) {
	msgs, err := engine.GetMessages()
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	store := &flakyStore{MemoryStore: session.NewMemoryStore(), warm: true}
	handler := &recordingHandler{}
	orch, err := NewOrchestrator(
		store,
		analyzer.New(nil, nil),
		engine.New(msgs, engine.DefaultConfig(), nil),
		responder.New(nil, responder.DefaultConfig(), nil),
		msgs, slog.New(handler),
	)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	st, err := orch.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := orch.ProcessTurn(context.Background(), st.SessionID, "שלום", func(Event) error {
		return nil
	}); err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}

	found := false
	for _, r := range handler.records {
		if r.Message != "session loaded" {
			continue
		}
		found = true
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "warm" && !a.Value.Bool() {
				t.Error("warm attribute = false, want true")
			}
			return true
		})
	}
	if !found {
		t.Fatal("turn did not log the session load")
	}
}
