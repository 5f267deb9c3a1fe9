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
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianSim/services/interview/session"
	"github.com/AleutianAI/AleutianSim/services/llm"
	"github.com/AleutianAI/AleutianSim/services/orchestrator/datatypes"
)

// fakeChatClient returns a canned response or error.
type fakeChatClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeChatClient) Chat(_ context.Context, _ []datatypes.Message, _ llm.GenerationParams) (string, error) {
	f.calls++
	return f.response, f.err
}

func (f *fakeChatClient) ChatStream(_ context.Context, _ []datatypes.Message, _ llm.GenerationParams, cb llm.StreamCallback) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if err := cb(llm.StreamEvent{Type: llm.StreamEventToken, Content: f.response}); err != nil {
		return err
	}
	return cb(llm.StreamEvent{Type: llm.StreamEventDone})
}

func ambiguousResult() *Result {
	r := &Result{Signals: make(SignalSet)}
	r.set(RelevanceLow, ClarityAmbiguous, AppropriatenessCoach, "טקסט לא ברור", "לא ענייני")
	return r
}

func newTestRefiner(t *testing.T, client llm.LLMClient) *Refiner {
	t.Helper()
	rf, err := NewRefiner(client, DefaultRefinerConfig(), nil)
	if err != nil {
		t.Fatalf("NewRefiner: %v", err)
	}
	return rf
}

// =============================================================================
// Refinement Tests
// =============================================================================

func TestRefine_AppliesValidResponse(t *testing.T) {
	client := &fakeChatClient{response: `{"relevance":"HIGH","appropriateness":"OK","clarity":"CLEAR","relevance_reason":"ענייני","appropriateness_reason":"תקין"}`}
	rf := newTestRefiner(t, client)

	r := ambiguousResult()
	rf.Refine(context.Background(), "טקסט", session.StageAskAmount, r)

	if !r.Refined {
		t.Fatal("result not marked refined")
	}
	if r.Relevance != RelevanceHigh || r.Clarity != ClarityClear || r.Appropriateness != AppropriatenessOK {
		t.Errorf("triple = %s/%s/%s", r.Relevance, r.Clarity, r.Appropriateness)
	}
	if r.RelevanceReason != "ענייני" {
		t.Errorf("reason not applied: %q", r.RelevanceReason)
	}
}

func TestRefine_StripsMarkdownFences(t *testing.T) {
	client := &fakeChatClient{response: "```json\n{\"relevance\":\"MED\",\"appropriateness\":\"COACH\",\"clarity\":\"CLEAR\",\"relevance_reason\":\"\",\"appropriateness_reason\":\"\"}\n```"}
	rf := newTestRefiner(t, client)

	r := ambiguousResult()
	rf.Refine(context.Background(), "טקסט", session.StageAskAmount, r)

	if !r.Refined || r.Relevance != RelevanceMed {
		t.Errorf("fenced JSON not applied: refined=%v relevance=%s", r.Refined, r.Relevance)
	}
	// Empty reasons keep the deterministic ones.
	if r.RelevanceReason == "" {
		t.Error("empty reason must not erase the deterministic reason")
	}
}

func TestRefine_MalformedResponseFailsOpen(t *testing.T) {
	client := &fakeChatClient{response: "sorry, I cannot classify that"}
	rf := newTestRefiner(t, client)

	r := ambiguousResult()
	rf.Refine(context.Background(), "טקסט", session.StageAskAmount, r)

	if r.Refined {
		t.Error("malformed response must be discarded")
	}
	if r.Relevance != RelevanceLow || r.Clarity != ClarityAmbiguous {
		t.Error("deterministic classification must stand")
	}
}

func TestRefine_OutOfEnumFailsOpen(t *testing.T) {
	client := &fakeChatClient{response: `{"relevance":"MAXIMUM","appropriateness":"OK","clarity":"CLEAR"}`}
	rf := newTestRefiner(t, client)

	r := ambiguousResult()
	rf.Refine(context.Background(), "טקסט", session.StageAskAmount, r)

	if r.Refined {
		t.Error("out-of-enum response must be discarded")
	}
	if r.Relevance != RelevanceLow {
		t.Error("deterministic relevance must stand")
	}
}

func TestRefine_ErrorFailsOpen(t *testing.T) {
	client := &fakeChatClient{err: errors.New("connection refused")}
	rf := newTestRefiner(t, client)

	r := ambiguousResult()
	rf.Refine(context.Background(), "טקסט", session.StageAskAmount, r)

	if r.Refined {
		t.Error("errored call must leave deterministic result")
	}
}

func TestAnalyze_RefinerOnlyCalledWhenAmbiguous(t *testing.T) {
	client := &fakeChatClient{response: `{"relevance":"LOW","appropriateness":"COACH","clarity":"AMBIGUOUS"}`}
	rf := newTestRefiner(t, client)
	a := New(rf, nil)

	// Clear, relevant turn: no refinement call.
	a.Analyze(context.Background(), "אני רוצה הלוואה של 5000", session.StageAskAmount)
	if client.calls != 0 {
		t.Errorf("refiner called %d times on a clear turn", client.calls)
	}

	// Off-topic turn: exactly one refinement call.
	a.Analyze(context.Background(), "ראית את המשחק אתמול?", session.StageAskAmount)
	if client.calls != 1 {
		t.Errorf("refiner calls = %d, want 1", client.calls)
	}
}
