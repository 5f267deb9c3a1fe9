// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"strings"
	"time"
)

// Strikes are the per-category escalation counters. Each increments by
// exactly one per qualifying turn; a duplicate of the immediately
// preceding turn in the same stage suppresses the increment.
type Strikes struct {
	Rude        int `json:"rude"`
	RefuseInfo  int `json:"refuse_info"`
	RefuseRepay int `json:"refuse_repay"`
	Threat      int `json:"threat"`
}

// State is the full per-session interview state, owned exclusively by
// the orchestrator for its lifetime.
//
// Description:
//
//	Created on first turn or explicit reset, mutated once per turn,
//	persisted after every mutation. Either reset to a clean instance
//	(explicit restart) or frozen at the terminate stage for the rest of
//	the session's existence. The three prompt booleans are the nested
//	"shown once" sub-states of the absorbing stages.
//
// Thread Safety: Not safe for concurrent mutation; callers serialize
// turns per session via Locker.
type State struct {
	SessionID string  `json:"session_id"`
	Stage     Stage   `json:"stage"`
	Slots     Slots   `json:"slots"`
	Strikes   Strikes `json:"strikes"`

	TurnCount    int    `json:"turn_count"`
	Greeted      bool   `json:"greeted"`
	LastQuestion string `json:"last_question,omitempty"`

	// RetryCount counts consecutive non-productive turns in the current
	// stage; it resets on every stage change.
	RetryCount int `json:"retry_count"`

	// LastTurnText and LastTurnStage drive duplicate-turn detection.
	LastTurnText  string `json:"last_turn_text,omitempty"`
	LastTurnStage Stage  `json:"last_turn_stage,omitempty"`

	RestartOffered     bool `json:"restart_offered"`
	GoodbyePrompted    bool `json:"goodbye_prompted"`
	IneligiblePrompted bool `json:"ineligible_prompted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState returns a clean session at the start stage.
func NewState(sessionID string) *State {
	now := time.Now().UTC()
	return &State{
		SessionID: sessionID,
		Stage:     StageStart,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reset clears everything back to a fresh session, keeping only the
// session id and creation time.
func (s *State) Reset() {
	created := s.CreatedAt
	id := s.SessionID
	*s = *NewState(id)
	s.CreatedAt = created
}

// IsDuplicateTurn reports whether the given text repeats the previous
// turn verbatim (whitespace-insensitive) in the same stage.
func (s *State) IsDuplicateTurn(text string) bool {
	if s.LastTurnText == "" {
		return false
	}
	return s.LastTurnStage == s.Stage &&
		normalizeForCompare(text) == normalizeForCompare(s.LastTurnText)
}

// RecordTurn stamps the turn for the next duplicate check and bumps the
// turn counter.
func (s *State) RecordTurn(text string, stageAtEntry Stage) {
	s.LastTurnText = text
	s.LastTurnStage = stageAtEntry
	s.TurnCount++
	s.UpdatedAt = time.Now().UTC()
}

func normalizeForCompare(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
