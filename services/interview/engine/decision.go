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

import "github.com/AleutianAI/AleutianSim/services/interview/session"

// Action is what the responder should do with the decision.
type Action string

const (
	ActionAskRequired     Action = "ask_required"
	ActionCoachAndAsk     Action = "coach_and_ask"
	ActionWarnAndRedirect Action = "warn_and_redirect"
	ActionBoundaryRestart Action = "boundary_and_offer_restart"
	ActionRepeatExplain   Action = "repeat_and_explain"
	ActionOfferRestart    Action = "offer_restart"
	ActionEndSafely       Action = "end_conversation_safely"
	ActionTerminate       Action = "terminate"
)

// Decision is the engine's per-turn output: the next stage, the action,
// and the optional text fragments the responder assembles. Ephemeral —
// never persisted, consumed immediately.
type Decision struct {
	NextStage session.Stage
	Action    Action

	// Optional fragments, rendered in this order. Termination, when
	// present, overrides everything else.
	Greeting        string
	Acknowledgement string
	Warning         string
	Clarification   string
	CoachingTip     string
	Question        string
	Termination     string
	RestartOptions  []string
}

// Transitioned reports whether the decision moves the session to a new
// stage.
func (d Decision) Transitioned(from session.Stage) bool {
	return d.NextStage != from
}
