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

// EventType tags the ordered events a turn emits.
type EventType string

const (
	// EventAnalysis carries the analyzer's verdict. Always first.
	EventAnalysis EventType = "analysis"

	// EventTransition is emitted only when the stage changed.
	EventTransition EventType = "transition"

	// EventMessage carries the clerk's reply text.
	EventMessage EventType = "message"

	// EventDone is the end marker. Always last on success.
	EventDone EventType = "done"
)

// AnalysisEvent summarizes how the turn's input was understood.
type AnalysisEvent struct {
	// Passed is false when the input needed coaching or a boundary.
	Passed bool `json:"passed"`

	// Reasoning is a short human-readable verdict.
	Reasoning string `json:"reasoning"`

	// NextState is the stage the session is entering.
	NextState string `json:"next_state"`

	// Signals are the turn's signal and classification tags.
	Signals []string `json:"signals"`

	// SkipPersist is true when the turn deliberately left the stored
	// session untouched (locked terminal state).
	SkipPersist bool `json:"skip_persist"`
}

// TransitionEvent records a stage change.
type TransitionEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Event is one element of a turn's ordered event stream.
//
// Exactly one payload field matching Type is set.
type Event struct {
	Type       EventType        `json:"type"`
	Analysis   *AnalysisEvent   `json:"analysis,omitempty"`
	Transition *TransitionEvent `json:"transition,omitempty"`

	// Text is the reply body for EventMessage.
	Text string `json:"text,omitempty"`

	// Source reports whether the reply was model-phrased or templated.
	Source string `json:"source,omitempty"`
}

// EmitFunc receives a turn's events in order. Returning a non-nil error
// aborts the turn's emission; state already persisted stays persisted.
type EmitFunc func(Event) error
