// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine is the deterministic routing brain of the interview:
// given the current stage, merged slots, the turn's signals, and the
// strike counters, it decides the next stage, the action, and the text
// fragments the responder renders. It has no external dependencies and
// cannot fail at runtime.
package engine

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianSim/services/interview/session"
)

// =============================================================================
// Embedded Default Messages
// =============================================================================

//go:embed messages.yaml
var defaultMessagesYAML []byte

// maxMessagesYAMLSize bounds the accepted config size.
const maxMessagesYAMLSize = 1 << 20

// =============================================================================
// Message Types
// =============================================================================

// Messages holds every scripted line the engine can emit: the required
// questions per stage, warnings, terminations, coaching tips, and the
// restart-offer menu. All text is Hebrew; the responder renders it
// through the generative model under a strict template.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Messages struct {
	// Greeting opens the very first turn of a session.
	Greeting string `yaml:"greeting" validate:"required"`

	// Acknowledgement follows the greeting on the first turn.
	Acknowledgement string `yaml:"acknowledgement" validate:"required"`

	// Completion acknowledges a fully signed application.
	Completion string `yaml:"completion" validate:"required"`

	// Questions are the required questions per asking stage.
	Questions map[string]string `yaml:"questions" validate:"required,dive,required"`

	// Examples are stage-specific example prompts used after an
	// information refusal.
	Examples map[string]string `yaml:"examples" validate:"required,dive,required"`

	// Clarifications are the stage-specific short explanations for
	// "why do you need that" turns.
	Clarifications map[string]string `yaml:"clarifications" validate:"required,dive,required"`

	Warnings struct {
		Rude   string `yaml:"rude" validate:"required"`
		Repay  string `yaml:"repay" validate:"required"`
		Refuse string `yaml:"refuse" validate:"required"`
	} `yaml:"warnings"`

	Terminations struct {
		Rude   string `yaml:"rude" validate:"required"`
		Repay  string `yaml:"repay" validate:"required"`
		Refuse string `yaml:"refuse" validate:"required"`
		Threat string `yaml:"threat" validate:"required"`
		Exit   string `yaml:"exit" validate:"required"`
	} `yaml:"terminations"`

	Coaching struct {
		MissingGreeting    string `yaml:"missing_greeting" validate:"required"`
		CommandingTone     string `yaml:"commanding_tone" validate:"required"`
		LowRelevance       string `yaml:"low_relevance" validate:"required"`
		UnrealisticPurpose string `yaml:"unrealistic_purpose" validate:"required"`
		IllegalPurpose     string `yaml:"illegal_purpose" validate:"required"`
	} `yaml:"coaching"`

	// Ineligible is shown once when income disqualifies the applicant.
	Ineligible string `yaml:"ineligible" validate:"required"`

	// GoodbyePrompt is the one-time "anything else / start over?" line
	// at the goodbye stage.
	GoodbyePrompt string `yaml:"goodbye_prompt" validate:"required"`

	// RestartOffer introduces the binary-choice escape hatch.
	RestartOffer string `yaml:"restart_offer" validate:"required"`

	// RestartOptions is the numbered choice list.
	RestartOptions []string `yaml:"restart_options" validate:"required,min=2,dive,required"`
}

// QuestionFor returns the required question for an asking stage.
// Stages without a question (goodbye, terminate) return "".
func (m *Messages) QuestionFor(stage session.Stage) string {
	return m.Questions[string(stage)]
}

// ExampleFor returns the stage's example prompt, or "".
func (m *Messages) ExampleFor(stage session.Stage) string {
	return m.Examples[string(stage)]
}

// ClarificationFor returns the stage's short explanation, or "".
func (m *Messages) ClarificationFor(stage session.Stage) string {
	return m.Clarifications[string(stage)]
}

// =============================================================================
// Singleton
// =============================================================================

var (
	messagesMu      sync.RWMutex
	cachedMessages  *Messages
	messagesLoadErr error
)

// GetMessages returns the embedded message configuration, loading and
// validating it on first call.
//
// Thread Safety: Safe for concurrent use.
func GetMessages() (*Messages, error) {
	messagesMu.RLock()
	if cachedMessages != nil || messagesLoadErr != nil {
		m, err := cachedMessages, messagesLoadErr
		messagesMu.RUnlock()
		return m, err
	}
	messagesMu.RUnlock()

	messagesMu.Lock()
	defer messagesMu.Unlock()
	if cachedMessages == nil && messagesLoadErr == nil {
		cachedMessages, messagesLoadErr = LoadMessages(defaultMessagesYAML)
	}
	return cachedMessages, messagesLoadErr
}

// ResetMessages clears the cached messages for testing.
func ResetMessages() {
	messagesMu.Lock()
	defer messagesMu.Unlock()
	cachedMessages = nil
	messagesLoadErr = nil
}

// LoadMessages parses and validates a Messages config from YAML bytes.
//
// Outputs:
//
//	*Messages - The validated configuration.
//	error - Non-nil if parsing or validation fails, including a missing
//	question for any asking stage.
func LoadMessages(data []byte) (*Messages, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("LoadMessages: empty YAML data")
	}
	if len(data) > maxMessagesYAMLSize {
		return nil, fmt.Errorf("LoadMessages: YAML data exceeds maximum size (%d > %d)", len(data), maxMessagesYAMLSize)
	}

	var m Messages
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("LoadMessages: parsing YAML: %w", err)
	}

	if err := validator.New().Struct(&m); err != nil {
		return nil, fmt.Errorf("LoadMessages: validation: %w", err)
	}

	// Every asking stage must have its required question.
	askingStages := []session.Stage{
		session.StageAskAmount, session.StageAskPurpose,
		session.StageCheckIncome, session.StageSignConfirm,
	}
	for _, st := range askingStages {
		if m.Questions[string(st)] == "" {
			return nil, fmt.Errorf("LoadMessages: missing question for stage %q", st)
		}
	}

	slog.Info("interview messages loaded",
		slog.Int("questions", len(m.Questions)),
		slog.Int("examples", len(m.Examples)),
		slog.Int("restart_options", len(m.RestartOptions)),
	)
	return &m, nil
}
