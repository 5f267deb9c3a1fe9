// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scenario is the generic, data-driven cousin of the scripted
// bank interview. A scenario is a YAML-defined graph of stages with
// priority-ordered transition rules keyed on classifier signal tags.
// It carries none of the interview's slot or strike machinery; the only
// shared shape is "stage, transition, priority".
package scenario

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// maxScenarioYAMLSize bounds scenario files.
const maxScenarioYAMLSize = 1 << 20

// Transition is one rule out of a stage. A rule matches when every tag
// in When is present in the turn's tag set.
type Transition struct {
	// When lists the required signal tags, e.g. ["ORDER_INTENT"].
	When []string `yaml:"when" validate:"required,min=1,dive,required"`

	// To names the destination stage.
	To string `yaml:"to" validate:"required"`

	// Priority orders rules within a stage; higher wins. Equal
	// priorities keep declaration order, so ambiguity resolves to the
	// first matching rule.
	Priority int `yaml:"priority"`
}

// Stage is one node of the graph.
type Stage struct {
	ID          string       `yaml:"id" validate:"required"`
	Prompt      string       `yaml:"prompt" validate:"required"`
	Terminal    bool         `yaml:"terminal"`
	Transitions []Transition `yaml:"transitions" validate:"dive"`
}

// Graph is a loaded, validated scenario.
//
// Thread Safety: Read-only after Load, safe for concurrent use.
type Graph struct {
	Name       string  `yaml:"scenario" validate:"required"`
	StartStage string  `yaml:"start_stage" validate:"required"`
	Stages     []Stage `yaml:"stages" validate:"required,min=1,dive"`

	byID map[string]*Stage
}

// Load parses and validates a scenario definition.
//
// Description:
//
//	Structural validation first (required fields, at least one stage),
//	then referential checks: the start stage exists, every transition
//	target exists, and non-terminal stages have at least one way out.
//	Within each stage, transitions are sorted by descending priority
//	with declaration order preserved among equals.
//
// Inputs:
//
//	data - Raw YAML.
//
// Outputs:
//
//	*Graph - The ready-to-use graph.
//	error - Any structural or referential defect.
//
// Thread Safety: Safe for concurrent use.
func Load(data []byte) (*Graph, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("scenario.Load: empty YAML data")
	}
	if len(data) > maxScenarioYAMLSize {
		return nil, fmt.Errorf("scenario.Load: YAML data exceeds maximum size (%d > %d)",
			len(data), maxScenarioYAMLSize)
	}

	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("scenario.Load: parse failed: %w", err)
	}
	if err := validator.New().Struct(&g); err != nil {
		return nil, fmt.Errorf("scenario.Load: validation failed: %w", err)
	}

	g.byID = make(map[string]*Stage, len(g.Stages))
	for i := range g.Stages {
		st := &g.Stages[i]
		if _, dup := g.byID[st.ID]; dup {
			return nil, fmt.Errorf("scenario.Load: duplicate stage id %q", st.ID)
		}
		g.byID[st.ID] = st
	}

	if _, ok := g.byID[g.StartStage]; !ok {
		return nil, fmt.Errorf("scenario.Load: start stage %q is not defined", g.StartStage)
	}
	for _, st := range g.Stages {
		if !st.Terminal && len(st.Transitions) == 0 {
			return nil, fmt.Errorf("scenario.Load: non-terminal stage %q has no transitions", st.ID)
		}
		for _, tr := range st.Transitions {
			if _, ok := g.byID[tr.To]; !ok {
				return nil, fmt.Errorf("scenario.Load: stage %q transitions to undefined stage %q",
					st.ID, tr.To)
			}
		}
	}

	for i := range g.Stages {
		sort.SliceStable(g.Stages[i].Transitions, func(a, b int) bool {
			return g.Stages[i].Transitions[a].Priority > g.Stages[i].Transitions[b].Priority
		})
	}
	return &g, nil
}

// Next resolves one turn's transition.
//
// Description:
//
//	Rules are tried in priority order; the first rule whose required
//	tags are all present wins. No match, an unknown stage, or a
//	terminal stage leaves the graph where it is.
//
// Inputs:
//
//	current - The current stage id.
//	tags - The turn's classifier tags.
//
// Outputs:
//
//	string - The next stage id (current when nothing matched).
//	bool - Whether a transition fired.
//
// Thread Safety: Safe for concurrent use.
func (g *Graph) Next(current string, tags []string) (string, bool) {
	st, ok := g.byID[current]
	if !ok || st.Terminal {
		return current, false
	}

	tagSet := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagSet[t] = true
	}

	for _, tr := range st.Transitions {
		matched := true
		for _, want := range tr.When {
			if !tagSet[want] {
				matched = false
				break
			}
		}
		if matched {
			return tr.To, true
		}
	}
	return current, false
}

// PromptFor returns the stage's prompt, or "" for an unknown stage.
func (g *Graph) PromptFor(stageID string) string {
	if st, ok := g.byID[stageID]; ok {
		return st.Prompt
	}
	return ""
}

// IsTerminal reports whether the stage ends the scenario.
func (g *Graph) IsTerminal(stageID string) bool {
	st, ok := g.byID[stageID]
	return ok && st.Terminal
}
