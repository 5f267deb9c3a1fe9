// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scenario

import (
	"strings"
	"testing"
)

const pizzaScenario = `
scenario: pizza_order
start_stage: greet
stages:
  - id: greet
    prompt: "Welcome! What would you like to order?"
    transitions:
      - when: [ORDER_INTENT]
        to: take_order
        priority: 10
      - when: [GOODBYE]
        to: end
        priority: 5
  - id: take_order
    prompt: "Which toppings?"
    transitions:
      - when: [ORDER_COMPLETE, PAYMENT_READY]
        to: end
        priority: 20
      - when: [ORDER_COMPLETE]
        to: confirm
        priority: 10
      - when: [CANCEL]
        to: end
        priority: 10
  - id: confirm
    prompt: "Confirm your order?"
    transitions:
      - when: [CONFIRMED]
        to: end
        priority: 10
  - id: end
    prompt: "Thanks, goodbye!"
    terminal: true
`

func loadPizza(t *testing.T) *Graph {
	t.Helper()
	g, err := Load([]byte(pizzaScenario))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return g
}

func TestLoadValidGraph(t *testing.T) {
	g := loadPizza(t)
	if g.Name != "pizza_order" || g.StartStage != "greet" {
		t.Errorf("header mismatch: %s / %s", g.Name, g.StartStage)
	}
	if !g.IsTerminal("end") || g.IsTerminal("greet") {
		t.Error("terminal flags wrong")
	}
	if g.PromptFor("confirm") == "" {
		t.Error("prompt lookup failed")
	}
}

func TestLoadRejectsDefects(t *testing.T) {
	tests := []struct {
		name    string
		mangle  func(s string) string
		wantErr string
	}{
		{
			name:    "undefined transition target",
			mangle:  func(s string) string { return strings.Replace(s, "to: confirm", "to: nowhere", 1) },
			wantErr: "undefined stage",
		},
		{
			name:    "undefined start stage",
			mangle:  func(s string) string { return strings.Replace(s, "start_stage: greet", "start_stage: lobby", 1) },
			wantErr: "start stage",
		},
		{
			name:    "missing scenario name",
			mangle:  func(s string) string { return strings.Replace(s, "scenario: pizza_order", "scenario: \"\"", 1) },
			wantErr: "validation failed",
		},
		{
			name: "dead end stage",
			mangle: func(s string) string {
				return strings.Replace(s, "  - id: end\n    prompt: \"Thanks, goodbye!\"\n    terminal: true",
					"  - id: end\n    prompt: \"Thanks, goodbye!\"", 1)
			},
			wantErr: "no transitions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.mangle(pizzaScenario)))
			if err == nil {
				t.Fatal("want error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestNextPriorityOrdering(t *testing.T) {
	g := loadPizza(t)

	// Both the priority-20 and a priority-10 rule match; higher wins.
	next, ok := g.Next("take_order", []string{"ORDER_COMPLETE", "PAYMENT_READY"})
	if !ok || next != "end" {
		t.Errorf("Next = %s/%v, want end/true", next, ok)
	}

	// Only the lower-priority rule matches.
	next, ok = g.Next("take_order", []string{"ORDER_COMPLETE"})
	if !ok || next != "confirm" {
		t.Errorf("Next = %s/%v, want confirm/true", next, ok)
	}
}

func TestNextEqualPriorityKeepsDeclarationOrder(t *testing.T) {
	g := loadPizza(t)

	// ORDER_COMPLETE and CANCEL both carry priority 10; the first
	// declared rule resolves the ambiguity.
	next, ok := g.Next("take_order", []string{"ORDER_COMPLETE", "CANCEL"})
	if !ok || next != "confirm" {
		t.Errorf("Next = %s/%v, want confirm/true", next, ok)
	}
}

func TestNextNoMatchStaysPut(t *testing.T) {
	g := loadPizza(t)

	next, ok := g.Next("greet", []string{"SMALL_TALK"})
	if ok || next != "greet" {
		t.Errorf("Next = %s/%v, want greet/false", next, ok)
	}
}

func TestNextTerminalStageIsAbsorbing(t *testing.T) {
	g := loadPizza(t)

	next, ok := g.Next("end", []string{"ORDER_INTENT"})
	if ok || next != "end" {
		t.Errorf("Next = %s/%v, want end/false", next, ok)
	}
}
