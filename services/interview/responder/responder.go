// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package responder turns a decision into the clerk's reply text.
//
// The decision engine owns every fact in the reply; the responder only
// phrases it. An LLM may rewrite the scripted fragments into one natural
// paragraph, but the deterministic template built from the same fragments
// is always available and is the output of record whenever the model is
// absent, slow, failing, or caught violating the guardrail. Termination
// messages and the restart option list are never given to the model.
package responder

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianSim/services/interview/engine"
	"github.com/AleutianAI/AleutianSim/services/interview/session"
	"github.com/AleutianAI/AleutianSim/services/llm"
	"github.com/AleutianAI/AleutianSim/services/orchestrator/datatypes"
)

var responderTracer = otel.Tracer("aleutian.sim.interview.responder")

// =============================================================================
// Configuration
// =============================================================================

// Config bounds the phrasing call.
type Config struct {
	// Timeout caps the model call. On expiry the template is used.
	Timeout time.Duration

	// Temperature for the phrasing call. Low but non-zero: the reply
	// should vary in wording, never in content.
	Temperature float32

	// MaxTokens caps the phrased reply.
	MaxTokens int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:     6 * time.Second,
		Temperature: 0.3,
		MaxTokens:   256,
	}
}

// =============================================================================
// Responder
// =============================================================================

// Source identifies where a reply's text came from.
type Source string

const (
	// SourceTemplate means the deterministic template was used.
	SourceTemplate Source = "template"

	// SourceLLM means the model's phrasing passed all checks.
	SourceLLM Source = "llm"
)

// Responder phrases decisions. A nil client is valid and yields
// template-only output.
//
// Thread Safety: Safe for concurrent use.
type Responder struct {
	client llm.LLMClient
	cfg    Config
	logger *slog.Logger
}

// New creates a Responder. client may be nil to disable model phrasing.
func New(client llm.LLMClient, cfg Config, logger *slog.Logger) *Responder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{client: client, cfg: cfg, logger: logger}
}

// Respond produces the reply text for a decision.
//
// Description:
//
//	Terminations and restart offers are returned verbatim. Other
//	decisions are handed to the model as fragments with a strict
//	render-only instruction; the model's text is buffered in full and
//	checked before anything is returned, so no unvalidated token ever
//	reaches the caller. Any model failure, timeout, empty reply, or
//	guardrail violation falls back to the deterministic template.
//
// Inputs:
//
//	ctx - Turn context. The model call gets a derived timeout.
//	stage - The stage the session is entering; selects guardrails.
//	d - The decision to phrase.
//
// Outputs:
//
//	string - The reply text. Never empty for a well-formed decision.
//	Source - Whether the model's phrasing or the template was used.
//
// Thread Safety: Safe for concurrent use.
func (r *Responder) Respond(ctx context.Context, stage session.Stage, d engine.Decision) (string, Source) {
	ctx, span := responderTracer.Start(ctx, "responder.respond",
		trace.WithAttributes(
			attribute.String("action", string(d.Action)),
			attribute.String("stage", string(stage)),
		))
	defer span.End()

	template := Template(d)

	if r.client == nil || !phrasable(d) {
		span.SetAttributes(attribute.String("source", string(SourceTemplate)))
		return template, SourceTemplate
	}

	phrased, err := r.phrase(ctx, d)
	if err != nil {
		r.logger.Warn("responder: model phrasing failed, using template",
			slog.String("action", string(d.Action)),
			slog.String("error", err.Error()))
		recordResponderOutcome("model_error")
		span.SetAttributes(attribute.String("source", string(SourceTemplate)))
		return template, SourceTemplate
	}

	phrased = strings.TrimSpace(phrased)
	if phrased == "" {
		recordResponderOutcome("empty")
		span.SetAttributes(attribute.String("source", string(SourceTemplate)))
		return template, SourceTemplate
	}

	if reason, violated := CheckGuardrails(phrased, stage); violated {
		r.logger.Warn("responder: guardrail violation, using template",
			slog.String("stage", string(stage)),
			slog.String("violation", reason))
		recordResponderOutcome("guardrail_" + reason)
		span.SetAttributes(
			attribute.String("source", string(SourceTemplate)),
			attribute.String("violation", reason),
		)
		return template, SourceTemplate
	}

	recordResponderOutcome("phrased")
	span.SetAttributes(attribute.String("source", string(SourceLLM)))
	return phrased, SourceLLM
}

// phrasable reports whether a decision may be rephrased at all.
// Terminations and restart offers must reach the user word for word.
func phrasable(d engine.Decision) bool {
	if d.Termination != "" {
		return false
	}
	switch d.Action {
	case engine.ActionTerminate, engine.ActionOfferRestart, engine.ActionBoundaryRestart:
		return false
	}
	return true
}

// phrase streams the model's rewrite into a buffer. The stream is
// consumed fully before any text is used; a mid-stream error discards
// the partial buffer.
func (r *Responder) phrase(ctx context.Context, d engine.Decision) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	messages := []datatypes.Message{
		{Role: "system", Content: renderInstruction},
		{Role: "user", Content: fragmentPrompt(d)},
	}
	params := llm.GenerationParams{
		Temperature: &r.cfg.Temperature,
		MaxTokens:   &r.cfg.MaxTokens,
	}

	var buf strings.Builder
	err := r.client.ChatStream(ctx, messages, params, func(ev llm.StreamEvent) error {
		if ev.Type == llm.StreamEventToken {
			buf.WriteString(ev.Content)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// =============================================================================
// Template Assembly
// =============================================================================

// Template joins the decision's fragments deterministically. A
// termination message replaces everything else; restart options are
// appended one per line.
func Template(d engine.Decision) string {
	if d.Termination != "" {
		return d.Termination
	}

	parts := make([]string, 0, 6)
	for _, f := range []string{
		d.Greeting, d.Acknowledgement, d.Warning,
		d.Clarification, d.CoachingTip, d.Question,
	} {
		if f != "" {
			parts = append(parts, f)
		}
	}
	text := strings.Join(parts, " ")

	if len(d.RestartOptions) > 0 {
		text += "\n" + strings.Join(d.RestartOptions, "\n")
	}
	return strings.TrimSpace(text)
}

// renderInstruction is the strict system prompt. The model rewrites the
// given sentences only; it must not invent content, answer on the
// customer's behalf, or reference personal details.
const renderInstruction = `את יעל, פקידת אשראי בבנק. נסחי מחדש את המשפטים הבאים לתשובה אחת טבעית וקצרה בעברית, באותו סדר.
אסור להוסיף עובדות, מספרים, הבטחות או שאלות שלא מופיעים במשפטים.
אסור לאשר או להסכים בשם הלקוח, ואסור לציין שם או מספר תעודת זהות.
החזירי את הטקסט בלבד, ללא פתיח וללא הסברים.`

func fragmentPrompt(d engine.Decision) string {
	var b strings.Builder
	for _, f := range []string{
		d.Greeting, d.Acknowledgement, d.Warning,
		d.Clarification, d.CoachingTip, d.Question,
	} {
		if f != "" {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteString("\n")
		}
	}
	return b.String()
}
