// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides clients for generative text backends. The interview
// engine consumes them as an opaque capability: "given role-tagged messages,
// stream back text" or "return a best-effort JSON object". The engine never
// lets a model decide state transitions; these clients are leaf dependencies
// whose latency, failures, and hallucinations the caller must tolerate.
//
// Thread Safety:
//
//	All clients in this package are safe for concurrent use.
package llm

import (
	"context"

	"github.com/AleutianAI/AleutianSim/services/orchestrator/datatypes"
)

// StreamEventType distinguishes the kinds of events a streaming call emits.
type StreamEventType string

const (
	// StreamEventToken is a text token produced by the model.
	StreamEventToken StreamEventType = "token"

	// StreamEventDone signals the end of a successful stream.
	StreamEventDone StreamEventType = "done"

	// StreamEventError signals a stream failure. The Error field is set.
	// Callers treat this as the error sentinel: any buffered partial text
	// must be discarded and a deterministic fallback used instead.
	StreamEventError StreamEventType = "error"
)

// StreamEvent is a single event from a streaming generation call.
type StreamEvent struct {
	Type    StreamEventType
	Content string
	Error   string
}

// StreamCallback is invoked for each StreamEvent. Returning a non-nil error
// aborts the stream.
type StreamCallback func(StreamEvent) error

// GenerationParams holds provider-agnostic generation options.
//
// Description:
//
//	Pointer fields are omitted from the wire request when nil, letting the
//	provider apply its own default. JSONOnly requests the provider's
//	structured-output mode where available; providers without such a mode
//	ignore it (the caller must still parse defensively).
type GenerationParams struct {
	// Temperature controls randomness. Nil uses the provider default.
	Temperature *float32

	// MaxTokens limits the response length. Nil uses the provider default.
	MaxTokens *int

	// TopP is nucleus sampling. Nil uses the provider default.
	TopP *float32

	// Stop lists stop sequences.
	Stop []string

	// JSONOnly requests structured JSON output mode where supported.
	JSONOnly bool

	// ModelOverride selects a model for this request only. Empty uses the
	// model configured at client construction.
	ModelOverride string
}

// LLMClient is the generative-model capability consumed by the interview
// engine.
//
// Description:
//
//	Chat returns the full assistant response. ChatStream delivers the
//	response token-by-token through the callback; a StreamEventError event
//	is always followed by a non-nil return. Implementations must honor ctx
//	cancellation — both calls are the only suspension points in a turn and
//	the caller bounds them with timeouts.
//
// Thread Safety: Implementations must be safe for concurrent use.
type LLMClient interface {
	// Chat sends messages and returns the complete response text.
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)

	// ChatStream sends messages and streams the response through callback.
	ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams, callback StreamCallback) error
}
