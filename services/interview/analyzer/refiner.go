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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianSim/services/interview/session"
	"github.com/AleutianAI/AleutianSim/services/llm"
	"github.com/AleutianAI/AleutianSim/services/orchestrator/datatypes"
)

// RefinerConfig controls the constrained classification refinement.
type RefinerConfig struct {
	// Timeout bounds the refinement call. The turn never blocks on a
	// slow model; on timeout the deterministic classification stands.
	Timeout time.Duration

	// Temperature for the refinement call. Low by default: this is a
	// classification, not generation.
	Temperature float32

	MaxTokens int
}

// DefaultRefinerConfig returns the production defaults.
func DefaultRefinerConfig() RefinerConfig {
	return RefinerConfig{
		Timeout:     2 * time.Second,
		Temperature: 0.0,
		MaxTokens:   256,
	}
}

// Refiner escalates ambiguous turns to the generative model for a
// constrained, classification-only second opinion.
//
// Description:
//
//	Only the three classification signals may be overwritten — never
//	slots, never the hard safety signals. Any malformed or out-of-enum
//	response is discarded and the deterministic result stands:
//	fail-open to the deterministic classification, never fail-closed
//	to an invented one.
//
// Thread Safety: Safe for concurrent use.
type Refiner struct {
	client llm.LLMClient
	config RefinerConfig
	logger *slog.Logger
}

// NewRefiner creates a Refiner. client must not be nil.
func NewRefiner(client llm.LLMClient, config RefinerConfig, logger *slog.Logger) (*Refiner, error) {
	if client == nil {
		return nil, fmt.Errorf("NewRefiner: client must not be nil")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRefinerConfig().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refiner{client: client, config: config, logger: logger}, nil
}

// refinementResponse is the JSON object the model is asked to return.
type refinementResponse struct {
	Relevance             string `json:"relevance"`
	Appropriateness       string `json:"appropriateness"`
	Clarity               string `json:"clarity"`
	RelevanceReason       string `json:"relevance_reason"`
	AppropriatenessReason string `json:"appropriateness_reason"`
}

// Refine adjusts the classification triple in place when the model
// returns a well-formed, in-enum response. All failure modes leave the
// result untouched.
func (rf *Refiner) Refine(ctx context.Context, text string, stage session.Stage, result *Result) {
	ctx, span := analyzerTracer.Start(ctx, "analyzer.Refiner.Refine")
	defer span.End()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, rf.config.Timeout)
	defer cancel()

	messages := []datatypes.Message{
		{Role: "system", Content: rf.buildSystemPrompt()},
		{Role: "user", Content: fmt.Sprintf("Stage: %s\nUser said: %s", stage, text)},
	}

	temp := rf.config.Temperature
	maxTokens := rf.config.MaxTokens
	response, err := rf.client.Chat(ctx, messages, llm.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		JSONOnly:    true,
	})
	refinementLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		if ctx.Err() == context.DeadlineExceeded {
			outcome = "timeout"
		}
		refinementTotal.WithLabelValues(outcome).Inc()
		span.SetStatus(codes.Error, outcome)
		rf.logger.Debug("refinement skipped, keeping deterministic result",
			"outcome", outcome, "error", err)
		return
	}

	parsed, err := rf.parseResponse(response)
	if err != nil {
		refinementTotal.WithLabelValues("malformed").Inc()
		rf.logger.Debug("refinement response malformed, keeping deterministic result",
			"error", err)
		return
	}

	rel, cl, app, ok := validateEnums(parsed)
	if !ok {
		refinementTotal.WithLabelValues("out_of_enum").Inc()
		rf.logger.Debug("refinement response out of enum, keeping deterministic result",
			"relevance", parsed.Relevance, "clarity", parsed.Clarity,
			"appropriateness", parsed.Appropriateness)
		return
	}

	result.Relevance = rel
	result.Clarity = cl
	result.Appropriateness = app
	if parsed.RelevanceReason != "" {
		result.RelevanceReason = parsed.RelevanceReason
	}
	if parsed.AppropriatenessReason != "" {
		result.AppropriatenessReason = parsed.AppropriatenessReason
	}
	result.Refined = true

	refinementTotal.WithLabelValues("applied").Inc()
	span.SetAttributes(
		attribute.String("relevance", string(rel)),
		attribute.String("clarity", string(cl)),
	)
}

func (rf *Refiner) buildSystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You classify a single user utterance from a bank loan interview.\n")
	sb.WriteString("The conversation is in Hebrew; the user may mix in English.\n\n")
	sb.WriteString("Return ONLY a JSON object with exactly these fields:\n")
	sb.WriteString(`{"relevance": "HIGH|MED|LOW", "appropriateness": "OK|COACH|BAD", `)
	sb.WriteString(`"clarity": "CLEAR|AMBIGUOUS", "relevance_reason": "<short>", `)
	sb.WriteString(`"appropriateness_reason": "<short>"}` + "\n\n")
	sb.WriteString("relevance: is the utterance about the loan conversation?\n")
	sb.WriteString("appropriateness: OK for normal banking talk, COACH when the user ")
	sb.WriteString("should be guided to answer properly, BAD for content a bank clerk ")
	sb.WriteString("must not engage with.\n")
	sb.WriteString("clarity: CLEAR when the intent is unambiguous.\n")
	sb.WriteString("Reasons must be one short sentence in Hebrew. No extra fields, no prose.")
	return sb.String()
}

// parseResponse tolerates markdown fences and surrounding prose, then
// parses the first JSON object it finds.
func (rf *Refiner) parseResponse(response string) (*refinementResponse, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")
	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var parsed refinementResponse
	if err := json.Unmarshal([]byte(response[startIdx:endIdx+1]), &parsed); err != nil {
		return nil, fmt.Errorf("parsing refinement JSON: %w", err)
	}
	return &parsed, nil
}

func validateEnums(p *refinementResponse) (Relevance, Clarity, Appropriateness, bool) {
	rel := Relevance(strings.ToUpper(strings.TrimSpace(p.Relevance)))
	cl := Clarity(strings.ToUpper(strings.TrimSpace(p.Clarity)))
	app := Appropriateness(strings.ToUpper(strings.TrimSpace(p.Appropriateness)))

	switch rel {
	case RelevanceHigh, RelevanceMed, RelevanceLow:
	default:
		return "", "", "", false
	}
	switch cl {
	case ClarityClear, ClarityAmbiguous:
	default:
		return "", "", "", false
	}
	switch app {
	case AppropriatenessOK, AppropriatenessCoach, AppropriatenessBad:
	default:
		return "", "", "", false
	}
	return rel, cl, app, true
}
