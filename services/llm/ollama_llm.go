// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianSim/services/orchestrator/datatypes"
)

// =============================================================================
// Ollama Wire Types
// =============================================================================

const defaultOllamaBaseURL = "http://localhost:11434"

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// ollamaChatResponse is one NDJSON line of a chat response. With
// Stream=false the whole response is a single line with Done=true.
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// OllamaClient implements LLMClient for local Ollama models.
//
// Description:
//
//	Uses Ollama's /api/chat endpoint directly. Streaming responses are
//	newline-delimited JSON rather than SSE. JSON output mode maps to
//	Ollama's format:"json".
//
// Thread Safety: OllamaClient is safe for concurrent use.
type OllamaClient struct {
	httpClient *http.Client
	model      string
	baseURL    string
}

// NewOllamaClientWithConfig creates an OllamaClient with explicit
// configuration. Useful for tests with mock servers.
func NewOllamaClientWithConfig(model, baseURL string) *OllamaClient {
	return &OllamaClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		model:      model,
		baseURL:    baseURL,
	}
}

// NewOllamaClient creates a new OllamaClient from environment variables.
//
// Description:
//
//	Reads OLLAMA_BASE_URL and OLLAMA_MODEL from the environment.
//	Defaults to http://localhost:11434.
//
// Outputs:
//   - *OllamaClient: The configured client.
//   - error: Non-nil if OLLAMA_MODEL is missing.
func NewOllamaClient() (*OllamaClient, error) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	model := os.Getenv("OLLAMA_MODEL")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if model == "" {
		return nil, fmt.Errorf("ollama: model is missing (OLLAMA_MODEL)")
	}
	slog.Info("Initializing Ollama client", "model", model, "base_url", baseURL)
	return &OllamaClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		model:      model,
		baseURL:    baseURL,
	}, nil
}

// Chat implements LLMClient.Chat against /api/chat with Stream=false.
//
// Thread Safety: This method is safe for concurrent use.
func (c *OllamaClient) Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error) {
	ctx, span := otel.Tracer(llmTracerName).Start(ctx, "llm.OllamaClient.Chat")
	defer span.End()

	start := time.Now()
	response, err := c.chat(ctx, messages, params)
	recordLLMMetrics("ollama", "chat", time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat failed")
		return "", err
	}
	return response, nil
}

func (c *OllamaClient) chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error) {
	reqBody, err := json.Marshal(c.buildRequest(messages, params, false))
	if err != nil {
		return "", fmt.Errorf("ollama: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("ollama: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama: reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, SafeLogString(string(bodyBytes)))
	}

	var apiResp ollamaChatResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("ollama: parsing response JSON: %w", err)
	}
	if apiResp.Error != "" {
		return "", fmt.Errorf("ollama: API error: %s", SafeLogString(apiResp.Error))
	}

	return apiResp.Message.Content, nil
}

// ChatStream implements LLMClient.ChatStream against /api/chat with
// Stream=true, reading newline-delimited JSON chunks.
//
// Thread Safety: This method is safe for concurrent use.
func (c *OllamaClient) ChatStream(ctx context.Context, messages []datatypes.Message,
	params GenerationParams, callback StreamCallback) error {

	ctx, span := otel.Tracer(llmTracerName).Start(ctx, "llm.OllamaClient.ChatStream")
	defer span.End()

	start := time.Now()
	err := c.chatStream(ctx, messages, params, callback)
	recordLLMMetrics("ollama", "stream", time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream failed")
	}
	return err
}

func (c *OllamaClient) chatStream(ctx context.Context, messages []datatypes.Message,
	params GenerationParams, callback StreamCallback) error {

	reqBody, err := json.Marshal(c.buildRequest(messages, params, true))
	if err != nil {
		return fmt.Errorf("ollama: marshaling stream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("ollama: creating stream HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	streamClient := &http.Client{Timeout: 5 * time.Minute}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		_ = callback(StreamEvent{Type: StreamEventError, Error: err.Error()})
		return fmt.Errorf("ollama: stream HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("ollama: reading stream error body (status %d): %w", resp.StatusCode, readErr)
		}
		errMsg := fmt.Sprintf("ollama: stream API returned status %d", resp.StatusCode)
		_ = callback(StreamEvent{Type: StreamEventError, Error: errMsg})
		return fmt.Errorf("%s: %s", errMsg, SafeLogString(string(bodyBytes)))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			_ = callback(StreamEvent{Type: StreamEventError, Error: "stream cancelled"})
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			slog.Warn("Failed to parse stream chunk", "error", err)
			continue
		}

		if chunk.Error != "" {
			errMsg := fmt.Sprintf("ollama: stream error: %s", chunk.Error)
			_ = callback(StreamEvent{Type: StreamEventError, Error: errMsg})
			return fmt.Errorf("%s", SafeLogString(errMsg))
		}

		if chunk.Message.Content != "" {
			if err := callback(StreamEvent{
				Type:    StreamEventToken,
				Content: chunk.Message.Content,
			}); err != nil {
				return fmt.Errorf("callback error: %w", err)
			}
		}

		if chunk.Done {
			return callback(StreamEvent{Type: StreamEventDone})
		}
	}

	if err := scanner.Err(); err != nil {
		_ = callback(StreamEvent{Type: StreamEventError, Error: err.Error()})
		return fmt.Errorf("ollama: stream read error: %w", err)
	}

	return callback(StreamEvent{Type: StreamEventDone})
}

// buildRequest creates the request payload shared by Chat and ChatStream.
func (c *OllamaClient) buildRequest(messages []datatypes.Message, params GenerationParams, stream bool) ollamaChatRequest {
	model := c.model
	if params.ModelOverride != "" {
		model = params.ModelOverride
	}

	msgs := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, ollamaMessage{Role: m.Role, Content: m.Content})
	}

	req := ollamaChatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   stream,
	}
	if params.JSONOnly {
		req.Format = "json"
	}
	if params.Temperature != nil || params.TopP != nil || params.MaxTokens != nil || len(params.Stop) > 0 {
		req.Options = &ollamaOptions{
			Temperature: params.Temperature,
			TopP:        params.TopP,
			NumPredict:  params.MaxTokens,
			Stop:        params.Stop,
		}
	}
	return req
}
