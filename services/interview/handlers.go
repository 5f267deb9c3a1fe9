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

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianSim/services/interview/session"
)

// ErrorResponse is the JSON error envelope for all interview endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// SessionResponse is the JSON view of a session returned by the
// lifecycle endpoints. Slot values are included; the ID number is
// masked at the source before logging but returned in full here, since
// the caller supplied it.
type SessionResponse struct {
	SessionID string          `json:"session_id"`
	Stage     string          `json:"stage"`
	Slots     session.Slots   `json:"slots"`
	Strikes   session.Strikes `json:"strikes"`
	TurnCount int             `json:"turn_count"`
}

// TurnRequest is the body of POST /sessions/:id/turn.
type TurnRequest struct {
	Text string `json:"text" binding:"required"`
}

// Handlers exposes the orchestrator over HTTP.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	orch   *Orchestrator
	logger *slog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(orch *Orchestrator, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{orch: orch, logger: logger}
}

func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleCreateSession handles POST /v1/interview/sessions.
//
// Response:
//
//	201 Created: SessionResponse
//	500 Internal Server Error: persistence failure
//
// Thread Safety: Safe for concurrent use.
func (h *Handlers) HandleCreateSession(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCreateSession")

	st, err := h.orch.CreateSession(c.Request.Context())
	if err != nil {
		logger.Error("session creation failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to create session",
			Code:  "SESSION_CREATE_FAILED",
		})
		return
	}
	c.JSON(http.StatusCreated, sessionResponse(st))
}

// HandleGetSession handles GET /v1/interview/sessions/:id.
//
// Response:
//
//	200 OK: SessionResponse
//	404 Not Found: unknown session
//
// Thread Safety: Safe for concurrent use.
func (h *Handlers) HandleGetSession(c *gin.Context) {
	st, err := h.orch.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "session not found",
				Code:  "SESSION_NOT_FOUND",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to load session",
			Code:  "SESSION_LOAD_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, sessionResponse(st))
}

// HandleDeleteSession handles DELETE /v1/interview/sessions/:id.
//
// Response:
//
//	204 No Content
//	500 Internal Server Error: store failure
//
// Thread Safety: Safe for concurrent use.
func (h *Handlers) HandleDeleteSession(c *gin.Context) {
	if err := h.orch.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "failed to delete session",
			Code:  "SESSION_DELETE_FAILED",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleTurn handles POST /v1/interview/sessions/:id/turn.
//
// Description:
//
//	Streams the turn's ordered events as Server-Sent Events: one
//	"analysis" event, an optional "transition" event, a "message"
//	event with the clerk's reply, and a terminating "done" event.
//	Session state is committed before the message event is produced,
//	so a dropped connection never loses a state change.
//
// Request Body:
//
//	TurnRequest - {"text": "..."}
//
// Response:
//
//	200 OK: text/event-stream
//	400 Bad Request: missing text
//	404 Not Found: unknown session
//	500 Internal Server Error: persistence failure mid-turn
//
// Thread Safety: Safe for concurrent use; same-session turns serialize.
func (h *Handlers) HandleTurn(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleTurn")

	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "text field is required",
			Code:  "MISSING_TEXT",
		})
		return
	}

	sessionID := c.Param("id")
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	streamed := false
	err := h.orch.ProcessTurn(c.Request.Context(), sessionID, req.Text, func(ev Event) error {
		streamed = true
		c.SSEvent(string(ev.Type), ev)
		c.Writer.Flush()
		return nil
	})
	if err == nil {
		return
	}

	logger.Error("turn failed",
		slog.String("session_id", sessionID),
		slog.String("error", err.Error()))

	// Before any event is written the response can still be a clean
	// JSON error; afterwards the stream just ends without its done
	// marker.
	if streamed {
		return
	}
	if errors.Is(err, session.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "session not found",
			Code:  "SESSION_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: "turn processing failed",
		Code:  "TURN_FAILED",
	})
}

// HandleHealth handles GET /v1/interview/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// HandleReady handles GET /v1/interview/ready. Ready means the session
// store answers.
func (h *Handlers) HandleReady(c *gin.Context) {
	probe := uuid.NewString()
	if _, err := h.orch.GetSession(c.Request.Context(), probe); err != nil &&
		!errors.Is(err, session.ErrSessionNotFound) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func sessionResponse(st *session.State) SessionResponse {
	return SessionResponse{
		SessionID: st.SessionID,
		Stage:     string(st.Stage),
		Slots:     st.Slots,
		Strikes:   st.Strikes,
		TurnCount: st.TurnCount,
	}
}
