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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all interview routes with the router.
//
// Description:
//
//	Registers the /v1/interview/* endpoints with the given Gin router
//	group. The group should already carry any required middleware.
//
// Endpoints:
//
//	POST   /v1/interview/sessions - Create a session
//	GET    /v1/interview/sessions/:id - Read session state
//	DELETE /v1/interview/sessions/:id - Delete a session
//	POST   /v1/interview/sessions/:id/turn - Process a turn (SSE)
//
//	GET    /v1/interview/health - Health check
//	GET    /v1/interview/ready - Readiness check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	interview := rg.Group("/interview")
	{
		interview.POST("/sessions", handlers.HandleCreateSession)
		interview.GET("/sessions/:id", handlers.HandleGetSession)
		interview.DELETE("/sessions/:id", handlers.HandleDeleteSession)
		interview.POST("/sessions/:id/turn", handlers.HandleTurn)

		interview.GET("/health", handlers.HandleHealth)
		interview.GET("/ready", handlers.HandleReady)
	}
}
