// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command interview starts the AleutianSim interview API server.
//
// The server hosts a scripted bank-clerk interview simulation: a
// deterministic turn-processing engine (slot extraction, signal
// analysis, FSM routing) with an optional LLM layered on top for
// ambiguity refinement and natural phrasing. Without any model
// configured, the server runs fully deterministic.
//
// Usage:
//
//	go run ./cmd/interview
//	go run ./cmd/interview -port 9090 -data-dir /var/lib/aleutian/sessions
//
// With Ollama (refinement + phrasing):
//
//	OLLAMA_BASE_URL=http://localhost:11434 OLLAMA_MODEL=glm-4.7-flash go run ./cmd/interview
//
// With an OpenAI-compatible backend:
//
//	OPENAI_API_KEY=... OPENAI_MODEL=gpt-4o-mini go run ./cmd/interview
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/interview/health
//
//	# Create a session
//	curl -X POST http://localhost:8080/v1/interview/sessions
//
//	# Send a turn (SSE response)
//	curl -N -X POST http://localhost:8080/v1/interview/sessions/<id>/turn \
//	  -H "Content-Type: application/json" \
//	  -d '{"text": "שלום, אני רוצה הלוואה"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianSim/services/interview"
	"github.com/AleutianAI/AleutianSim/services/interview/analyzer"
	"github.com/AleutianAI/AleutianSim/services/interview/engine"
	"github.com/AleutianAI/AleutianSim/services/interview/responder"
	"github.com/AleutianAI/AleutianSim/services/interview/session"
	"github.com/AleutianAI/AleutianSim/services/llm"
)

const sessionTTL = 24 * time.Hour

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	dataDir := flag.String("data-dir", "", "Session store directory (default ~/.aleutian/sessions)")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	msgs, err := engine.GetMessages()
	if err != nil {
		slog.Error("Failed to load interview messages", slog.String("error", err.Error()))
		os.Exit(1)
	}

	client := buildLLMClient()

	var refiner *analyzer.Refiner
	if client != nil {
		refiner, err = analyzer.NewRefiner(client, analyzer.DefaultRefinerConfig(), nil)
		if err != nil {
			slog.Warn("Refiner unavailable, running deterministic-only analysis",
				slog.String("error", err.Error()))
		}
	}

	store := openSessionStore(*dataDir)
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close session store", slog.String("error", err.Error()))
		}
	}()

	orch, err := interview.NewOrchestrator(
		store,
		analyzer.New(refiner, nil),
		engine.New(msgs, engine.DefaultConfig(), nil),
		responder.New(client, responder.DefaultConfig(), nil),
		msgs, nil,
	)
	if err != nil {
		slog.Error("Failed to build orchestrator", slog.String("error", err.Error()))
		os.Exit(1)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("aleutian-interview"))
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	interview.RegisterRoutes(v1, interview.NewHandlers(orch, nil))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf(":%d", *port)
	server := &http.Server{Addr: addr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting AleutianSim interview server",
			slog.String("address", addr),
			slog.Bool("llm_enabled", client != nil))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down AleutianSim interview server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildLLMClient selects a model backend from the environment. Ollama
// takes precedence; with nothing configured the simulation runs
// deterministic-only.
func buildLLMClient() llm.LLMClient {
	if os.Getenv("OLLAMA_MODEL") != "" {
		client, err := llm.NewOllamaClient()
		if err != nil {
			slog.Warn("Ollama client unavailable", slog.String("error", err.Error()))
			return nil
		}
		slog.Info("Ollama backend configured", slog.String("model", os.Getenv("OLLAMA_MODEL")))
		return client
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		client, err := llm.NewOpenAIClient()
		if err != nil {
			slog.Warn("OpenAI client unavailable", slog.String("error", err.Error()))
			return nil
		}
		slog.Info("OpenAI-compatible backend configured")
		return client
	}
	slog.Info("No LLM backend configured, running deterministic-only")
	return nil
}

// openSessionStore opens the Badger-backed session store, degrading to
// the in-memory store when the directory is unusable. Sessions then
// survive only as long as the process.
func openSessionStore(dataDir string) session.Store {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Warn("Home directory unavailable, using in-memory session store",
				slog.String("error", err.Error()))
			return session.NewMemoryStore()
		}
		dataDir = filepath.Join(home, ".aleutian", "sessions")
	}

	store, err := session.OpenBadgerStore(dataDir, sessionTTL, nil)
	if err != nil {
		slog.Warn("Badger session store unavailable, using in-memory store",
			slog.String("path", dataDir),
			slog.String("error", err.Error()))
		return session.NewMemoryStore()
	}
	slog.Info("Badger session store opened", slog.String("path", dataDir))
	return store
}
