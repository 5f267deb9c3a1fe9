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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var analyzerTracer = otel.Tracer("aleutian.sim.interview.analyzer")

var (
	analyzerTurnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "interview",
		Subsystem: "analyzer",
		Name:      "turn_duration_seconds",
		Help:      "Deterministic analysis latency by stage",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01},
	}, []string{"stage"})

	refinementTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "interview",
		Subsystem: "analyzer",
		Name:      "refinement_total",
		Help:      "LLM refinement outcomes (applied, malformed, out_of_enum, timeout, error)",
	}, []string{"outcome"})

	refinementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "interview",
		Subsystem: "analyzer",
		Name:      "refinement_latency_seconds",
		Help:      "LLM refinement call latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)
