// Copyright (C) 2026 Mr5niper
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later


// Package metrics exposes the prometheus registry shared by the mesh
// components, adapted from the teacher's internal/metrics package.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aegis"

// Registry is the process-wide metrics registry.
var Registry = prometheus.NewRegistry()

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// StartServer starts a standalone metrics HTTP server.
func StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}

var (
	// SessionsCreated tracks Kairos handshakes by outcome (accepted, rejected, timeout).
	SessionsCreated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Total Kairos sessions established, by outcome",
		},
		[]string{"outcome"},
	)

	// SessionsActive tracks currently established sessions.
	SessionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of currently established Kairos sessions",
		},
	)

	// SessionsEvicted tracks sessions reaped by the maintenance sweep.
	SessionsEvicted = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "evicted_total",
			Help:      "Total sessions evicted by the age-based GC sweep",
		},
	)

	// ConsentDecisions tracks consent verification outcomes.
	ConsentDecisions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consent",
			Name:      "decisions_total",
			Help:      "Consent token verification decisions",
		},
		[]string{"decision"}, // allowed, expired, bad_signature, untrusted_peer, rejected_by_user
	)

	// CRDTOpsApplied tracks LWW graph operations applied locally or absorbed from peers.
	CRDTOpsApplied = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crdt",
			Name:      "ops_applied_total",
			Help:      "Relation operations applied to the LWW graph",
		},
		[]string{"source"}, // local, remote
	)

	// CRDTBroadcastFailures tracks best-effort broadcast failures per peer.
	CRDTBroadcastFailures = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crdt",
			Name:      "broadcast_failures_total",
			Help:      "Failed per-peer CRDT op broadcasts",
		},
	)

	// ToolCalls tracks tool registry invocations by outcome.
	ToolCalls = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Tool registry invocations by tool and outcome",
		},
		[]string{"tool", "outcome"}, // ok, timeout, error, unknown
	)

	// ToolCallDuration tracks tool call latency.
	ToolCallDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "call_duration_seconds",
			Help:      "Tool call duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		},
		[]string{"tool"},
	)

	// SandboxExecutions tracks code sandbox runs by outcome.
	SandboxExecutions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "executions_total",
			Help:      "Code sandbox executions by outcome",
		},
		[]string{"outcome"}, // ok, timeout, spawn_error
	)

	// TransportReconnects tracks relay reconnect attempts.
	TransportReconnects = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "reconnects_total",
			Help:      "Total relay reconnection attempts",
		},
	)
)
