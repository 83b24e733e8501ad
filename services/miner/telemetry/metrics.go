// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the miner service.
//
// All metrics use the "miner_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- Ingestion Metrics ---

	// LogsIngestedTotal counts ingested event logs by status.
	LogsIngestedTotal metric.Int64Counter

	// EventsIngestedTotal counts events across all ingested logs.
	EventsIngestedTotal metric.Int64Counter

	// --- Pipeline Metrics ---

	// DFGBuildsTotal counts DFG constructions by status.
	DFGBuildsTotal metric.Int64Counter

	// DFGBuildDuration records DFG build duration in seconds.
	DFGBuildDuration metric.Float64Histogram

	// DiscoveriesTotal counts model discovery runs by status.
	DiscoveriesTotal metric.Int64Counter

	// DiscoveryDuration records full discovery pipeline duration in seconds.
	DiscoveryDuration metric.Float64Histogram

	// ReplaysTotal counts conformance replay runs by status.
	ReplaysTotal metric.Int64Counter

	// ReplayDuration records replay duration in seconds.
	ReplayDuration metric.Float64Histogram

	// ReplayFitness records the per-run aggregate fitness score.
	ReplayFitness metric.Float64Histogram

	// --- Error Metrics ---

	// ErrorsTotal counts errors by operation.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics creates a Metrics instance with all instruments registered
// on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.LogsIngestedTotal, err = meter.Int64Counter(
		"miner_logs_ingested_total",
		metric.WithDescription("Total event logs ingested"),
	)
	if err != nil {
		return nil, fmt.Errorf("create miner_logs_ingested_total: %w", err)
	}

	m.EventsIngestedTotal, err = meter.Int64Counter(
		"miner_events_ingested_total",
		metric.WithDescription("Total events across ingested logs"),
	)
	if err != nil {
		return nil, fmt.Errorf("create miner_events_ingested_total: %w", err)
	}

	m.DFGBuildsTotal, err = meter.Int64Counter(
		"miner_dfg_builds_total",
		metric.WithDescription("Total DFG build operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("create miner_dfg_builds_total: %w", err)
	}

	m.DFGBuildDuration, err = meter.Float64Histogram(
		"miner_dfg_build_duration_seconds",
		metric.WithDescription("DFG build duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create miner_dfg_build_duration_seconds: %w", err)
	}

	m.DiscoveriesTotal, err = meter.Int64Counter(
		"miner_discoveries_total",
		metric.WithDescription("Total model discovery runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("create miner_discoveries_total: %w", err)
	}

	m.DiscoveryDuration, err = meter.Float64Histogram(
		"miner_discovery_duration_seconds",
		metric.WithDescription("Model discovery pipeline duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create miner_discovery_duration_seconds: %w", err)
	}

	m.ReplaysTotal, err = meter.Int64Counter(
		"miner_replays_total",
		metric.WithDescription("Total conformance replay runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("create miner_replays_total: %w", err)
	}

	m.ReplayDuration, err = meter.Float64Histogram(
		"miner_replay_duration_seconds",
		metric.WithDescription("Conformance replay duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create miner_replay_duration_seconds: %w", err)
	}

	m.ReplayFitness, err = meter.Float64Histogram(
		"miner_replay_fitness",
		metric.WithDescription("Aggregate fitness per replay run"),
	)
	if err != nil {
		return nil, fmt.Errorf("create miner_replay_fitness: %w", err)
	}

	m.ErrorsTotal, err = meter.Int64Counter(
		"miner_errors_total",
		metric.WithDescription("Total errors by operation"),
	)
	if err != nil {
		return nil, fmt.Errorf("create miner_errors_total: %w", err)
	}

	return m, nil
}
