// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package miner

import (
	"time"

	"github.com/AleutianAI/ProcessLens/services/miner/dfg"
	"github.com/AleutianAI/ProcessLens/services/miner/discovery"
	"github.com/AleutianAI/ProcessLens/services/miner/eventlog"
	"github.com/AleutianAI/ProcessLens/services/miner/petri"
	"github.com/AleutianAI/ProcessLens/services/miner/replay"
)

// EventInput is one event in an ingested case.
type EventInput struct {
	// Activity is the activity label. Required.
	Activity string `json:"activity" binding:"required"`

	// Timestamp orders the event within its case. Required.
	Timestamp time.Time `json:"timestamp" binding:"required"`

	// Attributes is an optional bag of typed event attributes.
	Attributes map[string]eventlog.AttrValue `json:"attributes"`
}

// CaseInput is one case in an ingested log.
type CaseInput struct {
	// ID is the case identifier, unique within the log. Required.
	ID string `json:"id" binding:"required"`

	// Events are the case's events in any order; ingestion sorts them by
	// timestamp. At least one is required.
	Events []EventInput `json:"events" binding:"required,min=1,dive"`
}

// IngestLogRequest is the request body for POST /v1/miner/logs.
type IngestLogRequest struct {
	// Name is an optional human-readable log name.
	Name string `json:"name"`

	// Cases are the log's cases. At least one is required.
	Cases []CaseInput `json:"cases" binding:"required,min=1,dive"`
}

// LogSummary describes an ingested event log.
type LogSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Cases is the number of cases (traces) in the log.
	Cases int `json:"cases"`

	// Events is the total event count across all cases.
	Events int `json:"events"`

	// Activities is the sorted set of distinct activity labels.
	Activities []string `json:"activities"`
}

// ListLogsResponse is the response for GET /v1/miner/logs.
type ListLogsResponse struct {
	Logs []LogSummary `json:"logs"`
}

// DFGRequest is the request body for POST /v1/miner/logs/:id/dfg.
type DFGRequest struct {
	// Workers is the parallel extraction worker count. 0 uses the
	// service default.
	Workers int `json:"workers"`

	// Quantiles selects the duration quantiles annotated per edge.
	// Default: 0.5 and 0.95. Values must be in (0,1).
	Quantiles []float64 `json:"quantiles" binding:"omitempty,dive,gt=0,lt=1"`
}

// DFGEdge is one annotated directly-follows edge.
type DFGEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Count  int64  `json:"count"`

	// TwoStep is the observed Source->Target->Source pattern count.
	TwoStep int64 `json:"two_step,omitempty"`

	// Stats summarizes the edge's inter-event durations.
	Stats *dfg.EdgeStats `json:"stats,omitempty"`
}

// DFGResponse is the response for POST /v1/miner/logs/:id/dfg.
type DFGResponse struct {
	LogID string `json:"log_id"`

	// Nodes are the graph's nodes: activity labels plus the synthetic
	// boundary nodes.
	Nodes []string `json:"nodes"`

	// Edges are sorted by (source, target).
	Edges []DFGEdge `json:"edges"`

	BuildTimeMs int64 `json:"build_time_ms"`
}

// DiscoverRequest is the request body for POST /v1/miner/logs/:id/discover.
type DiscoverRequest struct {
	// Config overrides the default heuristic thresholds. Omitted fields
	// of an omitted config fall back to defaults.
	Config *discovery.Config `json:"config"`

	// Workers is the DFG extraction worker count. 0 uses the service
	// default.
	Workers int `json:"workers"`
}

// ModelResponse is the full representation of a discovered model.
type ModelResponse struct {
	ModelID   string           `json:"model_id"`
	LogID     string           `json:"log_id"`
	CreatedAt time.Time        `json:"created_at"`
	Config    discovery.Config `json:"config"`

	// Arcs are the accepted causal arcs the net was assembled from.
	Arcs []discovery.Arc `json:"arcs"`

	// Places, Transitions, Source, and Sink are the assembled net.
	Places      []petri.Place      `json:"places"`
	Transitions []petri.Transition `json:"transitions"`
	Source      int                `json:"source"`
	Sink        int                `json:"sink"`
}

// ModelSummary is the list form of a discovered model.
type ModelSummary struct {
	ModelID     string    `json:"model_id"`
	LogID       string    `json:"log_id"`
	CreatedAt   time.Time `json:"created_at"`
	Places      int       `json:"places"`
	Transitions int       `json:"transitions"`
}

// ListModelsResponse is the response for GET /v1/miner/models.
type ListModelsResponse struct {
	Models []ModelSummary `json:"models"`
}

// ReplayRequest is the request body for POST /v1/miner/replay.
type ReplayRequest struct {
	// LogID is the event log to replay. Required.
	LogID string `json:"log_id" binding:"required"`

	// ModelID is the model to replay against. Required.
	ModelID string `json:"model_id" binding:"required"`

	// Workers is the replay worker count. 0 uses the service default.
	Workers int `json:"workers"`
}

// ReplayResponse is the response for POST /v1/miner/replay.
type ReplayResponse struct {
	LogID   string `json:"log_id"`
	ModelID string `json:"model_id"`

	// Result holds the per-trace and aggregate fitness records.
	Result *replay.LogResult `json:"result"`

	ReplayTimeMs int64 `json:"replay_time_ms"`
}

// ErrorResponse is the error body returned by all handlers.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// HealthResponse is the response for GET /v1/miner/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is the response for GET /v1/miner/ready.
type ReadyResponse struct {
	Ready   bool `json:"ready"`
	Logs    int  `json:"logs"`
	Models  int  `json:"models"`
	StoreOK bool `json:"store_ok"`
}
