// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package miner provides the ProcessLens mining HTTP service.
//
// The service exposes endpoints for:
//   - Ingesting event logs
//   - Building and annotating directly-follows graphs
//   - Discovering process models with the dependency heuristics
//   - Replaying logs against models for conformance fitness
//
// Logs and models are cached in memory and, when a store is attached,
// persisted in BadgerDB so they survive restarts.
package miner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/ProcessLens/services/miner/dfg"
	"github.com/AleutianAI/ProcessLens/services/miner/discovery"
	"github.com/AleutianAI/ProcessLens/services/miner/eventlog"
	"github.com/AleutianAI/ProcessLens/services/miner/petri"
	"github.com/AleutianAI/ProcessLens/services/miner/replay"
	storage "github.com/AleutianAI/ProcessLens/services/miner/storage/badger"
	"github.com/AleutianAI/ProcessLens/services/miner/telemetry"
)

var tracer = otel.Tracer("processlens.miner")

// ServiceConfig configures the miner service.
type ServiceConfig struct {
	// MaxPipelineDuration bounds a single DFG build, discovery, or
	// replay run. Default: 60s. 0 disables the limit.
	MaxPipelineDuration time.Duration

	// DefaultWorkers is the worker count used when a request does not
	// set one. Default: GOMAXPROCS.
	DefaultWorkers int

	// Quantiles are the duration quantiles annotated on DFG edges when a
	// request does not select its own. Default: 0.5 and 0.95.
	Quantiles []float64
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxPipelineDuration: 60 * time.Second,
		DefaultWorkers:      runtime.GOMAXPROCS(0),
		Quantiles:           dfg.DefaultQuantiles,
	}
}

// logEntry pairs a built event log with its summary.
type logEntry struct {
	summary LogSummary
	log     *eventlog.Log
}

// modelEntry pairs a stored model record with its replayable net.
type modelEntry struct {
	record *storage.ModelRecord
	net    *petri.Net
}

// Service is the miner service.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Multiple goroutines can call
//	any combination of methods simultaneously.
type Service struct {
	config ServiceConfig

	mu     sync.RWMutex
	logs   map[string]*logEntry
	models map[string]*modelEntry

	// store is the optional warm tier; nil means memory-only.
	store *storage.Store

	// metrics is optional; nil disables instrumentation.
	metrics *telemetry.Metrics
}

// NewService creates a new miner service with no attached store.
func NewService(config ServiceConfig) *Service {
	if config.DefaultWorkers < 1 {
		config.DefaultWorkers = runtime.GOMAXPROCS(0)
	}
	if len(config.Quantiles) == 0 {
		config.Quantiles = dfg.DefaultQuantiles
	}
	return &Service{
		config: config,
		logs:   make(map[string]*logEntry),
		models: make(map[string]*modelEntry),
	}
}

// WithStore attaches a persistence store and returns the service for
// chaining. Existing records are hydrated lazily on first access.
func (s *Service) WithStore(store *storage.Store) *Service {
	s.store = store
	return s
}

// WithMetrics attaches telemetry metrics and returns the service for
// chaining.
func (s *Service) WithMetrics(m *telemetry.Metrics) *Service {
	s.metrics = m
	return s
}

// IngestLog validates and stores an event log.
//
// Description:
//
//	Builds the immutable log from the submitted cases (sorting each
//	case's events by timestamp), assigns an ID, caches the result, and
//	persists it when a store is attached.
//
// Outputs:
//
//	*LogSummary - The stored log's summary.
//	error - Validation errors from the event log model, or store errors.
func (s *Service) IngestLog(ctx context.Context, name string, cases []eventlog.Case) (*LogSummary, error) {
	log, err := eventlog.NewLog(cases)
	if err != nil {
		s.countError("ingest")
		return nil, err
	}

	entry := &logEntry{
		summary: LogSummary{
			ID:         uuid.NewString(),
			Name:       name,
			CreatedAt:  time.Now().UTC(),
			Cases:      len(log.Traces),
			Events:     log.EventCount(),
			Activities: log.Activities(),
		},
		log: log,
	}

	if s.store != nil {
		if err := s.store.PutLog(ctx, logToRecord(&entry.summary, log)); err != nil {
			s.countError("ingest")
			return nil, fmt.Errorf("persist log: %w", err)
		}
	}

	s.mu.Lock()
	s.logs[entry.summary.ID] = entry
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.LogsIngestedTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", "ok")))
		s.metrics.EventsIngestedTotal.Add(ctx, int64(entry.summary.Events))
	}
	slog.Info("Event log ingested",
		"log_id", entry.summary.ID,
		"cases", entry.summary.Cases,
		"events", entry.summary.Events)

	summary := entry.summary
	return &summary, nil
}

// GetLog returns the summary of one log.
func (s *Service) GetLog(ctx context.Context, id string) (*LogSummary, error) {
	entry, err := s.getLog(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := entry.summary
	return &summary, nil
}

// ListLogs returns summaries of all known logs sorted by creation time.
func (s *Service) ListLogs(ctx context.Context) ([]LogSummary, error) {
	if s.store != nil {
		recs, err := s.store.ListLogs(ctx)
		if err != nil {
			return nil, err
		}
		summaries := make([]LogSummary, 0, len(recs))
		for _, rec := range recs {
			entry, err := s.hydrateLog(rec)
			if err != nil {
				return nil, err
			}
			summaries = append(summaries, entry.summary)
		}
		return summaries, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := make([]LogSummary, 0, len(s.logs))
	for _, entry := range s.logs {
		summaries = append(summaries, entry.summary)
	}
	sortSummaries(summaries)
	return summaries, nil
}

// DeleteLog removes a log from the cache and the store.
func (s *Service) DeleteLog(ctx context.Context, id string) error {
	if _, err := s.getLog(ctx, id); err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.DeleteLog(ctx, id); err != nil {
			return err
		}
	}
	s.mu.Lock()
	delete(s.logs, id)
	s.mu.Unlock()
	return nil
}

// BuildDFG builds and annotates the directly-follows graph of a log.
//
// Description:
//
//	Runs the parallel edge extraction over the log's traces, freezes the
//	graph, and annotates every edge with streaming duration statistics.
//	The response lists nodes and edges in deterministic order.
func (s *Service) BuildDFG(ctx context.Context, logID string, workers int, quantiles []float64) (*DFGResponse, error) {
	entry, err := s.getLog(ctx, logID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.pipelineContext(ctx)
	defer cancel()

	ctx, span := tracer.Start(ctx, "miner.dfg",
		oteltrace.WithAttributes(
			attribute.String("log_id", logID),
			attribute.Int("traces", len(entry.log.Traces)),
		))
	defer span.End()

	start := time.Now()
	g, err := s.buildGraph(ctx, entry.log, workers)
	if err != nil {
		span.RecordError(err)
		s.countError("dfg")
		return nil, err
	}
	if len(quantiles) == 0 {
		quantiles = s.config.Quantiles
	}
	dfg.Annotate(g, quantiles...)
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.DFGBuildsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", "ok")))
		s.metrics.DFGBuildDuration.Record(ctx, elapsed.Seconds())
	}

	resp := &DFGResponse{
		LogID:       logID,
		Nodes:       g.Nodes(),
		BuildTimeMs: elapsed.Milliseconds(),
	}
	for _, e := range g.Edges() {
		resp.Edges = append(resp.Edges, DFGEdge{
			Source:  e.Source,
			Target:  e.Target,
			Count:   e.Count,
			TwoStep: e.TwoStep,
			Stats:   e.Stats,
		})
	}
	return resp, nil
}

// DiscoverModel runs the full discovery pipeline for a log.
//
// Description:
//
//	Builds the DFG, derives the dependency matrix and accepted arcs with
//	the heuristics engine, assembles the net, and stores the model.
//
// Outputs:
//
//	*ModelResponse - The stored model.
//	error - discovery.ErrInvalidConfig, petri.ErrInconsistentGrouping
//	        (as *petri.GroupingError), or pipeline errors.
func (s *Service) DiscoverModel(ctx context.Context, logID string, cfg *discovery.Config, workers int) (*ModelResponse, error) {
	entry, err := s.getLog(ctx, logID)
	if err != nil {
		return nil, err
	}

	config := discovery.DefaultConfig()
	if cfg != nil {
		config = *cfg
	}

	ctx, cancel := s.pipelineContext(ctx)
	defer cancel()

	ctx, span := tracer.Start(ctx, "miner.discovery",
		oteltrace.WithAttributes(
			attribute.String("log_id", logID),
			attribute.Float64("dependency_threshold", config.DependencyThreshold),
		))
	defer span.End()

	start := time.Now()
	g, err := s.buildGraph(ctx, entry.log, workers)
	if err != nil {
		span.RecordError(err)
		s.countError("discover")
		return nil, err
	}
	res, err := discovery.Discover(g, config)
	if err != nil {
		span.RecordError(err)
		s.countError("discover")
		return nil, err
	}
	net, err := petri.Assemble(res)
	if err != nil {
		span.RecordError(err)
		s.countError("discover")
		return nil, err
	}
	elapsed := time.Since(start)

	model := &modelEntry{
		record: &storage.ModelRecord{
			ID:          uuid.NewString(),
			LogID:       logID,
			CreatedAt:   time.Now().UTC(),
			Config:      config,
			Arcs:        res.Arcs,
			Places:      net.Places(),
			Transitions: net.Transitions(),
			Source:      net.Source(),
			Sink:        net.Sink(),
		},
		net: net,
	}

	if s.store != nil {
		if err := s.store.PutModel(ctx, model.record); err != nil {
			span.RecordError(err)
			s.countError("discover")
			return nil, fmt.Errorf("persist model: %w", err)
		}
	}

	s.mu.Lock()
	s.models[model.record.ID] = model
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.DiscoveriesTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", "ok")))
		s.metrics.DiscoveryDuration.Record(ctx, elapsed.Seconds())
	}
	slog.Info("Model discovered",
		"model_id", model.record.ID,
		"log_id", logID,
		"arcs", len(res.Arcs),
		"places", len(model.record.Places),
		"transitions", len(model.record.Transitions),
		"duration_ms", elapsed.Milliseconds())

	return modelToResponse(model.record), nil
}

// GetModel returns one discovered model.
func (s *Service) GetModel(ctx context.Context, id string) (*ModelResponse, error) {
	entry, err := s.getModel(ctx, id)
	if err != nil {
		return nil, err
	}
	return modelToResponse(entry.record), nil
}

// ListModels returns summaries of all known models sorted by creation time.
func (s *Service) ListModels(ctx context.Context) ([]ModelSummary, error) {
	if s.store != nil {
		recs, err := s.store.ListModels(ctx)
		if err != nil {
			return nil, err
		}
		summaries := make([]ModelSummary, 0, len(recs))
		for _, rec := range recs {
			summaries = append(summaries, ModelSummary{
				ModelID:     rec.ID,
				LogID:       rec.LogID,
				CreatedAt:   rec.CreatedAt,
				Places:      len(rec.Places),
				Transitions: len(rec.Transitions),
			})
		}
		return summaries, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := make([]ModelSummary, 0, len(s.models))
	for _, entry := range s.models {
		summaries = append(summaries, ModelSummary{
			ModelID:     entry.record.ID,
			LogID:       entry.record.LogID,
			CreatedAt:   entry.record.CreatedAt,
			Places:      len(entry.record.Places),
			Transitions: len(entry.record.Transitions),
		})
	}
	sortModelSummaries(summaries)
	return summaries, nil
}

// DeleteModel removes a model from the cache and the store.
func (s *Service) DeleteModel(ctx context.Context, id string) error {
	if _, err := s.getModel(ctx, id); err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.DeleteModel(ctx, id); err != nil {
			return err
		}
	}
	s.mu.Lock()
	delete(s.models, id)
	s.mu.Unlock()
	return nil
}

// ReplayLog replays a log against a model and returns fitness records.
func (s *Service) ReplayLog(ctx context.Context, logID, modelID string, workers int) (*ReplayResponse, error) {
	lg, err := s.getLog(ctx, logID)
	if err != nil {
		return nil, err
	}
	model, err := s.getModel(ctx, modelID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.pipelineContext(ctx)
	defer cancel()

	if workers < 1 {
		workers = s.config.DefaultWorkers
	}

	ctx, span := tracer.Start(ctx, "miner.replay",
		oteltrace.WithAttributes(
			attribute.String("log_id", logID),
			attribute.String("model_id", modelID),
		))
	defer span.End()

	start := time.Now()
	result, err := replay.Replay(ctx, model.net, lg.log, replay.WithWorkerCount(workers))
	if err != nil {
		span.RecordError(err)
		s.countError("replay")
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrPipelineTimeout, err)
		}
		return nil, err
	}
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.ReplaysTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", "ok")))
		s.metrics.ReplayDuration.Record(ctx, elapsed.Seconds())
		s.metrics.ReplayFitness.Record(ctx, result.Fitness)
	}
	slog.Info("Replay completed",
		"log_id", logID,
		"model_id", modelID,
		"fitness", result.Fitness,
		"unmappable", result.Unmappable,
		"duration_ms", elapsed.Milliseconds())

	return &ReplayResponse{
		LogID:        logID,
		ModelID:      modelID,
		Result:       result,
		ReplayTimeMs: elapsed.Milliseconds(),
	}, nil
}

// LogCount returns the number of cached logs.
func (s *Service) LogCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs)
}

// ModelCount returns the number of cached models.
func (s *Service) ModelCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.models)
}

// StoreAttached reports whether a persistence store is configured.
func (s *Service) StoreAttached() bool { return s.store != nil }

// buildGraph runs the DFG builder with the effective worker count and
// maps a deadline hit to ErrPipelineTimeout.
func (s *Service) buildGraph(ctx context.Context, log *eventlog.Log, workers int) (*dfg.Graph, error) {
	if workers < 1 {
		workers = s.config.DefaultWorkers
	}
	g, err := dfg.Build(ctx, log, dfg.WithWorkerCount(workers))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrPipelineTimeout, err)
		}
		return nil, err
	}
	return g, nil
}

func (s *Service) pipelineContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.MaxPipelineDuration > 0 {
		return context.WithTimeout(ctx, s.config.MaxPipelineDuration)
	}
	return ctx, func() {}
}

// getLog returns the cached entry, hydrating from the store on a miss.
func (s *Service) getLog(ctx context.Context, id string) (*logEntry, error) {
	s.mu.RLock()
	entry, ok := s.logs[id]
	s.mu.RUnlock()
	if ok {
		return entry, nil
	}
	if s.store == nil {
		return nil, ErrLogNotFound
	}
	rec, err := s.store.GetLog(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrLogNotFound
		}
		return nil, err
	}
	return s.hydrateLog(rec)
}

// getModel returns the cached entry, hydrating from the store on a miss.
func (s *Service) getModel(ctx context.Context, id string) (*modelEntry, error) {
	s.mu.RLock()
	entry, ok := s.models[id]
	s.mu.RUnlock()
	if ok {
		return entry, nil
	}
	if s.store == nil {
		return nil, ErrModelNotFound
	}
	rec, err := s.store.GetModel(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, err
	}
	net, err := rec.Net()
	if err != nil {
		return nil, fmt.Errorf("restore model %s: %w", id, err)
	}
	entry = &modelEntry{record: rec, net: net}
	s.mu.Lock()
	s.models[id] = entry
	s.mu.Unlock()
	return entry, nil
}

// hydrateLog rebuilds the event log from a stored record and caches it.
func (s *Service) hydrateLog(rec *storage.LogRecord) (*logEntry, error) {
	s.mu.RLock()
	if entry, ok := s.logs[rec.ID]; ok {
		s.mu.RUnlock()
		return entry, nil
	}
	s.mu.RUnlock()

	cases := make([]eventlog.Case, 0, len(rec.Cases))
	for _, cr := range rec.Cases {
		c := eventlog.Case{ID: cr.ID}
		for _, er := range cr.Events {
			c.Events = append(c.Events, eventlog.Event{
				Activity:   er.Activity,
				Timestamp:  er.Timestamp,
				Attributes: er.Attributes,
			})
		}
		cases = append(cases, c)
	}
	log, err := eventlog.NewLog(cases)
	if err != nil {
		return nil, fmt.Errorf("rebuild log %s: %w", rec.ID, err)
	}

	entry := &logEntry{
		summary: LogSummary{
			ID:         rec.ID,
			Name:       rec.Name,
			CreatedAt:  rec.CreatedAt,
			Cases:      len(log.Traces),
			Events:     log.EventCount(),
			Activities: log.Activities(),
		},
		log: log,
	}
	s.mu.Lock()
	s.logs[rec.ID] = entry
	s.mu.Unlock()
	return entry, nil
}

func (s *Service) countError(operation string) {
	if s.metrics != nil {
		s.metrics.ErrorsTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("operation", operation)))
	}
}

// logToRecord converts a built log to its stored form.
func logToRecord(summary *LogSummary, log *eventlog.Log) *storage.LogRecord {
	rec := &storage.LogRecord{
		ID:        summary.ID,
		Name:      summary.Name,
		CreatedAt: summary.CreatedAt,
		Cases:     make([]storage.CaseRecord, 0, len(log.Traces)),
	}
	for _, tr := range log.Traces {
		cr := storage.CaseRecord{ID: tr.CaseID}
		for _, ev := range tr.Events {
			cr.Events = append(cr.Events, storage.EventRecord{
				Activity:   ev.Activity,
				Timestamp:  ev.Timestamp,
				Attributes: ev.Attributes,
			})
		}
		rec.Cases = append(rec.Cases, cr)
	}
	return rec
}

func modelToResponse(rec *storage.ModelRecord) *ModelResponse {
	return &ModelResponse{
		ModelID:     rec.ID,
		LogID:       rec.LogID,
		CreatedAt:   rec.CreatedAt,
		Config:      rec.Config,
		Arcs:        rec.Arcs,
		Places:      rec.Places,
		Transitions: rec.Transitions,
		Source:      rec.Source,
		Sink:        rec.Sink,
	}
}

func sortSummaries(summaries []LogSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
}

func sortModelSummaries(summaries []ModelSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
		}
		return summaries[i].ModelID < summaries[j].ModelID
	})
}
