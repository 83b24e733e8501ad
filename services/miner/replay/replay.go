// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package replay measures how well an event log conforms to a process
// model by token replay.
//
// Each trace is replayed independently over a shared read-only net: a
// token starts in the source place, every event fires its transition, and
// four counters track the token flow. Missing tokens are synthesized so a
// non-conforming trace still replays to the end; the synthesized and
// leftover tokens are exactly what the fitness score penalizes.
//
// Traces share no state during replay, so the work maps over trace
// partitions in parallel and reduces by summing counters in trace order.
package replay

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/ProcessLens/services/miner/eventlog"
	"github.com/AleutianAI/ProcessLens/services/miner/petri"
)

// TraceResult holds the token counters and fitness of one replayed trace.
type TraceResult struct {
	CaseID string `json:"case_id"`

	// Produced counts tokens created during replay, including the
	// initial source token.
	Produced int64 `json:"produced"`

	// Consumed counts tokens removed during replay, including the final
	// token taken from the sink place.
	Consumed int64 `json:"consumed"`

	// Missing counts tokens that had to be synthesized to fire a
	// transition whose input places were short.
	Missing int64 `json:"missing"`

	// Remaining counts tokens left anywhere in the net after the final
	// sink token is taken.
	Remaining int64 `json:"remaining"`

	// Unmappable counts events whose activity label has no transition in
	// the model. They are skipped and deliberately not folded into
	// Missing: a vocabulary mismatch is not a control-flow deviation.
	Unmappable int `json:"unmappable"`

	// Fitness is the per-trace conformance score in [0,1].
	Fitness float64 `json:"fitness"`
}

// LogResult aggregates trace results over a whole log.
type LogResult struct {
	// Traces holds per-trace results in log order.
	Traces []TraceResult `json:"traces"`

	Produced   int64 `json:"produced"`
	Consumed   int64 `json:"consumed"`
	Missing    int64 `json:"missing"`
	Remaining  int64 `json:"remaining"`
	Unmappable int   `json:"unmappable"`

	// Fitness is computed from the log-wide counter sums, not averaged
	// over trace scores: long traces weigh more than short ones.
	Fitness float64 `json:"fitness"`
}

// Option configures a replay run.
type Option func(*options)

type options struct {
	workerCount int
}

// WithWorkerCount sets the number of goroutines replaying trace
// partitions. Values below 1 fall back to GOMAXPROCS.
func WithWorkerCount(n int) Option {
	return func(o *options) {
		o.workerCount = n
	}
}

// Replay replays every trace of the log against the model.
//
// Description:
//
//	Traces are split into contiguous partitions replayed concurrently;
//	each result lands at its trace's index, so the output is identical
//	for any worker count. A trace never aborts mid-way: transitions
//	short on input tokens fire anyway and the deficit is recorded as
//	missing. Fitness per trace and per log follows
//
//	    1 - (missing/consumed)/2 - (remaining/produced)/2
//
//	which is 1 exactly when the trace walks the model with no token
//	deficit and no leftovers.
//
// Inputs:
//
//	ctx - Cancels the run between traces.
//	n   - The model, read-only during replay.
//	log - The event log.
//
// Outputs:
//
//	*LogResult - Per-trace results in log order plus aggregate counters.
//	error - ErrNilNet, ErrNilLog, or the context error on cancellation.
func Replay(ctx context.Context, n *petri.Net, log *eventlog.Log, opts ...Option) (*LogResult, error) {
	if n == nil {
		return nil, ErrNilNet
	}
	if log == nil {
		return nil, ErrNilLog
	}

	o := options{workerCount: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}
	workers := o.workerCount
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(log.Traces) {
		workers = len(log.Traces)
	}

	results := make([]TraceResult, len(log.Traces))

	if workers <= 1 {
		for i := range log.Traces {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = replayTrace(n, &log.Traces[i])
		}
		return reduce(results), nil
	}

	g, ctx := errgroup.WithContext(ctx)
	chunk := (len(log.Traces) + workers - 1) / workers
	for start := 0; start < len(log.Traces); start += chunk {
		start := start
		end := start + chunk
		if end > len(log.Traces) {
			end = len(log.Traces)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				results[i] = replayTrace(n, &log.Traces[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reduce(results), nil
}

// replayTrace fires the trace's events over a fresh marking.
func replayTrace(n *petri.Net, trace *eventlog.Trace) TraceResult {
	marking := make([]int64, n.NumPlaces())
	marking[n.Source()] = 1

	r := TraceResult{CaseID: trace.CaseID, Produced: 1}

	for i := range trace.Events {
		t, ok := n.Transition(trace.Events[i].Activity)
		if !ok {
			r.Unmappable++
			continue
		}

		// A satisfiable loop-back place re-enables the transition on its
		// own; the forward inputs are the fallback.
		fired := false
		for _, arc := range t.LoopInputs {
			if marking[arc.Place] >= arc.Weight {
				marking[arc.Place] -= arc.Weight
				r.Consumed += arc.Weight
				fired = true
				break
			}
		}
		if !fired {
			for _, arc := range t.Inputs {
				if have := marking[arc.Place]; have < arc.Weight {
					r.Missing += arc.Weight - have
					marking[arc.Place] = 0
				} else {
					marking[arc.Place] -= arc.Weight
				}
				r.Consumed += arc.Weight
			}
		}
		for _, arc := range t.Outputs {
			marking[arc.Place] += arc.Weight
			r.Produced += arc.Weight
		}
	}

	// The trace end consumes one token from the sink.
	r.Consumed++
	if marking[n.Sink()] >= 1 {
		marking[n.Sink()]--
	} else {
		r.Missing++
	}
	for _, count := range marking {
		r.Remaining += count
	}

	r.Fitness = fitness(r.Missing, r.Consumed, r.Remaining, r.Produced)
	return r
}

// reduce sums trace counters in log order and scores the aggregate.
func reduce(traces []TraceResult) *LogResult {
	lr := &LogResult{Traces: traces}
	for i := range traces {
		lr.Produced += traces[i].Produced
		lr.Consumed += traces[i].Consumed
		lr.Missing += traces[i].Missing
		lr.Remaining += traces[i].Remaining
		lr.Unmappable += traces[i].Unmappable
	}
	lr.Fitness = fitness(lr.Missing, lr.Consumed, lr.Remaining, lr.Produced)
	return lr
}

func fitness(missing, consumed, remaining, produced int64) float64 {
	f := 1.0
	if consumed > 0 {
		f -= float64(missing) / float64(consumed) / 2
	}
	if produced > 0 {
		f -= float64(remaining) / float64(produced) / 2
	}
	if f < 0 {
		return 0
	}
	return f
}
