// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dfg

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/ProcessLens/services/miner/eventlog"
)

// DefaultWorkerCount selects runtime.NumCPU() workers when zero.
const DefaultWorkerCount = 0

// BuilderOptions configures Build.
type BuilderOptions struct {
	// WorkerCount is the number of parallel extraction workers.
	// Default: runtime.NumCPU().
	WorkerCount int
}

// BuilderOption is a functional option for Build.
type BuilderOption func(*BuilderOptions)

// WithWorkerCount sets the number of parallel extraction workers.
func WithWorkerCount(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.WorkerCount = n
	}
}

// Build constructs the directly-follows graph of a log.
//
// Description:
//
//	Each trace contributes a StartActivity -> first edge, a last ->
//	EndActivity edge, and one edge per consecutive event pair, with the
//	inter-event gap collected as a duration sample. Length-two patterns
//	(a -> b -> a) are counted on the a -> b edge for the loop heuristics.
//
//	Extraction is a map step over contiguous trace partitions, one private
//	partial graph per worker, followed by a reduce step that merges the
//	partials in partition index order. Counts and sample lists merge
//	associatively, so the result is identical regardless of worker count
//	or scheduling. The returned graph is frozen.
//
// Inputs:
//
//	ctx - Context for cancellation, checked per trace.
//	log - The event log. Shared read-only across workers.
//	opts - Optional worker configuration.
//
// Outputs:
//
//	*Graph - The frozen directly-follows graph.
//	error - ErrNilLog, context errors, or eventlog.ErrInvalidTrace wrapped
//	        with the lowest offending trace index. When several partitions
//	        fail, the error for the lowest trace index wins so failures are
//	        reproducible across runs.
func Build(ctx context.Context, log *eventlog.Log, opts ...BuilderOption) (*Graph, error) {
	if log == nil {
		return nil, ErrNilLog
	}

	options := BuilderOptions{WorkerCount: DefaultWorkerCount}
	for _, opt := range opts {
		opt(&options)
	}
	workers := options.WorkerCount
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(log.Traces) {
		workers = len(log.Traces)
	}
	if workers <= 1 {
		g := NewGraph()
		if err := extractPartition(ctx, g, log.Traces, 0); err != nil {
			return nil, err
		}
		g.Freeze()
		return g, nil
	}

	partials := make([]*Graph, workers)
	failures := make([]*partitionError, workers)

	// Contiguous partitioning keeps the lowest-trace-index error in the
	// lowest partition, which makes failure selection deterministic.
	chunk := (len(log.Traces) + workers - 1) / workers
	grp, gctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		w := w
		lo := w * chunk
		hi := min(lo+chunk, len(log.Traces))
		if lo >= hi {
			continue
		}
		grp.Go(func() error {
			g := NewGraph()
			if err := extractPartition(gctx, g, log.Traces[lo:hi], lo); err != nil {
				// A partition unwound by cancellation says nothing about
				// the log; recording it would let a low-index context
				// error outrank the real failure in selection.
				if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					failures[w] = &partitionError{firstTrace: lo, err: err}
				}
				// Returning the error cancels gctx and short-circuits the
				// remaining partitions.
				return err
			}
			partials[w] = g
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		// The errgroup surfaces the first error to *finish*; pick the
		// extraction failure with the lowest trace index instead.
		var sel *partitionError
		for _, f := range failures {
			if f != nil && (sel == nil || f.firstTrace < sel.firstTrace) {
				sel = f
			}
		}
		if sel != nil {
			return nil, sel.err
		}
		// Only context errors occurred: the caller's ctx was canceled.
		return nil, err
	}

	merged := NewGraph()
	for _, g := range partials {
		if g == nil {
			continue
		}
		if err := merged.Merge(g); err != nil {
			return nil, err
		}
	}
	merged.Freeze()
	return merged, nil
}

// partitionError remembers where in the log a partition failed.
type partitionError struct {
	firstTrace int
	err        error
}

// extractPartition maps the traces of one partition into a private graph.
// base is the global index of the partition's first trace, used only for
// error reporting.
func extractPartition(ctx context.Context, g *Graph, traces []eventlog.Trace, base int) error {
	for i := range traces {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := extractTrace(g, &traces[i]); err != nil {
			return fmt.Errorf("trace %d (case %q): %w", base+i, traces[i].CaseID, err)
		}
	}
	return nil
}

// extractTrace records the directly-follows observations of one trace.
func extractTrace(g *Graph, trace *eventlog.Trace) error {
	events := trace.Events
	if len(events) == 0 {
		// NewLog rejects these already; re-check so a hand-built log
		// cannot corrupt the graph silently.
		return fmt.Errorf("%w: no events", eventlog.ErrInvalidTrace)
	}

	if err := g.Observe(StartActivity, events[0].Activity, 0, false); err != nil {
		return err
	}
	for i := 0; i+1 < len(events); i++ {
		gap := events[i+1].Timestamp.Sub(events[i].Timestamp)
		if err := g.Observe(events[i].Activity, events[i+1].Activity, gap, true); err != nil {
			return err
		}
	}
	if err := g.Observe(events[len(events)-1].Activity, EndActivity, 0, false); err != nil {
		return err
	}

	// Length-two patterns a -> b -> a, with a != b. Direct edges exist by
	// now, so observeTwoStep cannot miss.
	for i := 0; i+2 < len(events); i++ {
		a, b := events[i].Activity, events[i+1].Activity
		if a != b && events[i+2].Activity == a {
			if err := g.observeTwoStep(a, b); err != nil {
				return err
			}
		}
	}
	return nil
}
