// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package discovery derives causal arcs from a directly-follows graph using
// dependency-measure heuristics: threshold acceptance with an optional
// relative-to-best rescue, self-loop and length-two-loop detection, and
// AND-concurrency detection between siblings.
//
// Discovery is deterministic: the same graph and config always yield the
// same arc set. All iteration runs over lexically sorted labels and exact
// measure ties resolve by label order.
package discovery

import (
	"sort"

	"github.com/AleutianAI/ProcessLens/services/miner/dfg"
)

// Kind classifies an accepted arc.
type Kind int

const (
	// KindSequence is an ordinary causal arc.
	KindSequence Kind = iota

	// KindLoop marks a loop-back arc: a self-loop or the reverse leg of a
	// length-two loop. The assembler turns these into back-edge places.
	KindLoop

	// KindANDConcurrent marks an arc whose target runs concurrently with
	// at least one sibling from the same source.
	KindANDConcurrent
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindSequence:
		return "sequence"
	case KindLoop:
		return "loop"
	case KindANDConcurrent:
		return "and-concurrent"
	default:
		return "unknown"
	}
}

// Arc is one accepted causal arc. Boundary arcs use dfg.StartActivity and
// dfg.EndActivity as labels.
type Arc struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Kind       Kind    `json:"kind"`
	Dependency float64 `json:"dependency"`
}

// Result is the immutable outcome of a discovery run.
type Result struct {
	// Arcs are the accepted arcs sorted by (source, target).
	Arcs []Arc

	// Matrix is the dependency matrix snapshot the arcs were derived from.
	Matrix *Matrix

	concurrent map[[2]string]bool
}

// Concurrent reports whether activities a and b were detected as
// AND-concurrent siblings. Symmetric.
func (r *Result) Concurrent(a, b string) bool {
	if a > b {
		a, b = b, a
	}
	return r.concurrent[[2]string{a, b}]
}

// Discover selects the causal arc set of a frozen DFG under the given
// thresholds.
//
// Description:
//
//	Acceptance runs in four passes:
//	 1. Threshold pass: dep(a,b) >= DependencyThreshold, plus the
//	    relative-to-best rescue when configured.
//	 2. Self-loops: count(a,a)/(count(a,a)+1) >= LoopThreshold.
//	 3. Length-two loops: for pairs without self-loops, the two-step
//	    measure (c2(a,b)+c2(b,a))/(c2(a,b)+c2(b,a)+1) >= LoopThreshold
//	    accepts the pair; the direction with the higher directly-follows
//	    count (ties: lexically smaller source) stays the forward arc and
//	    the reverse becomes a loop-back arc.
//	 4. AND pass: accepted siblings b,c of a common source are marked
//	    concurrent when both |dep(b,c)| and |dep(c,b)| fall below
//	    ANDThreshold.
//
//	Boundary arcs (Start->x, x->End observed in the DFG) are always kept
//	so every discovered model has an entry and an exit.
//
// Outputs:
//
//	*Result - Accepted arcs, concurrency relation, and the matrix.
//	error - ErrInvalidConfig or ErrGraphNotFrozen.
func Discover(g *dfg.Graph, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if g.State() != dfg.GraphStateFrozen {
		return nil, ErrGraphNotFrozen
	}

	matrix := NewMatrix(g)
	acts := g.Activities()

	type arcKey = [2]string
	kinds := make(map[arcKey]Kind)
	deps := make(map[arcKey]float64)

	accept := func(a, b string, kind Kind) {
		key := arcKey{a, b}
		if prev, ok := kinds[key]; ok && prev == KindLoop {
			return // loop classification wins
		}
		kinds[key] = kind
		deps[key] = matrix.Dependency(a, b)
	}

	// Pass 1: threshold acceptance with optional rescue.
	for _, a := range acts {
		for _, e := range g.Outgoing(a) {
			b := e.Target
			if b == dfg.EndActivity || b == a {
				continue
			}
			d := matrix.Dependency(a, b)
			if d >= cfg.DependencyThreshold {
				accept(a, b, KindSequence)
				continue
			}
			if cfg.RelativeToBest && d > 0 {
				if matrix.BestOutgoing(a)-d <= cfg.RescueMargin ||
					matrix.BestIncoming(b)-d <= cfg.RescueMargin {
					accept(a, b, KindSequence)
				}
			}
		}
	}

	// Pass 2: self-loops.
	for _, a := range acts {
		c := float64(g.Count(a, a))
		if c > 0 && c/(c+1) >= cfg.LoopThreshold {
			accept(a, a, KindLoop)
		}
	}

	// Pass 3: length-two loops, pairs in lexical order.
	for i, a := range acts {
		for _, b := range acts[i+1:] {
			if g.Count(a, a) > 0 || g.Count(b, b) > 0 {
				continue
			}
			var c2 float64
			if e, ok := g.Edge(a, b); ok {
				c2 += float64(e.TwoStep)
			}
			if e, ok := g.Edge(b, a); ok {
				c2 += float64(e.TwoStep)
			}
			if c2 == 0 || c2/(c2+1) < cfg.LoopThreshold {
				continue
			}
			// Forward leg: higher directly-follows count, lexical tie-break
			// (a < b here, so a->b wins ties).
			fwd, back := a, b
			if g.Count(b, a) > g.Count(a, b) {
				fwd, back = b, a
			}
			accept(fwd, back, KindSequence)
			kinds[arcKey{back, fwd}] = KindLoop
			deps[arcKey{back, fwd}] = matrix.Dependency(back, fwd)
		}
	}

	// Pass 4: AND-concurrency among accepted siblings.
	concurrent := make(map[[2]string]bool)
	outTargets := make(map[string][]string)
	for key, kind := range kinds {
		if kind == KindLoop {
			continue
		}
		outTargets[key[0]] = append(outTargets[key[0]], key[1])
	}
	sources := make([]string, 0, len(outTargets))
	for s := range outTargets {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, s := range sources {
		targets := outTargets[s]
		sort.Strings(targets)
		for i := 0; i < len(targets); i++ {
			for j := i + 1; j < len(targets); j++ {
				b, c := targets[i], targets[j]
				if absBelow(matrix.Dependency(b, c), cfg.ANDThreshold) &&
					absBelow(matrix.Dependency(c, b), cfg.ANDThreshold) {
					concurrent[[2]string{b, c}] = true
					if kinds[arcKey{s, b}] == KindSequence {
						kinds[arcKey{s, b}] = KindANDConcurrent
					}
					if kinds[arcKey{s, c}] == KindSequence {
						kinds[arcKey{s, c}] = KindANDConcurrent
					}
				}
			}
		}
	}

	// Boundary arcs are always part of the model.
	for _, e := range g.Outgoing(dfg.StartActivity) {
		kinds[arcKey{dfg.StartActivity, e.Target}] = KindSequence
	}
	for _, e := range g.Incoming(dfg.EndActivity) {
		kinds[arcKey{e.Source, dfg.EndActivity}] = KindSequence
	}

	arcs := make([]Arc, 0, len(kinds))
	for key, kind := range kinds {
		arcs = append(arcs, Arc{Source: key[0], Target: key[1], Kind: kind, Dependency: deps[key]})
	}
	sort.Slice(arcs, func(i, j int) bool {
		if arcs[i].Source != arcs[j].Source {
			return arcs[i].Source < arcs[j].Source
		}
		return arcs[i].Target < arcs[j].Target
	})

	return &Result{Arcs: arcs, Matrix: matrix, concurrent: concurrent}, nil
}

func absBelow(v, bound float64) bool {
	if v < 0 {
		v = -v
	}
	return v < bound
}
