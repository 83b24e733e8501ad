// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/AleutianAI/ProcessLens/services/miner/dfg"
	"github.com/AleutianAI/ProcessLens/services/miner/eventlog"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

// discoverLog runs the full pipeline (log -> DFG -> discovery) over the
// given activity sequences.
func discoverLog(t *testing.T, cfg Config, sequences ...[]string) *Result {
	t.Helper()
	cases := make([]eventlog.Case, 0, len(sequences))
	for i, seq := range sequences {
		events := make([]eventlog.Event, 0, len(seq))
		for j, act := range seq {
			events = append(events, eventlog.Event{
				Activity:  act,
				Timestamp: t0.Add(time.Duration(j) * time.Minute),
			})
		}
		cases = append(cases, eventlog.Case{ID: fmt.Sprintf("case-%d", i), Events: events})
	}
	log, err := eventlog.NewLog(cases)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	g, err := dfg.Build(context.Background(), log)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	res, err := Discover(g, cfg)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	return res
}

func repeat(dst [][]string, seq []string, n int) [][]string {
	for i := 0; i < n; i++ {
		dst = append(dst, seq)
	}
	return dst
}

// findArc returns the arc with the given endpoints, failing the test when
// it is absent.
func findArc(t *testing.T, res *Result, source, target string) Arc {
	t.Helper()
	for _, a := range res.Arcs {
		if a.Source == source && a.Target == target {
			return a
		}
	}
	t.Fatalf("arc %q->%q not in result (have %v)", source, target, res.Arcs)
	return Arc{}
}

func hasArc(res *Result, source, target string) bool {
	for _, a := range res.Arcs {
		if a.Source == source && a.Target == target {
			return true
		}
	}
	return false
}

func depNear(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("dependency = %g, want %g", got, want)
	}
}

func TestDiscover_ExampleLog(t *testing.T) {
	// 9x [A,B,C] and 1x [A,C,B]. dep(A,B)=0.9 passes the threshold,
	// dep(B,C)=8/11 is rescued (it is B's best outgoing arc), and the rare
	// A->C / C->B observations are discarded.
	seqs := repeat(nil, []string{"A", "B", "C"}, 9)
	seqs = append(seqs, []string{"A", "C", "B"})
	res := discoverLog(t, DefaultConfig(), seqs...)

	ab := findArc(t, res, "A", "B")
	if ab.Kind != KindSequence {
		t.Errorf("A->B kind = %v, want sequence", ab.Kind)
	}
	depNear(t, ab.Dependency, 0.9)

	bc := findArc(t, res, "B", "C")
	if bc.Kind != KindSequence {
		t.Errorf("B->C kind = %v, want sequence", bc.Kind)
	}
	depNear(t, bc.Dependency, 8.0/11.0)

	if hasArc(res, "A", "C") {
		t.Error("A->C should not survive: below threshold and outside the rescue margin")
	}
	if hasArc(res, "C", "B") {
		t.Error("C->B should not survive: negative dependency")
	}

	// Boundary arcs mirror the observed entries and exits.
	for _, want := range [][2]string{
		{dfg.StartActivity, "A"},
		{"B", dfg.EndActivity},
		{"C", dfg.EndActivity},
	} {
		if !hasArc(res, want[0], want[1]) {
			t.Errorf("missing boundary arc %q->%q", want[0], want[1])
		}
	}

	if len(res.Arcs) != 5 {
		t.Errorf("len(Arcs) = %d, want 5: %v", len(res.Arcs), res.Arcs)
	}
}

func TestDiscover_ArcsSorted(t *testing.T) {
	seqs := repeat(nil, []string{"A", "B", "C"}, 9)
	seqs = append(seqs, []string{"A", "C", "B"})
	res := discoverLog(t, DefaultConfig(), seqs...)

	for i := 1; i < len(res.Arcs); i++ {
		prev, cur := res.Arcs[i-1], res.Arcs[i]
		if prev.Source > cur.Source || (prev.Source == cur.Source && prev.Target >= cur.Target) {
			t.Fatalf("arcs not sorted at index %d: %v before %v", i, prev, cur)
		}
	}
}

func TestDiscover_SelfLoop(t *testing.T) {
	// B repeats once per trace; count(B,B)=10 gives loop measure 10/11.
	seqs := repeat(nil, []string{"A", "B", "B", "C"}, 10)
	res := discoverLog(t, DefaultConfig(), seqs...)

	bb := findArc(t, res, "B", "B")
	if bb.Kind != KindLoop {
		t.Errorf("B->B kind = %v, want loop", bb.Kind)
	}

	if k := findArc(t, res, "A", "B").Kind; k != KindSequence {
		t.Errorf("A->B kind = %v, want sequence", k)
	}
	if k := findArc(t, res, "B", "C").Kind; k != KindSequence {
		t.Errorf("B->C kind = %v, want sequence", k)
	}
}

func TestDiscover_SelfLoopBelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoopThreshold = 0.95

	// count(B,B)=10 gives 10/11 ~ 0.909, under the raised threshold.
	seqs := repeat(nil, []string{"A", "B", "B", "C"}, 10)
	res := discoverLog(t, cfg, seqs...)

	if hasArc(res, "B", "B") {
		t.Error("self-loop should not be accepted under a 0.95 loop threshold")
	}
}

func TestDiscover_LengthTwoLoop(t *testing.T) {
	// [A,B,A] traces: the A->B->A pattern yields two-step count 10, and
	// the direct counts tie at 10 each, so the lexically smaller source
	// keeps the forward leg.
	seqs := repeat(nil, []string{"A", "B", "A"}, 10)
	res := discoverLog(t, DefaultConfig(), seqs...)

	ab := findArc(t, res, "A", "B")
	if ab.Kind != KindSequence {
		t.Errorf("A->B kind = %v, want sequence (forward leg)", ab.Kind)
	}
	ba := findArc(t, res, "B", "A")
	if ba.Kind != KindLoop {
		t.Errorf("B->A kind = %v, want loop (back leg)", ba.Kind)
	}
	depNear(t, ba.Dependency, 0)
}

func TestDiscover_LengthTwoLoopForwardByCount(t *testing.T) {
	// B->A dominates A->B (20 vs 10 direct observations), so B->A is the
	// forward leg despite the lexical order.
	seqs := repeat(nil, []string{"B", "A", "B", "A"}, 10)
	res := discoverLog(t, DefaultConfig(), seqs...)

	ba := findArc(t, res, "B", "A")
	if ba.Kind != KindSequence {
		t.Errorf("B->A kind = %v, want sequence (forward leg)", ba.Kind)
	}
	ab := findArc(t, res, "A", "B")
	if ab.Kind != KindLoop {
		t.Errorf("A->B kind = %v, want loop (back leg)", ab.Kind)
	}
}

func TestDiscover_ANDConcurrency(t *testing.T) {
	// B and C interleave freely between A and D: dep(B,C)=0, so both
	// outgoing arcs of A are upgraded to AND-concurrent.
	seqs := repeat(nil, []string{"A", "B", "C", "D"}, 5)
	seqs = repeat(seqs, []string{"A", "C", "B", "D"}, 5)
	res := discoverLog(t, DefaultConfig(), seqs...)

	if k := findArc(t, res, "A", "B").Kind; k != KindANDConcurrent {
		t.Errorf("A->B kind = %v, want and-concurrent", k)
	}
	if k := findArc(t, res, "A", "C").Kind; k != KindANDConcurrent {
		t.Errorf("A->C kind = %v, want and-concurrent", k)
	}

	// The join side stays plain sequence; concurrency is a property of
	// the targets, not the arcs into D.
	if k := findArc(t, res, "B", "D").Kind; k != KindSequence {
		t.Errorf("B->D kind = %v, want sequence", k)
	}
	if k := findArc(t, res, "C", "D").Kind; k != KindSequence {
		t.Errorf("C->D kind = %v, want sequence", k)
	}

	if !res.Concurrent("B", "C") {
		t.Error("Concurrent(B, C) = false, want true")
	}
	if !res.Concurrent("C", "B") {
		t.Error("Concurrent must be symmetric")
	}
	if res.Concurrent("B", "D") {
		t.Error("Concurrent(B, D) = true, want false")
	}
}

func TestDiscover_XORBranchesStaySequential(t *testing.T) {
	// B and C alternate after A but also directly follow each other often
	// enough (dep(B,C)=2/3) to stay ordered rather than concurrent.
	seqs := repeat(nil, []string{"A", "B", "D"}, 4)
	seqs = repeat(seqs, []string{"A", "C", "D"}, 4)
	seqs = repeat(seqs, []string{"A", "B", "C", "D"}, 2)
	res := discoverLog(t, DefaultConfig(), seqs...)

	if res.Concurrent("B", "C") {
		t.Error("Concurrent(B, C) = true, want false for an exclusive choice")
	}
	for _, pair := range [][2]string{{"A", "B"}, {"A", "C"}} {
		if k := findArc(t, res, pair[0], pair[1]).Kind; k == KindANDConcurrent {
			t.Errorf("%s->%s marked and-concurrent, want ordered", pair[0], pair[1])
		}
	}
}

func TestDiscover_RescueDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RelativeToBest = false

	// dep(B,C)=8/11 is under the threshold and has no rescue.
	seqs := repeat(nil, []string{"A", "B", "C"}, 9)
	seqs = append(seqs, []string{"A", "C", "B"})
	res := discoverLog(t, cfg, seqs...)

	if hasArc(res, "B", "C") {
		t.Error("B->C should not be accepted with the rescue rule disabled")
	}
}

func TestDiscover_Deterministic(t *testing.T) {
	seqs := repeat(nil, []string{"A", "B", "C", "E"}, 9)
	seqs = repeat(seqs, []string{"A", "C", "B", "E"}, 7)
	seqs = repeat(seqs, []string{"A", "D", "D", "E"}, 4)
	seqs = append(seqs, []string{"A", "C", "E"})

	first := discoverLog(t, DefaultConfig(), seqs...)
	for run := 0; run < 3; run++ {
		again := discoverLog(t, DefaultConfig(), seqs...)
		if !reflect.DeepEqual(first.Arcs, again.Arcs) {
			t.Fatalf("run %d: arc set differs:\n%v\nvs\n%v", run, first.Arcs, again.Arcs)
		}
	}
}

func TestDiscover_ThresholdMonotonicity(t *testing.T) {
	// Acceptance is dep >= threshold or the threshold-independent rescue,
	// so raising the threshold can only shrink the arc set.
	seqs := repeat(nil, []string{"A", "B", "D"}, 9)
	seqs = repeat(seqs, []string{"A", "C", "D"}, 5)
	seqs = repeat(seqs, []string{"A", "C", "B", "D"}, 3)
	seqs = append(seqs, []string{"A", "D"})

	arcSet := func(res *Result) map[[2]string]struct{} {
		set := make(map[[2]string]struct{}, len(res.Arcs))
		for _, a := range res.Arcs {
			set[[2]string{a.Source, a.Target}] = struct{}{}
		}
		return set
	}

	for _, rescue := range []bool{true, false} {
		cfg := DefaultConfig()
		cfg.RelativeToBest = rescue

		var prev map[[2]string]struct{}
		for _, threshold := range []float64{0.3, 0.5, 0.7, 0.9, 0.99} {
			cfg.DependencyThreshold = threshold
			cur := arcSet(discoverLog(t, cfg, seqs...))
			if prev != nil {
				for pair := range cur {
					if _, ok := prev[pair]; !ok {
						t.Errorf("rescue=%v threshold=%g: arc %q->%q appeared that a lower threshold rejected",
							rescue, threshold, pair[0], pair[1])
					}
				}
			}
			prev = cur
		}
	}
}

func TestDiscover_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DependencyThreshold = 1.5

	g := dfg.NewGraph()
	g.Freeze()
	if _, err := Discover(g, cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Discover error = %v, want ErrInvalidConfig", err)
	}
}

func TestDiscover_GraphNotFrozen(t *testing.T) {
	g := dfg.NewGraph()
	if _, err := Discover(g, DefaultConfig()); !errors.Is(err, ErrGraphNotFrozen) {
		t.Errorf("Discover error = %v, want ErrGraphNotFrozen", err)
	}
}
