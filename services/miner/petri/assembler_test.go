// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package petri

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/AleutianAI/ProcessLens/services/miner/dfg"
	"github.com/AleutianAI/ProcessLens/services/miner/discovery"
	"github.com/AleutianAI/ProcessLens/services/miner/eventlog"
)

// buildNet runs the discovery pipeline over synthetic traces and assembles
// the result. Each sequence is repeated `repeat` times as its own case.
func buildNet(t *testing.T, cfg discovery.Config, sequences map[string][]string, repeats map[string]int) (*Net, error) {
	t.Helper()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	var cases []eventlog.Case
	caseNum := 0
	for name, seq := range sequences {
		for r := 0; r < repeats[name]; r++ {
			caseNum++
			c := eventlog.Case{ID: fmt.Sprintf("c%03d", caseNum)}
			for i, act := range seq {
				c.Events = append(c.Events, eventlog.Event{
					Activity:  act,
					Timestamp: base.Add(time.Duration(i) * time.Minute),
				})
			}
			cases = append(cases, c)
		}
	}
	log, err := eventlog.NewLog(cases)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	g, err := dfg.Build(context.Background(), log)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	res, err := discovery.Discover(g, cfg)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	return Assemble(res)
}

// findPlace returns the arena index of the place with the given ID.
func findPlace(t *testing.T, n *Net, id string) int {
	t.Helper()
	for i, p := range n.Places() {
		if p.ID == id {
			return i
		}
	}
	t.Fatalf("place %q not found; have %v", id, n.Places())
	return -1
}

func singleArc(t *testing.T, arcs []Arc, wantPlace int, wantWeight int64) {
	t.Helper()
	if len(arcs) != 1 {
		t.Fatalf("want exactly one arc, got %v", arcs)
	}
	if arcs[0].Place != wantPlace || arcs[0].Weight != wantWeight {
		t.Fatalf("arc = %+v, want place %d weight %d", arcs[0], wantPlace, wantWeight)
	}
}

func TestAssemble_SequenceChain(t *testing.T) {
	n, err := buildNet(t, discovery.DefaultConfig(),
		map[string][]string{"main": {"A", "B", "C"}},
		map[string]int{"main": 10})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if got := len(n.Transitions()); got != 3 {
		t.Fatalf("transitions = %d, want 3", got)
	}
	if got := n.NumPlaces(); got != 4 {
		t.Fatalf("places = %d, want 4 (source, sink, two sequence places)", got)
	}

	ab := findPlace(t, n, "seq:A->B")
	bc := findPlace(t, n, "seq:B->C")

	a, _ := n.Transition("A")
	singleArc(t, a.Inputs, n.Source(), 1)
	singleArc(t, a.Outputs, ab, 1)

	b, _ := n.Transition("B")
	singleArc(t, b.Inputs, ab, 1)
	singleArc(t, b.Outputs, bc, 1)

	c, _ := n.Transition("C")
	singleArc(t, c.Inputs, bc, 1)
	singleArc(t, c.Outputs, n.Sink(), 1)

	if len(a.LoopInputs) != 0 || len(b.LoopInputs) != 0 || len(c.LoopInputs) != 0 {
		t.Fatal("sequence chain must not have loop inputs")
	}
}

// Exclusive branches with a mild ordering preference between them share a
// single split place out of A and a single join place into D: one token
// routes to exactly one branch.
func TestAssemble_XORSplitJoinSharePlaces(t *testing.T) {
	n, err := buildNet(t, discovery.DefaultConfig(),
		map[string][]string{
			"viaB": {"A", "B", "D"},
			"viaC": {"A", "C", "D"},
			"both": {"A", "B", "C", "D"},
		},
		map[string]int{"viaB": 4, "viaC": 4, "both": 2})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if got := n.NumPlaces(); got != 4 {
		t.Fatalf("places = %d, want 4 (source, sink, one split, one join)", got)
	}
	split := findPlace(t, n, "split:A:xor[B,C]")
	join := findPlace(t, n, "join:D:xor[B,C]")

	a, _ := n.Transition("A")
	singleArc(t, a.Outputs, split, 1)

	b, _ := n.Transition("B")
	singleArc(t, b.Inputs, split, 1)
	singleArc(t, b.Outputs, join, 1)

	c, _ := n.Transition("C")
	singleArc(t, c.Inputs, split, 1)
	singleArc(t, c.Outputs, join, 1)

	d, _ := n.Transition("D")
	singleArc(t, d.Inputs, join, 1)
}

// Interleaved branches (B and C in either order) form an AND group: the
// split produces one token per member into the joint place and the join
// consumes them all back.
func TestAssemble_ANDSplitJoinWeights(t *testing.T) {
	n, err := buildNet(t, discovery.DefaultConfig(),
		map[string][]string{
			"bc": {"A", "B", "C", "D"},
			"cb": {"A", "C", "B", "D"},
		},
		map[string]int{"bc": 5, "cb": 5})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	split := findPlace(t, n, "split:A:and[B,C]")
	join := findPlace(t, n, "join:D:and[B,C]")

	a, _ := n.Transition("A")
	singleArc(t, a.Outputs, split, 2)

	b, _ := n.Transition("B")
	singleArc(t, b.Inputs, split, 1)
	singleArc(t, b.Outputs, join, 1)

	c, _ := n.Transition("C")
	singleArc(t, c.Inputs, split, 1)
	singleArc(t, c.Outputs, join, 1)

	d, _ := n.Transition("D")
	singleArc(t, d.Inputs, join, 2)
}

// A length-two loop keeps the forward leg as an ordinary sequence place and
// adds a back-edge place wired as an alternative input of the loop's start.
func TestAssemble_LengthTwoLoopBackEdge(t *testing.T) {
	n, err := buildNet(t, discovery.DefaultConfig(),
		map[string][]string{"loop": {"A", "B", "A"}},
		map[string]int{"loop": 10})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	fwd := findPlace(t, n, "seq:A->B")
	back := findPlace(t, n, "loop:B->A")

	a, _ := n.Transition("A")
	singleArc(t, a.Inputs, n.Source(), 1)
	singleArc(t, a.LoopInputs, back, 1)
	if len(a.Outputs) != 2 {
		t.Fatalf("A outputs = %v, want forward place and sink", a.Outputs)
	}

	b, _ := n.Transition("B")
	singleArc(t, b.Inputs, fwd, 1)
	singleArc(t, b.Outputs, back, 1)
	if len(b.LoopInputs) != 0 {
		t.Fatalf("B must not have loop inputs, got %v", b.LoopInputs)
	}
}

// Repeated pipeline runs over the same behavior must assemble the same net,
// place for place and arc for arc. buildNet ranges over a map, so trace
// submission order varies between calls; the net must not.
func TestAssemble_Deterministic(t *testing.T) {
	sequences := map[string][]string{
		"main":   {"A", "B", "C", "E"},
		"alt":    {"A", "C", "B", "E"},
		"looped": {"A", "B", "A", "B", "E"},
		"short":  {"A", "E"},
	}
	repeats := map[string]int{"main": 9, "alt": 7, "looped": 4, "short": 1}

	first, err := buildNet(t, discovery.DefaultConfig(), sequences, repeats)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	for run := 0; run < 3; run++ {
		again, err := buildNet(t, discovery.DefaultConfig(), sequences, repeats)
		if err != nil {
			t.Fatalf("run %d: Assemble: %v", run, err)
		}
		if !reflect.DeepEqual(first.Places(), again.Places()) {
			t.Fatalf("run %d: places differ:\n%v\nvs\n%v", run, first.Places(), again.Places())
		}
		if !reflect.DeepEqual(first.Transitions(), again.Transitions()) {
			t.Fatalf("run %d: transitions differ:\n%v\nvs\n%v",
				run, first.Transitions(), again.Transitions())
		}
	}
}

// Concurrency signals that chain (B~C, C~D) without closing (B not ~ D)
// cannot be grouped: the member pair breaking the clique is reported.
func TestAssemble_InconsistentGrouping(t *testing.T) {
	cfg := discovery.DefaultConfig()
	cfg.RescueMargin = 0.2

	_, err := buildNet(t, cfg,
		map[string][]string{
			"bc": {"A", "B", "C", "E"},
			"cb": {"A", "C", "B", "E"},
			"cd": {"A", "C", "D", "E"},
			"dc": {"A", "D", "C", "E"},
			"bd": {"A", "B", "D", "E"},
		},
		map[string]int{"bc": 5, "cb": 5, "cd": 5, "dc": 5, "bd": 10})
	if err == nil {
		t.Fatal("want grouping error, got nil")
	}
	if !errors.Is(err, ErrInconsistentGrouping) {
		t.Fatalf("errors.Is(ErrInconsistentGrouping) = false for %v", err)
	}
	var ge *GroupingError
	if !errors.As(err, &ge) {
		t.Fatalf("errors.As(*GroupingError) = false for %v", err)
	}
	if ge.Source != "B" || ge.Target != "D" {
		t.Fatalf("conflict = %s/%s, want B/D", ge.Source, ge.Target)
	}
}

func TestAssemble_EmptyResult(t *testing.T) {
	if _, err := Assemble(&discovery.Result{}); !errors.Is(err, ErrNoArcs) {
		t.Fatalf("err = %v, want ErrNoArcs", err)
	}
}
