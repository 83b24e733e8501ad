// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package petri holds the discovered process model: a place/transition net
// assembled from accepted causal arcs.
//
// # Representation
//
// The net is an arena: places and transitions live in flat slices and refer
// to each other by index, never by pointer. That keeps the structure free
// of reference cycles and trivially shareable read-only across replay
// workers. A net is built once by Assemble and is frozen afterwards.
package petri

import (
	"fmt"
	"sort"
)

// Arc connects a transition to a place (or vice versa) with a token weight.
type Arc struct {
	// Place is the index of the place in the net's arena.
	Place int `json:"place"`

	// Weight is the number of tokens produced or consumed.
	Weight int64 `json:"weight"`
}

// Place is a synchronization point between transitions.
type Place struct {
	// ID is a stable human-readable identifier derived from the grouping
	// that created the place.
	ID string `json:"id"`
}

// Transition corresponds 1:1 to an activity label of the model.
type Transition struct {
	// Label is the activity label.
	Label string `json:"label"`

	// Inputs are the required input arcs: firing consumes Weight tokens
	// from every one of them.
	Inputs []Arc `json:"inputs"`

	// Outputs are the output arcs: firing produces Weight tokens into
	// every one of them.
	Outputs []Arc `json:"outputs"`

	// LoopInputs are alternative inputs from loop-back places. A token
	// here re-enables the transition without the forward path having to
	// complete again; when one holds enough tokens it is consumed
	// instead of the required inputs.
	LoopInputs []Arc `json:"loop_inputs,omitempty"`
}

// Net is the assembled process model. Read-only after assembly.
type Net struct {
	places      []Place
	transitions []Transition
	transIndex  map[string]int
	source      int
	sink        int
}

// NumPlaces returns the number of places in the arena.
func (n *Net) NumPlaces() int { return len(n.places) }

// Places returns the place arena. Callers must not mutate it.
func (n *Net) Places() []Place { return n.places }

// Transitions returns the transition arena sorted by label. Callers must
// not mutate it.
func (n *Net) Transitions() []Transition { return n.transitions }

// Transition looks up a transition by activity label.
func (n *Net) Transition(label string) (*Transition, bool) {
	i, ok := n.transIndex[label]
	if !ok {
		return nil, false
	}
	return &n.transitions[i], true
}

// Source returns the index of the distinguished source place. The initial
// marking is one token here.
func (n *Net) Source() int { return n.source }

// Sink returns the index of the distinguished sink place. Replay consumes
// one token from here as the trace-end condition.
func (n *Net) Sink() int { return n.sink }

// Restore rebuilds a net from its serialized parts.
//
// Description:
//
//	Reconstructs the arena from places, transitions, and the two
//	distinguished place indexes, re-deriving the label index. Arc place
//	indexes and the source/sink indexes are bounds-checked and labels
//	must be unique; a net that passes is structurally equivalent to the
//	one Assemble produced.
//
// Outputs:
//
//	*Net - The restored net, frozen.
//	error - ErrMalformedNet wrapped with the offending detail.
func Restore(places []Place, transitions []Transition, source, sink int) (*Net, error) {
	n := &Net{
		places:      places,
		transitions: transitions,
		transIndex:  make(map[string]int, len(transitions)),
		source:      source,
		sink:        sink,
	}
	if source < 0 || source >= len(places) {
		return nil, fmt.Errorf("%w: source index %d out of range", ErrMalformedNet, source)
	}
	if sink < 0 || sink >= len(places) {
		return nil, fmt.Errorf("%w: sink index %d out of range", ErrMalformedNet, sink)
	}
	for i := range transitions {
		t := &transitions[i]
		if t.Label == "" {
			return nil, fmt.Errorf("%w: transition %d has empty label", ErrMalformedNet, i)
		}
		if _, dup := n.transIndex[t.Label]; dup {
			return nil, fmt.Errorf("%w: duplicate transition label %q", ErrMalformedNet, t.Label)
		}
		n.transIndex[t.Label] = i
		for _, arcs := range [][]Arc{t.Inputs, t.Outputs, t.LoopInputs} {
			for _, a := range arcs {
				if a.Place < 0 || a.Place >= len(places) {
					return nil, fmt.Errorf("%w: transition %q references place %d out of range",
						ErrMalformedNet, t.Label, a.Place)
				}
				if a.Weight < 1 {
					return nil, fmt.Errorf("%w: transition %q has arc weight %d",
						ErrMalformedNet, t.Label, a.Weight)
				}
			}
		}
	}
	n.sortArcs()
	return n, nil
}

// sortArcs orders every transition's arc lists by place index so the net
// structure, and therefore replay, is independent of assembly map order.
func (n *Net) sortArcs() {
	for i := range n.transitions {
		t := &n.transitions[i]
		sort.Slice(t.Inputs, func(a, b int) bool { return t.Inputs[a].Place < t.Inputs[b].Place })
		sort.Slice(t.Outputs, func(a, b int) bool { return t.Outputs[a].Place < t.Outputs[b].Place })
		sort.Slice(t.LoopInputs, func(a, b int) bool { return t.LoopInputs[a].Place < t.LoopInputs[b].Place })
	}
}
