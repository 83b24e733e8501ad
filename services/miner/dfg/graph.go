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
	"fmt"
	"sort"
	"time"
)

// Synthetic node labels marking trace boundaries. They live in the graph's
// node set next to the real activity labels and are chosen so they cannot
// collide with activity names parsed from a log.
const (
	// StartActivity is the synthetic source node. Every trace contributes
	// one StartActivity -> first edge observation.
	StartActivity = "\x00start"

	// EndActivity is the synthetic sink node. Every trace contributes one
	// last -> EndActivity edge observation.
	EndActivity = "\x00end"
)

// GraphState is the lifecycle state of a Graph.
type GraphState int

const (
	// GraphStateBuilding indicates the graph accepts observations.
	GraphStateBuilding GraphState = iota

	// GraphStateFrozen indicates the graph is read-only.
	GraphStateFrozen
)

// Edge is one directed directly-follows relation between two activities.
//
// Count is the number of times Target immediately followed Source across all
// traces. Durations collects the inter-event gaps of those occurrences, in
// observation order; boundary edges (from StartActivity or to EndActivity)
// carry no duration samples. TwoStep counts Source -> Target -> Source
// patterns and feeds the length-two loop measure.
type Edge struct {
	Source string
	Target string
	Count  int64

	// Durations are the raw inter-event duration samples for this edge.
	// The Statistical Annotator condenses them into Stats.
	Durations []time.Duration

	// TwoStep is the number of observed Source->Target->Source patterns.
	TwoStep int64

	// Stats is populated by Annotate. Nil until then.
	Stats *EdgeStats
}

// Graph is the weighted directly-follows graph of an event log.
//
// Nodes are distinct activity labels plus the synthetic StartActivity and
// EndActivity boundaries. A Graph is single-writer while building and
// becomes safely shareable across goroutines once Freeze is called, the
// same lifecycle contract the rest of the mining pipeline relies on.
type Graph struct {
	nodes map[string]struct{}
	edges map[[2]string]*Edge

	// out and in are adjacency lists, sorted lexically on Freeze.
	out map[string][]*Edge
	in  map[string][]*Edge

	state GraphState
}

// NewGraph creates an empty graph in the Building state.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]struct{}),
		edges: make(map[[2]string]*Edge),
		out:   make(map[string][]*Edge),
		in:    make(map[string][]*Edge),
	}
}

// State returns the lifecycle state.
func (g *Graph) State() GraphState { return g.state }

// addNode registers a node label.
func (g *Graph) addNode(label string) {
	g.nodes[label] = struct{}{}
}

// Observe records one directly-follows occurrence of source -> target.
// hasDuration is false for boundary edges, which have no inter-event gap.
func (g *Graph) Observe(source, target string, gap time.Duration, hasDuration bool) error {
	if g.state != GraphStateBuilding {
		return ErrGraphFrozen
	}
	g.addNode(source)
	g.addNode(target)

	key := [2]string{source, target}
	e, ok := g.edges[key]
	if !ok {
		e = &Edge{Source: source, Target: target}
		g.edges[key] = e
		g.out[source] = append(g.out[source], e)
		g.in[target] = append(g.in[target], e)
	}
	e.Count++
	if hasDuration {
		e.Durations = append(e.Durations, gap)
	}
	return nil
}

// observeTwoStep records one a -> b -> a pattern on the a -> b edge.
func (g *Graph) observeTwoStep(a, b string) error {
	if g.state != GraphStateBuilding {
		return ErrGraphFrozen
	}
	key := [2]string{a, b}
	e, ok := g.edges[key]
	if !ok {
		// A two-step pattern implies the direct edge was observed first,
		// so a missing edge is a programming error, not log noise.
		return fmt.Errorf("two-step pattern %s -> %s without direct edge: %w", a, b, ErrEdgeNotFound)
	}
	e.TwoStep++
	return nil
}

// Merge folds other into g. Counts and two-step counts add; duration sample
// lists concatenate in merge order. Both graphs must be in the Building
// state. Merging partition graphs in partition index order yields a graph
// identical to building from the whole log at once.
func (g *Graph) Merge(other *Graph) error {
	if g.state != GraphStateBuilding || other.state != GraphStateBuilding {
		return ErrGraphFrozen
	}
	for label := range other.nodes {
		g.addNode(label)
	}
	for _, key := range other.sortedEdgeKeys() {
		src := other.edges[key]
		dst, ok := g.edges[key]
		if !ok {
			dst = &Edge{Source: src.Source, Target: src.Target}
			g.edges[key] = dst
			g.out[src.Source] = append(g.out[src.Source], dst)
			g.in[src.Target] = append(g.in[src.Target], dst)
		}
		dst.Count += src.Count
		dst.TwoStep += src.TwoStep
		dst.Durations = append(dst.Durations, src.Durations...)
	}
	return nil
}

// Freeze finalizes the graph: adjacency lists are sorted lexically and the
// graph becomes read-only. Freeze is idempotent.
func (g *Graph) Freeze() {
	if g.state == GraphStateFrozen {
		return
	}
	for _, edges := range g.out {
		sort.Slice(edges, func(i, j int) bool { return edges[i].Target < edges[j].Target })
	}
	for _, edges := range g.in {
		sort.Slice(edges, func(i, j int) bool { return edges[i].Source < edges[j].Source })
	}
	g.state = GraphStateFrozen
}

// Edge returns the edge source -> target, if observed.
func (g *Graph) Edge(source, target string) (*Edge, bool) {
	e, ok := g.edges[[2]string{source, target}]
	return e, ok
}

// Count returns the occurrence count of source -> target, zero if the edge
// was never observed.
func (g *Graph) Count(source, target string) int64 {
	if e, ok := g.Edge(source, target); ok {
		return e.Count
	}
	return 0
}

// Outgoing returns the outgoing edges of label, sorted by target once the
// graph is frozen.
func (g *Graph) Outgoing(label string) []*Edge { return g.out[label] }

// Incoming returns the incoming edges of label, sorted by source once the
// graph is frozen.
func (g *Graph) Incoming(label string) []*Edge { return g.in[label] }

// Nodes returns all node labels, synthetic boundaries included, in lexical
// order.
func (g *Graph) Nodes() []string {
	labels := make([]string, 0, len(g.nodes))
	for label := range g.nodes {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Activities returns the real activity labels (boundaries excluded) in
// lexical order.
func (g *Graph) Activities() []string {
	labels := make([]string, 0, len(g.nodes))
	for label := range g.nodes {
		if label == StartActivity || label == EndActivity {
			continue
		}
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Edges returns all edges sorted by (source, target).
func (g *Graph) Edges() []*Edge {
	keys := g.sortedEdgeKeys()
	edges := make([]*Edge, 0, len(keys))
	for _, key := range keys {
		edges = append(edges, g.edges[key])
	}
	return edges
}

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// NodeCount returns the number of nodes, synthetic boundaries included.
func (g *Graph) NodeCount() int { return len(g.nodes) }

func (g *Graph) sortedEdgeKeys() [][2]string {
	keys := make([][2]string, 0, len(g.edges))
	for key := range g.edges {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	return keys
}
