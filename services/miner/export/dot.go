// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export renders directly-follows graphs and discovered nets as
// Graphviz DOT and GraphML documents. Output is deterministic: nodes and
// edges are emitted in the sorted order their sources provide.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/AleutianAI/ProcessLens/services/miner/dfg"
	"github.com/AleutianAI/ProcessLens/services/miner/petri"
)

// displayLabel maps the synthetic boundary markers to readable names.
func displayLabel(label string) string {
	switch label {
	case dfg.StartActivity:
		return "start"
	case dfg.EndActivity:
		return "end"
	default:
		return label
	}
}

// quote escapes a string for use as a DOT quoted ID.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// WriteDFGDOT renders an annotated DFG as a DOT digraph.
//
// Description:
//
//	Edge labels carry the observation count and, when duration stats are
//	annotated, the mean duration. Boundary nodes render as "start" and
//	"end" with distinct shapes.
func WriteDFGDOT(w io.Writer, g *dfg.Graph) error {
	var b strings.Builder
	b.WriteString("digraph dfg {\n")
	b.WriteString("\trankdir=LR;\n")
	b.WriteString("\tnode [shape=box];\n")

	for _, n := range g.Nodes() {
		attrs := ""
		switch n {
		case dfg.StartActivity:
			attrs = " [shape=circle, style=filled, fillcolor=palegreen]"
		case dfg.EndActivity:
			attrs = " [shape=doublecircle, style=filled, fillcolor=lightcoral]"
		}
		fmt.Fprintf(&b, "\t%s%s;\n", quote(displayLabel(n)), attrs)
	}

	for _, e := range g.Edges() {
		// The label embeds a DOT \n escape, so it bypasses quote().
		label := fmt.Sprintf("%d", e.Count)
		if e.Stats != nil && e.Stats.Count > 0 {
			label += fmt.Sprintf("\\nmean %s", e.Stats.Mean.Round(time.Millisecond))
		}
		fmt.Fprintf(&b, "\t%s -> %s [label=\"%s\"];\n",
			quote(displayLabel(e.Source)), quote(displayLabel(e.Target)), label)
	}

	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteNetDOT renders a discovered net as a DOT digraph.
//
// Description:
//
//	Places render as circles and transitions as boxes. Arc labels carry
//	the weight when it exceeds one; loop-input arcs render dashed.
func WriteNetDOT(w io.Writer, n *petri.Net) error {
	var b strings.Builder
	b.WriteString("digraph net {\n")
	b.WriteString("\trankdir=LR;\n")

	for _, p := range n.Places() {
		attrs := "shape=circle"
		switch p.ID {
		case "source":
			attrs += ", style=filled, fillcolor=palegreen"
		case "sink":
			attrs += ", style=filled, fillcolor=lightcoral"
		}
		fmt.Fprintf(&b, "\t%s [%s];\n", quote(p.ID), attrs)
	}
	for _, t := range n.Transitions() {
		fmt.Fprintf(&b, "\t%s [shape=box];\n", quote(t.Label))
	}

	places := n.Places()
	arcLabel := func(weight int64) string {
		if weight > 1 {
			return fmt.Sprintf(" [label=%s]", quote(fmt.Sprintf("%d", weight)))
		}
		return ""
	}
	for _, t := range n.Transitions() {
		for _, a := range t.Inputs {
			fmt.Fprintf(&b, "\t%s -> %s%s;\n",
				quote(places[a.Place].ID), quote(t.Label), arcLabel(a.Weight))
		}
		for _, a := range t.LoopInputs {
			fmt.Fprintf(&b, "\t%s -> %s [style=dashed%s];\n",
				quote(places[a.Place].ID), quote(t.Label), loopLabel(a.Weight))
		}
		for _, a := range t.Outputs {
			fmt.Fprintf(&b, "\t%s -> %s%s;\n",
				quote(t.Label), quote(places[a.Place].ID), arcLabel(a.Weight))
		}
	}

	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func loopLabel(weight int64) string {
	if weight > 1 {
		return fmt.Sprintf(", label=%s", quote(fmt.Sprintf("%d", weight)))
	}
	return ""
}
