// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/AleutianAI/ProcessLens/services/miner/dfg"
	"github.com/AleutianAI/ProcessLens/services/miner/petri"
)

const graphmlNamespace = "http://graphml.graphdrawing.org/xmlns"

// GraphML document structure. Node weights are exported as a "name" data
// key, matching common GraphML tooling expectations.
type graphmlDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	XMLNS   string       `xml:"xmlns,attr"`
	Keys    []graphmlKey `xml:"key"`
	Graph   graphmlGraph `xml:"graph"`
}

type graphmlKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

type graphmlGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphmlNode `xml:"node"`
	Edges       []graphmlEdge `xml:"edge"`
}

type graphmlNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphmlData `xml:"data"`
}

type graphmlEdge struct {
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphmlData `xml:"data"`
}

type graphmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

func writeDoc(w io.Writer, doc graphmlDoc) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteDFGGraphML renders an annotated DFG as a GraphML document with
// "name" node keys and "count" edge keys.
func WriteDFGGraphML(w io.Writer, g *dfg.Graph) error {
	doc := graphmlDoc{
		XMLNS: graphmlNamespace,
		Keys: []graphmlKey{
			{ID: "name", For: "node", AttrName: "name", AttrType: "string"},
			{ID: "count", For: "edge", AttrName: "count", AttrType: "long"},
			{ID: "mean_ns", For: "edge", AttrName: "mean_ns", AttrType: "long"},
		},
		Graph: graphmlGraph{ID: "dfg", EdgeDefault: "directed"},
	}

	for _, n := range g.Nodes() {
		doc.Graph.Nodes = append(doc.Graph.Nodes, graphmlNode{
			ID:   displayLabel(n),
			Data: []graphmlData{{Key: "name", Value: displayLabel(n)}},
		})
	}
	for _, e := range g.Edges() {
		edge := graphmlEdge{
			Source: displayLabel(e.Source),
			Target: displayLabel(e.Target),
			Data:   []graphmlData{{Key: "count", Value: fmt.Sprintf("%d", e.Count)}},
		}
		if e.Stats != nil && e.Stats.Count > 0 {
			edge.Data = append(edge.Data, graphmlData{
				Key:   "mean_ns",
				Value: fmt.Sprintf("%d", e.Stats.Mean.Nanoseconds()),
			})
		}
		doc.Graph.Edges = append(doc.Graph.Edges, edge)
	}

	return writeDoc(w, doc)
}

// WriteNetGraphML renders a discovered net as a GraphML document.
//
// Description:
//
//	The bipartite structure is flattened into one node set: places keep
//	their IDs and transitions are prefixed with "t:" to avoid collisions
//	with place IDs derived from activity labels. A "kind" node key
//	distinguishes the two; arc weights become "weight" edge data.
func WriteNetGraphML(w io.Writer, n *petri.Net) error {
	doc := graphmlDoc{
		XMLNS: graphmlNamespace,
		Keys: []graphmlKey{
			{ID: "name", For: "node", AttrName: "name", AttrType: "string"},
			{ID: "kind", For: "node", AttrName: "kind", AttrType: "string"},
			{ID: "weight", For: "edge", AttrName: "weight", AttrType: "long"},
			{ID: "loop", For: "edge", AttrName: "loop", AttrType: "boolean"},
		},
		Graph: graphmlGraph{ID: "net", EdgeDefault: "directed"},
	}

	places := n.Places()
	for _, p := range places {
		doc.Graph.Nodes = append(doc.Graph.Nodes, graphmlNode{
			ID: p.ID,
			Data: []graphmlData{
				{Key: "name", Value: p.ID},
				{Key: "kind", Value: "place"},
			},
		})
	}
	for _, t := range n.Transitions() {
		doc.Graph.Nodes = append(doc.Graph.Nodes, graphmlNode{
			ID: "t:" + t.Label,
			Data: []graphmlData{
				{Key: "name", Value: t.Label},
				{Key: "kind", Value: "transition"},
			},
		})
	}

	weightData := func(weight int64) []graphmlData {
		return []graphmlData{{Key: "weight", Value: fmt.Sprintf("%d", weight)}}
	}
	for _, t := range n.Transitions() {
		id := "t:" + t.Label
		for _, a := range t.Inputs {
			doc.Graph.Edges = append(doc.Graph.Edges, graphmlEdge{
				Source: places[a.Place].ID, Target: id, Data: weightData(a.Weight),
			})
		}
		for _, a := range t.LoopInputs {
			doc.Graph.Edges = append(doc.Graph.Edges, graphmlEdge{
				Source: places[a.Place].ID, Target: id,
				Data: append(weightData(a.Weight), graphmlData{Key: "loop", Value: "true"}),
			})
		}
		for _, a := range t.Outputs {
			doc.Graph.Edges = append(doc.Graph.Edges, graphmlEdge{
				Source: id, Target: places[a.Place].ID, Data: weightData(a.Weight),
			})
		}
	}

	return writeDoc(w, doc)
}
