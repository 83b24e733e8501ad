// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ProcessLens/pkg/ux"
	"github.com/AleutianAI/ProcessLens/services/miner/dfg"
	"github.com/AleutianAI/ProcessLens/services/miner/discovery"
	"github.com/AleutianAI/ProcessLens/services/miner/eventlog"
	"github.com/AleutianAI/ProcessLens/services/miner/export"
	"github.com/AleutianAI/ProcessLens/services/miner/ingest"
	"github.com/AleutianAI/ProcessLens/services/miner/petri"
)

// loadLog reads a CSV or JSONL event log from disk.
func loadLog(path string) (*eventlog.Log, error) {
	log, err := ingest.ReadLogFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return log, nil
}

// minerConfig resolves the discovery configuration from the config file
// and the per-flag overrides registered by addThresholdFlags.
func minerConfig(cmd *cobra.Command) (discovery.Config, error) {
	cfg := discovery.DefaultConfig()
	if configPath != "" {
		loaded, err := discovery.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if depThreshold >= 0 {
		cfg.DependencyThreshold = depThreshold
	}
	if andThreshold >= 0 {
		cfg.ANDThreshold = andThreshold
	}
	if loopThreshold >= 0 {
		cfg.LoopThreshold = loopThreshold
	}
	if rescueMargin >= 0 {
		cfg.RescueMargin = rescueMargin
	}
	if cmd.Flags().Changed("relative-to-best") {
		cfg.RelativeToBest = relativeToBest
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// openOutput returns the writer for --out, or stdout when unset. The
// returned close func is a no-op for stdout.
func openOutput() (io.Writer, func() error, error) {
	if outPath == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func runDFG(cmd *cobra.Command, args []string) error {
	log, err := loadLog(args[0])
	if err != nil {
		ux.Error(err.Error())
		return err
	}

	graph, err := dfg.Build(cmd.Context(), log)
	if err != nil {
		ux.Error(err.Error())
		return err
	}
	graph = dfg.Annotate(graph)

	w, closeOut, err := openOutput()
	if err != nil {
		ux.Error(err.Error())
		return err
	}
	defer closeOut() //nolint:errcheck

	switch outFormat {
	case "dot":
		err = export.WriteDFGDOT(w, graph)
	case "graphml":
		err = export.WriteDFGGraphML(w, graph)
	case "json":
		err = writeJSON(w, dfgView(graph))
	case "summary":
		printDFGSummary(log, graph)
	default:
		err = fmt.Errorf("unknown format %q", outFormat)
	}
	if err != nil {
		ux.Error(err.Error())
		return err
	}
	if outPath != "" {
		ux.Success(fmt.Sprintf("wrote %s graph to %s", outFormat, outPath))
	}
	return nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, err := minerConfig(cmd)
	if err != nil {
		ux.Error(err.Error())
		return err
	}

	log, err := loadLog(args[0])
	if err != nil {
		ux.Error(err.Error())
		return err
	}

	graph, err := dfg.Build(cmd.Context(), log)
	if err != nil {
		ux.Error(err.Error())
		return err
	}
	result, err := discovery.Discover(graph, cfg)
	if err != nil {
		ux.Error(err.Error())
		return err
	}
	net, err := petri.Assemble(result)
	if err != nil {
		ux.Error(err.Error())
		return err
	}

	w, closeOut, err := openOutput()
	if err != nil {
		ux.Error(err.Error())
		return err
	}
	defer closeOut() //nolint:errcheck

	switch outFormat {
	case "dot":
		err = export.WriteNetDOT(w, net)
	case "graphml":
		err = export.WriteNetGraphML(w, net)
	case "json":
		err = writeJSON(w, modelView(result, net))
	case "summary":
		printModelSummary(log, result, net)
	default:
		err = fmt.Errorf("unknown format %q", outFormat)
	}
	if err != nil {
		ux.Error(err.Error())
		return err
	}
	if outPath != "" {
		ux.Success(fmt.Sprintf("wrote %s model to %s", outFormat, outPath))
	}
	return nil
}

func printDFGSummary(log *eventlog.Log, graph *dfg.Graph) {
	ux.Title("Directly-Follows Graph")
	ux.KeyValue("traces", fmt.Sprintf("%d", len(log.Traces)))
	ux.KeyValue("events", fmt.Sprintf("%d", log.EventCount()))
	ux.KeyValue("activities", fmt.Sprintf("%d", len(graph.Activities())))
	ux.KeyValue("edges", fmt.Sprintf("%d", len(graph.Edges())))
	for _, e := range graph.Edges() {
		line := fmt.Sprintf("%s %s %s  (count %d)",
			displayName(e.Source), ux.IconArrow.Render(), displayName(e.Target), e.Count)
		if e.Stats != nil {
			line += fmt.Sprintf("  mean %s", e.Stats.Mean)
		}
		ux.Info(line)
	}
}

func printModelSummary(log *eventlog.Log, result *discovery.Result, net *petri.Net) {
	ux.Title("Discovered Model")
	ux.KeyValue("traces", fmt.Sprintf("%d", len(log.Traces)))
	ux.KeyValue("arcs", fmt.Sprintf("%d", len(result.Arcs)))
	ux.KeyValue("places", fmt.Sprintf("%d", net.NumPlaces()))
	ux.KeyValue("transitions", fmt.Sprintf("%d", len(net.Transitions())))
	for _, arc := range result.Arcs {
		ux.Info(fmt.Sprintf("%s %s %s  [%s, dep %.3f]",
			displayName(arc.Source), ux.IconArrow.Render(), displayName(arc.Target),
			arc.Kind, arc.Dependency))
	}
}

// graphJSON is the file representation of an annotated DFG.
type graphJSON struct {
	Nodes []string  `json:"nodes"`
	Edges []edgeJSON `json:"edges"`
}

type edgeJSON struct {
	Source string         `json:"source"`
	Target string         `json:"target"`
	Count  int64          `json:"count"`
	Stats  *dfg.EdgeStats `json:"stats,omitempty"`
}

func dfgView(graph *dfg.Graph) graphJSON {
	view := graphJSON{Nodes: graph.Nodes()}
	for _, e := range graph.Edges() {
		view.Edges = append(view.Edges, edgeJSON{
			Source: e.Source,
			Target: e.Target,
			Count:  e.Count,
			Stats:  e.Stats,
		})
	}
	return view
}

// modelJSON is the file representation of a discovered model.
type modelJSON struct {
	Arcs        []discovery.Arc    `json:"arcs"`
	Places      []petri.Place      `json:"places"`
	Transitions []petri.Transition `json:"transitions"`
	Source      int                `json:"source"`
	Sink        int                `json:"sink"`
}

func modelView(result *discovery.Result, net *petri.Net) modelJSON {
	return modelJSON{
		Arcs:        result.Arcs,
		Places:      net.Places(),
		Transitions: net.Transitions(),
		Source:      net.Source(),
		Sink:        net.Sink(),
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// displayName maps the synthetic boundary labels to printable names.
func displayName(activity string) string {
	switch activity {
	case dfg.StartActivity:
		return "▷"
	case dfg.EndActivity:
		return "□"
	}
	return activity
}
