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
	"github.com/AleutianAI/ProcessLens/pkg/ux"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	plainOutput bool   // disable styled output (also implied by piping)
	configPath  string // YAML discovery config, overrides defaults
	outPath     string // output file; empty means stdout
	outFormat   string // dot, graphml, or json

	depThreshold   float64
	andThreshold   float64
	loopThreshold  float64
	relativeToBest bool
	rescueMargin   float64

	referencePath string // replay: log to discover the reference model from
	workerCount   int    // replay: parallel trace partitions

	rootCmd = &cobra.Command{
		Use:   "plens",
		Short: "Process mining from the command line",
		Long: `ProcessLens discovers process models from event logs and measures
how well observed behavior conforms to them. Logs are CSV or JSONL
files with case, activity, and timestamp columns.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if plainOutput {
				ux.SetPlainMode(true)
			}
		},
	}

	dfgCmd = &cobra.Command{
		Use:   "dfg [logfile]",
		Short: "Build the directly-follows graph of an event log",
		Args:  cobra.ExactArgs(1),
		RunE:  runDFG, // Defined in cmd_mine.go
	}

	discoverCmd = &cobra.Command{
		Use:   "discover [logfile]",
		Short: "Discover a Petri net process model from an event log",
		Args:  cobra.ExactArgs(1),
		RunE:  runDiscover, // Defined in cmd_mine.go
	}

	replayCmd = &cobra.Command{
		Use:   "replay [logfile]",
		Short: "Replay an event log against a discovered model and report fitness",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay, // Defined in cmd_replay.go
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false,
		"Plain machine-friendly output (no color or icons)")

	rootCmd.AddCommand(dfgCmd)
	dfgCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write graph to file instead of stdout")
	dfgCmd.Flags().StringVar(&outFormat, "format", "summary",
		"Output format: summary, dot, graphml, or json")

	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write model to file instead of stdout")
	discoverCmd.Flags().StringVar(&outFormat, "format", "summary",
		"Output format: summary, dot, graphml, or json")
	addThresholdFlags(discoverCmd)

	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVar(&referencePath, "reference", "",
		"Log file to discover the reference model from (default: the replayed log itself)")
	replayCmd.Flags().IntVar(&workerCount, "workers", 0,
		"Parallel replay partitions (0 = GOMAXPROCS)")
	addThresholdFlags(replayCmd)
}

// addThresholdFlags registers the discovery tuning flags shared by every
// command that runs the heuristics miner.
func addThresholdFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configPath, "config", "", "YAML file with discovery thresholds")
	cmd.Flags().Float64Var(&depThreshold, "threshold", -1,
		"Dependency threshold in [0,1] (overrides config)")
	cmd.Flags().Float64Var(&andThreshold, "and-threshold", -1,
		"AND-concurrency threshold in [0,1] (overrides config)")
	cmd.Flags().Float64Var(&loopThreshold, "loop-threshold", -1,
		"Loop threshold in [0,1] (overrides config)")
	cmd.Flags().BoolVar(&relativeToBest, "relative-to-best", true,
		"Rescue arcs close to the best sibling dependency")
	cmd.Flags().Float64Var(&rescueMargin, "rescue-margin", -1,
		"Allowed distance to the best dependency when rescuing (overrides config)")
}
