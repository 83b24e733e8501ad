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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ProcessLens/pkg/ux"
	"github.com/AleutianAI/ProcessLens/services/miner/dfg"
	"github.com/AleutianAI/ProcessLens/services/miner/discovery"
	"github.com/AleutianAI/ProcessLens/services/miner/eventlog"
	"github.com/AleutianAI/ProcessLens/services/miner/petri"
	"github.com/AleutianAI/ProcessLens/services/miner/replay"
)

// runReplay measures conformance of a log against a reference model. The
// model is discovered from --reference when given, otherwise from the
// replayed log itself (self-fitness).
func runReplay(cmd *cobra.Command, args []string) error {
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

	modelLog := log
	if referencePath != "" {
		modelLog, err = loadLog(referencePath)
		if err != nil {
			ux.Error(err.Error())
			return err
		}
	}

	net, err := discoverNet(cmd, modelLog, cfg)
	if err != nil {
		ux.Error(err.Error())
		return err
	}

	var opts []replay.Option
	if workerCount > 0 {
		opts = append(opts, replay.WithWorkerCount(workerCount))
	}
	result, err := replay.Replay(cmd.Context(), net, log, opts...)
	if err != nil {
		ux.Error(err.Error())
		return err
	}

	printReplaySummary(log, result)
	return nil
}

func discoverNet(cmd *cobra.Command, log *eventlog.Log, cfg discovery.Config) (*petri.Net, error) {
	graph, err := dfg.Build(cmd.Context(), log)
	if err != nil {
		return nil, err
	}
	result, err := discovery.Discover(graph, cfg)
	if err != nil {
		return nil, err
	}
	return petri.Assemble(result)
}

func printReplaySummary(log *eventlog.Log, result *replay.LogResult) {
	ux.Title("Conformance Replay")
	ux.KeyValue("traces", fmt.Sprintf("%d", len(result.Traces)))
	ux.KeyValue("fitness", fmt.Sprintf("%.4f", result.Fitness))
	ux.KeyValue("missing", fmt.Sprintf("%d", result.Missing))
	ux.KeyValue("remaining", fmt.Sprintf("%d", result.Remaining))

	// Call out the worst-fitting traces so deviations are easy to chase.
	worst := 0
	for i, tr := range result.Traces {
		if tr.Fitness >= 1 {
			continue
		}
		if worst == 5 {
			ux.Muted("...")
			break
		}
		worst++
		caseID := ""
		if i < len(log.Traces) {
			caseID = log.Traces[i].CaseID
		}
		ux.Warning(fmt.Sprintf("case %s: fitness %.4f (missing %d, remaining %d)",
			caseID, tr.Fitness, tr.Missing, tr.Remaining))
	}
	if worst == 0 {
		ux.Success("all traces replay perfectly")
	}
}
