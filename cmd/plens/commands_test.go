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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/ProcessLens/pkg/ux"
)

func init() {
	ux.SetPlainMode(true)
}

// writeChainCSV writes a log of n identical A->B->C cases and returns its
// path.
func writeChainCSV(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("case,activity,timestamp\n")
	for i := 0; i < n; i++ {
		for j, act := range []string{"A", "B", "C"} {
			fmt.Fprintf(&b, "c%d,%s,2025-03-01T09:%02d:00Z\n", i, act, j)
		}
	}
	path := filepath.Join(t.TempDir(), "chain.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

// resetFlags restores the command globals mutated by flag parsing so
// tests stay independent.
func resetFlags() {
	configPath = ""
	outPath = ""
	outFormat = "summary"
	depThreshold = -1
	andThreshold = -1
	loopThreshold = -1
	rescueMargin = -1
	referencePath = ""
	workerCount = 0
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	t.Cleanup(resetFlags)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestDFGCommand_JSONOutput(t *testing.T) {
	logPath := writeChainCSV(t, 10)
	outFile := filepath.Join(t.TempDir(), "graph.json")

	if err := execute(t, "dfg", logPath, "--format", "json", "-o", outFile); err != nil {
		t.Fatalf("dfg command failed: %v", err)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var view graphJSON
	if err := json.Unmarshal(data, &view); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(view.Nodes) != 5 {
		t.Errorf("expected 5 nodes (3 activities + boundaries), got %d", len(view.Nodes))
	}
	if len(view.Edges) != 4 {
		t.Errorf("expected 4 edges, got %d", len(view.Edges))
	}
	for _, e := range view.Edges {
		if e.Count != 10 {
			t.Errorf("edge %s->%s count = %d, want 10", e.Source, e.Target, e.Count)
		}
	}
}

func TestDiscoverCommand_DOTOutput(t *testing.T) {
	logPath := writeChainCSV(t, 10)
	outFile := filepath.Join(t.TempDir(), "model.dot")

	if err := execute(t, "discover", logPath, "--format", "dot", "-o", outFile); err != nil {
		t.Fatalf("discover command failed: %v", err)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	dot := string(data)
	if !strings.HasPrefix(dot, "digraph") {
		t.Errorf("expected DOT digraph output, got %q", dot[:min(40, len(dot))])
	}
	for _, label := range []string{"A", "B", "C"} {
		if !strings.Contains(dot, fmt.Sprintf("%q", label)) {
			t.Errorf("transition %s missing from DOT output", label)
		}
	}
}

func TestDiscoverCommand_InvalidThreshold(t *testing.T) {
	logPath := writeChainCSV(t, 2)

	if err := execute(t, "discover", logPath, "--threshold", "1.5"); err == nil {
		t.Fatal("expected error for threshold outside [0,1]")
	}
}

func TestReplayCommand_SelfFitness(t *testing.T) {
	logPath := writeChainCSV(t, 10)

	// A log always fits the model discovered from itself.
	if err := execute(t, "replay", logPath); err != nil {
		t.Fatalf("replay command failed: %v", err)
	}
}

func TestReplayCommand_Reference(t *testing.T) {
	logPath := writeChainCSV(t, 5)
	refPath := writeChainCSV(t, 10)

	if err := execute(t, "replay", logPath, "--reference", refPath); err != nil {
		t.Fatalf("replay with reference failed: %v", err)
	}
}

func TestReplayCommand_MissingFile(t *testing.T) {
	if err := execute(t, "replay", filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Fatal("expected error for missing log file")
	}
}
