// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package miner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AleutianAI/ProcessLens/services/miner/eventlog"
)

// chainCases builds n identical single-chain cases.
func chainCases(sequence []string, n int) []eventlog.Case {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	cases := make([]eventlog.Case, 0, n)
	for i := 0; i < n; i++ {
		c := eventlog.Case{ID: fmt.Sprintf("c%03d", i)}
		for j, act := range sequence {
			c.Events = append(c.Events, eventlog.Event{
				Activity:  act,
				Timestamp: base.Add(time.Duration(j) * time.Minute),
			})
		}
		cases = append(cases, c)
	}
	return cases
}

// Each pipeline stage records its own span under the global tracer
// provider, named miner.dfg, miner.discovery, and miner.replay.
func TestService_PipelineSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx := context.Background()
	svc := NewService(DefaultServiceConfig())

	summary, err := svc.IngestLog(ctx, "spans", chainCases([]string{"A", "B", "C"}, 5))
	if err != nil {
		t.Fatalf("IngestLog: %v", err)
	}
	if _, err := svc.BuildDFG(ctx, summary.ID, 0, nil); err != nil {
		t.Fatalf("BuildDFG: %v", err)
	}
	model, err := svc.DiscoverModel(ctx, summary.ID, nil, 0)
	if err != nil {
		t.Fatalf("DiscoverModel: %v", err)
	}
	if _, err := svc.ReplayLog(ctx, summary.ID, model.ModelID, 0); err != nil {
		t.Fatalf("ReplayLog: %v", err)
	}

	names := make(map[string]int)
	for _, span := range recorder.Ended() {
		names[span.Name()]++
	}
	// DiscoverModel extracts its graph inside the miner.discovery span,
	// so miner.dfg is recorded by BuildDFG alone.
	want := map[string]int{"miner.dfg": 1, "miner.discovery": 1, "miner.replay": 1}
	for name, count := range want {
		if names[name] != count {
			t.Errorf("span %q recorded %d times, want %d (all: %v)", name, names[name], count, names)
		}
	}
}
