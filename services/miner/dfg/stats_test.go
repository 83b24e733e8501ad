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
	"context"
	"math"
	"testing"
	"time"
)

func TestSummarize_Moments(t *testing.T) {
	samples := []time.Duration{
		2 * time.Second, 4 * time.Second, 4 * time.Second,
		4 * time.Second, 5 * time.Second, 5 * time.Second,
		7 * time.Second, 9 * time.Second,
	}
	stats := summarize(samples, nil)

	if stats.Count != 8 {
		t.Errorf("Count = %d, want 8", stats.Count)
	}
	if stats.Mean != 5*time.Second {
		t.Errorf("Mean = %v, want 5s", stats.Mean)
	}
	// Population std dev of the classic example set is exactly 2.
	if got := stats.StdDev.Seconds(); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("StdDev = %vs, want 2s", got)
	}
	if stats.Min != 2*time.Second || stats.Max != 9*time.Second {
		t.Errorf("Min/Max = %v/%v, want 2s/9s", stats.Min, stats.Max)
	}
}

func TestSummarize_SingleSample(t *testing.T) {
	stats := summarize([]time.Duration{3 * time.Second}, []float64{0.5})
	if stats.Count != 1 {
		t.Errorf("Count = %d, want 1", stats.Count)
	}
	if stats.StdDev != 0 {
		t.Errorf("single sample variance must be 0, got std dev %v", stats.StdDev)
	}
	if stats.Mean != 3*time.Second {
		t.Errorf("Mean = %v, want 3s", stats.Mean)
	}
	if len(stats.Quantiles) != 1 || stats.Quantiles[0].Value != 3*time.Second {
		t.Errorf("median of one sample should be the sample, got %+v", stats.Quantiles)
	}
}

func TestSummarize_ZeroDurations(t *testing.T) {
	stats := summarize([]time.Duration{0, 0, 0}, nil)
	if stats.Mean != 0 || stats.StdDev != 0 {
		t.Errorf("zero-duration samples should give zero stats, got %+v", stats)
	}
}

func TestSummarize_EmptyEdge(t *testing.T) {
	stats := summarize(nil, nil)
	if stats.Count != 0 || stats.StdDev != 0 {
		t.Errorf("empty edge should give zero stats, got %+v", stats)
	}
}

func TestP2Estimator_ApproximatesExactQuantiles(t *testing.T) {
	// 1..1000 seconds in a deterministic shuffled order.
	n := 1000
	samples := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		v := (i*613)%n + 1 // 613 is coprime with 1000, so this is a permutation
		samples = append(samples, time.Duration(v)*time.Second)
	}

	stats := summarize(samples, []float64{0.5, 0.95})
	median := stats.Quantiles[0].Value.Seconds()
	p95 := stats.Quantiles[1].Value.Seconds()

	// P-squared is an estimator; allow a small relative error.
	if math.Abs(median-500) > 25 {
		t.Errorf("median estimate = %v, want ~500", median)
	}
	if math.Abs(p95-950) > 25 {
		t.Errorf("p95 estimate = %v, want ~950", p95)
	}
}

func TestAnnotate_PopulatesEdgeStats(t *testing.T) {
	log := testLog(t, []string{"A", "B", "C"}, []string{"A", "B"})
	g, err := Build(context.Background(), log)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	Annotate(g)

	for _, e := range g.Edges() {
		if e.Stats == nil {
			t.Fatalf("edge %s->%s has no stats", e.Source, e.Target)
		}
		if e.Stats.Count != len(e.Durations) {
			t.Errorf("edge %s->%s stats count %d != sample count %d",
				e.Source, e.Target, e.Stats.Count, len(e.Durations))
		}
	}
	ab, _ := g.Edge("A", "B")
	if ab.Stats.Mean != time.Minute {
		t.Errorf("A->B mean = %v, want 1m", ab.Stats.Mean)
	}
}
