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
	"math"
	"sort"
	"time"
)

// DefaultQuantiles are the quantiles Annotate estimates when none are
// configured.
var DefaultQuantiles = []float64{0.5, 0.95}

// Quantile is one estimated quantile of an edge's duration samples.
type Quantile struct {
	Q     float64       `json:"q"`
	Value time.Duration `json:"value"`
}

// EdgeStats summarizes the duration samples of one edge.
//
// Variance is the population variance; a single-sample or empty edge has
// variance zero, never an error. All values come from a single pass over
// the samples: Welford accumulation for the moments and a P-squared
// estimator per quantile, so working memory does not grow with the sample
// count.
type EdgeStats struct {
	Count     int           `json:"count"`
	Mean      time.Duration `json:"mean"`
	StdDev    time.Duration `json:"std_dev"`
	Min       time.Duration `json:"min"`
	Max       time.Duration `json:"max"`
	Quantiles []Quantile    `json:"quantiles,omitempty"`
}

// Annotate computes EdgeStats for every edge of the graph in place and
// returns the graph for chaining. Quantiles defaults to DefaultQuantiles.
// The graph may be frozen; Stats pointers are annotation, not structure.
func Annotate(g *Graph, quantiles ...float64) *Graph {
	qs := quantiles
	if len(qs) == 0 {
		qs = DefaultQuantiles
	}
	for _, e := range g.Edges() {
		e.Stats = summarize(e.Durations, qs)
	}
	return g
}

// summarize runs the streaming accumulators over one sample list.
func summarize(samples []time.Duration, quantiles []float64) *EdgeStats {
	stats := &EdgeStats{}
	if len(samples) == 0 {
		return stats
	}

	estimators := make([]*p2Estimator, len(quantiles))
	for i, q := range quantiles {
		estimators[i] = newP2Estimator(q)
	}

	// Welford's online algorithm for mean and variance.
	var mean, m2 float64
	minV, maxV := samples[0], samples[0]
	for i, d := range samples {
		x := float64(d)
		delta := x - mean
		mean += delta / float64(i+1)
		m2 += delta * (x - mean)
		if d < minV {
			minV = d
		}
		if d > maxV {
			maxV = d
		}
		for _, est := range estimators {
			est.observe(x)
		}
	}

	n := float64(len(samples))
	stats.Count = len(samples)
	stats.Mean = time.Duration(mean)
	stats.StdDev = time.Duration(math.Sqrt(m2 / n))
	stats.Min = minV
	stats.Max = maxV
	for i, est := range estimators {
		stats.Quantiles = append(stats.Quantiles, Quantile{
			Q:     quantiles[i],
			Value: time.Duration(est.value()),
		})
	}
	return stats
}

// p2Estimator is the P-squared streaming quantile estimator (Jain &
// Chlamtac). It keeps five markers whose heights approximate the target
// quantile, so memory use is constant regardless of sample count. Below
// five observations it falls back to the exact order statistic.
type p2Estimator struct {
	q       float64
	count   int
	heights [5]float64
	pos     [5]float64 // marker positions, 1-based
	want    [5]float64 // desired marker positions
	incr    [5]float64 // desired position increments
	initial []float64  // first observations, until five arrive
}

func newP2Estimator(q float64) *p2Estimator {
	return &p2Estimator{
		q:       q,
		incr:    [5]float64{0, q / 2, q, (1 + q) / 2, 1},
		initial: make([]float64, 0, 5),
	}
}

func (p *p2Estimator) observe(x float64) {
	p.count++
	if p.count <= 5 {
		p.initial = append(p.initial, x)
		if p.count == 5 {
			sort.Float64s(p.initial)
			copy(p.heights[:], p.initial)
			p.pos = [5]float64{1, 2, 3, 4, 5}
			p.want = [5]float64{1, 1 + 2*p.q, 1 + 4*p.q, 3 + 2*p.q, 5}
		}
		return
	}

	// Find the cell the observation falls into, adjusting extremes.
	var k int
	switch {
	case x < p.heights[0]:
		p.heights[0] = x
		k = 0
	case x >= p.heights[4]:
		p.heights[4] = x
		k = 3
	default:
		for k = 0; k < 4; k++ {
			if x < p.heights[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		p.pos[i]++
	}
	for i := 0; i < 5; i++ {
		p.want[i] += p.incr[i]
	}

	// Adjust the three interior markers toward their desired positions.
	for i := 1; i <= 3; i++ {
		d := p.want[i] - p.pos[i]
		if (d >= 1 && p.pos[i+1]-p.pos[i] > 1) || (d <= -1 && p.pos[i-1]-p.pos[i] < -1) {
			sign := 1.0
			if d < 0 {
				sign = -1.0
			}
			h := p.parabolic(i, sign)
			if p.heights[i-1] < h && h < p.heights[i+1] {
				p.heights[i] = h
			} else {
				p.heights[i] = p.linear(i, sign)
			}
			p.pos[i] += sign
		}
	}
}

// parabolic is the P-squared piecewise-parabolic height prediction.
func (p *p2Estimator) parabolic(i int, d float64) float64 {
	return p.heights[i] + d/(p.pos[i+1]-p.pos[i-1])*(
		(p.pos[i]-p.pos[i-1]+d)*(p.heights[i+1]-p.heights[i])/(p.pos[i+1]-p.pos[i])+
			(p.pos[i+1]-p.pos[i]-d)*(p.heights[i]-p.heights[i-1])/(p.pos[i]-p.pos[i-1]))
}

// linear is the fallback height prediction when the parabola overshoots.
func (p *p2Estimator) linear(i int, d float64) float64 {
	j := i + int(d)
	return p.heights[i] + d*(p.heights[j]-p.heights[i])/(p.pos[j]-p.pos[i])
}

// value returns the current quantile estimate.
func (p *p2Estimator) value() float64 {
	if p.count == 0 {
		return 0
	}
	if p.count <= 5 {
		sorted := append([]float64(nil), p.initial...)
		sort.Float64s(sorted)
		idx := int(math.Ceil(p.q*float64(len(sorted)))) - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}
	return p.heights[2]
}
