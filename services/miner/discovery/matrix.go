// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"github.com/AleutianAI/ProcessLens/services/miner/dfg"
)

// Matrix is the immutable dependency matrix of a DFG snapshot: for every
// ordered activity pair (a,b) with at least one directly-follows
// observation in either direction,
//
//	dep(a,b) = (count(a->b) - count(b->a)) / (count(a->b) + count(b->a) + 1)
//
// which lands in (-1,1). The count(b->a)=0 convention count/(count+1) is
// this same expression. Synthetic boundary nodes are not part of the
// matrix; boundary arcs are handled separately by the engine.
type Matrix struct {
	activities []string
	dep        map[[2]string]float64
	bestOut    map[string]float64
	bestIn     map[string]float64
}

// NewMatrix computes the dependency matrix from a frozen DFG.
func NewMatrix(g *dfg.Graph) *Matrix {
	m := &Matrix{
		activities: g.Activities(),
		dep:        make(map[[2]string]float64),
		bestOut:    make(map[string]float64),
		bestIn:     make(map[string]float64),
	}
	for _, a := range m.activities {
		for _, e := range g.Outgoing(a) {
			b := e.Target
			if b == dfg.EndActivity || b == a {
				continue
			}
			ab := float64(e.Count)
			ba := float64(g.Count(b, a))
			d := (ab - ba) / (ab + ba + 1)
			m.dep[[2]string{a, b}] = d
			if d > m.bestOut[a] {
				m.bestOut[a] = d
			}
			if d > m.bestIn[b] {
				m.bestIn[b] = d
			}
		}
	}
	return m
}

// Activities returns the activity labels covered by the matrix, sorted.
func (m *Matrix) Activities() []string { return m.activities }

// Dependency returns dep(a,b); zero when neither direction was observed.
func (m *Matrix) Dependency(a, b string) float64 {
	if d, ok := m.dep[[2]string{a, b}]; ok {
		return d
	}
	// Only the observed direction is stored; derive the reverse by
	// antisymmetry so callers can probe either orientation.
	if d, ok := m.dep[[2]string{b, a}]; ok {
		return -d
	}
	return 0
}

// BestOutgoing returns the strongest positive outgoing dependency of a,
// zero if none.
func (m *Matrix) BestOutgoing(a string) float64 { return m.bestOut[a] }

// BestIncoming returns the strongest positive incoming dependency of b,
// zero if none.
func (m *Matrix) BestIncoming(b string) float64 { return m.bestIn[b] }
