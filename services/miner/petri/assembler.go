// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package petri

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/ProcessLens/services/miner/dfg"
	"github.com/AleutianAI/ProcessLens/services/miner/discovery"
)

// group is one split/join group of a transition: either a set of mutually
// concurrent siblings (AND) or the pool of mutually exclusive ones (XOR).
type group struct {
	and     bool
	members []string // sorted
}

func (g *group) id() string {
	kind := "xor"
	if g.and {
		kind = "and"
	}
	return kind + "[" + strings.Join(g.members, ",") + "]"
}

// Assemble converts an accepted arc set into a place/transition net.
//
// Description:
//
//	One transition per activity label. Per transition, outgoing forward
//	arcs are partitioned into AND-groups (maximal sets of mutually
//	concurrent siblings) and one XOR-group holding everything else; the
//	partitioning is mirrored on the input side. Each group materializes
//	as one place: an XOR place routes a single token to one of its
//	alternatives, an AND joint place carries one token per member (the
//	split produces |group| tokens, the join consumes |group|). When an
//	arc sits in multi-member groups on both sides the groups must agree
//	in kind and span a full cartesian block of accepted arcs, which then
//	shares a single place; anything else is contradictory and fails with
//	a *GroupingError naming the arc's activities.
//
//	Loop arcs become back-edge places registered as alternative inputs
//	of the loop's start transition, so a loop iteration does not require
//	the forward path to complete again.
//
//	Every accepted arc maps to exactly one place-mediated path; none are
//	dropped. Start/End boundary arcs wire the distinguished source and
//	sink places.
//
// Outputs:
//
//	*Net - The frozen net.
//	error - ErrNoArcs or a *GroupingError (ErrInconsistentGrouping).
func Assemble(res *discovery.Result) (*Net, error) {
	activities := collectActivities(res)
	if len(activities) == 0 {
		return nil, ErrNoArcs
	}

	n := &Net{transIndex: make(map[string]int, len(activities))}
	for i, label := range activities {
		n.transitions = append(n.transitions, Transition{Label: label})
		n.transIndex[label] = i
	}
	placeIndex := make(map[string]int)
	addPlace := func(id string) int {
		if i, ok := placeIndex[id]; ok {
			return i
		}
		i := len(n.places)
		n.places = append(n.places, Place{ID: id})
		placeIndex[id] = i
		return i
	}
	n.source = addPlace("source")
	n.sink = addPlace("sink")

	// Split accepted arcs by role.
	var forward []discovery.Arc
	for _, a := range res.Arcs {
		switch {
		case a.Source == dfg.StartActivity:
			t := &n.transitions[n.transIndex[a.Target]]
			t.Inputs = append(t.Inputs, Arc{Place: n.source, Weight: 1})
		case a.Target == dfg.EndActivity:
			t := &n.transitions[n.transIndex[a.Source]]
			t.Outputs = append(t.Outputs, Arc{Place: n.sink, Weight: 1})
		case a.Kind == discovery.KindLoop:
			p := addPlace(fmt.Sprintf("loop:%s->%s", a.Source, a.Target))
			src := &n.transitions[n.transIndex[a.Source]]
			src.Outputs = append(src.Outputs, Arc{Place: p, Weight: 1})
			dst := &n.transitions[n.transIndex[a.Target]]
			dst.LoopInputs = append(dst.LoopInputs, Arc{Place: p, Weight: 1})
		default:
			forward = append(forward, a)
		}
	}

	outGroups, err := buildGroups(forward, res, true)
	if err != nil {
		return nil, err
	}
	inGroups, err := buildGroups(forward, res, false)
	if err != nil {
		return nil, err
	}

	arcSet := make(map[[2]string]bool, len(forward))
	for _, a := range forward {
		arcSet[[2]string{a.Source, a.Target}] = true
	}

	handled := make(map[[2]string]bool, len(forward))
	for _, a := range forward {
		key := [2]string{a.Source, a.Target}
		if handled[key] {
			continue
		}
		og := outGroups[a.Source][a.Target]
		ig := inGroups[a.Target][a.Source]

		switch {
		case len(og.members) > 1 && len(ig.members) > 1:
			if og.and != ig.and || !isRectangle(og, ig, arcSet, outGroups, inGroups) {
				return nil, &GroupingError{Source: a.Source, Target: a.Target}
			}
			p := addPlace(fmt.Sprintf("rect:[%s]->[%s]:%s",
				strings.Join(ig.members, ","), strings.Join(og.members, ","), ig.id()))
			produce := groupWeight(og)
			consume := groupWeight(ig)
			for _, s := range ig.members {
				t := &n.transitions[n.transIndex[s]]
				t.Outputs = append(t.Outputs, Arc{Place: p, Weight: produce})
			}
			for _, d := range og.members {
				t := &n.transitions[n.transIndex[d]]
				t.Inputs = append(t.Inputs, Arc{Place: p, Weight: consume})
			}
			for _, s := range ig.members {
				for _, d := range og.members {
					handled[[2]string{s, d}] = true
				}
			}

		case len(og.members) > 1:
			p := addPlace(fmt.Sprintf("split:%s:%s", a.Source, og.id()))
			t := &n.transitions[n.transIndex[a.Source]]
			t.Outputs = append(t.Outputs, Arc{Place: p, Weight: groupWeight(og)})
			for _, d := range og.members {
				dt := &n.transitions[n.transIndex[d]]
				dt.Inputs = append(dt.Inputs, Arc{Place: p, Weight: 1})
				handled[[2]string{a.Source, d}] = true
			}

		case len(ig.members) > 1:
			p := addPlace(fmt.Sprintf("join:%s:%s", a.Target, ig.id()))
			for _, s := range ig.members {
				st := &n.transitions[n.transIndex[s]]
				st.Outputs = append(st.Outputs, Arc{Place: p, Weight: 1})
				handled[[2]string{s, a.Target}] = true
			}
			t := &n.transitions[n.transIndex[a.Target]]
			t.Inputs = append(t.Inputs, Arc{Place: p, Weight: groupWeight(ig)})

		default:
			p := addPlace(fmt.Sprintf("seq:%s->%s", a.Source, a.Target))
			st := &n.transitions[n.transIndex[a.Source]]
			st.Outputs = append(st.Outputs, Arc{Place: p, Weight: 1})
			dt := &n.transitions[n.transIndex[a.Target]]
			dt.Inputs = append(dt.Inputs, Arc{Place: p, Weight: 1})
			handled[key] = true
		}
	}

	n.sortArcs()
	return n, nil
}

// groupWeight is the token weight an AND group carries: one per member.
func groupWeight(g *group) int64 {
	if g.and {
		return int64(len(g.members))
	}
	return 1
}

// collectActivities lists the non-synthetic labels of the arc set, sorted.
func collectActivities(res *discovery.Result) []string {
	set := make(map[string]struct{})
	for _, a := range res.Arcs {
		if a.Source != dfg.StartActivity {
			set[a.Source] = struct{}{}
		}
		if a.Target != dfg.EndActivity {
			set[a.Target] = struct{}{}
		}
	}
	labels := make([]string, 0, len(set))
	for l := range set {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// buildGroups partitions, per transition, the neighbor set on one side of
// its forward arcs. outgoing selects the output side (neighbors = targets)
// versus the input side (neighbors = sources).
//
// Neighbors split into maximal components of the concurrency relation;
// every component must be a clique (a member concurrent with some but not
// all of a component means an arc is both required in an AND-group and
// excluded from it). Components of size one pool into a single XOR group.
func buildGroups(forward []discovery.Arc, res *discovery.Result, outgoing bool) (map[string]map[string]*group, error) {
	neighbors := make(map[string][]string)
	for _, a := range forward {
		if outgoing {
			neighbors[a.Source] = append(neighbors[a.Source], a.Target)
		} else {
			neighbors[a.Target] = append(neighbors[a.Target], a.Source)
		}
	}

	groups := make(map[string]map[string]*group, len(neighbors))
	owners := make([]string, 0, len(neighbors))
	for owner := range neighbors {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	for _, owner := range owners {
		ns := dedupeSorted(neighbors[owner])
		byMember := make(map[string]*group, len(ns))

		assigned := make(map[string]bool, len(ns))
		var xorPool []string
		for _, m := range ns {
			if assigned[m] {
				continue
			}
			// Component of the concurrency relation containing m.
			component := []string{m}
			assigned[m] = true
			for i := 0; i < len(component); i++ {
				for _, other := range ns {
					if !assigned[other] && res.Concurrent(component[i], other) {
						component = append(component, other)
						assigned[other] = true
					}
				}
			}
			if len(component) == 1 {
				xorPool = append(xorPool, m)
				continue
			}
			sort.Strings(component)
			for i := 0; i < len(component); i++ {
				for j := i + 1; j < len(component); j++ {
					if !res.Concurrent(component[i], component[j]) {
						return nil, &GroupingError{Source: component[i], Target: component[j]}
					}
				}
			}
			g := &group{and: true, members: component}
			for _, cm := range component {
				byMember[cm] = g
			}
		}
		if len(xorPool) > 0 {
			sort.Strings(xorPool)
			g := &group{members: xorPool}
			for _, cm := range xorPool {
				byMember[cm] = g
			}
		}
		groups[owner] = byMember
	}
	return groups, nil
}

// isRectangle reports whether the source group and target group span a
// full cartesian block of accepted arcs with matching group structure on
// every corner, which is the only configuration where both sides may
// legally share one place.
func isRectangle(og, ig *group, arcSet map[[2]string]bool,
	outGroups, inGroups map[string]map[string]*group) bool {
	for _, s := range ig.members {
		for _, d := range og.members {
			if !arcSet[[2]string{s, d}] {
				return false
			}
			if !sameMembers(outGroups[s][d], og) || !sameMembers(inGroups[d][s], ig) {
				return false
			}
		}
	}
	return true
}

func sameMembers(a, b *group) bool {
	if a == nil || b == nil || a.and != b.and || len(a.members) != len(b.members) {
		return false
	}
	for i := range a.members {
		if a.members[i] != b.members[i] {
			return false
		}
	}
	return true
}

func dedupeSorted(in []string) []string {
	sort.Strings(in)
	out := in[:0]
	for i, v := range in {
		if i == 0 || v != in[i-1] {
			out = append(out, v)
		}
	}
	return out
}
