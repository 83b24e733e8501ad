// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package eventlog holds the in-memory event log model: events with typed
// attribute bags, traces grouped by case, and the log itself.
//
// # Ownership Model
//
// A Log built by NewLog owns its traces and events. Fields are exported for
// cheap traversal by the mining stages, but callers MUST treat a built log
// as read-only:
//   - Events are never mutated after NewLog returns
//   - Traces keep their events sorted by timestamp (stable on ties)
//   - The log is safe to share by reference across worker goroutines
//
// # Invariants
//
// Every event's CaseID matches its owning trace, traces are non-empty, and
// trace order is case discovery order. NewLog rejects violations with
// ErrInvalidTrace instead of repairing them.
package eventlog

import (
	"fmt"
	"sort"
	"time"
)

// Event is a single activity execution: what happened, when, and for which
// case, plus an open attribute bag.
type Event struct {
	// Activity is the activity label. Never empty in a built log.
	Activity string

	// Timestamp orders the event within its trace.
	Timestamp time.Time

	// CaseID names the case the event belongs to.
	CaseID string

	// Attributes is the open bag of typed event attributes. May be nil.
	Attributes map[string]AttrValue
}

// Trace is the ordered sequence of events belonging to one case.
type Trace struct {
	// CaseID is the shared case identifier of all events in the trace.
	CaseID string

	// Events are sorted by timestamp; ties keep original submission order.
	Events []Event
}

// Case is the externally-parsed input to NewLog: a case ID plus its events
// in the order the source format delivered them.
type Case struct {
	ID     string
	Events []Event
}

// Log is an ordered collection of traces plus log-level attributes.
type Log struct {
	// Traces are in case discovery order.
	Traces []Trace

	// Attributes are log-level attributes (source name, import time, ...).
	Attributes map[string]AttrValue
}

// Option configures NewLog.
type Option func(*Log)

// WithAttribute attaches a log-level attribute.
func WithAttribute(key string, value AttrValue) Option {
	return func(l *Log) {
		if l.Attributes == nil {
			l.Attributes = make(map[string]AttrValue)
		}
		l.Attributes[key] = value
	}
}

// NewLog builds an immutable event log from externally-parsed cases.
//
// Description:
//
//	Validates each case, stamps every event with its case ID, and sorts
//	each trace by timestamp with a stable sort so events sharing a
//	timestamp keep the order the parser delivered them in.
//
// Inputs:
//
//	cases - Parsed case data. Order is preserved as trace order.
//	opts - Optional log-level attributes.
//
// Outputs:
//
//	*Log - The built log, read-only from here on.
//	error - ErrInvalidTrace (wrapped with the case ID) for an empty case,
//	        an event with an empty activity label, or an event whose CaseID
//	        is set and differs from the owning case. ErrDuplicateCase when
//	        two cases share an ID.
func NewLog(cases []Case, opts ...Option) (*Log, error) {
	log := &Log{Traces: make([]Trace, 0, len(cases))}
	for _, opt := range opts {
		opt(log)
	}

	seen := make(map[string]struct{}, len(cases))
	for _, c := range cases {
		if len(c.Events) == 0 {
			return nil, fmt.Errorf("case %q: %w: no events", c.ID, ErrInvalidTrace)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("case %q: %w", c.ID, ErrDuplicateCase)
		}
		seen[c.ID] = struct{}{}

		events := make([]Event, len(c.Events))
		copy(events, c.Events)
		for i := range events {
			if events[i].Activity == "" {
				return nil, fmt.Errorf("case %q: event %d: %w: empty activity label", c.ID, i, ErrInvalidTrace)
			}
			if events[i].CaseID == "" {
				events[i].CaseID = c.ID
			} else if events[i].CaseID != c.ID {
				return nil, fmt.Errorf("case %q: event %d has case ID %q: %w", c.ID, i, events[i].CaseID, ErrInvalidTrace)
			}
		}
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Timestamp.Before(events[j].Timestamp)
		})

		log.Traces = append(log.Traces, Trace{CaseID: c.ID, Events: events})
	}
	return log, nil
}

// EventCount returns the total number of events across all traces.
func (l *Log) EventCount() int {
	n := 0
	for i := range l.Traces {
		n += len(l.Traces[i].Events)
	}
	return n
}

// Activities returns the distinct activity labels of the log in lexical
// order.
func (l *Log) Activities() []string {
	set := make(map[string]struct{})
	for i := range l.Traces {
		for j := range l.Traces[i].Events {
			set[l.Traces[i].Events[j].Activity] = struct{}{}
		}
	}
	labels := make([]string, 0, len(set))
	for label := range set {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
