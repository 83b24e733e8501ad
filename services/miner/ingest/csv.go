// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest reads event logs from files: a CSV reader for the
// case/activity/timestamp column layout, a JSON-lines reader for one event
// per line, and a file watcher that re-reads a log on change.
//
// Both readers produce cases for the validating eventlog builder; neither
// requires events to be pre-sorted, and case rows may interleave freely.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/ProcessLens/services/miner/eventlog"
)

// Required CSV column names, matched case-insensitively.
const (
	columnCase      = "case"
	columnActivity  = "activity"
	columnTimestamp = "timestamp"
)

// ReadCSV parses a CSV event stream into cases.
//
// Description:
//
//	The header row must contain "case", "activity", and "timestamp"
//	columns (any order, case-insensitive). Every other column becomes an
//	event attribute keyed by its header name. Timestamps are RFC 3339 or
//	unix epoch milliseconds; attribute values are typed by shape
//	(number, bool, RFC 3339 timestamp, else string). Empty attribute
//	cells are skipped.
//
//	Rows may interleave across cases. Cases are returned in first-seen
//	order with their events in row order; the eventlog builder handles
//	timestamp sorting.
//
// Outputs:
//
//	[]eventlog.Case - Parsed cases.
//	error - ErrMissingHeader, ErrEmptyInput, or ErrMalformedRecord with
//	the offending line number.
func ReadCSV(r io.Reader) ([]eventlog.Case, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	caseIdx, actIdx, tsIdx := -1, -1, -1
	attrIdx := make(map[int]string)
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case columnCase:
			caseIdx = i
		case columnActivity:
			actIdx = i
		case columnTimestamp:
			tsIdx = i
		default:
			attrIdx[i] = strings.TrimSpace(name)
		}
	}
	if caseIdx < 0 || actIdx < 0 || tsIdx < 0 {
		return nil, fmt.Errorf("%w: need %q, %q, and %q", ErrMissingHeader,
			columnCase, columnActivity, columnTimestamp)
	}

	var (
		byCase  = make(map[string]int)
		cases   []eventlog.Case
		lineNum = 1
	)
	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, lineNum, err)
		}

		caseID := strings.TrimSpace(record[caseIdx])
		activity := strings.TrimSpace(record[actIdx])
		if caseID == "" || activity == "" {
			return nil, fmt.Errorf("%w: line %d: empty case or activity", ErrMalformedRecord, lineNum)
		}
		ts, err := parseTimestamp(record[tsIdx])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, lineNum, err)
		}

		ev := eventlog.Event{Activity: activity, Timestamp: ts}
		for i, key := range attrIdx {
			if i >= len(record) {
				continue
			}
			raw := strings.TrimSpace(record[i])
			if raw == "" {
				continue
			}
			if ev.Attributes == nil {
				ev.Attributes = make(map[string]eventlog.AttrValue)
			}
			ev.Attributes[key] = parseAttr(raw)
		}

		idx, ok := byCase[caseID]
		if !ok {
			idx = len(cases)
			byCase[caseID] = idx
			cases = append(cases, eventlog.Case{ID: caseID})
		}
		cases[idx].Events = append(cases[idx].Events, ev)
	}

	if len(cases) == 0 {
		return nil, ErrEmptyInput
	}
	return cases, nil
}

// ReadFile reads a log file, choosing the reader by extension: .csv for
// CSV, .jsonl or .ndjson for JSON lines.
func ReadFile(path string) ([]eventlog.Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f)
	case ".jsonl", ".ndjson":
		return ReadJSONL(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// ReadLogFile reads and validates a log file in one step.
func ReadLogFile(path string) (*eventlog.Log, error) {
	cases, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return eventlog.NewLog(cases)
}

// parseTimestamp accepts RFC 3339 (with or without sub-second precision)
// or unix epoch milliseconds.
func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}

// parseAttr types a raw cell by shape. Order matters: "1e3" is a number,
// not a string, and "true" is a bool before it is a string.
func parseAttr(raw string) eventlog.AttrValue {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return eventlog.NumberAttr(n)
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return eventlog.BoolAttr(b)
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return eventlog.TimestampAttr(ts)
	}
	return eventlog.StringAttr(raw)
}
