// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/ProcessLens/services/miner/eventlog"
)

// jsonlEvent is one JSON-lines record.
type jsonlEvent struct {
	Case       string            `json:"case"`
	Activity   string            `json:"activity"`
	Timestamp  string            `json:"timestamp"`
	Attributes map[string]string `json:"attributes"`
}

// ReadJSONL parses a JSON-lines event stream into cases.
//
// Description:
//
//	Each non-blank line is one event object with "case", "activity", and
//	"timestamp" fields plus an optional string-valued "attributes" map.
//	Timestamps follow the CSV reader's rules (RFC 3339 or unix
//	milliseconds) and attribute values are typed by shape the same way.
//
// Outputs:
//
//	[]eventlog.Case - Parsed cases in first-seen order.
//	error - ErrEmptyInput or ErrMalformedRecord with the line number.
func ReadJSONL(r io.Reader) ([]eventlog.Case, error) {
	var (
		byCase  = make(map[string]int)
		cases   []eventlog.Case
		lineNum int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var raw jsonlEvent
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, lineNum, err)
		}
		if raw.Case == "" || raw.Activity == "" {
			return nil, fmt.Errorf("%w: line %d: empty case or activity", ErrMalformedRecord, lineNum)
		}
		ts, err := parseTimestamp(raw.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, lineNum, err)
		}

		ev := eventlog.Event{Activity: raw.Activity, Timestamp: ts}
		for key, val := range raw.Attributes {
			if ev.Attributes == nil {
				ev.Attributes = make(map[string]eventlog.AttrValue, len(raw.Attributes))
			}
			ev.Attributes[key] = parseAttr(val)
		}

		idx, ok := byCase[raw.Case]
		if !ok {
			idx = len(cases)
			byCase[raw.Case] = idx
			cases = append(cases, eventlog.Case{ID: raw.Case})
		}
		cases[idx].Events = append(cases[idx].Events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}

	if len(cases) == 0 {
		return nil, ErrEmptyInput
	}
	return cases, nil
}
