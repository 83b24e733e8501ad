// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eventlog

import (
	"encoding/json"
	"fmt"
	"time"
)

// AttrKind identifies the concrete type held by an AttrValue.
type AttrKind int

const (
	// AttrString holds a string value.
	AttrString AttrKind = iota

	// AttrNumber holds a float64 value.
	AttrNumber

	// AttrTimestamp holds a time.Time value.
	AttrTimestamp

	// AttrBool holds a boolean value.
	AttrBool
)

// String returns the string representation of the AttrKind.
func (k AttrKind) String() string {
	switch k {
	case AttrString:
		return "string"
	case AttrNumber:
		return "number"
	case AttrTimestamp:
		return "timestamp"
	case AttrBool:
		return "bool"
	default:
		return "unknown"
	}
}

// AttrValue is a closed variant over the four attribute types event logs
// carry: string, number, timestamp, and boolean. The closed set avoids
// reflection on the hot path while keeping attribute bags open-ended at
// the key level.
//
// The zero value is the empty string attribute.
type AttrValue struct {
	kind AttrKind
	str  string
	num  float64
	ts   time.Time
	b    bool
}

// StringAttr returns an AttrValue holding s.
func StringAttr(s string) AttrValue {
	return AttrValue{kind: AttrString, str: s}
}

// NumberAttr returns an AttrValue holding n.
func NumberAttr(n float64) AttrValue {
	return AttrValue{kind: AttrNumber, num: n}
}

// TimestampAttr returns an AttrValue holding t.
func TimestampAttr(t time.Time) AttrValue {
	return AttrValue{kind: AttrTimestamp, ts: t}
}

// BoolAttr returns an AttrValue holding b.
func BoolAttr(b bool) AttrValue {
	return AttrValue{kind: AttrBool, b: b}
}

// Kind returns the variant held by the value.
func (v AttrValue) Kind() AttrKind { return v.kind }

// AsString returns the string value. The second result is false when the
// value holds a different kind.
func (v AttrValue) AsString() (string, bool) {
	return v.str, v.kind == AttrString
}

// AsNumber returns the numeric value. The second result is false when the
// value holds a different kind.
func (v AttrValue) AsNumber() (float64, bool) {
	return v.num, v.kind == AttrNumber
}

// AsTimestamp returns the timestamp value. The second result is false when
// the value holds a different kind.
func (v AttrValue) AsTimestamp() (time.Time, bool) {
	return v.ts, v.kind == AttrTimestamp
}

// AsBool returns the boolean value. The second result is false when the
// value holds a different kind.
func (v AttrValue) AsBool() (bool, bool) {
	return v.b, v.kind == AttrBool
}

// String renders the value for logs and exports.
func (v AttrValue) String() string {
	switch v.kind {
	case AttrString:
		return v.str
	case AttrNumber:
		return fmt.Sprintf("%g", v.num)
	case AttrTimestamp:
		return v.ts.Format(time.RFC3339Nano)
	case AttrBool:
		return fmt.Sprintf("%t", v.b)
	default:
		return ""
	}
}

// attrJSON is the wire form of an AttrValue.
type attrJSON struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value as {"kind": ..., "value": ...}.
func (v AttrValue) MarshalJSON() ([]byte, error) {
	var raw []byte
	var err error
	switch v.kind {
	case AttrString:
		raw, err = json.Marshal(v.str)
	case AttrNumber:
		raw, err = json.Marshal(v.num)
	case AttrTimestamp:
		raw, err = json.Marshal(v.ts.Format(time.RFC3339Nano))
	case AttrBool:
		raw, err = json.Marshal(v.b)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(attrJSON{Kind: v.kind.String(), Value: raw})
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (v *AttrValue) UnmarshalJSON(data []byte) error {
	var aj attrJSON
	if err := json.Unmarshal(data, &aj); err != nil {
		return err
	}
	switch aj.Kind {
	case "string":
		var s string
		if err := json.Unmarshal(aj.Value, &s); err != nil {
			return err
		}
		*v = StringAttr(s)
	case "number":
		var n float64
		if err := json.Unmarshal(aj.Value, &n); err != nil {
			return err
		}
		*v = NumberAttr(n)
	case "timestamp":
		var s string
		if err := json.Unmarshal(aj.Value, &s); err != nil {
			return err
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp attribute: %w", err)
		}
		*v = TimestampAttr(ts)
	case "bool":
		var b bool
		if err := json.Unmarshal(aj.Value, &b); err != nil {
			return err
		}
		*v = BoolAttr(b)
	default:
		return fmt.Errorf("unknown attribute kind %q", aj.Kind)
	}
	return nil
}
