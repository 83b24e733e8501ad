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
	"errors"
	"fmt"
)

// Sentinel errors for net assembly.
var (
	// ErrInconsistentGrouping is returned when the discovered relation
	// signals contradict each other: an arc is required inside an
	// AND-group and excluded from it at the same time. Matched with
	// errors.Is; the concrete error is a *GroupingError naming the pair.
	ErrInconsistentGrouping = errors.New("inconsistent AND/XOR grouping")

	// ErrMalformedNet is returned by Restore when serialized net parts
	// are structurally invalid.
	ErrMalformedNet = errors.New("malformed net")

	// ErrNoArcs is returned when the arc set contains no activities.
	ErrNoArcs = errors.New("no activities in accepted arc set")
)

// GroupingError reports the activity pair whose grouping signals conflict.
type GroupingError struct {
	Source string
	Target string
}

// Error implements the error interface.
func (e *GroupingError) Error() string {
	return fmt.Sprintf("inconsistent AND/XOR grouping between %q and %q", e.Source, e.Target)
}

// Unwrap lets errors.Is match ErrInconsistentGrouping.
func (e *GroupingError) Unwrap() error { return ErrInconsistentGrouping }
