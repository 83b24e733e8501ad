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

import "errors"

// Sentinel errors for graph building.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	// Once Freeze() is called the graph is read-only and shareable.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrEdgeNotFound is returned when an operation references an edge the
	// graph never observed.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrNilLog is returned when Build is handed a nil log.
	ErrNilLog = errors.New("nil event log")
)
