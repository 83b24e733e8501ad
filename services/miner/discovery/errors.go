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

import "errors"

// Sentinel errors for discovery runs.
var (
	// ErrInvalidConfig is returned when a threshold is outside its range.
	ErrInvalidConfig = errors.New("invalid discovery config")

	// ErrGraphNotFrozen is returned when Discover is handed a graph that
	// is still building. Discovery reads the graph from multiple angles
	// and relies on the frozen-graph sharing contract.
	ErrGraphNotFrozen = errors.New("graph must be frozen before discovery")
)
