// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package miner

import "errors"

// Sentinel errors for the miner service.
var (
	// ErrLogNotFound indicates the referenced event log does not exist.
	ErrLogNotFound = errors.New("event log not found")

	// ErrModelNotFound indicates the referenced model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrPipelineTimeout indicates a pipeline stage exceeded the
	// configured duration limit.
	ErrPipelineTimeout = errors.New("pipeline timed out")
)
