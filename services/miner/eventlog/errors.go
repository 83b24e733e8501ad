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

import "errors"

// Sentinel errors for log construction.
var (
	// ErrInvalidTrace is returned when a case has no events or contains an
	// event whose case ID does not match its owning case. Invalid traces
	// are rejected before any graph work happens.
	ErrInvalidTrace = errors.New("invalid trace")

	// ErrDuplicateCase is returned when two cases share the same case ID.
	ErrDuplicateCase = errors.New("duplicate case ID")
)
