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

import "errors"

var (
	// ErrMissingHeader is returned when a CSV input lacks the required
	// case, activity, and timestamp columns.
	ErrMissingHeader = errors.New("missing required header columns")

	// ErrMalformedRecord is returned when a record cannot be parsed into
	// an event. The wrapping error names the line.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrUnknownFormat is returned when a file extension maps to no
	// supported log format.
	ErrUnknownFormat = errors.New("unknown log format")

	// ErrEmptyInput is returned when an input contains no events.
	ErrEmptyInput = errors.New("empty input")
)
