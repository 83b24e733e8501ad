// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command plens is the ProcessLens command-line pipeline: it reads event
// logs from CSV or JSONL files and runs discovery, conformance replay,
// and graph export without a running miner service.
//
// Examples:
//
//	plens dfg orders.csv --format dot -o orders.dot
//	plens discover orders.csv --threshold 0.85 --format graphml -o model.graphml
//	plens replay orders.csv --reference golden.csv
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
