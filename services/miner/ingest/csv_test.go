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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV_BasicLog(t *testing.T) {
	input := strings.Join([]string{
		"case,activity,timestamp,amount,urgent",
		"c1,Receive,2025-03-01T09:00:00Z,10.5,true",
		"c2,Receive,2025-03-01T09:01:00Z,,",
		"c1,Approve,2025-03-01T09:05:00Z,10.5,false",
		"c2,Approve,2025-03-01T09:06:00Z,3,",
	}, "\n")

	cases, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cases, 2)

	// First-seen case order, row order within a case.
	assert.Equal(t, "c1", cases[0].ID)
	assert.Equal(t, "c2", cases[1].ID)
	require.Len(t, cases[0].Events, 2)
	assert.Equal(t, "Receive", cases[0].Events[0].Activity)
	assert.Equal(t, "Approve", cases[0].Events[1].Activity)

	want := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.True(t, cases[0].Events[0].Timestamp.Equal(want))

	// Attribute typing by shape.
	amount, ok := cases[0].Events[0].Attributes["amount"].AsNumber()
	require.True(t, ok)
	assert.Equal(t, 10.5, amount)
	urgent, ok := cases[0].Events[0].Attributes["urgent"].AsBool()
	require.True(t, ok)
	assert.True(t, urgent)

	// Empty cells are skipped entirely.
	assert.Nil(t, cases[1].Events[0].Attributes)
}

func TestReadCSV_UnixMillisTimestamp(t *testing.T) {
	input := "case,activity,timestamp\nc1,A,1740819600000\n"
	cases, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.True(t, cases[0].Events[0].Timestamp.Equal(time.UnixMilli(1740819600000)))
}

func TestReadCSV_HeaderAnyOrderAndCase(t *testing.T) {
	input := "Timestamp,ACTIVITY,region,case\n2025-03-01T09:00:00Z,A,eu,c1\n"
	cases, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cases, 1)
	region, ok := cases[0].Events[0].Attributes["region"].AsString()
	require.True(t, ok)
	assert.Equal(t, "eu", region)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty input", "", ErrEmptyInput},
		{"header only", "case,activity,timestamp\n", ErrEmptyInput},
		{"missing column", "case,activity\nc1,A\n", ErrMissingHeader},
		{"bad timestamp", "case,activity,timestamp\nc1,A,march first\n", ErrMalformedRecord},
		{"empty case", "case,activity,timestamp\n,A,2025-03-01T09:00:00Z\n", ErrMalformedRecord},
		{"empty activity", "case,activity,timestamp\nc1,,2025-03-01T09:00:00Z\n", ErrMalformedRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReadCSV_MalformedRecordNamesLine(t *testing.T) {
	input := "case,activity,timestamp\nc1,A,2025-03-01T09:00:00Z\nc1,B,nope\n"
	_, err := ReadCSV(strings.NewReader(input))
	require.ErrorIs(t, err, ErrMalformedRecord)
	assert.Contains(t, err.Error(), "line 3")
}

func TestReadFile_DispatchAndUnknownFormat(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "log.csv")
	require.NoError(t, os.WriteFile(csvPath,
		[]byte("case,activity,timestamp\nc1,A,2025-03-01T09:00:00Z\n"), 0600))
	cases, err := ReadFile(csvPath)
	require.NoError(t, err)
	assert.Len(t, cases, 1)

	badPath := filepath.Join(dir, "log.xes")
	require.NoError(t, os.WriteFile(badPath, []byte("x"), 0600))
	_, err = ReadFile(badPath)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestReadLogFile_SortsOutOfOrderEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	input := strings.Join([]string{
		"case,activity,timestamp",
		"c1,B,2025-03-01T09:05:00Z",
		"c1,A,2025-03-01T09:00:00Z",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(input), 0600))

	log, err := ReadLogFile(path)
	require.NoError(t, err)
	require.Len(t, log.Traces, 1)
	require.Len(t, log.Traces[0].Events, 2)
	assert.Equal(t, "A", log.Traces[0].Events[0].Activity)
	assert.Equal(t, "B", log.Traces[0].Events[1].Activity)
}

func TestReadLogFile_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	require.NoError(t, os.WriteFile(path, []byte("case,activity,timestamp\n"), 0600))

	_, err := ReadLogFile(path)
	assert.ErrorIs(t, err, ErrEmptyInput)
}
