// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ProcessLens/services/miner/discovery"
	"github.com/AleutianAI/ProcessLens/services/miner/petri"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testLogRecord(id string, createdAt time.Time) *LogRecord {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return &LogRecord{
		ID:        id,
		Name:      "orders",
		CreatedAt: createdAt,
		Cases: []CaseRecord{
			{
				ID: "case-1",
				Events: []EventRecord{
					{Activity: "A", Timestamp: base},
					{Activity: "B", Timestamp: base.Add(time.Minute)},
				},
			},
		},
	}
}

func TestStore_LogRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec := testLogRecord("log-1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, s.PutLog(ctx, rec))

	got, err := s.GetLog(ctx, "log-1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestStore_GetLogNotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.GetLog(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteLog(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutLog(ctx, testLogRecord("log-1", time.Now().UTC())))
	require.NoError(t, s.DeleteLog(ctx, "log-1"))

	_, err := s.GetLog(ctx, "log-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, s.DeleteLog(ctx, "log-1"))
}

func TestStore_ListLogsSortedByCreation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutLog(ctx, testLogRecord("log-b", base.Add(time.Hour))))
	require.NoError(t, s.PutLog(ctx, testLogRecord("log-a", base)))
	require.NoError(t, s.PutLog(ctx, testLogRecord("log-c", base.Add(2*time.Hour))))

	recs, err := s.ListLogs(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "log-a", recs[0].ID)
	assert.Equal(t, "log-b", recs[1].ID)
	assert.Equal(t, "log-c", recs[2].ID)
}

func TestStore_ModelRoundTripAndRestore(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec := &ModelRecord{
		ID:        "model-1",
		LogID:     "log-1",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Config:    discovery.DefaultConfig(),
		Arcs: []discovery.Arc{
			{Source: "A", Target: "B", Kind: discovery.KindSequence, Dependency: 0.9},
		},
		Places: []petri.Place{{ID: "source"}, {ID: "sink"}, {ID: "seq:A->B"}},
		Transitions: []petri.Transition{
			{Label: "A", Inputs: []petri.Arc{{Place: 0, Weight: 1}}, Outputs: []petri.Arc{{Place: 2, Weight: 1}}},
			{Label: "B", Inputs: []petri.Arc{{Place: 2, Weight: 1}}, Outputs: []petri.Arc{{Place: 1, Weight: 1}}},
		},
		Source: 0,
		Sink:   1,
	}
	require.NoError(t, s.PutModel(ctx, rec))

	got, err := s.GetModel(ctx, "model-1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	n, err := got.Net()
	require.NoError(t, err)
	assert.Equal(t, 3, n.NumPlaces())
	tr, ok := n.Transition("A")
	require.True(t, ok)
	assert.Equal(t, []petri.Arc{{Place: 0, Weight: 1}}, tr.Inputs)
}

func TestStore_RestoreRejectsCorruptRecord(t *testing.T) {
	rec := &ModelRecord{
		Places: []petri.Place{{ID: "source"}, {ID: "sink"}},
		Transitions: []petri.Transition{
			{Label: "A", Inputs: []petri.Arc{{Place: 7, Weight: 1}}},
		},
		Source: 0,
		Sink:   1,
	}
	_, err := rec.Net()
	assert.ErrorIs(t, err, petri.ErrMalformedNet)
}

func TestStore_CancelledContext(t *testing.T) {
	s := testStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.PutLog(ctx, testLogRecord("log-1", time.Now())), context.Canceled)
	_, err := s.ListLogs(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_PersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.SyncWrites = false
	cfg.GCInterval = 0

	s, err := NewStore(cfg)
	require.NoError(t, err)

	rec := testLogRecord("log-1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, s.PutLog(context.Background(), rec))
	require.NoError(t, s.Close())

	s2, err := NewStore(cfg)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetLog(context.Background(), "log-1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}
