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
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/ProcessLens/services/miner/discovery"
	"github.com/AleutianAI/ProcessLens/services/miner/eventlog"
	"github.com/AleutianAI/ProcessLens/services/miner/petri"
)

const (
	logPrefix   = "log:"
	modelPrefix = "model:"
)

// EventRecord is the stored form of one event.
type EventRecord struct {
	Activity   string                        `json:"activity"`
	Timestamp  time.Time                     `json:"timestamp"`
	Attributes map[string]eventlog.AttrValue `json:"attributes,omitempty"`
}

// CaseRecord is the stored form of one case.
type CaseRecord struct {
	ID     string        `json:"id"`
	Events []EventRecord `json:"events"`
}

// LogRecord is the stored form of an ingested event log.
type LogRecord struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	Cases     []CaseRecord `json:"cases"`
}

// ModelRecord is the stored form of a discovered process model: the
// discovery output plus the serialized net parts.
type ModelRecord struct {
	ID        string           `json:"id"`
	LogID     string           `json:"log_id"`
	CreatedAt time.Time        `json:"created_at"`
	Config    discovery.Config `json:"config"`

	Arcs        []discovery.Arc    `json:"arcs"`
	Places      []petri.Place      `json:"places"`
	Transitions []petri.Transition `json:"transitions"`
	Source      int                `json:"source"`
	Sink        int                `json:"sink"`
}

// Net rebuilds the replayable net from the record's serialized parts.
func (m *ModelRecord) Net() (*petri.Net, error) {
	return petri.Restore(m.Places, m.Transitions, m.Source, m.Sink)
}

// Store persists log and model records in BadgerDB.
//
// Thread Safety: safe for concurrent use; BadgerDB transactions provide
// the isolation.
type Store struct {
	db *badger.DB
	gc *gcRunner
}

// NewStore opens a store with the given configuration.
//
// Description:
//
//	Opens (or creates) the BadgerDB instance and, for persistent stores
//	with a GC interval, starts a background value log GC loop that runs
//	until Close.
//
// Outputs:
//
//	*Store - The opened store. Caller must Close it.
//	error - Non-nil if the database cannot be opened.
func NewStore(cfg Config) (*Store, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = &gcRunner{
			db:       db,
			interval: cfg.GCInterval,
			ratio:    cfg.GCDiscardRatio,
			stopCh:   make(chan struct{}),
			doneCh:   make(chan struct{}),
			logger:   cfg.Logger,
		}
		s.gc.start()
	}
	return s, nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// PutLog stores a log record under its ID, replacing any previous version.
func (s *Store) PutLog(ctx context.Context, rec *LogRecord) error {
	return s.put(ctx, logPrefix+rec.ID, rec)
}

// GetLog retrieves a log record by ID. Returns ErrNotFound if absent.
func (s *Store) GetLog(ctx context.Context, id string) (*LogRecord, error) {
	var rec LogRecord
	if err := s.get(ctx, logPrefix+id, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteLog removes a log record. Deleting an absent ID is not an error.
func (s *Store) DeleteLog(ctx context.Context, id string) error {
	return s.delete(ctx, logPrefix+id)
}

// ListLogs returns all stored log records sorted by creation time, oldest
// first; ties sort by ID.
func (s *Store) ListLogs(ctx context.Context) ([]*LogRecord, error) {
	var recs []*LogRecord
	err := s.scan(ctx, logPrefix, func(val []byte) error {
		var rec LogRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return fmt.Errorf("decode log record: %w", err)
		}
		recs = append(recs, &rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
	return recs, nil
}

// PutModel stores a model record under its ID.
func (s *Store) PutModel(ctx context.Context, rec *ModelRecord) error {
	return s.put(ctx, modelPrefix+rec.ID, rec)
}

// GetModel retrieves a model record by ID. Returns ErrNotFound if absent.
func (s *Store) GetModel(ctx context.Context, id string) (*ModelRecord, error) {
	var rec ModelRecord
	if err := s.get(ctx, modelPrefix+id, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteModel removes a model record. Deleting an absent ID is not an error.
func (s *Store) DeleteModel(ctx context.Context, id string) error {
	return s.delete(ctx, modelPrefix+id)
}

// ListModels returns all stored model records sorted by creation time,
// oldest first; ties sort by ID.
func (s *Store) ListModels(ctx context.Context) ([]*ModelRecord, error) {
	var recs []*ModelRecord
	err := s.scan(ctx, modelPrefix, func(val []byte) error {
		var rec ModelRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return fmt.Errorf("decode model record: %w", err)
		}
		recs = append(recs, &rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
	return recs, nil
}

func (s *Store) put(ctx context.Context, key string, rec any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *Store) get(ctx context.Context, key string, rec any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Store) delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (s *Store) scan(ctx context.Context, prefix string, fn func(val []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}
