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
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/ProcessLens/services/miner/eventlog"
)

// ReloadHandler is called with the re-read log after a debounced change.
type ReloadHandler func(log *eventlog.Log)

// WatcherOptions configures the Watcher.
type WatcherOptions struct {
	// DebounceWindow is how long to wait for further writes before
	// re-reading the file. Default: 250ms.
	DebounceWindow time.Duration

	// MinReloadInterval caps how often the file is re-read regardless of
	// write frequency. Default: 1s.
	MinReloadInterval time.Duration
}

// DefaultWatcherOptions returns sensible defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		DebounceWindow:    250 * time.Millisecond,
		MinReloadInterval: time.Second,
	}
}

// Watcher re-reads a single log file whenever it changes.
//
// Description:
//
//	Watches the file's parent directory (editors typically replace files
//	via rename, which drops a watch on the file itself) and re-ingests
//	after a debounce window. A rate limiter caps reload frequency so a
//	process appending events continuously cannot saturate ingestion.
//	Parse failures are logged and skipped; the handler only sees valid
//	logs.
//
// Thread Safety:
//
//	Safe for concurrent use. The handler is called from a single
//	goroutine.
type Watcher struct {
	path     string
	handler  ReloadHandler
	debounce time.Duration
	limiter  *rate.Limiter

	watcher *fsnotify.Watcher

	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// NewWatcher creates a watcher for the given log file.
//
// Inputs:
//
//	path - The log file to watch (CSV or JSON lines, by extension).
//	handler - Called with each successfully re-read log.
//	opts - Optional configuration (nil uses defaults).
func NewWatcher(path string, handler ReloadHandler, opts *WatcherOptions) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		path:     filepath.Clean(path),
		handler:  handler,
		debounce: opts.DebounceWindow,
		limiter:  rate.NewLimiter(rate.Every(opts.MinReloadInterval), 1),
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. The watch ends when Stop is called or the
// context is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching returns true while the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// run debounces write events for the watched file and reloads it.
func (w *Watcher) run(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Log watcher error", "path", w.path, "error", err)
		}
	}
}

// reload re-reads the file, honoring the reload rate limit.
func (w *Watcher) reload(ctx context.Context) {
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}

	log, err := ReadLogFile(w.path)
	if err != nil {
		slog.Warn("Log reload failed", "path", w.path, "error", err)
		return
	}

	slog.Info("Log reloaded", "path", w.path, "cases", len(log.Traces), "events", log.EventCount())
	if w.handler != nil {
		w.handler(log)
	}
}
