// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(99), slog.LevelInfo}, // Unknown defaults to Info
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := tt.level.toSlogLevel(); got != tt.want {
				t.Errorf("Level.toSlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"nonsense", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.name); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestNew_DefaultConfig(t *testing.T) {
	logger := New(Config{})
	defer logger.Close()

	if logger.Slog() == nil {
		t.Fatal("Slog() returned nil")
	}
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "miner-test",
		Quiet:   true,
	})

	logger.Info("log ingested", "log_id", "abc123", "cases", 10)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	name := "miner-test_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	// File entries are JSON with the service attribute attached.
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log entry is not JSON: %v", err)
	}
	if entry["msg"] != "log ingested" {
		t.Errorf("msg = %v, want %q", entry["msg"], "log ingested")
	}
	if entry["service"] != "miner-test" {
		t.Errorf("service = %v, want %q", entry["service"], "miner-test")
	}
	if entry["log_id"] != "abc123" {
		t.Errorf("log_id = %v, want %q", entry["log_id"], "abc123")
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "filter-test",
		Quiet:   true,
	})

	logger.Debug("dropped debug")
	logger.Info("dropped info")
	logger.Warn("kept warn")
	logger.Error("kept error")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	name := "filter-test_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)

	if strings.Contains(out, "dropped") {
		t.Errorf("entries below Warn leaked into output:\n%s", out)
	}
	if !strings.Contains(out, "kept warn") || !strings.Contains(out, "kept error") {
		t.Errorf("Warn/Error entries missing:\n%s", out)
	}
}

func TestLogger_With(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		LogDir:  dir,
		Service: "with-test",
		Quiet:   true,
	})

	child := logger.With("request_id", "req-1")
	child.Info("child message")
	logger.Info("parent message")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	name := "with-test_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("bad line %q: %v", line, err)
		}
		switch entry["msg"] {
		case "child message":
			if entry["request_id"] != "req-1" {
				t.Error("child entry missing request_id")
			}
		case "parent message":
			if _, ok := entry["request_id"]; ok {
				t.Error("parent must not inherit the child's attributes")
			}
		}
	}
}

func TestLogger_CloseIdempotent(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Service: "close-test", Quiet: true})
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	}}
	logger := slog.New(h)

	logger.Info("both destinations")

	if !strings.Contains(a.String(), "both destinations") {
		t.Error("text handler did not receive the record")
	}
	if !strings.Contains(b.String(), "both destinations") {
		t.Error("json handler did not receive the record")
	}
}

func TestMultiHandler_Enabled(t *testing.T) {
	var buf bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}}

	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled should be true when any handler accepts the level")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/logs", filepath.Join(home, "logs")},
		{"/var/log", "/var/log"},
		{"relative/path", "relative/path"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
