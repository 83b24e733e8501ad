// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command miner starts the ProcessLens mining API server.
//
// ProcessLens ingests event logs, builds annotated directly-follows
// graphs, discovers process models with heuristic mining, and replays
// logs against models for conformance fitness.
//
// Usage:
//
//	go run ./cmd/miner
//	go run ./cmd/miner -port 9090 -data-dir /var/lib/processlens
//	go run ./cmd/miner -watch ./orders.csv
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/miner/health
//
//	# Ingest a log
//	curl -X POST http://localhost:8080/v1/miner/logs \
//	  -H "Content-Type: application/json" \
//	  -d '{"name":"orders","cases":[{"id":"c1","events":[
//	        {"activity":"A","timestamp":"2025-03-01T09:00:00Z"},
//	        {"activity":"B","timestamp":"2025-03-01T09:05:00Z"}]}]}'
//
//	# Discover a model
//	curl -X POST http://localhost:8080/v1/miner/logs/<id>/discover
//
//	# Prometheus metrics
//	curl http://localhost:8080/metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/ProcessLens/pkg/logging"
	"github.com/AleutianAI/ProcessLens/services/miner"
	"github.com/AleutianAI/ProcessLens/services/miner/eventlog"
	"github.com/AleutianAI/ProcessLens/services/miner/ingest"
	storage "github.com/AleutianAI/ProcessLens/services/miner/storage/badger"
	"github.com/AleutianAI/ProcessLens/services/miner/telemetry"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	dataDir := flag.String("data-dir", "", "BadgerDB data directory (empty = memory-only)")
	watchFile := flag.String("watch", "", "Log file to watch and re-ingest on change (CSV or JSONL)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logDir := flag.String("log-dir", "", "Directory for JSON log files (empty = stderr only)")
	flag.Parse()

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(*logLevel),
		LogDir:  *logDir,
		Service: "miner",
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Telemetry: tracer + meter providers, prometheus by default.
	telemetryShutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
	if err != nil {
		slog.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			slog.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.Meter("processlens/miner"))
	if err != nil {
		slog.Error("Failed to create metrics", "error", err)
		os.Exit(1)
	}

	svc := miner.NewService(miner.DefaultServiceConfig()).WithMetrics(metrics)

	// Optional warm tier.
	var store *storage.Store
	if *dataDir != "" {
		cfg := storage.DefaultConfig()
		cfg.Path = *dataDir
		store, err = storage.NewStore(cfg)
		if err != nil {
			slog.Error("Failed to open store", "path", *dataDir, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		svc.WithStore(store)
		slog.Info("Persistence enabled", "path", *dataDir)
	} else {
		slog.Info("Running memory-only (no -data-dir)")
	}

	// Optional log file watcher: re-ingest on change.
	if *watchFile != "" {
		watcher, err := startWatcher(ctx, svc, *watchFile)
		if err != nil {
			slog.Error("Failed to start log watcher", "path", *watchFile, "error", err)
			os.Exit(1)
		}
		defer watcher.Stop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if *debug {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware("miner-service"))

	handlers := miner.NewHandlers(svc)
	v1 := router.Group("/v1")
	miner.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	addr := fmt.Sprintf(":%d", *port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down ProcessLens miner server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting ProcessLens miner server", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}

// startWatcher re-ingests the watched file into the service whenever it
// changes, and performs one initial ingest.
func startWatcher(ctx context.Context, svc *miner.Service, path string) (*ingest.Watcher, error) {
	ingestLog := func(log *eventlog.Log) {
		cases := make([]eventlog.Case, 0, len(log.Traces))
		for _, tr := range log.Traces {
			cases = append(cases, eventlog.Case{ID: tr.CaseID, Events: tr.Events})
		}
		summary, err := svc.IngestLog(ctx, path, cases)
		if err != nil {
			slog.Error("Watched log ingest failed", "path", path, "error", err)
			return
		}
		slog.Info("Watched log ingested", "path", path, "log_id", summary.ID, "cases", summary.Cases)
	}

	if log, err := ingest.ReadLogFile(path); err != nil {
		slog.Warn("Initial read of watched log failed", "path", path, "error", err)
	} else {
		ingestLog(log)
	}

	watcher, err := ingest.NewWatcher(path, ingestLog, nil)
	if err != nil {
		return nil, err
	}
	if err := watcher.Start(ctx); err != nil {
		watcher.Stop()
		return nil, err
	}
	slog.Info("Watching log file", "path", path)
	return watcher, nil
}
