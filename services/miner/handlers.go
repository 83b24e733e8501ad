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

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/ProcessLens/services/miner/discovery"
	"github.com/AleutianAI/ProcessLens/services/miner/eventlog"
	"github.com/AleutianAI/ProcessLens/services/miner/petri"
)

// ServiceVersion is the miner service version.
const ServiceVersion = "0.1.0"

// Handlers contains the HTTP handlers for the miner service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleIngestLog handles POST /v1/miner/logs.
//
// Description:
//
//	Validates and stores an event log submitted as cases of timestamped
//	events.
//
// Request Body:
//
//	IngestLogRequest
//
// Response:
//
//	201 Created: LogSummary
//	400 Bad Request: Validation error
//	500 Internal Server Error: Store error
func (h *Handlers) HandleIngestLog(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleIngestLog")

	var req IngestLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	cases := make([]eventlog.Case, 0, len(req.Cases))
	for _, ci := range req.Cases {
		ec := eventlog.Case{ID: ci.ID}
		for _, ev := range ci.Events {
			ec.Events = append(ec.Events, eventlog.Event{
				Activity:   ev.Activity,
				Timestamp:  ev.Timestamp,
				Attributes: ev.Attributes,
			})
		}
		cases = append(cases, ec)
	}

	summary, err := h.svc.IngestLog(c.Request.Context(), req.Name, cases)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errCode := "INGEST_FAILED"
		if errors.Is(err, eventlog.ErrInvalidTrace) || errors.Is(err, eventlog.ErrDuplicateCase) {
			statusCode = http.StatusBadRequest
			errCode = "INVALID_LOG"
		}
		logger.Error("Ingest failed", "error", err)
		c.JSON(statusCode, ErrorResponse{Error: err.Error(), Code: errCode})
		return
	}

	logger.Info("Log ingested", "log_id", summary.ID, "cases", summary.Cases)
	c.JSON(http.StatusCreated, summary)
}

// HandleListLogs handles GET /v1/miner/logs.
func (h *Handlers) HandleListLogs(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListLogs")

	summaries, err := h.svc.ListLogs(c.Request.Context())
	if err != nil {
		logger.Error("List logs failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "LIST_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, ListLogsResponse{Logs: summaries})
}

// HandleGetLog handles GET /v1/miner/logs/:id.
func (h *Handlers) HandleGetLog(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetLog")

	summary, err := h.svc.GetLog(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondLookupError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// HandleDeleteLog handles DELETE /v1/miner/logs/:id.
func (h *Handlers) HandleDeleteLog(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDeleteLog")

	if err := h.svc.DeleteLog(c.Request.Context(), c.Param("id")); err != nil {
		h.respondLookupError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleBuildDFG handles POST /v1/miner/logs/:id/dfg.
//
// Description:
//
//	Builds the annotated directly-follows graph of a stored log. The
//	request body is optional; an empty body uses service defaults.
//
// Request Body:
//
//	DFGRequest (optional)
//
// Response:
//
//	200 OK: DFGResponse
//	404 Not Found: Unknown log
//	504 Gateway Timeout: Pipeline duration limit exceeded
func (h *Handlers) HandleBuildDFG(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleBuildDFG")

	var req DFGRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "Invalid request body",
				Code:  "INVALID_REQUEST",
			})
			return
		}
	}

	resp, err := h.svc.BuildDFG(c.Request.Context(), c.Param("id"), req.Workers, req.Quantiles)
	if err != nil {
		h.respondPipelineError(c, logger, err, "DFG_FAILED")
		return
	}

	logger.Info("DFG built",
		"log_id", resp.LogID,
		"nodes", len(resp.Nodes),
		"edges", len(resp.Edges),
		"build_time_ms", resp.BuildTimeMs)
	c.JSON(http.StatusOK, resp)
}

// HandleDiscover handles POST /v1/miner/logs/:id/discover.
//
// Description:
//
//	Runs the discovery pipeline (DFG, heuristics, assembly) for a stored
//	log and stores the resulting model.
//
// Request Body:
//
//	DiscoverRequest (optional)
//
// Response:
//
//	201 Created: ModelResponse
//	400 Bad Request: Invalid thresholds
//	404 Not Found: Unknown log
//	422 Unprocessable Entity: Contradictory AND/XOR grouping
//	504 Gateway Timeout: Pipeline duration limit exceeded
func (h *Handlers) HandleDiscover(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDiscover")

	var req DiscoverRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "Invalid request body",
				Code:  "INVALID_REQUEST",
			})
			return
		}
	}

	resp, err := h.svc.DiscoverModel(c.Request.Context(), c.Param("id"), req.Config, req.Workers)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errCode := "DISCOVERY_FAILED"

		var groupingErr *petri.GroupingError
		switch {
		case errors.Is(err, ErrLogNotFound):
			statusCode = http.StatusNotFound
			errCode = "LOG_NOT_FOUND"
		case errors.Is(err, discovery.ErrInvalidConfig):
			statusCode = http.StatusBadRequest
			errCode = "INVALID_CONFIG"
		case errors.As(err, &groupingErr):
			statusCode = http.StatusUnprocessableEntity
			errCode = "INCONSISTENT_GROUPING"
		case errors.Is(err, ErrPipelineTimeout):
			statusCode = http.StatusGatewayTimeout
			errCode = "PIPELINE_TIMEOUT"
		}

		logger.Error("Discovery failed", "error", err)
		c.JSON(statusCode, ErrorResponse{Error: err.Error(), Code: errCode})
		return
	}

	logger.Info("Model discovered",
		"model_id", resp.ModelID,
		"log_id", resp.LogID,
		"arcs", len(resp.Arcs))
	c.JSON(http.StatusCreated, resp)
}

// HandleListModels handles GET /v1/miner/models.
func (h *Handlers) HandleListModels(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListModels")

	summaries, err := h.svc.ListModels(c.Request.Context())
	if err != nil {
		logger.Error("List models failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "LIST_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, ListModelsResponse{Models: summaries})
}

// HandleGetModel handles GET /v1/miner/models/:id.
func (h *Handlers) HandleGetModel(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetModel")

	resp, err := h.svc.GetModel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondLookupError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDeleteModel handles DELETE /v1/miner/models/:id.
func (h *Handlers) HandleDeleteModel(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDeleteModel")

	if err := h.svc.DeleteModel(c.Request.Context(), c.Param("id")); err != nil {
		h.respondLookupError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleReplay handles POST /v1/miner/replay.
//
// Description:
//
//	Replays a stored log against a stored model and returns per-trace
//	and aggregate fitness records.
//
// Request Body:
//
//	ReplayRequest
//
// Response:
//
//	200 OK: ReplayResponse
//	404 Not Found: Unknown log or model
//	504 Gateway Timeout: Pipeline duration limit exceeded
func (h *Handlers) HandleReplay(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReplay")

	var req ReplayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.svc.ReplayLog(c.Request.Context(), req.LogID, req.ModelID, req.Workers)
	if err != nil {
		h.respondPipelineError(c, logger, err, "REPLAY_FAILED")
		return
	}

	logger.Info("Replay completed",
		"log_id", resp.LogID,
		"model_id", resp.ModelID,
		"fitness", resp.Result.Fitness)
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/miner/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/miner/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, ReadyResponse{
		Ready:   true,
		Logs:    h.svc.LogCount(),
		Models:  h.svc.ModelCount(),
		StoreOK: h.svc.StoreAttached(),
	})
}

// respondLookupError maps not-found sentinels to 404 and everything else
// to 500.
func (h *Handlers) respondLookupError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrLogNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "LOG_NOT_FOUND"})
	case errors.Is(err, ErrModelNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "MODEL_NOT_FOUND"})
	default:
		logger.Error("Lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "LOOKUP_FAILED"})
	}
}

// respondPipelineError maps pipeline errors for the DFG and replay
// handlers.
func (h *Handlers) respondPipelineError(c *gin.Context, logger *slog.Logger, err error, fallback string) {
	statusCode := http.StatusInternalServerError
	errCode := fallback

	switch {
	case errors.Is(err, ErrLogNotFound):
		statusCode = http.StatusNotFound
		errCode = "LOG_NOT_FOUND"
	case errors.Is(err, ErrModelNotFound):
		statusCode = http.StatusNotFound
		errCode = "MODEL_NOT_FOUND"
	case errors.Is(err, ErrPipelineTimeout):
		statusCode = http.StatusGatewayTimeout
		errCode = "PIPELINE_TIMEOUT"
	}

	logger.Error("Pipeline failed", "error", err)
	c.JSON(statusCode, ErrorResponse{Error: err.Error(), Code: errCode})
}

// getOrCreateRequestID returns the X-Request-ID header, generating one
// when absent, and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
