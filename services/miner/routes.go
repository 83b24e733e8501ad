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

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the miner service routes on the given router
// group.
//
// Routes:
//
//	POST   /miner/logs               - Ingest an event log
//	GET    /miner/logs               - List stored logs
//	GET    /miner/logs/:id           - Get a log summary
//	DELETE /miner/logs/:id           - Delete a log
//	POST   /miner/logs/:id/dfg       - Build the directly-follows graph
//	POST   /miner/logs/:id/discover  - Discover a process model
//	GET    /miner/models             - List stored models
//	GET    /miner/models/:id         - Get a model
//	DELETE /miner/models/:id         - Delete a model
//	POST   /miner/replay             - Replay a log against a model
//	GET    /miner/health             - Health check
//	GET    /miner/ready              - Readiness check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	miner := rg.Group("/miner")
	{
		miner.POST("/logs", handlers.HandleIngestLog)
		miner.GET("/logs", handlers.HandleListLogs)
		miner.GET("/logs/:id", handlers.HandleGetLog)
		miner.DELETE("/logs/:id", handlers.HandleDeleteLog)
		miner.POST("/logs/:id/dfg", handlers.HandleBuildDFG)
		miner.POST("/logs/:id/discover", handlers.HandleDiscover)

		miner.GET("/models", handlers.HandleListModels)
		miner.GET("/models/:id", handlers.HandleGetModel)
		miner.DELETE("/models/:id", handlers.HandleDeleteModel)

		miner.POST("/replay", handlers.HandleReplay)

		miner.GET("/health", handlers.HandleHealth)
		miner.GET("/ready", handlers.HandleReady)
	}
}
