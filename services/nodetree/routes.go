// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nodetree

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all nodetree routes with the router.
//
// Description:
//
//	Registers all /v1/nodetree/* endpoints with the given Gin router group.
//	The router group should already have the actor, rate limit and metrics
//	middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Tree Endpoints:
//
//	POST /v1/nodetree/tree - Materialize the document tree
//	POST /v1/nodetree/nodes - Render a batch of nodes
//	GET  /v1/nodetree/nodes/:address - Render one node in full
//	POST /v1/nodetree/nodes/with-parents - Render search hits with their documents
//	GET  /v1/nodetree/documents/:address/content - Render a document and its content
//	POST /v1/nodetree/defaults - Render the site and the current document
//
// Workspace Endpoints:
//
//	GET  /v1/nodetree/workspaces/targets - Publish targets of the actor
//	GET  /v1/nodetree/workspaces/:workspace/unpublished - Nodes with pending changes
//	POST /v1/nodetree/workspaces/:workspace/discard/predict - Predict discard removals
//
// Health Endpoints:
//
//	GET  /v1/nodetree/health - Health check
//	GET  /v1/nodetree/ready - Readiness check
//
// Tree and workspace endpoints answer 503 NOT_READY until the service is
// marked ready; health endpoints always answer.
//
// Every endpoint accepts a "repository" (query or body) naming the content
// repository; it defaults to the service default.
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	nt := rg.Group("/nodetree")
	{
		api := nt.Group("", handlers.RequireReady())
		api.POST("/tree", handlers.HandleTree)

		api.POST("/nodes", handlers.HandleNodes)
		api.GET("/nodes/:address", handlers.HandleNode)
		api.POST("/nodes/with-parents", handlers.HandleNodesWithParents)

		api.GET("/documents/:address/content", handlers.HandleDocumentContent)
		api.POST("/defaults", handlers.HandleDefaults)

		ws := api.Group("/workspaces")
		{
			ws.GET("/targets", handlers.HandleTargets)
			ws.GET("/:workspace/unpublished", handlers.HandleUnpublished)
			ws.POST("/:workspace/discard/predict", handlers.HandlePredictDiscard)
		}

		nt.GET("/health", handlers.HandleHealth)
		nt.GET("/ready", handlers.HandleReady)
	}
}
