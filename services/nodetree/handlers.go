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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/telemetry"
)

// Handlers contains the HTTP handlers of the nodetree API.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// requestLogger returns the request scoped logger with the trace id attached.
func requestLogger(c *gin.Context, handler string) *slog.Logger {
	requestID := getOrCreateRequestID(c)
	return telemetry.LoggerWithTrace(c.Request.Context(),
		slog.With("request_id", requestID, "handler", handler))
}

// writeError maps err to its status and writes the ErrorResponse.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code, msg := errorStatus(err)
	resp := ErrorResponse{Error: msg, Code: code}
	if status < http.StatusInternalServerError {
		resp.Details = err.Error()
		logger.Warn("Request rejected", "code", code, "error", err)
	} else {
		logger.Error("Request failed", "code", code, "error", err)
	}
	c.JSON(status, resp)
}

func bindJSON(c *gin.Context, logger *slog.Logger, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return false
	}
	return true
}

// HandleTree handles POST /v1/nodetree/tree.
//
// Description:
//
//	Materializes the document tree between the site and the focused
//	document and returns it as minimal records keyed by aggregate id.
//
// Request Body:
//
//	TreeRequest
//
// Response:
//
//	200 OK: TreeResponse
//	400 Bad Request: Invalid body or malformed address
//	404 Not Found: Repository or site not found
//	503 Service Unavailable: Storage failure
func (h *Handlers) HandleTree(c *gin.Context) {
	logger := requestLogger(c, "HandleTree")

	var req TreeRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	resp, err := h.svc.Tree(c.Request.Context(), req)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Debug("Tree materialized", "nodes", len(resp.Nodes), "depth", req.LoadingDepth)
	c.JSON(http.StatusOK, resp)
}

// HandleNodes handles POST /v1/nodetree/nodes.
//
// Response:
//
//	200 OK: RecordsResponse, unresolvable nodes omitted
//	400 Bad Request: Invalid body or malformed address
func (h *Handlers) HandleNodes(c *gin.Context) {
	logger := requestLogger(c, "HandleNodes")

	var req NodesRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	resp, err := h.svc.Nodes(c.Request.Context(), req)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleNode handles GET /v1/nodetree/nodes/:address.
//
// Query Parameters:
//
//	repository: Content repository (optional)
//
// Response:
//
//	200 OK: record.Record (full)
//	404 Not Found: Node not found or not readable
func (h *Handlers) HandleNode(c *gin.Context) {
	logger := requestLogger(c, "HandleNode")

	rec, err := h.svc.Node(c.Request.Context(), c.Query("repository"), c.Param("address"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// HandleNodesWithParents handles POST /v1/nodetree/nodes/with-parents.
func (h *Handlers) HandleNodesWithParents(c *gin.Context) {
	logger := requestLogger(c, "HandleNodesWithParents")

	var req NodesWithParentsRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	resp, err := h.svc.NodesWithParents(c.Request.Context(), req)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDocumentContent handles GET /v1/nodetree/documents/:address/content.
//
// Response:
//
//	200 OK: RecordMapResponse
//	400 Bad Request: Malformed address or not a document
//	404 Not Found: Document not found
func (h *Handlers) HandleDocumentContent(c *gin.Context) {
	logger := requestLogger(c, "HandleDocumentContent")

	resp, err := h.svc.DocumentContent(c.Request.Context(), c.Query("repository"), c.Param("address"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDefaults handles POST /v1/nodetree/defaults.
func (h *Handlers) HandleDefaults(c *gin.Context) {
	logger := requestLogger(c, "HandleDefaults")

	var req DefaultsRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	resp, err := h.svc.Defaults(c.Request.Context(), req)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleUnpublished handles GET /v1/nodetree/workspaces/:workspace/unpublished.
//
// Response:
//
//	200 OK: UnpublishedResponse; empty for unknown and root workspaces
//	404 Not Found: Repository not found
func (h *Handlers) HandleUnpublished(c *gin.Context) {
	logger := requestLogger(c, "HandleUnpublished")
	ws := address.WorkspaceName(c.Param("workspace"))

	resp, err := h.svc.Unpublished(c.Request.Context(), c.Query("repository"), ws)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Debug("Unpublished nodes listed", "workspace", ws, "nodes", len(resp.Nodes))
	c.JSON(http.StatusOK, resp)
}

// HandleTargets handles GET /v1/nodetree/workspaces/targets.
//
// The actor is taken from the X-Actor-ID header.
func (h *Handlers) HandleTargets(c *gin.Context) {
	logger := requestLogger(c, "HandleTargets")

	resp, err := h.svc.Targets(c.Request.Context(), c.Query("repository"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandlePredictDiscard handles
// POST /v1/nodetree/workspaces/:workspace/discard/predict.
func (h *Handlers) HandlePredictDiscard(c *gin.Context) {
	logger := requestLogger(c, "HandlePredictDiscard")
	ws := address.WorkspaceName(c.Param("workspace"))

	var req DiscardPredictRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	resp, err := h.svc.PredictDiscard(c.Request.Context(), ws, req)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/nodetree/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/nodetree/ready.
//
// Response:
//
//	200 OK: ReadyResponse (Ready=true)
//	503 Service Unavailable: ReadyResponse (Ready=false) while storage loads
func (h *Handlers) HandleReady(c *gin.Context) {
	resp := h.svc.Ready()
	if !resp.Ready {
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RequireReady rejects requests with 503 NOT_READY until the service is
// marked ready.
func (h *Handlers) RequireReady() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.svc.ready.Load() {
			c.Next()
			return
		}
		status, code, msg := errorStatus(ErrServiceNotReady)
		requestLogger(c, "RequireReady").Warn("Request before ready", "path", c.FullPath())
		c.Header("Retry-After", "5")
		c.AbortWithStatusJSON(status, ErrorResponse{Error: msg, Code: code})
	}
}

// getOrCreateRequestID returns the X-Request-ID header or a new UUID, and
// echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
