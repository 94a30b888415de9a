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
	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/changes"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/record"
)

// =============================================================================
// Tree
// =============================================================================

// TreeRequest is the body of POST /v1/nodetree/tree.
type TreeRequest struct {
	// Repository defaults to the service default repository.
	Repository string `json:"repository"`

	// Site is the serialized address of the tree root.
	Site string `json:"site" binding:"required"`

	// Document is the serialized address of the focused document. Empty
	// focuses the site.
	Document string `json:"document"`

	// BaseNodeType overrides the node type filter of the walk.
	BaseNodeType string `json:"base_node_type"`

	// LoadingDepth limits the walk; 0 is unlimited.
	LoadingDepth int `json:"loading_depth" binding:"gte=0"`

	ToggledNodes   []string `json:"toggled_nodes"`
	ClipboardNodes []string `json:"clipboard_nodes"`

	// Visibility is "without_restrictions" (default) or "frontend".
	Visibility graph.Visibility `json:"visibility" binding:"omitempty,oneof=without_restrictions frontend"`
}

// TreeResponse carries minimal records keyed by aggregate id.
type TreeResponse struct {
	Site     string                    `json:"site"`
	Document string                    `json:"document"`
	Nodes    map[string]*record.Record `json:"nodes"`
}

// =============================================================================
// Node records
// =============================================================================

// NodesRequest is the body of POST /v1/nodetree/nodes.
type NodesRequest struct {
	Repository string `json:"repository"`

	// Nodes are serialized addresses. Unresolvable ones are omitted.
	Nodes []string `json:"nodes" binding:"required,min=1,max=500"`

	// Full selects full records instead of minimal ones.
	Full bool `json:"full"`

	NodeTypeFilter string `json:"node_type_filter"`
}

// NodesWithParentsRequest is the body of POST /v1/nodetree/nodes/with-parents.
type NodesWithParentsRequest struct {
	Repository string   `json:"repository"`
	Nodes      []string `json:"nodes" binding:"required,min=1,max=500"`
}

// RecordsResponse is a list of records in request order.
type RecordsResponse struct {
	Nodes []*record.Record `json:"nodes"`
}

// RecordMapResponse holds records keyed by serialized address.
type RecordMapResponse struct {
	Nodes map[string]*record.Record `json:"nodes"`
}

// DefaultsRequest is the body of POST /v1/nodetree/defaults.
type DefaultsRequest struct {
	Repository string `json:"repository"`
	Site       string `json:"site" binding:"required"`
	Document   string `json:"document"`
}

// =============================================================================
// Workspaces
// =============================================================================

// UnpublishedResponse lists the nodes with pending changes.
type UnpublishedResponse struct {
	Workspace address.WorkspaceName `json:"workspace"`
	Nodes     []changes.NodeInfo    `json:"nodes"`
}

// TargetsResponse lists the publish targets of the actor, keyed by name.
type TargetsResponse struct {
	Workspaces map[address.WorkspaceName]changes.TargetWorkspace `json:"workspaces"`
}

// DiscardPredictRequest is the body of
// POST /v1/nodetree/workspaces/:workspace/discard/predict.
type DiscardPredictRequest struct {
	Repository string   `json:"repository"`
	Nodes      []string `json:"nodes" binding:"required,min=1"`
}

// RemovalPrediction is one node a discard would remove.
type RemovalPrediction struct {
	ContextPath       string             `json:"contextPath"`
	ParentContextPath string             `json:"parentContextPath"`
	NodeType          graph.NodeTypeName `json:"nodeType"`
}

// DiscardPredictResponse lists predicted removals.
type DiscardPredictResponse struct {
	Removals []RemovalPrediction `json:"removals"`
}

// =============================================================================
// Common
// =============================================================================

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the machine readable error code.
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// HealthResponse is returned by GET /v1/nodetree/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is returned by GET /v1/nodetree/ready.
type ReadyResponse struct {
	Ready        bool     `json:"ready"`
	Repositories []string `json:"repositories"`
}
