// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package record serializes graph nodes into the addressable records
// consumed by the UI tree.
package record

import (
	"time"

	"github.com/AleutianAI/nodetree/services/nodetree/graph"
)

// Mode selects how much of a node a record carries.
type Mode string

const (
	// ModeMinimal carries hidden-state flags only, for tree state.
	ModeMinimal Mode = "minimal"

	// ModeFull carries the complete property bag.
	ModeFull Mode = "full"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeMinimal || m == ModeFull
}

// Property names of the hidden-state flags in minimal records.
const (
	PropertyHidden        = "_hidden"
	PropertyHiddenInIndex = "_hiddenInIndex"
)

// ChildSummary identifies one child of a record.
type ChildSummary struct {
	ContextPath string             `json:"contextPath"`
	NodeType    graph.NodeTypeName `json:"nodeType"`
}

// Record is the UI representation of one node.
//
// ContextPath and NodeAddress both hold the serialized node address; the
// UI keys its node store by either.
type Record struct {
	ContextPath   string             `json:"contextPath"`
	NodeAddress   string             `json:"nodeAddress"`
	Name          string             `json:"name"`
	Identifier    string             `json:"identifier"`
	NodeType      graph.NodeTypeName `json:"nodeType"`
	Label         string             `json:"label"`
	IsAutoCreated bool               `json:"isAutoCreated"`

	// Depth is the number of ancestors of the node.
	Depth int `json:"depth"`

	Children []ChildSummary `json:"children"`

	// Parent is the serialized parent address, nil for root nodes.
	Parent *string `json:"parent"`

	MatchesCurrentDimensions bool `json:"matchesCurrentDimensions"`

	LastModificationDateTime *string `json:"lastModificationDateTime"`
	CreationDateTime         string  `json:"creationDateTime"`
	LastPublicationDateTime  *string `json:"lastPublicationDateTime"`

	Properties map[string]any `json:"properties"`

	// URI is the preview link, set for document nodes when a URI builder
	// is configured.
	URI string `json:"uri,omitempty"`

	IsFullyLoaded bool `json:"isFullyLoaded,omitempty"`

	// Matched and Intermediate mark search hits and the documents on
	// their path.
	Matched      bool `json:"matched,omitempty"`
	Intermediate bool `json:"intermediate,omitempty"`
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// convertProperties copies a property bag into JSON friendly values.
func convertProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = convertValue(v)
	}
	return out
}

func convertValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return formatTime(val)
	case *time.Time:
		if val == nil {
			return nil
		}
		return formatTime(*val)
	case map[string]any:
		return convertProperties(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = convertValue(item)
		}
		return out
	default:
		return v
	}
}
