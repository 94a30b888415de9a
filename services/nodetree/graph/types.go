// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph defines the read-only view of the content graph consumed by
// the tree materializer, the record serializer and the change tracker.
//
// The graph itself is an external projection; this package only declares the
// node snapshot type, the subgraph query surface and the node type model used
// to evaluate type filter expressions.
package graph

import (
	"strings"
	"time"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
)

// ContentRepositoryID identifies one content repository.
type ContentRepositoryID string

// Classification is the structural role of a node.
type Classification string

const (
	// ClassificationRegular is a freely created node.
	ClassificationRegular Classification = "regular"

	// ClassificationTethered is an automatically created, structurally fixed child.
	ClassificationTethered Classification = "tethered"

	// ClassificationRoot is a root node of the graph.
	ClassificationRoot Classification = "root"
)

// Valid reports whether c is a known classification.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationRegular, ClassificationTethered, ClassificationRoot:
		return true
	}
	return false
}

// Visibility selects which restriction rules a subgraph applies.
type Visibility string

const (
	// VisibilityFrontend hides disabled nodes and everything below them.
	VisibilityFrontend Visibility = "frontend"

	// VisibilityWithoutRestrictions returns every node regardless of state.
	VisibilityWithoutRestrictions Visibility = "without_restrictions"
)

// SubgraphIdentity scopes every graph read.
type SubgraphIdentity struct {
	ContentRepositoryID ContentRepositoryID
	ContentStreamID     address.ContentStreamID
	DimensionVariant    address.DimensionVariant
	Visibility          Visibility
}

// Timestamps of a node. LastModified and OriginalLastModified are
// independently nullable.
type Timestamps struct {
	Created              time.Time
	OriginalCreated      time.Time
	LastModified         *time.Time
	OriginalLastModified *time.Time
}

// Node is a resolved snapshot of one node variant in one subgraph.
//
// Nodes are read-only; nothing in this module mutates them after they are
// returned by a Subgraph.
type Node struct {
	AggregateID            address.NodeAggregateID
	TypeName               NodeTypeName
	Classification         Classification
	OriginDimensionVariant address.DimensionVariant
	Subgraph               SubgraphIdentity

	// Name is empty for unnamed nodes. Tethered children always have one.
	Name string

	Properties map[string]any
	Timestamps Timestamps
}

// Property returns a property value by name.
func (n *Node) Property(name string) (any, bool) {
	if n.Properties == nil {
		return nil, false
	}
	v, ok := n.Properties[name]
	return v, ok
}

// IsTethered reports whether the node is a tethered child.
func (n *Node) IsTethered() bool {
	return n.Classification == ClassificationTethered
}

// IsRoot reports whether the node is a graph root.
func (n *Node) IsRoot() bool {
	return n.Classification == ClassificationRoot
}

// MatchesCurrentDimensions reports whether the node was read in the variant
// it originates from. Inherited (fallback) variants do not match.
func (n *Node) MatchesCurrentDimensions() bool {
	return n.Subgraph.DimensionVariant == n.OriginDimensionVariant
}

// Label returns the display label of the node.
//
// Description:
//
//	Uses the "title" property when it is a non-blank string, otherwise the
//	node name, otherwise the unqualified type name.
func (n *Node) Label() string {
	if v, ok := n.Property("title"); ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	if n.Name != "" {
		return n.Name
	}
	return n.TypeName.ShortName()
}

// Nodes is an ordered list of nodes.
type Nodes []*Node

// Union appends the nodes of other that are not already present (by
// aggregate id) and returns the result. The receiver is not modified.
func (ns Nodes) Union(other Nodes) Nodes {
	seen := make(map[address.NodeAggregateID]struct{}, len(ns)+len(other))
	out := make(Nodes, 0, len(ns)+len(other))
	for _, list := range []Nodes{ns, other} {
		for _, n := range list {
			if n == nil {
				continue
			}
			if _, dup := seen[n.AggregateID]; dup {
				continue
			}
			seen[n.AggregateID] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// AggregateIDs returns the ids of the nodes in order.
func (ns Nodes) AggregateIDs() []address.NodeAggregateID {
	ids := make([]address.NodeAggregateID, 0, len(ns))
	for _, n := range ns {
		ids = append(ids, n.AggregateID)
	}
	return ids
}
