// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
)

// Subgraph is the query surface over one (content stream, dimension variant,
// visibility) slice of the content graph.
//
// Description:
//
//	Every method is a potentially blocking read against the projection and
//	honours ctx cancellation. Absent nodes are reported as ErrNodeNotFound;
//	any other error is a storage failure (see StorageError).
//
//	Filter arguments are node type filter expressions as produced by
//	BuildNodeTypeFilter (e.g. "Neos.Neos:Document,!Neos.Neos:Shortcut").
//	An empty filter matches every type.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Subgraph interface {
	// Identity returns the scope of this subgraph.
	Identity() SubgraphIdentity

	// FindNodeByID resolves a node by aggregate id.
	FindNodeByID(ctx context.Context, id address.NodeAggregateID) (*Node, error)

	// FindParentNode resolves the structural parent of a node.
	// Returns ErrNodeNotFound for root nodes and absent nodes.
	FindParentNode(ctx context.Context, id address.NodeAggregateID) (*Node, error)

	// FindChildNodes lists the children of a node matching filter, in sibling order.
	FindChildNodes(ctx context.Context, parentID address.NodeAggregateID, filter string) (Nodes, error)

	// FindAncestorNodes lists the ancestors of a node matching filter,
	// nearest first. The node itself is not included.
	FindAncestorNodes(ctx context.Context, id address.NodeAggregateID, filter string) (Nodes, error)

	// FindClosestNode returns the node itself or its nearest ancestor
	// matching filter.
	FindClosestNode(ctx context.Context, id address.NodeAggregateID, filter string) (*Node, error)

	// CountAncestorNodes returns the number of ancestors of a node.
	CountAncestorNodes(ctx context.Context, id address.NodeAggregateID) (int, error)
}

// ContentGraph hands out subgraphs of one content repository.
type ContentGraph interface {
	Subgraph(cs address.ContentStreamID, dv address.DimensionVariant, visibility Visibility) Subgraph
}

// HiddenStateFinder reports whether a node variant is disabled.
type HiddenStateFinder interface {
	IsHidden(ctx context.Context, cs address.ContentStreamID, dv address.DimensionVariant, id address.NodeAggregateID) (bool, error)
}

// SubgraphOf returns the subgraph a node was read from, re-scoped to the
// given visibility.
func SubgraphOf(g ContentGraph, n *Node, visibility Visibility) Subgraph {
	return g.Subgraph(n.Subgraph.ContentStreamID, n.Subgraph.DimensionVariant, visibility)
}
