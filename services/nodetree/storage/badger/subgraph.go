// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"fmt"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
)

// maxAncestorDepth guards parent walks against corrupted hierarchies.
const maxAncestorDepth = 4096

// subgraph implements graph.Subgraph over the store.
type subgraph struct {
	store    *Store
	identity graph.SubgraphIdentity
}

var _ graph.Subgraph = (*subgraph)(nil)

func (g *subgraph) Identity() graph.SubgraphIdentity {
	return g.identity
}

func (g *subgraph) load(ctx context.Context, id address.NodeAggregateID) (*storedNode, error) {
	return g.store.loadNode(ctx, g.identity.ContentStreamID, g.identity.DimensionVariant, id)
}

func (g *subgraph) toNode(n *storedNode) (*graph.Node, error) {
	node, err := n.toNode(g.identity)
	if err != nil {
		return nil, graph.NewStorageError("decode node", err)
	}
	return node, nil
}

func (g *subgraph) matches(filter graph.NodeTypeCriteria, n *storedNode) bool {
	return filter.Matches(g.store.nodeTypes, graph.NodeTypeName(n.Type))
}

// chain returns the node followed by its ancestors, nearest first.
//
// Under frontend visibility a node that is hidden, or has a hidden
// ancestor, is reported as absent.
func (g *subgraph) chain(ctx context.Context, id address.NodeAggregateID) ([]*storedNode, error) {
	var out []*storedNode
	current := id
	for depth := 0; current != ""; depth++ {
		if depth > maxAncestorDepth {
			return nil, graph.NewStorageError("walk ancestors", fmt.Errorf("hierarchy deeper than %d at %s", maxAncestorDepth, id))
		}
		n, err := g.load(ctx, current)
		if err != nil {
			return nil, err
		}
		if n == nil {
			if depth == 0 {
				return nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
			}
			// dangling parent reference; treat the chain as ending here
			break
		}
		if g.identity.Visibility == graph.VisibilityFrontend {
			hidden, err := g.store.IsHidden(ctx, g.identity.ContentStreamID, g.identity.DimensionVariant, current)
			if err != nil {
				return nil, err
			}
			if hidden {
				return nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
			}
		}
		out = append(out, n)
		current = address.NodeAggregateID(n.Parent)
	}
	return out, nil
}

func (g *subgraph) FindNodeByID(ctx context.Context, id address.NodeAggregateID) (*graph.Node, error) {
	chain, err := g.chain(ctx, id)
	if err != nil {
		return nil, err
	}
	return g.toNode(chain[0])
}

func (g *subgraph) FindParentNode(ctx context.Context, id address.NodeAggregateID) (*graph.Node, error) {
	chain, err := g.chain(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(chain) < 2 {
		return nil, fmt.Errorf("%w: parent of %s", graph.ErrNodeNotFound, id)
	}
	return g.toNode(chain[1])
}

func (g *subgraph) FindChildNodes(ctx context.Context, parentID address.NodeAggregateID, filter string) (graph.Nodes, error) {
	if _, err := g.chain(ctx, parentID); err != nil {
		if graph.IsNotFound(err) {
			return graph.Nodes{}, nil
		}
		return nil, err
	}

	ids, err := g.store.childIDs(ctx, g.identity.ContentStreamID, g.identity.DimensionVariant, parentID)
	if err != nil {
		return nil, err
	}

	criteria := graph.ParseNodeTypeCriteria(filter)
	out := make(graph.Nodes, 0, len(ids))
	for _, id := range ids {
		n, err := g.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if n == nil || !g.matches(criteria, n) {
			continue
		}
		if g.identity.Visibility == graph.VisibilityFrontend {
			hidden, err := g.store.IsHidden(ctx, g.identity.ContentStreamID, g.identity.DimensionVariant, id)
			if err != nil {
				return nil, err
			}
			if hidden {
				continue
			}
		}
		node, err := g.toNode(n)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

func (g *subgraph) FindAncestorNodes(ctx context.Context, id address.NodeAggregateID, filter string) (graph.Nodes, error) {
	chain, err := g.chain(ctx, id)
	if err != nil {
		return nil, err
	}
	criteria := graph.ParseNodeTypeCriteria(filter)
	out := make(graph.Nodes, 0, len(chain)-1)
	for _, n := range chain[1:] {
		if !g.matches(criteria, n) {
			continue
		}
		node, err := g.toNode(n)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

func (g *subgraph) FindClosestNode(ctx context.Context, id address.NodeAggregateID, filter string) (*graph.Node, error) {
	chain, err := g.chain(ctx, id)
	if err != nil {
		return nil, err
	}
	criteria := graph.ParseNodeTypeCriteria(filter)
	for _, n := range chain {
		if g.matches(criteria, n) {
			return g.toNode(n)
		}
	}
	return nil, fmt.Errorf("%w: no node matching %q at or above %s", graph.ErrNodeNotFound, filter, id)
}

func (g *subgraph) CountAncestorNodes(ctx context.Context, id address.NodeAggregateID) (int, error) {
	chain, err := g.chain(ctx, id)
	if err != nil {
		return 0, err
	}
	return len(chain) - 1, nil
}
