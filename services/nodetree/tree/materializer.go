// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tree materializes the partially loaded document tree shown by the
// UI: a depth bounded walk from the site node that always contains the path
// to the focused document, explicitly toggled nodes, and pinned clipboard
// nodes.
package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/contentrepo"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/telemetry"
)

const tracerName = "nodetree.tree"

var (
	// ErrSiteNotFound indicates the tree root does not resolve.
	ErrSiteNotFound = errors.New("site node not found")

	// ErrInvalidQuery indicates a malformed tree query.
	ErrInvalidQuery = errors.New("invalid tree query")
)

// Request holds the walk parameters of a tree query.
type Request struct {
	// BaseNodeType filters the children followed by the walk. Defaults to
	// the document role.
	BaseNodeType string

	// LoadingDepth limits the walk below the site; 0 means unlimited.
	LoadingDepth int

	// Toggled nodes are expanded regardless of depth.
	Toggled []address.NodeAddress

	// Clipboard nodes are added unexpanded when they resolve.
	Clipboard []address.NodeAddress
}

// Query is a Request addressed by serialized node addresses.
type Query struct {
	Site     address.NodeAddress
	Document address.NodeAddress

	// Visibility of the walk. Defaults to VisibilityWithoutRestrictions so
	// hidden nodes show up flagged instead of missing.
	Visibility graph.Visibility

	Request
}

// Tree is a materialized tree.
//
// Nodes is keyed by aggregate id, so a node reached twice is held once.
// Order lists the keys in insertion order, which is depth first in sibling
// order followed by the forced document and clipboard nodes.
type Tree struct {
	Site      *graph.Node
	Document  *graph.Node
	Workspace address.WorkspaceName
	Nodes     map[address.NodeAggregateID]*graph.Node
	Order     []address.NodeAggregateID
}

// Len returns the number of materialized nodes.
func (t *Tree) Len() int {
	return len(t.Nodes)
}

// Contains reports whether id is materialized.
func (t *Tree) Contains(id address.NodeAggregateID) bool {
	_, ok := t.Nodes[id]
	return ok
}

// List returns the nodes in Order.
func (t *Tree) List() graph.Nodes {
	out := make(graph.Nodes, 0, len(t.Order))
	for _, id := range t.Order {
		out = append(out, t.Nodes[id])
	}
	return out
}

// Address returns the address of a materialized node.
func (t *Tree) Address(n *graph.Node) address.NodeAddress {
	return contentrepo.AddressIn(t.Workspace, n)
}

func (t *Tree) insert(n *graph.Node) bool {
	if _, ok := t.Nodes[n.AggregateID]; ok {
		return false
	}
	t.Nodes[n.AggregateID] = n
	t.Order = append(t.Order, n.AggregateID)
	return true
}

// Options configures a Materializer.
type Options struct {
	Roles   graph.Roles
	Metrics *telemetry.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Materializer walks the content graph into trees.
//
// Thread Safety: Safe for concurrent use. Each call owns its accumulator.
type Materializer struct {
	roles   graph.Roles
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewMaterializer creates a materializer.
func NewMaterializer(opts Options) *Materializer {
	if opts.Roles.Document == "" {
		opts.Roles = graph.DefaultRoles()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Materializer{
		roles:   opts.Roles,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("component", "tree_materializer"),
	}
}

// MaterializeAt resolves the site and document addresses and materializes
// the tree between them.
//
// Description:
//
//	The site must resolve. A document that does not resolve falls back to
//	the site, so a stale focus still yields a tree. The zero Document
//	address means the site itself.
//
// Outputs:
//
//	*Tree - The materialized tree.
//	error - ErrInvalidQuery, ErrSiteNotFound, or a storage failure.
func (m *Materializer) MaterializeAt(ctx context.Context, repo *contentrepo.Repository, q Query) (*Tree, error) {
	if q.Site.IsZero() {
		return nil, fmt.Errorf("%w: site address is required", ErrInvalidQuery)
	}
	if q.Visibility == "" {
		q.Visibility = graph.VisibilityWithoutRestrictions
	}

	site, err := repo.FindNodeByAddress(ctx, q.Site, q.Visibility)
	if graph.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, q.Site.NodeAggregateID)
	}
	if err != nil {
		return nil, err
	}

	workspace := q.Site.WorkspaceName
	document := site
	if !q.Document.IsZero() {
		doc, err := repo.FindNodeByAddress(ctx, q.Document, q.Visibility)
		switch {
		case err == nil:
			document = doc
			workspace = q.Document.WorkspaceName
		case graph.IsNotFound(err):
			m.logger.Debug("document not found, focusing site",
				slog.String("document", string(q.Document.NodeAggregateID)))
		default:
			return nil, err
		}
	}
	return m.materialize(ctx, repo, workspace, site, document, q.Request)
}

// Materialize walks the tree below site with the focus on document.
//
// Description:
//
//	Starting at the site, a node's children, filtered by the base node
//	type, are loaded when any of the following holds:
//	  - its walk depth below the site is less than LoadingDepth
//	  - LoadingDepth is 0
//	  - its address is among the toggled addresses
//	  - it is a document ancestor of the focused document
//	The document is added when the walk did not reach it, and every
//	clipboard address that resolves is added without its children.
//	Unresolvable clipboard addresses are dropped.
//
// Inputs:
//
//	repo - Content repository of both nodes.
//	site - Tree root.
//	document - Focused document; its subgraph is the subgraph walked.
//	req - Walk parameters.
//
// Outputs:
//
//	*Tree - The materialized tree.
//	error - ErrInvalidQuery, workspace lookup or storage failures.
func (m *Materializer) Materialize(ctx context.Context, repo *contentrepo.Repository, site, document *graph.Node, req Request) (*Tree, error) {
	if site == nil || document == nil {
		return nil, fmt.Errorf("%w: site and document are required", ErrInvalidQuery)
	}
	workspace, err := repo.WorkspaceNameFor(ctx, document.Subgraph.ContentStreamID)
	if err != nil {
		return nil, err
	}
	return m.materialize(ctx, repo, workspace, site, document, req)
}

type frame struct {
	node  *graph.Node
	level int
}

func (m *Materializer) materialize(ctx context.Context, repo *contentrepo.Repository, workspace address.WorkspaceName, site, document *graph.Node, req Request) (t *Tree, err error) {
	started := time.Now()
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Materializer.Materialize",
		trace.WithAttributes(
			attribute.String("site", string(site.AggregateID)),
			attribute.String("document", string(document.AggregateID)),
			attribute.Int("loading_depth", req.LoadingDepth),
			attribute.Int("toggled", len(req.Toggled)),
			attribute.Int("clipboard", len(req.Clipboard)),
		),
	)
	defer span.End()
	defer func() {
		n := 0
		if t != nil {
			n = t.Len()
		}
		m.metrics.RecordTreeQuery(ctx, started, n, err)
		if err != nil {
			telemetry.RecordError(span, err)
			return
		}
		span.SetAttributes(attribute.Int("nodes", n))
		telemetry.SetSpanOK(span)
	}()

	if req.LoadingDepth < 0 {
		return nil, fmt.Errorf("%w: loading depth %d is negative", ErrInvalidQuery, req.LoadingDepth)
	}
	baseFilter := req.BaseNodeType
	if baseFilter == "" {
		baseFilter = m.roles.DocumentFilter()
	}

	sg := graph.SubgraphOf(repo.Graph, document, document.Subgraph.Visibility)

	ancestors := make(map[address.NodeAggregateID]struct{})
	if document.AggregateID != site.AggregateID {
		found, err := sg.FindAncestorNodes(ctx, document.AggregateID, m.roles.DocumentFilter())
		if err != nil && !graph.IsNotFound(err) {
			return nil, err
		}
		for _, id := range found.AggregateIDs() {
			ancestors[id] = struct{}{}
		}
	}

	toggled := make(map[address.NodeAddress]struct{}, len(req.Toggled))
	for _, a := range req.Toggled {
		toggled[a] = struct{}{}
	}

	t = &Tree{
		Site:      site,
		Document:  document,
		Workspace: workspace,
		Nodes:     make(map[address.NodeAggregateID]*graph.Node),
	}
	t.insert(site)

	expanded := make(map[address.NodeAggregateID]struct{})
	stack := []frame{{node: site, level: 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		id := f.node.AggregateID

		t.insert(f.node)
		if _, done := expanded[id]; done {
			continue
		}
		if !m.shouldExpand(t, f, req.LoadingDepth, toggled, ancestors) {
			continue
		}
		expanded[id] = struct{}{}

		children, err := sg.FindChildNodes(ctx, id, baseFilter)
		if err != nil {
			return nil, err
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: children[i], level: f.level + 1})
		}
	}

	if t.insert(document) {
		m.logger.Debug("document not reached by walk, inserted",
			slog.String("document", string(document.AggregateID)))
	}

	for _, a := range req.Clipboard {
		n, err := sg.FindNodeByID(ctx, a.NodeAggregateID)
		if graph.IsNotFound(err) {
			m.logger.Debug("clipboard node dropped", slog.String("node", string(a.NodeAggregateID)))
			continue
		}
		if err != nil {
			return nil, err
		}
		t.insert(n)
	}

	return t, nil
}

func (m *Materializer) shouldExpand(t *Tree, f frame, depth int, toggled map[address.NodeAddress]struct{}, ancestors map[address.NodeAggregateID]struct{}) bool {
	if f.level < depth || depth == 0 {
		return true
	}
	if _, ok := toggled[t.Address(f.node)]; ok {
		return true
	}
	_, ok := ancestors[f.node.AggregateID]
	return ok
}
