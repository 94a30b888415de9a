// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/contentrepo"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/telemetry"
	"github.com/AleutianAI/nodetree/services/nodetree/workspace"
)

const tracerName = "nodetree.record"

// URIBuilder produces the preview link of a node.
type URIBuilder interface {
	PreviewURI(a address.NodeAddress) string
}

// ReadPrivilege decides whether a node may appear in the tree.
type ReadPrivilege interface {
	CanReadNode(ctx context.Context, n *graph.Node) bool
}

// Options configures a Serializer.
type Options struct {
	// Roles name the document, content and ignored node types.
	Roles graph.Roles

	// BaseNodeType filters the children of minimal and full records.
	// Defaults to Roles.Document.
	BaseNodeType string

	// URIs is the presentation context. Without it records carry no uri.
	URIs URIBuilder

	// Privilege hides denied nodes. Nil allows every node.
	Privilege ReadPrivilege

	Metrics *telemetry.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Serializer renders graph nodes into records.
//
// Description:
//
//	Every method takes the content repository the node belongs to, or a
//	contentrepo.Lookup for batches that may span repositories. A node the
//	actor may not read, or that cannot be addressed, renders as a nil
//	record; batch methods drop nil records.
//
// Thread Safety: Safe for concurrent use.
type Serializer struct {
	roles        graph.Roles
	baseNodeType string
	uris         URIBuilder
	privilege    ReadPrivilege
	metrics      *telemetry.Metrics
	logger       *slog.Logger
}

// NewSerializer creates a serializer.
func NewSerializer(opts Options) *Serializer {
	if opts.Roles.Document == "" {
		opts.Roles = graph.DefaultRoles()
	}
	if opts.BaseNodeType == "" {
		opts.BaseNodeType = opts.Roles.DocumentFilter()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Serializer{
		roles:        opts.Roles,
		baseNodeType: opts.BaseNodeType,
		uris:         opts.URIs,
		privilege:    opts.Privilege,
		metrics:      opts.Metrics,
		logger:       opts.Logger.With("component", "record_serializer"),
	}
}

// Roles returns the configured node type roles.
func (s *Serializer) Roles() graph.Roles {
	return s.roles
}

// BaseNodeType returns the default child filter of minimal records.
func (s *Serializer) BaseNodeType() string {
	return s.baseNodeType
}

// nodeScope is the resolved context of one node: its repository, the
// subgraph it was read from and the workspace its content stream belongs to.
type nodeScope struct {
	repo *contentrepo.Repository
	sg   graph.Subgraph
	ws   address.WorkspaceName
	node *graph.Node
}

func (sc *nodeScope) address(n *graph.Node) address.NodeAddress {
	return contentrepo.AddressIn(sc.ws, n)
}

// scope resolves the workspace of n. A nil scope means n cannot be
// addressed and renders as absent.
func (s *Serializer) scope(ctx context.Context, repo *contentrepo.Repository, n *graph.Node) (*nodeScope, error) {
	ws, err := repo.WorkspaceNameFor(ctx, n.Subgraph.ContentStreamID)
	if errors.Is(err, workspace.ErrWorkspaceNotFound) {
		s.logger.Debug("node skipped: content stream has no workspace",
			slog.String("node", string(n.AggregateID)),
			slog.String("content_stream", string(n.Subgraph.ContentStreamID)))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &nodeScope{
		repo: repo,
		sg:   graph.SubgraphOf(repo.Graph, n, n.Subgraph.Visibility),
		ws:   ws,
		node: n,
	}, nil
}

func (s *Serializer) readable(ctx context.Context, n *graph.Node) bool {
	return s.privilege == nil || s.privilege.CanReadNode(ctx, n)
}

// BasicRecord builds the identity part of a record: addresses, type, label,
// depth, parent link, dimension match and timestamps.
//
// Outputs:
//
//	*Record - The record, or nil when the node cannot be addressed.
//	error - Storage failures only.
func (s *Serializer) BasicRecord(ctx context.Context, repo *contentrepo.Repository, n *graph.Node) (*Record, error) {
	sc, err := s.scope(ctx, repo, n)
	if err != nil || sc == nil {
		return nil, err
	}
	return s.basic(ctx, sc)
}

func (s *Serializer) basic(ctx context.Context, sc *nodeScope) (*Record, error) {
	n := sc.node

	var parent *string
	p, err := sc.sg.FindParentNode(ctx, n.AggregateID)
	switch {
	case err == nil:
		serialized := sc.address(p).Serialize()
		parent = &serialized
	case !graph.IsNotFound(err):
		return nil, err
	}

	depth, err := sc.sg.CountAncestorNodes(ctx, n.AggregateID)
	if graph.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	serialized := sc.address(n).Serialize()
	return &Record{
		ContextPath:              serialized,
		NodeAddress:              serialized,
		Name:                     n.Name,
		Identifier:               string(n.AggregateID),
		NodeType:                 n.TypeName,
		Label:                    n.Label(),
		IsAutoCreated:            n.IsTethered(),
		Depth:                    depth,
		Children:                 []ChildSummary{},
		Parent:                   parent,
		MatchesCurrentDimensions: n.MatchesCurrentDimensions(),
		LastModificationDateTime: formatOptionalTime(n.Timestamps.LastModified),
		CreationDateTime:         formatTime(n.Timestamps.Created),
		LastPublicationDateTime:  formatOptionalTime(n.Timestamps.OriginalLastModified),
	}, nil
}

// MinimalRecord renders a record for tree state.
//
// Description:
//
//	Properties hold only _hidden, from the hidden-state projection, and
//	_hiddenInIndex, from the node. Children are filtered by the base node
//	type (or filterOverride) minus the ignored role, plus content children.
//
// Outputs:
//
//	*Record - nil when the actor may not read the node.
//	error - Storage failures only.
func (s *Serializer) MinimalRecord(ctx context.Context, repo *contentrepo.Repository, n *graph.Node, filterOverride string) (*Record, error) {
	if !s.readable(ctx, n) {
		return nil, nil
	}
	sc, err := s.scope(ctx, repo, n)
	if err != nil || sc == nil {
		return nil, err
	}
	rec, err := s.basic(ctx, sc)
	if err != nil || rec == nil {
		return nil, err
	}

	hidden := false
	if repo.HiddenState != nil {
		hidden, err = repo.HiddenState.IsHidden(ctx, n.Subgraph.ContentStreamID, n.Subgraph.DimensionVariant, n.AggregateID)
		if err != nil {
			return nil, err
		}
	}
	hiddenInIndex, _ := n.Property(PropertyHiddenInIndex)
	rec.Properties = map[string]any{
		PropertyHidden:        hidden,
		PropertyHiddenInIndex: hiddenInIndex,
	}
	s.attachURI(sc, rec)

	base := s.baseNodeType
	if filterOverride != "" {
		base = filterOverride
	}
	filter := graph.BuildNodeTypeFilter(graph.NodeTypeStringsToList(base), s.roles.IgnoredList())
	if rec.Children, err = s.childSummaries(ctx, sc, filter); err != nil {
		return nil, err
	}
	return rec, nil
}

// FullRecord renders a record with the complete property bag and
// isFullyLoaded set. Children are filtered by the base node type (or
// filterOverride) plus content children.
func (s *Serializer) FullRecord(ctx context.Context, repo *contentrepo.Repository, n *graph.Node, filterOverride string) (*Record, error) {
	if !s.readable(ctx, n) {
		return nil, nil
	}
	sc, err := s.scope(ctx, repo, n)
	if err != nil || sc == nil {
		return nil, err
	}
	rec, err := s.basic(ctx, sc)
	if err != nil || rec == nil {
		return nil, err
	}

	rec.Properties = convertProperties(n.Properties)
	rec.IsFullyLoaded = true
	s.attachURI(sc, rec)

	filter := s.baseNodeType
	if filterOverride != "" {
		filter = filterOverride
	}
	if rec.Children, err = s.childSummaries(ctx, sc, filter); err != nil {
		return nil, err
	}
	return rec, nil
}

// Render renders n in the given mode.
func (s *Serializer) Render(ctx context.Context, repo *contentrepo.Repository, n *graph.Node, mode Mode, filterOverride string) (*Record, error) {
	switch mode {
	case ModeMinimal:
		return s.MinimalRecord(ctx, repo, n, filterOverride)
	case ModeFull:
		return s.FullRecord(ctx, repo, n, filterOverride)
	default:
		return nil, fmt.Errorf("unknown record mode %q", mode)
	}
}

func (s *Serializer) attachURI(sc *nodeScope, rec *Record) {
	if s.uris == nil || !sc.repo.NodeTypes.IsOfType(sc.node.TypeName, s.roles.Document) {
		return
	}
	rec.URI = s.uris.PreviewURI(sc.address(sc.node))
}

// ChildSummaries lists the children of n matching filter together with its
// content children, without duplicates.
func (s *Serializer) ChildSummaries(ctx context.Context, repo *contentrepo.Repository, n *graph.Node, filter string) ([]ChildSummary, error) {
	sc, err := s.scope(ctx, repo, n)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return []ChildSummary{}, nil
	}
	return s.childSummaries(ctx, sc, filter)
}

func (s *Serializer) childSummaries(ctx context.Context, sc *nodeScope, filter string) ([]ChildSummary, error) {
	documents, err := sc.sg.FindChildNodes(ctx, sc.node.AggregateID, filter)
	if err != nil {
		return nil, err
	}
	contents, err := sc.sg.FindChildNodes(ctx, sc.node.AggregateID, s.roles.ContentFilter())
	if err != nil {
		return nil, err
	}
	children := documents.Union(contents)

	out := make([]ChildSummary, 0, len(children))
	for _, child := range children {
		out = append(out, ChildSummary{
			ContextPath: sc.address(child).Serialize(),
			NodeType:    child.TypeName,
		})
	}
	return out, nil
}

// RenderNodes renders a batch in the given mode, dropping absent records.
//
// Description:
//
//	Each node is rendered against the repository named by its subgraph
//	identity, so a batch may span repositories.
//
// Inputs:
//
//	repos - Resolves the repository of each node.
//	nodes - Nodes to render. Nil entries are skipped.
//	mode - ModeMinimal or ModeFull.
//	filterOverride - Optional child filter replacing the base node type.
//
// Outputs:
//
//	[]*Record - Records in input order, without absent ones.
//	error - Unknown repositories and storage failures.
func (s *Serializer) RenderNodes(ctx context.Context, repos contentrepo.Lookup, nodes graph.Nodes, mode Mode, filterOverride string) ([]*Record, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Serializer.RenderNodes",
		trace.WithAttributes(
			attribute.Int("nodes", len(nodes)),
			attribute.String("mode", string(mode)),
		),
	)
	defer span.End()

	out := make([]*Record, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		repo, err := repos.Get(n.Subgraph.ContentRepositoryID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		rec, err := s.Render(ctx, repo, n, mode, filterOverride)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if rec != nil {
			out = append(out, rec)
		}
	}
	s.metrics.RecordRendered(ctx, string(mode), len(out))
	span.SetAttributes(attribute.Int("records", len(out)))
	telemetry.SetSpanOK(span)
	return out, nil
}

// RenderNodesWithParents renders search hits together with the document
// nodes on their path.
//
// Description:
//
//	Every hit renders minimal with the document role as child filter and
//	is flagged matched. Walking upward from each hit, parents render the
//	same way while they are documents and are flagged intermediate; a
//	record reached twice keeps a single entry with both flags merged.
//	Hits without a parent are kept without a path.
//
// Outputs:
//
//	[]*Record - Records in first-seen order.
//	error - Unknown repositories and storage failures.
func (s *Serializer) RenderNodesWithParents(ctx context.Context, repos contentrepo.Lookup, nodes graph.Nodes) ([]*Record, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Serializer.RenderNodesWithParents",
		trace.WithAttributes(attribute.Int("nodes", len(nodes))),
	)
	defer span.End()

	override := s.roles.DocumentFilter()
	rendered := make(map[address.NodeAggregateID]*Record, len(nodes))
	var order []address.NodeAggregateID

	for _, n := range nodes {
		if n == nil {
			continue
		}
		repo, err := repos.Get(n.Subgraph.ContentRepositoryID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}

		if existing, ok := rendered[n.AggregateID]; ok {
			existing.Matched = true
		} else {
			rec, err := s.MinimalRecord(ctx, repo, n, override)
			if err != nil {
				telemetry.RecordError(span, err)
				return nil, err
			}
			if rec == nil {
				continue
			}
			rec.Matched = true
			rendered[n.AggregateID] = rec
			order = append(order, n.AggregateID)
		}

		sg := graph.SubgraphOf(repo.Graph, n, n.Subgraph.Visibility)
		parent, err := sg.FindParentNode(ctx, n.AggregateID)
		for err == nil && repo.NodeTypes.IsOfType(parent.TypeName, s.roles.Document) {
			if existing, ok := rendered[parent.AggregateID]; ok {
				existing.Intermediate = true
			} else {
				rec, rerr := s.MinimalRecord(ctx, repo, parent, override)
				if rerr != nil {
					telemetry.RecordError(span, rerr)
					return nil, rerr
				}
				if rec != nil {
					rec.Intermediate = true
					rendered[parent.AggregateID] = rec
					order = append(order, parent.AggregateID)
				}
			}
			parent, err = sg.FindParentNode(ctx, parent.AggregateID)
		}
		if err != nil && !graph.IsNotFound(err) {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	out := make([]*Record, 0, len(order))
	for _, id := range order {
		out = append(out, rendered[id])
	}
	s.metrics.RecordRendered(ctx, string(ModeMinimal), len(out))
	telemetry.SetSpanOK(span)
	return out, nil
}

// RenderDocumentNodeAndChildContent renders the document and every content
// node below it as full records, keyed by serialized address. Nodes below
// an absent record are not visited.
func (s *Serializer) RenderDocumentNodeAndChildContent(ctx context.Context, repo *contentrepo.Repository, document *graph.Node) (map[string]*Record, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Serializer.RenderDocumentNodeAndChildContent",
		trace.WithAttributes(attribute.String("document", string(document.AggregateID))),
	)
	defer span.End()

	out := make(map[string]*Record)
	sg := graph.SubgraphOf(repo.Graph, document, document.Subgraph.Visibility)
	contentFilter := s.roles.ContentFilter()

	stack := graph.Nodes{document}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		rec, err := s.FullRecord(ctx, repo, n, "")
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if rec == nil {
			continue
		}
		out[rec.ContextPath] = rec

		children, err := sg.FindChildNodes(ctx, n.AggregateID, contentFilter)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	s.metrics.RecordRendered(ctx, string(ModeFull), len(out))
	telemetry.SetSpanOK(span)
	return out, nil
}

// DefaultNodesForBackend renders the site and the current document as full
// records, keyed by serialized address.
func (s *Serializer) DefaultNodesForBackend(ctx context.Context, repo *contentrepo.Repository, site, document *graph.Node) (map[string]*Record, error) {
	out := make(map[string]*Record, 2)
	for _, n := range []*graph.Node{site, document} {
		if n == nil {
			continue
		}
		rec, err := s.FullRecord(ctx, repo, n, "")
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out[rec.ContextPath] = rec
		}
	}
	s.metrics.RecordRendered(ctx, string(ModeFull), len(out))
	return out, nil
}
