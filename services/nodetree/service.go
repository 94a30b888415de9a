// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package nodetree serves the Neos UI read model over HTTP.
//
// The service answers the read side of the content editing UI: the
// document tree, node records for the inspector and the content tree,
// pending changes of a workspace and the publish targets of the actor. All
// reads go through a contentrepo.Lookup, so one process can serve several
// content repositories.
package nodetree

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/changes"
	"github.com/AleutianAI/nodetree/services/nodetree/contentrepo"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/privilege"
	"github.com/AleutianAI/nodetree/services/nodetree/record"
	"github.com/AleutianAI/nodetree/services/nodetree/telemetry"
	"github.com/AleutianAI/nodetree/services/nodetree/tree"
)

// ServiceVersion is reported by the health endpoint and the CLI.
const ServiceVersion = "0.3.0"

// DefaultRepositoryID is used when a request names no repository.
const DefaultRepositoryID graph.ContentRepositoryID = "default"

// Repositories is the repository lookup the service reads from.
type Repositories interface {
	contentrepo.Lookup
	IDs() []graph.ContentRepositoryID
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	// DefaultRepository defaults to DefaultRepositoryID.
	DefaultRepository graph.ContentRepositoryID

	Roles graph.Roles

	// BaseNodeType is the default tree filter. Defaults to the document role.
	BaseNodeType string

	// Policy decides read and publish privileges. Defaults to a
	// StaticPolicy that allows reads and grants no publishing.
	Policy privilege.Policy

	// URIs attaches preview links to document records. Optional.
	URIs record.URIBuilder

	Metrics *telemetry.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Service wires the read model components behind the HTTP handlers.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	repos        Repositories
	defaultRepo  graph.ContentRepositoryID
	serializer   *record.Serializer
	materializer *tree.Materializer
	tracker      *changes.Tracker
	roles        graph.Roles
	logger       *slog.Logger
	ready        atomic.Bool
}

// NewService creates a service reading from repos. The service starts not
// ready; call SetReady once storage is seeded.
func NewService(repos Repositories, opts ServiceOptions) *Service {
	if opts.DefaultRepository == "" {
		opts.DefaultRepository = DefaultRepositoryID
	}
	if opts.Roles.Document == "" {
		opts.Roles = graph.DefaultRoles()
	}
	if opts.Policy == nil {
		opts.Policy = privilege.NewStaticPolicy(privilege.StaticConfig{}, nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Service{
		repos:       repos,
		defaultRepo: opts.DefaultRepository,
		serializer: record.NewSerializer(record.Options{
			Roles:        opts.Roles,
			BaseNodeType: opts.BaseNodeType,
			URIs:         opts.URIs,
			Privilege:    opts.Policy,
			Metrics:      opts.Metrics,
			Logger:       opts.Logger,
		}),
		materializer: tree.NewMaterializer(tree.Options{
			Roles:   opts.Roles,
			Metrics: opts.Metrics,
			Logger:  opts.Logger,
		}),
		tracker: changes.NewTracker(changes.Options{
			Roles:   opts.Roles,
			Policy:  opts.Policy,
			Metrics: opts.Metrics,
			Logger:  opts.Logger,
		}),
		roles:  opts.Roles,
		logger: opts.Logger.With("component", "nodetree_service"),
	}
}

// SetReady marks the service ready or not ready.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Ready reports readiness and the served repositories.
func (s *Service) Ready() ReadyResponse {
	ids := s.repos.IDs()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, string(id))
	}
	sort.Strings(names)
	return ReadyResponse{Ready: s.ready.Load(), Repositories: names}
}

func (s *Service) repository(id string) (*contentrepo.Repository, error) {
	return s.repos.Get(s.repositoryID(id))
}

func (s *Service) repositoryID(id string) graph.ContentRepositoryID {
	if id == "" {
		return s.defaultRepo
	}
	return graph.ContentRepositoryID(id)
}

// resolve returns the nodes addresses point at, in order. Addresses that
// do not resolve are dropped.
func resolve(ctx context.Context, repo *contentrepo.Repository, addrs []address.NodeAddress) (graph.Nodes, error) {
	nodes := make(graph.Nodes, 0, len(addrs))
	for _, a := range addrs {
		n, err := repo.FindNodeByAddress(ctx, a, graph.VisibilityWithoutRestrictions)
		if graph.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// parseOptional parses raw unless it is empty.
func parseOptional(raw string) (address.NodeAddress, error) {
	if raw == "" {
		return address.NodeAddress{}, nil
	}
	return address.Parse(raw)
}

// Tree materializes the document tree and renders it as minimal records
// keyed by aggregate id.
func (s *Service) Tree(ctx context.Context, req TreeRequest) (*TreeResponse, error) {
	site, err := address.Parse(req.Site)
	if err != nil {
		return nil, err
	}
	document, err := parseOptional(req.Document)
	if err != nil {
		return nil, err
	}
	toggled, err := address.ParseAll(req.ToggledNodes)
	if err != nil {
		return nil, err
	}
	clipboard, err := address.ParseAll(req.ClipboardNodes)
	if err != nil {
		return nil, err
	}
	repo, err := s.repository(req.Repository)
	if err != nil {
		return nil, err
	}

	t, err := s.materializer.MaterializeAt(ctx, repo, tree.Query{
		Site:       site,
		Document:   document,
		Visibility: req.Visibility,
		Request: tree.Request{
			BaseNodeType: req.BaseNodeType,
			LoadingDepth: req.LoadingDepth,
			Toggled:      toggled,
			Clipboard:    clipboard,
		},
	})
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*record.Record, t.Len())
	for _, n := range t.List() {
		rec, err := s.serializer.MinimalRecord(ctx, repo, n, req.BaseNodeType)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			nodes[string(n.AggregateID)] = rec
		}
	}
	return &TreeResponse{
		Site:     t.Address(t.Site).Serialize(),
		Document: t.Address(t.Document).Serialize(),
		Nodes:    nodes,
	}, nil
}

// Nodes renders a batch of addressed nodes. Unresolvable and unreadable
// nodes are omitted.
func (s *Service) Nodes(ctx context.Context, req NodesRequest) (*RecordsResponse, error) {
	addrs, err := address.ParseAll(req.Nodes)
	if err != nil {
		return nil, err
	}
	repo, err := s.repository(req.Repository)
	if err != nil {
		return nil, err
	}
	nodes, err := resolve(ctx, repo, addrs)
	if err != nil {
		return nil, err
	}

	mode := record.ModeMinimal
	if req.Full {
		mode = record.ModeFull
	}
	records, err := s.serializer.RenderNodes(ctx, s.repos, nodes, mode, req.NodeTypeFilter)
	if err != nil {
		return nil, err
	}
	return &RecordsResponse{Nodes: records}, nil
}

// Node renders one node as a full record.
func (s *Service) Node(ctx context.Context, repoID, raw string) (*record.Record, error) {
	a, err := address.Parse(raw)
	if err != nil {
		return nil, err
	}
	repo, err := s.repository(repoID)
	if err != nil {
		return nil, err
	}
	n, err := repo.FindNodeByAddress(ctx, a, graph.VisibilityWithoutRestrictions)
	if graph.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, a.NodeAggregateID)
	}
	if err != nil {
		return nil, err
	}
	rec, err := s.serializer.FullRecord(ctx, repo, n, "")
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, a.NodeAggregateID)
	}
	return rec, nil
}

// NodesWithParents renders search hits with their document ancestors.
func (s *Service) NodesWithParents(ctx context.Context, req NodesWithParentsRequest) (*RecordsResponse, error) {
	addrs, err := address.ParseAll(req.Nodes)
	if err != nil {
		return nil, err
	}
	repo, err := s.repository(req.Repository)
	if err != nil {
		return nil, err
	}
	nodes, err := resolve(ctx, repo, addrs)
	if err != nil {
		return nil, err
	}
	records, err := s.serializer.RenderNodesWithParents(ctx, s.repos, nodes)
	if err != nil {
		return nil, err
	}
	return &RecordsResponse{Nodes: records}, nil
}

// findDocument resolves a document address.
func (s *Service) findDocument(ctx context.Context, repo *contentrepo.Repository, a address.NodeAddress) (*graph.Node, error) {
	n, err := repo.FindNodeByAddress(ctx, a, graph.VisibilityWithoutRestrictions)
	if graph.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, a.NodeAggregateID)
	}
	if err != nil {
		return nil, err
	}
	if !repo.NodeTypes.IsOfType(n.TypeName, s.roles.Document) {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotDocument, n.AggregateID, n.TypeName)
	}
	return n, nil
}

// DocumentContent renders a document and its content as full records keyed
// by serialized address.
func (s *Service) DocumentContent(ctx context.Context, repoID, raw string) (*RecordMapResponse, error) {
	a, err := address.Parse(raw)
	if err != nil {
		return nil, err
	}
	repo, err := s.repository(repoID)
	if err != nil {
		return nil, err
	}
	doc, err := s.findDocument(ctx, repo, a)
	if err != nil {
		return nil, err
	}
	records, err := s.serializer.RenderDocumentNodeAndChildContent(ctx, repo, doc)
	if err != nil {
		return nil, err
	}
	return &RecordMapResponse{Nodes: records}, nil
}

// Defaults renders the site and the current document as full records. An
// empty document means the site.
func (s *Service) Defaults(ctx context.Context, req DefaultsRequest) (*RecordMapResponse, error) {
	siteAddr, err := address.Parse(req.Site)
	if err != nil {
		return nil, err
	}
	docAddr, err := parseOptional(req.Document)
	if err != nil {
		return nil, err
	}
	repo, err := s.repository(req.Repository)
	if err != nil {
		return nil, err
	}

	site, err := repo.FindNodeByAddress(ctx, siteAddr, graph.VisibilityWithoutRestrictions)
	if graph.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", tree.ErrSiteNotFound, siteAddr.NodeAggregateID)
	}
	if err != nil {
		return nil, err
	}
	document := site
	if !docAddr.IsZero() {
		if document, err = s.findDocument(ctx, repo, docAddr); err != nil {
			return nil, err
		}
	}

	records, err := s.serializer.DefaultNodesForBackend(ctx, repo, site, document)
	if err != nil {
		return nil, err
	}
	return &RecordMapResponse{Nodes: records}, nil
}

// Unpublished lists the nodes with pending changes in a workspace.
func (s *Service) Unpublished(ctx context.Context, repoID string, ws address.WorkspaceName) (*UnpublishedResponse, error) {
	infos, err := s.tracker.UnpublishedNodeInfo(ctx, s.repos, ws, s.repositoryID(repoID))
	if err != nil {
		return nil, err
	}
	return &UnpublishedResponse{Workspace: ws, Nodes: infos}, nil
}

// Targets lists the workspaces the actor in ctx may publish to.
func (s *Service) Targets(ctx context.Context, repoID string) (*TargetsResponse, error) {
	repo, err := s.repository(repoID)
	if err != nil {
		return nil, err
	}
	targets, err := s.tracker.AllowedTargetWorkspaces(ctx, repo)
	if err != nil {
		return nil, err
	}
	return &TargetsResponse{Workspaces: targets}, nil
}

// PredictDiscard lists the nodes a discard of the given addresses would
// remove from ws.
func (s *Service) PredictDiscard(ctx context.Context, ws address.WorkspaceName, req DiscardPredictRequest) (*DiscardPredictResponse, error) {
	targets, err := address.ParseAll(req.Nodes)
	if err != nil {
		return nil, err
	}
	repo, err := s.repository(req.Repository)
	if err != nil {
		return nil, err
	}
	removals, err := s.tracker.PredictRemovalsFromDiscard(ctx, repo, changes.DiscardCommand{
		WorkspaceName: ws,
		Targets:       targets,
	})
	if err != nil {
		return nil, err
	}

	out := make([]RemovalPrediction, 0, len(removals))
	for _, r := range removals {
		out = append(out, RemovalPrediction{
			ContextPath:       r.ChildAddress.Serialize(),
			ParentContextPath: r.ParentAddress.Serialize(),
			NodeType:          r.Child.TypeName,
		})
	}
	return &DiscardPredictResponse{Removals: out}, nil
}
