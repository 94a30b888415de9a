// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package changes answers workspace questions of the UI: which nodes carry
// unpublished changes, which workspaces the actor may publish to, and which
// nodes a discard would remove.
//
// Pending changes that no longer resolve in the graph are skipped and
// logged, never reported as failures. Only storage failures abort a call.
package changes

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/contentrepo"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/privilege"
	"github.com/AleutianAI/nodetree/services/nodetree/telemetry"
	"github.com/AleutianAI/nodetree/services/nodetree/workspace"
)

const tracerName = "nodetree.changes"

// Skip reasons reported to logs and metrics.
const (
	skipNodeGone       = "node_not_found"
	skipNoDocument     = "document_not_found"
	skipParentGone     = "parent_not_found"
	skipNotInWorkspace = "workspace_not_found"
)

// NodeInfo pairs a changed node with the document the UI refreshes for it.
type NodeInfo struct {
	ContextPath         string `json:"contextPath"`
	DocumentContextPath string `json:"documentContextPath"`
}

// TargetWorkspace describes a workspace the actor may pick as publish target.
type TargetWorkspace struct {
	Name        address.WorkspaceName `json:"name"`
	Title       string                `json:"title"`
	Description string                `json:"description"`

	// ReadOnly is set when the actor may not publish into the workspace.
	ReadOnly bool `json:"readonly"`
}

// DiscardCommand names the node variants to discard from a workspace.
//
// Only the content stream, dimension variant and aggregate id of a target
// take part in matching pending changes.
type DiscardCommand struct {
	WorkspaceName address.WorkspaceName
	Targets       []address.NodeAddress
}

// nodeIdentity is the workspace independent identity of a node variant.
type nodeIdentity struct {
	cs address.ContentStreamID
	id address.NodeAggregateID
	dv address.DimensionVariant
}

func identityOf(a address.NodeAddress) nodeIdentity {
	return nodeIdentity{cs: a.ContentStreamID, id: a.NodeAggregateID, dv: a.DimensionVariant}
}

// Removal predicts that discarding Child removes it from below Parent.
type Removal struct {
	Child  *graph.Node
	Parent *graph.Node

	ChildAddress  address.NodeAddress
	ParentAddress address.NodeAddress
}

// Options configures a Tracker.
type Options struct {
	Roles graph.Roles

	// Policy defaults to a StaticPolicy that grants nothing.
	Policy privilege.Policy

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Tracker maps the pending change projection onto addressable nodes.
//
// Thread Safety: Safe for concurrent use.
type Tracker struct {
	roles   graph.Roles
	policy  privilege.Policy
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewTracker creates a tracker.
func NewTracker(opts Options) *Tracker {
	if opts.Roles.Document == "" {
		opts.Roles = graph.DefaultRoles()
	}
	if opts.Policy == nil {
		opts.Policy = privilege.NewStaticPolicy(privilege.StaticConfig{}, nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Tracker{
		roles:   opts.Roles,
		policy:  opts.Policy,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("component", "change_tracker"),
	}
}

func (t *Tracker) skip(ctx context.Context, reason string, id address.NodeAggregateID) {
	t.logger.Debug("pending change skipped",
		slog.String("node", string(id)),
		slog.String("reason", reason))
	t.metrics.RecordSkippedChange(ctx, reason)
}

func (t *Tracker) finish(ctx context.Context, span trace.Span, operation string, err error) {
	t.metrics.RecordChangeQuery(ctx, operation, err)
	if err != nil {
		telemetry.RecordError(span, err)
		return
	}
	telemetry.SetSpanOK(span)
}

// findWorkspace returns nil without error when the workspace does not exist.
func findWorkspace(ctx context.Context, repo *contentrepo.Repository, name address.WorkspaceName) (*workspace.Workspace, error) {
	ws, err := repo.Workspaces.FindOneByName(ctx, name)
	if errors.Is(err, workspace.ErrWorkspaceNotFound) {
		return nil, nil
	}
	return ws, err
}

// UnpublishedNodeInfo lists the nodes with pending changes in a workspace.
//
// Description:
//
//	Unknown workspaces and root workspaces yield an empty list. For a
//	deletion, both addresses are built from the change itself: the node
//	address and the removal attachment point in the change's origin
//	variant. Any other change is resolved without visibility restrictions
//	together with its closest document; changes where either is missing
//	are skipped.
//
// Inputs:
//
//	repos - Repository lookup.
//	name - Workspace to inspect.
//	repoID - Repository holding the workspace.
//
// Outputs:
//
//	[]NodeInfo - One entry per resolvable change, in projection order.
//	error - contentrepo.ErrRepositoryNotFound or a storage failure.
func (t *Tracker) UnpublishedNodeInfo(ctx context.Context, repos contentrepo.Lookup, name address.WorkspaceName, repoID graph.ContentRepositoryID) (out []NodeInfo, err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Tracker.UnpublishedNodeInfo",
		trace.WithAttributes(
			attribute.String("workspace", string(name)),
			attribute.String("repository", string(repoID)),
		),
	)
	defer span.End()
	defer func() { t.finish(ctx, span, "unpublished", err) }()

	out = []NodeInfo{}
	repo, err := repos.Get(repoID)
	if err != nil {
		return nil, err
	}
	ws, err := findWorkspace(ctx, repo, name)
	if err != nil {
		return nil, err
	}
	if ws == nil || ws.IsRoot() {
		return out, nil
	}

	pending, err := repo.Changes.FindByContentStreamID(ctx, ws.CurrentContentStreamID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("changes", len(pending)))

	documentFilter := t.roles.DocumentFilter()
	for _, c := range pending {
		if c.IsRemoval() {
			removed := address.NodeAddress{
				ContentStreamID:  c.ContentStreamID,
				DimensionVariant: c.OriginDimensionVariant,
				NodeAggregateID:  c.NodeAggregateID,
				WorkspaceName:    name,
			}
			out = append(out, NodeInfo{
				ContextPath:         removed.Serialize(),
				DocumentContextPath: removed.WithNodeAggregateID(c.RemovalAttachmentPoint).Serialize(),
			})
			continue
		}

		sg := repo.Graph.Subgraph(ws.CurrentContentStreamID, c.OriginDimensionVariant, graph.VisibilityWithoutRestrictions)
		n, err := sg.FindNodeByID(ctx, c.NodeAggregateID)
		if graph.IsNotFound(err) {
			t.skip(ctx, skipNodeGone, c.NodeAggregateID)
			continue
		}
		if err != nil {
			return nil, err
		}
		doc, err := sg.FindClosestNode(ctx, n.AggregateID, documentFilter)
		if graph.IsNotFound(err) {
			t.skip(ctx, skipNoDocument, c.NodeAggregateID)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, NodeInfo{
			ContextPath:         contentrepo.AddressIn(name, n).Serialize(),
			DocumentContextPath: contentrepo.AddressIn(name, doc).Serialize(),
		})
	}
	return out, nil
}

// AllowedTargetWorkspaces lists the workspaces the current actor may select
// as publish target, keyed by name.
//
// Description:
//
//	Workspaces owned by another actor are excluded, and so is every
//	personal workspace including the actor's own. ReadOnly reflects the
//	publish privilege of the policy.
func (t *Tracker) AllowedTargetWorkspaces(ctx context.Context, repo *contentrepo.Repository) (out map[address.WorkspaceName]TargetWorkspace, err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Tracker.AllowedTargetWorkspaces",
		trace.WithAttributes(attribute.String("repository", string(repo.ID))))
	defer span.End()
	defer func() { t.finish(ctx, span, "targets", err) }()

	actor := t.policy.CurrentActor(ctx)
	personal := workspace.PersonalWorkspaceName(actor)

	all, err := repo.Workspaces.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	out = make(map[address.WorkspaceName]TargetWorkspace, len(all))
	for _, ws := range all {
		if !ws.IsShared() && ws.Owner != actor {
			continue
		}
		if ws.Name == personal || ws.IsPersonal() {
			continue
		}
		out[ws.Name] = TargetWorkspace{
			Name:        ws.Name,
			Title:       ws.Title,
			Description: ws.Description,
			ReadOnly:    !t.policy.CanPublishTo(ctx, ws),
		}
	}
	return out, nil
}

// PredictRemovalsFromDiscard predicts the nodes that disappear when the
// command's targets are discarded.
//
// Description:
//
//	Only pending creations are considered: discarding a creation removes
//	the node, discarding a modification does not. A target matching a
//	creation triple exactly yields a Removal when both the node and its
//	parent resolve without visibility restrictions. Targets are deduplicated
//	by (content stream, aggregate id, dimension variant), so each triple
//	yields at most one Removal. Addresses are built in the discarded
//	workspace, whatever workspace the targets name.
//
// Outputs:
//
//	[]Removal - Predictions in projection order. Empty when the workspace
//	does not exist.
//	error - Storage failures.
func (t *Tracker) PredictRemovalsFromDiscard(ctx context.Context, repo *contentrepo.Repository, cmd DiscardCommand) (out []Removal, err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Tracker.PredictRemovalsFromDiscard",
		trace.WithAttributes(
			attribute.String("workspace", string(cmd.WorkspaceName)),
			attribute.Int("targets", len(cmd.Targets)),
		),
	)
	defer span.End()
	defer func() { t.finish(ctx, span, "discard_predict", err) }()

	out = []Removal{}
	ws, err := findWorkspace(ctx, repo, cmd.WorkspaceName)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		t.logger.Debug("discard prediction for unknown workspace",
			slog.String("workspace", string(cmd.WorkspaceName)))
		t.metrics.RecordSkippedChange(ctx, skipNotInWorkspace)
		return out, nil
	}

	pending, err := repo.Changes.FindByContentStreamID(ctx, ws.CurrentContentStreamID)
	if err != nil {
		return nil, err
	}

	handled := make(map[nodeIdentity]struct{}, len(cmd.Targets))
	for _, c := range pending {
		if !c.Created {
			continue
		}
		for _, target := range cmd.Targets {
			key := identityOf(target)
			if _, done := handled[key]; done {
				continue
			}
			if !c.Matches(target.ContentStreamID, target.NodeAggregateID, target.DimensionVariant) {
				continue
			}

			sg := repo.Subgraph(target, graph.VisibilityWithoutRestrictions)
			child, err := sg.FindNodeByID(ctx, target.NodeAggregateID)
			if graph.IsNotFound(err) {
				t.skip(ctx, skipNodeGone, target.NodeAggregateID)
				continue
			}
			if err != nil {
				return nil, err
			}
			parent, err := sg.FindParentNode(ctx, target.NodeAggregateID)
			if graph.IsNotFound(err) {
				t.skip(ctx, skipParentGone, target.NodeAggregateID)
				continue
			}
			if err != nil {
				return nil, err
			}

			out = append(out, Removal{
				Child:         child,
				Parent:        parent,
				ChildAddress:  contentrepo.AddressIn(ws.Name, child),
				ParentAddress: contentrepo.AddressIn(ws.Name, parent),
			})
			handled[key] = struct{}{}
		}
	}
	span.SetAttributes(attribute.Int("removals", len(out)))
	return out, nil
}
