// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package privilege answers who the current actor is and what that actor
// may see and publish.
package privilege

import (
	"context"
	"slices"
	"strings"

	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/workspace"
)

// Policy is the privilege collaborator of the read model.
type Policy interface {
	// CurrentActor returns the actor of the request, or "" when anonymous.
	CurrentActor(ctx context.Context) string

	// CanPublishTo reports whether the current actor may publish into ws.
	CanPublishTo(ctx context.Context, ws *workspace.Workspace) bool

	// CanReadNode reports whether the current actor may see n in the tree.
	CanReadNode(ctx context.Context, n *graph.Node) bool
}

type actorKey struct{}

// WithActor returns a context carrying actor.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, strings.TrimSpace(actor))
}

// ActorFromContext returns the actor stored by WithActor, or "".
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

// StaticConfig is the configuration of StaticPolicy.
type StaticConfig struct {
	// PublishAll grants every identified actor publish rights everywhere.
	PublishAll bool `yaml:"publish_all" json:"publish_all"`

	// Publishers lists actors allowed to publish per workspace name. The
	// key "*" applies to every workspace.
	Publishers map[string][]string `yaml:"publishers" json:"publishers"`

	// DeniedNodeTypes are hidden from every tree, including subtypes.
	DeniedNodeTypes []graph.NodeTypeName `yaml:"denied_node_types" json:"denied_node_types"`
}

// StaticPolicy evaluates privileges from configuration. The actor is taken
// from the request context.
//
// Thread Safety: Safe for concurrent use; the configuration is read only.
type StaticPolicy struct {
	cfg       StaticConfig
	nodeTypes *graph.NodeTypeManager
}

var _ Policy = (*StaticPolicy)(nil)

// NewStaticPolicy creates a policy. nodeTypes resolves denied super types
// and may be nil, in which case only exact type names are denied.
func NewStaticPolicy(cfg StaticConfig, nodeTypes *graph.NodeTypeManager) *StaticPolicy {
	return &StaticPolicy{cfg: cfg, nodeTypes: nodeTypes}
}

func (p *StaticPolicy) CurrentActor(ctx context.Context) string {
	return ActorFromContext(ctx)
}

// CanPublishTo grants owners, configured publishers, and everyone when
// PublishAll is set. Anonymous actors never publish.
func (p *StaticPolicy) CanPublishTo(ctx context.Context, ws *workspace.Workspace) bool {
	actor := p.CurrentActor(ctx)
	if actor == "" || ws == nil {
		return false
	}
	if p.cfg.PublishAll || ws.IsOwnedBy(actor) {
		return true
	}
	return slices.Contains(p.cfg.Publishers[string(ws.Name)], actor) ||
		slices.Contains(p.cfg.Publishers["*"], actor)
}

func (p *StaticPolicy) CanReadNode(_ context.Context, n *graph.Node) bool {
	if n == nil {
		return false
	}
	for _, denied := range p.cfg.DeniedNodeTypes {
		if n.TypeName == denied {
			return false
		}
		if p.nodeTypes != nil && p.nodeTypes.IsOfType(n.TypeName, denied) {
			return false
		}
	}
	return true
}
