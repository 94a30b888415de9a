// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package privilege

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/workspace"
)

func TestActorContext(t *testing.T) {
	assert.Empty(t, ActorFromContext(context.Background()))
	assert.Equal(t, "alice", ActorFromContext(WithActor(context.Background(), "  alice ")))
}

func TestStaticPolicy_CanPublishTo(t *testing.T) {
	review := &workspace.Workspace{Name: "review", BaseWorkspaceName: "live"}
	marketing := &workspace.Workspace{Name: "marketing", BaseWorkspaceName: "live", Owner: "alice"}
	live := &workspace.Workspace{Name: "live"}

	p := NewStaticPolicy(StaticConfig{
		Publishers: map[string][]string{
			"review": {"bob"},
			"*":      {"admin"},
		},
	}, nil)

	tests := []struct {
		name  string
		actor string
		ws    *workspace.Workspace
		want  bool
	}{
		{"owner", "alice", marketing, true},
		{"not owner", "bob", marketing, false},
		{"listed publisher", "bob", review, true},
		{"unlisted", "alice", review, false},
		{"wildcard publisher", "admin", live, true},
		{"anonymous", "", marketing, false},
		{"nil workspace", "alice", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithActor(context.Background(), tt.actor)
			assert.Equal(t, tt.want, p.CanPublishTo(ctx, tt.ws))
		})
	}
}

func TestStaticPolicy_PublishAll(t *testing.T) {
	p := NewStaticPolicy(StaticConfig{PublishAll: true}, nil)

	assert.True(t, p.CanPublishTo(WithActor(context.Background(), "carol"), &workspace.Workspace{Name: "live"}))
	assert.False(t, p.CanPublishTo(context.Background(), &workspace.Workspace{Name: "live"}))
}

func TestStaticPolicy_CanReadNode(t *testing.T) {
	types := graph.NewNodeTypeManager(graph.DefaultNodeTypes()...)
	p := NewStaticPolicy(StaticConfig{DeniedNodeTypes: []graph.NodeTypeName{"Neos.Neos:Content"}}, types)
	ctx := context.Background()

	assert.False(t, p.CanReadNode(ctx, &graph.Node{TypeName: "Neos.Neos:Image"}), "subtype of a denied type")
	assert.False(t, p.CanReadNode(ctx, &graph.Node{TypeName: "Neos.Neos:Content"}))
	assert.True(t, p.CanReadNode(ctx, &graph.Node{TypeName: "Neos.Neos:Page"}))
	assert.False(t, p.CanReadNode(ctx, nil))

	exact := NewStaticPolicy(StaticConfig{DeniedNodeTypes: []graph.NodeTypeName{"Neos.Neos:Content"}}, nil)
	assert.True(t, exact.CanReadNode(ctx, &graph.Node{TypeName: "Neos.Neos:Image"}))
}
