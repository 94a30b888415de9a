// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/storage/badger"
	"github.com/AleutianAI/nodetree/services/nodetree/storage/badger/badgertest"
	"github.com/AleutianAI/nodetree/services/nodetree/workspace"
)

func liveSubgraph(store *badger.Store, visibility graph.Visibility) graph.Subgraph {
	return store.Subgraph(badgertest.LiveStream, badgertest.EN, visibility)
}

func TestSubgraph_FindNodeByID(t *testing.T) {
	store := badgertest.NewStore(t, badgertest.SiteFixture)
	ctx := context.Background()
	sg := liveSubgraph(store, graph.VisibilityFrontend)

	n, err := sg.FindNodeByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, address.NodeAggregateID("d1"), n.AggregateID)
	assert.Equal(t, graph.NodeTypeName("Neos.Neos:Page"), n.TypeName)
	assert.Equal(t, "about", n.Name)
	assert.Equal(t, "About", n.Label())
	assert.Equal(t, graph.ClassificationRegular, n.Classification)
	assert.Equal(t, badgertest.EN, n.OriginDimensionVariant)
	assert.Equal(t, graph.ContentRepositoryID("default"), n.Subgraph.ContentRepositoryID)
	assert.Equal(t, badgertest.LiveStream, n.Subgraph.ContentStreamID)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), n.Timestamps.Created.UTC())
	assert.Nil(t, n.Timestamps.LastModified)

	site, err := sg.FindNodeByID(ctx, "site")
	require.NoError(t, err)
	require.NotNil(t, site.Timestamps.LastModified)
	assert.Equal(t, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC), site.Timestamps.LastModified.UTC())

	_, err = sg.FindNodeByID(ctx, "missing")
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestSubgraph_Visibility(t *testing.T) {
	store := badgertest.NewStore(t, badgertest.SiteFixture)
	ctx := context.Background()

	frontend := liveSubgraph(store, graph.VisibilityFrontend)
	_, err := frontend.FindNodeByID(ctx, "hidden-page")
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
	_, err = frontend.FindNodeByID(ctx, "hidden-child")
	assert.ErrorIs(t, err, graph.ErrNodeNotFound, "hidden state is inherited")

	children, err := frontend.FindChildNodes(ctx, "site", "")
	require.NoError(t, err)
	assert.NotContains(t, children.AggregateIDs(), address.NodeAggregateID("hidden-page"))

	unrestricted := liveSubgraph(store, graph.VisibilityWithoutRestrictions)
	n, err := unrestricted.FindNodeByID(ctx, "hidden-child")
	require.NoError(t, err)
	assert.Equal(t, address.NodeAggregateID("hidden-child"), n.AggregateID)

	hidden, err := store.IsHidden(ctx, badgertest.LiveStream, badgertest.EN, "hidden-page")
	require.NoError(t, err)
	assert.True(t, hidden)
	hidden, err = store.IsHidden(ctx, badgertest.LiveStream, badgertest.EN, "hidden-child")
	require.NoError(t, err)
	assert.False(t, hidden, "only the node's own state is reported")
}

func TestSubgraph_FindChildNodes_OrderAndFilter(t *testing.T) {
	store := badgertest.NewStore(t, badgertest.SiteFixture)
	ctx := context.Background()
	sg := liveSubgraph(store, graph.VisibilityWithoutRestrictions)

	all, err := sg.FindChildNodes(ctx, "site", "")
	require.NoError(t, err)
	assert.Equal(t, []address.NodeAggregateID{"site-main", "d1", "hidden-page", "shortcut"}, all.AggregateIDs())

	docs, err := sg.FindChildNodes(ctx, "site", "Neos.Neos:Document")
	require.NoError(t, err)
	assert.Equal(t, []address.NodeAggregateID{"d1", "hidden-page", "shortcut"}, docs.AggregateIDs())

	noShortcuts, err := sg.FindChildNodes(ctx, "site", "Neos.Neos:Document,!Neos.Neos:Shortcut")
	require.NoError(t, err)
	assert.Equal(t, []address.NodeAggregateID{"d1", "hidden-page"}, noShortcuts.AggregateIDs())

	content, err := sg.FindChildNodes(ctx, "site", "!Neos.Neos:Document")
	require.NoError(t, err)
	assert.Equal(t, []address.NodeAggregateID{"site-main"}, content.AggregateIDs())

	none, err := sg.FindChildNodes(ctx, "missing", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSubgraph_ParentAndAncestors(t *testing.T) {
	store := badgertest.NewStore(t, badgertest.SiteFixture)
	ctx := context.Background()
	sg := liveSubgraph(store, graph.VisibilityFrontend)

	parent, err := sg.FindParentNode(ctx, "d3")
	require.NoError(t, err)
	assert.Equal(t, address.NodeAggregateID("d2"), parent.AggregateID)

	_, err = sg.FindParentNode(ctx, "sites")
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)

	ancestors, err := sg.FindAncestorNodes(ctx, "d3", "")
	require.NoError(t, err)
	assert.Equal(t, []address.NodeAggregateID{"d2", "d1", "site", "sites"}, ancestors.AggregateIDs())

	docAncestors, err := sg.FindAncestorNodes(ctx, "c1", "Neos.Neos:Document")
	require.NoError(t, err)
	assert.Equal(t, []address.NodeAggregateID{"d1", "site"}, docAncestors.AggregateIDs())

	count, err := sg.CountAncestorNodes(ctx, "d3")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	count, err = sg.CountAncestorNodes(ctx, "sites")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSubgraph_FindClosestNode(t *testing.T) {
	store := badgertest.NewStore(t, badgertest.SiteFixture)
	ctx := context.Background()
	sg := liveSubgraph(store, graph.VisibilityFrontend)

	closest, err := sg.FindClosestNode(ctx, "c1", "Neos.Neos:Document")
	require.NoError(t, err)
	assert.Equal(t, address.NodeAggregateID("d1"), closest.AggregateID)

	self, err := sg.FindClosestNode(ctx, "d2", "Neos.Neos:Document")
	require.NoError(t, err)
	assert.Equal(t, address.NodeAggregateID("d2"), self.AggregateID)

	_, err = sg.FindClosestNode(ctx, "c1", "Vendor:Nothing")
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestSubgraph_IsolatedByContentStream(t *testing.T) {
	store := badgertest.NewStore(t, badgertest.SiteFixture)
	ctx := context.Background()

	_, err := liveSubgraph(store, graph.VisibilityFrontend).FindNodeByID(ctx, "new-page")
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)

	alice := store.Subgraph(badgertest.AliceStream, badgertest.EN, graph.VisibilityFrontend)
	children, err := alice.FindChildNodes(ctx, "site", "Neos.Neos:Document")
	require.NoError(t, err)
	assert.Equal(t, []address.NodeAggregateID{"d1", "shortcut", "new-page"}, children.AggregateIDs())

	other := store.Subgraph(badgertest.LiveStream, address.MustDimensionVariant(`{"language":"de"}`), graph.VisibilityFrontend)
	_, err = other.FindNodeByID(ctx, "site")
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestStore_Workspaces(t *testing.T) {
	store := badgertest.NewStore(t, badgertest.SiteFixture)
	ctx := context.Background()

	ws, err := store.FindOneByName(ctx, "user-alice")
	require.NoError(t, err)
	assert.Equal(t, badgertest.AliceStream, ws.CurrentContentStreamID)
	assert.Equal(t, address.WorkspaceName("live"), ws.BaseWorkspaceName)
	assert.Equal(t, "alice", ws.Owner)

	byStream, err := store.FindOneByCurrentContentStreamID(ctx, badgertest.ReviewStream)
	require.NoError(t, err)
	assert.Equal(t, address.WorkspaceName("review"), byStream.Name)
	assert.Equal(t, "Shared review workspace", byStream.Description)

	_, err = store.FindOneByName(ctx, "nope")
	assert.ErrorIs(t, err, workspace.ErrWorkspaceNotFound)
	_, err = store.FindOneByCurrentContentStreamID(ctx, "cs-nope")
	assert.ErrorIs(t, err, workspace.ErrWorkspaceNotFound)

	all, err := store.FindAll(ctx)
	require.NoError(t, err)
	var names []address.WorkspaceName
	for _, w := range all {
		names = append(names, w.Name)
	}
	assert.Equal(t, []address.WorkspaceName{"legal", "live", "marketing", "review", "user-alice", "user-bob"}, names)
}

func TestStore_PutWorkspace_ReindexesContentStream(t *testing.T) {
	store := badgertest.NewStore(t, "")
	ctx := context.Background()

	require.NoError(t, store.PutWorkspace(ctx, &workspace.Workspace{Name: "live", CurrentContentStreamID: "cs-1"}))
	require.NoError(t, store.PutWorkspace(ctx, &workspace.Workspace{Name: "live", CurrentContentStreamID: "cs-2"}))

	_, err := store.FindOneByCurrentContentStreamID(ctx, "cs-1")
	assert.ErrorIs(t, err, workspace.ErrWorkspaceNotFound)
	ws, err := store.FindOneByCurrentContentStreamID(ctx, "cs-2")
	require.NoError(t, err)
	assert.Equal(t, address.WorkspaceName("live"), ws.Name)

	assert.Error(t, store.PutWorkspace(ctx, &workspace.Workspace{Name: "x"}))
}

func TestStore_Changes(t *testing.T) {
	store := badgertest.NewStore(t, badgertest.SiteFixture)
	ctx := context.Background()

	changes, err := store.FindByContentStreamID(ctx, badgertest.AliceStream)
	require.NoError(t, err)
	require.Len(t, changes, 6)

	byID := map[address.NodeAggregateID]workspace.PendingChange{}
	for _, c := range changes {
		byID[c.NodeAggregateID] = c
		assert.Equal(t, badgertest.AliceStream, c.ContentStreamID)
		assert.Equal(t, badgertest.EN, c.OriginDimensionVariant)
	}
	assert.True(t, byID["new-page"].Created)
	assert.True(t, byID["removed"].IsRemoval())
	assert.Equal(t, address.NodeAggregateID("d1"), byID["removed"].RemovalAttachmentPoint)
	assert.True(t, byID["d1"].Changed)

	none, err := store.FindByContentStreamID(ctx, badgertest.LiveStream)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_PutNode_MovesHierarchyEdge(t *testing.T) {
	store := badgertest.NewStore(t, badgertest.SiteFixture)
	ctx := context.Background()
	sg := liveSubgraph(store, graph.VisibilityWithoutRestrictions)

	d3, err := sg.FindNodeByID(ctx, "d3")
	require.NoError(t, err)

	err = store.PutNode(ctx, badgertest.LiveStream, badgertest.EN, badger.NodeRecord{
		AggregateID:            "d3",
		ParentID:               "site",
		Position:               99,
		TypeName:               d3.TypeName,
		OriginDimensionVariant: d3.OriginDimensionVariant,
		Name:                   d3.Name,
		Properties:             d3.Properties,
		Timestamps:             d3.Timestamps,
	})
	require.NoError(t, err)

	parent, err := sg.FindParentNode(ctx, "d3")
	require.NoError(t, err)
	assert.Equal(t, address.NodeAggregateID("site"), parent.AggregateID)

	teamChildren, err := sg.FindChildNodes(ctx, "d2", "")
	require.NoError(t, err)
	assert.Empty(t, teamChildren)

	siteChildren, err := sg.FindChildNodes(ctx, "site", "")
	require.NoError(t, err)
	assert.Equal(t, address.NodeAggregateID("d3"), siteChildren[len(siteChildren)-1].AggregateID)
}

func TestStore_PutNode_Validation(t *testing.T) {
	store := badgertest.NewStore(t, "")
	ctx := context.Background()

	assert.Error(t, store.PutNode(ctx, "cs", badgertest.EN, badger.NodeRecord{}))
	assert.Error(t, store.PutNode(ctx, "cs", badgertest.EN, badger.NodeRecord{AggregateID: "a", Classification: "weird"}))
}

func TestStore_NodeCache(t *testing.T) {
	store := badgertest.NewStore(t, badgertest.SiteFixture)
	ctx := context.Background()
	sg := liveSubgraph(store, graph.VisibilityWithoutRestrictions)

	_, err := sg.FindNodeByID(ctx, "d1")
	require.NoError(t, err)
	before := store.CacheStats()

	_, err = sg.FindNodeByID(ctx, "d1")
	require.NoError(t, err)
	after := store.CacheStats()

	assert.Greater(t, after.Hits, before.Hits)
}

func TestStore_CancelledContext(t *testing.T) {
	store := badgertest.NewStore(t, badgertest.SiteFixture)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.FindAll(ctx)
	assert.ErrorIs(t, err, graph.ErrStorage)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_Repository(t *testing.T) {
	store := badgertest.NewStore(t, badgertest.SiteFixture)
	repo := store.Repository()

	require.NoError(t, repo.Validate())
	assert.Equal(t, graph.ContentRepositoryID("default"), repo.ID)
	assert.Same(t, store.NodeTypes(), repo.NodeTypes)
}

func TestSeed_UnknownWorkspace(t *testing.T) {
	store := badgertest.NewStore(t, "")
	f, err := badger.ParseFixture([]byte("subgraphs:\n  - workspace: nowhere\n    nodes: []\n"))
	require.NoError(t, err)

	_, err = store.Seed(context.Background(), f)
	assert.ErrorIs(t, err, workspace.ErrWorkspaceNotFound)
}

func TestSeed_GeneratesContentStream(t *testing.T) {
	store := badgertest.NewStore(t, "")
	f, err := badger.ParseFixture([]byte("workspaces:\n  - name: live\n"))
	require.NoError(t, err)

	stats, err := store.Seed(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Workspaces)

	ws, err := store.FindOneByName(context.Background(), "live")
	require.NoError(t, err)
	assert.NotEmpty(t, ws.CurrentContentStreamID)
	assert.Equal(t, "live", ws.Title)
}
