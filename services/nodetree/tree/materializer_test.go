// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/contentrepo"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/record"
	"github.com/AleutianAI/nodetree/services/nodetree/storage/badger/badgertest"
)

func liveQuery(document address.NodeAggregateID, depth int) Query {
	q := Query{
		Site:    badgertest.LiveAddress("site"),
		Request: Request{LoadingDepth: depth},
	}
	if document != "" {
		q.Document = badgertest.LiveAddress(document)
	}
	return q
}

func materialize(t *testing.T, repo *contentrepo.Repository, q Query) *Tree {
	t.Helper()
	tr, err := NewMaterializer(Options{}).MaterializeAt(context.Background(), repo, q)
	require.NoError(t, err)
	return tr
}

func TestMaterialize_EndToEnd(t *testing.T) {
	const fixture = `
workspaces:
  - name: live
    contentStream: cs-live
subgraphs:
  - workspace: live
    dimensions: {language: en}
    nodes:
      - id: S
        type: Neos.Neos:Site
        children:
          - id: D1
            type: Neos.Neos:Page
            children:
              - id: C1
                type: Neos.Neos:Text
`
	repo := badgertest.NewRepository(t, fixture)
	q := Query{
		Site:     badgertest.LiveAddress("S"),
		Document: badgertest.LiveAddress("D1"),
		Request:  Request{LoadingDepth: 1},
	}
	tr := materialize(t, repo, q)

	assert.Equal(t, []address.NodeAggregateID{"S", "D1"}, tr.Order)
	assert.False(t, tr.Contains("C1"))

	s := record.NewSerializer(record.Options{})
	children, err := s.ChildSummaries(context.Background(), repo, tr.Nodes["D1"], s.BaseNodeType())
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, badgertest.LiveAddress("C1").Serialize(), children[0].ContextPath)
}

func TestMaterialize_DepthBound(t *testing.T) {
	repo := badgertest.NewRepository(t, badgertest.SiteFixture)

	tr := materialize(t, repo, liveQuery("", 1))
	assert.Equal(t, []address.NodeAggregateID{"site", "d1", "hidden-page", "shortcut"}, tr.Order)

	tr = materialize(t, repo, liveQuery("", 2))
	sg := repo.Graph.Subgraph(badgertest.LiveStream, badgertest.EN, graph.VisibilityWithoutRestrictions)
	for _, n := range tr.List() {
		count, err := sg.CountAncestorNodes(context.Background(), n.AggregateID)
		require.NoError(t, err)
		assert.LessOrEqual(t, count-1, 2, n.AggregateID)
	}
	assert.True(t, tr.Contains("d2"))
	assert.False(t, tr.Contains("d3"))
}

func TestMaterialize_UnlimitedDepth(t *testing.T) {
	repo := badgertest.NewRepository(t, badgertest.SiteFixture)

	tr := materialize(t, repo, liveQuery("", 0))
	assert.Equal(t, []address.NodeAggregateID{
		"site", "d1", "d2", "d3", "hidden-page", "hidden-child", "shortcut",
	}, tr.Order)
	assert.False(t, tr.Contains("site-main"), "content is not part of the walk")
}

func TestMaterialize_AncestorsOfFocusExpanded(t *testing.T) {
	repo := badgertest.NewRepository(t, badgertest.SiteFixture)

	tr := materialize(t, repo, liveQuery("d3", 1))
	for _, id := range []address.NodeAggregateID{"site", "d1", "d2", "d3"} {
		assert.True(t, tr.Contains(id), id)
	}
	assert.False(t, tr.Contains("hidden-child"))
	assert.Equal(t, address.NodeAggregateID("d3"), tr.Document.AggregateID)
}

func TestMaterialize_Toggled(t *testing.T) {
	repo := badgertest.NewRepository(t, badgertest.SiteFixture)

	q := liveQuery("", 1)
	q.Toggled = []address.NodeAddress{badgertest.LiveAddress("hidden-page")}
	tr := materialize(t, repo, q)
	assert.True(t, tr.Contains("hidden-child"))
	assert.False(t, tr.Contains("d2"))

	// workspace is part of the address identity
	q.Toggled = []address.NodeAddress{badgertest.Address("user-alice", badgertest.LiveStream, "hidden-page")}
	tr = materialize(t, repo, q)
	assert.False(t, tr.Contains("hidden-child"))
}

func TestMaterialize_IdempotentInsertion(t *testing.T) {
	repo := badgertest.NewRepository(t, badgertest.SiteFixture)

	q := liveQuery("d3", 1)
	q.Toggled = []address.NodeAddress{badgertest.LiveAddress("d1"), badgertest.LiveAddress("d2")}
	q.Clipboard = []address.NodeAddress{badgertest.LiveAddress("d2"), badgertest.LiveAddress("d3")}
	tr := materialize(t, repo, q)

	seen := map[address.NodeAggregateID]int{}
	for _, id := range tr.Order {
		seen[id]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
	assert.Equal(t, len(tr.Order), tr.Len())
	assert.Equal(t, 6, tr.Len())
}

func TestMaterialize_DocumentForced(t *testing.T) {
	repo := badgertest.NewRepository(t, badgertest.SiteFixture)

	q := liveQuery("d3", 1)
	q.BaseNodeType = "Neos.Neos:Shortcut"
	tr := materialize(t, repo, q)

	assert.Equal(t, []address.NodeAggregateID{"site", "shortcut", "d3"}, tr.Order)
}

func TestMaterialize_Clipboard(t *testing.T) {
	repo := badgertest.NewRepository(t, badgertest.SiteFixture)

	q := liveQuery("", 1)
	q.Clipboard = []address.NodeAddress{
		badgertest.LiveAddress("text-1"),
		badgertest.LiveAddress("ghost"),
		badgertest.LiveAddress("d1"),
		badgertest.LiveAddress("d2"),
	}
	tr := materialize(t, repo, q)

	assert.Equal(t, []address.NodeAggregateID{"site", "d1", "hidden-page", "shortcut", "text-1", "d2"}, tr.Order)
	assert.False(t, tr.Contains("d3"), "clipboard nodes are not expanded")
	assert.False(t, tr.Contains("ghost"))
}

func TestMaterialize_FrontendVisibility(t *testing.T) {
	repo := badgertest.NewRepository(t, badgertest.SiteFixture)

	q := liveQuery("", 0)
	q.Visibility = graph.VisibilityFrontend
	tr := materialize(t, repo, q)
	assert.False(t, tr.Contains("hidden-page"))
	assert.False(t, tr.Contains("hidden-child"))
	assert.True(t, tr.Contains("d3"))
}

func TestMaterializeAt_Errors(t *testing.T) {
	repo := badgertest.NewRepository(t, badgertest.SiteFixture)
	m := NewMaterializer(Options{})
	ctx := context.Background()

	_, err := m.MaterializeAt(ctx, repo, Query{})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = m.MaterializeAt(ctx, repo, Query{Site: badgertest.LiveAddress("nope")})
	assert.ErrorIs(t, err, ErrSiteNotFound)

	q := liveQuery("", -1)
	_, err = m.MaterializeAt(ctx, repo, q)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestMaterializeAt_MissingDocumentFallsBackToSite(t *testing.T) {
	repo := badgertest.NewRepository(t, badgertest.SiteFixture)

	tr := materialize(t, repo, liveQuery("gone", 1))
	assert.Equal(t, address.NodeAggregateID("site"), tr.Document.AggregateID)
	assert.Equal(t, 4, tr.Len())
}

func TestMaterialize_ResolvedNodes(t *testing.T) {
	repo := badgertest.NewRepository(t, badgertest.SiteFixture)
	ctx := context.Background()

	site, err := repo.FindNodeByAddress(ctx, badgertest.AliceAddress("site"), graph.VisibilityWithoutRestrictions)
	require.NoError(t, err)

	tr, err := NewMaterializer(Options{}).Materialize(ctx, repo, site, site, Request{LoadingDepth: 1})
	require.NoError(t, err)
	assert.Equal(t, address.WorkspaceName("user-alice"), tr.Workspace)
	assert.True(t, tr.Contains("new-page"))
	assert.Equal(t, badgertest.AliceAddress("new-page"), tr.Address(tr.Nodes["new-page"]))

	_, err = NewMaterializer(Options{}).Materialize(ctx, repo, nil, site, Request{})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}
