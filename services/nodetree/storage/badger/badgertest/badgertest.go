// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badgertest provides in-memory projection stores seeded from
// fixtures for tests.
package badgertest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/contentrepo"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/storage/badger"
)

// Identifiers used by SiteFixture.
const (
	LiveStream      address.ContentStreamID = "cs-live"
	AliceStream     address.ContentStreamID = "cs-alice"
	BobStream       address.ContentStreamID = "cs-bob"
	ReviewStream    address.ContentStreamID = "cs-review"
	MarketingStream address.ContentStreamID = "cs-marketing"
	LegalStream     address.ContentStreamID = "cs-legal"
)

// EN is the dimension variant of every subgraph in SiteFixture.
var EN = address.MustDimensionVariant(`{"language":"en"}`)

// SiteFixture is the shared content model of the test suites:
//
//	sites (root)
//	└── site "Home"
//	    ├── site-main (tethered collection) ── text-1
//	    ├── d1 "About"
//	    │   ├── d1-main (tethered collection) ── c1
//	    │   └── d2 "Team" ── d3 "Alice"
//	    ├── hidden-page (hidden) ── hidden-child
//	    └── shortcut
//
// user-alice additionally holds new-page below site and new-text below
// d1-main, plus pending changes for them.
const SiteFixture = `
workspaces:
  - name: live
    title: Live
    contentStream: cs-live
  - name: user-alice
    title: Alice
    base: live
    owner: alice
    contentStream: cs-alice
  - name: user-bob
    title: Bob
    base: live
    owner: bob
    contentStream: cs-bob
  - name: review
    title: Review
    description: Shared review workspace
    base: live
    contentStream: cs-review
  - name: marketing
    title: Marketing
    base: live
    owner: alice
    contentStream: cs-marketing
  - name: legal
    title: Legal
    base: live
    owner: carol
    contentStream: cs-legal
subgraphs:
  - workspace: live
    dimensions: {language: en}
    nodes: &tree
      - id: sites
        type: Neos.Neos:Sites
        classification: root
        created: 2024-01-01T00:00:00Z
        children:
          - id: site
            type: Neos.Neos:Site
            name: home
            created: 2024-01-01T00:00:00Z
            lastModified: 2024-02-01T10:00:00Z
            properties:
              title: Home
              _hiddenInIndex: false
            children:
              - id: site-main
                type: Neos.Neos:ContentCollection
                classification: tethered
                name: main
                created: 2024-01-01T00:00:00Z
                children:
                  - id: text-1
                    type: Neos.Neos:Text
                    created: 2024-01-02T00:00:00Z
                    properties:
                      text: Welcome
              - id: d1
                type: Neos.Neos:Page
                name: about
                created: 2024-01-03T00:00:00Z
                properties:
                  title: About
                  _hiddenInIndex: true
                children:
                  - id: d1-main
                    type: Neos.Neos:ContentCollection
                    classification: tethered
                    name: main
                    created: 2024-01-03T00:00:00Z
                    children:
                      - id: c1
                        type: Neos.Neos:Text
                        created: 2024-01-04T00:00:00Z
                        origin: {language: de}
                        properties:
                          text: Hello
                  - id: d2
                    type: Neos.Neos:Page
                    name: team
                    created: 2024-01-05T00:00:00Z
                    properties:
                      title: Team
                    children:
                      - id: d3
                        type: Neos.Neos:Page
                        name: alice
                        created: 2024-01-06T00:00:00Z
                        properties:
                          title: Alice
              - id: hidden-page
                type: Neos.Neos:Page
                name: secret
                hidden: true
                created: 2024-01-07T00:00:00Z
                properties:
                  title: Secret
                children:
                  - id: hidden-child
                    type: Neos.Neos:Page
                    name: below-secret
                    created: 2024-01-07T00:00:00Z
              - id: shortcut
                type: Neos.Neos:Shortcut
                name: go
                created: 2024-01-08T00:00:00Z
                properties:
                  title: Go
  - workspace: user-alice
    dimensions: {language: en}
    nodes: *tree
  - workspace: user-alice
    dimensions: {language: en}
    parent: site
    nodes:
      - id: new-page
        type: Neos.Neos:Page
        name: new
        created: 2024-03-01T00:00:00Z
        properties:
          title: New
  - workspace: user-alice
    dimensions: {language: en}
    parent: d1-main
    nodes:
      - id: new-text
        type: Neos.Neos:Text
        created: 2024-03-01T00:00:00Z
changes:
  - workspace: user-alice
    id: new-page
    dimensions: {language: en}
    created: true
  - workspace: user-alice
    id: new-text
    dimensions: {language: en}
    created: true
  - workspace: user-alice
    id: d1
    dimensions: {language: en}
    changed: true
  - workspace: user-alice
    id: removed
    dimensions: {language: en}
    deleted: true
    removalAttachmentPoint: d1
  - workspace: user-alice
    id: ghost
    dimensions: {language: en}
    created: true
  - workspace: user-alice
    id: hidden-child
    dimensions: {language: en}
    changed: true
`

// NewStore opens an in-memory store seeded with fixture. The store is closed
// when the test ends.
func NewStore(t testing.TB, fixture string) *badger.Store {
	t.Helper()

	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := badger.NewStore(db, badger.StoreOptions{RepositoryID: "default"})
	require.NoError(t, err)

	if fixture != "" {
		f, err := badger.ParseFixture([]byte(fixture))
		require.NoError(t, err)
		_, err = store.Seed(context.Background(), f)
		require.NoError(t, err)
	}
	return store
}

// NewRepository returns the repository handle of a seeded in-memory store.
func NewRepository(t testing.TB, fixture string) *contentrepo.Repository {
	t.Helper()
	return NewStore(t, fixture).Repository()
}

// Address builds an EN address in workspace ws on content stream cs.
func Address(ws address.WorkspaceName, cs address.ContentStreamID, id address.NodeAggregateID) address.NodeAddress {
	return address.NodeAddress{
		ContentStreamID:  cs,
		DimensionVariant: EN,
		NodeAggregateID:  id,
		WorkspaceName:    ws,
	}
}

// LiveAddress builds an EN address in the live workspace.
func LiveAddress(id address.NodeAggregateID) address.NodeAddress {
	return Address("live", LiveStream, id)
}

// AliceAddress builds an EN address in alice's personal workspace.
func AliceAddress(id address.NodeAggregateID) address.NodeAddress {
	return Address("user-alice", AliceStream, id)
}

// LiveNode resolves a node of the live EN subgraph without restrictions.
func LiveNode(t testing.TB, repo *contentrepo.Repository, id address.NodeAggregateID) *graph.Node {
	t.Helper()
	n, err := repo.FindNodeByAddress(context.Background(), LiveAddress(id), graph.VisibilityWithoutRestrictions)
	require.NoError(t, err)
	return n
}
