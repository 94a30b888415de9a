// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package contentrepo bundles the collaborators of one content repository
// into an explicit handle that is threaded through every call.
package contentrepo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/workspace"
)

// ErrRepositoryNotFound indicates no repository is registered under an id.
var ErrRepositoryNotFound = errors.New("content repository not found")

// Repository is the per-call handle on one content repository.
type Repository struct {
	ID          graph.ContentRepositoryID
	Graph       graph.ContentGraph
	Workspaces  workspace.Finder
	Changes     workspace.ChangeFinder
	HiddenState graph.HiddenStateFinder
	NodeTypes   *graph.NodeTypeManager
}

// Validate reports a missing collaborator.
func (r *Repository) Validate() error {
	switch {
	case r == nil:
		return errors.New("repository is nil")
	case r.ID == "":
		return errors.New("repository id is empty")
	case r.Graph == nil:
		return fmt.Errorf("repository %s: graph is nil", r.ID)
	case r.Workspaces == nil:
		return fmt.Errorf("repository %s: workspace finder is nil", r.ID)
	case r.Changes == nil:
		return fmt.Errorf("repository %s: change finder is nil", r.ID)
	case r.NodeTypes == nil:
		return fmt.Errorf("repository %s: node type manager is nil", r.ID)
	}
	return nil
}

// WorkspaceNameFor returns the workspace whose current content stream is cs.
//
// Outputs:
//
//	address.WorkspaceName - The workspace name.
//	error - workspace.ErrWorkspaceNotFound when no workspace uses cs.
func (r *Repository) WorkspaceNameFor(ctx context.Context, cs address.ContentStreamID) (address.WorkspaceName, error) {
	ws, err := r.Workspaces.FindOneByCurrentContentStreamID(ctx, cs)
	if err != nil {
		return "", err
	}
	return ws.Name, nil
}

// AddressIn builds the address of a node known to live in workspace ws.
func AddressIn(ws address.WorkspaceName, n *graph.Node) address.NodeAddress {
	return address.NodeAddress{
		ContentStreamID:  n.Subgraph.ContentStreamID,
		DimensionVariant: n.Subgraph.DimensionVariant,
		NodeAggregateID:  n.AggregateID,
		WorkspaceName:    ws,
	}
}

// Subgraph returns the subgraph an address points into.
func (r *Repository) Subgraph(a address.NodeAddress, visibility graph.Visibility) graph.Subgraph {
	return r.Graph.Subgraph(a.ContentStreamID, a.DimensionVariant, visibility)
}

// FindNodeByAddress resolves the node an address points at.
//
// Outputs:
//
//	*graph.Node - The node.
//	error - graph.ErrNodeNotFound when absent, otherwise a storage failure.
func (r *Repository) FindNodeByAddress(ctx context.Context, a address.NodeAddress, visibility graph.Visibility) (*graph.Node, error) {
	return r.Subgraph(a, visibility).FindNodeByID(ctx, a.NodeAggregateID)
}

// Lookup resolves repositories by id. Batches that span repositories take a
// Lookup instead of a single Repository.
type Lookup interface {
	Get(id graph.ContentRepositoryID) (*Repository, error)
}

// Registry is an in-process Lookup.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	repos map[graph.ContentRepositoryID]*Repository
}

// NewRegistry creates a registry holding repos.
func NewRegistry(repos ...*Repository) (*Registry, error) {
	r := &Registry{repos: make(map[graph.ContentRepositoryID]*Repository, len(repos))}
	for _, repo := range repos {
		if err := r.Register(repo); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds or replaces a repository.
func (r *Registry) Register(repo *Repository) error {
	if err := repo.Validate(); err != nil {
		return fmt.Errorf("register repository: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repos[repo.ID] = repo
	return nil
}

// Get returns a registered repository.
func (r *Registry) Get(id graph.ContentRepositoryID) (*Repository, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	repo, ok := r.repos[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, id)
	}
	return repo, nil
}

// IDs returns the registered ids, sorted.
func (r *Registry) IDs() []graph.ContentRepositoryID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]graph.ContentRepositoryID, 0, len(r.repos))
	for id := range r.repos {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
