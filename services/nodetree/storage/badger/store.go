// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/cache"
	"github.com/AleutianAI/nodetree/services/nodetree/contentrepo"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/workspace"
)

// NodeRecord is the write model of one node in one subgraph.
type NodeRecord struct {
	AggregateID address.NodeAggregateID

	// ParentID is empty for root nodes.
	ParentID address.NodeAggregateID

	// Position orders siblings, ascending.
	Position int

	TypeName               graph.NodeTypeName
	Classification         graph.Classification
	OriginDimensionVariant address.DimensionVariant
	Name                   string
	Properties             map[string]any
	Timestamps             graph.Timestamps
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// RepositoryID is stamped on every node read from the store.
	RepositoryID graph.ContentRepositoryID

	// NodeTypes evaluates filter expressions. Defaults to the built-in types.
	NodeTypes *graph.NodeTypeManager

	// CacheSize bounds the node read cache. Defaults to cache.DefaultCapacity.
	CacheSize int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Store is the projection store of one content repository.
//
// Description:
//
//	Implements graph.ContentGraph, graph.HiddenStateFinder,
//	workspace.Finder and workspace.ChangeFinder. Node reads go through a
//	read-through LRU with singleflight deduplication.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db        *DB
	repoID    graph.ContentRepositoryID
	nodeTypes *graph.NodeTypeManager
	nodes     *cache.Loader[*storedNode]
	logger    *slog.Logger
}

// NewStore creates a store over an open database.
func NewStore(db *DB, opts StoreOptions) (*Store, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	if opts.RepositoryID == "" {
		opts.RepositoryID = "default"
	}
	if opts.NodeTypes == nil {
		opts.NodeTypes = graph.NewNodeTypeManager(graph.DefaultNodeTypes()...)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		db:        db,
		repoID:    opts.RepositoryID,
		nodeTypes: opts.NodeTypes,
		nodes:     cache.NewLoader[*storedNode](opts.CacheSize, nodeCacheObserver{}),
		logger:    opts.Logger.With("component", "projection_store", "repository", string(opts.RepositoryID)),
	}, nil
}

// Repository bundles the store into a content repository handle.
func (s *Store) Repository() *contentrepo.Repository {
	return &contentrepo.Repository{
		ID:          s.repoID,
		Graph:       s,
		Workspaces:  s,
		Changes:     s,
		HiddenState: s,
		NodeTypes:   s.nodeTypes,
	}
}

// NodeTypes returns the type manager used for filter evaluation.
func (s *Store) NodeTypes() *graph.NodeTypeManager {
	return s.nodeTypes
}

// CacheStats returns node cache counters.
func (s *Store) CacheStats() cache.Stats {
	return s.nodes.Stats()
}

// Subgraph implements graph.ContentGraph.
func (s *Store) Subgraph(cs address.ContentStreamID, dv address.DimensionVariant, visibility graph.Visibility) graph.Subgraph {
	if visibility == "" {
		visibility = graph.VisibilityFrontend
	}
	return &subgraph{
		store: s,
		identity: graph.SubgraphIdentity{
			ContentRepositoryID: s.repoID,
			ContentStreamID:     cs,
			DimensionVariant:    dv,
			Visibility:          visibility,
		},
	}
}

// PutNode writes a node and its hierarchy edge into the subgraph (cs, dv).
//
// Description:
//
//	Replaces an existing node with the same id, moving its hierarchy edge
//	when parent or position changed.
func (s *Store) PutNode(ctx context.Context, cs address.ContentStreamID, dv address.DimensionVariant, rec NodeRecord) error {
	if rec.AggregateID == "" {
		return errors.New("put node: aggregate id is empty")
	}
	if rec.Classification == "" {
		rec.Classification = graph.ClassificationRegular
	}
	if !rec.Classification.Valid() {
		return fmt.Errorf("put node %s: invalid classification %q", rec.AggregateID, rec.Classification)
	}
	value, err := encode(storedNodeFrom(rec))
	if err != nil {
		return fmt.Errorf("encode node %s: %w", rec.AggregateID, err)
	}

	key := nodeKey(cs, dv, rec.AggregateID)
	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		prev, err := readNode(txn, key)
		if err != nil {
			return err
		}
		if prev != nil && prev.Parent != "" {
			oldEdge := childKey(cs, dv, address.NodeAggregateID(prev.Parent), prev.Position, rec.AggregateID)
			if err := txn.Delete(oldEdge); err != nil {
				return err
			}
		}
		if err := txn.Set(key, value); err != nil {
			return err
		}
		if rec.ParentID != "" {
			return txn.Set(childKey(cs, dv, rec.ParentID, rec.Position, rec.AggregateID), nil)
		}
		return nil
	})
	s.nodes.Invalidate(string(key))
	if err != nil {
		return graph.NewStorageError("put node", err)
	}
	return nil
}

// SetHidden marks or unmarks a node variant as hidden.
func (s *Store) SetHidden(ctx context.Context, cs address.ContentStreamID, dv address.DimensionVariant, id address.NodeAggregateID, hidden bool) error {
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if hidden {
			return txn.Set(hiddenKey(cs, dv, id), nil)
		}
		return txn.Delete(hiddenKey(cs, dv, id))
	})
	return graph.NewStorageError("set hidden", err)
}

// IsHidden implements graph.HiddenStateFinder. Only the node's own state is
// reported; inherited hiding is a visibility concern of the subgraph.
func (s *Store) IsHidden(ctx context.Context, cs address.ContentStreamID, dv address.DimensionVariant, id address.NodeAggregateID) (bool, error) {
	var hidden bool
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		hidden, err = hasKey(txn, hiddenKey(cs, dv, id))
		return err
	})
	if err != nil {
		return false, graph.NewStorageError("is hidden", err)
	}
	return hidden, nil
}

// PutWorkspace writes a workspace and indexes its content stream.
func (s *Store) PutWorkspace(ctx context.Context, ws *workspace.Workspace) error {
	if ws == nil || ws.Name == "" || ws.CurrentContentStreamID == "" {
		return errors.New("put workspace: name and content stream are required")
	}
	value, err := encode(storedWorkspaceFrom(ws))
	if err != nil {
		return fmt.Errorf("encode workspace %s: %w", ws.Name, err)
	}
	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if raw, err := getValue(txn, workspaceKey(ws.Name)); err != nil {
			return err
		} else if raw != nil {
			var prev storedWorkspace
			if err := decode(raw, &prev); err != nil {
				return err
			}
			if prev.ContentStream != string(ws.CurrentContentStreamID) {
				if err := txn.Delete(streamKey(address.ContentStreamID(prev.ContentStream))); err != nil {
					return err
				}
			}
		}
		if err := txn.Set(workspaceKey(ws.Name), value); err != nil {
			return err
		}
		return txn.Set(streamKey(ws.CurrentContentStreamID), []byte(ws.Name))
	})
	return graph.NewStorageError("put workspace", err)
}

// FindOneByName implements workspace.Finder.
func (s *Store) FindOneByName(ctx context.Context, name address.WorkspaceName) (*workspace.Workspace, error) {
	var found *workspace.Workspace
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		var err error
		found, err = readWorkspace(txn, name)
		return err
	})
	if err != nil {
		return nil, graph.NewStorageError("find workspace", err)
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", workspace.ErrWorkspaceNotFound, name)
	}
	return found, nil
}

// FindOneByCurrentContentStreamID implements workspace.Finder.
func (s *Store) FindOneByCurrentContentStreamID(ctx context.Context, cs address.ContentStreamID) (*workspace.Workspace, error) {
	var found *workspace.Workspace
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		raw, err := getValue(txn, streamKey(cs))
		if err != nil || raw == nil {
			return err
		}
		found, err = readWorkspace(txn, address.WorkspaceName(raw))
		return err
	})
	if err != nil {
		return nil, graph.NewStorageError("find workspace by content stream", err)
	}
	if found == nil {
		return nil, fmt.Errorf("%w: content stream %s", workspace.ErrWorkspaceNotFound, cs)
	}
	return found, nil
}

// FindAll implements workspace.Finder. Workspaces are ordered by name.
func (s *Store) FindAll(ctx context.Context) ([]*workspace.Workspace, error) {
	var out []*workspace.Workspace
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return iteratePrefix(txn, workspacePrefix(), true, func(_ []byte, raw []byte) error {
			var sw storedWorkspace
			if err := decode(raw, &sw); err != nil {
				return err
			}
			out = append(out, sw.toWorkspace())
			return nil
		})
	})
	if err != nil {
		return nil, graph.NewStorageError("find all workspaces", err)
	}
	return out, nil
}

// PutChange writes a pending change, replacing one with the same triple.
func (s *Store) PutChange(ctx context.Context, c workspace.PendingChange) error {
	if c.ContentStreamID == "" || c.NodeAggregateID == "" {
		return errors.New("put change: content stream and node id are required")
	}
	value, err := encode(storedChangeFrom(c))
	if err != nil {
		return fmt.Errorf("encode change %s: %w", c.NodeAggregateID, err)
	}
	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(changeKey(c.ContentStreamID, c.NodeAggregateID, c.OriginDimensionVariant), value)
	})
	return graph.NewStorageError("put change", err)
}

// FindByContentStreamID implements workspace.ChangeFinder.
func (s *Store) FindByContentStreamID(ctx context.Context, cs address.ContentStreamID) ([]workspace.PendingChange, error) {
	var out []workspace.PendingChange
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return iteratePrefix(txn, changePrefix(cs), true, func(_ []byte, raw []byte) error {
			var sc storedChange
			if err := decode(raw, &sc); err != nil {
				return err
			}
			c, err := sc.toChange()
			if err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
	})
	if err != nil {
		return nil, graph.NewStorageError("find changes", err)
	}
	return out, nil
}

// loadNode reads a node through the cache. Returns nil when absent.
func (s *Store) loadNode(ctx context.Context, cs address.ContentStreamID, dv address.DimensionVariant, id address.NodeAggregateID) (*storedNode, error) {
	key := nodeKey(cs, dv, id)
	n, found, err := s.nodes.Get(ctx, string(key), func(ctx context.Context) (*storedNode, bool, error) {
		var n *storedNode
		err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
			var err error
			n, err = readNode(txn, key)
			return err
		})
		return n, n != nil, err
	})
	if err != nil {
		return nil, graph.NewStorageError("load node", err)
	}
	if !found {
		return nil, nil
	}
	return n, nil
}

// childIDs lists the children of parent in sibling order.
func (s *Store) childIDs(ctx context.Context, cs address.ContentStreamID, dv address.DimensionVariant, parent address.NodeAggregateID) ([]address.NodeAggregateID, error) {
	var ids []address.NodeAggregateID
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return iteratePrefix(txn, childPrefix(cs, dv, parent), false, func(key []byte, _ []byte) error {
			ids = append(ids, childIDFromKey(key))
			return nil
		})
	})
	if err != nil {
		return nil, graph.NewStorageError("list children", err)
	}
	return ids, nil
}

func readNode(txn *badger.Txn, key []byte) (*storedNode, error) {
	raw, err := getValue(txn, key)
	if err != nil || raw == nil {
		return nil, err
	}
	var n storedNode
	if err := decode(raw, &n); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	return &n, nil
}

func readWorkspace(txn *badger.Txn, name address.WorkspaceName) (*workspace.Workspace, error) {
	raw, err := getValue(txn, workspaceKey(name))
	if err != nil || raw == nil {
		return nil, err
	}
	var sw storedWorkspace
	if err := decode(raw, &sw); err != nil {
		return nil, fmt.Errorf("decode workspace: %w", err)
	}
	return sw.toWorkspace(), nil
}

// getValue returns a copy of the value, or nil when the key is absent.
func getValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	if val == nil {
		val = []byte{}
	}
	return val, nil
}

func hasKey(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func iteratePrefix(txn *badger.Txn, prefix []byte, withValues bool, fn func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = withValues
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		var value []byte
		if withValues {
			var err error
			if value, err = item.ValueCopy(nil); err != nil {
				return err
			}
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}
