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
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/workspace"
)

// Fixture is a YAML description of projection contents used by
// `nodetree seed` and by tests.
//
//	workspaces:
//	  - name: live
//	  - name: user-alice
//	    base: live
//	    owner: alice
//	subgraphs:
//	  - workspace: live
//	    dimensions: {language: en}
//	    nodes:
//	      - id: sites
//	        type: Neos.Neos:Sites
//	        classification: root
//	        children:
//	          - id: site
//	            type: Neos.Neos:Site
//	            properties: {title: Home}
//	changes:
//	  - workspace: user-alice
//	    id: page-1
//	    dimensions: {language: en}
//	    created: true
type Fixture struct {
	Workspaces []FixtureWorkspace `yaml:"workspaces"`
	Subgraphs  []FixtureSubgraph  `yaml:"subgraphs"`
	Changes    []FixtureChange    `yaml:"changes"`
}

// FixtureWorkspace describes one workspace. ContentStream is generated when
// omitted.
type FixtureWorkspace struct {
	Name          string `yaml:"name"`
	Title         string `yaml:"title"`
	Description   string `yaml:"description"`
	Base          string `yaml:"base"`
	Owner         string `yaml:"owner"`
	ContentStream string `yaml:"contentStream"`
}

// FixtureSubgraph holds the node tree of one workspace in one dimension
// variant.
type FixtureSubgraph struct {
	Workspace  string                   `yaml:"workspace"`
	Dimensions address.DimensionVariant `yaml:"dimensions"`

	// Parent attaches Nodes below an existing node, after its current
	// children. Empty seeds root nodes.
	Parent string `yaml:"parent"`

	Nodes []FixtureNode `yaml:"nodes"`
}

// FixtureNode describes a node and, recursively, its children.
type FixtureNode struct {
	ID             string         `yaml:"id"`
	Type           string         `yaml:"type"`
	Classification string         `yaml:"classification"`
	Name           string         `yaml:"name"`
	Properties     map[string]any `yaml:"properties"`
	Hidden         bool           `yaml:"hidden"`

	// Origin defaults to the subgraph dimensions.
	Origin *address.DimensionVariant `yaml:"origin"`

	Created      time.Time  `yaml:"created"`
	LastModified *time.Time `yaml:"lastModified"`

	Children []FixtureNode `yaml:"children"`
}

// FixtureChange describes one pending change.
type FixtureChange struct {
	Workspace              string                   `yaml:"workspace"`
	ID                     string                   `yaml:"id"`
	Dimensions             address.DimensionVariant `yaml:"dimensions"`
	Created                bool                     `yaml:"created"`
	Changed                bool                     `yaml:"changed"`
	Moved                  bool                     `yaml:"moved"`
	Deleted                bool                     `yaml:"deleted"`
	RemovalAttachmentPoint string                   `yaml:"removalAttachmentPoint"`
}

// ParseFixture decodes a fixture document.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &f, nil
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	return ParseFixture(data)
}

// SeedStats reports what Seed wrote.
type SeedStats struct {
	Workspaces int
	Nodes      int
	Changes    int
}

// Seed writes a fixture into the store.
//
// Description:
//
//	Workspaces are written first so subgraphs and changes can reference them
//	by name. Sibling positions follow fixture order.
//
// Outputs:
//
//	SeedStats - Counts of written entities.
//	error - Non-nil on unknown workspace references or storage failures.
func (s *Store) Seed(ctx context.Context, f *Fixture) (SeedStats, error) {
	var stats SeedStats
	if f == nil {
		return stats, errors.New("seed: fixture is nil")
	}

	streams := make(map[string]address.ContentStreamID, len(f.Workspaces))
	for _, fw := range f.Workspaces {
		if fw.Name == "" {
			return stats, errors.New("seed: workspace without name")
		}
		cs := fw.ContentStream
		if cs == "" {
			cs = uuid.NewString()
		}
		ws := &workspace.Workspace{
			Name:                   address.WorkspaceName(fw.Name),
			Title:                  fw.Title,
			Description:            fw.Description,
			BaseWorkspaceName:      address.WorkspaceName(fw.Base),
			Owner:                  fw.Owner,
			CurrentContentStreamID: address.ContentStreamID(cs),
		}
		if ws.Title == "" {
			ws.Title = fw.Name
		}
		if err := s.PutWorkspace(ctx, ws); err != nil {
			return stats, err
		}
		streams[fw.Name] = ws.CurrentContentStreamID
		stats.Workspaces++
	}

	resolve := func(name string) (address.ContentStreamID, error) {
		if cs, ok := streams[name]; ok {
			return cs, nil
		}
		ws, err := s.FindOneByName(ctx, address.WorkspaceName(name))
		if err != nil {
			return "", fmt.Errorf("seed: workspace %q: %w", name, err)
		}
		streams[name] = ws.CurrentContentStreamID
		return ws.CurrentContentStreamID, nil
	}

	now := time.Now().UTC()
	for _, sg := range f.Subgraphs {
		cs, err := resolve(sg.Workspace)
		if err != nil {
			return stats, err
		}
		parent := address.NodeAggregateID(sg.Parent)
		offset := 0
		if parent != "" {
			existing, err := s.childIDs(ctx, cs, sg.Dimensions, parent)
			if err != nil {
				return stats, err
			}
			offset = len(existing)
		}
		n, err := s.seedNodes(ctx, cs, sg.Dimensions, parent, offset, sg.Nodes, now)
		stats.Nodes += n
		if err != nil {
			return stats, err
		}
	}

	for _, fc := range f.Changes {
		cs, err := resolve(fc.Workspace)
		if err != nil {
			return stats, err
		}
		err = s.PutChange(ctx, workspace.PendingChange{
			ContentStreamID:        cs,
			NodeAggregateID:        address.NodeAggregateID(fc.ID),
			OriginDimensionVariant: fc.Dimensions,
			Created:                fc.Created,
			Changed:                fc.Changed,
			Moved:                  fc.Moved,
			Deleted:                fc.Deleted,
			RemovalAttachmentPoint: address.NodeAggregateID(fc.RemovalAttachmentPoint),
		})
		if err != nil {
			return stats, err
		}
		stats.Changes++
	}

	s.logger.Info("fixture seeded",
		slog.Int("workspaces", stats.Workspaces),
		slog.Int("nodes", stats.Nodes),
		slog.Int("changes", stats.Changes))
	return stats, nil
}

func (s *Store) seedNodes(ctx context.Context, cs address.ContentStreamID, dv address.DimensionVariant, parent address.NodeAggregateID, offset int, nodes []FixtureNode, now time.Time) (int, error) {
	written := 0
	for i, fn := range nodes {
		if fn.ID == "" || fn.Type == "" {
			return written, fmt.Errorf("seed: node under %q needs id and type", parent)
		}
		origin := dv
		if fn.Origin != nil {
			origin = *fn.Origin
		}
		created := fn.Created
		if created.IsZero() {
			created = now
		}
		classification := graph.Classification(fn.Classification)
		if classification == "" {
			classification = graph.ClassificationRegular
			if parent == "" {
				classification = graph.ClassificationRoot
			}
		}

		rec := NodeRecord{
			AggregateID:            address.NodeAggregateID(fn.ID),
			ParentID:               parent,
			Position:               offset + i,
			TypeName:               graph.NodeTypeName(fn.Type),
			Classification:         classification,
			OriginDimensionVariant: origin,
			Name:                   fn.Name,
			Properties:             fn.Properties,
			Timestamps: graph.Timestamps{
				Created:              created,
				OriginalCreated:      created,
				LastModified:         fn.LastModified,
				OriginalLastModified: fn.LastModified,
			},
		}
		if err := s.PutNode(ctx, cs, dv, rec); err != nil {
			return written, err
		}
		written++
		if fn.Hidden {
			if err := s.SetHidden(ctx, cs, dv, rec.AggregateID, true); err != nil {
				return written, err
			}
		}

		n, err := s.seedNodes(ctx, cs, dv, rec.AggregateID, 0, fn.Children, now)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
