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
	"fmt"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/workspace"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor enc mode: %v", err))
	}
	// Property bags must decode to JSON-encodable maps.
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor dec mode: %v", err))
	}
}

func encode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func decode(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// storedNode is the persisted form of a node in one subgraph.
type storedNode struct {
	ID                   string         `cbor:"id"`
	Parent               string         `cbor:"parent,omitempty"`
	Position             int            `cbor:"pos"`
	Type                 string         `cbor:"type"`
	Classification       string         `cbor:"class"`
	Origin               string         `cbor:"origin"`
	Name                 string         `cbor:"name,omitempty"`
	Properties           map[string]any `cbor:"props,omitempty"`
	Created              time.Time      `cbor:"created"`
	OriginalCreated      time.Time      `cbor:"ocreated"`
	LastModified         *time.Time     `cbor:"modified,omitempty"`
	OriginalLastModified *time.Time     `cbor:"omodified,omitempty"`
}

func storedNodeFrom(rec NodeRecord) storedNode {
	return storedNode{
		ID:                   string(rec.AggregateID),
		Parent:               string(rec.ParentID),
		Position:             rec.Position,
		Type:                 string(rec.TypeName),
		Classification:       string(rec.Classification),
		Origin:               rec.OriginDimensionVariant.String(),
		Name:                 rec.Name,
		Properties:           rec.Properties,
		Created:              rec.Timestamps.Created,
		OriginalCreated:      rec.Timestamps.OriginalCreated,
		LastModified:         rec.Timestamps.LastModified,
		OriginalLastModified: rec.Timestamps.OriginalLastModified,
	}
}

func (s *storedNode) toNode(identity graph.SubgraphIdentity) (*graph.Node, error) {
	origin, err := address.ParseDimensionVariant(s.Origin)
	if err != nil {
		return nil, fmt.Errorf("node %s origin: %w", s.ID, err)
	}
	return &graph.Node{
		AggregateID:            address.NodeAggregateID(s.ID),
		TypeName:               graph.NodeTypeName(s.Type),
		Classification:         graph.Classification(s.Classification),
		OriginDimensionVariant: origin,
		Subgraph:               identity,
		Name:                   s.Name,
		Properties:             s.Properties,
		Timestamps: graph.Timestamps{
			Created:              s.Created,
			OriginalCreated:      s.OriginalCreated,
			LastModified:         s.LastModified,
			OriginalLastModified: s.OriginalLastModified,
		},
	}, nil
}

// storedWorkspace is the persisted form of a workspace.
type storedWorkspace struct {
	Name          string `cbor:"name"`
	Title         string `cbor:"title,omitempty"`
	Description   string `cbor:"description,omitempty"`
	Base          string `cbor:"base,omitempty"`
	Owner         string `cbor:"owner,omitempty"`
	ContentStream string `cbor:"cs"`
}

func storedWorkspaceFrom(ws *workspace.Workspace) storedWorkspace {
	return storedWorkspace{
		Name:          string(ws.Name),
		Title:         ws.Title,
		Description:   ws.Description,
		Base:          string(ws.BaseWorkspaceName),
		Owner:         ws.Owner,
		ContentStream: string(ws.CurrentContentStreamID),
	}
}

func (s storedWorkspace) toWorkspace() *workspace.Workspace {
	return &workspace.Workspace{
		Name:                   address.WorkspaceName(s.Name),
		Title:                  s.Title,
		Description:            s.Description,
		BaseWorkspaceName:      address.WorkspaceName(s.Base),
		Owner:                  s.Owner,
		CurrentContentStreamID: address.ContentStreamID(s.ContentStream),
	}
}

// storedChange is the persisted form of a pending change.
type storedChange struct {
	ContentStream string `cbor:"cs"`
	ID            string `cbor:"id"`
	Origin        string `cbor:"origin"`
	Created       bool   `cbor:"created,omitempty"`
	Changed       bool   `cbor:"changed,omitempty"`
	Moved         bool   `cbor:"moved,omitempty"`
	Deleted       bool   `cbor:"deleted,omitempty"`
	Attachment    string `cbor:"attach,omitempty"`
}

func storedChangeFrom(c workspace.PendingChange) storedChange {
	return storedChange{
		ContentStream: string(c.ContentStreamID),
		ID:            string(c.NodeAggregateID),
		Origin:        c.OriginDimensionVariant.String(),
		Created:       c.Created,
		Changed:       c.Changed,
		Moved:         c.Moved,
		Deleted:       c.Deleted,
		Attachment:    string(c.RemovalAttachmentPoint),
	}
}

func (s storedChange) toChange() (workspace.PendingChange, error) {
	origin, err := address.ParseDimensionVariant(s.Origin)
	if err != nil {
		return workspace.PendingChange{}, fmt.Errorf("change %s origin: %w", s.ID, err)
	}
	return workspace.PendingChange{
		ContentStreamID:        address.ContentStreamID(s.ContentStream),
		NodeAggregateID:        address.NodeAggregateID(s.ID),
		OriginDimensionVariant: origin,
		Created:                s.Created,
		Changed:                s.Changed,
		Moved:                  s.Moved,
		Deleted:                s.Deleted,
		RemovalAttachmentPoint: address.NodeAggregateID(s.Attachment),
	}, nil
}
