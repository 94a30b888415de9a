// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// NodeTypeName is the fully qualified name of a node type,
// e.g. "Neos.Neos:Document".
type NodeTypeName string

// ShortName returns the part after the package separator.
func (n NodeTypeName) ShortName() string {
	s := string(n)
	if i := strings.LastIndex(s, ":"); i >= 0 && i < len(s)-1 {
		return s[i+1:]
	}
	return s
}

// NodeType is one node type definition.
type NodeType struct {
	Name       NodeTypeName
	SuperTypes []NodeTypeName
	Abstract   bool
	Label      string
}

// nodeTypeSet is an immutable snapshot of all registered types.
type nodeTypeSet struct {
	types map[NodeTypeName]NodeType
}

// NodeTypeManager holds the registered node types and answers inheritance
// questions.
//
// Description:
//
//	The registry is an immutable snapshot swapped atomically by Replace, so
//	readers never block and a hot reload never exposes a half-built set.
//
// Thread Safety: Safe for concurrent use.
type NodeTypeManager struct {
	snapshot atomic.Pointer[nodeTypeSet]
}

// NewNodeTypeManager creates a manager with the given types.
func NewNodeTypeManager(types ...NodeType) *NodeTypeManager {
	m := &NodeTypeManager{}
	m.Replace(types)
	return m
}

// Replace swaps the complete set of registered types.
func (m *NodeTypeManager) Replace(types []NodeType) {
	set := &nodeTypeSet{types: make(map[NodeTypeName]NodeType, len(types))}
	for _, t := range types {
		set.types[t.Name] = t
	}
	m.snapshot.Store(set)
}

func (m *NodeTypeManager) current() *nodeTypeSet {
	if s := m.snapshot.Load(); s != nil {
		return s
	}
	return &nodeTypeSet{}
}

// Get returns a registered type.
func (m *NodeTypeManager) Get(name NodeTypeName) (NodeType, bool) {
	t, ok := m.current().types[name]
	return t, ok
}

// Names returns all registered type names, sorted.
func (m *NodeTypeManager) Names() []NodeTypeName {
	set := m.current()
	names := make([]NodeTypeName, 0, len(set.types))
	for n := range set.types {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// IsOfType reports whether name equals target or inherits from it.
// Unknown types only match themselves.
func (m *NodeTypeManager) IsOfType(name, target NodeTypeName) bool {
	return m.distance(name, target) >= 0
}

// distance returns the number of inheritance steps from name to target,
// or -1 when name does not inherit from target.
func (m *NodeTypeManager) distance(name, target NodeTypeName) int {
	if name == target {
		return 0
	}
	set := m.current()
	visited := map[NodeTypeName]bool{name: true}
	frontier := []NodeTypeName{name}
	for depth := 1; len(frontier) > 0; depth++ {
		var next []NodeTypeName
		for _, n := range frontier {
			t, ok := set.types[n]
			if !ok {
				continue
			}
			for _, super := range t.SuperTypes {
				if super == target {
					return depth
				}
				if !visited[super] {
					visited[super] = true
					next = append(next, super)
				}
			}
		}
		frontier = next
	}
	return -1
}

// nodeTypeDefinition is the YAML shape of one entry in a node types file:
//
//	Neos.Neos:Page:
//	  superTypes:
//	    Neos.Neos:Document: true
//	  ui:
//	    label: Page
type nodeTypeDefinition struct {
	SuperTypes map[string]bool `yaml:"superTypes"`
	Abstract   bool            `yaml:"abstract"`
	UI         struct {
		Label string `yaml:"label"`
	} `yaml:"ui"`
}

// ParseNodeTypes decodes node type definitions from YAML.
//
// Description:
//
//	Super types set to false are ignored, which lets a type drop an
//	inherited super type. Every referenced super type must be defined.
//
// Outputs:
//
//	[]NodeType - Definitions sorted by name.
//	error - Wraps ErrNodeTypesInvalid.
func ParseNodeTypes(data []byte) ([]NodeType, error) {
	var raw map[string]nodeTypeDefinition
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNodeTypesInvalid, err)
	}

	types := make([]NodeType, 0, len(raw))
	for name, def := range raw {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: empty node type name", ErrNodeTypesInvalid)
		}
		t := NodeType{Name: NodeTypeName(name), Abstract: def.Abstract, Label: def.UI.Label}
		for super, enabled := range def.SuperTypes {
			if !enabled {
				continue
			}
			if _, ok := raw[super]; !ok {
				return nil, fmt.Errorf("%w: %s references undefined super type %s", ErrNodeTypesInvalid, name, super)
			}
			t.SuperTypes = append(t.SuperTypes, NodeTypeName(super))
		}
		sort.Slice(t.SuperTypes, func(i, j int) bool { return t.SuperTypes[i] < t.SuperTypes[j] })
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	return types, nil
}

// LoadNodeTypes reads node type definitions from a YAML file.
func LoadNodeTypes(path string) ([]NodeType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read node types %s: %w", path, err)
	}
	types, err := ParseNodeTypes(data)
	if err != nil {
		return nil, fmt.Errorf("load node types %s: %w", path, err)
	}
	return types, nil
}

// DefaultNodeTypes is the built-in type hierarchy used when no node types
// file is configured.
func DefaultNodeTypes() []NodeType {
	return []NodeType{
		{Name: "Neos.Neos:Node", Abstract: true},
		{Name: "Neos.Neos:Document", SuperTypes: []NodeTypeName{"Neos.Neos:Node"}, Abstract: true},
		{Name: "Neos.Neos:Content", SuperTypes: []NodeTypeName{"Neos.Neos:Node"}, Abstract: true},
		{Name: "Neos.Neos:ContentCollection", SuperTypes: []NodeTypeName{"Neos.Neos:Node"}, Label: "Content Collection"},
		{Name: "Neos.Neos:Site", SuperTypes: []NodeTypeName{"Neos.Neos:Document"}, Label: "Site"},
		{Name: "Neos.Neos:Sites", SuperTypes: []NodeTypeName{"Neos.Neos:Node"}, Label: "Sites"},
		{Name: "Neos.Neos:Page", SuperTypes: []NodeTypeName{"Neos.Neos:Document"}, Label: "Page"},
		{Name: "Neos.Neos:Shortcut", SuperTypes: []NodeTypeName{"Neos.Neos:Document"}, Label: "Shortcut"},
		{Name: "Neos.Neos:Text", SuperTypes: []NodeTypeName{"Neos.Neos:Content"}, Label: "Text"},
		{Name: "Neos.Neos:Image", SuperTypes: []NodeTypeName{"Neos.Neos:Content"}, Label: "Image"},
	}
}
