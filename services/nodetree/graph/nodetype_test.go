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
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNodeTypesYAML = `
Neos.Neos:Node:
  abstract: true
Neos.Neos:Document:
  abstract: true
  superTypes:
    Neos.Neos:Node: true
Vendor:Page:
  superTypes:
    Neos.Neos:Document: true
  ui:
    label: Page
Vendor:Landing:
  superTypes:
    Vendor:Page: true
    Neos.Neos:Node: false
`

func TestParseNodeTypes(t *testing.T) {
	types, err := ParseNodeTypes([]byte(testNodeTypesYAML))
	require.NoError(t, err)
	require.Len(t, types, 4)

	m := NewNodeTypeManager(types...)

	page, ok := m.Get("Vendor:Page")
	require.True(t, ok)
	assert.Equal(t, "Page", page.Label)
	assert.Equal(t, []NodeTypeName{"Neos.Neos:Document"}, page.SuperTypes)

	landing, ok := m.Get("Vendor:Landing")
	require.True(t, ok)
	assert.Equal(t, []NodeTypeName{"Vendor:Page"}, landing.SuperTypes)

	assert.True(t, m.IsOfType("Vendor:Landing", "Neos.Neos:Document"))
	assert.True(t, m.IsOfType("Vendor:Landing", "Neos.Neos:Node"))
	assert.False(t, m.IsOfType("Neos.Neos:Document", "Vendor:Page"))
	assert.Equal(t, 2, m.distance("Vendor:Landing", "Neos.Neos:Document"))
}

func TestParseNodeTypes_Invalid(t *testing.T) {
	_, err := ParseNodeTypes([]byte("A:\n  superTypes:\n    Missing: true\n"))
	assert.ErrorIs(t, err, ErrNodeTypesInvalid)

	_, err = ParseNodeTypes([]byte("- not a map"))
	assert.ErrorIs(t, err, ErrNodeTypesInvalid)
}

func TestNodeTypeManager_NamesAndReplace(t *testing.T) {
	m := NewNodeTypeManager(NodeType{Name: "B"}, NodeType{Name: "A"})
	assert.Equal(t, []NodeTypeName{"A", "B"}, m.Names())

	m.Replace([]NodeType{{Name: "C"}})
	_, ok := m.Get("A")
	assert.False(t, ok)
	assert.Equal(t, []NodeTypeName{"C"}, m.Names())
}

func TestNodeTypeManager_ZeroValue(t *testing.T) {
	var m NodeTypeManager
	assert.Empty(t, m.Names())
	assert.True(t, m.IsOfType("X", "X"))
	assert.False(t, m.IsOfType("X", "Y"))
}

func TestNodeTypeName_ShortName(t *testing.T) {
	assert.Equal(t, "Page", NodeTypeName("Neos.Neos:Page").ShortName())
	assert.Equal(t, "Plain", NodeTypeName("Plain").ShortName())
	assert.Equal(t, "Trailing:", NodeTypeName("Trailing:").ShortName())
}

func TestNodeTypeWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "NodeTypes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("A:\n  abstract: true\n"), 0o600))

	types, err := LoadNodeTypes(path)
	require.NoError(t, err)
	m := NewNodeTypeManager(types...)

	w, err := NewNodeTypeWatcher(path, m, nil)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("A:\n  abstract: true\nB:\n  superTypes:\n    A: true\n"), 0o600))

	require.Eventually(t, func() bool {
		return m.IsOfType("B", "A")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNodeTypeWatcher_KeepsSnapshotOnBrokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "NodeTypes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("A:\n  abstract: true\n"), 0o600))

	m := NewNodeTypeManager(NodeType{Name: "A", Abstract: true})
	w, err := NewNodeTypeWatcher(path, m, nil)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	reloaded := make(chan error, 4)
	w.OnReload = func(err error) { reloaded <- err }

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("A:\n  superTypes:\n    Missing: true\n"), 0o600))

	select {
	case err := <-reloaded:
		assert.ErrorIs(t, err, ErrNodeTypesInvalid)
	case <-time.After(5 * time.Second):
		t.Fatal("reload not triggered")
	}
	_, ok := m.Get("A")
	assert.True(t, ok)
}

func TestNodeTypeWatcher_StopWithoutStart(t *testing.T) {
	w, err := NewNodeTypeWatcher(filepath.Join(t.TempDir(), "x.yaml"), NewNodeTypeManager(), nil)
	require.NoError(t, err)
	w.Stop()
	w.Stop()
}

func TestNewNodeTypeWatcher_RequiresManager(t *testing.T) {
	_, err := NewNodeTypeWatcher("x.yaml", nil, nil)
	assert.Error(t, err)
}
