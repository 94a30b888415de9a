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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeTypeStringsToList(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, NodeTypeStringsToList("A, B", "", " ,C,"))
	assert.Nil(t, NodeTypeStringsToList("", " , "))
}

func TestBuildNodeTypeFilter(t *testing.T) {
	tests := []struct {
		name     string
		included []string
		excluded []string
		want     string
	}{
		{"include only", []string{"Neos.Neos:Document"}, nil, "Neos.Neos:Document"},
		{"include and exclude", []string{"A"}, []string{"B", "C"}, "A,!B,!C"},
		{"exclude only", nil, []string{"A", "B"}, "!A,!B"},
		{"blank entries dropped", []string{" ", "A"}, []string{""}, "A"},
		{"empty", nil, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildNodeTypeFilter(tt.included, tt.excluded))
		})
	}
}

func TestParseNodeTypeCriteria(t *testing.T) {
	c := ParseNodeTypeCriteria("A, !B ,,!  ,C")
	assert.Equal(t, []NodeTypeName{"A", "C"}, c.Allowed)
	assert.Equal(t, []NodeTypeName{"B"}, c.Disallowed)
	assert.Equal(t, "A,C,!B", c.String())
	assert.True(t, ParseNodeTypeCriteria("").IsEmpty())
}

func TestNodeTypeCriteria_Matches(t *testing.T) {
	m := NewNodeTypeManager(DefaultNodeTypes()...)

	tests := []struct {
		name   string
		filter string
		typ    NodeTypeName
		want   bool
	}{
		{"empty matches all", "", "Neos.Neos:Text", true},
		{"direct include", "Neos.Neos:Page", "Neos.Neos:Page", true},
		{"inherited include", "Neos.Neos:Document", "Neos.Neos:Page", true},
		{"not included", "Neos.Neos:Document", "Neos.Neos:Text", false},
		{"closer exclusion wins", "Neos.Neos:Document,!Neos.Neos:Shortcut", "Neos.Neos:Shortcut", false},
		{"closer inclusion wins", "!Neos.Neos:Document,Neos.Neos:Shortcut", "Neos.Neos:Shortcut", true},
		{"exclusion only keeps others", "!Neos.Neos:Document", "Neos.Neos:Text", true},
		{"exclusion only drops match", "!Neos.Neos:Document", "Neos.Neos:Page", false},
		{"tie goes to exclusion", "Neos.Neos:Page,!Neos.Neos:Page", "Neos.Neos:Page", false},
		{"unknown type matches itself", "Vendor:Custom", "Vendor:Custom", true},
		{"unknown type not included", "Neos.Neos:Document", "Vendor:Custom", false},
		{"content-like filter", "!Neos.Neos:Document,!Neos.Neos:ContentCollection", "Neos.Neos:Text", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNodeTypeCriteria(tt.filter).Matches(m, tt.typ))
		})
	}
}

func TestNodeTypeCriteria_MatchesWithoutManager(t *testing.T) {
	c := ParseNodeTypeCriteria("A")
	assert.True(t, c.Matches(nil, "A"))
	assert.False(t, c.Matches(nil, "B"))
}
