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
	"strings"
)

const (
	filterSeparator = ","
	negationMarker  = "!"
)

// NodeTypeStringsToList splits comma separated type lists into trimmed,
// non-empty names, preserving order.
//
// Example:
//
//	NodeTypeStringsToList("A, B", "", "C") // ["A", "B", "C"]
func NodeTypeStringsToList(lists ...string) []string {
	var out []string
	for _, list := range lists {
		for _, part := range strings.Split(list, filterSeparator) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// BuildNodeTypeFilter composes a filter expression from included and
// excluded type names.
//
// Example:
//
//	BuildNodeTypeFilter([]string{"A"}, []string{"B", "C"}) // "A,!B,!C"
func BuildNodeTypeFilter(included, excluded []string) string {
	parts := make([]string, 0, len(included)+len(excluded))
	for _, name := range included {
		if name = strings.TrimSpace(name); name != "" {
			parts = append(parts, name)
		}
	}
	for _, name := range excluded {
		if name = strings.TrimSpace(name); name != "" {
			parts = append(parts, negationMarker+name)
		}
	}
	return strings.Join(parts, filterSeparator)
}

// NodeTypeCriteria is a parsed filter expression.
type NodeTypeCriteria struct {
	Allowed    []NodeTypeName
	Disallowed []NodeTypeName
}

// ParseNodeTypeCriteria parses a filter expression built by
// BuildNodeTypeFilter. Empty entries are ignored.
func ParseNodeTypeCriteria(filter string) NodeTypeCriteria {
	var c NodeTypeCriteria
	for _, part := range NodeTypeStringsToList(filter) {
		if strings.HasPrefix(part, negationMarker) {
			if name := strings.TrimSpace(strings.TrimPrefix(part, negationMarker)); name != "" {
				c.Disallowed = append(c.Disallowed, NodeTypeName(name))
			}
			continue
		}
		c.Allowed = append(c.Allowed, NodeTypeName(part))
	}
	return c
}

// IsEmpty reports whether the criteria match every type.
func (c NodeTypeCriteria) IsEmpty() bool {
	return len(c.Allowed) == 0 && len(c.Disallowed) == 0
}

// String renders the criteria as a filter expression.
func (c NodeTypeCriteria) String() string {
	included := make([]string, len(c.Allowed))
	for i, n := range c.Allowed {
		included[i] = string(n)
	}
	excluded := make([]string, len(c.Disallowed))
	for i, n := range c.Disallowed {
		excluded[i] = string(n)
	}
	return BuildNodeTypeFilter(included, excluded)
}

// Matches reports whether a node of type name satisfies the criteria.
//
// Description:
//
//	The mentioned type closest to name in its super type chain decides.
//	On a tie the exclusion wins. When no mentioned type applies, the node
//	matches only if nothing is explicitly allowed.
//
// Example:
//
//	// Page inherits Document; Shortcut inherits Document.
//	c := ParseNodeTypeCriteria("Neos.Neos:Document,!Neos.Neos:Shortcut")
//	c.Matches(m, "Neos.Neos:Page")     // true
//	c.Matches(m, "Neos.Neos:Shortcut") // false
//	c.Matches(m, "Neos.Neos:Text")     // false
func (c NodeTypeCriteria) Matches(m *NodeTypeManager, name NodeTypeName) bool {
	if c.IsEmpty() {
		return true
	}
	if m == nil {
		m = &NodeTypeManager{}
	}

	bestAllowed := closest(m, name, c.Allowed)
	bestDisallowed := closest(m, name, c.Disallowed)

	switch {
	case bestAllowed < 0 && bestDisallowed < 0:
		return len(c.Allowed) == 0
	case bestAllowed < 0:
		return false
	case bestDisallowed < 0:
		return true
	default:
		return bestAllowed < bestDisallowed
	}
}

func closest(m *NodeTypeManager, name NodeTypeName, candidates []NodeTypeName) int {
	best := -1
	for _, candidate := range candidates {
		d := m.distance(name, candidate)
		if d >= 0 && (best < 0 || d < best) {
			best = d
		}
	}
	return best
}
