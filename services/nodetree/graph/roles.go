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

// Roles names the node types that play a structural role in the UI tree.
type Roles struct {
	// Document marks navigable page boundaries.
	Document NodeTypeName `yaml:"document" json:"document" validate:"required"`

	// Content marks embedded content.
	Content NodeTypeName `yaml:"content" json:"content" validate:"required"`

	// Ignored types never appear in the tree.
	Ignored []NodeTypeName `yaml:"ignored" json:"ignored"`
}

// DefaultRoles returns the roles of the built-in type hierarchy.
func DefaultRoles() Roles {
	return Roles{
		Document: "Neos.Neos:Document",
		Content:  "Neos.Neos:Content",
	}
}

// IgnoredList returns the ignored role as plain strings.
func (r Roles) IgnoredList() []string {
	out := make([]string, 0, len(r.Ignored))
	for _, n := range r.Ignored {
		out = append(out, string(n))
	}
	return out
}

// DocumentFilter returns the filter matching document-like nodes.
func (r Roles) DocumentFilter() string {
	return string(r.Document)
}

// ContentFilter returns the filter matching everything that is neither
// document-like nor ignored.
func (r Roles) ContentFilter() string {
	return BuildNodeTypeFilter(nil, append([]string{string(r.Document)}, r.IgnoredList()...))
}
