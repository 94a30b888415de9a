// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"strings"
)

// TreeItem is one line of a rendered node tree.
type TreeItem struct {
	// Key identifies the item; Parent is the Key of its parent.
	Key    string
	Parent string

	ID       string
	Label    string
	NodeType string

	Hidden  bool
	Focused bool
}

// Tree prints items as an indented tree.
//
// Items whose Parent is not among the keys are roots. Siblings keep their
// input order. Machine output prints one "depth\tid\ttype\tlabel" line
// per item in depth first order.
func (p *Printer) Tree(items []TreeItem) {
	keys := make(map[string]struct{}, len(items))
	for _, it := range items {
		keys[it.Key] = struct{}{}
	}
	children := make(map[string][]TreeItem, len(items))
	var roots []TreeItem
	for _, it := range items {
		if _, ok := keys[it.Parent]; ok && it.Parent != it.Key {
			children[it.Parent] = append(children[it.Parent], it)
			continue
		}
		roots = append(roots, it)
	}

	visited := make(map[string]struct{}, len(items))
	var walk func(it TreeItem, prefix string, last bool, depth int)
	walk = func(it TreeItem, prefix string, last bool, depth int) {
		if _, seen := visited[it.Key]; seen {
			return
		}
		visited[it.Key] = struct{}{}

		if p.level == LevelMachine {
			fmt.Fprintf(p.w, "%d\t%s\t%s\t%s\n", depth, it.ID, it.NodeType, it.Label)
		} else {
			branch := ""
			if depth > 0 {
				branch = "├── "
				if last {
					branch = "└── "
				}
			}
			fmt.Fprintf(p.w, "%s%s%s\n", prefix, branch, p.treeLine(it))
		}

		next := prefix
		if depth > 0 {
			if last {
				next += "    "
			} else {
				next += "│   "
			}
		}
		kids := children[it.Key]
		for i, kid := range kids {
			walk(kid, next, i == len(kids)-1, depth+1)
		}
	}
	for _, root := range roots {
		walk(root, "", true, 0)
	}
}

func (p *Printer) treeLine(it TreeItem) string {
	var b strings.Builder
	label := it.Label
	if label == "" {
		label = it.ID
	}
	switch {
	case it.Focused:
		b.WriteString(p.style(Styles.Highlight, string(IconFocus)+" "+label))
	case it.Hidden:
		b.WriteString(p.style(Styles.Muted, string(IconHidden)+" "+label))
	default:
		b.WriteString(p.style(Styles.Document, label))
	}
	b.WriteString(" ")
	b.WriteString(p.style(Styles.Muted, "("+it.NodeType+")"))
	return b.String()
}
