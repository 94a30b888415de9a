// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/nodetree/pkg/ux"
	"github.com/AleutianAI/nodetree/services/nodetree"
	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/changes"
	"github.com/AleutianAI/nodetree/services/nodetree/contentrepo"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/privilege"
	"github.com/AleutianAI/nodetree/services/nodetree/record"
)

func stdoutPrinter() *ux.Printer {
	return ux.NewPrinter(os.Stdout, ux.DetectLevel(os.Stdout))
}

func runVersion(_ *cobra.Command, _ []string) {
	fmt.Println("nodetree", nodetree.ServiceVersion)
}

func runSeed(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), true, false)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.seed(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	p := stdoutPrinter()
	p.Success("seeded " + args[0])
	p.KeyValues([][2]string{
		{"workspaces", strconv.Itoa(stats.Workspaces)},
		{"nodes", strconv.Itoa(stats.Nodes)},
		{"changes", strconv.Itoa(stats.Changes)},
	})
	return nil
}

func runTree(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, true, false)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.service(nil)
	if err != nil {
		return err
	}
	repo := a.store.Repository()
	dv, err := address.ParseDimensionVariant(treeDimensions)
	if err != nil {
		return err
	}
	ws := address.WorkspaceName(treeWorkspace)

	req := nodetree.TreeRequest{
		LoadingDepth: treeDepth,
		Visibility:   graph.VisibilityWithoutRestrictions,
	}
	if treeFrontend {
		req.Visibility = graph.VisibilityFrontend
	}
	if req.Site, err = resolveAddress(ctx, repo, ws, dv, treeSite); err != nil {
		return err
	}
	if treeDocument != "" {
		if req.Document, err = resolveAddress(ctx, repo, ws, dv, treeDocument); err != nil {
			return err
		}
	}
	for _, t := range treeToggled {
		toggled, err := resolveAddress(ctx, repo, ws, dv, t)
		if err != nil {
			return err
		}
		req.ToggledNodes = append(req.ToggledNodes, toggled)
	}

	resp, err := svc.Tree(ctx, req)
	if err != nil {
		return err
	}
	stdoutPrinter().Tree(treeItems(resp))
	return nil
}

func runChanges(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, true, false)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.service(nil)
	if err != nil {
		return err
	}
	if changesActor != "" {
		ctx = privilege.WithActor(ctx, changesActor)
	}

	resp, err := svc.Unpublished(ctx, changesRepository, address.WorkspaceName(args[0]))
	if err != nil {
		return err
	}
	p := stdoutPrinter()
	p.Title("Unpublished changes in " + args[0])
	if len(resp.Nodes) == 0 {
		p.Muted("no changes")
	} else {
		p.Table([]string{"NODE", "DOCUMENT"}, changeRows(resp.Nodes))
	}

	if !changesTargets {
		return nil
	}
	targets, err := svc.Targets(ctx, changesRepository)
	if err != nil {
		return err
	}
	p.Title("Publish targets")
	p.Table([]string{"WORKSPACE", "TITLE", "ACCESS"}, targetRows(targets))
	return nil
}

// resolveAddress returns value when it is a serialized node address.
// Otherwise value is a node aggregate id in workspace ws and variant dv.
func resolveAddress(ctx context.Context, repo *contentrepo.Repository, ws address.WorkspaceName, dv address.DimensionVariant, value string) (string, error) {
	if a, err := address.Parse(value); err == nil {
		return a.Serialize(), nil
	}
	w, err := repo.Workspaces.FindOneByName(ctx, ws)
	if err != nil {
		return "", fmt.Errorf("workspace %q: %w", ws, err)
	}
	a, err := address.New(w.CurrentContentStreamID, dv, address.NodeAggregateID(value), ws)
	if err != nil {
		return "", err
	}
	return a.Serialize(), nil
}

// treeItems orders the records of a tree response depth first, following
// each record's child order.
func treeItems(resp *nodetree.TreeResponse) []ux.TreeItem {
	byPath := make(map[string]*record.Record, len(resp.Nodes))
	for _, rec := range resp.Nodes {
		byPath[rec.ContextPath] = rec
	}

	var roots []*record.Record
	for _, rec := range byPath {
		if rec.Parent == nil || byPath[*rec.Parent] == nil {
			roots = append(roots, rec)
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		if roots[i].Depth != roots[j].Depth {
			return roots[i].Depth < roots[j].Depth
		}
		return roots[i].Identifier < roots[j].Identifier
	})

	items := make([]ux.TreeItem, 0, len(byPath))
	seen := make(map[string]struct{}, len(byPath))
	var walk func(rec *record.Record)
	walk = func(rec *record.Record) {
		if _, ok := seen[rec.ContextPath]; ok {
			return
		}
		seen[rec.ContextPath] = struct{}{}
		items = append(items, treeItem(rec, resp.Document, byPath))
		for _, child := range rec.Children {
			if c := byPath[child.ContextPath]; c != nil {
				walk(c)
			}
		}
	}
	for _, root := range roots {
		walk(root)
	}
	return items
}

// treeItem converts rec. Parents outside the response are dropped so the
// record renders as a root.
func treeItem(rec *record.Record, document string, byPath map[string]*record.Record) ux.TreeItem {
	item := ux.TreeItem{
		Key:      rec.ContextPath,
		ID:       rec.Identifier,
		Label:    rec.Label,
		NodeType: string(rec.NodeType),
		Focused:  rec.ContextPath == document,
	}
	if rec.Parent != nil && byPath[*rec.Parent] != nil {
		item.Parent = *rec.Parent
	}
	if hidden, ok := rec.Properties[record.PropertyHidden].(bool); ok {
		item.Hidden = hidden
	}
	return item
}

// changeRows lists node and document aggregate ids. Addresses that fail to
// parse are shown raw.
func changeRows(nodes []changes.NodeInfo) [][]string {
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, []string{aggregateID(n.ContextPath), aggregateID(n.DocumentContextPath)})
	}
	return rows
}

func aggregateID(serialized string) string {
	a, err := address.Parse(serialized)
	if err != nil {
		return serialized
	}
	return string(a.NodeAggregateID)
}

func targetRows(resp *nodetree.TargetsResponse) [][]string {
	names := make([]string, 0, len(resp.Workspaces))
	for name := range resp.Workspaces {
		names = append(names, string(name))
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		t := resp.Workspaces[address.WorkspaceName(name)]
		access := "publish"
		if t.ReadOnly {
			access = "read only"
		}
		rows = append(rows, []string{name, t.Title, access})
	}
	return rows
}
