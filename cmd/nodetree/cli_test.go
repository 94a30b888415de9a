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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/nodetree/services/nodetree"
	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/changes"
	"github.com/AleutianAI/nodetree/services/nodetree/config"
	"github.com/AleutianAI/nodetree/services/nodetree/contentrepo"
	"github.com/AleutianAI/nodetree/services/nodetree/record"
	"github.com/AleutianAI/nodetree/services/nodetree/storage/badger/badgertest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestService(t *testing.T) (*nodetree.Service, *contentrepo.Repository) {
	t.Helper()
	store := badgertest.NewStore(t, badgertest.SiteFixture)
	reg, err := contentrepo.NewRegistry(store.Repository())
	require.NoError(t, err)
	svc := nodetree.NewService(reg, nodetree.ServiceOptions{})
	svc.SetReady(true)
	return svc, store.Repository()
}

func TestResolveAddress(t *testing.T) {
	_, repo := newTestService(t)
	ctx := context.Background()

	got, err := resolveAddress(ctx, repo, "live", badgertest.EN, "d1")
	require.NoError(t, err)
	assert.Equal(t, badgertest.LiveAddress("d1").Serialize(), got)

	serialized := badgertest.AliceAddress("new-page").Serialize()
	got, err = resolveAddress(ctx, repo, "live", badgertest.EN, serialized)
	require.NoError(t, err)
	assert.Equal(t, serialized, got, "serialized addresses pass through")

	_, err = resolveAddress(ctx, repo, "nope", badgertest.EN, "d1")
	assert.Error(t, err)
}

func TestTreeItems(t *testing.T) {
	svc, _ := newTestService(t)
	resp, err := svc.Tree(context.Background(), nodetree.TreeRequest{
		Site:         badgertest.LiveAddress("site").Serialize(),
		LoadingDepth: 1,
	})
	require.NoError(t, err)

	items := treeItems(resp)
	require.NotEmpty(t, items)
	assert.Equal(t, "site", items[0].ID)
	assert.Empty(t, items[0].Parent)
	assert.True(t, items[0].Focused, "the site is focused without a document")

	index := map[string]int{}
	for i, it := range items {
		index[it.ID] = i
	}
	require.Contains(t, index, "d1")
	require.Contains(t, index, "hidden-page")
	assert.NotContains(t, index, "d2")
	assert.Less(t, index["d1"], index["hidden-page"], "siblings keep child order")

	d1 := items[index["d1"]]
	assert.Equal(t, items[0].Key, d1.Parent)
	assert.Equal(t, "About", d1.Label)
	assert.False(t, d1.Hidden)
	assert.True(t, items[index["hidden-page"]].Hidden)
}

func TestTreeItem_ParentOutsideResponse(t *testing.T) {
	sites := badgertest.LiveAddress("sites").Serialize()
	site := &record.Record{ContextPath: "s", Identifier: "site", Parent: &sites}
	page := &record.Record{ContextPath: "p", Identifier: "d1", Parent: &site.ContextPath}
	byPath := map[string]*record.Record{"s": site, "p": page}

	assert.Empty(t, treeItem(site, "", byPath).Parent)
	assert.Equal(t, "s", treeItem(page, "", byPath).Parent)
}

func TestChangeRows(t *testing.T) {
	rows := changeRows([]changes.NodeInfo{
		{
			ContextPath:         badgertest.AliceAddress("new-text").Serialize(),
			DocumentContextPath: badgertest.AliceAddress("d1").Serialize(),
		},
		{ContextPath: "garbage", DocumentContextPath: "garbage"},
	})
	assert.Equal(t, [][]string{{"new-text", "d1"}, {"garbage", "garbage"}}, rows)
}

func TestTargetRows(t *testing.T) {
	rows := targetRows(&nodetree.TargetsResponse{
		Workspaces: map[address.WorkspaceName]changes.TargetWorkspace{
			"review": {Name: "review", Title: "Review"},
			"live":   {Name: "live", Title: "Live", ReadOnly: true},
		},
	})
	assert.Equal(t, [][]string{
		{"live", "Live", "read only"},
		{"review", "Review", "publish"},
	}, rows)
}

func TestNewRouter(t *testing.T) {
	svc, _ := newTestService(t)
	router := newRouter(config.DefaultConfig(), svc, nil)

	for _, path := range []string{"/v1/nodetree/health", "/v1/nodetree/ready"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "no exporter without telemetry.Init")

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/nodetree/health", nil)
	req.Header.Set("X-Actor-ID", "bad\nactor")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code, "actor middleware is installed")
}
