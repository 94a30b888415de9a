// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/nodetree/services/nodetree/graph"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, CurrentConfigVersion, cfg.Meta.Version)
	assert.Equal(t, graph.NodeTypeName("Neos.Neos:Document"), cfg.Roles.Document)
	assert.Equal(t, "default", cfg.Storage.RepositoryID)
}

func TestCreateDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "nodetree.yaml")
	require.NoError(t, createDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var cfg NodetreeConfig
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
	assert.Equal(t, CurrentConfigVersion, cfg.Meta.Version)
}

func TestLoadFrom_FirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodetree.yaml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".nodetree", "data"), cfg.Storage.Path)
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  addr: 0.0.0.0:9000
  read_timeout: 2s
storage:
  in_memory: true
  path: ""
roles:
  document: Acme:Document
  content: Acme:Content
  ignored: [Acme:Hidden]
privilege:
  publishers:
    live: [alice]
  denied_node_types: [Acme:Secret]
presentation:
  preview_base_url: https://cms.example.com/neos
`))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout, "default kept")
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, []graph.NodeTypeName{"Acme:Hidden"}, cfg.Roles.Ignored)
	assert.Equal(t, []string{"alice"}, cfg.Privilege.Publishers["live"])
	assert.Equal(t, []graph.NodeTypeName{"Acme:Secret"}, cfg.Privilege.DeniedNodeTypes)
	assert.Equal(t, "https://cms.example.com/neos", cfg.Presentation.PreviewBaseURL)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad addr":       "server: {addr: 'not an address'}",
		"negative rps":   "server: {rate_limit: {requests_per_second: -1}}",
		"no path":        "storage: {path: '', in_memory: false}",
		"bad preview":    "presentation: {preview_base_url: 'cms'}",
		"bad level":      "logging: {level: loud}",
		"bad exporter":   "telemetry: {trace_exporter: zipkin}",
		"no document":    "roles: {document: ''}",
		"no repository":  "storage: {repository_id: ''}",
		"negative cache": "storage: {cache_size: -5}",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := Parse([]byte("server: ["))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"NODETREE_ADDR":           " :8081 ",
		"NODETREE_IN_MEMORY":      "true",
		"NODETREE_REPOSITORY":     "acme",
		"NODETREE_LOG_LEVEL":      "debug",
		"NODETREE_RATE_LIMIT_RPS": "2.5",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := DefaultConfig()
	require.NoError(t, applyEnv(&cfg, lookup))
	assert.Equal(t, ":8081", cfg.Server.Addr)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, "acme", cfg.Storage.RepositoryID)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.InDelta(t, 2.5, cfg.Server.RateLimit.RequestsPerSecond, 1e-9)
	assert.Equal(t, "~/.nodetree/data", cfg.Storage.Path, "untouched")

	env["NODETREE_IN_MEMORY"] = "maybe"
	assert.Error(t, applyEnv(&cfg, lookup))
}

func TestParse_Env(t *testing.T) {
	t.Setenv("NODETREE_REPOSITORY", "from-env")
	cfg, err := Parse([]byte("storage: {repository_id: from-file}"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Storage.RepositoryID)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, home, expandPath("~"))
	assert.Equal(t, filepath.Join(home, "x"), expandPath("~/x"))
	assert.Equal(t, "", expandPath(""))
	assert.Equal(t, "/abs", expandPath("/abs"))
}
