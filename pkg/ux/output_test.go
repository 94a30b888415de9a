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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelStyled, ParseLevel("Full"))
	assert.Equal(t, LevelMachine, ParseLevel(" quiet "))
	assert.Equal(t, LevelPlain, ParseLevel("plain"))
	assert.Equal(t, LevelPlain, ParseLevel("nautical"))
}

func TestDetectLevel(t *testing.T) {
	t.Setenv(OutputEnv, "")
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, LevelMachine, DetectLevel(f), "files are not terminals")
	assert.Equal(t, LevelMachine, DetectLevel(nil))

	t.Setenv(OutputEnv, "styled")
	assert.Equal(t, LevelStyled, DetectLevel(f))
}

func siteItems() []TreeItem {
	return []TreeItem{
		{Key: "s", ID: "site", Label: "Home", NodeType: "Neos.Neos:Site"},
		{Key: "a", Parent: "s", ID: "d1", Label: "About", NodeType: "Neos.Neos:Page"},
		{Key: "t", Parent: "a", ID: "d2", Label: "Team", NodeType: "Neos.Neos:Page", Focused: true},
		{Key: "h", Parent: "s", ID: "hidden-page", Label: "Secret", NodeType: "Neos.Neos:Page", Hidden: true},
	}
}

func TestPrinter_TreePlain(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, LevelPlain).Tree(siteItems())

	want := "Home (Neos.Neos:Site)\n" +
		"├── About (Neos.Neos:Page)\n" +
		"│   └── ● Team (Neos.Neos:Page)\n" +
		"└── ◌ Secret (Neos.Neos:Page)\n"
	assert.Equal(t, want, buf.String())
}

func TestPrinter_TreeMachine(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, LevelMachine).Tree(siteItems())

	want := "0\tsite\tNeos.Neos:Site\tHome\n" +
		"1\td1\tNeos.Neos:Page\tAbout\n" +
		"2\td2\tNeos.Neos:Page\tTeam\n" +
		"1\thidden-page\tNeos.Neos:Page\tSecret\n"
	assert.Equal(t, want, buf.String())
}

func TestPrinter_TreeOrphansAreRoots(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, LevelMachine).Tree([]TreeItem{
		{Key: "x", Parent: "missing", ID: "clip", NodeType: "Neos.Neos:Text"},
	})
	assert.Equal(t, "0\tclip\tNeos.Neos:Text\t\n", buf.String())
}

func TestPrinter_Table(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, LevelPlain).Table([]string{"NODE", "DOCUMENT"}, [][]string{
		{"new-text", "d1"},
		{"d1", "d1"},
	})
	assert.Equal(t, "NODE      DOCUMENT\nnew-text  d1\nd1        d1\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, LevelMachine).Table([]string{"NODE", "DOCUMENT"}, [][]string{{"a", "b"}})
	assert.Equal(t, "a\tb\n", buf.String())
}

func TestPrinter_Messages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, LevelMachine)
	p.Title("ignored")
	p.Muted("ignored")
	p.Success("seeded")
	p.Warning("stale")
	p.KeyValues([][2]string{{"nodes", "4"}})
	assert.Equal(t, "OK\tseeded\nWARN\tstale\nnodes\t4\n", buf.String())

	buf.Reset()
	p = NewPrinter(&buf, LevelPlain)
	p.Success("seeded")
	p.KeyValues([][2]string{{"nodes", "4"}, {"workspaces", "6"}})
	assert.Equal(t, "✓ seeded\nnodes       4\nworkspaces  6\n", buf.String())
}
