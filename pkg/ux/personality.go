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
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Level defines how rich CLI output is.
type Level string

const (
	// LevelStyled uses colors, icons and box drawing.
	LevelStyled Level = "styled"

	// LevelPlain keeps the tree glyphs and icons but drops colors.
	LevelPlain Level = "plain"

	// LevelMachine outputs tab separated text for scripts.
	LevelMachine Level = "machine"
)

// OutputEnv selects the output level, overriding terminal detection.
const OutputEnv = "NODETREE_OUTPUT"

// ParseLevel converts a string to a Level. Unknown values are plain.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "styled", "full", "color":
		return LevelStyled
	case "machine", "quiet", "q":
		return LevelMachine
	default:
		return LevelPlain
	}
}

// DetectLevel picks the level for writing to f.
//
// NODETREE_OUTPUT wins when set. Otherwise a terminal gets LevelStyled,
// unless NO_COLOR is set, and anything else gets LevelMachine.
func DetectLevel(f *os.File) Level {
	if env := os.Getenv(OutputEnv); env != "" {
		return ParseLevel(env)
	}
	if f == nil || !isTerminal(f.Fd()) {
		return LevelMachine
	}
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		return LevelPlain
	}
	return LevelStyled
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
