// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workspace declares the workspace directory and the pending change
// projection consumed by the change tracker.
package workspace

import (
	"context"
	"errors"
	"strings"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
)

// PersonalWorkspacePrefix starts the name of every personal workspace.
const PersonalWorkspacePrefix = "user-"

// LiveWorkspaceName is the conventional name of the root workspace.
const LiveWorkspaceName address.WorkspaceName = "live"

// ErrWorkspaceNotFound indicates the workspace does not exist.
var ErrWorkspaceNotFound = errors.New("workspace not found")

// Workspace is a named line of editing with its own content stream.
type Workspace struct {
	Name        address.WorkspaceName
	Title       string
	Description string

	// BaseWorkspaceName is empty only for the root workspace.
	BaseWorkspaceName address.WorkspaceName

	// Owner is empty for shared workspaces.
	Owner string

	CurrentContentStreamID address.ContentStreamID
}

// IsRoot reports whether the workspace has no base workspace.
func (w *Workspace) IsRoot() bool {
	return w.BaseWorkspaceName == ""
}

// IsPersonal reports whether this is some user's personal workspace.
func (w *Workspace) IsPersonal() bool {
	return strings.HasPrefix(string(w.Name), PersonalWorkspacePrefix)
}

// IsShared reports whether the workspace has no owner.
func (w *Workspace) IsShared() bool {
	return w.Owner == ""
}

// IsOwnedBy reports whether actor owns the workspace.
func (w *Workspace) IsOwnedBy(actor string) bool {
	return actor != "" && w.Owner == actor
}

// PersonalWorkspaceName returns the personal workspace name of an actor.
func PersonalWorkspaceName(actor string) address.WorkspaceName {
	return address.WorkspaceName(PersonalWorkspacePrefix + strings.ToLower(strings.TrimSpace(actor)))
}

// Finder is the workspace directory.
//
// FindOneByName and FindOneByCurrentContentStreamID return
// ErrWorkspaceNotFound when nothing matches; other errors are storage
// failures.
type Finder interface {
	FindOneByName(ctx context.Context, name address.WorkspaceName) (*Workspace, error)
	FindOneByCurrentContentStreamID(ctx context.Context, cs address.ContentStreamID) (*Workspace, error)
	FindAll(ctx context.Context) ([]*Workspace, error)
}
