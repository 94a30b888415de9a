// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"context"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
)

// PendingChange is one entry of the change projection of a content stream.
type PendingChange struct {
	ContentStreamID        address.ContentStreamID
	NodeAggregateID        address.NodeAggregateID
	OriginDimensionVariant address.DimensionVariant

	Created bool
	Changed bool
	Moved   bool
	Deleted bool

	// RemovalAttachmentPoint is the nearest structural ancestor captured at
	// removal time. Set only for deletions.
	RemovalAttachmentPoint address.NodeAggregateID
}

// IsRemoval reports whether the change represents a deletion.
func (c PendingChange) IsRemoval() bool {
	return c.RemovalAttachmentPoint != ""
}

// Matches reports whether the change targets exactly the given triple.
func (c PendingChange) Matches(cs address.ContentStreamID, id address.NodeAggregateID, dv address.DimensionVariant) bool {
	return c.ContentStreamID == cs && c.NodeAggregateID == id && c.OriginDimensionVariant == dv
}

// ChangeFinder is the pending change projection.
type ChangeFinder interface {
	// FindByContentStreamID lists pending changes in projection order.
	FindByContentStreamID(ctx context.Context, cs address.ContentStreamID) ([]PendingChange, error)
}
