// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package presentation

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
)

func TestPreviewURI(t *testing.T) {
	b, err := NewPreviewURIBuilder("https://cms.example.com/neos/")
	require.NoError(t, err)

	a := address.NodeAddress{
		ContentStreamID:  "cs-1",
		DimensionVariant: address.MustDimensionVariant(`{"language":"en"}`),
		NodeAggregateID:  "n-1",
		WorkspaceName:    "live",
	}
	got := b.PreviewURI(a)
	assert.Equal(t, "https://cms.example.com/neos/preview?node=v1.bGl2ZQ.Y3MtMQ.eyJsYW5ndWFnZSI6ImVuIn0.bi0x", got)

	u, err := url.Parse(got)
	require.NoError(t, err)
	parsed, err := address.Parse(u.Query().Get("node"))
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
}

func TestNewPreviewURIBuilder_Invalid(t *testing.T) {
	_, err := NewPreviewURIBuilder("")
	assert.Error(t, err)
	_, err = NewPreviewURIBuilder("http://[::1")
	assert.Error(t, err)
}
