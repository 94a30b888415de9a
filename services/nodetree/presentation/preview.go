// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package presentation builds navigation URIs for nodes.
package presentation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
)

// PreviewURIBuilder builds preview links of the form
// <base>/preview?node=<serialized address>.
type PreviewURIBuilder struct {
	base *url.URL
}

// NewPreviewURIBuilder parses base, e.g. "https://cms.example.com/neos".
func NewPreviewURIBuilder(base string) (*PreviewURIBuilder, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse preview base %q: %w", base, err)
	}
	if u.Scheme == "" && u.Host == "" && u.Path == "" {
		return nil, fmt.Errorf("preview base %q is empty", base)
	}
	return &PreviewURIBuilder{base: u}, nil
}

// PreviewURI returns the preview link of the node at a.
func (b *PreviewURIBuilder) PreviewURI(a address.NodeAddress) string {
	u := *b.base
	u.Path = strings.TrimRight(u.Path, "/") + "/preview"
	u.RawQuery = url.Values{"node": {a.Serialize()}}.Encode()
	return u.String()
}
