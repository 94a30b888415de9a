// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package address defines the identifiers of the content graph and the
// NodeAddress codec.
//
// A NodeAddress pins one node variant inside one workspace. Its serialized
// form is the primary key the UI uses for cached tree state and the locator
// clients send back, so the format is versioned:
//
//	v1.<workspace>.<content stream>.<dimension variant>.<aggregate id>
//
// Every segment is encoded with unpadded base64url, which never produces a
// '.', so the encoding is injective.
package address

import (
	"encoding/base64"
	"strings"
)

// FormatVersion is the prefix of the current serialized address format.
const FormatVersion = "v1"

const separator = "."

var segmentEncoding = base64.RawURLEncoding.Strict()

// ContentStreamID identifies a workspace's private line of unpublished history.
type ContentStreamID string

// String returns the raw identifier.
func (id ContentStreamID) String() string { return string(id) }

// NodeAggregateID identifies a logical node across all its variants.
type NodeAggregateID string

// String returns the raw identifier.
func (id NodeAggregateID) String() string { return string(id) }

// WorkspaceName identifies a named workspace.
type WorkspaceName string

// String returns the raw name.
func (n WorkspaceName) String() string { return string(n) }

// NodeAddress is a fully resolved reference to a node variant in a workspace.
//
// Two addresses are equal iff all four fields are equal, so NodeAddress can
// be compared with == and used as a map key.
type NodeAddress struct {
	ContentStreamID  ContentStreamID
	DimensionVariant DimensionVariant
	NodeAggregateID  NodeAggregateID
	WorkspaceName    WorkspaceName
}

// New builds an address from a fully resolved tuple.
//
// Description:
//
//	Rejects empty content stream, aggregate id, or workspace. The dimension
//	variant may be empty (the unvaried graph).
//
// Outputs:
//
//	NodeAddress - The address.
//	error - *ParseError wrapping ErrMalformedAddress on a missing part.
func New(cs ContentStreamID, dv DimensionVariant, id NodeAggregateID, ws WorkspaceName) (NodeAddress, error) {
	a := NodeAddress{ContentStreamID: cs, DimensionVariant: dv, NodeAggregateID: id, WorkspaceName: ws}
	if reason := a.missingPart(); reason != "" {
		return NodeAddress{}, newParseError("", reason)
	}
	return a, nil
}

func (a NodeAddress) missingPart() string {
	switch {
	case a.WorkspaceName == "":
		return "workspace name is empty"
	case a.ContentStreamID == "":
		return "content stream id is empty"
	case a.NodeAggregateID == "":
		return "node aggregate id is empty"
	}
	return ""
}

// WithNodeAggregateID returns a copy pointing at another aggregate in the
// same content stream, dimension variant and workspace.
func (a NodeAddress) WithNodeAggregateID(id NodeAggregateID) NodeAddress {
	a.NodeAggregateID = id
	return a
}

// IsZero reports whether the address is the zero value.
func (a NodeAddress) IsZero() bool {
	return a == NodeAddress{}
}

// Serialize returns the stable string form of the address.
//
// Description:
//
//	Deterministic and injective: each segment is base64url encoded and the
//	encoded alphabet excludes the separator.
//
// Example:
//
//	a, _ := address.New("cs-1", address.MustDimensionVariant(`{"language":"en"}`), "n-1", "live")
//	s := a.Serialize() // "v1.bGl2ZQ.Y3MtMQ.eyJsYW5ndWFnZSI6ImVuIn0.bi0x"
func (a NodeAddress) Serialize() string {
	var b strings.Builder
	b.WriteString(FormatVersion)
	for _, part := range []string{
		string(a.WorkspaceName),
		string(a.ContentStreamID),
		a.DimensionVariant.String(),
		string(a.NodeAggregateID),
	} {
		b.WriteString(separator)
		b.WriteString(segmentEncoding.EncodeToString([]byte(part)))
	}
	return b.String()
}

// String implements fmt.Stringer.
func (a NodeAddress) String() string {
	return a.Serialize()
}

// MarshalText implements encoding.TextMarshaler so addresses encode as their
// serialized string in JSON and YAML.
func (a NodeAddress) MarshalText() ([]byte, error) {
	return []byte(a.Serialize()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *NodeAddress) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Parse decodes a serialized address.
//
// Description:
//
//	Accepts only the current format version. Never panics on malformed
//	input; every failure is a *ParseError.
//
// Inputs:
//
//	s - The serialized address.
//
// Outputs:
//
//	NodeAddress - The decoded address.
//	error - *ParseError (errors.Is(err, ErrMalformedAddress) holds).
func Parse(s string) (NodeAddress, error) {
	if s == "" {
		return NodeAddress{}, newParseError(s, "empty input")
	}
	parts := strings.Split(s, separator)
	if len(parts) != 5 {
		return NodeAddress{}, newParseError(s, "expected 5 segments")
	}
	if parts[0] != FormatVersion {
		return NodeAddress{}, newParseError(s, "unsupported format version "+quoteTruncated(parts[0]))
	}

	decoded := make([]string, 4)
	for i, part := range parts[1:] {
		raw, err := segmentEncoding.DecodeString(part)
		if err != nil {
			return NodeAddress{}, &ParseError{Input: s, Reason: "invalid segment encoding", Err: err}
		}
		decoded[i] = string(raw)
	}

	dv, err := ParseDimensionVariant(decoded[2])
	if err != nil {
		return NodeAddress{}, &ParseError{Input: s, Reason: "invalid dimension variant", Err: err}
	}

	a := NodeAddress{
		WorkspaceName:    WorkspaceName(decoded[0]),
		ContentStreamID:  ContentStreamID(decoded[1]),
		DimensionVariant: dv,
		NodeAggregateID:  NodeAggregateID(decoded[3]),
	}
	if reason := a.missingPart(); reason != "" {
		return NodeAddress{}, newParseError(s, reason)
	}
	return a, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// fixtures.
func MustParse(s string) NodeAddress {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAll decodes a list of serialized addresses, failing on the first
// malformed entry.
func ParseAll(values []string) ([]NodeAddress, error) {
	out := make([]NodeAddress, 0, len(values))
	for _, v := range values {
		a, err := Parse(v)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
