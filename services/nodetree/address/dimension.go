// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package address

import (
	"encoding/json"
	"fmt"
)

// DimensionVariant is one language/region (or other axis) projection of an
// aggregate, e.g. {"language":"de","market":"ch"}.
//
// The value holds its coordinates as canonical JSON (sorted keys) so that it
// is comparable with ==. Equality is exact: no fallback between variants is
// ever applied.
type DimensionVariant struct {
	canonical string
}

// EmptyDimensionVariant is the variant of an unvaried content graph.
var EmptyDimensionVariant = DimensionVariant{}

// NewDimensionVariant builds a variant from its coordinates.
func NewDimensionVariant(coordinates map[string]string) DimensionVariant {
	if len(coordinates) == 0 {
		return EmptyDimensionVariant
	}
	// json.Marshal sorts map keys, which makes the encoding canonical.
	raw, err := json.Marshal(coordinates)
	if err != nil {
		// map[string]string always marshals
		panic(fmt.Sprintf("marshal dimension coordinates: %v", err))
	}
	return DimensionVariant{canonical: string(raw)}
}

// ParseDimensionVariant decodes a JSON object of string coordinates.
//
// The empty string and "{}" both yield EmptyDimensionVariant.
func ParseDimensionVariant(s string) (DimensionVariant, error) {
	if s == "" {
		return EmptyDimensionVariant, nil
	}
	var coordinates map[string]string
	if err := json.Unmarshal([]byte(s), &coordinates); err != nil {
		return DimensionVariant{}, fmt.Errorf("decode dimension variant: %w", err)
	}
	if coordinates == nil {
		return DimensionVariant{}, fmt.Errorf("decode dimension variant: not an object")
	}
	return NewDimensionVariant(coordinates), nil
}

// MustDimensionVariant is like ParseDimensionVariant but panics on error.
func MustDimensionVariant(s string) DimensionVariant {
	dv, err := ParseDimensionVariant(s)
	if err != nil {
		panic(err)
	}
	return dv
}

// Coordinates returns a copy of the dimension coordinates.
func (v DimensionVariant) Coordinates() map[string]string {
	out := map[string]string{}
	if v.canonical == "" {
		return out
	}
	if err := json.Unmarshal([]byte(v.canonical), &out); err != nil {
		// canonical is only ever produced by NewDimensionVariant
		panic(fmt.Sprintf("decode canonical dimension variant %q: %v", v.canonical, err))
	}
	return out
}

// String returns the canonical JSON form, "{}" for the empty variant.
func (v DimensionVariant) String() string {
	if v.canonical == "" {
		return "{}"
	}
	return v.canonical
}

// IsEmpty reports whether the variant has no coordinates.
func (v DimensionVariant) IsEmpty() bool {
	return v.canonical == ""
}

// MarshalJSON encodes the variant as its coordinate object.
func (v DimensionVariant) MarshalJSON() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalJSON decodes a coordinate object.
func (v *DimensionVariant) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = EmptyDimensionVariant
		return nil
	}
	parsed, err := ParseDimensionVariant(string(data))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML encodes the variant as its coordinate map.
func (v DimensionVariant) MarshalYAML() (interface{}, error) {
	return v.Coordinates(), nil
}

// UnmarshalYAML decodes a coordinate map.
func (v *DimensionVariant) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var coordinates map[string]string
	if err := unmarshal(&coordinates); err != nil {
		return fmt.Errorf("decode dimension variant: %w", err)
	}
	*v = NewDimensionVariant(coordinates)
	return nil
}
