// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrNodeNotFound indicates the requested node does not exist in the subgraph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrStorage marks failures of the underlying projection.
	ErrStorage = errors.New("graph storage failure")

	// ErrUnknownNodeType indicates a node type name is not registered.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrNodeTypesInvalid indicates a node type definition file could not be used.
	ErrNodeTypesInvalid = errors.New("invalid node type definitions")
)

// StorageError wraps a failure of the projection backing a subgraph.
//
// errors.Is(err, ErrStorage) holds for every StorageError.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err as a storage failure of op. Returns nil for a nil err.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// Error implements error.
func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage.Error(), e.Op, e.Err)
}

// Unwrap exposes ErrStorage and the cause.
func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// IsNotFound reports whether err is an absent-node error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}
