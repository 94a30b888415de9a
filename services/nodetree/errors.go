// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nodetree

import (
	"context"
	"errors"
	"net/http"

	"github.com/AleutianAI/nodetree/services/nodetree/address"
	"github.com/AleutianAI/nodetree/services/nodetree/contentrepo"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/tree"
)

var (
	// ErrNodeNotFound indicates an addressed node does not resolve or may
	// not be read by the actor.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDocumentNotFound indicates the addressed document does not resolve.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrNotDocument indicates an address points at a non-document node
	// where a document is required.
	ErrNotDocument = errors.New("node is not a document")

	// ErrServiceNotReady indicates the service has not finished starting.
	ErrServiceNotReady = errors.New("service not ready")
)

// errorStatus maps a service error to an HTTP status, a machine code and
// the message returned to the client.
func errorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, address.ErrMalformedAddress):
		return http.StatusBadRequest, "INVALID_ADDRESS", "Malformed node address"
	case errors.Is(err, tree.ErrInvalidQuery):
		return http.StatusBadRequest, "INVALID_REQUEST", "Invalid tree query"
	case errors.Is(err, ErrNotDocument):
		return http.StatusBadRequest, "NOT_A_DOCUMENT", "Node is not a document"
	case errors.Is(err, contentrepo.ErrRepositoryNotFound):
		return http.StatusNotFound, "REPOSITORY_NOT_FOUND", "Content repository not found"
	case errors.Is(err, tree.ErrSiteNotFound):
		return http.StatusNotFound, "SITE_NOT_FOUND", "Site not found"
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound, "DOCUMENT_NOT_FOUND", "Document not found"
	case errors.Is(err, ErrNodeNotFound), errors.Is(err, graph.ErrNodeNotFound):
		return http.StatusNotFound, "NODE_NOT_FOUND", "Node not found"
	case errors.Is(err, ErrServiceNotReady):
		return http.StatusServiceUnavailable, "NOT_READY", "Service not ready"
	case errors.Is(err, graph.ErrStorage):
		return http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Storage unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT", "Request timed out"
	case errors.Is(err, context.Canceled):
		return 499, "CANCELED", "Request canceled"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error"
	}
}
