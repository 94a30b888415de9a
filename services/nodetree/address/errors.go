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
	"errors"
	"fmt"
)

// ErrMalformedAddress indicates a serialized address could not be decoded.
var ErrMalformedAddress = errors.New("malformed node address")

const maxQuotedInput = 64

// ParseError describes why a serialized address was rejected.
type ParseError struct {
	// Input is the rejected string.
	Input string

	// Reason is a short human readable cause.
	Reason string

	// Err is the underlying decoding error, if any.
	Err error
}

func newParseError(input, reason string) *ParseError {
	return &ParseError{Input: input, Reason: reason}
}

// Error implements error.
func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", ErrMalformedAddress.Error(), quoteTruncated(e.Input), e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns ErrMalformedAddress and the decoding cause.
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedAddress}
	}
	return []error{ErrMalformedAddress, e.Err}
}

func quoteTruncated(s string) string {
	if len(s) > maxQuotedInput {
		s = s[:maxQuotedInput] + "..."
	}
	return fmt.Sprintf("%q", s)
}
