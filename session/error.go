// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrCodec is returned when stored session data can't be encoded or
	// decoded.
	ErrCodec = errors.New("session codec error")

	// ErrStore is returned when the session backing store fails.
	ErrStore = errors.New("session store error")
)
