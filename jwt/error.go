// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package jwt

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidSignature is returned when no key of the set verifies a
	// token's signature.
	ErrInvalidSignature = errors.New("invalid token signature")
)
