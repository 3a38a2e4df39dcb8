// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package identity

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrNotFound is returned by UserStore lookups that match nothing.
	ErrNotFound = errors.New("not found")

	// ErrMissingEmail is returned when unique email mode is on and the claims
	// carry no email.
	ErrMissingEmail = errors.New("email is required when unique email mode is enabled")

	// ErrUserNotFound is returned when no local user matches the claims.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserInactive is returned when the matched local user is inactive.
	ErrUserInactive = errors.New("user is inactive")
)
