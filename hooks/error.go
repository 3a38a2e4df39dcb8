// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package hooks

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrHookNotFound is returned when a hook name isn't registered.
	ErrHookNotFound = errors.New("hook not found")

	// ErrBackendResolution is returned when the configured authentication
	// backend isn't registered.
	ErrBackendResolution = errors.New("unable to resolve authentication backend")
)
