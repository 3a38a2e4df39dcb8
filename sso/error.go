// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package sso

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
)
