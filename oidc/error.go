// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrNilParameter         = errors.New("nil parameter")
	ErrInvalidCACert        = errors.New("invalid CA certificate")
	ErrIdGeneratorFailed    = errors.New("id generation failed")
	ErrExpiredState         = errors.New("state is expired")
	ErrResponseStateInvalid = errors.New("oidc response state")
	ErrInvalidNonce         = errors.New("invalid nonce")
	ErrProvider             = errors.New("provider reported an error")
	ErrClaimsFetch          = errors.New("unable to fetch claims")
	ErrDiscoveryFailed      = errors.New("discovery failed")
	ErrInvalidIDToken       = errors.New("invalid id_token")
)

// ProviderError is an error reported by the identity provider, either on the
// callback query string or in the token endpoint response.
type ProviderError struct {
	Code        string
	Description string
	URI         string
}

// Error satisfies the error interface
func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s: %s", ErrProvider, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", ErrProvider, e.Code, e.Description)
}

// Unwrap returns ErrProvider
func (e *ProviderError) Unwrap() error { return ErrProvider }

// ClaimsError is returned when the user's Graph profile can't be read.
// Reason is short enough to show the user: the Graph error code and
// message, or what went wrong with the request.
type ClaimsError struct {
	Status int
	Code   string
	Reason string
}

// Error satisfies the error interface
func (e *ClaimsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrClaimsFetch, e.Reason)
}

// Unwrap returns ErrClaimsFetch
func (e *ClaimsError) Unwrap() error { return ErrClaimsFetch }
