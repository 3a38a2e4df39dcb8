// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// FlowState represents one authorization code flow for a user.  It is
// created by Provider.Initiate, stored in the user's session between the
// redirect to the IdP and the callback, and consumed by Provider.Exchange.
// State and Nonce cannot be equal.
type FlowState struct {
	// State is the anti-forgery value echoed back by the IdP on the callback
	State string `json:"state"`

	// Nonce is bound into the id_token issued for this flow
	Nonce string `json:"nonce"`

	// RedirectURI is the callback URI sent with the authorization request.
	// The token request must send the same value.
	RedirectURI string `json:"redirect_uri"`

	// Scopes are the scopes requested
	Scopes []string `json:"scopes"`

	// CodeVerifier is the PKCE verifier for this flow
	CodeVerifier string `json:"code_verifier"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DefaultStateExpirySkew defines a default time skew when checking a
// FlowState's expiration.
const DefaultStateExpirySkew = 1 * time.Second

// NewFlowState creates a new FlowState which expires after expireIn.
// Supported options: WithClock
func NewFlowState(redirectURI string, scopes []string, verifier string, expireIn time.Duration, opt ...Option) (*FlowState, error) {
	const op = "oidc.NewFlowState"
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	if redirectURI == "" {
		return nil, fmt.Errorf("%s: redirect URI is empty: %w", op, ErrInvalidParameter)
	}
	nonce, err := NewID("n")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's nonce: %w", op, err)
	}
	id, err := NewID("st")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's id: %w", op, err)
	}
	opts := getStOpts(opt...)
	now := opts.withClock.Now()
	return &FlowState{
		State:        id,
		Nonce:        nonce,
		RedirectURI:  redirectURI,
		Scopes:       scopes,
		CodeVerifier: verifier,
		CreatedAt:    now,
		ExpiresAt:    now.Add(expireIn),
	}, nil
}

// IsExpired returns true if the flow has expired. Supports the WithExpirySkew
// and WithClock options; the default skew is DefaultStateExpirySkew.
func (s *FlowState) IsExpired(opt ...Option) bool {
	opts := getStOpts(opt...)
	return s.ExpiresAt.Before(opts.withClock.Now().Add(opts.withExpirySkew))
}

// Encode returns the JSON form stored in the session.
func (s *FlowState) Encode() (string, error) {
	const op = "oidc.(FlowState).Encode"
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(b), nil
}

// DecodeFlowState parses a FlowState previously produced by Encode.
func DecodeFlowState(encoded string) (*FlowState, error) {
	const op = "oidc.DecodeFlowState"
	if encoded == "" {
		return nil, fmt.Errorf("%s: encoded state is empty: %w", op, ErrInvalidParameter)
	}
	var s FlowState
	if err := json.Unmarshal([]byte(encoded), &s); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrInvalidParameter, err)
	}
	if s.State == "" {
		return nil, fmt.Errorf("%s: state is missing: %w", op, ErrInvalidParameter)
	}
	return &s, nil
}

// stOptions is the set of available options for FlowState functions
type stOptions struct {
	withExpirySkew time.Duration
	withClock      clockwork.Clock
}

// stDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func stDefaults() stOptions {
	return stOptions{
		withExpirySkew: DefaultStateExpirySkew,
		withClock:      clockwork.NewRealClock(),
	}
}

// getStOpts gets the state defaults and applies the opt overrides passed in
func getStOpts(opt ...Option) stOptions {
	opts := stDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
