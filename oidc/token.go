// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// TokenResult is the outcome of Provider.Exchange.  When the IdP reported an
// error, Error is set and the token fields are empty.
type TokenResult struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Expiry       time.Time
	Scopes       []string

	// IDToken is the raw id_token and IDTokenClaims its claims.  The
	// signature is not verified.
	IDToken       string
	IDTokenClaims map[string]interface{}

	Error            string
	ErrorDescription string
	ErrorURI         string
}

// Err returns a *ProviderError when the IdP reported an error, otherwise nil
func (t *TokenResult) Err() error {
	if t == nil || t.Error == "" {
		return nil
	}
	return &ProviderError{Code: t.Error, Description: t.ErrorDescription, URI: t.ErrorURI}
}

// Valid returns true when the result carries an access token and no error
func (t *TokenResult) Valid() bool {
	return t != nil && t.Error == "" && t.AccessToken != ""
}

// supportedAlgorithms are the id_token signing algorithms accepted when
// parsing.
var supportedAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.PS256, jose.PS384, jose.PS512,
}

// UnverifiedClaims returns the claims of a signed JWT without verifying its
// signature.
func UnverifiedClaims(raw string) (map[string]interface{}, error) {
	const op = "oidc.UnverifiedClaims"
	if raw == "" {
		return nil, fmt.Errorf("%s: token is empty: %w", op, ErrInvalidParameter)
	}
	tok, err := jwt.ParseSigned(raw, supportedAlgorithms)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse token: %w: %s", op, ErrInvalidParameter, err)
	}
	claims := map[string]interface{}{}
	if err := tok.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to read claims: %w: %s", op, ErrInvalidParameter, err)
	}
	return claims, nil
}
