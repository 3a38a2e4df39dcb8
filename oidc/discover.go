// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"net/http"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
)

// Discover reads the authority's OpenID configuration document
// ({authority}/v2.0/.well-known/openid-configuration) and returns a copy of
// the authority using the discovered authorize, token, end session and JWKS
// endpoints.  The issuer in the document is not compared with the discovery
// URL because multi-tenant authorities report a templated issuer.
func Discover(ctx context.Context, a *Authority, client *http.Client) (*Authority, error) {
	const op = "oidc.Discover"
	if a == nil {
		return nil, fmt.Errorf("%s: authority is nil: %w", op, ErrNilParameter)
	}
	if client != nil {
		ctx = gooidc.ClientContext(ctx, client)
	}
	issuer := a.String() + "/v2.0"
	ctx = gooidc.InsecureIssuerURLContext(ctx, issuer)
	p, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrDiscoveryFailed, err)
	}
	var extra struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
		JWKSURI            string `json:"jwks_uri"`
	}
	if err := p.Claims(&extra); err != nil {
		return nil, fmt.Errorf("%s: unable to read discovery claims: %w: %s", op, ErrDiscoveryFailed, err)
	}
	ep := p.Endpoint()
	discovered := &Endpoints{
		AuthURL:    ep.AuthURL,
		TokenURL:   ep.TokenURL,
		LogoutURL:  extra.EndSessionEndpoint,
		JWKSURL:    extra.JWKSURI,
		Discovered: true,
	}
	if discovered.LogoutURL == "" {
		discovered.LogoutURL = a.String() + "/oauth2/v2.0/logout"
	}
	if discovered.JWKSURL == "" {
		discovered.JWKSURL = a.String() + "/discovery/v2.0/keys"
	}
	return NewAuthority(a.Instance, a.Tenant, WithEndpoints(discovered))
}
