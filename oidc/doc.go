// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

/*
Package oidc is the authorization code flow client for Microsoft Entra ID
and the Microsoft Graph profile reader used to sign users in.

Primary types provided by the package

  - Authority: the Entra cloud instance and tenant.  ResolveAuthority turns a
    configured value (nil, string or Authority) into one; Discover reads its
    endpoints from the OpenID configuration document.

  - Config: the application registration (client id and secret, authority,
    scopes, timeout).

  - FlowState: one user's flow between the redirect to Entra and the
    callback.  It carries the anti-forgery state, the nonce and the PKCE
    verifier, and is stored in the user's session as JSON.

  - Provider: builds the authorization URI (Initiate), exchanges the callback
    code (Exchange), reads the user's Graph profile (FetchClaims) and builds
    the single log out URI (LogoutURI).

The id_token is read without verification unless the Config has an
IDTokenKeySet (see WithIDTokenKeySet and the jwt package).

Errors reported by Entra are returned in TokenResult's Error fields rather
than as Go errors, so callers can show them to the user.

Example:

	c, err := oidc.NewConfig(clientID, oidc.ClientSecret(secret), nil,
		oidc.WithScopes("User.ReadBasic.All"))
	if err != nil {
		return err
	}
	p, err := oidc.NewProvider(c)
	if err != nil {
		return err
	}
	redirect, err := oidc.BuildRedirectURI(r, "", nil, "/microsoft_sso/callback/")
	if err != nil {
		return err
	}
	flow, err := p.Initiate(ctx, oidc.WithRedirectURI(redirect))
	if err != nil {
		return err
	}
	// store flow.Flow in the session and redirect to flow.AuthorizationURI
*/
package oidc
