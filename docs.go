// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// capsso adds Microsoft Entra ID sign-in to a web application over the
// OAuth2 authorization code flow.
//
// The packages, bottom-up:
//
//	config      settings resolved statically or per request
//	oidc        the Entra authority, the auth code flow and Microsoft Graph
//	jwt         optional id_token signature verification
//	identity    users, identity links and their reconciliation
//	session     the host session: flow state, login and flash messages
//	hooks       named extension points and authentication backends
//	callback    the callback state machine
//	sso         the login, callback and logout routes
//
// cmd/sso-demo wires them into a small site.
package capsso
