// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

/*
Package jwt verifies the signatures of JWTs, such as the id_token returned by
Microsoft Entra's token endpoint, against a set of keys.

The keys either come from the authority's JWKS endpoint:

	ks, err := jwt.NewJSONWebKeySet(context.Background(), authority.Endpoints().JWKSURL)

or are configured as PEM-encoded public keys:

	ks, err := jwt.NewStaticKeySet([]string{publicKeyPEM})

Only the signature is verified.  Issuer, audience and expiry are left to the
caller.
*/
package jwt
