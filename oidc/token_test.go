// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnverifiedClaims(t *testing.T) {
	t.Parallel()
	_, priv := TestGenerateKeys(t)
	raw := TestSignJWT(t, priv, jwt.Claims{
		Subject: "alice",
		Expiry:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}, map[string]interface{}{"nonce": "n_123"})

	tests := []struct {
		name      string
		raw       string
		wantNonce string
		wantErr   bool
		wantErrIs error
	}{
		{name: "expired-but-parsed", raw: raw, wantNonce: "n_123"},
		{name: "empty", wantErr: true, wantErrIs: ErrInvalidParameter},
		{name: "garbage", raw: "not.a.jwt", wantErr: true, wantErrIs: ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := UnverifiedClaims(tt.raw)
			if tt.wantErr {
				require.Error(err)
				assert.ErrorIs(err, tt.wantErrIs)
				return
			}
			require.NoError(err)
			assert.Equal(tt.wantNonce, got["nonce"])
			assert.Equal("alice", got["sub"])
		})
	}
}

func TestTokenResult(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	var nilResult *TokenResult
	assert.False(nilResult.Valid())
	assert.NoError(nilResult.Err())

	ok := &TokenResult{AccessToken: "at"}
	assert.True(ok.Valid())
	assert.NoError(ok.Err())

	failed := &TokenResult{Error: "invalid_client", ErrorDescription: "bad secret"}
	assert.False(failed.Valid())
	err := failed.Err()
	assert.ErrorIs(err, ErrProvider)
	var pErr *ProviderError
	assert.ErrorAs(err, &pErr)
	assert.Equal("invalid_client", pErr.Code)
	assert.Equal("provider reported an error: invalid_client: bad secret", err.Error())
}
