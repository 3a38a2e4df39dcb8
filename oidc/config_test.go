// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/cap-sso/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		clientID  string
		secret    ClientSecret
		authority interface{}
		opt       []Option
		wantErr   bool
		wantErrIs error
	}{
		{
			name:     "defaults",
			clientID: "id",
			secret:   "secret",
		},
		{
			name:      "with-options",
			clientID:  "id",
			secret:    "secret",
			authority: "https://login.microsoftonline.com/contoso.com",
			opt:       []Option{WithScopes("User.Read"), WithTimeout(time.Second), WithMaxRetries(2), WithGraphURL("https://graph.example.com")},
		},
		{
			name:      "missing-id",
			secret:    "secret",
			wantErr:   true,
			wantErrIs: ErrInvalidParameter,
		},
		{
			name:      "missing-secret",
			clientID:  "id",
			wantErr:   true,
			wantErrIs: ErrInvalidParameter,
		},
		{
			name:      "bad-authority",
			clientID:  "id",
			secret:    "secret",
			authority: "nope",
			wantErr:   true,
			wantErrIs: config.ErrConfigValue,
		},
		{
			name:      "bad-timeout",
			clientID:  "id",
			secret:    "secret",
			opt:       []Option{WithTimeout(0)},
			wantErr:   true,
			wantErrIs: ErrInvalidParameter,
		},
		{
			name:      "bad-graph-url",
			clientID:  "id",
			secret:    "secret",
			opt:       []Option{WithGraphURL("graph")},
			wantErr:   true,
			wantErrIs: ErrInvalidParameter,
		},
		{
			name:      "negative-retries",
			clientID:  "id",
			secret:    "secret",
			opt:       []Option{WithMaxRetries(-1)},
			wantErr:   true,
			wantErrIs: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewConfig(tt.clientID, tt.secret, tt.authority, tt.opt...)
			if tt.wantErr {
				require.Error(err)
				assert.ErrorIs(err, tt.wantErrIs)
				return
			}
			require.NoError(err)
			assert.Equal(tt.clientID, got.ClientID)
			assert.NotNil(got.Authority)
			assert.Positive(got.Timeout)
		})
	}
	t.Run("nil", func(t *testing.T) {
		var c *Config
		assert.ErrorIs(t, c.Validate(), ErrNilParameter)
	})
}

func TestClientSecret_redacted(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	s := ClientSecret("super-secret")
	assert.Equal(RedactedClientSecret, s.String())
	assert.Equal(RedactedClientSecret, fmt.Sprintf("%s", s))
	b, err := json.Marshal(struct{ S ClientSecret }{S: s})
	require.NoError(err)
	assert.NotContains(string(b), "super-secret")
}
