// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/cap-sso/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAuthority(t *testing.T) {
	t.Parallel()
	custom := &Authority{Instance: "https://login.microsoftonline.us", Tenant: "contoso.onmicrosoft.com"}
	tests := []struct {
		name         string
		value        interface{}
		wantAuth     string
		wantAuthURL  string
		wantLogout   string
		wantErr      bool
		wantErrIs    error
		wantConfigEr bool
	}{
		{
			name:        "nil",
			value:       nil,
			wantAuth:    "https://login.microsoftonline.com/common",
			wantAuthURL: "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
			wantLogout:  "https://login.microsoftonline.com/common/oauth2/v2.0/logout",
		},
		{
			name:        "tenant-string",
			value:       "https://login.microsoftonline.com/contoso.onmicrosoft.com",
			wantAuth:    "https://login.microsoftonline.com/contoso.onmicrosoft.com",
			wantAuthURL: "https://login.microsoftonline.com/contoso.onmicrosoft.com/oauth2/v2.0/authorize",
			wantLogout:  "https://login.microsoftonline.com/contoso.onmicrosoft.com/oauth2/v2.0/logout",
		},
		{
			name:        "no-tenant",
			value:       "https://login.example.com/",
			wantAuth:    "https://login.example.com/common",
			wantAuthURL: "https://login.example.com/common/oauth2/v2.0/authorize",
			wantLogout:  "https://login.example.com/common/oauth2/v2.0/logout",
		},
		{
			name:        "structured-pointer",
			value:       custom,
			wantAuth:    "https://login.microsoftonline.us/contoso.onmicrosoft.com",
			wantAuthURL: "https://login.microsoftonline.us/contoso.onmicrosoft.com/oauth2/v2.0/authorize",
			wantLogout:  "https://login.microsoftonline.us/contoso.onmicrosoft.com/oauth2/v2.0/logout",
		},
		{
			name:        "structured-value",
			value:       *custom,
			wantAuth:    "https://login.microsoftonline.us/contoso.onmicrosoft.com",
			wantAuthURL: "https://login.microsoftonline.us/contoso.onmicrosoft.com/oauth2/v2.0/authorize",
			wantLogout:  "https://login.microsoftonline.us/contoso.onmicrosoft.com/oauth2/v2.0/logout",
		},
		{
			name:         "malformed-string",
			value:        "not a url",
			wantErr:      true,
			wantErrIs:    config.ErrConfigValue,
			wantConfigEr: true,
		},
		{
			name:         "empty-string",
			value:        "",
			wantErr:      true,
			wantErrIs:    config.ErrConfigValue,
			wantConfigEr: true,
		},
		{
			name:         "wrong-type",
			value:        42,
			wantErr:      true,
			wantErrIs:    config.ErrConfigValue,
			wantConfigEr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := ResolveAuthority(tt.value)
			if tt.wantErr {
				require.Error(err)
				assert.ErrorIs(err, tt.wantErrIs)
				if tt.wantConfigEr {
					var cfgErr *config.ConfigValueError
					require.True(errors.As(err, &cfgErr))
					assert.Equal(config.Authority, cfgErr.Name)
				}
				return
			}
			require.NoError(err)
			assert.Equal(tt.wantAuth, got.String())
			ep := got.Endpoints()
			assert.Equal(tt.wantAuthURL, ep.AuthURL)
			assert.Equal(tt.wantLogout, ep.LogoutURL)
			assert.False(ep.Discovered)
		})
	}
}

func TestDiscover(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	c := tp.TestConfig()
	client, err := c.HttpClient()
	require.NoError(err)

	got, err := Discover(context.Background(), c.Authority, client)
	require.NoError(err)
	ep := got.Endpoints()
	assert.True(ep.Discovered)
	assert.Equal(tp.Authority()+"/oauth2/v2.0/authorize", ep.AuthURL)
	assert.Equal(tp.Authority()+"/oauth2/v2.0/token", ep.TokenURL)
	assert.Equal(tp.Authority()+"/oauth2/v2.0/logout", ep.LogoutURL)
	assert.Equal(tp.Authority()+"/discovery/v2.0/keys", ep.JWKSURL)

	_, err = Discover(context.Background(), nil, client)
	assert.ErrorIs(err, ErrNilParameter)

	unreachable, err := NewAuthority("https://127.0.0.1:1", "")
	require.NoError(err)
	_, err = Discover(context.Background(), unreachable, client)
	assert.ErrorIs(err, ErrDiscoveryFailed)
}
