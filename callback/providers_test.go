// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/hashicorp/cap-sso/config"
	"github.com/hashicorp/cap-sso/jwt"
	"github.com/hashicorp/cap-sso/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSettingsProviders(t *testing.T) {
	t.Parallel()
	_, err := NewSettingsProviders(nil)
	assert.ErrorIs(t, err, ErrNilParameter)
}

func TestSettingsProviders_Provider(t *testing.T) {
	t.Parallel()
	r := func(host string) *http.Request {
		return httptest.NewRequest(http.MethodGet, "https://"+host+"/microsoft_sso/login/", nil)
	}

	t.Run("cached", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := config.NewSettings()
		require.NoError(config.Set(s, config.ApplicationID, config.Static("client")))
		require.NoError(config.Set(s, config.ClientSecret, config.Static("secret")))
		p, err := NewSettingsProviders(s)
		require.NoError(err)

		a, err := p.Provider(r("site.com"))
		require.NoError(err)
		b, err := p.Provider(r("site.com"))
		require.NoError(err)
		assert.Same(a, b)
		assert.Equal("client", a.Config().ClientID)
		assert.Equal(oidc.DefaultInstance+"/"+oidc.DefaultTenant, a.Config().Authority.String())
	})
	t.Run("per-request-credentials", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := config.NewSettings()
		require.NoError(config.Set(s, config.ApplicationID, config.Computed[string](func(r *http.Request) string {
			return "client-" + r.Host
		})))
		require.NoError(config.Set(s, config.ClientSecret, config.Static("secret")))
		p, err := NewSettingsProviders(s)
		require.NoError(err)

		a, err := p.Provider(r("one.com"))
		require.NoError(err)
		b, err := p.Provider(r("two.com"))
		require.NoError(err)
		assert.NotSame(a, b)
		assert.Equal("client-one.com", a.Config().ClientID)
		assert.Equal("client-two.com", b.Config().ClientID)
	})
	t.Run("bounded-cache", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := config.NewSettings()
		require.NoError(config.Set(s, config.ApplicationID, config.Computed[string](func(r *http.Request) string {
			return "client-" + r.Host
		})))
		require.NoError(config.Set(s, config.ClientSecret, config.Static("secret")))
		p, err := NewSettingsProviders(s, WithCacheSize(2))
		require.NoError(err)

		one, err := p.Provider(r("one.com"))
		require.NoError(err)
		for _, host := range []string{"two.com", "three.com"} {
			_, err := p.Provider(r(host))
			require.NoError(err)
		}
		assert.Equal(2, p.cache.Len())
		again, err := p.Provider(r("one.com"))
		require.NoError(err)
		assert.NotSame(one, again)
	})
	t.Run("invalid-cache-size", func(t *testing.T) {
		_, err := NewSettingsProviders(config.NewSettings(), WithCacheSize(0))
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
	t.Run("invalid-authority", func(t *testing.T) {
		require := require.New(t)
		s := config.NewSettings()
		require.NoError(config.Set(s, config.ApplicationID, config.Static("client")))
		require.NoError(config.Set(s, config.Authority, config.Static[interface{}]("not a url")))
		p, err := NewSettingsProviders(s)
		require.NoError(err)
		_, err = p.Provider(r("site.com"))
		assert.ErrorIs(t, err, config.ErrConfigValue)
	})
	t.Run("discovery", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := oidc.StartTestProvider(t)
		s := config.NewSettings()
		require.NoError(config.Set(s, config.ApplicationID, config.Static(oidc.TestClientID)))
		require.NoError(config.Set(s, config.ClientSecret, config.Static(oidc.TestClientSecret)))
		require.NoError(config.Set(s, config.Authority, config.Static[interface{}](tp.Authority())))
		p, err := NewSettingsProviders(s, WithProviderCA(tp.CACert()), WithGraphURL(tp.Addr()), WithDiscovery(true))
		require.NoError(err)
		prov, err := p.Provider(r("site.com"))
		require.NoError(err)
		ep := prov.Config().Authority.Endpoints()
		assert.True(ep.Discovered)
		assert.Equal(tp.Authority()+"/oauth2/v2.0/token", ep.TokenURL)
	})
	t.Run("id-token-verification", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := oidc.StartTestProvider(t)
		s := config.NewSettings()
		require.NoError(config.Set(s, config.ApplicationID, config.Static(oidc.TestClientID)))
		require.NoError(config.Set(s, config.ClientSecret, config.Static(oidc.TestClientSecret)))
		require.NoError(config.Set(s, config.Authority, config.Static[interface{}](tp.Authority())))
		p, err := NewSettingsProviders(s, WithProviderCA(tp.CACert()), WithGraphURL(tp.Addr()), WithIDTokenVerification(true))
		require.NoError(err)
		prov, err := p.Provider(r("site.com"))
		require.NoError(err)
		require.IsType(&jwt.JSONWebKeySet{}, prov.Config().IDTokenKeySet)

		ctx := context.Background()
		flow, err := prov.Initiate(ctx, oidc.WithRedirectURI("https://site.com/microsoft_sso/callback/"))
		require.NoError(err)
		tk, err := prov.Exchange(ctx, flow.Flow, url.Values{"state": {flow.State}, "code": {oidc.TestAuthCode}})
		require.NoError(err)
		assert.True(tk.Valid())
		assert.NotEmpty(tk.IDTokenClaims)
	})
}
