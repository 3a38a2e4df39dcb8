// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/hashicorp/cap-sso/config"
	"github.com/hashicorp/cap-sso/jwt"
	"github.com/hashicorp/cap-sso/oidc"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ProviderSource returns the provider serving a request.
type ProviderSource interface {
	Provider(r *http.Request) (*oidc.Provider, error)
}

// SettingsProviders builds providers from the settings resolved for each
// request.  Providers are reused while the resolved client credentials,
// authority, scopes and timeout stay the same, up to the cache size.  It's
// safe for concurrent use.
type SettingsProviders struct {
	settings *config.Settings
	opts     providersOptions

	mu    sync.Mutex
	cache *lru.Cache[string, *oidc.Provider]
}

var _ ProviderSource = (*SettingsProviders)(nil)

// NewSettingsProviders creates a SettingsProviders.
// Supported options: WithLogger, WithClock, WithGraphURL, WithProviderCA,
// WithMaxRetries, WithDiscovery, WithIDTokenVerification, WithCacheSize
func NewSettingsProviders(s *config.Settings, opt ...Option) (*SettingsProviders, error) {
	const op = "callback.NewSettingsProviders"
	if s == nil {
		return nil, fmt.Errorf("%s: settings are nil: %w", op, ErrNilParameter)
	}
	opts := providersDefaults()
	ApplyOpts(&opts, opt...)
	cache, err := lru.New[string, *oidc.Provider](opts.withCacheSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidParameter, err)
	}
	return &SettingsProviders{
		settings: s,
		opts:     opts,
		cache:    cache,
	}, nil
}

// Provider implements ProviderSource
func (p *SettingsProviders) Provider(r *http.Request) (*oidc.Provider, error) {
	const op = "callback.(SettingsProviders).Provider"
	clientID, err := p.settings.String(config.ApplicationID, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	secret, err := p.settings.String(config.ClientSecret, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rawAuthority, err := p.settings.Any(config.Authority, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	authority, err := oidc.ResolveAuthority(rawAuthority)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	scopes, err := p.settings.Strings(config.Scopes, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	timeout, err := p.settings.Duration(config.Timeout, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sum := sha256.Sum256([]byte(secret))
	key := strings.Join([]string{
		clientID,
		hex.EncodeToString(sum[:]),
		authority.String(),
		strings.Join(scopes, " "),
		timeout.String(),
	}, "|")

	p.mu.Lock()
	defer p.mu.Unlock()
	if prov, ok := p.cache.Get(key); ok {
		return prov, nil
	}

	cfgOpts := []oidc.Option{
		oidc.WithScopes(scopes...),
		oidc.WithTimeout(timeout),
		oidc.WithMaxRetries(p.opts.withMaxRetries),
		oidc.WithProviderCA(p.opts.withProviderCA),
	}
	if p.opts.withGraphURL != "" {
		cfgOpts = append(cfgOpts, oidc.WithGraphURL(p.opts.withGraphURL))
	}
	cfg, err := oidc.NewConfig(clientID, oidc.ClientSecret(secret), authority, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	client, err := cfg.HttpClient()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if p.opts.withDiscovery {
		ctx := context.Background()
		if r != nil {
			ctx = r.Context()
		}
		discovered, err := oidc.Discover(ctx, cfg.Authority, client)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		cfg.Authority = discovered
	}
	if p.opts.withVerify {
		// the key set outlives the request, so it gets its own context
		ks, err := jwt.NewJSONWebKeySet(context.Background(), cfg.Authority.Endpoints().JWKSURL, jwt.WithHTTPClient(client))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		cfg.IDTokenKeySet = ks
	}
	prov, err := oidc.NewProvider(cfg, oidc.WithLogger(p.opts.withLogger), oidc.WithClock(p.opts.withClock))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.cache.Add(key, prov)
	return prov, nil
}
