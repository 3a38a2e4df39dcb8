// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"
)

// DefaultFlowExpiry is the lifetime of a flow state when Initiate is not
// given WithFlowExpiry.
const DefaultFlowExpiry = 10 * time.Minute

// Provider provides integration with Microsoft Entra using the authorization
// code flow and with Microsoft Graph for profile claims.  A Provider holds no
// per-user state and is safe for concurrent use.
type Provider struct {
	config *Config
	client *http.Client
	graph  *http.Client
	logger hclog.Logger
	clock  clockwork.Clock
}

type providerOptions struct {
	withLogger hclog.Logger
	withClock  clockwork.Clock
}

func providerDefaults() providerOptions {
	return providerOptions{
		withLogger: hclog.NewNullLogger(),
		withClock:  clockwork.NewRealClock(),
	}
}

func getProviderOpts(opt ...Option) providerOptions {
	opts := providerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// NewProvider creates a Provider.  No request is made to the IdP; see
// Discover to read the endpoints from the authority's discovery document.
// Supported options: WithLogger, WithClock
func NewProvider(c *Config, opt ...Option) (*Provider, error) {
	const op = "oidc.NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}
	opts := getProviderOpts(opt...)
	client, err := c.HttpClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	graph, err := c.GraphClient(opts.withLogger.Named("graph"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create graph client: %w", op, err)
	}
	return &Provider{
		config: c,
		client: client,
		graph:  graph,
		logger: opts.withLogger,
		clock:  opts.withClock,
	}, nil
}

// Config returns the provider's config
func (p *Provider) Config() *Config { return p.config }

// FlowResult is returned by Initiate.  AuthorizationURI is where the user is
// sent; Flow must be stored in the user's session until the callback.
type FlowResult struct {
	AuthorizationURI string
	State            string
	Flow             *FlowState
}

type initiateOptions struct {
	withScopes      []string
	withRedirectURI string
	withFlowExpiry  time.Duration
}

func initiateDefaults() initiateOptions {
	return initiateOptions{
		withFlowExpiry: DefaultFlowExpiry,
	}
}

func getInitiateOpts(opt ...Option) initiateOptions {
	opts := initiateDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// Initiate starts an authorization code flow.  It creates a new FlowState
// and the authorization URI that carries its state, nonce and PKCE
// challenge.
// Supported options: WithScopes, WithRedirectURI, WithFlowExpiry
func (p *Provider) Initiate(ctx context.Context, opt ...Option) (*FlowResult, error) {
	const op = "oidc.(Provider).Initiate"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getInitiateOpts(opt...)
	redirectURI := p.config.RedirectURI
	if opts.withRedirectURI != "" {
		redirectURI = opts.withRedirectURI
	}
	if redirectURI == "" {
		return nil, fmt.Errorf("%s: redirect URI is empty: %w", op, ErrInvalidParameter)
	}
	scopes := p.config.Scopes
	if opts.withScopes != nil {
		scopes = opts.withScopes
	}
	verifier := oauth2.GenerateVerifier()
	flow, err := NewFlowState(redirectURI, scopes, verifier, opts.withFlowExpiry, WithClock(p.clock))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create flow state: %w", op, err)
	}
	authURI := p.oauth2Config(flow).AuthCodeURL(
		flow.State,
		gooidc.Nonce(flow.Nonce),
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("response_mode", "query"),
	)
	p.logger.Debug("initiated authorization flow", "redirect_uri", redirectURI, "scopes", strings.Join(scopes, " "))
	return &FlowResult{
		AuthorizationURI: authURI,
		State:            flow.State,
		Flow:             flow,
	}, nil
}

// Exchange completes the flow with the callback's query parameters.
//
// An error reported by the IdP, either on the callback (error,
// error_description) or by the token endpoint, is returned in the
// TokenResult's Error fields with a nil error.  A callback state that does
// not match the flow, an expired flow, a missing code, an id_token nonce that
// does not match and transport failures are returned as errors.
func (p *Provider) Exchange(ctx context.Context, flow *FlowState, params url.Values) (*TokenResult, error) {
	const op = "oidc.(Provider).Exchange"
	if flow == nil {
		return nil, fmt.Errorf("%s: flow state is nil: %w", op, ErrNilParameter)
	}
	if e := params.Get("error"); e != "" {
		return &TokenResult{
			Error:            e,
			ErrorDescription: params.Get("error_description"),
			ErrorURI:         params.Get("error_uri"),
		}, nil
	}
	if params.Get("state") != flow.State {
		return nil, fmt.Errorf("%s: callback state and flow state are not equal: %w", op, ErrResponseStateInvalid)
	}
	if flow.IsExpired(WithClock(p.clock)) {
		return nil, fmt.Errorf("%s: flow state is expired: %w", op, ErrExpiredState)
	}
	code := params.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()
	ctx = gooidc.ClientContext(ctx, p.client)

	var exchangeOpts []oauth2.AuthCodeOption
	if flow.CodeVerifier != "" {
		exchangeOpts = append(exchangeOpts, oauth2.VerifierOption(flow.CodeVerifier))
	}
	tk, err := p.oauth2Config(flow).Exchange(ctx, code, exchangeOpts...)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.ErrorCode != "" {
			p.logger.Debug("token endpoint reported an error", "error", rErr.ErrorCode)
			return &TokenResult{
				Error:            rErr.ErrorCode,
				ErrorDescription: rErr.ErrorDescription,
				ErrorURI:         rErr.ErrorURI,
			}, nil
		}
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, err)
	}
	result := &TokenResult{
		AccessToken:  tk.AccessToken,
		TokenType:    tk.Type(),
		RefreshToken: tk.RefreshToken,
		Expiry:       tk.Expiry,
	}
	if scope, ok := tk.Extra("scope").(string); ok {
		result.Scopes = strings.Fields(scope)
	}
	if raw, ok := tk.Extra("id_token").(string); ok && raw != "" {
		var claims map[string]interface{}
		switch ks := p.config.IDTokenKeySet; {
		case ks != nil:
			if claims, err = ks.VerifySignature(ctx, raw); err != nil {
				return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidIDToken, err)
			}
		default:
			if claims, err = UnverifiedClaims(raw); err != nil {
				p.logger.Debug("unable to parse id_token claims", "error", err)
				return result, nil
			}
		}
		if nonce, ok := claims["nonce"].(string); ok && nonce != flow.Nonce {
			return nil, fmt.Errorf("%s: id_token nonce does not match the flow: %w", op, ErrInvalidNonce)
		}
		result.IDToken = raw
		result.IDTokenClaims = claims
	}
	return result, nil
}

// LogoutURI returns the IdP's logout URI which sends the user back to
// homepage once signed out.
func (p *Provider) LogoutURI(homepage string) string {
	logout := p.config.Authority.Endpoints().LogoutURL
	if homepage == "" {
		return logout
	}
	return logout + "?" + url.Values{"post_logout_redirect_uri": {homepage}}.Encode()
}

func (p *Provider) oauth2Config(flow *FlowState) *oauth2.Config {
	// openid is required for the id_token that carries the nonce
	scopes := make([]string, 0, len(flow.Scopes)+1)
	scopes = append(scopes, gooidc.ScopeOpenID)
	for _, s := range flow.Scopes {
		if s != gooidc.ScopeOpenID {
			scopes = append(scopes, s)
		}
	}
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  flow.RedirectURI,
		Endpoint:     p.config.Authority.oauth2Endpoint(),
		Scopes:       scopes,
	}
}
