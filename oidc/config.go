// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/cap-sso/internal/httpclient"
	"github.com/hashicorp/cap-sso/jwt"
	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultGraphURL is the Microsoft Graph base URL.
	DefaultGraphURL = "https://graph.microsoft.com"

	// DefaultTimeout bounds each outbound call to the IdP or Graph.
	DefaultTimeout = 10 * time.Second
)

// ClientSecret is an oauth client secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Config represents the configuration of one Entra application registration
// for the authorization code flow.
type Config struct {
	// ClientID is the application (client) id
	ClientID string

	// ClientSecret is the application secret
	ClientSecret ClientSecret

	// Authority is the instance and tenant the application is registered in
	Authority *Authority

	// Scopes are the Graph scopes requested, space-joined on the wire
	Scopes []string

	// RedirectURI is the default callback URI; Initiate may override it per
	// flow
	RedirectURI string

	// GraphURL is the Microsoft Graph base URL
	GraphURL string

	// Timeout bounds each outbound call
	Timeout time.Duration

	// MaxRetries is the number of retries for Graph requests
	MaxRetries int

	// ProviderCA is an optional CA cert to use when sending requests to the
	// IdP and Graph.
	ProviderCA string

	// IDTokenKeySet optionally verifies the id_token signature.  Without it
	// the id_token claims are read unverified.
	IDTokenKeySet jwt.KeySet
}

type configOptions struct {
	withScopes      []string
	withRedirectURI string
	withGraphURL    string
	withTimeout     time.Duration
	withMaxRetries  int
	withProviderCA  string
	withKeySet      jwt.KeySet
}

func configDefaults() configOptions {
	return configOptions{
		withGraphURL: DefaultGraphURL,
		withTimeout:  DefaultTimeout,
	}
}

func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// NewConfig composes a new config.  authority is resolved with
// ResolveAuthority.
// Supported options:
//
//	WithScopes
//	WithRedirectURI
//	WithGraphURL
//	WithTimeout
//	WithMaxRetries
//	WithProviderCA
//	WithIDTokenKeySet
func NewConfig(clientID string, clientSecret ClientSecret, authority interface{}, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	a, err := ResolveAuthority(authority)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getConfigOpts(opt...)
	c := &Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Authority:    a,
		Scopes:       opts.withScopes,
		RedirectURI:  opts.withRedirectURI,
		GraphURL:     opts.withGraphURL,
		Timeout:      opts.withTimeout,
		MaxRetries:   opts.withMaxRetries,
		ProviderCA:   opts.withProviderCA,

		IDTokenKeySet: opts.withKeySet,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}
	return c, nil
}

// Validate the configuration.  It does not contact the authority.
func (c *Config) Validate() error {
	const op = "oidc.(Config).Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("%s: client secret is empty: %w", op, ErrInvalidParameter)
	}
	if c.Authority == nil {
		return fmt.Errorf("%s: authority is nil: %w", op, ErrNilParameter)
	}
	if u, err := url.Parse(c.GraphURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s: graph URL %q is not an absolute URL: %w", op, c.GraphURL, ErrInvalidParameter)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%s: timeout must be positive: %w", op, ErrInvalidParameter)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%s: max retries is negative: %w", op, ErrInvalidParameter)
	}
	return nil
}

// HttpClient is a helper function that creates a new http client for the
// IdP token endpoint
func (c *Config) HttpClient() (*http.Client, error) {
	const op = "oidc.(Config).HttpClient"
	client, err := httpclient.NewClient(c.ProviderCA)
	if err != nil {
		return nil, clientErr(op, err)
	}
	return client, nil
}

// GraphClient is a helper function that creates a new retrying http client
// for Microsoft Graph
func (c *Config) GraphClient(logger hclog.Logger) (*http.Client, error) {
	const op = "oidc.(Config).GraphClient"
	client, err := httpclient.NewRetryableClient(c.ProviderCA, c.MaxRetries, logger)
	if err != nil {
		return nil, clientErr(op, err)
	}
	return client, nil
}

func clientErr(op string, err error) error {
	if errors.Is(err, httpclient.ErrInvalidCertificatePem) {
		return fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
	}
	return fmt.Errorf("%s: could not get an http client: %w", op, err)
}
