// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"github.com/hashicorp/cap-sso/config"
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

// Option defines a common functional options type
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(opts)
	}
}

type handlerOptions struct {
	withLogger  hclog.Logger
	withMetrics *Metrics
}

func handlerDefaults() handlerOptions {
	return handlerOptions{
		withLogger: config.Logger().Named("callback"),
	}
}

type providersOptions struct {
	withLogger     hclog.Logger
	withClock      clockwork.Clock
	withGraphURL   string
	withProviderCA string
	withMaxRetries int
	withDiscovery  bool
	withVerify     bool
	withCacheSize  int
}

func providersDefaults() providersOptions {
	return providersOptions{
		withLogger:    config.Logger().Named("oidc"),
		withClock:     clockwork.NewRealClock(),
		withCacheSize: DefaultProviderCacheSize,
	}
}

// WithLogger provides an optional logger
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *handlerOptions:
			v.withLogger = l
		case *providersOptions:
			v.withLogger = l
		}
	}
}

// WithMetrics provides optional outcome metrics
func WithMetrics(m *Metrics) Option {
	return func(o interface{}) {
		if o, ok := o.(*handlerOptions); ok {
			o.withMetrics = m
		}
	}
}

// WithClock provides an optional clock for flow state expiry
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if o, ok := o.(*providersOptions); ok && c != nil {
			o.withClock = c
		}
	}
}

// WithGraphURL provides an optional Microsoft Graph base URL
func WithGraphURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*providersOptions); ok {
			o.withGraphURL = u
		}
	}
}

// WithProviderCA provides an optional PEM CA certificate for the IdP and
// Graph endpoints
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*providersOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithMaxRetries provides optional retries of failed Graph requests
func WithMaxRetries(n int) Option {
	return func(o interface{}) {
		if o, ok := o.(*providersOptions); ok {
			o.withMaxRetries = n
		}
	}
}

// WithDiscovery reads the authority's endpoints from its discovery document
// the first time a provider is built.
func WithDiscovery(enabled bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*providersOptions); ok {
			o.withDiscovery = enabled
		}
	}
}

// WithIDTokenVerification verifies id_token signatures against the
// authority's JSON Web Key Set.
func WithIDTokenVerification(enabled bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*providersOptions); ok {
			o.withVerify = enabled
		}
	}
}

// DefaultProviderCacheSize is the number of providers SettingsProviders
// keeps by default.
const DefaultProviderCacheSize = 256

// WithCacheSize bounds the number of providers kept; the least recently
// used are dropped first.
func WithCacheSize(n int) Option {
	return func(o interface{}) {
		if o, ok := o.(*providersOptions); ok {
			o.withCacheSize = n
		}
	}
}
