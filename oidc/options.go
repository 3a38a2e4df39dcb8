// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"time"

	"github.com/hashicorp/cap-sso/jwt"
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

// WithExpirySkew provides an optional expiry skew duration for: FlowState
func WithExpirySkew(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*stOptions); ok {
			o.withExpirySkew = d
		}
	}
}

// WithClock provides an optional clock for: FlowState, Provider
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		if c == nil {
			return
		}
		switch v := o.(type) {
		case *stOptions:
			v.withClock = c
		case *providerOptions:
			v.withClock = c
		}
	}
}

// WithScopes provides an optional list of scopes for: Config, Provider.Initiate
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withScopes = scopes
		case *initiateOptions:
			v.withScopes = scopes
		}
	}
}

// WithRedirectURI provides an optional redirect URI for: Config,
// Provider.Initiate
func WithRedirectURI(u string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withRedirectURI = u
		case *initiateOptions:
			v.withRedirectURI = u
		}
	}
}

// WithTimeout provides an optional timeout for each outbound call of: Config
func WithTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withTimeout = d
		}
	}
}

// WithFlowExpiry provides an optional lifetime for the flow state created by:
// Provider.Initiate
func WithFlowExpiry(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*initiateOptions); ok {
			o.withFlowExpiry = d
		}
	}
}

// WithGraphURL provides an optional Microsoft Graph base URL for: Config
func WithGraphURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withGraphURL = u
		}
	}
}

// WithProviderCA provides optional PEM encoded CA certs used when connecting
// to the IdP and Graph for: Config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithMaxRetries provides an optional number of retries for Graph requests
// for: Config
func WithMaxRetries(n int) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withMaxRetries = n
		}
	}
}

// WithIDTokenKeySet provides an optional key set verifying the id_token
// signature for: Config
func WithIDTokenKeySet(ks jwt.KeySet) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withKeySet = ks
		}
	}
}

// WithLogger provides an optional logger for: Provider
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithEndpoints provides optional discovered endpoints for: Authority
func WithEndpoints(e *Endpoints) Option {
	return func(o interface{}) {
		if o, ok := o.(*authorityOptions); ok {
			o.withEndpoints = e
		}
	}
}
