// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package sso

import (
	"github.com/hashicorp/cap-sso/callback"
	"github.com/hashicorp/cap-sso/config"
	"github.com/hashicorp/cap-sso/oidc"
	"github.com/hashicorp/go-hclog"
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

type options struct {
	withLogger    hclog.Logger
	withMetrics   *callback.Metrics
	withSites     oidc.SiteResolver
	withMountPath string
}

func getOpts(opt ...Option) options {
	opts := options{
		withLogger:    config.Logger().Named("sso"),
		withSites:     oidc.RequestHost{},
		withMountPath: DefaultMountPath,
	}
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithMetrics provides optional callback outcome metrics
func WithMetrics(m *callback.Metrics) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withMetrics = m
		}
	}
}

// WithSiteResolver provides an optional resolver of the public domain used
// in redirect URIs when no callback domain is configured.
func WithSiteResolver(s oidc.SiteResolver) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && s != nil {
			o.withSites = s
		}
	}
}

// WithMountPath provides an optional path prefix for the routes.  An empty
// path mounts them at the router's root.
func WithMountPath(p string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withMountPath = p
		}
	}
}
