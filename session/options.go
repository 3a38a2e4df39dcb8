// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"
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

const (
	// DefaultName is the default session cookie name.
	DefaultName = "sso_session"

	// DefaultKeyPrefix prefixes every redis session key.
	DefaultKeyPrefix = "sso_session:"

	// DefaultTTL is the redis key ttl of sessions whose cookie expires with
	// the browser.
	DefaultTTL = 24 * time.Hour
)

// DefaultCookieOptions returns the cookie options used by the stores of this
// package.
func DefaultCookieOptions() *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   int(DefaultTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

type managerOptions struct {
	withName   string
	withLogger hclog.Logger
}

func managerDefaults() managerOptions {
	return managerOptions{
		withName:   DefaultName,
		withLogger: hclog.NewNullLogger(),
	}
}

type redisOptions struct {
	withKeyPrefix     string
	withTTL           time.Duration
	withCookieOptions *sessions.Options
	withLogger        hclog.Logger
}

func redisDefaults() redisOptions {
	return redisOptions{
		withKeyPrefix:     DefaultKeyPrefix,
		withTTL:           DefaultTTL,
		withCookieOptions: DefaultCookieOptions(),
		withLogger:        hclog.NewNullLogger(),
	}
}

// WithName provides an optional session cookie name
func WithName(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok && name != "" {
			o.withName = name
		}
	}
}

// WithLogger provides an optional logger
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *managerOptions:
			v.withLogger = l
		case *redisOptions:
			v.withLogger = l
		}
	}
}

// WithKeyPrefix provides an optional redis key prefix
func WithKeyPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*redisOptions); ok {
			o.withKeyPrefix = prefix
		}
	}
}

// WithTTL provides an optional redis key ttl for browser-session cookies
func WithTTL(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*redisOptions); ok && d > 0 {
			o.withTTL = d
		}
	}
}

// WithCookieOptions provides optional cookie options
func WithCookieOptions(c *sessions.Options) Option {
	return func(o interface{}) {
		if o, ok := o.(*redisOptions); ok && c != nil {
			cp := *c
			o.withCookieOptions = &cp
		}
	}
}
