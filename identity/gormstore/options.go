// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package gormstore

import (
	"github.com/hashicorp/cap-sso/identity"
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

type storeOptions struct {
	withUserTable    string
	withFieldMapping identity.UserFieldMapping
}

func storeDefaults() storeOptions {
	return storeOptions{
		withUserTable:    DefaultUserTable,
		withFieldMapping: identity.DefaultFieldMapping(),
	}
}

type openOptions struct {
	withLogger         hclog.Logger
	withMaxConnections int
}

func openDefaults() openOptions {
	return openOptions{
		withLogger:         hclog.NewNullLogger(),
		withMaxConnections: 10,
	}
}

// WithUserTable provides an optional name for the host's user table
func WithUserTable(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok && name != "" {
			o.withUserTable = name
		}
	}
}

// WithFieldMapping provides the optional username and email column names
func WithFieldMapping(m identity.UserFieldMapping) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok {
			o.withFieldMapping = m
		}
	}
}

// WithLogger provides an optional logger for sql statements
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*openOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithMaxConnections provides an optional limit of open connections.  It's
// ignored for sqlite, which always uses a single connection.
func WithMaxConnections(n int) Option {
	return func(o interface{}) {
		if o, ok := o.(*openOptions); ok && n > 0 {
			o.withMaxConnections = n
		}
	}
}
