// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package jwt

import "net/http"

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type keySetOptions struct {
	withHTTPClient *http.Client
}

func keySetDefaults() keySetOptions {
	return keySetOptions{}
}

func getKeySetOpts(opt ...Option) keySetOptions {
	opts := keySetDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// WithHTTPClient provides an optional client for fetching remote keys, for
// example one trusting the IdP's CA.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *keySetOptions:
			v.withHTTPClient = c
		}
	}
}
