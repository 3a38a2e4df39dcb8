// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"net/http"
	"strings"
)

// SiteResolver returns the public domain (host[:port]) of the site serving a
// request.  Hosts serving several sites implement it to map requests onto the
// right site.
type SiteResolver interface {
	Domain(r *http.Request) (string, error)
}

// SiteResolverFunc adapts a function to a SiteResolver
type SiteResolverFunc func(r *http.Request) (string, error)

// Domain implements SiteResolver
func (f SiteResolverFunc) Domain(r *http.Request) (string, error) { return f(r) }

// RequestHost is the default SiteResolver: the domain is the request's Host.
type RequestHost struct{}

// Domain implements SiteResolver
func (RequestHost) Domain(r *http.Request) (string, error) {
	const op = "oidc.(RequestHost).Domain"
	if r == nil {
		return "", fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if r.Host == "" {
		return "", fmt.Errorf("%s: request host is empty: %w", op, ErrInvalidParameter)
	}
	return r.Host, nil
}

// SiteMap resolves the domain by looking up the request Host; unknown hosts
// resolve to Default when set.
type SiteMap struct {
	Sites   map[string]string
	Default string
}

// Domain implements SiteResolver
func (m SiteMap) Domain(r *http.Request) (string, error) {
	const op = "oidc.(SiteMap).Domain"
	if r == nil {
		return "", fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if d, ok := m.Sites[strings.ToLower(r.Host)]; ok {
		return d, nil
	}
	if m.Default != "" {
		return m.Default, nil
	}
	return "", fmt.Errorf("%s: no site for host %q: %w", op, r.Host, ErrInvalidParameter)
}

// BuildRedirectURI derives the absolute callback URI for a request.  The
// scheme comes from X-Forwarded-Proto when present, otherwise from the
// request's TLS state.  The host is callbackDomain when set, otherwise the
// SiteResolver's domain (RequestHost when sites is nil).
func BuildRedirectURI(r *http.Request, callbackDomain string, sites SiteResolver, callbackPath string) (string, error) {
	const op = "oidc.BuildRedirectURI"
	if r == nil {
		return "", fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(fwd, ",")[0]))
	}
	domain := strings.TrimSuffix(callbackDomain, "/")
	if domain == "" {
		if sites == nil {
			sites = RequestHost{}
		}
		d, err := sites.Domain(r)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		domain = d
	}
	if !strings.HasPrefix(callbackPath, "/") {
		callbackPath = "/" + callbackPath
	}
	return fmt.Sprintf("%s://%s%s", scheme, domain, callbackPath), nil
}
