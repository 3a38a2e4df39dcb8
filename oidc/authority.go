// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/cap-sso/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const (
	// DefaultInstance is the Entra cloud instance of the default authority.
	DefaultInstance = "https://login.microsoftonline.com"

	// DefaultTenant accepts both work/school and personal Microsoft accounts.
	DefaultTenant = "common"

	// DefaultAuthority is used when no authority is configured.
	DefaultAuthority = DefaultInstance + "/" + DefaultTenant
)

// Endpoints are the IdP endpoints used by a Provider.
type Endpoints struct {
	AuthURL    string
	TokenURL   string
	LogoutURL  string
	JWKSURL    string
	Discovered bool
}

// Authority is a structured authority descriptor: the cloud instance and the
// tenant the application is registered in.
type Authority struct {
	// Instance is the scheme and host of the authority, for example
	// https://login.microsoftonline.com
	Instance string

	// Tenant is the tenant id, domain or one of common, organizations,
	// consumers.
	Tenant string

	endpoints *Endpoints
}

type authorityOptions struct {
	withEndpoints *Endpoints
}

func authorityDefaults() authorityOptions {
	return authorityOptions{}
}

func getAuthorityOpts(opt ...Option) authorityOptions {
	opts := authorityDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// NewAuthority creates an Authority.  An empty tenant becomes
// DefaultTenant.  Supported options: WithEndpoints
func NewAuthority(instance, tenant string, opt ...Option) (*Authority, error) {
	const op = "oidc.NewAuthority"
	u, err := url.Parse(strings.TrimSuffix(instance, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: instance %q is not an absolute URL: %w", op, instance, ErrInvalidParameter)
	}
	tenant = strings.Trim(tenant, "/")
	if tenant == "" {
		tenant = DefaultTenant
	}
	opts := getAuthorityOpts(opt...)
	return &Authority{
		Instance:  u.Scheme + "://" + u.Host,
		Tenant:    tenant,
		endpoints: opts.withEndpoints,
	}, nil
}

// ResolveAuthority turns a configured authority value into an Authority:
//
//   - nil resolves to DefaultAuthority
//   - an Authority or *Authority is used as is
//   - a string must parse as a URL with a scheme and host; the first path
//     segment is the tenant
//
// Anything else is a *config.ConfigValueError.
func ResolveAuthority(v interface{}) (*Authority, error) {
	const op = "oidc.ResolveAuthority"
	switch a := v.(type) {
	case nil:
		return NewAuthority(DefaultInstance, DefaultTenant)
	case *Authority:
		if a == nil {
			return NewAuthority(DefaultInstance, DefaultTenant)
		}
		return a, nil
	case Authority:
		return &a, nil
	case string:
		u, err := url.Parse(strings.TrimSpace(a))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%s: %w", op, &config.ConfigValueError{
				Name:   config.Authority,
				Value:  v,
				Reason: "must be an absolute URL with a scheme and host",
			})
		}
		tenant := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)[0]
		return NewAuthority(u.Scheme+"://"+u.Host, tenant)
	default:
		return nil, fmt.Errorf("%s: %w", op, &config.ConfigValueError{
			Name:   config.Authority,
			Value:  v,
			Reason: fmt.Sprintf("unsupported authority type %T", v),
		})
	}
}

// String returns the authority URL
func (a *Authority) String() string {
	return a.Instance + "/" + a.Tenant
}

// Endpoints returns the discovered endpoints when the authority was created
// by Discover, otherwise the well known v2.0 endpoints of the authority.
func (a *Authority) Endpoints() Endpoints {
	if a.endpoints != nil {
		return *a.endpoints
	}
	var ep oauth2.Endpoint
	switch a.Instance {
	case DefaultInstance:
		ep = microsoft.AzureADEndpoint(a.Tenant)
	default:
		ep = oauth2.Endpoint{
			AuthURL:  a.String() + "/oauth2/v2.0/authorize",
			TokenURL: a.String() + "/oauth2/v2.0/token",
		}
	}
	return Endpoints{
		AuthURL:   ep.AuthURL,
		TokenURL:  ep.TokenURL,
		LogoutURL: a.String() + "/oauth2/v2.0/logout",
		JWKSURL:   a.String() + "/discovery/v2.0/keys",
	}
}

func (a *Authority) oauth2Endpoint() oauth2.Endpoint {
	ep := a.Endpoints()
	return oauth2.Endpoint{
		AuthURL:   ep.AuthURL,
		TokenURL:  ep.TokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
}
