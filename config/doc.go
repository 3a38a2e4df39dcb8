// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

/*
Package config provides the named settings used by the sso packages.

Every setting is a Value which is either Static or Computed. A Computed value
is a function of the current *http.Request and is evaluated each time the
setting is resolved, which allows per-site or per-tenant configuration:

	s := config.NewSettings()
	_ = config.Set(s, config.Text, config.Computed(func(r *http.Request) string {
		if r.Host == "other-site.com" {
			return "Sign in with Contoso"
		}
		return "Sign in with Microsoft"
	}))
	txt, err := s.String(config.Text, req)

A few settings (Enabled, EnableLogs) must be static. Resolving one of them
when a Computed value was supplied fails with a *ConfigTypeError.

Resolving EnableLogs also toggles the process wide logger returned by Logger().
*/
package config
