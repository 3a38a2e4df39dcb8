// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

/*
Package hooks holds the host's extension points for a sign-in: the
pre-validate, pre-create and pre-login hooks, and the authentication backend
that establishes the host's login session.

Hooks and backends are registered by name and the settings select them:

	reg := hooks.NewRegistry()
	_ = reg.RegisterPreCreate("app.pre_create", func(ctx context.Context, c *oidc.Claims, r *http.Request) map[string]interface{} {
		return map[string]interface{}{"username": strings.Split(c.Mail, "@")[0]}
	})
	_ = config.Set(settings, config.PreCreateCallback, config.Static("app.pre_create"))
	if err := reg.ValidateSettings(settings); err != nil {
		// unknown hook or backend name
	}
*/
package hooks
