// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

/*
Package sso serves Microsoft Entra sign-in for a host application.

A Service mounts three routes on a chi router, under /microsoft_sso by
default:

	GET          /login/?next=/path/   start the flow and redirect to the IdP
	GET          /callback/            finish the flow and log the user in
	POST|OPTIONS /logout/              log out, and out of the IdP when single logout is enabled

No routes are mounted when sign-in is disabled.  Example:

	providers, _ := callback.NewSettingsProviders(settings)
	svc, err := sso.New(settings, providers, sessions, reconciler, hooks.NewRegistry())
	if err != nil {
		// handle error
	}
	r := chi.NewRouter()
	if err := svc.Register(r); err != nil {
		// handle error
	}

Login pages render the sign-in button from Service.Button.
*/
package sso
