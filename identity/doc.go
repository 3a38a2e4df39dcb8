// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

/*
Package identity maps the claims of a signed in Microsoft user onto a local
user account.

A Reconciler looks the user up in a UserStore, creates it when allowed,
refreshes its profile and roles, and records the Link between the local
account and the Microsoft identity.  The policy (unique email mode, always
refresh, role lists, first superuser bootstrap) is resolved from
config.Settings for every request.

Lookup has two modes.  In unique email mode the user is matched by email.
Otherwise the link is matched by principal name, falling back to the
username.  Both lookups ignore case.
*/
package identity
