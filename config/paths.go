// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"net/http"
	"strings"
)

// IsAdminPath returns a Computed bool which is true when the request path is
// under the admin prefix.  Use it for AdminEnabled to show the login button
// only on admin pages.
func IsAdminPath(adminPrefix string) Value[bool] {
	return Computed(func(r *http.Request) bool {
		return r != nil && strings.HasPrefix(r.URL.Path, adminPrefix)
	})
}

// IsPagePath returns a Computed bool which is true when the request path is
// not under the admin prefix.
func IsPagePath(adminPrefix string) Value[bool] {
	return Computed(func(r *http.Request) bool {
		return r != nil && !strings.HasPrefix(r.URL.Path, adminPrefix)
	})
}
