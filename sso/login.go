// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package sso

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/cap-sso/config"
	"github.com/hashicorp/cap-sso/oidc"
)

// NextPath returns the path to send the user to after signing in.  Only the
// path of next is kept, so next can't redirect to another site.  A next that
// doesn't start with "http" or "/" is treated as a scheme-relative URL, which
// turns "evil.com/secret/" into "/secret/".  An empty next returns def.
func NextPath(next, def string) string {
	clean := def
	if next != "" {
		clean = next
		if !strings.HasPrefix(next, "http") && !strings.HasPrefix(next, "/") {
			clean = "//" + next
		}
	}
	u, err := url.Parse(clean)
	if err != nil {
		return def
	}
	if u.Path == "" {
		return ""
	}
	return "/" + strings.TrimLeft(u.Path, "/\\")
}

// flowTTL is the session lifetime while a flow is pending.  The timeout
// setting counts minutes here.
func flowTTL(timeout time.Duration) time.Duration {
	return timeout * 60
}

func (s *Service) login(w http.ResponseWriter, r *http.Request) {
	defaultNext, err := s.settings.String(config.NextURL, r)
	if err != nil {
		s.serverError(w, "unable to resolve next url", err)
		return
	}
	next := NextPath(r.URL.Query().Get("next"), defaultNext)

	provider, err := s.providers.Provider(r)
	if err != nil {
		s.serverError(w, "unable to create provider", err)
		return
	}
	callbackDomain, err := s.settings.String(config.CallbackDomain, r)
	if err != nil {
		s.serverError(w, "unable to resolve callback domain", err)
		return
	}
	redirectURI, err := oidc.BuildRedirectURI(r, callbackDomain, s.sites, s.CallbackURL())
	if err != nil {
		s.serverError(w, "unable to build redirect uri", err)
		return
	}
	timeout, err := s.settings.Duration(config.Timeout, r)
	if err != nil {
		s.serverError(w, "unable to resolve timeout", err)
		return
	}
	res, err := provider.Initiate(r.Context(), oidc.WithRedirectURI(redirectURI), oidc.WithFlowExpiry(flowTTL(timeout)))
	if err != nil {
		s.serverError(w, "unable to initiate flow", err)
		return
	}

	sess, err := s.sessions.Load(r)
	if err != nil {
		s.serverError(w, "unable to load session", err)
		return
	}
	if err := sess.SetFlow(res.Flow); err != nil {
		s.serverError(w, "unable to store flow state", err)
		return
	}
	sess.SetNextURL(next)
	sess.SetExpiry(flowTTL(timeout))
	if err := sess.Save(w); err != nil {
		s.serverError(w, "unable to save session", err)
		return
	}
	s.logger.Debug("login initiated", "redirect_uri", redirectURI, "next", next)
	http.Redirect(w, r, res.AuthorizationURI, http.StatusFound)
}
