// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package sso

import (
	"net/http"
	"strings"

	"github.com/hashicorp/cap-sso/config"
	"github.com/hashicorp/cap-sso/oidc"
	"github.com/hashicorp/cap-sso/session"
)

// LogoutHandler returns the logout route's handler, for hosts mounting it
// themselves.  It logs the user out of the host even when sign-in is
// disabled.
func (s *Service) LogoutHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.logout(w, r)
		case http.MethodOptions:
			logoutOptions(w, r)
		default:
			w.Header().Set("Allow", "POST, OPTIONS")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		}
	})
}

func logoutOptions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", "POST, OPTIONS")
	w.WriteHeader(http.StatusOK)
}

// logout ends the host session, then redirects to the IdP's end-session
// endpoint when single logout is enabled, otherwise to the logout redirect
// path.
func (s *Service) logout(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Load(r)
	if err != nil {
		s.serverError(w, "unable to load session", err)
		return
	}
	backendName := sess.GetString(session.BackendKey)
	backend, err := s.registry.Backend(backendName)
	if err != nil {
		s.serverError(w, "unable to resolve authentication backend", err)
		return
	}
	if err := backend.Logout(r.Context(), sess); err != nil {
		s.serverError(w, "unable to log out", err)
		return
	}

	homepage, err := s.settings.String(config.LogoutRedirectPath, r)
	if err != nil {
		s.serverError(w, "unable to resolve logout redirect path", err)
		return
	}
	target := homepage
	slo, err := s.singleLogout(r)
	if err != nil {
		s.serverError(w, "unable to resolve single logout", err)
		return
	}
	if slo {
		if !strings.HasPrefix(homepage, "http") {
			if homepage, err = oidc.BuildRedirectURI(r, "", s.sites, homepage); err != nil {
				s.serverError(w, "unable to build logout redirect uri", err)
				return
			}
		}
		provider, err := s.providers.Provider(r)
		if err != nil {
			s.serverError(w, "unable to create provider", err)
			return
		}
		target = provider.LogoutURI(homepage)
	}
	if err := sess.Save(w); err != nil {
		s.serverError(w, "unable to save session", err)
		return
	}
	s.logger.Debug("logged out", "single_logout", slo)
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Service) singleLogout(r *http.Request) (bool, error) {
	enabled, err := s.settings.Bool(config.Enabled, r)
	if err != nil || !enabled {
		return false, err
	}
	return s.settings.Bool(config.SLOEnabled, r)
}
