// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	_ "embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/cap-sso/config"
	"github.com/hashicorp/cap-sso/hooks"
	"github.com/hashicorp/cap-sso/identity"
	"github.com/hashicorp/cap-sso/session"
	"github.com/hashicorp/cap-sso/sso"
	"github.com/hashicorp/go-hclog"
)

const demoPreLogin = "demo.pre_login"

//go:embed templates/page.html
var pageText string

var pageTmpl = template.Must(template.New("page.html").Parse(pageText))

type site struct {
	settings *config.Settings
	sessions *session.Manager
	users    identity.UserStore
	sso      *sso.Service
	logger   hclog.Logger
}

type pageData struct {
	Title     string
	User      *identity.User
	Messages  []session.Message
	Button    *sso.Button
	LogoutURL string
}

func (s *site) register(r chi.Router) {
	r.Get("/", s.page("Home"))
	r.Get("/admin/", s.page("Admin"))
	r.Get("/secret/", s.page("Secret"))
}

// preLogin is registered as the pre-login hook
func preLogin(logger hclog.Logger) hooks.PreLoginFunc {
	return func(_ context.Context, u *identity.User, r *http.Request) {
		logger.Info("user signing in", "username", u.Username, "remote_addr", r.RemoteAddr)
	}
}

func (s *site) page(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Load(r)
		if err != nil {
			s.logger.Error("unable to load session", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		data := pageData{
			Title:     title,
			Messages:  sess.Messages(),
			LogoutURL: s.sso.LogoutURL(),
		}
		if id, ok := hooks.LoggedInUserID(sess); ok {
			u, err := s.users.Get(r.Context(), id)
			switch {
			case err == nil:
				data.User = u
			default:
				s.logger.Warn("logged in user not found", "id", id, "error", err)
			}
		}
		if data.User == nil {
			if data.Button, err = s.sso.Button(r); err != nil {
				s.logger.Error("unable to build login button", "error", err)
			}
		}
		if err := sess.Save(w); err != nil {
			s.logger.Error("unable to save session", "error", err)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := pageTmpl.Execute(w, data); err != nil {
			s.logger.Error("unable to render page", "error", err)
		}
	}
}
