// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package sso

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/cap-sso/callback"
	"github.com/hashicorp/cap-sso/config"
	"github.com/hashicorp/cap-sso/hooks"
	"github.com/hashicorp/cap-sso/identity"
	"github.com/hashicorp/cap-sso/oidc"
	"github.com/hashicorp/cap-sso/session"
	"github.com/hashicorp/go-hclog"
)

// Route paths, relative to the mount path.
const (
	DefaultMountPath = "/microsoft_sso"
	LoginPath        = "/login/"
	CallbackPath     = "/callback/"
	LogoutPath       = "/logout/"
)

// Service serves the sign-in routes: login starts a flow, callback finishes
// it and logout ends the host session and optionally the IdP's.
type Service struct {
	settings  *config.Settings
	providers callback.ProviderSource
	sessions  *session.Manager
	registry  *hooks.Registry
	callback  *callback.Handler
	sites     oidc.SiteResolver
	mountPath string
	logger    hclog.Logger
}

// New creates a Service.
// Supported options: WithLogger, WithMetrics, WithSiteResolver, WithMountPath
func New(
	settings *config.Settings,
	providers callback.ProviderSource,
	sessions *session.Manager,
	reconciler *identity.Reconciler,
	registry *hooks.Registry,
	opt ...Option,
) (*Service, error) {
	const op = "sso.New"
	opts := getOpts(opt...)
	cb, err := callback.NewHandler(settings, providers, sessions, reconciler, registry,
		callback.WithLogger(opts.withLogger.Named("callback")),
		callback.WithMetrics(opts.withMetrics),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	mountPath := strings.TrimSuffix(opts.withMountPath, "/")
	if mountPath != "" && !strings.HasPrefix(mountPath, "/") {
		return nil, fmt.Errorf("%s: mount path %q must start with /: %w", op, mountPath, ErrInvalidParameter)
	}
	if !sessions.ServerSide() {
		save := settings.IsComputed(config.SaveAccessToken)
		if !save {
			if save, err = settings.Bool(config.SaveAccessToken, nil); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		if save {
			opts.withLogger.Warn("access tokens are saved in cookie sessions and can exceed the 4096 byte cookie limit, use a server side session store",
				"setting", config.SaveAccessToken)
		}
	}
	return &Service{
		settings:  settings,
		providers: providers,
		sessions:  sessions,
		registry:  registry,
		callback:  cb,
		sites:     opts.withSites,
		mountPath: mountPath,
		logger:    opts.withLogger,
	}, nil
}

// Register mounts the routes on r.  Nothing is mounted when sign-in is
// disabled.
func (s *Service) Register(r chi.Router) error {
	const op = "sso.(Service).Register"
	if r == nil {
		return fmt.Errorf("%s: router is nil: %w", op, ErrNilParameter)
	}
	enabled, err := s.settings.Bool(config.Enabled, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !enabled {
		s.logger.Info("microsoft sso is disabled, routes not mounted")
		return nil
	}
	routes := func(r chi.Router) {
		r.Get(LoginPath, s.login)
		r.Method(http.MethodGet, CallbackPath, s.callback)
		r.Post(LogoutPath, s.logout)
		r.Options(LogoutPath, logoutOptions)
	}
	if s.mountPath == "" {
		r.Group(routes)
	} else {
		r.Route(s.mountPath, routes)
	}
	s.logger.Debug("routes mounted", "path", s.mountPath)
	return nil
}

// Handler returns a router serving only the sign-in routes
func (s *Service) Handler() (http.Handler, error) {
	const op = "sso.(Service).Handler"
	r := chi.NewRouter()
	if err := s.Register(r); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// LoginURL returns the path of the login route
func (s *Service) LoginURL() string { return s.mountPath + LoginPath }

// CallbackURL returns the path of the callback route
func (s *Service) CallbackURL() string { return s.mountPath + CallbackPath }

// LogoutURL returns the path of the logout route
func (s *Service) LogoutURL() string { return s.mountPath + LogoutPath }

func (s *Service) serverError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
