// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/cap-sso/config"
	"github.com/hashicorp/cap-sso/hooks"
	"github.com/hashicorp/cap-sso/identity"
	"github.com/hashicorp/cap-sso/oidc"
	"github.com/hashicorp/cap-sso/session"
	"github.com/hashicorp/go-hclog"
)

// Messages shown to the user when a callback fails.
const (
	MsgNotEnabled         = "Microsoft SSO not enabled."
	MsgNoCode             = "Authorization Code not received from SSO."
	MsgStateMismatch      = "State Mismatch. Time expired?"
	MsgNoTokenData        = "Authorization Data not received from SSO."
	MsgProviderError      = "Authorization Error received from SSO: %s."
	MsgInvalidClient      = "Please check your Client Credentials for MS Entra App."
	MsgEmailNotAllowed    = "Email address not allowed: %s. Please contact your administrator."
	MsgUserNotFound       = "User not found."
	MsgUserInactive       = "User is inactive."
	MsgAutoCreateDisabled = "Auto-create is disabled and user was not found."
)

// Handler handles the IdP's redirect back to the host.  It validates the
// callback against the flow state stored in the session, exchanges the code,
// fetches the user's claims, resolves the local user and logs it in.  The
// response is always a redirect, except for a misconfiguration which is
// answered with a 500.
type Handler struct {
	settings   *config.Settings
	providers  ProviderSource
	sessions   *session.Manager
	reconciler *identity.Reconciler
	hooks      *hooks.Registry
	metrics    *Metrics
	logger     hclog.Logger
}

// NewHandler creates a Handler.  Supported options: WithLogger, WithMetrics
func NewHandler(
	settings *config.Settings,
	providers ProviderSource,
	sessions *session.Manager,
	reconciler *identity.Reconciler,
	registry *hooks.Registry,
	opt ...Option,
) (*Handler, error) {
	const op = "callback.NewHandler"
	switch {
	case settings == nil:
		return nil, fmt.Errorf("%s: settings are nil: %w", op, ErrNilParameter)
	case providers == nil:
		return nil, fmt.Errorf("%s: provider source is nil: %w", op, ErrNilParameter)
	case sessions == nil:
		return nil, fmt.Errorf("%s: session manager is nil: %w", op, ErrNilParameter)
	case reconciler == nil:
		return nil, fmt.Errorf("%s: reconciler is nil: %w", op, ErrNilParameter)
	case registry == nil:
		return nil, fmt.Errorf("%s: hook registry is nil: %w", op, ErrNilParameter)
	}
	opts := handlerDefaults()
	ApplyOpts(&opts, opt...)
	return &Handler{
		settings:   settings,
		providers:  providers,
		sessions:   sessions,
		reconciler: reconciler,
		hooks:      registry,
		metrics:    opts.withMetrics,
		logger:     opts.withLogger,
	}, nil
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Load(r)
	if err != nil {
		h.logger.Error("unable to load session", "error", err)
		h.metrics.observe(StateStart, ResultError)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	r = r.WithContext(session.NewContext(r.Context(), sess))

	target, err := h.Process(r.Context(), r, sess)
	var f *Failure
	switch {
	case err == nil:
		h.metrics.observe(StateLoggedIn, ResultSuccess)
	case errors.As(err, &f) && f.Fatal:
		h.logger.Error("sign-in misconfigured", "state", f.State, "error", f.Err)
		h.metrics.observe(f.State, ResultError)
		if err := sess.Save(w); err != nil {
			h.logger.Error("unable to save session", "error", err)
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	case errors.As(err, &f):
		h.metrics.observe(f.State, ResultFailure)
		h.fail(r, sess, f)
		target = h.failedURL(r)
	default:
		h.logger.Error("sign-in failed", "error", err)
		h.metrics.observe(StateStart, ResultError)
		target = h.failedURL(r)
	}
	if err := sess.Save(w); err != nil {
		h.logger.Error("unable to save session", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) fail(r *http.Request, sess *session.Session, f *Failure) {
	logArgs := []interface{}{"state", f.State}
	if f.Err != nil {
		logArgs = append(logArgs, "error", f.Err)
	}
	for _, m := range f.Messages {
		h.logger.Warn(m, logArgs...)
	}
	if len(f.Messages) == 0 {
		h.logger.Warn("sign-in failed", logArgs...)
	}
	if on, err := h.settings.Bool(config.EnableMessages, r); err != nil || !on {
		return
	}
	if f.Hidden {
		if show, err := h.settings.Bool(config.ShowFailedLoginMessage, r); err != nil || !show {
			return
		}
	}
	for _, m := range f.Messages {
		sess.AddMessage(session.LevelError, m)
	}
}

func (h *Handler) failedURL(r *http.Request) string {
	u, err := h.settings.String(config.LoginFailedURL, r)
	if err != nil || u == "" {
		h.logger.Error("unable to resolve login failed url", "error", err)
		return "/"
	}
	return u
}

func failure(s State, err error, msgs ...string) *Failure {
	return &Failure{State: s, Err: err, Messages: msgs}
}

func fatal(s State, err error) *Failure {
	return &Failure{State: s, Err: err, Fatal: true}
}

// Process runs the callback steps for r.  It returns the path to redirect
// to once the user is logged in, or a *Failure.  The flow state is removed
// from sess before anything else, so it can't be replayed.
func (h *Handler) Process(ctx context.Context, r *http.Request, sess *session.Session) (string, error) {
	if sess == nil {
		return "", fatal(StateStart, fmt.Errorf("session is nil: %w", ErrNilParameter))
	}
	flow, flowErr := sess.TakeFlow()
	if flowErr != nil {
		h.logger.Debug("discarding unreadable flow state", "error", flowErr)
	}
	next := sess.NextURL()
	sess.Delete(session.NextURLKey)

	// enabled check
	if next == "" {
		n, err := h.settings.String(config.NextURL, r)
		if err != nil {
			return "", fatal(StateEnabledCheck, err)
		}
		next = n
	}
	enabled, err := h.enabled(r, next)
	if err != nil {
		return "", fatal(StateEnabledCheck, err)
	}
	if !enabled {
		return "", failure(StateEnabledCheck, ErrDisabled, MsgNotEnabled)
	}

	// code present
	q := r.URL.Query()
	if q.Get("code") == "" {
		var err error
		if e := q.Get("error"); e != "" {
			err = &oidc.ProviderError{Code: e, Description: q.Get("error_description"), URI: q.Get("error_uri")}
		}
		return "", failure(StateCodePresent, err, MsgNoCode)
	}

	// state validated
	if flow == nil || q.Get("state") != flow.State {
		return "", failure(StateStateValidated, ErrStateMismatch, MsgStateMismatch)
	}

	// token exchanged
	provider, err := h.providers.Provider(r)
	if err != nil {
		return "", fatal(StateTokenExchanged, err)
	}
	tk, err := provider.Exchange(ctx, flow, q)
	switch {
	case errors.Is(err, oidc.ErrResponseStateInvalid), errors.Is(err, oidc.ErrExpiredState):
		return "", failure(StateStateValidated, fmt.Errorf("%w: %w", ErrStateMismatch, err), MsgStateMismatch)
	case err != nil:
		return "", failure(StateTokenExchanged, err, MsgNoTokenData)
	case tk == nil:
		return "", failure(StateTokenExchanged, nil, MsgNoTokenData)
	case tk.Error != "":
		msgs := []string{fmt.Sprintf(MsgProviderError, tk.Error)}
		if tk.Error == "invalid_client" {
			msgs = append(msgs, MsgInvalidClient)
		}
		return "", failure(StateTokenExchanged, tk.Err(), msgs...)
	case !tk.Valid():
		return "", failure(StateTokenExchanged, nil, MsgNoTokenData)
	}

	// claims fetched
	timeout, err := h.settings.Duration(config.Timeout, r)
	if err != nil {
		return "", fatal(StateClaimsFetched, err)
	}
	claims, err := provider.FetchClaims(ctx, tk.AccessToken, timeout)
	if err != nil {
		msg := oidc.ErrClaimsFetch.Error()
		var ce *oidc.ClaimsError
		if errors.As(err, &ce) {
			msg = ce.Error()
		}
		return "", failure(StateClaimsFetched, err, msg)
	}

	// pre-validated
	preValidate, err := h.preValidate(r)
	if err != nil {
		return "", fatal(StatePreValidated, err)
	}
	allowed := preValidate(ctx, claims, r)
	if allowed {
		if allowed, err = h.reconciler.EmailIsValid(claims, r); err != nil {
			return "", fatal(StatePreValidated, err)
		}
	}
	if !allowed {
		return "", failure(StatePreValidated, nil, fmt.Sprintf(MsgEmailNotAllowed, claims.Email()))
	}

	// user resolved
	u, f := h.resolveUser(ctx, r, claims)
	if f != nil {
		return "", f
	}

	// logged in
	backendName, err := h.settings.String(config.AuthenticationBackend, r)
	if err != nil {
		return "", fatal(StateLoggedIn, err)
	}
	backend, err := h.hooks.Backend(backendName)
	if err != nil {
		return "", fatal(StateLoggedIn, err)
	}
	saveToken, err := h.settings.Bool(config.SaveAccessToken, r)
	if err != nil {
		return "", fatal(StateLoggedIn, err)
	}
	preLogin, err := h.preLogin(r)
	if err != nil {
		return "", fatal(StateLoggedIn, err)
	}
	preLogin(ctx, u, r)
	if err := backend.Login(ctx, sess, u); err != nil {
		f := failure(StateLoggedIn, err, MsgUserInactive)
		f.Hidden = true
		if !errors.Is(err, identity.ErrUserInactive) {
			f.Messages = nil
		}
		return "", f
	}
	if saveToken {
		sess.SetAccessToken(tk.AccessToken)
	}
	age, err := h.settings.Duration(config.SessionCookieAge, r)
	if err != nil {
		return "", fatal(StateLoggedIn, err)
	}
	sess.SetExpiry(age)
	h.logger.Info("user logged in", "username", u.Username, "id", u.ID)
	return next, nil
}

// enabled reports whether sign-in is enabled for the target path
func (h *Handler) enabled(r *http.Request, target string) (bool, error) {
	on, err := h.settings.Bool(config.Enabled, r)
	if err != nil || !on {
		return false, err
	}
	adminPath, err := h.settings.String(config.AdminPath, r)
	if err != nil {
		return false, err
	}
	if adminPath != "" && strings.HasPrefix(target, adminPath) {
		return h.settings.Bool(config.AdminEnabled, r)
	}
	return h.settings.Bool(config.PagesEnabled, r)
}

func (h *Handler) resolveUser(ctx context.Context, r *http.Request, claims *oidc.Claims) (*identity.User, *Failure) {
	autoCreate, err := h.settings.Bool(config.AutoCreateUsers, r)
	if err != nil {
		return nil, fatal(StateUserResolved, err)
	}
	var u *identity.User
	if autoCreate {
		var preCreate hooks.PreCreateFunc
		if preCreate, err = h.preCreate(r); err != nil {
			return nil, fatal(StateUserResolved, err)
		}
		u, _, err = h.reconciler.Reconcile(ctx, claims, r, preCreate(ctx, claims, r))
	} else {
		u, err = h.reconciler.Find(ctx, claims, r)
	}
	switch {
	case errors.Is(err, identity.ErrMissingEmail):
		return nil, failure(StateUserResolved, err, identity.ErrMissingEmail.Error())
	case errors.Is(err, identity.ErrUserNotFound) && !autoCreate:
		f := failure(StateUserResolved, err, MsgAutoCreateDisabled)
		f.Hidden = true
		return nil, f
	case err != nil:
		f := failure(StateUserResolved, err, MsgUserNotFound)
		f.Hidden = true
		return nil, f
	case u == nil:
		f := failure(StateUserResolved, identity.ErrUserNotFound, MsgUserNotFound)
		f.Hidden = true
		return nil, f
	case !u.IsActive:
		f := failure(StateUserResolved, identity.ErrUserInactive, MsgUserInactive)
		f.Hidden = true
		return nil, f
	}
	return u, nil
}

func (h *Handler) preValidate(r *http.Request) (hooks.PreValidateFunc, error) {
	name, err := h.settings.String(config.PreValidateCallback, r)
	if err != nil {
		return nil, err
	}
	return h.hooks.PreValidate(name)
}

func (h *Handler) preCreate(r *http.Request) (hooks.PreCreateFunc, error) {
	name, err := h.settings.String(config.PreCreateCallback, r)
	if err != nil {
		return nil, err
	}
	return h.hooks.PreCreate(name)
}

func (h *Handler) preLogin(r *http.Request) (hooks.PreLoginFunc, error) {
	name, err := h.settings.String(config.PreLoginCallback, r)
	if err != nil {
		return nil, err
	}
	return h.hooks.PreLogin(name)
}
