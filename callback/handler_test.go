// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/hashicorp/cap-sso/config"
	"github.com/hashicorp/cap-sso/hooks"
	"github.com/hashicorp/cap-sso/identity"
	"github.com/hashicorp/cap-sso/oidc"
	"github.com/hashicorp/cap-sso/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRedirectURI = "https://site.com/microsoft_sso/callback/"
	testFailedURL   = "/login-failed/"
)

var testHashKey = []byte("0123456789abcdef0123456789abcdef")

type testEnv struct {
	tp        *oidc.TestProvider
	settings  *config.Settings
	providers *SettingsProviders
	sessions  *session.Manager
	store     *identity.MemStore
	registry  *hooks.Registry
	promReg   *prometheus.Registry
	handler   *Handler
}

func newTestEnv(t *testing.T, set func(s *config.Settings)) *testEnv {
	t.Helper()
	require := require.New(t)
	e := &testEnv{tp: oidc.StartTestProvider(t)}

	e.settings = config.NewSettings()
	require.NoError(config.Set(e.settings, config.ApplicationID, config.Static(oidc.TestClientID)))
	require.NoError(config.Set(e.settings, config.ClientSecret, config.Static(oidc.TestClientSecret)))
	require.NoError(config.Set(e.settings, config.Authority, config.Static[interface{}](e.tp.Authority())))
	require.NoError(config.Set(e.settings, config.AllowableDomains, config.Static([]string{"dailyplanet.com"})))
	require.NoError(config.Set(e.settings, config.LoginFailedURL, config.Static(testFailedURL)))
	if set != nil {
		set(e.settings)
	}

	var err error
	e.providers, err = NewSettingsProviders(e.settings, WithGraphURL(e.tp.Addr()), WithProviderCA(e.tp.CACert()))
	require.NoError(err)
	e.sessions, err = session.NewManager(session.NewCookieStore(testHashKey))
	require.NoError(err)
	e.store = identity.NewMemStore()
	rc, err := identity.NewReconciler(e.store, e.settings, identity.WithNotifier(Notifier(e.settings)))
	require.NoError(err)
	e.registry = hooks.NewRegistry()
	e.promReg = prometheus.NewRegistry()
	e.handler, err = NewHandler(e.settings, e.providers, e.sessions, rc, e.registry, WithMetrics(NewMetrics(e.promReg)))
	require.NoError(err)
	return e
}

// initiate starts a flow the way the login route does and returns the
// callback query the IdP redirects to, plus the session cookies.
func (e *testEnv) initiate(t *testing.T, next string) (url.Values, []*http.Cookie) {
	t.Helper()
	require := require.New(t)
	r := httptest.NewRequest(http.MethodGet, "https://site.com/microsoft_sso/login/", nil)
	prov, err := e.providers.Provider(r)
	require.NoError(err)
	res, err := prov.Initiate(context.Background(), oidc.WithRedirectURI(testRedirectURI))
	require.NoError(err)

	sess, err := e.sessions.Load(r)
	require.NoError(err)
	require.NoError(sess.SetFlow(res.Flow))
	if next != "" {
		sess.SetNextURL(next)
	}
	rec := httptest.NewRecorder()
	require.NoError(sess.Save(rec))

	client, err := prov.Config().HttpClient()
	require.NoError(err)
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := client.Get(res.AuthorizationURI)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(err)
	return loc.Query(), rec.Result().Cookies()
}

// callback sends the callback request and returns the response
func (e *testEnv) callback(t *testing.T, q url.Values, cookies []*http.Cookie) *http.Response {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, testRedirectURI+"?"+q.Encode(), nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, r)
	return rec.Result()
}

// session loads the session set by resp
func (e *testEnv) session(t *testing.T, resp *http.Response) *session.Session {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "https://site.com/", nil)
	for _, c := range resp.Cookies() {
		r.AddCookie(c)
	}
	sess, err := e.sessions.Load(r)
	require.NoError(t, err)
	return sess
}

func (e *testEnv) count(t *testing.T, state State, result string) float64 {
	t.Helper()
	families, err := e.promReg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "sso_callback_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["state"] == state.String() && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func texts(msgs []session.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}

func TestNewHandler(t *testing.T) {
	t.Parallel()
	s := config.NewSettings()
	p, err := NewSettingsProviders(s)
	require.NoError(t, err)
	m, err := session.NewManager(session.NewCookieStore(testHashKey))
	require.NoError(t, err)
	rc, err := identity.NewReconciler(identity.NewMemStore(), s)
	require.NoError(t, err)
	reg := hooks.NewRegistry()

	tests := []struct {
		name      string
		build     func() (*Handler, error)
		wantErrIs error
	}{
		{name: "nil-settings", build: func() (*Handler, error) { return NewHandler(nil, p, m, rc, reg) }, wantErrIs: ErrNilParameter},
		{name: "nil-providers", build: func() (*Handler, error) { return NewHandler(s, nil, m, rc, reg) }, wantErrIs: ErrNilParameter},
		{name: "nil-sessions", build: func() (*Handler, error) { return NewHandler(s, p, nil, rc, reg) }, wantErrIs: ErrNilParameter},
		{name: "nil-reconciler", build: func() (*Handler, error) { return NewHandler(s, p, m, nil, reg) }, wantErrIs: ErrNilParameter},
		{name: "nil-registry", build: func() (*Handler, error) { return NewHandler(s, p, m, rc, nil) }, wantErrIs: ErrNilParameter},
		{name: "valid", build: func() (*Handler, error) { return NewHandler(s, p, m, rc, reg) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			h, err := tt.build()
			if tt.wantErrIs != nil {
				assert.ErrorIs(err, tt.wantErrIs)
				assert.Nil(h)
				return
			}
			assert.NoError(err)
			assert.NotNil(h)
		})
	}
}

func TestHandler_success(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	e := newTestEnv(t, func(s *config.Settings) {
		require.NoError(config.Set(s, config.SaveAccessToken, config.Static(true)))
		require.NoError(config.Set(s, config.SuperuserList, config.Static([]string{"kalel@dailyplanet.com"})))
	})
	var preLogin *identity.User
	require.NoError(e.registry.RegisterPreLogin("app.pre_login", func(_ context.Context, u *identity.User, _ *http.Request) {
		preLogin = u
	}))
	require.NoError(config.Set(e.settings, config.PreLoginCallback, config.Static("app.pre_login")))

	q, cookies := e.initiate(t, "/secret/")
	resp := e.callback(t, q, cookies)
	require.Equal(http.StatusFound, resp.StatusCode)
	assert.Equal("/secret/", resp.Header.Get("Location"))

	users, links := e.store.Len()
	assert.Equal(1, users)
	assert.Equal(1, links)
	u, err := e.store.FindByUsername(context.Background(), "kalel@dailyplanet.com")
	require.NoError(err)
	assert.True(u.IsSuperuser)
	assert.True(u.IsStaff)
	require.NotNil(preLogin)
	assert.Equal(u.ID, preLogin.ID)

	sess := e.session(t, resp)
	id, ok := hooks.LoggedInUserID(sess)
	require.True(ok)
	assert.Equal(u.ID, id)
	assert.Equal(oidc.TestAccessToken, sess.AccessToken())
	assert.Empty(sess.NextURL())
	flow, err := sess.TakeFlow()
	require.NoError(err)
	assert.Nil(flow)
	assert.Contains(texts(sess.Messages()), "User email: kalel@dailyplanet.com in MICROSOFT_SSO_SUPERUSER_LIST. Added SuperUser Permission.")

	assert.Equal(float64(1), e.count(t, StateLoggedIn, ResultSuccess))
}

func TestHandler_defaultNext(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	e := newTestEnv(t, func(s *config.Settings) {
		require.NoError(config.Set(s, config.NextURL, config.Static("/home/")))
	})
	q, cookies := e.initiate(t, "")
	resp := e.callback(t, q, cookies)
	require.Equal(http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/home/", resp.Header.Get("Location"))
	var maxAge int
	for _, c := range resp.Cookies() {
		if c.Name == e.sessions.Name() {
			maxAge = c.MaxAge
		}
	}
	assert.Equal(t, int(time.Hour/time.Second), maxAge)
}

func TestHandler_failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		set          func(t *testing.T, e *testEnv)
		query        func(q url.Values) url.Values
		dropCookies  bool
		wantState    State
		wantMessages []string
		wantTokenReq int
	}{
		{
			name: "disabled",
			set: func(t *testing.T, e *testEnv) {
				require.NoError(t, config.Set(e.settings, config.Enabled, config.Static(false)))
			},
			wantState:    StateEnabledCheck,
			wantMessages: []string{MsgNotEnabled},
		},
		{
			name: "pages-disabled",
			set: func(t *testing.T, e *testEnv) {
				require.NoError(t, config.Set(e.settings, config.PagesEnabled, config.Static(false)))
			},
			wantState:    StateEnabledCheck,
			wantMessages: []string{MsgNotEnabled},
		},
		{
			name:         "no-code",
			query:        func(q url.Values) url.Values { q.Del("code"); return q },
			wantState:    StateCodePresent,
			wantMessages: []string{MsgNoCode},
		},
		{
			name: "no-code-with-error",
			query: func(q url.Values) url.Values {
				return url.Values{"error": {"access_denied"}, "state": {q.Get("state")}}
			},
			wantState:    StateCodePresent,
			wantMessages: []string{MsgNoCode},
		},
		{
			name:         "state-mismatch",
			query:        func(q url.Values) url.Values { q.Set("state", "forged"); return q },
			wantState:    StateStateValidated,
			wantMessages: []string{MsgStateMismatch},
		},
		{
			name:         "no-flow",
			dropCookies:  true,
			wantState:    StateStateValidated,
			wantMessages: []string{MsgStateMismatch},
		},
		{
			name: "invalid-client",
			set: func(t *testing.T, e *testEnv) {
				e.tp.SetTokenError(http.StatusUnauthorized, "invalid_client", "AADSTS7000215: Invalid client secret provided.")
			},
			wantState:    StateTokenExchanged,
			wantMessages: []string{"Authorization Error received from SSO: invalid_client.", MsgInvalidClient},
			wantTokenReq: 1,
		},
		{
			name: "invalid-grant",
			set: func(t *testing.T, e *testEnv) {
				e.tp.SetTokenError(http.StatusBadRequest, "invalid_grant", "expired code")
			},
			wantState:    StateTokenExchanged,
			wantMessages: []string{"Authorization Error received from SSO: invalid_grant."},
			wantTokenReq: 1,
		},
		{
			name: "domain-not-allowed",
			set: func(t *testing.T, e *testEnv) {
				require.NoError(t, config.Set(e.settings, config.AllowableDomains, config.Static([]string{"gotham.com"})))
			},
			wantState:    StatePreValidated,
			wantMessages: []string{"Email address not allowed: kalel@dailyplanet.com. Please contact your administrator."},
			wantTokenReq: 1,
		},
		{
			name: "pre-validate-rejects",
			set: func(t *testing.T, e *testEnv) {
				require.NoError(t, e.registry.RegisterPreValidate("app.reject", func(context.Context, *oidc.Claims, *http.Request) bool { return false }))
				require.NoError(t, config.Set(e.settings, config.PreValidateCallback, config.Static("app.reject")))
			},
			wantState:    StatePreValidated,
			wantMessages: []string{"Email address not allowed: kalel@dailyplanet.com. Please contact your administrator."},
			wantTokenReq: 1,
		},
		{
			name: "claims-fetch-fails",
			set: func(t *testing.T, e *testEnv) {
				e.tp.SetUser(http.StatusInternalServerError, nil)
			},
			wantState:    StateClaimsFetched,
			wantMessages: []string{"unable to fetch claims: Request_ResourceNotFound: Resource does not exist."},
			wantTokenReq: 1,
		},
		{
			name: "claims-timeout",
			set: func(t *testing.T, e *testEnv) {
				require.NoError(t, config.Set(e.settings, config.Timeout, config.Static(200*time.Millisecond)))
				e.tp.SetGraphDelay(2 * time.Second)
			},
			wantState:    StateClaimsFetched,
			wantMessages: []string{"unable to fetch claims: Microsoft Graph did not respond in time"},
			wantTokenReq: 1,
		},
		{
			name: "missing-email-unique-mode",
			set: func(t *testing.T, e *testEnv) {
				require.NoError(t, config.Set(e.settings, config.UniqueEmail, config.Static(true)))
				require.NoError(t, config.Set(e.settings, config.AllowableDomains, config.Static([]string{"*"})))
				user := oidc.TestClaims()
				user["mail"] = ""
				e.tp.SetUser(http.StatusOK, user)
			},
			wantState:    StateUserResolved,
			wantMessages: []string{identity.ErrMissingEmail.Error()},
			wantTokenReq: 1,
		},
		{
			name: "auto-create-disabled-hidden",
			set: func(t *testing.T, e *testEnv) {
				require.NoError(t, config.Set(e.settings, config.AutoCreateUsers, config.Static(false)))
			},
			wantState:    StateUserResolved,
			wantTokenReq: 1,
		},
		{
			name: "auto-create-disabled-shown",
			set: func(t *testing.T, e *testEnv) {
				require.NoError(t, config.Set(e.settings, config.AutoCreateUsers, config.Static(false)))
				require.NoError(t, config.Set(e.settings, config.ShowFailedLoginMessage, config.Static(true)))
			},
			wantState:    StateUserResolved,
			wantMessages: []string{MsgAutoCreateDisabled},
			wantTokenReq: 1,
		},
		{
			name: "inactive-user",
			set: func(t *testing.T, e *testEnv) {
				require.NoError(t, config.Set(e.settings, config.ShowFailedLoginMessage, config.Static(true)))
				require.NoError(t, e.store.Create(context.Background(), &identity.User{
					Username: "kalel@dailyplanet.com",
					Email:    "kalel@dailyplanet.com",
				}))
			},
			wantState:    StateUserResolved,
			wantMessages: []string{MsgUserInactive},
			wantTokenReq: 1,
		},
		{
			name: "messages-disabled",
			set: func(t *testing.T, e *testEnv) {
				require.NoError(t, config.Set(e.settings, config.EnableMessages, config.Static(false)))
				require.NoError(t, config.Set(e.settings, config.Enabled, config.Static(false)))
			},
			wantState: StateEnabledCheck,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			e := newTestEnv(t, nil)
			q, cookies := e.initiate(t, "/secret/")
			if tt.set != nil {
				tt.set(t, e)
			}
			if tt.query != nil {
				q = tt.query(q)
			}
			if tt.dropCookies {
				cookies = nil
			}
			usersBefore, _ := e.store.Len()

			resp := e.callback(t, q, cookies)
			require.Equal(http.StatusFound, resp.StatusCode)
			assert.Equal(testFailedURL, resp.Header.Get("Location"))

			sess := e.session(t, resp)
			got := texts(sess.Messages())
			if len(tt.wantMessages) == 0 {
				assert.Empty(got)
			} else {
				assert.Equal(tt.wantMessages, got)
			}
			_, loggedIn := hooks.LoggedInUserID(sess)
			assert.False(loggedIn)
			users, _ := e.store.Len()
			assert.Equal(usersBefore, users)
			assert.Equal(tt.wantTokenReq, e.tp.TokenRequests())
			assert.Equal(float64(1), e.count(t, tt.wantState, ResultFailure))
		})
	}
}

func TestHandler_replay(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	e := newTestEnv(t, nil)
	q, cookies := e.initiate(t, "/secret/")
	first := e.callback(t, q, cookies)
	require.Equal(http.StatusFound, first.StatusCode)
	require.Equal("/secret/", first.Header.Get("Location"))

	replay := e.callback(t, q, first.Cookies())
	require.Equal(http.StatusFound, replay.StatusCode)
	assert.Equal(testFailedURL, replay.Header.Get("Location"))
	assert.Contains(texts(e.session(t, replay).Messages()), MsgStateMismatch)
	assert.Equal(1, e.tp.TokenRequests())
	assert.Equal(float64(1), e.count(t, StateStateValidated, ResultFailure))
}

func TestHandler_backendResolution(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	e := newTestEnv(t, func(s *config.Settings) {
		require.NoError(config.Set(s, config.AuthenticationBackend, config.Static("app.missing_backend")))
	})
	q, cookies := e.initiate(t, "/secret/")
	resp := e.callback(t, q, cookies)
	assert.Equal(http.StatusInternalServerError, resp.StatusCode)
	assert.Empty(resp.Header.Get("Location"))
	_, loggedIn := hooks.LoggedInUserID(e.session(t, resp))
	assert.False(loggedIn)
	assert.Equal(float64(1), e.count(t, StateLoggedIn, ResultError))
}

func TestHandler_adminPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		next     string
		admin    bool
		pages    bool
		wantNext string
	}{
		{name: "admin-enabled", next: "/admin/users/", admin: true, pages: false, wantNext: "/admin/users/"},
		{name: "admin-disabled", next: "/admin/users/", admin: false, pages: true, wantNext: testFailedURL},
		{name: "pages-enabled", next: "/secret/", admin: false, pages: true, wantNext: "/secret/"},
		{name: "pages-disabled", next: "/secret/", admin: true, pages: false, wantNext: testFailedURL},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require := require.New(t)
			e := newTestEnv(t, func(s *config.Settings) {
				require.NoError(config.Set(s, config.AdminEnabled, config.Static(tt.admin)))
				require.NoError(config.Set(s, config.PagesEnabled, config.Static(tt.pages)))
			})
			q, cookies := e.initiate(t, tt.next)
			resp := e.callback(t, q, cookies)
			require.Equal(http.StatusFound, resp.StatusCode)
			assert.Equal(t, tt.wantNext, resp.Header.Get("Location"))
		})
	}
}

func TestHandler_computedSettings(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	e := newTestEnv(t, func(s *config.Settings) {
		require.NoError(config.Set(s, config.NextURL, config.Computed[string](func(r *http.Request) string {
			return "/" + r.Host + "/"
		})))
	})
	q, cookies := e.initiate(t, "")
	resp := e.callback(t, q, cookies)
	require.Equal(http.StatusFound, resp.StatusCode)
	assert.Equal("/site.com/", resp.Header.Get("Location"))
}
