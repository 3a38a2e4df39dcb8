// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://site.com/", nil)
	tests := []struct {
		name      string
		setting   Name
		value     interface{}
		want      interface{}
		wantErr   bool
		wantErrIs error
	}{
		{
			name:    "default",
			setting: Text,
			want:    "Sign in with Microsoft",
		},
		{
			name:    "static",
			setting: Text,
			value:   Static("static_value"),
			want:    "static_value",
		},
		{
			name:    "computed",
			setting: Text,
			value:   Computed(func(*http.Request) string { return "dynamic_value" }),
			want:    "dynamic_value",
		},
		{
			name:    "static-only-with-static",
			setting: Enabled,
			value:   Static(true),
			want:    true,
		},
		{
			name:      "static-only-with-computed",
			setting:   Enabled,
			value:     Computed(func(*http.Request) bool { return true }),
			wantErr:   true,
			wantErrIs: ErrConfigType,
		},
		{
			name:      "enable-logs-with-computed",
			setting:   EnableLogs,
			value:     Computed(func(*http.Request) bool { return true }),
			wantErr:   true,
			wantErrIs: ErrConfigType,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			s := NewSettings()
			switch v := tc.value.(type) {
			case Value[string]:
				require.NoError(Set(s, tc.setting, v))
			case Value[bool]:
				require.NoError(Set(s, tc.setting, v))
			}
			var got interface{}
			var err error
			switch tc.setting {
			case Enabled, EnableLogs:
				got, err = s.Bool(tc.setting, req)
			default:
				got, err = s.String(tc.setting, req)
			}
			if tc.wantErr {
				require.Error(err)
				if tc.wantErrIs != nil {
					assert.ErrorIs(err, tc.wantErrIs)
				}
				var typeErr *ConfigTypeError
				assert.True(errors.As(err, &typeErr))
				assert.Equal(tc.setting, typeErr.Name)
				return
			}
			require.NoError(err)
			assert.Equal(tc.want, got)
		})
	}
}

func TestSet(t *testing.T) {
	t.Run("wrong-type", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := NewSettings()
		err := Set(s, Enabled, Static("yes"))
		require.Error(err)
		assert.ErrorIs(err, ErrConfigType)
	})
	t.Run("unknown-setting", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := NewSettings()
		err := Set(s, Name("MICROSOFT_SSO_NOPE"), Static(true))
		require.Error(err)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("nil-settings", func(t *testing.T) {
		assert := assert.New(t)
		assert.ErrorIs(Set[bool](nil, Enabled, Static(true)), ErrNilParameter)
	})
	t.Run("is-computed", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := NewSettings()
		assert.False(s.IsComputed(Text))
		require.NoError(Set(s, Text, Computed(func(*http.Request) string { return "x" })))
		assert.True(s.IsComputed(Text))
		assert.False(s.IsComputed(Name("MICROSOFT_SSO_NOPE")))
	})
	t.Run("resolve-wrong-type", func(t *testing.T) {
		assert := assert.New(t)
		s := NewSettings()
		_, err := s.Bool(Text, nil)
		assert.ErrorIs(err, ErrConfigType)
	})
}

func TestResolve_perRequest(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	s := NewSettings()
	require.NoError(Set(s, SessionCookieAge, Static(1234*time.Second)))
	got, err := s.Duration(SessionCookieAge, nil)
	require.NoError(err)
	assert.Equal(1234*time.Second, got)

	calls := 0
	require.NoError(Set(s, SessionCookieAge, Computed(func(r *http.Request) time.Duration {
		calls++
		if r.Host == "other-site.com" {
			return 86400 * time.Second
		}
		return 1800 * time.Second
	})))

	other := httptest.NewRequest(http.MethodGet, "http://other-site.com/", nil)
	site := httptest.NewRequest(http.MethodGet, "http://site.com/", nil)
	got, err = s.Duration(SessionCookieAge, other)
	require.NoError(err)
	assert.Equal(86400*time.Second, got)
	got, err = s.Duration(SessionCookieAge, site)
	require.NoError(err)
	assert.Equal(1800*time.Second, got)
	got, err = s.Duration(SessionCookieAge, other)
	require.NoError(err)
	assert.Equal(86400*time.Second, got)
	assert.Equal(3, calls, "computed values must never be cached")
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name            string
		setup           func(*Settings)
		wantErr         bool
		wantErrIs       error
		wantErrContains string
	}{
		{
			name: "valid",
			setup: func(s *Settings) {
				_ = Set(s, ApplicationID, Static("app-id"))
				_ = Set(s, ClientSecret, Static("secret"))
			},
		},
		{
			name:            "missing-credentials",
			setup:           func(s *Settings) {},
			wantErr:         true,
			wantErrIs:       ErrConfigValue,
			wantErrContains: string(ApplicationID),
		},
		{
			name: "computed-enabled",
			setup: func(s *Settings) {
				_ = Set(s, ApplicationID, Static("app-id"))
				_ = Set(s, ClientSecret, Static("secret"))
				_ = Set(s, Enabled, Computed(func(*http.Request) bool { return true }))
			},
			wantErr:         true,
			wantErrIs:       ErrConfigType,
			wantErrContains: string(Enabled),
		},
		{
			name: "bad-authority",
			setup: func(s *Settings) {
				_ = Set(s, ApplicationID, Static("app-id"))
				_ = Set(s, ClientSecret, Static("secret"))
				_ = Set(s, Authority, Static[interface{}]("not a url"))
			},
			wantErr:         true,
			wantErrIs:       ErrConfigValue,
			wantErrContains: string(Authority),
		},
		{
			name: "bad-timeout",
			setup: func(s *Settings) {
				_ = Set(s, ApplicationID, Static("app-id"))
				_ = Set(s, ClientSecret, Static("secret"))
				_ = Set(s, Timeout, Static(time.Duration(0)))
			},
			wantErr:         true,
			wantErrIs:       ErrConfigValue,
			wantErrContains: string(Timeout),
		},
		{
			name: "computed-credentials-not-evaluated",
			setup: func(s *Settings) {
				_ = Set(s, ApplicationID, Computed(func(*http.Request) string { return "" }))
				_ = Set(s, ClientSecret, Static("secret"))
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			s := NewSettings()
			tc.setup(s)
			err := s.Validate()
			if tc.wantErr {
				require.Error(err)
				if tc.wantErrIs != nil {
					assert.ErrorIs(err, tc.wantErrIs)
				}
				if tc.wantErrContains != "" {
					assert.Contains(err.Error(), tc.wantErrContains)
				}
				return
			}
			require.NoError(err)
		})
	}
}

func TestSetLogsEnabled(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	t.Cleanup(func() { SetLogsEnabled(true) })

	s := NewSettings()
	require.NoError(Set(s, EnableLogs, Static(false)))
	assert.False(LogsEnabled())
	assert.Equal(hclog.Off, Logger().GetLevel())
	assert.Equal(hclog.Off, Logger().Named("callback").GetLevel())

	// idempotent
	SetLogsEnabled(false)
	assert.False(LogsEnabled())

	require.NoError(Set(s, EnableLogs, Static(true)))
	_, err := s.Bool(EnableLogs, nil)
	require.NoError(err)
	assert.True(LogsEnabled())
	assert.Equal(hclog.Info, Logger().GetLevel())
}

func TestIsAdminPath(t *testing.T) {
	assert := assert.New(t)
	admin := httptest.NewRequest(http.MethodGet, "/admin/login", nil)
	page := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.True(IsAdminPath("/admin/").Get(admin))
	assert.False(IsAdminPath("/admin/").Get(page))
	assert.False(IsPagePath("/admin/").Get(admin))
	assert.True(IsPagePath("/admin/").Get(page))
}
