// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Name is the name of a setting.
type Name string

const (
	Enabled                  Name = "MICROSOFT_SSO_ENABLED"
	AdminEnabled             Name = "MICROSOFT_SSO_ADMIN_ENABLED"
	PagesEnabled             Name = "MICROSOFT_SSO_PAGES_ENABLED"
	AdminPath                Name = "MICROSOFT_SSO_ADMIN_PATH"
	ApplicationID            Name = "MICROSOFT_SSO_APPLICATION_ID"
	ClientSecret             Name = "MICROSOFT_SSO_CLIENT_SECRET"
	Authority                Name = "MICROSOFT_SSO_AUTHORITY"
	Scopes                   Name = "MICROSOFT_SSO_SCOPES"
	Timeout                  Name = "MICROSOFT_SSO_TIMEOUT"
	AllowableDomains         Name = "MICROSOFT_SSO_ALLOWABLE_DOMAINS"
	AutoCreateUsers          Name = "MICROSOFT_SSO_AUTO_CREATE_USERS"
	AlwaysUpdateUserData     Name = "MICROSOFT_SSO_ALWAYS_UPDATE_USER_DATA"
	UniqueEmail              Name = "MICROSOFT_SSO_UNIQUE_EMAIL"
	StaffList                Name = "MICROSOFT_SSO_STAFF_LIST"
	SuperuserList            Name = "MICROSOFT_SSO_SUPERUSER_LIST"
	AutoCreateFirstSuperuser Name = "MICROSOFT_SSO_AUTO_CREATE_FIRST_SUPERUSER"
	SaveAccessToken          Name = "MICROSOFT_SSO_SAVE_ACCESS_TOKEN"
	SaveBasicInfo            Name = "MICROSOFT_SSO_SAVE_BASIC_MICROSOFT_INFO"
	AuthenticationBackend    Name = "MICROSOFT_SSO_AUTHENTICATION_BACKEND"
	PreValidateCallback      Name = "MICROSOFT_SSO_PRE_VALIDATE_CALLBACK"
	PreCreateCallback        Name = "MICROSOFT_SSO_PRE_CREATE_CALLBACK"
	PreLoginCallback         Name = "MICROSOFT_SSO_PRE_LOGIN_CALLBACK"
	CallbackDomain           Name = "MICROSOFT_SSO_CALLBACK_DOMAIN"
	NextURL                  Name = "MICROSOFT_SSO_NEXT_URL"
	LoginFailedURL           Name = "MICROSOFT_SSO_LOGIN_FAILED_URL"
	LogoutRedirectPath       Name = "MICROSOFT_SSO_LOGOUT_REDIRECT_PATH"
	SLOEnabled               Name = "MICROSOFT_SLO_ENABLED"
	Text                     Name = "MICROSOFT_SSO_TEXT"
	LogoURL                  Name = "MICROSOFT_SSO_LOGO_URL"
	SessionCookieAge         Name = "MICROSOFT_SSO_SESSION_COOKIE_AGE"
	EnableLogs               Name = "MICROSOFT_SSO_ENABLE_LOGS"
	EnableMessages           Name = "MICROSOFT_SSO_ENABLE_MESSAGES"
	ShowFailedLoginMessage   Name = "MICROSOFT_SSO_SHOW_FAILED_LOGIN_MESSAGE"
)

// Default hook names. They are registered by the hooks package.
const (
	DefaultPreValidateCallback = "hooks.pre_validate_user"
	DefaultPreCreateCallback   = "hooks.pre_create_user"
	DefaultPreLoginCallback    = "hooks.pre_login_user"
)

// DefaultLogoURL is the logo shown on the login button
const DefaultLogoURL = "https://purepng.com/public/uploads/large/purepng.com-microsoft-logo-iconlogobrand-logoiconslogos-251519939091wmudn.png"

type declaration struct {
	// def is always a Value[T] and defines the setting's type
	def        interface{}
	staticOnly bool
}

var declarations = map[Name]declaration{
	Enabled:                  {def: Static(true), staticOnly: true},
	AdminEnabled:             {def: Static(true)},
	PagesEnabled:             {def: Static(true)},
	AdminPath:                {def: Static("/admin/")},
	ApplicationID:            {def: Static("")},
	ClientSecret:             {def: Static("")},
	Authority:                {def: Static[interface{}](nil)},
	Scopes:                   {def: Static([]string{"User.ReadBasic.All"})},
	Timeout:                  {def: Static(10 * time.Second)},
	AllowableDomains:         {def: Static([]string{})},
	AutoCreateUsers:          {def: Static(true)},
	AlwaysUpdateUserData:     {def: Static(false)},
	UniqueEmail:              {def: Static(false)},
	StaffList:                {def: Static([]string{})},
	SuperuserList:            {def: Static([]string{})},
	AutoCreateFirstSuperuser: {def: Static(false)},
	SaveAccessToken:          {def: Static(false)},
	SaveBasicInfo:            {def: Static(true)},
	AuthenticationBackend:    {def: Static("")},
	PreValidateCallback:      {def: Static(DefaultPreValidateCallback)},
	PreCreateCallback:        {def: Static(DefaultPreCreateCallback)},
	PreLoginCallback:         {def: Static(DefaultPreLoginCallback)},
	CallbackDomain:           {def: Static("")},
	NextURL:                  {def: Static("/admin/")},
	LoginFailedURL:           {def: Static("/admin/")},
	LogoutRedirectPath:       {def: Static("/admin/")},
	SLOEnabled:               {def: Static(false)},
	Text:                     {def: Static("Sign in with Microsoft")},
	LogoURL:                  {def: Static(DefaultLogoURL)},
	SessionCookieAge:         {def: Static(3600 * time.Second)},
	EnableLogs:               {def: Static(true), staticOnly: true},
	EnableMessages:           {def: Static(true)},
	ShowFailedLoginMessage:   {def: Static(false)},
}

// Names returns every declared setting name, sorted.
func Names() []Name {
	names := make([]Name, 0, len(declarations))
	for n := range declarations {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// IsStaticOnly reports whether the named setting must never be Computed.
func IsStaticOnly(n Name) bool {
	return declarations[n].staticOnly
}

// Settings holds the configured value of every setting.  Unset settings
// resolve to their declared default.  Settings is safe for concurrent use.
type Settings struct {
	mu     sync.RWMutex
	values map[Name]interface{}
}

// NewSettings returns Settings holding the declared defaults.  It applies the
// EnableLogs setting to the process logger.
func NewSettings() *Settings {
	s := &Settings{values: map[Name]interface{}{}}
	s.applyLogSwitch()
	return s
}

// Set stores v for the named setting.  It returns a *ConfigTypeError when T
// is not the declared type of the setting.  Storing a Computed value for a
// static-only setting is allowed, but resolving it will fail.
func Set[T any](s *Settings, n Name, v Value[T]) error {
	const op = "config.Set"
	if s == nil {
		return fmt.Errorf("%s: settings are nil: %w", op, ErrNilParameter)
	}
	d, ok := declarations[n]
	if !ok {
		return fmt.Errorf("%s: unknown setting %q: %w", op, n, ErrInvalidParameter)
	}
	if _, ok := d.def.(Value[T]); !ok {
		return fmt.Errorf("%s: %w", op, &ConfigTypeError{Name: n, Reason: fmt.Sprintf("expected %s, got %T", typeName(d.def), v)})
	}
	s.mu.Lock()
	s.values[n] = v
	s.mu.Unlock()
	if n == EnableLogs && !v.IsComputed() {
		s.applyLogSwitch()
	}
	return nil
}

// Resolve returns the value of the named setting for the request.  Computed
// values are invoked with r on every call.
func Resolve[T any](s *Settings, n Name, r *http.Request) (T, error) {
	const op = "config.Resolve"
	var zero T
	if s == nil {
		return zero, fmt.Errorf("%s: settings are nil: %w", op, ErrNilParameter)
	}
	d, ok := declarations[n]
	if !ok {
		return zero, fmt.Errorf("%s: unknown setting %q: %w", op, n, ErrInvalidParameter)
	}
	raw := s.raw(n, d)
	v, ok := raw.(Value[T])
	if !ok {
		return zero, fmt.Errorf("%s: %w", op, &ConfigTypeError{Name: n, Reason: fmt.Sprintf("cannot resolve %s as %T", typeName(d.def), zero)})
	}
	if d.staticOnly && v.IsComputed() {
		return zero, fmt.Errorf("%s: %w", op, &ConfigTypeError{Name: n, Reason: "setting cannot be a function of the request"})
	}
	result := v.Get(r)
	if n == EnableLogs {
		if enabled, ok := any(result).(bool); ok {
			SetLogsEnabled(enabled)
		}
	}
	return result, nil
}

func (s *Settings) raw(n Name, d declaration) interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[n]; ok {
		return v
	}
	return d.def
}

// IsComputed reports whether the named setting holds a Computed value.
func (s *Settings) IsComputed(n Name) bool {
	d, ok := declarations[n]
	if !ok || s == nil {
		return false
	}
	return isComputed(s.raw(n, d))
}

func (s *Settings) applyLogSwitch() {
	_, _ = s.Bool(EnableLogs, nil)
}

// Bool resolves a bool setting.
func (s *Settings) Bool(n Name, r *http.Request) (bool, error) { return Resolve[bool](s, n, r) }

// String resolves a string setting.
func (s *Settings) String(n Name, r *http.Request) (string, error) { return Resolve[string](s, n, r) }

// Strings resolves a []string setting.
func (s *Settings) Strings(n Name, r *http.Request) ([]string, error) {
	return Resolve[[]string](s, n, r)
}

// Duration resolves a time.Duration setting.
func (s *Settings) Duration(n Name, r *http.Request) (time.Duration, error) {
	return Resolve[time.Duration](s, n, r)
}

// Any resolves a setting declared as interface{} (the authority).
func (s *Settings) Any(n Name, r *http.Request) (interface{}, error) {
	return Resolve[interface{}](s, n, r)
}

// Validate checks the settings which can be checked without a request.  All
// problems are returned together.  Computed values are not evaluated.
func (s *Settings) Validate() error {
	const op = "config.(Settings).Validate"
	if s == nil {
		return fmt.Errorf("%s: settings are nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	for _, n := range Names() {
		d := declarations[n]
		if d.staticOnly && isComputed(s.raw(n, d)) {
			result = multierror.Append(result, &ConfigTypeError{Name: n, Reason: "setting cannot be a function of the request"})
		}
	}
	for _, n := range []Name{ApplicationID, ClientSecret} {
		if v, ok := s.raw(n, declarations[n]).(Value[string]); ok && !v.IsComputed() && v.Get(nil) == "" {
			result = multierror.Append(result, &ConfigValueError{Name: n, Value: "", Reason: "must not be empty"})
		}
	}
	for _, n := range []Name{Timeout, SessionCookieAge} {
		if v, ok := s.raw(n, declarations[n]).(Value[time.Duration]); ok && !v.IsComputed() && v.Get(nil) <= 0 {
			result = multierror.Append(result, &ConfigValueError{Name: n, Value: v.Get(nil), Reason: "must be greater than zero"})
		}
	}
	if v, ok := s.raw(Authority, declarations[Authority]).(Value[interface{}]); ok && !v.IsComputed() {
		if str, ok := v.Get(nil).(string); ok {
			if u, err := url.Parse(str); err != nil || u.Scheme == "" || u.Host == "" {
				result = multierror.Append(result, &ConfigValueError{Name: Authority, Value: str, Reason: "must be an absolute URL"})
			}
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type computedChecker interface{ IsComputed() bool }

func isComputed(v interface{}) bool {
	c, ok := v.(computedChecker)
	return ok && c.IsComputed()
}

func typeName(def interface{}) string {
	switch def.(type) {
	case Value[bool]:
		return "bool"
	case Value[string]:
		return "string"
	case Value[[]string]:
		return "[]string"
	case Value[time.Duration]:
		return "time.Duration"
	case Value[interface{}]:
		return "interface{}"
	default:
		return fmt.Sprintf("%T", def)
	}
}
