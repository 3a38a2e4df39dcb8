// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package hooks

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/hashicorp/cap-sso/config"
	"github.com/hashicorp/cap-sso/identity"
	"github.com/hashicorp/cap-sso/oidc"
	"github.com/hashicorp/go-multierror"
)

// PreValidateFunc runs before the user's email is checked.  Returning false
// rejects the login.
type PreValidateFunc func(ctx context.Context, claims *oidc.Claims, r *http.Request) bool

// PreCreateFunc runs before a user is created.  The returned map holds
// creation defaults, see identity.Reconciler.Reconcile.
type PreCreateFunc func(ctx context.Context, claims *oidc.Claims, r *http.Request) map[string]interface{}

// PreLoginFunc runs after the user is resolved and before it's logged in.
type PreLoginFunc func(ctx context.Context, u *identity.User, r *http.Request)

// DefaultPreValidate accepts every user.
func DefaultPreValidate(context.Context, *oidc.Claims, *http.Request) bool { return true }

// DefaultPreCreate returns no defaults.
func DefaultPreCreate(context.Context, *oidc.Claims, *http.Request) map[string]interface{} {
	return map[string]interface{}{}
}

// DefaultPreLogin does nothing.
func DefaultPreLogin(context.Context, *identity.User, *http.Request) {}

// Registry maps configured names to hooks and authentication backends.  It's
// safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	preValidate map[string]PreValidateFunc
	preCreate   map[string]PreCreateFunc
	preLogin    map[string]PreLoginFunc
	backends    map[string]Backend
}

// NewRegistry returns a Registry holding the default hooks under their
// default names, and a SessionBackend under DefaultBackend.
func NewRegistry() *Registry {
	return &Registry{
		preValidate: map[string]PreValidateFunc{config.DefaultPreValidateCallback: DefaultPreValidate},
		preCreate:   map[string]PreCreateFunc{config.DefaultPreCreateCallback: DefaultPreCreate},
		preLogin:    map[string]PreLoginFunc{config.DefaultPreLoginCallback: DefaultPreLogin},
		backends:    map[string]Backend{DefaultBackend: NewSessionBackend(DefaultBackend)},
	}
}

// RegisterPreValidate registers fn under name, replacing any previous hook.
func (reg *Registry) RegisterPreValidate(name string, fn PreValidateFunc) error {
	const op = "hooks.(Registry).RegisterPreValidate"
	if err := checkRegistration(name, fn == nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.preValidate[name] = fn
	return nil
}

// RegisterPreCreate registers fn under name, replacing any previous hook.
func (reg *Registry) RegisterPreCreate(name string, fn PreCreateFunc) error {
	const op = "hooks.(Registry).RegisterPreCreate"
	if err := checkRegistration(name, fn == nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.preCreate[name] = fn
	return nil
}

// RegisterPreLogin registers fn under name, replacing any previous hook.
func (reg *Registry) RegisterPreLogin(name string, fn PreLoginFunc) error {
	const op = "hooks.(Registry).RegisterPreLogin"
	if err := checkRegistration(name, fn == nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.preLogin[name] = fn
	return nil
}

// RegisterBackend registers b under name, replacing any previous backend.
func (reg *Registry) RegisterBackend(name string, b Backend) error {
	const op = "hooks.(Registry).RegisterBackend"
	if err := checkRegistration(name, b == nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.backends[name] = b
	return nil
}

func checkRegistration(name string, isNil bool) error {
	switch {
	case name == "":
		return fmt.Errorf("missing name: %w", ErrInvalidParameter)
	case isNil:
		return fmt.Errorf("%q is nil: %w", name, ErrNilParameter)
	}
	return nil
}

// PreValidate returns the pre-validate hook registered under name
func (reg *Registry) PreValidate(name string) (PreValidateFunc, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	fn, ok := reg.preValidate[name]
	if !ok {
		return nil, fmt.Errorf("hooks.(Registry).PreValidate: %q: %w", name, ErrHookNotFound)
	}
	return fn, nil
}

// PreCreate returns the pre-create hook registered under name
func (reg *Registry) PreCreate(name string) (PreCreateFunc, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	fn, ok := reg.preCreate[name]
	if !ok {
		return nil, fmt.Errorf("hooks.(Registry).PreCreate: %q: %w", name, ErrHookNotFound)
	}
	return fn, nil
}

// PreLogin returns the pre-login hook registered under name
func (reg *Registry) PreLogin(name string) (PreLoginFunc, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	fn, ok := reg.preLogin[name]
	if !ok {
		return nil, fmt.Errorf("hooks.(Registry).PreLogin: %q: %w", name, ErrHookNotFound)
	}
	return fn, nil
}

// Backend returns the backend registered under name.  An empty name is
// DefaultBackend.
func (reg *Registry) Backend(name string) (Backend, error) {
	if name == "" {
		name = DefaultBackend
	}
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	b, ok := reg.backends[name]
	if !ok {
		return nil, fmt.Errorf("hooks.(Registry).Backend: %q: %w", name, ErrBackendResolution)
	}
	return b, nil
}

// Validate checks that every name is registered as a hook of some kind.
// All missing names are reported together.
func (reg *Registry) Validate(names ...string) error {
	const op = "hooks.(Registry).Validate"
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	var result *multierror.Error
	for _, n := range names {
		_, v := reg.preValidate[n]
		_, c := reg.preCreate[n]
		_, l := reg.preLogin[n]
		if !v && !c && !l {
			result = multierror.Append(result, fmt.Errorf("%q: %w", n, ErrHookNotFound))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ValidateSettings checks the hook and backend names held by s.  Names
// computed per request are checked when they're resolved.
func (reg *Registry) ValidateSettings(s *config.Settings) error {
	const op = "hooks.(Registry).ValidateSettings"
	if s == nil {
		return fmt.Errorf("%s: settings are nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	lookups := []struct {
		setting config.Name
		lookup  func(string) error
	}{
		{config.PreValidateCallback, func(n string) error { _, err := reg.PreValidate(n); return err }},
		{config.PreCreateCallback, func(n string) error { _, err := reg.PreCreate(n); return err }},
		{config.PreLoginCallback, func(n string) error { _, err := reg.PreLogin(n); return err }},
		{config.AuthenticationBackend, func(n string) error { _, err := reg.Backend(n); return err }},
	}
	for _, l := range lookups {
		if s.IsComputed(l.setting) {
			continue
		}
		name, err := s.String(l.setting, nil)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := l.lookup(name); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", l.setting, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Names returns the registered hook names of every kind, sorted.
func (reg *Registry) Names() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	seen := map[string]struct{}{}
	for n := range reg.preValidate {
		seen[n] = struct{}{}
	}
	for n := range reg.preCreate {
		seen[n] = struct{}{}
	}
	for n := range reg.preLogin {
		seen[n] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
