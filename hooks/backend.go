// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package hooks

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hashicorp/cap-sso/identity"
	"github.com/hashicorp/cap-sso/session"
)

// DefaultBackend is the name SessionBackend is registered under.
const DefaultBackend = "session"

// Backend establishes and ends the host's login session for a user.
type Backend interface {
	Login(ctx context.Context, sess *session.Session, u *identity.User) error
	Logout(ctx context.Context, sess *session.Session) error
}

// SessionBackend records the logged in user in the session.
type SessionBackend struct {
	name string
}

var _ Backend = (*SessionBackend)(nil)

// NewSessionBackend creates a SessionBackend which records name as the
// backend of the users it logs in.
func NewSessionBackend(name string) *SessionBackend {
	if name == "" {
		name = DefaultBackend
	}
	return &SessionBackend{name: name}
}

// Login implements Backend.  The session gets a new ID.  When another user
// was logged in to it, its values are flushed first, keeping the flash
// messages raised while signing in.
func (b *SessionBackend) Login(_ context.Context, sess *session.Session, u *identity.User) error {
	const op = "hooks.(SessionBackend).Login"
	switch {
	case sess == nil:
		return fmt.Errorf("%s: session is nil: %w", op, ErrNilParameter)
	case u == nil:
		return fmt.Errorf("%s: user is nil: %w", op, ErrNilParameter)
	case u.ID == 0:
		return fmt.Errorf("%s: user has no id: %w", op, ErrInvalidParameter)
	case !u.IsActive:
		return fmt.Errorf("%s: %w", op, identity.ErrUserInactive)
	}
	if prev, ok := LoggedInUserID(sess); ok && prev != u.ID {
		sess.Flush()
	}
	sess.Rotate()
	sess.Set(session.UserIDKey, strconv.FormatInt(u.ID, 10))
	sess.Set(session.BackendKey, b.name)
	return nil
}

// Logout implements Backend.  Every session value is removed.
func (b *SessionBackend) Logout(_ context.Context, sess *session.Session) error {
	const op = "hooks.(SessionBackend).Logout"
	if sess == nil {
		return fmt.Errorf("%s: session is nil: %w", op, ErrNilParameter)
	}
	sess.Clear()
	sess.Rotate()
	return nil
}

// LoggedInUserID returns the ID of the user logged in to the session
func LoggedInUserID(sess *session.Session) (int64, bool) {
	if sess == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(sess.GetString(session.UserIDKey), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
