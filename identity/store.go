// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package identity

import "context"

// UserStore is the host's account store.  Lookups by email, username and
// principal name are case-insensitive and return ErrNotFound when nothing
// matches.  Implementations must be safe for concurrent use.
type UserStore interface {
	Get(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)

	// Create assigns the user's ID.
	Create(ctx context.Context, u *User) error
	Save(ctx context.Context, u *User) error

	// SuperuserExists reports whether any user in the store is a superuser.
	SuperuserExists(ctx context.Context) (bool, error)

	FindLink(ctx context.Context, principalName string) (*Link, error)
	GetLink(ctx context.Context, userID int64) (*Link, error)

	// UpsertLink creates or replaces the link of l.UserID.
	UpsertLink(ctx context.Context, l *Link) error
}

const (
	DefaultUsernameField = "username"
	DefaultEmailField    = "email"
)

// UserFieldMapping names the host's username and email fields.  Stores use
// it to build their queries, and creation defaults are matched against it.
type UserFieldMapping struct {
	UsernameField string
	EmailField    string
}

// DefaultFieldMapping returns the mapping for hosts using the default field
// names.
func DefaultFieldMapping() UserFieldMapping {
	return UserFieldMapping{UsernameField: DefaultUsernameField, EmailField: DefaultEmailField}
}

// Username returns the username field name
func (m UserFieldMapping) Username() string {
	if m.UsernameField == "" {
		return DefaultUsernameField
	}
	return m.UsernameField
}

// Email returns the email field name
func (m UserFieldMapping) Email() string {
	if m.EmailField == "" {
		return DefaultEmailField
	}
	return m.EmailField
}
