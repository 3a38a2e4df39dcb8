// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package identity

import (
	"fmt"
	"time"
)

// User is a local user account.
type User struct {
	ID          int64
	Username    string
	Email       string
	FirstName   string
	LastName    string
	IsActive    bool
	IsStaff     bool
	IsSuperuser bool

	// HasPassword is false for accounts that can only sign in through SSO
	HasPassword bool

	DateJoined time.Time

	// Extra holds creation defaults with no matching field
	Extra map[string]interface{}
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.Extra != nil {
		cp.Extra = make(map[string]interface{}, len(u.Extra))
		for k, v := range u.Extra {
			cp.Extra[k] = v
		}
	}
	return &cp
}

// String returns the user's username
func (u *User) String() string {
	if u == nil {
		return ""
	}
	return u.Username
}

// sameFields reports whether the typed fields of a and b are equal.
func sameFields(a, b *User) bool {
	return a.Username == b.Username &&
		a.Email == b.Email &&
		a.FirstName == b.FirstName &&
		a.LastName == b.LastName &&
		a.IsActive == b.IsActive &&
		a.IsStaff == b.IsStaff &&
		a.IsSuperuser == b.IsSuperuser &&
		a.HasPassword == b.HasPassword
}

// applyDefaults sets the fields named in defaults; unknown keys are kept in
// Extra.
func (u *User) applyDefaults(m UserFieldMapping, defaults map[string]interface{}) error {
	for k, v := range defaults {
		var err error
		switch k {
		case m.Username():
			u.Username, err = asString(k, v)
		case m.Email():
			u.Email, err = asString(k, v)
		case "first_name":
			u.FirstName, err = asString(k, v)
		case "last_name":
			u.LastName, err = asString(k, v)
		case "is_active":
			u.IsActive, err = asBool(k, v)
		case "is_staff":
			u.IsStaff, err = asBool(k, v)
		case "is_superuser":
			u.IsSuperuser, err = asBool(k, v)
		default:
			if u.Extra == nil {
				u.Extra = map[string]interface{}{}
			}
			u.Extra[k] = v
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func asString(k string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("default %q is %T, not a string: %w", k, v, ErrInvalidParameter)
	}
	return s, nil
}

func asBool(k string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("default %q is %T, not a bool: %w", k, v, ErrInvalidParameter)
	}
	return b, nil
}

// Link associates a local user with the Microsoft identity it signs in with,
// plus a snapshot of the profile.  There is at most one link per user.
type Link struct {
	UserID        int64
	ProviderID    string
	PrincipalName string
	Picture       []byte
	Locale        string
}

// Clone returns a deep copy of the link.
func (l *Link) Clone() *Link {
	if l == nil {
		return nil
	}
	cp := *l
	if l.Picture != nil {
		cp.Picture = append([]byte(nil), l.Picture...)
	}
	return &cp
}
