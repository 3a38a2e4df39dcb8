// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"errors"
	"strings"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrStateMismatch is returned when the callback's state doesn't match a
	// flow state stored in the session.
	ErrStateMismatch = errors.New("state mismatch")

	// ErrDisabled is returned when sign-in is disabled for the request.
	ErrDisabled = errors.New("sso not enabled")
)

// Failure ends a callback in the state whose guard failed.  Messages are
// shown to the user; when Hidden they're only shown if failed login messages
// are enabled.  A Fatal failure is a misconfiguration answered with a 500.
type Failure struct {
	State    State
	Messages []string
	Hidden   bool
	Fatal    bool
	Err      error
}

// Error returns the failure's messages, or its error when there are none.
func (f *Failure) Error() string {
	if len(f.Messages) > 0 {
		return f.State.String() + ": " + strings.Join(f.Messages, " ")
	}
	if f.Err != nil {
		return f.State.String() + ": " + f.Err.Error()
	}
	return f.State.String() + ": failed"
}

// Unwrap returns the underlying error
func (f *Failure) Unwrap() error { return f.Err }
