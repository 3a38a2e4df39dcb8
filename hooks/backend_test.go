// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package hooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/cap-sso/identity"
	"github.com/hashicorp/cap-sso/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(t *testing.T) *session.Session {
	t.Helper()
	m, err := session.NewManager(session.NewCookieStore([]byte("0123456789abcdef0123456789abcdef")))
	require.NoError(t, err)
	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	return sess
}

func TestSessionBackend_Login(t *testing.T) {
	active := &identity.User{ID: 7, Username: "kalel@dailyplanet.com", IsActive: true}
	tests := []struct {
		name      string
		sess      bool
		user      *identity.User
		wantErrIs error
	}{
		{name: "nil-session", user: active, wantErrIs: ErrNilParameter},
		{name: "nil-user", sess: true, wantErrIs: ErrNilParameter},
		{name: "no-id", sess: true, user: &identity.User{IsActive: true}, wantErrIs: ErrInvalidParameter},
		{name: "inactive", sess: true, user: &identity.User{ID: 7}, wantErrIs: identity.ErrUserInactive},
		{name: "valid", sess: true, user: active},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			var sess *session.Session
			if tc.sess {
				sess = testSession(t)
			}
			err := NewSessionBackend("").Login(context.Background(), sess, tc.user)
			if tc.wantErrIs != nil {
				require.Error(err)
				assert.ErrorIs(err, tc.wantErrIs)
				return
			}
			require.NoError(err)
			id, ok := LoggedInUserID(sess)
			assert.True(ok)
			assert.Equal(int64(7), id)
			assert.Equal(DefaultBackend, sess.GetString(session.BackendKey))
		})
	}
}

func TestSessionBackend_switchUser(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	b := NewSessionBackend("app.backend")
	sess := testSession(t)
	sess.AddMessage(session.LevelInfo, "Added Staff Permission.")
	require.NoError(b.Login(ctx, sess, &identity.User{ID: 1, IsActive: true}))
	sess.SetAccessToken("token-of-1")
	sess.Set("cart", "cart-of-1")

	// the same user keeps the session's values
	require.NoError(b.Login(ctx, sess, &identity.User{ID: 1, IsActive: true}))
	assert.Equal("token-of-1", sess.AccessToken())
	assert.Equal("cart-of-1", sess.GetString("cart"))

	sess.AddMessage(session.LevelInfo, "Added SuperUser Permission.")
	require.NoError(b.Login(ctx, sess, &identity.User{ID: 2, IsActive: true}))

	id, ok := LoggedInUserID(sess)
	assert.True(ok)
	assert.Equal(int64(2), id)
	assert.Equal("app.backend", sess.GetString(session.BackendKey))
	assert.Empty(sess.AccessToken())
	assert.Empty(sess.GetString("cart"))
	assert.Len(sess.Messages(), 2)
}

func TestSessionBackend_Logout(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	b := NewSessionBackend("")
	assert.ErrorIs(b.Logout(ctx, nil), ErrNilParameter)

	sess := testSession(t)
	require.NoError(b.Login(ctx, sess, &identity.User{ID: 1, IsActive: true}))
	require.NoError(b.Logout(ctx, sess))
	_, ok := LoggedInUserID(sess)
	assert.False(ok)
	_, ok = LoggedInUserID(nil)
	assert.False(ok)
}
