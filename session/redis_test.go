// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = value.([]byte)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestNewRedisStore(t *testing.T) {
	tests := []struct {
		name      string
		client    RedisClient
		keyPairs  [][]byte
		wantErrIs error
	}{
		{name: "nil-client", keyPairs: [][]byte{testHashKey}, wantErrIs: ErrNilParameter},
		{name: "no-keys", client: newFakeRedis(), wantErrIs: ErrInvalidParameter},
		{name: "empty-key", client: newFakeRedis(), keyPairs: [][]byte{{}}, wantErrIs: ErrInvalidParameter},
		{name: "valid", client: newFakeRedis(), keyPairs: [][]byte{testHashKey}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			s, err := NewRedisStore(tc.client, tc.keyPairs)
			if tc.wantErrIs != nil {
				require.Error(err)
				assert.ErrorIs(err, tc.wantErrIs)
				return
			}
			require.NoError(err)
			assert.NotNil(s)
		})
	}
}

func TestRedisStore(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	fake := newFakeRedis()
	store, err := NewRedisStore(fake, [][]byte{testHashKey}, WithKeyPrefix("test:"), WithTTL(time.Hour))
	require.NoError(err)
	m, err := NewManager(store)
	require.NoError(err)

	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/login/", nil))
	require.NoError(err)
	assert.True(sess.IsNew())
	sess.SetNextURL("/secret/")
	sess.AddMessage(LevelInfo, "hello")
	sess.SetExpiry(0)

	r := roundTrip(t, sess, "/callback/")
	require.Len(fake.data, 1)
	for k := range fake.data {
		assert.True(strings.HasPrefix(k, "test:"))
		assert.Equal(time.Hour, fake.ttls[k], "browser-session cookies use the store ttl")
	}

	sess, err = m.Load(r)
	require.NoError(err)
	assert.False(sess.IsNew())
	assert.Equal("/secret/", sess.NextURL())
	assert.Equal([]Message{{Level: LevelInfo, Text: "hello"}}, sess.Messages())

	sess.SetExpiry(30 * time.Minute)
	r = roundTrip(t, sess, "/")
	for k := range fake.data {
		assert.Equal(30*time.Minute, fake.ttls[k])
	}

	sess, err = m.Load(r)
	require.NoError(err)
	sess.SetExpiry(-1)
	rec := httptest.NewRecorder()
	require.NoError(sess.Save(rec))
	assert.Empty(fake.data)
	cookies := rec.Result().Cookies()
	require.Len(cookies, 1)
	assert.True(cookies[0].MaxAge < 0)
}

func TestRedisStore_expiredKey(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	fake := newFakeRedis()
	store, err := NewRedisStore(fake, [][]byte{testHashKey})
	require.NoError(err)
	m, err := NewManager(store)
	require.NoError(err)

	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	sess.SetNextURL("/secret/")
	r := roundTrip(t, sess, "/")
	for k := range fake.data {
		delete(fake.data, k)
	}

	sess, err = m.Load(r)
	require.NoError(err)
	assert.True(sess.IsNew())
	assert.Empty(sess.NextURL())
}

func TestRedisStore_rotateRevokesOldID(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	fake := newFakeRedis()
	store, err := NewRedisStore(fake, [][]byte{testHashKey})
	require.NoError(err)
	m, err := NewManager(store)
	require.NoError(err)

	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	sess.Set(UserIDKey, "7")
	loggedIn := roundTrip(t, sess, "/")
	replay := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range loggedIn.Cookies() {
			r.AddCookie(c)
		}
		return r
	}

	sess, err = m.Load(replay())
	require.NoError(err)
	assert.Equal("7", sess.GetString(UserIDKey))
	sess.Clear()
	sess.Rotate()
	loggedOut := roundTrip(t, sess, "/")
	assert.Len(fake.data, 1)

	sess, err = m.Load(replay())
	require.NoError(err)
	assert.True(sess.IsNew())
	assert.Empty(sess.GetString(UserIDKey))

	sess, err = m.Load(loggedOut)
	require.NoError(err)
	assert.False(sess.IsNew())
	assert.Empty(sess.GetString(UserIDKey))
}

func TestRedisStore_saveError(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	fake := newFakeRedis()
	fake.setErr = errors.New("connection refused")
	store, err := NewRedisStore(fake, [][]byte{testHashKey})
	require.NoError(err)
	m, err := NewManager(store)
	require.NoError(err)
	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	err = sess.Save(httptest.NewRecorder())
	require.Error(err)
	assert.ErrorIs(err, ErrStore)
}

func TestRedisStore_server(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, redisURL)
	require.NoError(err)
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := NewRedisStore(rdb, [][]byte{testHashKey}, WithKeyPrefix("cap-sso-test:"))
	require.NoError(err)
	m, err := NewManager(store)
	require.NoError(err)
	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	sess.SetAccessToken("token")
	sess, err = m.Load(roundTrip(t, sess, "/"))
	require.NoError(err)
	assert.Equal("token", sess.AccessToken())
	sess.SetExpiry(-1)
	require.NoError(sess.Save(httptest.NewRecorder()))
}

func TestNewRedisClient_badURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-redis-url")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
