// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-uuid"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of the go-redis client used by RedisStore.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewRedisClient connects to the redis server at redisURL and checks the
// connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	const op = "session.NewRedisClient"
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidParameter, err)
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	return rdb, nil
}

// RedisStore is a sessions.Store keeping session values in redis.  The
// cookie only carries the signed session ID.
type RedisStore struct {
	client     RedisClient
	codecs     []securecookie.Codec
	options    *sessions.Options
	serializer securecookie.Serializer
	keyPrefix  string
	ttl        time.Duration
	logger     hclog.Logger
}

var (
	_ sessions.Store = (*RedisStore)(nil)
	_ Revoker        = (*RedisStore)(nil)
)

// NewRedisStore creates a RedisStore.  keyPairs sign, and optionally
// encrypt, the session ID cookie.  Supported options: WithKeyPrefix,
// WithTTL, WithCookieOptions, WithLogger
func NewRedisStore(client RedisClient, keyPairs [][]byte, opt ...Option) (*RedisStore, error) {
	const op = "session.NewRedisStore"
	switch {
	case client == nil:
		return nil, fmt.Errorf("%s: redis client is nil: %w", op, ErrNilParameter)
	case len(keyPairs) == 0 || len(keyPairs[0]) == 0:
		return nil, fmt.Errorf("%s: missing hash key: %w", op, ErrInvalidParameter)
	}
	opts := redisDefaults()
	ApplyOpts(&opts, opt...)
	return &RedisStore{
		client:     client,
		codecs:     securecookie.CodecsFromPairs(keyPairs...),
		options:    opts.withCookieOptions,
		serializer: securecookie.GobEncoder{},
		keyPrefix:  opts.withKeyPrefix,
		ttl:        opts.withTTL,
		logger:     opts.withLogger,
	}, nil
}

// Get implements sessions.Store
func (s *RedisStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New implements sessions.Store.  It returns a new session when the cookie
// is missing, invalid or names an expired key.
func (s *RedisStore) New(r *http.Request, name string) (*sessions.Session, error) {
	const op = "session.(RedisStore).New"
	sess := sessions.NewSession(s, name)
	opts := *s.options
	sess.Options = &opts
	sess.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return sess, nil
	}
	var id string
	if err := securecookie.DecodeMulti(name, c.Value, &id, s.codecs...); err != nil {
		return sess, fmt.Errorf("%s: %w: %w", op, ErrCodec, err)
	}
	b, err := s.client.Get(r.Context(), s.key(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return sess, nil
	case err != nil:
		return sess, fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	values := map[interface{}]interface{}{}
	if err := s.serializer.Deserialize(b, &values); err != nil {
		return sess, fmt.Errorf("%s: %w: %w", op, ErrCodec, err)
	}
	sess.ID = id
	sess.Values = values
	sess.IsNew = false
	return sess, nil
}

// Save implements sessions.Store.  A negative MaxAge deletes the session.
func (s *RedisStore) Save(r *http.Request, w http.ResponseWriter, sess *sessions.Session) error {
	const op = "session.(RedisStore).Save"
	ctx := r.Context()
	opts := sess.Options
	if opts == nil {
		opts = s.options
	}

	if opts.MaxAge < 0 {
		if sess.ID != "" {
			if err := s.client.Del(ctx, s.key(sess.ID)).Err(); err != nil {
				return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
			}
		}
		http.SetCookie(w, sessions.NewCookie(sess.Name(), "", opts))
		return nil
	}

	if sess.ID == "" {
		id, err := uuid.GenerateUUID()
		if err != nil {
			return fmt.Errorf("%s: unable to generate session id: %w", op, err)
		}
		sess.ID = id
	}
	b, err := s.serializer.Serialize(sess.Values)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrCodec, err)
	}
	ttl := s.ttl
	if opts.MaxAge > 0 {
		ttl = time.Duration(opts.MaxAge) * time.Second
	}
	if err := s.client.Set(ctx, s.key(sess.ID), b, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrCodec, err)
	}
	http.SetCookie(w, sessions.NewCookie(sess.Name(), encoded, opts))
	s.logger.Trace("saved session", "name", sess.Name(), "ttl", ttl)
	return nil
}

// Revoke implements Revoker.  A cookie carrying id no longer loads the
// session.
func (s *RedisStore) Revoke(r *http.Request, id string) error {
	const op = "session.(RedisStore).Revoke"
	if id == "" {
		return nil
	}
	if err := s.client.Del(r.Context(), s.key(id)).Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	s.logger.Trace("revoked session", "key", s.key(id))
	return nil
}

func (s *RedisStore) key(id string) string { return s.keyPrefix + id }
