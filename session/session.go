// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/hashicorp/cap-sso/oidc"
	"github.com/hashicorp/go-hclog"
)

// Keys of the values kept in the session.
const (
	FlowKey        = "sso_flow"
	NextURLKey     = "sso_next_url"
	AccessTokenKey = "microsoft_sso_access_token"
	UserIDKey      = "_auth_user_id"
	BackendKey     = "_auth_user_backend"

	// gorilla's default flash key
	flashesKey = "_flash"
)

// NewCookieStore returns a gorilla CookieStore using DefaultCookieOptions.
// keyPairs are hash and block key pairs, see securecookie.CodecsFromPairs.
// The encoded session must fit securecookie's 4096 byte limit, which an
// Entra access token alone can exceed: saving access tokens needs a server
// side store such as RedisStore.
func NewCookieStore(keyPairs ...[]byte) *sessions.CookieStore {
	cs := sessions.NewCookieStore(keyPairs...)
	cs.Options = DefaultCookieOptions()
	cs.MaxAge(cs.Options.MaxAge)
	return cs
}

// Manager loads sessions from a gorilla sessions.Store.
type Manager struct {
	store  sessions.Store
	name   string
	logger hclog.Logger
}

// NewManager creates a Manager.  Supported options: WithName, WithLogger
func NewManager(store sessions.Store, opt ...Option) (*Manager, error) {
	const op = "session.NewManager"
	if store == nil {
		return nil, fmt.Errorf("%s: store is nil: %w", op, ErrNilParameter)
	}
	opts := managerDefaults()
	ApplyOpts(&opts, opt...)
	return &Manager{
		store:  store,
		name:   opts.withName,
		logger: opts.withLogger,
	}, nil
}

// Name returns the session cookie name
func (m *Manager) Name() string { return m.name }

// ServerSide reports whether session values are kept by the store rather
// than in the cookie.
func (m *Manager) ServerSide() bool {
	_, ok := m.store.(Revoker)
	return ok
}

// Load returns the request's session.  A session that can't be decoded is
// replaced by a new one.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	const op = "session.(Manager).Load"
	if r == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	raw, err := m.store.Get(r, m.name)
	if raw == nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	if err != nil {
		m.logger.Debug("discarding invalid session", "error", err)
	}
	return &Session{raw: raw, r: r, store: m.store}, nil
}

// Revoker is implemented by stores keeping session data server side.
// Revoke deletes the data stored under a session ID.
type Revoker interface {
	Revoke(r *http.Request, id string) error
}

// Session is the per-request view of a gorilla session.
type Session struct {
	raw     *sessions.Session
	r       *http.Request
	store   sessions.Store
	revoked []string
}

// IsNew reports whether the session was created for this request
func (s *Session) IsNew() bool { return s.raw.IsNew }

// Get returns the value stored under key
func (s *Session) Get(key string) (interface{}, bool) {
	v, ok := s.raw.Values[key]
	return v, ok
}

// GetString returns the string stored under key, or ""
func (s *Session) GetString(key string) string {
	v, _ := s.raw.Values[key].(string)
	return v
}

// Set stores v under key.  v must be gob encodable.
func (s *Session) Set(key string, v interface{}) { s.raw.Values[key] = v }

// Delete removes key
func (s *Session) Delete(key string) { delete(s.raw.Values, key) }

// SetFlow stores the flow state of a sign-in in progress.
func (s *Session) SetFlow(f *oidc.FlowState) error {
	const op = "session.(Session).SetFlow"
	if f == nil {
		return fmt.Errorf("%s: flow state is nil: %w", op, ErrNilParameter)
	}
	enc, err := f.Encode()
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrCodec, err)
	}
	s.raw.Values[FlowKey] = enc
	return nil
}

// TakeFlow removes and returns the stored flow state.  It returns nil when
// none is stored, so a flow state can only be used once.
func (s *Session) TakeFlow() (*oidc.FlowState, error) {
	const op = "session.(Session).TakeFlow"
	enc := s.GetString(FlowKey)
	delete(s.raw.Values, FlowKey)
	if enc == "" {
		return nil, nil
	}
	f, err := oidc.DecodeFlowState(enc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrCodec, err)
	}
	return f, nil
}

// NextURL returns the stored post-login path
func (s *Session) NextURL() string { return s.GetString(NextURLKey) }

// SetNextURL stores the post-login path
func (s *Session) SetNextURL(path string) { s.raw.Values[NextURLKey] = path }

// AccessToken returns the stored Microsoft access token
func (s *Session) AccessToken() string { return s.GetString(AccessTokenKey) }

// SetAccessToken stores the Microsoft access token
func (s *Session) SetAccessToken(t string) { s.raw.Values[AccessTokenKey] = t }

// SetExpiry sets the session cookie max age.  Zero expires the cookie with
// the browser.
func (s *Session) SetExpiry(d time.Duration) {
	opts := sessions.Options{}
	if s.raw.Options != nil {
		opts = *s.raw.Options
	}
	opts.MaxAge = int(d / time.Second)
	s.raw.Options = &opts
}

// Expiry returns the session cookie max age
func (s *Session) Expiry() time.Duration {
	if s.raw.Options == nil {
		return 0
	}
	return time.Duration(s.raw.Options.MaxAge) * time.Second
}

// AddMessage queues a flash message
func (s *Session) AddMessage(l Level, text string) {
	s.raw.AddFlash(Message{Level: l, Text: text})
}

// Messages returns and clears the queued flash messages
func (s *Session) Messages() []Message {
	flashes := s.raw.Flashes()
	msgs := make([]Message, 0, len(flashes))
	for _, f := range flashes {
		switch v := f.(type) {
		case Message:
			msgs = append(msgs, v)
		case string:
			msgs = append(msgs, Message{Level: LevelInfo, Text: v})
		}
	}
	return msgs
}

// Clear removes every value, flash messages included.
func (s *Session) Clear() {
	s.raw.Values = map[interface{}]interface{}{}
}

// Flush removes every value except the queued flash messages.
func (s *Session) Flush() {
	flashes, ok := s.raw.Values[flashesKey]
	s.Clear()
	if ok {
		s.raw.Values[flashesKey] = flashes
	}
}

// Rotate gives the session a new ID on the next save, for stores that keep
// data server side.  The data under the old ID is revoked by that save.
func (s *Session) Rotate() {
	if s.raw.ID != "" {
		s.revoked = append(s.revoked, s.raw.ID)
	}
	s.raw.ID = ""
}

// Save writes the session to its store and sets the cookie on w.  IDs
// given up by Rotate are revoked first.
func (s *Session) Save(w http.ResponseWriter) error {
	const op = "session.(Session).Save"
	if rv, ok := s.store.(Revoker); ok {
		for len(s.revoked) > 0 {
			if err := rv.Revoke(s.r, s.revoked[0]); err != nil {
				return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
			}
			s.revoked = s.revoked[1:]
		}
	}
	if err := s.raw.Save(s.r, w); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	return nil
}
