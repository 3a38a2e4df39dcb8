// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package identity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
)

// MemStore is an in-memory UserStore.  It is safe for concurrent use and
// returns copies, so callers never share its records.
type MemStore struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]*User
	links  map[int64]*Link
	clock  clockwork.Clock
}

var _ UserStore = (*MemStore)(nil)

type memOptions struct {
	withClock clockwork.Clock
}

func memDefaults() memOptions {
	return memOptions{withClock: clockwork.NewRealClock()}
}

// NewMemStore creates an empty MemStore.  Supported options: WithClock
func NewMemStore(opt ...Option) *MemStore {
	opts := memDefaults()
	ApplyOpts(&opts, opt...)
	return &MemStore{
		users: map[int64]*User{},
		links: map[int64]*Link{},
		clock: opts.withClock,
	}
}

// Get implements UserStore
func (s *MemStore) Get(_ context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return u.Clone(), nil
}

// FindByEmail implements UserStore.  When several users share the email the
// oldest is returned.
func (s *MemStore) FindByEmail(_ context.Context, email string) (*User, error) {
	return s.findUser(func(u *User) bool { return strings.EqualFold(u.Email, email) })
}

// FindByUsername implements UserStore
func (s *MemStore) FindByUsername(_ context.Context, username string) (*User, error) {
	return s.findUser(func(u *User) bool { return strings.EqualFold(u.Username, username) })
}

func (s *MemStore) findUser(match func(*User) bool) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.sortedIDs() {
		if u := s.users[id]; match(u) {
			return u.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) sortedIDs() []int64 {
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Create implements UserStore.  Usernames are unique, ignoring case.
func (s *MemStore) Create(_ context.Context, u *User) error {
	const op = "identity.(MemStore).Create"
	if u == nil {
		return fmt.Errorf("%s: user is nil: %w", op, ErrNilParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return fmt.Errorf("%s: username %q already exists: %w", op, u.Username, ErrInvalidParameter)
		}
	}
	s.nextID++
	u.ID = s.nextID
	if u.DateJoined.IsZero() {
		u.DateJoined = s.clock.Now()
	}
	s.users[u.ID] = u.Clone()
	return nil
}

// Save implements UserStore
func (s *MemStore) Save(_ context.Context, u *User) error {
	const op = "identity.(MemStore).Save"
	if u == nil {
		return fmt.Errorf("%s: user is nil: %w", op, ErrNilParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return fmt.Errorf("%s: user %d: %w", op, u.ID, ErrNotFound)
	}
	s.users[u.ID] = u.Clone()
	return nil
}

// Delete removes a user and its link.
func (s *MemStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	delete(s.links, id)
	return nil
}

// SuperuserExists implements UserStore
func (s *MemStore) SuperuserExists(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.IsSuperuser {
			return true, nil
		}
	}
	return false, nil
}

// FindLink implements UserStore
func (s *MemStore) FindLink(_ context.Context, principalName string) (*Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.sortedIDs() {
		if l, ok := s.links[id]; ok && strings.EqualFold(l.PrincipalName, principalName) {
			return l.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// GetLink implements UserStore
func (s *MemStore) GetLink(_ context.Context, userID int64) (*Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.links[userID]
	if !ok {
		return nil, fmt.Errorf("link of user %d: %w", userID, ErrNotFound)
	}
	return l.Clone(), nil
}

// UpsertLink implements UserStore
func (s *MemStore) UpsertLink(_ context.Context, l *Link) error {
	const op = "identity.(MemStore).UpsertLink"
	if l == nil {
		return fmt.Errorf("%s: link is nil: %w", op, ErrNilParameter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[l.UserID]; !ok {
		return fmt.Errorf("%s: user %d: %w", op, l.UserID, ErrNotFound)
	}
	s.links[l.UserID] = l.Clone()
	return nil
}

// Len returns the number of users and links in the store.
func (s *MemStore) Len() (users, links int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.links)
}
