// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/cap-sso/identity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// DefaultUserTable is the user table created by Migrate.
	DefaultUserTable = "sso_users"

	// LinkTable holds one Microsoft identity link per user.
	LinkTable = "sso_microsoft_users"
)

type userRecord struct {
	ID          int64  `gorm:"primaryKey"`
	Username    string `gorm:"size:150;uniqueIndex;not null"`
	Email       string `gorm:"size:254;index"`
	FirstName   string `gorm:"size:150"`
	LastName    string `gorm:"size:150"`
	IsActive    bool
	IsStaff     bool
	IsSuperuser bool
	HasPassword bool
	DateJoined  time.Time
	Extra       string
}

func (userRecord) TableName() string { return DefaultUserTable }

type linkRecord struct {
	ID            int64      `gorm:"primaryKey"`
	UserID        int64      `gorm:"uniqueIndex;not null"`
	User          userRecord `gorm:"constraint:OnDelete:CASCADE"`
	MicrosoftID   string     `gorm:"size:255"`
	PrincipalName string     `gorm:"size:255;index"`
	Picture       []byte
	Locale        string `gorm:"size:5"`
}

func (linkRecord) TableName() string { return LinkTable }

// Store is a UserStore backed by gorm.  Username, email and principal name
// lookups compare LOWER() of both sides.
type Store struct {
	db        *gorm.DB
	userTable string
	fields    identity.UserFieldMapping
}

var _ identity.UserStore = (*Store)(nil)

// New creates a Store over db.  Supported options: WithUserTable,
// WithFieldMapping
func New(db *gorm.DB, opt ...Option) (*Store, error) {
	const op = "gormstore.New"
	if db == nil {
		return nil, fmt.Errorf("%s: db is nil: %w", op, identity.ErrNilParameter)
	}
	opts := storeDefaults()
	ApplyOpts(&opts, opt...)
	return &Store{
		db:        db,
		userTable: opts.withUserTable,
		fields:    opts.withFieldMapping,
	}, nil
}

// Migrate creates the default user table and the link table.  Hosts that
// bring their own user table must create the link table themselves.
func (s *Store) Migrate(ctx context.Context) error {
	const op = "gormstore.(Store).Migrate"
	if err := s.db.WithContext(ctx).AutoMigrate(&userRecord{}, &linkRecord{}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) quote(col string) string {
	return s.db.Statement.Quote(col)
}

// users selects the user columns, aliasing the mapped username and email
// columns so rows scan into a userRecord.
func (s *Store) users(ctx context.Context) *gorm.DB {
	cols := fmt.Sprintf(
		"id, %s AS username, %s AS email, first_name, last_name, is_active, is_staff, is_superuser, has_password, date_joined, extra",
		s.quote(s.fields.Username()), s.quote(s.fields.Email()),
	)
	return s.db.WithContext(ctx).Table(s.userTable).Select(cols)
}

func (s *Store) takeUser(q *gorm.DB) (*identity.User, error) {
	var rec userRecord
	res := q.Order("id").Limit(1).Scan(&rec)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, identity.ErrNotFound
	}
	return toUser(&rec)
}

// Get implements identity.UserStore
func (s *Store) Get(ctx context.Context, id int64) (*identity.User, error) {
	const op = "gormstore.(Store).Get"
	u, err := s.takeUser(s.users(ctx).Where("id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("%s: user %d: %w", op, id, err)
	}
	return u, nil
}

// FindByEmail implements identity.UserStore.  When several users share the
// email the oldest is returned.
func (s *Store) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	const op = "gormstore.(Store).FindByEmail"
	u, err := s.takeUser(s.users(ctx).Where(s.lowerEq(s.fields.Email()), strings.ToLower(email)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// FindByUsername implements identity.UserStore
func (s *Store) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	const op = "gormstore.(Store).FindByUsername"
	u, err := s.takeUser(s.users(ctx).Where(s.lowerEq(s.fields.Username()), strings.ToLower(username)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *Store) lowerEq(col string) string {
	return fmt.Sprintf("LOWER(%s) = ?", s.quote(col))
}

// Create implements identity.UserStore.  Usernames are unique, ignoring case.
func (s *Store) Create(ctx context.Context, u *identity.User) error {
	const op = "gormstore.(Store).Create"
	if u == nil {
		return fmt.Errorf("%s: user is nil: %w", op, identity.ErrNilParameter)
	}
	_, err := s.FindByUsername(ctx, u.Username)
	switch {
	case err == nil:
		return fmt.Errorf("%s: username %q already exists: %w", op, u.Username, identity.ErrInvalidParameter)
	case !errors.Is(err, identity.ErrNotFound):
		return fmt.Errorf("%s: %w", op, err)
	}
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now()
	}
	row, err := s.columns(u)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.db.WithContext(ctx).Table(s.userTable).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%s: username %q already exists: %w", op, u.Username, identity.ErrInvalidParameter)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	// map creates don't back fill the primary key
	created, err := s.FindByUsername(ctx, u.Username)
	if err != nil {
		return fmt.Errorf("%s: unable to read back user: %w", op, err)
	}
	u.ID = created.ID
	return nil
}

// Save implements identity.UserStore
func (s *Store) Save(ctx context.Context, u *identity.User) error {
	const op = "gormstore.(Store).Save"
	if u == nil {
		return fmt.Errorf("%s: user is nil: %w", op, identity.ErrNilParameter)
	}
	row, err := s.columns(u)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	res := s.db.WithContext(ctx).Table(s.userTable).Where("id = ?", u.ID).Updates(row)
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: user %d: %w", op, u.ID, identity.ErrNotFound)
	}
	return nil
}

// Delete removes a user; its link is removed by the foreign key cascade.
func (s *Store) Delete(ctx context.Context, id int64) error {
	const op = "gormstore.(Store).Delete"
	q := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.quote(s.userTable))
	if err := s.db.WithContext(ctx).Exec(q, id).Error; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SuperuserExists implements identity.UserStore
func (s *Store) SuperuserExists(ctx context.Context) (bool, error) {
	const op = "gormstore.(Store).SuperuserExists"
	var n int64
	if err := s.db.WithContext(ctx).Table(s.userTable).Where("is_superuser = ?", true).Limit(1).Count(&n).Error; err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// FindLink implements identity.UserStore
func (s *Store) FindLink(ctx context.Context, principalName string) (*identity.Link, error) {
	const op = "gormstore.(Store).FindLink"
	var rec linkRecord
	err := s.db.WithContext(ctx).
		Where("LOWER(principal_name) = ?", strings.ToLower(principalName)).
		Order("user_id").
		Take(&rec).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return toLink(&rec), nil
}

// GetLink implements identity.UserStore
func (s *Store) GetLink(ctx context.Context, userID int64) (*identity.Link, error) {
	const op = "gormstore.(Store).GetLink"
	var rec linkRecord
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		return nil, fmt.Errorf("%s: link of user %d: %w", op, userID, notFound(err))
	}
	return toLink(&rec), nil
}

// UpsertLink implements identity.UserStore
func (s *Store) UpsertLink(ctx context.Context, l *identity.Link) error {
	const op = "gormstore.(Store).UpsertLink"
	if l == nil {
		return fmt.Errorf("%s: link is nil: %w", op, identity.ErrNilParameter)
	}
	if _, err := s.Get(ctx, l.UserID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rec := linkRecord{
		UserID:        l.UserID,
		MicrosoftID:   l.ProviderID,
		PrincipalName: l.PrincipalName,
		Picture:       l.Picture,
		Locale:        l.Locale,
	}
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"microsoft_id", "principal_name", "picture", "locale"}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) columns(u *identity.User) (map[string]interface{}, error) {
	extra := ""
	if len(u.Extra) > 0 {
		b, err := json.Marshal(u.Extra)
		if err != nil {
			return nil, fmt.Errorf("unable to encode extra fields: %w", err)
		}
		extra = string(b)
	}
	return map[string]interface{}{
		s.fields.Username(): u.Username,
		s.fields.Email():    u.Email,
		"first_name":        u.FirstName,
		"last_name":         u.LastName,
		"is_active":         u.IsActive,
		"is_staff":          u.IsStaff,
		"is_superuser":      u.IsSuperuser,
		"has_password":      u.HasPassword,
		"date_joined":       u.DateJoined.UTC(),
		"extra":             extra,
	}, nil
}

func toUser(rec *userRecord) (*identity.User, error) {
	u := &identity.User{
		ID:          rec.ID,
		Username:    rec.Username,
		Email:       rec.Email,
		FirstName:   rec.FirstName,
		LastName:    rec.LastName,
		IsActive:    rec.IsActive,
		IsStaff:     rec.IsStaff,
		IsSuperuser: rec.IsSuperuser,
		HasPassword: rec.HasPassword,
		DateJoined:  rec.DateJoined,
	}
	if rec.Extra != "" {
		if err := json.Unmarshal([]byte(rec.Extra), &u.Extra); err != nil {
			return nil, fmt.Errorf("unable to decode extra fields of user %d: %w", rec.ID, err)
		}
	}
	return u, nil
}

func toLink(rec *linkRecord) *identity.Link {
	return &identity.Link{
		UserID:        rec.UserID,
		ProviderID:    rec.MicrosoftID,
		PrincipalName: rec.PrincipalName,
		Picture:       rec.Picture,
		Locale:        rec.Locale,
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return identity.ErrNotFound
	}
	return err
}
