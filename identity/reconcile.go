// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/cap-sso/config"
	"github.com/hashicorp/cap-sso/oidc"
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"golang.org/x/net/idna"
)

// Wildcard in the allowable domains, staff list or superuser list matches
// everyone.
const Wildcard = "*"

// Reconciler resolves identity claims to a local user, creating or
// refreshing it according to the settings resolved for each request.
type Reconciler struct {
	store       UserStore
	settings    *config.Settings
	logger      hclog.Logger
	clock       clockwork.Clock
	domainMatch DomainMatch
	notify      Notifier
	fields      UserFieldMapping
}

// NewReconciler creates a Reconciler.
// Supported options: WithLogger, WithClock, WithDomainMatch, WithNotifier,
// WithFieldMapping
func NewReconciler(store UserStore, settings *config.Settings, opt ...Option) (*Reconciler, error) {
	const op = "identity.NewReconciler"
	if store == nil {
		return nil, fmt.Errorf("%s: store is nil: %w", op, ErrNilParameter)
	}
	if settings == nil {
		return nil, fmt.Errorf("%s: settings are nil: %w", op, ErrNilParameter)
	}
	opts := getReconcilerOpts(opt...)
	return &Reconciler{
		store:       store,
		settings:    settings,
		logger:      opts.withLogger,
		clock:       opts.withClock,
		domainMatch: opts.withDomainMatch,
		notify:      opts.withNotifier,
		fields:      opts.withFieldMapping,
	}, nil
}

// policy is the reconciliation policy resolved for one request
type policy struct {
	uniqueEmail    bool
	alwaysUpdate   bool
	firstSuperuser bool
	saveBasicInfo  bool
	staffList      []string
	superuserList  []string
}

func (rc *Reconciler) policy(r *http.Request) (policy, error) {
	var p policy
	var err error
	s := rc.settings
	if p.uniqueEmail, err = s.Bool(config.UniqueEmail, r); err != nil {
		return p, err
	}
	if p.alwaysUpdate, err = s.Bool(config.AlwaysUpdateUserData, r); err != nil {
		return p, err
	}
	if p.firstSuperuser, err = s.Bool(config.AutoCreateFirstSuperuser, r); err != nil {
		return p, err
	}
	if p.saveBasicInfo, err = s.Bool(config.SaveBasicInfo, r); err != nil {
		return p, err
	}
	if p.staffList, err = s.Strings(config.StaffList, r); err != nil {
		return p, err
	}
	if p.superuserList, err = s.Strings(config.SuperuserList, r); err != nil {
		return p, err
	}
	return p, nil
}

// normalized returns the lowercased principal name and email of the claims
func normalized(claims *oidc.Claims) (principal, email string) {
	return strings.ToLower(strings.TrimSpace(claims.UserPrincipalName)),
		strings.ToLower(strings.TrimSpace(claims.Email()))
}

// Reconcile resolves the claims to a local user, creating it when none
// matches.  extraDefaults are applied to a new user only; keys naming a user
// field (per the UserFieldMapping, or first_name, last_name, is_active,
// is_staff, is_superuser) set that field and the rest are kept in
// User.Extra.  The returned bool reports whether the user was created.
func (rc *Reconciler) Reconcile(ctx context.Context, claims *oidc.Claims, r *http.Request, extraDefaults map[string]interface{}) (*User, bool, error) {
	const op = "identity.(Reconciler).Reconcile"
	if claims == nil {
		return nil, false, fmt.Errorf("%s: claims are nil: %w", op, ErrNilParameter)
	}
	p, err := rc.policy(r)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	principal, email := normalized(claims)
	if p.uniqueEmail && email == "" {
		return nil, false, fmt.Errorf("%s: %w", op, ErrMissingEmail)
	}

	u, err := rc.lookup(ctx, p, principal, email)
	created := false
	switch {
	case errors.Is(err, ErrUserNotFound):
		created = true
		u = &User{
			Username:   principal,
			Email:      email,
			IsActive:   true,
			DateJoined: rc.clock.Now(),
		}
		if err := u.applyDefaults(rc.fields, extraDefaults); err != nil {
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}
	case err != nil:
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	before := u.Clone()

	if p.firstSuperuser && !u.IsSuperuser {
		exists, err := rc.store.SuperuserExists(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", op, err)
		}
		if !exists {
			msg := fmt.Sprintf("%s is True. Adding SuperUser status to email: %s", config.AutoCreateFirstSuperuser, email)
			rc.logger.Warn(msg)
			rc.notify(r, msg)
			u.IsSuperuser = true
			u.IsStaff = true
		}
	}

	if created || p.alwaysUpdate {
		u.FirstName = claims.GivenName
		u.LastName = claims.Surname
		u.Email = email
		u.HasPassword = false
		rc.applyRoles(r, p, u)
	}

	switch {
	case created:
		if err := rc.store.Create(ctx, u); err != nil {
			return nil, false, fmt.Errorf("%s: unable to create user: %w", op, err)
		}
		rc.logger.Debug("created user", "username", u.Username, "id", u.ID)
	case !sameFields(before, u):
		if err := rc.store.Save(ctx, u); err != nil {
			return nil, false, fmt.Errorf("%s: unable to save user: %w", op, err)
		}
		rc.logger.Debug("updated user", "username", u.Username, "id", u.ID)
	}

	if p.saveBasicInfo {
		l := &Link{
			UserID:        u.ID,
			ProviderID:    claims.ID,
			PrincipalName: principal,
			Picture:       claims.Picture,
			Locale:        claims.Locale(),
		}
		if err := rc.store.UpsertLink(ctx, l); err != nil {
			return nil, false, fmt.Errorf("%s: unable to save link: %w", op, err)
		}
	}
	return u, created, nil
}

// Find resolves the claims to an existing local user without creating one.
// It returns ErrUserNotFound when none matches.
func (rc *Reconciler) Find(ctx context.Context, claims *oidc.Claims, r *http.Request) (*User, error) {
	const op = "identity.(Reconciler).Find"
	if claims == nil {
		return nil, fmt.Errorf("%s: claims are nil: %w", op, ErrNilParameter)
	}
	p, err := rc.policy(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	principal, email := normalized(claims)
	if p.uniqueEmail && email == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingEmail)
	}
	u, err := rc.lookup(ctx, p, principal, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// lookup finds the user by email in unique email mode, otherwise by the
// link's principal name then by username.
func (rc *Reconciler) lookup(ctx context.Context, p policy, principal, email string) (*User, error) {
	if p.uniqueEmail {
		u, err := rc.store.FindByEmail(ctx, email)
		return notFound(u, err)
	}
	if principal != "" {
		l, err := rc.store.FindLink(ctx, principal)
		switch {
		case err == nil:
			u, err := rc.store.Get(ctx, l.UserID)
			if err == nil {
				return u, nil
			}
			if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}
	u, err := rc.store.FindByUsername(ctx, principal)
	return notFound(u, err)
}

func notFound(u *User, err error) (*User, error) {
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// applyRoles grants staff and superuser from the role lists.  Roles are
// never revoked.
func (rc *Reconciler) applyRoles(r *http.Request, p policy, u *User) {
	if inRoleList(p.staffList, u) && !u.IsStaff {
		msg := fmt.Sprintf("User email: %s in %s. Added Staff Permission.", u.Email, config.StaffList)
		rc.logger.Debug(msg)
		rc.notify(r, msg)
		u.IsStaff = true
	}
	if inRoleList(p.superuserList, u) && !u.IsSuperuser {
		msg := fmt.Sprintf("User email: %s in %s. Added SuperUser Permission.", u.Email, config.SuperuserList)
		rc.logger.Debug(msg)
		rc.notify(r, msg)
		u.IsSuperuser = true
	}
	if u.IsSuperuser {
		u.IsStaff = true
	}
}

func inRoleList(list []string, u *User) bool {
	for _, e := range list {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == Wildcard || (e != "" && (e == strings.ToLower(u.Email) || e == strings.ToLower(u.Username))) {
			return true
		}
	}
	return false
}

// EmailIsValid reports whether the domain of the claims' email is allowed.
// A Wildcard entry allows every email.  An explicitly unverified email is
// logged but not rejected.
func (rc *Reconciler) EmailIsValid(claims *oidc.Claims, r *http.Request) (bool, error) {
	const op = "identity.(Reconciler).EmailIsValid"
	if claims == nil {
		return false, fmt.Errorf("%s: claims are nil: %w", op, ErrNilParameter)
	}
	allowed, err := rc.settings.Strings(config.AllowableDomains, r)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	_, email := normalized(claims)
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		rc.logger.Debug("email is not verified", "email", email)
	}
	domain := normalizeDomain(email[strings.LastIndex(email, "@")+1:])
	for _, entry := range allowed {
		if strings.TrimSpace(entry) == Wildcard {
			return true, nil
		}
		if domain == "" {
			continue
		}
		if matchDomain(rc.domainMatch, domain, normalizeDomain(entry)) {
			return true, nil
		}
	}
	return false, nil
}

func matchDomain(mode DomainMatch, domain, entry string) bool {
	if entry == "" {
		return false
	}
	switch mode {
	case DomainMatchLegacySubstring:
		return strings.Contains(entry, domain)
	default:
		return domain == entry || strings.HasSuffix(domain, "."+entry)
	}
}

// normalizeDomain lowercases a domain and converts it to its ASCII form.
// Domains that are not valid IDNA are only lowercased.
func normalizeDomain(d string) string {
	d = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
	if a, err := idna.Lookup.ToASCII(d); err == nil {
		return a
	}
	return d
}
