// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Size limits of the Graph responses read
const (
	maxDocumentSize = 1 << 20
	maxPictureSize  = 4 << 20
)

var errResponseTooLarge = errors.New("response too large")

// Claims are the identity claims of the signed in user, read from Microsoft
// Graph.
type Claims struct {
	ID                string `json:"id"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName"`
	GivenName         string `json:"givenName"`
	Surname           string `json:"surname"`
	Mail              string `json:"mail"`
	PreferredLanguage string `json:"preferredLanguage"`

	// EmailVerified is nil when Graph did not report it
	EmailVerified *bool `json:"-"`

	// Picture is the raw profile photo, nil when the user has none
	Picture []byte `json:"-"`

	// Raw is the decoded /me document
	Raw map[string]interface{} `json:"-"`
}

// Email returns the user's mail address
func (c *Claims) Email() string {
	if c == nil {
		return ""
	}
	return c.Mail
}

// maxLocaleLen is the longest locale stored on a user link
const maxLocaleLen = 5

// Locale returns PreferredLanguage canonicalised to language and explicit
// region ("en-US").  When that is longer than 5 characters only the language
// is returned.  Unparseable values return "".
func (c *Claims) Locale() string {
	if c == nil || c.PreferredLanguage == "" {
		return ""
	}
	tag, err := language.Parse(c.PreferredLanguage)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	s := base.String()
	if region, conf := tag.Region(); conf == language.Exact {
		s += "-" + region.String()
	}
	if len(s) > maxLocaleLen {
		return base.String()
	}
	return s
}

// FetchClaims reads the signed in user's profile from Microsoft Graph with
// the access token.  The /me document is required; the mailVerified flag and
// the profile photo are best effort and their failures are only logged.
// Every request is bounded by timeout; zero uses the config's timeout.
func (p *Provider) FetchClaims(ctx context.Context, accessToken string, timeout time.Duration) (*Claims, error) {
	const op = "oidc.(Provider).FetchClaims"
	if accessToken == "" {
		return nil, fmt.Errorf("%s: access token is empty: %w", op, ErrInvalidParameter)
	}
	if timeout <= 0 {
		timeout = p.config.Timeout
	}
	base := strings.TrimSuffix(p.config.GraphURL, "/")

	status, body, err := p.graphGet(ctx, accessToken, timeout, base+"/v1.0/me", maxDocumentSize)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%s: %w: %w", op, &ClaimsError{Reason: "Microsoft Graph did not respond in time"}, err)
	case errors.Is(err, errResponseTooLarge):
		return nil, fmt.Errorf("%s: %w: %w", op, &ClaimsError{Status: status, Reason: "the user profile is too large"}, err)
	case err != nil:
		return nil, fmt.Errorf("%s: %w: %w", op, &ClaimsError{Reason: "unable to reach Microsoft Graph"}, err)
	case status != http.StatusOK:
		code, msg := graphError(body)
		ce := &ClaimsError{Status: status, Code: code, Reason: fmt.Sprintf("Microsoft Graph returned %d", status)}
		if code != "" {
			ce.Reason = fmt.Sprintf("%s: %s", code, msg)
		}
		return nil, fmt.Errorf("%s: /me returned %d: %w: %s", op, status, ce, strings.TrimSpace(string(body)))
	}
	var claims Claims
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, &ClaimsError{Status: status, Reason: "the user profile is invalid"}, err)
	}
	if err := json.Unmarshal(body, &claims.Raw); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, &ClaimsError{Status: status, Reason: "the user profile is invalid"}, err)
	}

	if claims.ID != "" {
		u := fmt.Sprintf("%s/v1.0/users/%s?%s", base, url.PathEscape(claims.ID), "$select=mailVerified")
		status, body, err := p.graphGet(ctx, accessToken, timeout, u, maxDocumentSize)
		switch {
		case err != nil:
			p.logger.Debug("unable to read mailVerified", "error", err)
		case status == http.StatusOK:
			var v struct {
				MailVerified bool `json:"mailVerified"`
			}
			if err := json.Unmarshal(body, &v); err != nil {
				p.logger.Debug("unable to decode mailVerified", "error", err)
				break
			}
			claims.EmailVerified = &v.MailVerified
		default:
			p.logger.Debug("mailVerified not available", "status", status)
		}
	}

	status, body, err = p.graphGet(ctx, accessToken, timeout, base+"/v1.0/me/photo/$value", maxPictureSize)
	switch {
	case errors.Is(err, errResponseTooLarge):
		p.logger.Warn("profile photo dropped", "error", err, "limit", maxPictureSize)
	case err != nil:
		p.logger.Debug("unable to read profile photo", "error", err)
	case status == http.StatusOK:
		claims.Picture = body
	default:
		p.logger.Debug("profile photo not available", "status", status)
	}
	return &claims, nil
}

func (p *Provider) graphGet(ctx context.Context, accessToken string, timeout time.Duration, u string, limit int64) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := p.graph.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return 0, nil, err
	}
	if int64(len(body)) > limit {
		return resp.StatusCode, nil, fmt.Errorf("%s: %w", u, errResponseTooLarge)
	}
	return resp.StatusCode, body, nil
}

// graphError extracts error.code and error.message from a Graph error
// document
func graphError(body []byte) (code, message string) {
	var e struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return "", ""
	}
	return e.Error.Code, e.Error.Message
}
