// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package sso

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/cap-sso/config"
)

// Button is what a login page needs to render the sign-in button.
type Button struct {
	Enabled  bool   `json:"enabled"`
	Text     string `json:"text"`
	LogoURL  string `json:"logo_url"`
	LoginURL string `json:"login_url"`
}

// Button returns the sign-in button for a login page served by r.  The
// button is enabled when sign-in is enabled for the page: the admin flag
// for pages under the admin path, the pages flag otherwise.  The login URL
// carries r's next parameter, if any.
func (s *Service) Button(r *http.Request) (*Button, error) {
	const op = "sso.(Service).Button"
	if r == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	enabled, err := s.buttonEnabled(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	text, err := s.settings.String(config.Text, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logo, err := s.settings.String(config.LogoURL, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	loginURL := s.LoginURL()
	if next := r.URL.Query().Get("next"); next != "" {
		loginURL += "?" + url.Values{"next": {next}}.Encode()
	}
	return &Button{
		Enabled:  enabled,
		Text:     text,
		LogoURL:  logo,
		LoginURL: loginURL,
	}, nil
}

func (s *Service) buttonEnabled(r *http.Request) (bool, error) {
	enabled, err := s.settings.Bool(config.Enabled, r)
	if err != nil || !enabled {
		return false, err
	}
	adminPath, err := s.settings.String(config.AdminPath, r)
	if err != nil {
		return false, err
	}
	if adminPath != "" && strings.HasPrefix(r.URL.Path, adminPath) {
		return s.settings.Bool(config.AdminEnabled, r)
	}
	return s.settings.Bool(config.PagesEnabled, r)
}
