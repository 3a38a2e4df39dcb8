// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package identity

import (
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

// Option defines a common functional options type
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(opts)
	}
}

// DomainMatch selects how an email domain is matched against the allowable
// domains.
type DomainMatch int

const (
	// DomainMatchExact matches a configured domain and its subdomains.
	DomainMatchExact DomainMatch = iota

	// DomainMatchLegacySubstring matches when the user's domain is a
	// substring of a configured domain.
	DomainMatchLegacySubstring
)

// Notifier receives the user facing notices raised while reconciling, such
// as a role being granted.
type Notifier func(r *http.Request, msg string)

type reconcilerOptions struct {
	withLogger       hclog.Logger
	withClock        clockwork.Clock
	withDomainMatch  DomainMatch
	withNotifier     Notifier
	withFieldMapping UserFieldMapping
}

func reconcilerDefaults() reconcilerOptions {
	return reconcilerOptions{
		withLogger:       hclog.NewNullLogger(),
		withClock:        clockwork.NewRealClock(),
		withDomainMatch:  DomainMatchExact,
		withNotifier:     func(*http.Request, string) {},
		withFieldMapping: DefaultFieldMapping(),
	}
}

func getReconcilerOpts(opt ...Option) reconcilerOptions {
	opts := reconcilerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*reconcilerOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithClock provides an optional clock used for DateJoined
func WithClock(c clockwork.Clock) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *reconcilerOptions:
			if c != nil {
				v.withClock = c
			}
		case *memOptions:
			if c != nil {
				v.withClock = c
			}
		}
	}
}

// WithDomainMatch provides an optional domain match mode
func WithDomainMatch(m DomainMatch) Option {
	return func(o interface{}) {
		if o, ok := o.(*reconcilerOptions); ok {
			o.withDomainMatch = m
		}
	}
}

// WithNotifier provides an optional Notifier
func WithNotifier(n Notifier) Option {
	return func(o interface{}) {
		if o, ok := o.(*reconcilerOptions); ok && n != nil {
			o.withNotifier = n
		}
	}
}

// WithFieldMapping provides an optional UserFieldMapping
func WithFieldMapping(m UserFieldMapping) Option {
	return func(o interface{}) {
		if o, ok := o.(*reconcilerOptions); ok {
			o.withFieldMapping = m
		}
	}
}
