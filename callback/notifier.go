// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"net/http"

	"github.com/hashicorp/cap-sso/config"
	"github.com/hashicorp/cap-sso/identity"
	"github.com/hashicorp/cap-sso/session"
)

// Notifier returns an identity.Notifier which queues notices as info flash
// messages on the session carried by the request's context.  Nothing is
// queued when messages are disabled.
func Notifier(settings *config.Settings) identity.Notifier {
	return func(r *http.Request, msg string) {
		if r == nil {
			return
		}
		sess, ok := session.FromContext(r.Context())
		if !ok {
			return
		}
		if on, err := settings.Bool(config.EnableMessages, r); err != nil || !on {
			return
		}
		sess.AddMessage(session.LevelInfo, msg)
	}
}
