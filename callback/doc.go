// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

/*
Package callback handles the identity provider's redirect back to the host at
the end of a Microsoft Entra authorization code flow.

The Handler runs the callback as a sequence of states, each guarding the next:

	start → enabled_check → code_present → state_validated → token_exchanged →
	claims_fetched → pre_validated → user_resolved → logged_in

The flow state is taken out of the session before anything else, so a
replayed callback always fails at state_validated.  A failure in any state
queues a flash message (unless messages are disabled), is logged, and
redirects to the configured login failed URL.  A misconfiguration, such as an
authentication backend that isn't registered, is answered with a 500.

Outcomes are counted by the sso_callback_total metric when the handler is
given Metrics:

	m := callback.NewMetrics(prometheus.DefaultRegisterer)
	h, err := callback.NewHandler(settings, providers, sessions, reconciler, registry, callback.WithMetrics(m))
*/
package callback
