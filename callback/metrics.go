// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Results counted by Metrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Metrics counts callback outcomes by final state and result.
type Metrics struct {
	callbacks *prometheus.CounterVec
}

// NewMetrics creates Metrics registered with reg.  A nil reg leaves the
// metrics unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		callbacks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sso_callback_total",
			Help: "Number of sign-in callbacks by final state and result",
		}, []string{"state", "result"}),
	}
}

func (m *Metrics) observe(s State, result string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(s.String(), result).Inc()
}
