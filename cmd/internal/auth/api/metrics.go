package authapi

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the auth counters exposed on /metrics.
type Metrics struct {
	Logins      *prometheus.CounterVec
	Lockouts    prometheus.Counter
	Refreshes   *prometheus.CounterVec
	ReplayHits  prometheus.Counter
	Registered  prometheus.Counter
	Revocations prometheus.Counter
}

// NewMetrics builds and registers the auth metrics on reg. Pass
// prometheus.DefaultRegisterer in production; tests use a private registry
// so parallel suites do not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by result (success, invalid, locked, error).",
		}, []string{"result"}),
		Lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "huddle",
			Subsystem: "auth",
			Name:      "lockouts_total",
			Help:      "Accounts locked after repeated login failures.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Subsystem: "auth",
			Name:      "refresh_rotations_total",
			Help:      "Refresh token rotations by result (success, invalid, replay, error).",
		}, []string{"result"}),
		ReplayHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "huddle",
			Subsystem: "auth",
			Name:      "refresh_reuse_detected_total",
			Help:      "Refresh tokens presented after rotation (replay signals).",
		}),
		Registered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "huddle",
			Subsystem: "auth",
			Name:      "registrations_total",
			Help:      "Successful user registrations.",
		}),
		Revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "huddle",
			Subsystem: "auth",
			Name:      "revocations_total",
			Help:      "Logout-all revocations (token version bumps).",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Logins, m.Lockouts, m.Refreshes, m.ReplayHits, m.Registered, m.Revocations)
	}
	return m
}
