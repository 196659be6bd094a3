// Package metrics defines the custom Prometheus metrics of the auth API.
// It is the single source of truth for metric names, labels and help strings.
//
// All collectors register with the default registry through promauto, so
// importing the package is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auth"

// ── Session metrics ───────────────────────────────────────────────────────────

// LoginsTotal counts login outcomes.
// Label:
//   - result: "success", "invalid_credentials", "locked", "unverified"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// LockoutsTotal counts transitions into the locked state.
var LockoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lockouts_total",
		Help:      "Total number of accounts locked after repeated login failures.",
	},
)

// TokenRefreshTotal counts refresh-token rotations.
// Label:
//   - result: "success", "invalid", "revoked", "stale"
var TokenRefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refresh_total",
		Help:      "Total number of refresh attempts, by result.",
	},
	[]string{"result"},
)

// ── Signup metrics ────────────────────────────────────────────────────────────

// SignupsTotal counts signup steps.
// Labels:
//   - stage: "request", "verify", "resend"
//   - result: "success" or a short failure reason
var SignupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signups_total",
		Help:      "Total number of signup operations, by stage and result.",
	},
	[]string{"stage", "result"},
)

// ── Notification metrics ──────────────────────────────────────────────────────

// NotificationsTotal counts delivery outcomes.
// Labels:
//   - kind: "otp", "welcome", "account_locked", "password_reset"
//   - result: "sent", "failed", "dropped"
var NotificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Total number of notifications, by kind and delivery result.",
	},
	[]string{"kind", "result"},
)

// NotificationQueueDepth tracks pending notifications per dispatcher worker.
var NotificationQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notification_queue_depth",
		Help:      "Current number of notifications pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// ── HTTP metrics ──────────────────────────────────────────────────────────────

// RateLimitedTotal counts requests rejected with 429.
// Label:
//   - rule: "api", "auth", "otp", "email"
var RateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of requests rejected by a rate-limit rule.",
	},
	[]string{"rule"},
)
