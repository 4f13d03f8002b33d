// Package metrics holds the forum's Prometheus collectors
package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesCreated counts new messages by kind (topic, reply)
	MessagesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_messages_created_total",
			Help: "Total number of forum messages created",
		},
		[]string{"kind"},
	)

	// VotesCast counts accepted poll votes by outcome (new, changed, removed)
	VotesCast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_poll_votes_total",
			Help: "Total number of accepted poll vote operations",
		},
		[]string{"outcome"},
	)

	// ReconcileFixes counts rows repaired by the reconciliation job
	ReconcileFixes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_reconcile_fixes_total",
			Help: "Total number of rows repaired by pointer reconciliation",
		},
		[]string{"entity"},
	)

	// OnlineSessions is the size of the presence window at the last read or sweep
	OnlineSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "forum_online_sessions",
			Help: "Sessions seen within the presence window",
		},
		[]string{"kind"},
	)

	// PresenceDropped counts activity records dropped because the worker pool was full
	PresenceDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forum_presence_dropped_total",
			Help: "Presence records dropped under load",
		},
	)
)

// HTTP 지표 (라벨은 라우트 템플릿 기준)
var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forum_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2.5, 8),
		},
		[]string{"method", "route"},
	)

	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forum_http_in_flight_requests",
			Help: "Requests currently being served",
		},
	)
)

// RegisterDBStats exports connection pool stats for db
func RegisterDBStats(db *sql.DB) error {
	return prometheus.Register(collectors.NewDBStatsCollector(db, "forum"))
}
