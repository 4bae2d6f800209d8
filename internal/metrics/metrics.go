// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Queue and matching
	EnqueueTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookclub_enqueue_total",
			Help: "Enqueue attempts by outcome kind",
		},
		[]string{"result"},
	)

	DequeueTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookclub_dequeue_total",
			Help: "Dequeue calls split by whether a queue entry was removed",
		},
		[]string{"removed"},
	)

	GroupsFormed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookclub_groups_formed_total",
			Help: "Reading groups created",
		},
		[]string{"trigger"}, // "auto", "manual"
	)

	FormationSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookclub_formation_skipped_total",
			Help: "Evaluations that did not form a group",
		},
		[]string{"reason"}, // "below_threshold", "ineligible_readers"
	)

	FormationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookclub_formation_duration_seconds",
			Help:    "Time spent evaluating a book for group formation",
			Buckets: prometheus.DefBuckets,
		},
	)

	GroupMembers = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookclub_group_members",
			Help:    "Member count of newly formed groups",
			Buckets: []float64{3, 4, 5, 6, 7, 8, 9, 10},
		},
	)

	// Group lifecycle and interaction
	GroupTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookclub_group_transitions_total",
			Help: "Group status transitions by target status",
		},
		[]string{"to"},
	)

	MembersLeft = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookclub_members_left_total",
			Help: "Members who left or were removed from a group",
		},
	)

	MessagesPosted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookclub_messages_posted_total",
			Help: "Chat messages appended to group logs",
		},
	)

	ProgressUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookclub_progress_updates_total",
			Help: "Reading progress upserts",
		},
	)

	// Notifications
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookclub_notifications_total",
			Help: "ntfy notifications by event and outcome",
		},
		[]string{"event", "result"}, // result: "sent", "failed", "rejected"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bookclub_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookclub_http_requests_total",
			Help: "HTTP requests by method, route, and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookclub_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordAPIRequest records one served HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordFormation records a formed group.
func RecordFormation(trigger string, members int) {
	GroupsFormed.WithLabelValues(trigger).Inc()
	GroupMembers.Observe(float64(members))
}
