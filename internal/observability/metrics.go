package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SeatRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "seat_requests_total", Help: "Ride requests created"})
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "request_status_transitions_total", Help: "Ride request status transitions"},
		[]string{"from", "to"},
	)
	SeatsReservedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "seats_reserved_total", Help: "Seats reserved by accepted requests"})
	SeatsReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "seats_released_total", Help: "Seats returned by rejected or cancelled requests"})
	SeatConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "seat_conflicts_total", Help: "Accepts refused by the store's conditional seat update"})

	SuggestionsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "suggestions_total", Help: "Suggestion lists computed"})
	SuggestLatency   = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "carpool", Name: "suggest_latency_seconds", Help: "Suggestion latency seconds"})
	SuggestCache     = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "suggest_cache_total", Help: "Suggestion cache lookups"},
		[]string{"result"},
	)

	EventPublishErrors = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "event_publish_errors_total", Help: "Ride request events that failed to publish"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carpool",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
