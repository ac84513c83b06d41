// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poll Cycle Metrics
	PollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_poll_cycles_total",
			Help: "Total number of completed poll cycles",
		},
		[]string{"result"}, // "success", "fetch_error"
	)

	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bridge_poll_duration_seconds",
			Help:    "Duration of full poll cycles in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_sessions_active",
			Help: "Number of active music sessions in the last poll",
		},
	)

	ChangesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_changes_published_total",
			Help: "Total number of sessions published after change detection",
		},
	)

	LastPollSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_last_poll_success_timestamp",
			Help: "Unix timestamp of last successful poll cycle",
		},
	)

	// Plex Source Metrics
	PlexFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plex_fetch_duration_seconds",
			Help:    "Duration of Plex session fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PlexFetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plex_fetch_errors_total",
			Help: "Total number of failed Plex session fetches",
		},
	)

	// MQTT Metrics
	MQTTConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mqtt_connected",
			Help: "MQTT broker connection state (1 = connected)",
		},
	)

	MQTTPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mqtt_publishes_total",
			Help: "Total number of MQTT publish attempts",
		},
		[]string{"result"}, // "success", "failure"
	)

	MQTTPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mqtt_publish_duration_seconds",
			Help:    "Duration of MQTT publishes in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	MQTTReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mqtt_reconnects_total",
			Help: "Total number of MQTT broker reconnections",
		},
	)

	// Scrobble Metrics
	ScrobbleAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrobble_attempts_total",
			Help: "Total number of scrobble decisions by outcome",
		},
		[]string{"result"}, // "submitted", "duplicate", "below_threshold", "too_short", "failure"
	)

	ScrobbleLedgerEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scrobble_ledger_entries",
			Help: "Current number of entries in the scrobble dedup ledger",
		},
	)

	ScrobbleLedgerEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrobble_ledger_evictions_total",
			Help: "Total number of ledger entries evicted by the size cap",
		},
	)

	// Tracking Metrics
	TrackingUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracking_users",
			Help: "Distinct users observed since first run",
		},
	)

	TrackingDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracking_devices",
			Help: "Distinct devices observed since first run",
		},
	)

	TrackingSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_saves_total",
			Help: "Total number of tracking store persistence attempts",
		},
		[]string{"result"}, // "success", "failure"
	)

	// Discovery Metrics
	DiscoveryEntities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "discovery_entities",
			Help: "Current number of registered discovery sensors",
		},
	)

	DiscoveryStatePushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discovery_state_pushes_total",
			Help: "Total number of sensor state updates sent",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordPollCycle records one completed poll cycle
func RecordPollCycle(duration time.Duration, sessionCount int, err error) {
	PollDuration.Observe(duration.Seconds())
	if err != nil {
		PollCycles.WithLabelValues("fetch_error").Inc()
		return
	}
	PollCycles.WithLabelValues("success").Inc()
	SessionsActive.Set(float64(sessionCount))
	LastPollSuccess.Set(float64(time.Now().Unix()))
}

// RecordPlexFetch records one Plex session fetch
func RecordPlexFetch(duration time.Duration, err error) {
	PlexFetchDuration.Observe(duration.Seconds())
	if err != nil {
		PlexFetchErrors.Inc()
	}
}

// RecordPublish records one MQTT publish attempt
func RecordPublish(duration time.Duration, err error) {
	MQTTPublishDuration.Observe(duration.Seconds())
	if err != nil {
		MQTTPublishes.WithLabelValues("failure").Inc()
		return
	}
	MQTTPublishes.WithLabelValues("success").Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordScrobble records one scrobble decision by outcome
func RecordScrobble(result string) {
	ScrobbleAttempts.WithLabelValues(result).Inc()
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
