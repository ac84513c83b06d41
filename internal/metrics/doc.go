// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered on the default registry via promauto and exposed
at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8089/metrics

# Available Metrics

Poll Cycle Metrics:
  - bridge_poll_cycles_total: Completed poll cycles (counter)
    Labels: result (success, fetch_error)
  - bridge_poll_duration_seconds: Full cycle duration (histogram)
  - bridge_sessions_active: Music sessions in the last poll (gauge)
  - bridge_changes_published_total: Sessions published after change detection (counter)
  - bridge_last_poll_success_timestamp: Unix timestamp of last successful poll (gauge)

Plex Source Metrics:
  - plex_fetch_duration_seconds: /status/sessions round-trip time (histogram)
  - plex_fetch_errors_total: Failed session fetches (counter)

MQTT Metrics:
  - mqtt_connected: Broker connection state, 1 when connected (gauge)
  - mqtt_publishes_total: Publish attempts (counter)
    Labels: result (success, failure)
  - mqtt_publish_duration_seconds: Publish round-trip time (histogram)
  - mqtt_reconnects_total: Broker reconnections (counter)

Scrobble Metrics:
  - scrobble_attempts_total: Scrobble decisions (counter)
    Labels: result (submitted, duplicate, below_threshold, too_short, failure)
  - scrobble_ledger_entries: Entries currently in the dedup ledger (gauge)
  - scrobble_ledger_evictions_total: Entries evicted by the size cap (counter)

Tracking Metrics:
  - tracking_users: Distinct users observed since first run (gauge)
  - tracking_devices: Distinct devices observed since first run (gauge)
  - tracking_saves_total: Persistence attempts (counter)
    Labels: result (success, failure)

Discovery Metrics:
  - discovery_entities: Registered discovery sensors (gauge)
  - discovery_state_pushes_total: Sensor state updates actually sent (counter)

API Metrics:
  - api_requests_total: HTTP requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
  - api_active_requests: In-flight requests (gauge)
  - api_rate_limit_hits_total: Rate limit rejections (counter)

WebSocket Metrics:
  - websocket_connections: Active feed connections (gauge)
  - websocket_messages_sent_total: Messages pushed to clients (counter)
  - websocket_errors_total: Feed errors (counter)
    Labels: error_type

Circuit Breaker Metrics:
  - circuit_breaker_state: Breaker state, 0=closed 1=half-open 2=open (gauge)
  - circuit_breaker_requests_total: Requests through the breaker (counter)
    Labels: name, result (success, failure, rejected)
  - circuit_breaker_consecutive_failures: Current failure streak (gauge)
  - circuit_breaker_state_transitions_total: State changes (counter)

System Metrics:
  - app_info: Version and build information (gauge, constant 1)
  - app_uptime_seconds: Process uptime (gauge)

# Usage

Record helpers wrap the common multi-collector updates:

	start := time.Now()
	resp, err := client.ListSessions(ctx)
	metrics.RecordPlexFetch(time.Since(start), err)
*/
package metrics
