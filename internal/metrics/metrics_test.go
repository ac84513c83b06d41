// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRecordPollCycle tests poll cycle metric recording
func TestRecordPollCycle(t *testing.T) {
	tests := []struct {
		name         string
		duration     time.Duration
		sessionCount int
		err          error
	}{
		{
			name:         "successful idle poll",
			duration:     50 * time.Millisecond,
			sessionCount: 0,
			err:          nil,
		},
		{
			name:         "successful poll with sessions",
			duration:     120 * time.Millisecond,
			sessionCount: 3,
			err:          nil,
		},
		{
			name:         "failed poll",
			duration:     30 * time.Second,
			sessionCount: 0,
			err:          errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Must not panic regardless of outcome
			RecordPollCycle(tt.duration, tt.sessionCount, tt.err)
		})
	}
}

// TestRecordPlexFetch tests Plex fetch metric recording
func TestRecordPlexFetch(t *testing.T) {
	before := testutil.ToFloat64(PlexFetchErrors)

	RecordPlexFetch(25*time.Millisecond, nil)
	RecordPlexFetch(30*time.Second, errors.New("timeout"))

	after := testutil.ToFloat64(PlexFetchErrors)
	if got := after - before; got != 1 {
		t.Errorf("PlexFetchErrors delta = %v, want 1", got)
	}
}

// TestRecordPublish tests MQTT publish metric recording
func TestRecordPublish(t *testing.T) {
	successBefore := testutil.ToFloat64(MQTTPublishes.WithLabelValues("success"))
	failureBefore := testutil.ToFloat64(MQTTPublishes.WithLabelValues("failure"))

	RecordPublish(5*time.Millisecond, nil)
	RecordPublish(5*time.Millisecond, nil)
	RecordPublish(time.Second, errors.New("broker unavailable"))

	if got := testutil.ToFloat64(MQTTPublishes.WithLabelValues("success")) - successBefore; got != 2 {
		t.Errorf("success publishes delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(MQTTPublishes.WithLabelValues("failure")) - failureBefore; got != 1 {
		t.Errorf("failure publishes delta = %v, want 1", got)
	}
}

// TestRecordScrobble tests scrobble outcome recording
func TestRecordScrobble(t *testing.T) {
	outcomes := []string{"submitted", "duplicate", "below_threshold", "too_short", "failure"}

	for _, outcome := range outcomes {
		t.Run(outcome, func(t *testing.T) {
			before := testutil.ToFloat64(ScrobbleAttempts.WithLabelValues(outcome))
			RecordScrobble(outcome)
			after := testutil.ToFloat64(ScrobbleAttempts.WithLabelValues(outcome))
			if got := after - before; got != 1 {
				t.Errorf("ScrobbleAttempts[%s] delta = %v, want 1", outcome, got)
			}
		})
	}
}

// TestTrackActiveRequest verifies the gauge goes up and back down
func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests) - before; got != 1 {
		t.Errorf("active requests delta after inc = %v, want 1", got)
	}

	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests) - before; got != 0 {
		t.Errorf("active requests delta after dec = %v, want 0", got)
	}
}

// TestRecordAPIRequest tests API request metric recording
func TestRecordAPIRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		endpoint   string
		statusCode string
		duration   time.Duration
	}{
		{
			name:       "successful GET",
			method:     "GET",
			endpoint:   "/api/status",
			statusCode: "200",
			duration:   5 * time.Millisecond,
		},
		{
			name:       "not found",
			method:     "GET",
			endpoint:   "/api/missing",
			statusCode: "404",
			duration:   time.Millisecond,
		},
		{
			name:       "save tracking",
			method:     "POST",
			endpoint:   "/api/users-devices/save",
			statusCode: "200",
			duration:   50 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(tt.method, tt.endpoint, tt.statusCode))
			RecordAPIRequest(tt.method, tt.endpoint, tt.statusCode, tt.duration)
			after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(tt.method, tt.endpoint, tt.statusCode))
			if got := after - before; got != 1 {
				t.Errorf("APIRequestsTotal delta = %v, want 1", got)
			}
		})
	}
}

// TestMetricGathering verifies collectors pass the prometheus linter
func TestMetricGathering(t *testing.T) {
	RecordPollCycle(time.Millisecond, 1, nil)
	RecordAPIRequest("GET", "/test", "200", time.Millisecond)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Logf("Lint errors (may be expected): %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem: %s", p.Text)
	}
}

func BenchmarkRecordPollCycle(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordPollCycle(100*time.Millisecond, 2, nil)
	}
}

func BenchmarkRecordPublish(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordPublish(5*time.Millisecond, nil)
	}
}
