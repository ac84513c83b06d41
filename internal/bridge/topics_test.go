// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package bridge

import (
	"testing"

	"github.com/tomtom215/nuntius/internal/models"
)

func TestRouteTopic(t *testing.T) {
	sess := &models.Session{User: "bob", Device: "kitchen_sonos", SessionKey: "42"}

	tests := []struct {
		name     string
		strategy string
		want     string
	}{
		{"single", TopicSingle, "nowplaying"},
		{"per user", TopicPerUser, "nowplaying/bob"},
		{"per device", TopicPerDevice, "nowplaying/session_42"},
		{"hierarchical", TopicHierarchical, "nowplaying/bob/session_42"},
		{"user device track", TopicUserDeviceTrack, "nowplaying/bob/kitchen_sonos/DATA"},
		{"unknown strategy falls back to single", "round_robin", "nowplaying"},
		{"empty strategy falls back to single", "", "nowplaying"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RouteTopic("nowplaying", tt.strategy, sess); got != tt.want {
				t.Errorf("RouteTopic(%q) = %q, want %q", tt.strategy, got, tt.want)
			}
		})
	}
}

func TestRouteTopic_SanitizesSegments(t *testing.T) {
	sess := &models.Session{User: "bob smith", Device: "Bob's iPhone", SessionKey: "7"}

	if got, want := RouteTopic("nowplaying", TopicPerUser, sess), "nowplaying/bob_smith"; got != want {
		t.Errorf("per_user topic = %q, want %q", got, want)
	}
	if got, want := RouteTopic("nowplaying", TopicUserDeviceTrack, sess), "nowplaying/bob_smith/Bob's_iPhone/DATA"; got != want {
		t.Errorf("user_device_track topic = %q, want %q", got, want)
	}
}

func TestRouteTopic_MissingSessionKey(t *testing.T) {
	sess := &models.Session{User: "alice", Device: "office"}

	if got, want := RouteTopic("nowplaying", TopicPerDevice, sess), "nowplaying/session_unknown"; got != want {
		t.Errorf("per_device topic = %q, want %q", got, want)
	}
	if got, want := RouteTopic("nowplaying", TopicHierarchical, sess), "nowplaying/alice/session_unknown"; got != want {
		t.Errorf("hierarchical topic = %q, want %q", got, want)
	}
}
