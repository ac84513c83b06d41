// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package bridge

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/nuntius/internal/models"
)

func decodePayload(t *testing.T, payload []byte) map[string]interface{} {
	t.Helper()
	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload does not decode: %v", err)
	}
	return decoded
}

func TestEncodeSession(t *testing.T) {
	sess := &models.Session{
		Status:          models.StatusPlaying,
		Title:           "Paranoid Android",
		Artist:          "Radiohead",
		Album:           "OK Computer",
		DurationMs:      387000,
		PositionMs:      96750,
		ProgressPercent: 25,
		User:            "alice",
		Device:          "Living_Room_Sonos",
		SessionKey:      "42",
		Timestamp:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	payload, err := encodeSession(sess)
	if err != nil {
		t.Fatalf("encodeSession: %v", err)
	}
	decoded := decodePayload(t, payload)

	if decoded["status"] != "playing" {
		t.Errorf("status = %v, want playing", decoded["status"])
	}
	if decoded["title"] != "Paranoid Android" {
		t.Errorf("title = %v", decoded["title"])
	}
	if decoded["duration_formatted"] != "6:27" {
		t.Errorf("duration_formatted = %v, want 6:27", decoded["duration_formatted"])
	}
	if decoded["position_formatted"] != "1:36" {
		t.Errorf("position_formatted = %v, want 1:36", decoded["position_formatted"])
	}
	if decoded["duration_ms"].(float64) != 387000 {
		t.Errorf("duration_ms = %v", decoded["duration_ms"])
	}
	if decoded["user"] != "alice" {
		t.Errorf("user = %v", decoded["user"])
	}
	if decoded["session_key"] != "42" {
		t.Errorf("session_key = %v", decoded["session_key"])
	}
}

func TestEncodeStopped(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	payload, err := encodeStopped(now)
	if err != nil {
		t.Fatalf("encodeStopped: %v", err)
	}
	decoded := decodePayload(t, payload)

	if decoded["status"] != "stopped" {
		t.Errorf("status = %v, want stopped", decoded["status"])
	}
	if decoded["title"] != "" {
		t.Errorf("title = %v, want empty", decoded["title"])
	}
	if decoded["user"] != "" {
		t.Errorf("user = %v, want empty", decoded["user"])
	}
	if decoded["duration_ms"].(float64) != 0 {
		t.Errorf("duration_ms = %v, want 0", decoded["duration_ms"])
	}
	if decoded["duration_formatted"] != "0:00" {
		t.Errorf("duration_formatted = %v, want 0:00", decoded["duration_formatted"])
	}
	if _, ok := decoded["timestamp"]; !ok {
		t.Error("timestamp missing from stopped payload")
	}
}

func TestEncodeSummary(t *testing.T) {
	sessions := []models.Session{
		{User: "alice", Device: "office", Title: "Angel", Artist: "Massive Attack", Status: models.StatusPlaying, ProgressPercent: 10},
		{User: "alice", Device: "kitchen", Title: "Teardrop", Artist: "Massive Attack", Status: models.StatusPaused, ProgressPercent: 50},
		{User: "bob", Device: "den", Title: "Roads", Artist: "Portishead", Status: models.StatusPlaying, ProgressPercent: 90},
	}

	payload, err := encodeSummary(sessions, time.Now().UTC())
	if err != nil {
		t.Fatalf("encodeSummary: %v", err)
	}
	decoded := decodePayload(t, payload)

	if decoded["active_sessions"].(float64) != 3 {
		t.Errorf("active_sessions = %v, want 3", decoded["active_sessions"])
	}
	users := decoded["users"].([]interface{})
	if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
		t.Errorf("users = %v, want [alice bob]", users)
	}
	digests := decoded["sessions"].([]interface{})
	if len(digests) != 3 {
		t.Fatalf("sessions digest has %d entries, want 3", len(digests))
	}
	first := digests[0].(map[string]interface{})
	if first["title"] != "Angel" || first["status"] != "playing" {
		t.Errorf("first digest = %v", first)
	}
}

func TestEncodeRoster(t *testing.T) {
	payload, err := encodeRoster([]string{"alice", "bob"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("encodeRoster: %v", err)
	}
	decoded := decodePayload(t, payload)

	names := decoded["names"].([]interface{})
	if len(names) != 2 || names[0] != "alice" || names[1] != "bob" {
		t.Errorf("names = %v, want [alice bob]", names)
	}
	if decoded["count"].(float64) != 2 {
		t.Errorf("count = %v, want 2", decoded["count"])
	}
}
