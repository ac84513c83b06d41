// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package models defines the canonical data structures shared across Nuntius:
// the normalized playback session, its identity keys, and the pure formatting
// helpers the bridge and the status API both rely on.
package models

import (
	"strings"
	"time"
)

// Status is the normalized playback state of a session.
type Status string

// Playback states as reported by the media server, normalized.
const (
	StatusPlaying   Status = "playing"
	StatusPaused    Status = "paused"
	StatusBuffering Status = "buffering"
	StatusStopped   Status = "stopped"
	StatusUnknown   Status = "unknown"
)

// ParseStatus normalizes a raw player state string to a Status.
// Unrecognized states map to StatusUnknown, never an error.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "playing":
		return StatusPlaying
	case "paused":
		return StatusPaused
	case "buffering":
		return StatusBuffering
	case "stopped":
		return StatusStopped
	default:
		return StatusUnknown
	}
}

// Defaults applied by the extractor when the source omits a field.
const (
	DefaultTitle  = "Unknown"
	DefaultArtist = "Unknown Artist"
	DefaultAlbum  = "Unknown Album"
	DefaultUser   = "Unknown"
	DefaultDevice = "unknown"
)

// Session is one currently-playing-or-paused track, reconstructed fresh on
// every poll. Sessions are value objects: never mutated in place, superseded
// entirely each cycle.
//
// Two identities matter and they are intentionally different:
//   - ChangeKey() groups by (user, sessionKey-or-title) and identifies "the
//     same logical playback" for change detection.
//   - DeviceKey() groups by (user, device) and identifies "the same
//     observation surface" for sensors and the session summary.
type Session struct {
	Status          Status  `json:"status"`
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	Album           string  `json:"album"`
	DurationMs      int64   `json:"duration_ms"`
	PositionMs      int64   `json:"position_ms"`
	ProgressPercent float64 `json:"progress_percent"`

	User           string `json:"user"`
	Device         string `json:"device"`
	DeviceOriginal string `json:"device_original,omitempty"`
	SessionKey     string `json:"session_key,omitempty"`

	ThumbURL    string `json:"thumb_url,omitempty"`
	Year        int    `json:"year,omitempty"`
	TrackNumber int    `json:"track_number,omitempty"`
	DiscNumber  int    `json:"disc_number,omitempty"`
	BitrateKbps int    `json:"bitrate_kbps,omitempty"`
	Codec       string `json:"codec,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// ChangeKey returns the change-tracking identity: user plus session key,
// falling back to title when the source assigned no key.
func (s *Session) ChangeKey() string {
	k := s.SessionKey
	if k == "" {
		k = s.Title
	}
	return s.User + "_" + k
}

// DeviceKey returns the (user, device) identity used for sensors and the
// UI session projection.
func (s *Session) DeviceKey() string {
	return s.User + "_" + s.Device
}

// Progress computes the played percentage from position and duration.
// Returns 0 when duration is zero or negative.
func Progress(positionMs, durationMs int64) float64 {
	if durationMs <= 0 {
		return 0
	}
	return float64(positionMs) / float64(durationMs) * 100
}

// Stopped returns the synthetic session published once per idle transition,
// when the active batch goes empty.
func Stopped(now time.Time) Session {
	return Session{
		Status:    StatusStopped,
		Title:     "",
		User:      "",
		Device:    "",
		Timestamp: now,
	}
}
