// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package plex

import (
	"testing"
	"time"

	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/models"
)

func testExtractor() *Extractor {
	return NewExtractor(&config.PlexConfig{
		URL:     "http://plex.local:32400/",
		Token:   "xyz-token",
		Timeout: 30 * time.Second,
	})
}

func TestExtractor_Extract(t *testing.T) {
	raw := &Session{
		SessionKey:       "42",
		RatingKey:        "1001",
		Type:             TypeTrack,
		Title:            "Paranoid Android",
		GrandparentTitle: "Radiohead",
		ParentTitle:      "OK Computer",
		Index:            2,
		ParentIndex:      1,
		Year:             1997,
		Thumb:            "/library/metadata/1001/thumb/123",
		Duration:         387000,
		ViewOffset:       96750,
		User:             &User{ID: 7, Title: "alice"},
		Player: &Player{
			State: "playing",
			Title: "Living Room Sonos",
		},
		Media: []Media{{Bitrate: 320, AudioCodec: "flac"}},
	}

	sess, err := testExtractor().Extract(raw)
	assertNoError(t, err, "Extract()")

	if sess.Status != models.StatusPlaying {
		t.Errorf("Status = %q, want %q", sess.Status, models.StatusPlaying)
	}
	assertStringField(t, sess.Title, "Paranoid Android", "Title")
	assertStringField(t, sess.Artist, "Radiohead", "Artist")
	assertStringField(t, sess.Album, "OK Computer", "Album")
	assertStringField(t, sess.User, "alice", "User")
	assertStringField(t, sess.SessionKey, "42", "SessionKey")
	assertStringField(t, sess.Device, "Living_Room_Sonos", "Device")
	assertStringField(t, sess.DeviceOriginal, "Living Room Sonos", "DeviceOriginal")
	assertStringField(t, sess.ThumbURL, "http://plex.local:32400/library/metadata/1001/thumb/123?X-Plex-Token=xyz-token", "ThumbURL")

	if sess.DurationMs != 387000 {
		t.Errorf("DurationMs = %d, want 387000", sess.DurationMs)
	}
	if sess.PositionMs != 96750 {
		t.Errorf("PositionMs = %d, want 96750", sess.PositionMs)
	}
	if sess.ProgressPercent != 25 {
		t.Errorf("ProgressPercent = %v, want 25", sess.ProgressPercent)
	}
	if sess.TrackNumber != 2 {
		t.Errorf("TrackNumber = %d, want 2", sess.TrackNumber)
	}
	if sess.DiscNumber != 1 {
		t.Errorf("DiscNumber = %d, want 1", sess.DiscNumber)
	}
	if sess.Year != 1997 {
		t.Errorf("Year = %d, want 1997", sess.Year)
	}
	if sess.BitrateKbps != 320 {
		t.Errorf("BitrateKbps = %d, want 320", sess.BitrateKbps)
	}
	assertStringField(t, sess.Codec, "flac", "Codec")
	if sess.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestExtractor_Extract_Defaults(t *testing.T) {
	sess, err := testExtractor().Extract(&Session{Type: TypeTrack})
	assertNoError(t, err, "Extract() bare session")

	if sess.Status != models.StatusUnknown {
		t.Errorf("Status = %q, want %q", sess.Status, models.StatusUnknown)
	}
	assertStringField(t, sess.Title, models.DefaultTitle, "Title")
	assertStringField(t, sess.Artist, models.DefaultArtist, "Artist")
	assertStringField(t, sess.Album, models.DefaultAlbum, "Album")
	assertStringField(t, sess.User, models.DefaultUser, "User")
	assertStringField(t, sess.Device, models.DefaultDevice, "Device")
	assertStringField(t, sess.ThumbURL, "", "ThumbURL")
	if sess.ProgressPercent != 0 {
		t.Errorf("ProgressPercent = %v, want 0", sess.ProgressPercent)
	}
}

func TestExtractor_Extract_NilSession(t *testing.T) {
	_, err := testExtractor().Extract(nil)
	assertError(t, err, "Extract(nil)")
}

func TestResolveDevice(t *testing.T) {
	tests := []struct {
		name string
		raw  Session
		want string
	}{
		{
			name: "player title wins",
			raw: Session{Player: &Player{
				Title:    "Bob's iPhone",
				Device:   "iPhone",
				Product:  "Plex for iOS",
				Platform: "iOS",
			}},
			want: "Bob's iPhone",
		},
		{
			name: "falls back to player device",
			raw: Session{Player: &Player{
				Device:   "iPhone",
				Product:  "Plex for iOS",
				Platform: "iOS",
			}},
			want: "iPhone",
		},
		{
			name: "falls back to player product",
			raw: Session{Player: &Player{
				Product:  "Plex for iOS",
				Platform: "iOS",
			}},
			want: "Plex for iOS",
		},
		{
			name: "falls back to player platform",
			raw:  Session{Player: &Player{Platform: "iOS"}},
			want: "iOS",
		},
		{
			name: "falls back to session-level player title",
			raw:  Session{Player: &Player{}, PlayerTitle: "Kitchen Speaker"},
			want: "Kitchen Speaker",
		},
		{
			name: "falls back to session-level device",
			raw:  Session{Device: "chromecast"},
			want: "chromecast",
		},
		{
			name: "no player information at all",
			raw:  Session{},
			want: models.DefaultDevice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveDevice(&tt.raw); got != tt.want {
				t.Errorf("resolveDevice() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractor_Extract_DeviceSanitized(t *testing.T) {
	raw := &Session{
		Type:   TypeTrack,
		Player: &Player{State: "paused", Title: "Bob's iPhone +/#$"},
	}

	sess, err := testExtractor().Extract(raw)
	assertNoError(t, err, "Extract()")

	assertStringField(t, sess.Device, "Bob's_iPhone_", "Device")
	assertStringField(t, sess.DeviceOriginal, "Bob's iPhone +/#$", "DeviceOriginal")
	if sess.Status != models.StatusPaused {
		t.Errorf("Status = %q, want %q", sess.Status, models.StatusPaused)
	}
}

func TestExtractor_ArtworkFallback(t *testing.T) {
	e := testExtractor()

	t.Run("prefers thumb", func(t *testing.T) {
		sess, err := e.Extract(&Session{Thumb: "/thumb/1", Art: "/art/1"})
		assertNoError(t, err, "Extract()")
		assertStringField(t, sess.ThumbURL, "http://plex.local:32400/thumb/1?X-Plex-Token=xyz-token", "ThumbURL")
	})

	t.Run("falls back to art", func(t *testing.T) {
		sess, err := e.Extract(&Session{Art: "/art/1"})
		assertNoError(t, err, "Extract()")
		assertStringField(t, sess.ThumbURL, "http://plex.local:32400/art/1?X-Plex-Token=xyz-token", "ThumbURL")
	})
}

func TestExtractor_ExtractBatch(t *testing.T) {
	raws := []Session{
		{Type: TypeTrack, Title: "First", User: &User{Title: "alice"}},
		{Type: TypeTrack, Title: "Second", User: &User{Title: "bob"}},
	}

	out := testExtractor().ExtractBatch(raws)
	if len(out) != 2 {
		t.Fatalf("len(ExtractBatch()) = %d, want 2", len(out))
	}
	assertStringField(t, out[0].Title, "First", "out[0].Title")
	assertStringField(t, out[1].Title, "Second", "out[1].Title")

	if got := testExtractor().ExtractBatch(nil); len(got) != 0 {
		t.Errorf("ExtractBatch(nil) returned %d sessions, want 0", len(got))
	}
}
