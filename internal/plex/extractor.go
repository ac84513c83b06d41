// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package plex

import (
	"errors"
	"strings"
	"time"

	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/models"
)

// Extractor normalizes raw session metadata into canonical sessions.
// It needs the server URL and token to build absolute thumbnail URLs,
// since the API reports artwork as server-relative paths.
type Extractor struct {
	serverURL string
	token     string
}

// NewExtractor creates an extractor bound to the configured server.
func NewExtractor(cfg *config.PlexConfig) *Extractor {
	return &Extractor{
		serverURL: strings.TrimRight(cfg.URL, "/"),
		token:     cfg.Token,
	}
}

// Extract normalizes one raw session record. Missing fields are defaulted,
// never fatal: an unknown title becomes "Unknown", a missing player degrades
// the device name through the resolution chain down to "unknown".
func (e *Extractor) Extract(raw *Session) (*models.Session, error) {
	if raw == nil {
		return nil, errors.New("nil session metadata")
	}

	sess := &models.Session{
		Status:     models.StatusUnknown,
		Title:      raw.Title,
		Artist:     raw.GrandparentTitle,
		Album:      raw.ParentTitle,
		DurationMs: raw.Duration,
		PositionMs: raw.ViewOffset,
		SessionKey: raw.SessionKey,
		Year:       raw.Year,
		Timestamp:  time.Now().UTC(),
	}

	if raw.Player != nil {
		sess.Status = models.ParseStatus(raw.Player.State)
	}

	if sess.Title == "" {
		sess.Title = models.DefaultTitle
	}
	if sess.Artist == "" {
		sess.Artist = models.DefaultArtist
	}
	if sess.Album == "" {
		sess.Album = models.DefaultAlbum
	}

	sess.User = models.DefaultUser
	if raw.User != nil && raw.User.Title != "" {
		sess.User = raw.User.Title
	}

	device := resolveDevice(raw)
	sess.DeviceOriginal = device
	sess.Device = models.SanitizeTopicSegment(device)

	sess.ProgressPercent = models.Progress(sess.PositionMs, sess.DurationMs)
	sess.ThumbURL = e.artworkURL(raw)

	// Plex numbers tracks bottom-up: index is the track on the album,
	// parentIndex the disc it lives on.
	sess.TrackNumber = raw.Index
	sess.DiscNumber = raw.ParentIndex

	if len(raw.Media) > 0 {
		sess.BitrateKbps = raw.Media[0].Bitrate
		sess.Codec = raw.Media[0].AudioCodec
	}

	return sess, nil
}

// ExtractBatch normalizes a batch of raw sessions, preserving order.
// Records that fail extraction are logged and skipped, never aborting
// the batch.
func (e *Extractor) ExtractBatch(raws []Session) []models.Session {
	out := make([]models.Session, 0, len(raws))
	for i := range raws {
		sess, err := e.Extract(&raws[i])
		if err != nil {
			logging.Warn().Err(err).Str("rating_key", raws[i].RatingKey).Msg("Skipping session, extraction failed")
			continue
		}
		out = append(out, *sess)
	}
	return out
}

// resolveDevice walks the device-name fallback chain, first non-empty wins:
// player title, player device, player product, player platform, then the
// flattened session-level hints, then the literal "unknown".
func resolveDevice(raw *Session) string {
	if p := raw.Player; p != nil {
		for _, candidate := range []string{p.Title, p.Device, p.Product, p.Platform} {
			if candidate != "" {
				return candidate
			}
		}
	}
	if raw.PlayerTitle != "" {
		return raw.PlayerTitle
	}
	if raw.Device != "" {
		return raw.Device
	}
	return models.DefaultDevice
}

// artworkURL builds an absolute, authenticated artwork URL from the
// session's thumbnail path, falling back to the album art path. Returns
// empty when the session carries no artwork.
func (e *Extractor) artworkURL(raw *Session) string {
	path := raw.Thumb
	if path == "" {
		path = raw.Art
	}
	if path == "" {
		return ""
	}
	return e.serverURL + path + "?X-Plex-Token=" + e.token
}
