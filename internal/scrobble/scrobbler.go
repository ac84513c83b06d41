// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package scrobble submits plays to Last.fm: a now-playing update on every
// poll where a track is playing, and at most one scrobble per play once the
// play-through threshold is met. A bounded dedup ledger keyed by
// (artist, title, session) suppresses resubmission across polls.
//
// Every downstream error here is logged and swallowed. Scrobbling is a side
// effect of the bridge, never a reason for it to stop.
package scrobble

import (
	"context"
	"time"

	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
	"github.com/tomtom215/nuntius/internal/models"
)

// Submitter is the downstream submission surface, implemented by Client and
// faked in tests.
type Submitter interface {
	UpdateNowPlaying(ctx context.Context, track Track) error
	Scrobble(ctx context.Context, track Track, at time.Time) error
}

// Scrobbler applies the play-through policy to playing sessions and submits
// through a Submitter. It implements the bridge's scrobbler contract.
type Scrobbler struct {
	cfg    *config.LastFMConfig
	client Submitter
	ledger *Ledger
}

// New builds a scrobbler around the given submitter.
func New(cfg *config.LastFMConfig, client Submitter) *Scrobbler {
	return &Scrobbler{
		cfg:    cfg,
		client: client,
		ledger: NewLedger(DefaultLedgerCap),
	}
}

// Observe consumes one playing session: fires the now-playing update, then
// scrobbles when the session qualifies and was not already submitted.
func (s *Scrobbler) Observe(ctx context.Context, sess *models.Session) {
	if sess.Status != models.StatusPlaying {
		return
	}

	track := Track{
		Artist:   sess.Artist,
		Title:    sess.Title,
		Album:    sess.Album,
		Duration: time.Duration(sess.DurationMs) * time.Millisecond,
	}

	if err := s.client.UpdateNowPlaying(ctx, track); err != nil {
		logging.Debug().Err(err).
			Str("artist", track.Artist).
			Str("title", track.Title).
			Msg("Now-playing update failed")
	}

	if result := s.qualify(sess); result != "" {
		metrics.RecordScrobble(result)
		return
	}

	key := Key{Artist: sess.Artist, Title: sess.Title, SessionKey: sess.SessionKey}
	if s.ledger.Seen(key) {
		metrics.RecordScrobble("duplicate")
		return
	}

	if err := s.client.Scrobble(ctx, track, time.Now().UTC()); err != nil {
		metrics.RecordScrobble("failure")
		logging.Warn().Err(err).
			Str("artist", track.Artist).
			Str("title", track.Title).
			Msg("Scrobble failed")
		return
	}

	s.ledger.Record(key, time.Now().UTC())
	metrics.RecordScrobble("submitted")
	logging.Info().
		Str("user", sess.User).
		Str("artist", track.Artist).
		Str("title", track.Title).
		Msg("Scrobbled track")
}

// qualify checks the play-through policy. It returns the rejection reason,
// or "" when the session is scrobbleable. The threshold is a 0..1 fraction
// of the track, compared against the percent-scaled progress.
func (s *Scrobbler) qualify(sess *models.Session) string {
	if sess.Artist == "" || sess.Title == "" {
		return "missing_tags"
	}
	if sess.DurationMs < int64(s.cfg.MinDurationSeconds)*1000 {
		return "too_short"
	}
	if sess.ProgressPercent/100 < s.cfg.ScrobbleThreshold {
		return "below_threshold"
	}
	return ""
}

// LedgerLen reports the dedup ledger size for the status API.
func (s *Scrobbler) LedgerLen() int {
	return s.ledger.Len()
}
