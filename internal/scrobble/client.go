// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package scrobble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shkh/lastfm-go/lastfm"
	"golang.org/x/time/rate"

	"github.com/tomtom215/nuntius/internal/config"
)

// ErrNotAuthenticated is returned when no session key is configured.
var ErrNotAuthenticated = errors.New("lastfm: not authenticated")

// Track is the metadata submitted with a scrobble or now-playing update.
type Track struct {
	Artist   string
	Title    string
	Album    string
	Duration time.Duration
}

// Client wraps the Last.fm API for scrobbling. All calls are rate limited
// and bounded by the caller's context.
type Client struct {
	api        *lastfm.Api
	sessionKey string
	limiter    *rate.Limiter
}

// NewClient builds a Last.fm client from configuration. The session key is
// expected pre-authorized; Nuntius never runs the interactive auth flow.
func NewClient(cfg *config.LastFMConfig) *Client {
	api := lastfm.New(cfg.APIKey, cfg.APISecret)
	if cfg.SessionKey != "" {
		api.SetSession(cfg.SessionKey)
	}
	return &Client{
		api:        api,
		sessionKey: cfg.SessionKey,
		// Last.fm asks clients to stay under 5 requests per second.
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

// Authenticated reports whether a session key is configured.
func (c *Client) Authenticated() bool {
	return c.sessionKey != ""
}

// UpdateNowPlaying sends a now-playing notification. The downstream call is
// idempotent, so callers may fire it on every poll.
func (c *Client) UpdateNowPlaying(ctx context.Context, track Track) error {
	if !c.Authenticated() {
		return ErrNotAuthenticated
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.call(ctx, func() error {
		if _, err := c.api.Track.UpdateNowPlaying(c.params(track, nil)); err != nil {
			return fmt.Errorf("update now playing: %w", err)
		}
		return nil
	})
}

// Scrobble submits one play with the given start timestamp.
func (c *Client) Scrobble(ctx context.Context, track Track, at time.Time) error {
	if !c.Authenticated() {
		return ErrNotAuthenticated
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.call(ctx, func() error {
		if _, err := c.api.Track.Scrobble(c.params(track, &at)); err != nil {
			return fmt.Errorf("scrobble: %w", err)
		}
		return nil
	})
}

// params builds the API parameter map shared by both submission calls.
func (c *Client) params(track Track, at *time.Time) lastfm.P {
	params := lastfm.P{
		"artist": track.Artist,
		"track":  track.Title,
	}
	if at != nil {
		params["timestamp"] = at.Unix()
	}
	if track.Album != "" {
		params["album"] = track.Album
	}
	if track.Duration > 0 {
		params["duration"] = int(track.Duration.Seconds())
	}
	return params
}

// call runs fn in its own goroutine. The Last.fm library issues HTTP
// requests without context support, so this is the only way to keep a hung
// call from stalling the poll loop past its deadline.
func (c *Client) call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
