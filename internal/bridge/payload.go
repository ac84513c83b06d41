// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package bridge

import (
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/nuntius/internal/models"
)

// trackPayload is the wire form of one session publish: the canonical record
// plus human-readable clock strings for dashboard templates.
type trackPayload struct {
	models.Session
	DurationFormatted string `json:"duration_formatted"`
	PositionFormatted string `json:"position_formatted"`
}

// encodeSession renders one session to its JSON publish payload.
func encodeSession(sess *models.Session) ([]byte, error) {
	return json.Marshal(trackPayload{
		Session:           *sess,
		DurationFormatted: models.FormatDuration(sess.DurationMs),
		PositionFormatted: models.FormatDuration(sess.PositionMs),
	})
}

// encodeStopped renders the synthetic nothing-is-playing record.
func encodeStopped(now time.Time) ([]byte, error) {
	stopped := models.Stopped(now)
	return encodeSession(&stopped)
}

// summaryDigest is one session's line in the batch summary.
type summaryDigest struct {
	User            string        `json:"user"`
	Device          string        `json:"device"`
	Title           string        `json:"title"`
	Artist          string        `json:"artist"`
	Status          models.Status `json:"status"`
	ProgressPercent float64       `json:"progress_percent"`
}

// summaryPayload aggregates the whole batch into one publish for consumers
// that want every stream on a single topic.
type summaryPayload struct {
	ActiveSessions int             `json:"active_sessions"`
	Users          []string        `json:"users"`
	Sessions       []summaryDigest `json:"sessions"`
	Timestamp      time.Time       `json:"timestamp"`
}

// encodeSummary renders the batch summary: active count, distinct users in
// first-seen order, and a per-session digest.
func encodeSummary(sessions []models.Session, now time.Time) ([]byte, error) {
	users := make([]string, 0, len(sessions))
	seen := make(map[string]struct{}, len(sessions))
	digests := make([]summaryDigest, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		if _, ok := seen[s.User]; !ok {
			seen[s.User] = struct{}{}
			users = append(users, s.User)
		}
		digests = append(digests, summaryDigest{
			User:            s.User,
			Device:          s.Device,
			Title:           s.Title,
			Artist:          s.Artist,
			Status:          s.Status,
			ProgressPercent: s.ProgressPercent,
		})
	}
	return json.Marshal(summaryPayload{
		ActiveSessions: len(sessions),
		Users:          users,
		Sessions:       digests,
		Timestamp:      now,
	})
}

// rosterPayload carries one observed-identity set, users or devices.
type rosterPayload struct {
	Names     []string  `json:"names"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// encodeRoster renders an observed-identity set. Callers pass names already
// sorted by the tracking store's snapshot.
func encodeRoster(names []string, now time.Time) ([]byte, error) {
	return json.Marshal(rosterPayload{
		Names:     names,
		Count:     len(names),
		Timestamp: now,
	})
}
