// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package bridge

import (
	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/models"
)

// Session selection strategies. Unrecognized values pass the batch through.
const (
	// SelectAll keeps every session.
	SelectAll = "all"

	// SelectPriorityUser keeps sessions of one configured user, falling
	// back to a single deterministic session when that user is inactive.
	SelectPriorityUser = "priority_user"

	// SelectFirstOnly keeps at most the first session in the batch.
	SelectFirstOnly = "first_only"

	// SelectUserFilter keeps sessions whose user is in the allow-set.
	SelectUserFilter = "user_filter"

	// SelectMostRecent keeps the single session with the greatest playback
	// position.
	SelectMostRecent = "most_recent"
)

// Filter applies the configured multi-session selection policy to each
// poll's batch.
type Filter struct {
	strategy     string
	priorityUser string
	allowed      map[string]struct{}
}

// NewFilter builds a filter from bridge configuration.
func NewFilter(cfg *config.BridgeConfig) *Filter {
	allowed := make(map[string]struct{}, len(cfg.AllowedUsers))
	for _, user := range cfg.AllowedUsers {
		allowed[user] = struct{}{}
	}
	return &Filter{
		strategy:     cfg.SessionStrategy,
		priorityUser: cfg.PriorityUser,
		allowed:      allowed,
	}
}

// Apply selects which sessions from the batch continue through the pipeline.
// The input slice is never mutated.
func (f *Filter) Apply(sessions []models.Session) []models.Session {
	if len(sessions) == 0 {
		return sessions
	}
	switch f.strategy {
	case SelectPriorityUser:
		return f.applyPriorityUser(sessions)
	case SelectFirstOnly:
		return sessions[:1]
	case SelectUserFilter:
		return f.applyUserFilter(sessions)
	case SelectMostRecent:
		return applyMostRecent(sessions)
	default:
		// SelectAll and anything unrecognized pass through.
		return sessions
	}
}

// applyPriorityUser keeps the priority user's sessions. When that user has
// none, one session still flows: the source does not guarantee stable batch
// order, so the fallback picks the lowest session key instead of position.
func (f *Filter) applyPriorityUser(sessions []models.Session) []models.Session {
	var matched []models.Session
	for i := range sessions {
		if sessions[i].User == f.priorityUser {
			matched = append(matched, sessions[i])
		}
	}
	if len(matched) > 0 {
		return matched
	}
	fallback := 0
	for i := 1; i < len(sessions); i++ {
		if sessions[i].SessionKey < sessions[fallback].SessionKey {
			fallback = i
		}
	}
	return sessions[fallback : fallback+1]
}

// applyUserFilter keeps allow-listed users. An empty allow-set disables
// filtering rather than dropping everything.
func (f *Filter) applyUserFilter(sessions []models.Session) []models.Session {
	if len(f.allowed) == 0 {
		return sessions
	}
	kept := make([]models.Session, 0, len(sessions))
	for i := range sessions {
		if _, ok := f.allowed[sessions[i].User]; ok {
			kept = append(kept, sessions[i])
		}
	}
	return kept
}

// applyMostRecent keeps the session with the greatest playback position.
// Ties keep the earliest in batch order.
func applyMostRecent(sessions []models.Session) []models.Session {
	if len(sessions) <= 1 {
		return sessions
	}
	best := 0
	for i := 1; i < len(sessions); i++ {
		if sessions[i].PositionMs > sessions[best].PositionMs {
			best = i
		}
	}
	return sessions[best : best+1]
}
