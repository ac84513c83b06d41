// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package bridge

import (
	"github.com/tomtom215/nuntius/internal/models"
)

// DefaultPositionDriftMs is the position jump, in milliseconds, beyond which
// an otherwise-unchanged session is republished. Steady playback advances by
// about one poll interval per cycle and stays under it; a seek jumps past it.
const DefaultPositionDriftMs = 5000

// Detector decides whether a session's current state differs enough from the
// last recorded state to warrant publication. It is a pure predicate: the
// caller owns the recorded-state map and its updates.
type Detector struct {
	driftMs int64
}

// NewDetector returns a detector with the given position drift threshold.
// Non-positive thresholds fall back to DefaultPositionDriftMs.
func NewDetector(driftMs int64) *Detector {
	if driftMs <= 0 {
		driftMs = DefaultPositionDriftMs
	}
	return &Detector{driftMs: driftMs}
}

// ShouldPublish reports whether current warrants publication given the last
// recorded state for the same logical session. A nil last means the session
// has not been seen and always publishes. The drift comparison is strictly
// greater-than: a jump of exactly the threshold does not trigger.
func (d *Detector) ShouldPublish(current, last *models.Session) bool {
	if last == nil {
		return true
	}
	if current.Status != last.Status {
		return true
	}
	if current.Title != last.Title || current.Artist != last.Artist {
		return true
	}
	drift := current.PositionMs - last.PositionMs
	if drift < 0 {
		drift = -drift
	}
	return drift > d.driftMs
}
