// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package bridge

import (
	"sort"
	"sync"

	"github.com/tomtom215/nuntius/internal/models"
)

// Phase is the bridge's publish lifecycle across poll cycles.
type Phase int

// Lifecycle phases. The tracker starts in PhasePublishing so that an empty
// first poll still announces the stopped state once.
const (
	// PhasePublishing: the last poll saw at least one active session.
	PhasePublishing Phase = iota

	// PhaseJustStopped: the batch went empty this poll and the stopped
	// sentinel went out.
	PhaseJustStopped

	// PhaseIdle: still empty; the sentinel is not repeated.
	PhaseIdle
)

// String implements fmt.Stringer for logs and the status API.
func (p Phase) String() string {
	switch p {
	case PhasePublishing:
		return "publishing"
	case PhaseJustStopped:
		return "just_stopped"
	case PhaseIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// StateTracker owns the per-session record of the last observed state and
// the device-scoped projection served to the status API and websocket feed.
// The reconciliation loop is the only writer; concurrent readers go through
// the snapshot accessors, which copy under a read lock.
type StateTracker struct {
	mu    sync.RWMutex
	last  map[string]models.Session // ChangeKey -> state as of the previous poll
	view  map[string]models.Session // DeviceKey -> latest active session
	phase Phase
}

// NewStateTracker returns an empty tracker in PhasePublishing.
func NewStateTracker() *StateTracker {
	return &StateTracker{
		last: make(map[string]models.Session),
		view: make(map[string]models.Session),
	}
}

// Last returns the state recorded for a change identity on a previous poll.
func (t *StateTracker) Last(key string) (models.Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sess, ok := t.last[key]
	return sess, ok
}

// Record stores the session under both of its identities. Called once per
// active session per poll, after change detection has run against the prior
// record.
func (t *StateTracker) Record(sess models.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[sess.ChangeKey()] = sess
	t.view[sess.DeviceKey()] = sess
}

// MarkActive notes that the current poll saw at least one session.
func (t *StateTracker) MarkActive() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = PhasePublishing
}

// MarkStopped advances the lifecycle on an empty poll and reports whether
// the stopped sentinel should be published now. The sentinel goes out
// exactly once per outage, on the PhasePublishing to PhaseJustStopped edge.
func (t *StateTracker) MarkStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.phase {
	case PhasePublishing:
		t.phase = PhaseJustStopped
		return true
	case PhaseJustStopped:
		t.phase = PhaseIdle
	}
	return false
}

// Phase returns the current lifecycle phase.
func (t *StateTracker) Phase() Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phase
}

// Prune drops records whose identity is absent from the current poll's
// batch. Returns the number of ended logical sessions removed.
func (t *StateTracker) Prune(activeChange, activeDevice map[string]struct{}) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	dropped := 0
	for key := range t.last {
		if _, ok := activeChange[key]; !ok {
			delete(t.last, key)
			dropped++
		}
	}
	for key := range t.view {
		if _, ok := activeDevice[key]; !ok {
			delete(t.view, key)
		}
	}
	return dropped
}

// Sessions returns a copy of the device-scoped projection, sorted by user
// then device for stable rendering.
func (t *StateTracker) Sessions() []models.Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.Session, 0, len(t.view))
	for _, sess := range t.view {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].User != out[j].User {
			return out[i].User < out[j].User
		}
		return out[i].Device < out[j].Device
	})
	return out
}

// ActiveCount returns the number of sessions in the current projection.
func (t *StateTracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.view)
}
