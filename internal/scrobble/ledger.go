// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package scrobble

import (
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/nuntius/internal/metrics"
)

// DefaultLedgerCap bounds the dedup ledger. When an insert pushes the ledger
// past the cap, the oldest half is evicted in one sweep.
const DefaultLedgerCap = 100

// Key identifies one scrobbled play. The session key distinguishes the same
// track played again in a different session, which is a legitimate rescrobble.
type Key struct {
	Artist     string
	Title      string
	SessionKey string
}

// Ledger remembers which plays were already submitted, so a track observed
// across many polls scrobbles at most once per session.
type Ledger struct {
	mu      sync.Mutex
	entries map[Key]time.Time
	cap     int
}

// NewLedger returns a ledger holding at most capacity entries before the
// half-eviction sweep. Non-positive capacities fall back to DefaultLedgerCap.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultLedgerCap
	}
	return &Ledger{
		entries: make(map[Key]time.Time),
		cap:     capacity,
	}
}

// Seen reports whether the key was already recorded.
func (l *Ledger) Seen(key Key) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[key]
	return ok
}

// Record stores the key with its submission time, evicting the oldest half
// of the ledger when the insert pushes it past capacity.
func (l *Ledger) Record(key Key, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[key] = at
	if len(l.entries) > l.cap {
		l.evictOldest(l.cap / 2)
	}
	metrics.ScrobbleLedgerEntries.Set(float64(len(l.entries)))
}

// evictOldest removes the n entries with the earliest timestamps in one
// pass. Caller holds the lock.
func (l *Ledger) evictOldest(n int) {
	type stamped struct {
		key Key
		at  time.Time
	}
	all := make([]stamped, 0, len(l.entries))
	for key, at := range l.entries {
		all = append(all, stamped{key: key, at: at})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })

	if n > len(all) {
		n = len(all)
	}
	for _, entry := range all[:n] {
		delete(l.entries, entry.key)
	}
	metrics.ScrobbleLedgerEvictions.Add(float64(n))
}

// Len returns the current entry count.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
