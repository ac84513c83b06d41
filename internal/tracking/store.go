// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package tracking accumulates the set of users and devices ever observed
// playing, durable across restarts. The sets only grow: observation is an
// append-only log of identities, not a presence list.
//
// Two backends implement the same Store contract: a JSON file replaced
// atomically on save (the default) and a BadgerDB store for deployments
// that prefer a key-value directory.
package tracking

import (
	"time"

	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/logging"
)

// Store backend names accepted in configuration.
const (
	StoreFile   = "file"
	StoreBadger = "badger"
)

// Store is the durable observation log.
type Store interface {
	// Observe adds the pair to both sets, reporting whether either
	// identity is newly seen. New additions persist immediately when
	// auto-save is on.
	Observe(user, device string) (newUser, newDevice bool)

	// Users returns a sorted copy of the seen-user set.
	Users() []string

	// Devices returns a sorted copy of the seen-device set.
	Devices() []string

	// Snapshot returns sorted copies of both sets plus bookkeeping.
	Snapshot() Snapshot

	// Save persists the current sets.
	Save() error

	// Close releases the backend, saving first where that is meaningful.
	Close() error
}

// Snapshot is a point-in-time copy for external reporting. The slices are
// the caller's to keep.
type Snapshot struct {
	Users       []string  `json:"users"`
	Devices     []string  `json:"devices"`
	UserCount   int       `json:"user_count"`
	DeviceCount int       `json:"device_count"`
	LastSaved   time.Time `json:"last_saved"`
}

// New opens the configured backend. Unknown backend names fall back to the
// file store rather than failing startup.
func New(cfg *config.TrackingConfig) (Store, error) {
	switch cfg.Store {
	case StoreBadger:
		return OpenBadgerStore(cfg)
	case StoreFile, "":
		return NewFileStore(cfg), nil
	default:
		logging.Warn().Str("store", cfg.Store).Msg("Unknown tracking store, using file")
		return NewFileStore(cfg), nil
	}
}
