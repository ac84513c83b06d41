// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package tracking

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
)

// fileState is the on-disk JSON shape. Slices are kept sorted so that
// successive saves of the same sets produce identical files.
type fileState struct {
	Users     []string  `json:"users"`
	Devices   []string  `json:"devices"`
	LastSaved time.Time `json:"last_saved"`
}

// FileStore keeps both sets in memory and mirrors them to a single JSON
// file. Saves write a temp file and rename it over the target, so readers
// never see a partial write.
type FileStore struct {
	mu        sync.Mutex
	saveMu    sync.Mutex
	path      string
	autoSave  bool
	users     map[string]struct{}
	devices   map[string]struct{}
	lastSaved time.Time
}

// NewFileStore loads any previous state from cfg.Path and returns a ready
// store. A missing or unreadable file is a fresh start, never an error.
func NewFileStore(cfg *config.TrackingConfig) *FileStore {
	s := &FileStore{
		path:     cfg.Path,
		autoSave: cfg.AutoSave,
		users:    make(map[string]struct{}),
		devices:  make(map[string]struct{}),
	}
	s.load()
	return s
}

// load merges durable state into the in-memory sets.
func (s *FileStore) load() {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		logging.Warn().Err(err).Str("path", s.path).Msg("Tracking state unreadable, starting empty")
		return
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		logging.Warn().Err(err).Str("path", s.path).Msg("Tracking state malformed, starting empty")
		return
	}

	s.mu.Lock()
	for _, user := range state.Users {
		s.users[user] = struct{}{}
	}
	for _, device := range state.Devices {
		s.devices[device] = struct{}{}
	}
	s.lastSaved = state.LastSaved
	s.syncGauges()
	users, devices := len(s.users), len(s.devices)
	s.mu.Unlock()

	logging.Info().
		Int("users", users).
		Int("devices", devices).
		Str("path", s.path).
		Msg("Restored tracking state")
}

// Observe implements Store.
func (s *FileStore) Observe(user, device string) (newUser, newDevice bool) {
	s.mu.Lock()
	if _, ok := s.users[user]; !ok {
		s.users[user] = struct{}{}
		newUser = true
	}
	if _, ok := s.devices[device]; !ok {
		s.devices[device] = struct{}{}
		newDevice = true
	}
	s.syncGauges()
	s.mu.Unlock()

	if (newUser || newDevice) && s.autoSave {
		if err := s.Save(); err != nil {
			logging.Error().Err(err).Msg("Tracking auto-save failed")
		}
	}
	return newUser, newDevice
}

// Users implements Store.
func (s *FileStore) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.users)
}

// Devices implements Store.
func (s *FileStore) Devices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.devices)
}

// Snapshot implements Store.
func (s *FileStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Users:       sortedKeys(s.users),
		Devices:     sortedKeys(s.devices),
		UserCount:   len(s.users),
		DeviceCount: len(s.devices),
		LastSaved:   s.lastSaved,
	}
}

// Save implements Store. The saveMu serializes concurrent savers (the
// reconcile loop and a forced save from the API) over the shared temp file.
func (s *FileStore) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	state := fileState{
		Users:     sortedKeys(s.users),
		Devices:   sortedKeys(s.devices),
		LastSaved: time.Now().UTC(),
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		metrics.TrackingSaves.WithLabelValues("failure").Inc()
		return fmt.Errorf("marshal tracking state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		metrics.TrackingSaves.WithLabelValues("failure").Inc()
		return fmt.Errorf("write tracking state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		metrics.TrackingSaves.WithLabelValues("failure").Inc()
		return fmt.Errorf("replace tracking state: %w", err)
	}

	s.mu.Lock()
	s.lastSaved = state.LastSaved
	s.mu.Unlock()
	metrics.TrackingSaves.WithLabelValues("success").Inc()
	return nil
}

// Close implements Store with a final save.
func (s *FileStore) Close() error {
	return s.Save()
}

// syncGauges is called with s.mu held.
func (s *FileStore) syncGauges() {
	metrics.TrackingUsers.Set(float64(len(s.users)))
	metrics.TrackingDevices.Set(float64(len(s.devices)))
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
