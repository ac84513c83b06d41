// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package tracking

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
)

// Key layout inside the tracking database. Identity keys carry the
// first-seen timestamp as their value.
const (
	userKeyPrefix    = "user:"
	deviceKeyPrefix  = "device:"
	metaLastSavedKey = "meta:last_saved"
)

// BadgerStore keeps the sets in memory for cheap reads and writes every new
// identity through to BadgerDB immediately. Unlike the file store, writes
// are durable as they happen, so the auto-save setting has no effect here
// and Save only refreshes the last-saved marker.
type BadgerStore struct {
	mu        sync.Mutex
	db        *badger.DB
	users     map[string]struct{}
	devices   map[string]struct{}
	lastSaved time.Time
}

// OpenBadgerStore opens the database directory at cfg.Path and loads the
// stored sets.
func OpenBadgerStore(cfg *config.TrackingConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	return NewBadgerStore(db), nil
}

// NewBadgerStore wraps an already-open database. The caller keeps ownership
// of nothing; Close closes the database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	s := &BadgerStore{
		db:      db,
		users:   make(map[string]struct{}),
		devices: make(map[string]struct{}),
	}
	if err := s.load(); err != nil {
		logging.Warn().Err(err).Msg("Tracking scan failed, starting empty")
	}

	s.mu.Lock()
	s.syncGauges()
	users, devices := len(s.users), len(s.devices)
	s.mu.Unlock()
	if users > 0 || devices > 0 {
		logging.Info().
			Int("users", users).
			Int("devices", devices).
			Msg("Restored tracking state")
	}
	return s
}

func (s *BadgerStore) load() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			switch {
			case strings.HasPrefix(key, userKeyPrefix):
				s.users[strings.TrimPrefix(key, userKeyPrefix)] = struct{}{}
			case strings.HasPrefix(key, deviceKeyPrefix):
				s.devices[strings.TrimPrefix(key, deviceKeyPrefix)] = struct{}{}
			}
		}

		item, err := txn.Get([]byte(metaLastSavedKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get last-saved marker: %w", err)
		}
		return item.Value(func(val []byte) error {
			if at, perr := time.Parse(time.RFC3339Nano, string(val)); perr == nil {
				s.lastSaved = at
			}
			return nil
		})
	})
}

// Observe implements Store.
func (s *BadgerStore) Observe(user, device string) (newUser, newDevice bool) {
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

	if newUser || newDevice {
		if err := s.persist(user, device, newUser, newDevice); err != nil {
			logging.Error().Err(err).Msg("Tracking write failed")
		}
	}
	return newUser, newDevice
}

func (s *BadgerStore) persist(user, device string, newUser, newDevice bool) error {
	now := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	return s.db.Update(func(txn *badger.Txn) error {
		if newUser {
			if err := txn.Set([]byte(userKeyPrefix+user), now); err != nil {
				return fmt.Errorf("set user: %w", err)
			}
		}
		if newDevice {
			if err := txn.Set([]byte(deviceKeyPrefix+device), now); err != nil {
				return fmt.Errorf("set device: %w", err)
			}
		}
		return nil
	})
}

// Users implements Store.
func (s *BadgerStore) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.users)
}

// Devices implements Store.
func (s *BadgerStore) Devices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.devices)
}

// Snapshot implements Store.
func (s *BadgerStore) Snapshot() Snapshot {
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

// Save implements Store. Identity writes are already durable, so this only
// stamps the last-saved marker.
func (s *BadgerStore) Save() error {
	now := time.Now().UTC()
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(metaLastSavedKey), []byte(now.Format(time.RFC3339Nano)))
	})
	if err != nil {
		metrics.TrackingSaves.WithLabelValues("failure").Inc()
		return fmt.Errorf("stamp tracking save: %w", err)
	}

	s.mu.Lock()
	s.lastSaved = now
	s.mu.Unlock()
	metrics.TrackingSaves.WithLabelValues("success").Inc()
	return nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	if err := s.Save(); err != nil {
		logging.Warn().Err(err).Msg("Final tracking stamp failed")
	}
	return s.db.Close()
}

// syncGauges is called with s.mu held.
func (s *BadgerStore) syncGauges() {
	metrics.TrackingUsers.Set(float64(len(s.users)))
	metrics.TrackingDevices.Set(float64(len(s.devices)))
}
