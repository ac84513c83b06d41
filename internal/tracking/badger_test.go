// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package tracking

import (
	"reflect"
	"testing"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/nuntius/internal/config"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatalf("open in-memory badger: %v", err)
	}
	store := NewBadgerStore(db)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStore_ObserveReportsNewIdentities(t *testing.T) {
	store := newTestBadgerStore(t)

	newUser, newDevice := store.Observe("alice", "kitchen")
	if !newUser || !newDevice {
		t.Fatalf("first observation = (%v, %v), want (true, true)", newUser, newDevice)
	}

	newUser, newDevice = store.Observe("alice", "kitchen")
	if newUser || newDevice {
		t.Fatalf("repeat observation = (%v, %v), want (false, false)", newUser, newDevice)
	}

	snap := store.Snapshot()
	if snap.UserCount != 1 || snap.DeviceCount != 1 {
		t.Fatalf("counts = (%d, %d), want (1, 1)", snap.UserCount, snap.DeviceCount)
	}
}

func TestBadgerStore_SortedCopies(t *testing.T) {
	store := newTestBadgerStore(t)
	store.Observe("carol", "den")
	store.Observe("alice", "kitchen")
	store.Observe("bob", "office")

	if got := store.Users(); !reflect.DeepEqual(got, []string{"alice", "bob", "carol"}) {
		t.Errorf("Users() = %v, want sorted [alice bob carol]", got)
	}
	if got := store.Devices(); !reflect.DeepEqual(got, []string{"den", "kitchen", "office"}) {
		t.Errorf("Devices() = %v, want sorted [den kitchen office]", got)
	}
}

func TestBadgerStore_PersistAcrossReopen(t *testing.T) {
	cfg := &config.TrackingConfig{
		Enabled: true,
		Store:   StoreBadger,
		Path:    t.TempDir(),
	}

	store, err := OpenBadgerStore(cfg)
	if err != nil {
		t.Fatalf("OpenBadgerStore() error: %v", err)
	}
	store.Observe("bob", "tablet")
	store.Observe("alice", "phone")
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	reopened, err := OpenBadgerStore(cfg)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	if got := reopened.Users(); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Errorf("Users() after reopen = %v, want [alice bob]", got)
	}
	if got := reopened.Devices(); !reflect.DeepEqual(got, []string{"phone", "tablet"}) {
		t.Errorf("Devices() after reopen = %v, want [phone tablet]", got)
	}
	if reopened.Snapshot().LastSaved.IsZero() {
		t.Error("LastSaved is zero after reopen, want the close-time stamp")
	}
}

func TestBadgerStore_SaveStampsMarker(t *testing.T) {
	store := newTestBadgerStore(t)

	if !store.Snapshot().LastSaved.IsZero() {
		t.Fatal("fresh store already has a last-saved stamp")
	}
	if err := store.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if store.Snapshot().LastSaved.IsZero() {
		t.Error("LastSaved still zero after Save()")
	}
}
