// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package bridge

import (
	"testing"

	"github.com/tomtom215/nuntius/internal/models"
)

func TestStateTracker_RecordAndLast(t *testing.T) {
	tracker := NewStateTracker()
	sess := models.Session{User: "alice", SessionKey: "7", Device: "office", Title: "Roads"}

	if _, ok := tracker.Last(sess.ChangeKey()); ok {
		t.Fatal("empty tracker should have no record")
	}

	tracker.Record(sess)

	got, ok := tracker.Last(sess.ChangeKey())
	if !ok {
		t.Fatal("recorded session not found")
	}
	if got.Title != "Roads" {
		t.Errorf("recorded title = %q, want %q", got.Title, "Roads")
	}
	if _, ok := tracker.Last("bob_9"); ok {
		t.Error("unrelated key should miss")
	}
}

func TestStateTracker_PhaseLifecycle(t *testing.T) {
	tracker := NewStateTracker()

	if got := tracker.Phase(); got != PhasePublishing {
		t.Fatalf("initial phase = %v, want %v", got, PhasePublishing)
	}

	// First empty poll publishes the sentinel, later ones stay quiet.
	if !tracker.MarkStopped() {
		t.Fatal("first MarkStopped should request the sentinel")
	}
	if got := tracker.Phase(); got != PhaseJustStopped {
		t.Errorf("phase after first empty poll = %v, want %v", got, PhaseJustStopped)
	}
	if tracker.MarkStopped() {
		t.Fatal("second MarkStopped should not repeat the sentinel")
	}
	if got := tracker.Phase(); got != PhaseIdle {
		t.Errorf("phase after second empty poll = %v, want %v", got, PhaseIdle)
	}
	if tracker.MarkStopped() {
		t.Fatal("idle MarkStopped should stay quiet")
	}

	// Activity resumes, then the next outage re-arms the sentinel.
	tracker.MarkActive()
	if got := tracker.Phase(); got != PhasePublishing {
		t.Errorf("phase after activity = %v, want %v", got, PhasePublishing)
	}
	if !tracker.MarkStopped() {
		t.Error("new outage should request the sentinel again")
	}
}

func TestStateTracker_Prune(t *testing.T) {
	tracker := NewStateTracker()
	alice := models.Session{User: "alice", SessionKey: "1", Device: "office"}
	bob := models.Session{User: "bob", SessionKey: "2", Device: "kitchen"}
	tracker.Record(alice)
	tracker.Record(bob)

	dropped := tracker.Prune(
		map[string]struct{}{alice.ChangeKey(): {}},
		map[string]struct{}{alice.DeviceKey(): {}},
	)

	if dropped != 1 {
		t.Errorf("Prune dropped %d, want 1", dropped)
	}
	if _, ok := tracker.Last(bob.ChangeKey()); ok {
		t.Error("bob should be pruned from change records")
	}
	if _, ok := tracker.Last(alice.ChangeKey()); !ok {
		t.Error("alice should survive the prune")
	}
	if got := tracker.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount after prune = %d, want 1", got)
	}
}

func TestStateTracker_PruneAllOnEmptyBatch(t *testing.T) {
	tracker := NewStateTracker()
	tracker.Record(models.Session{User: "alice", SessionKey: "1", Device: "office"})
	tracker.Record(models.Session{User: "bob", SessionKey: "2", Device: "kitchen"})

	dropped := tracker.Prune(map[string]struct{}{}, map[string]struct{}{})

	if dropped != 2 {
		t.Errorf("Prune dropped %d, want 2", dropped)
	}
	if got := tracker.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount = %d, want 0", got)
	}
}

func TestStateTracker_SessionsSorted(t *testing.T) {
	tracker := NewStateTracker()
	tracker.Record(models.Session{User: "carol", Device: "den", SessionKey: "3"})
	tracker.Record(models.Session{User: "alice", Device: "office", SessionKey: "1"})
	tracker.Record(models.Session{User: "alice", Device: "kitchen", SessionKey: "2"})

	got := tracker.Sessions()
	if len(got) != 3 {
		t.Fatalf("Sessions() returned %d, want 3", len(got))
	}
	wantOrder := []string{"alice_kitchen", "alice_office", "carol_den"}
	for i, want := range wantOrder {
		if key := got[i].DeviceKey(); key != want {
			t.Errorf("Sessions()[%d] = %q, want %q", i, key, want)
		}
	}
}

func TestStateTracker_SessionsReturnsCopy(t *testing.T) {
	tracker := NewStateTracker()
	tracker.Record(models.Session{User: "alice", Device: "office", Title: "Roads"})

	snapshot := tracker.Sessions()
	snapshot[0].Title = "mutated"

	if got := tracker.Sessions()[0].Title; got != "Roads" {
		t.Errorf("internal state mutated through snapshot: title = %q", got)
	}
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhasePublishing, "publishing"},
		{PhaseJustStopped, "just_stopped"},
		{PhaseIdle, "idle"},
		{Phase(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}
