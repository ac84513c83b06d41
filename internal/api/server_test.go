// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/nuntius/internal/bridge"
)

func TestServerServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	handler := NewHandler(Deps{
		Config:    cfg,
		Loop:      &fakeStats{},
		State:     bridge.NewStateTracker(),
		Publisher: &fakePublisher{},
	})
	server := NewServer(&cfg.Server, handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	// Give the listener a moment to bind before asking it to stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestServerString(t *testing.T) {
	cfg := testConfig(t)
	server := NewServer(&cfg.Server, NewHandler(Deps{
		Config:    cfg,
		Loop:      &fakeStats{},
		State:     bridge.NewStateTracker(),
		Publisher: &fakePublisher{},
	}))
	if server.String() != "api-server" {
		t.Errorf("String() = %q", server.String())
	}
}
