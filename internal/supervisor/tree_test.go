// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/nuntius/internal/logging"
)

// blockingService runs until canceled and records that it started.
type blockingService struct {
	name    string
	started chan struct{}
	once    sync.Once
}

func newBlockingService(name string) *blockingService {
	return &blockingService{name: name, started: make(chan struct{})}
}

func (s *blockingService) Serve(ctx context.Context) error {
	s.once.Do(func() { close(s.started) })
	<-ctx.Done()
	return ctx.Err()
}

func (s *blockingService) String() string { return s.name }

// crashingService fails a fixed number of times, then blocks.
type crashingService struct {
	remaining atomic.Int64
	recovered chan struct{}
	once      sync.Once
}

func newCrashingService(crashes int64) *crashingService {
	s := &crashingService{recovered: make(chan struct{})}
	s.remaining.Store(crashes)
	return s
}

func (s *crashingService) Serve(ctx context.Context) error {
	if s.remaining.Add(-1) >= 0 {
		return errors.New("synthetic crash")
	}
	s.once.Do(func() { close(s.recovered) })
	<-ctx.Done()
	return ctx.Err()
}

func (s *crashingService) String() string { return "crashing-service" }

func TestTreeServesBothLayers(t *testing.T) {
	tree := NewTree(logging.NewSlogLogger(), DefaultTreeConfig())
	loop := newBlockingService("loop")
	server := newBlockingService("server")
	tree.AddBridgeService(loop)
	tree.AddAPIService(server)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	for _, svc := range []*blockingService{loop, server} {
		select {
		case <-svc.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("service %s never started", svc)
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("tree stopped with %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}

func TestTreeRestartsCrashedService(t *testing.T) {
	cfg := DefaultTreeConfig()
	// Keep restart delays short so the test observes recovery quickly.
	cfg.FailureBackoff = 10 * time.Millisecond
	tree := NewTree(logging.NewSlogLogger(), cfg)

	svc := newCrashingService(2)
	tree.AddBridgeService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	select {
	case <-svc.recovered:
	case err := <-errCh:
		t.Fatalf("tree stopped early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("service was not restarted after crashing")
	}
}

func TestNewTreeAppliesDefaults(t *testing.T) {
	tree := NewTree(logging.NewSlogLogger(), TreeConfig{})
	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %v, want 5.0", tree.config.FailureThreshold)
	}
	if tree.config.FailureBackoff != 15*time.Second {
		t.Errorf("FailureBackoff = %v, want 15s", tree.config.FailureBackoff)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", tree.config.ShutdownTimeout)
	}
}
