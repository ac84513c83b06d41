// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package main is the entry point for the Nuntius bridge.
//
// Nuntius polls a Plex server for active music sessions and publishes "now
// playing" state to an MQTT broker, with optional Last.fm scrobbling, Home
// Assistant MQTT discovery, durable user/device tracking, and a small status
// API with a live websocket feed.
//
// Startup order:
//
//  1. Configuration: koanf layering of defaults, optional YAML file, and
//     environment variables (PLEX_URL, MQTT_BROKER, ...)
//  2. MQTT publisher: connect with availability will; failure here is fatal
//  3. Plex provider: connectivity probe (failure is retried per poll)
//  4. Optional collaborators: tracking store, Last.fm scrobbler, Home
//     Assistant discovery registrar, websocket hub
//  5. Supervisor tree: bridge layer (loop, hub) and API layer (HTTP server)
//
// Shutdown on SIGINT/SIGTERM is graceful: the loop flushes the tracking
// store, the HTTP server drains in-flight requests, and the MQTT client
// publishes its offline state before disconnecting.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/nuntius/internal/api"
	"github.com/tomtom215/nuntius/internal/bridge"
	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/discovery"
	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
	"github.com/tomtom215/nuntius/internal/mqtt"
	"github.com/tomtom215/nuntius/internal/plex"
	"github.com/tomtom215/nuntius/internal/scrobble"
	"github.com/tomtom215/nuntius/internal/supervisor"
	"github.com/tomtom215/nuntius/internal/tracking"
	ws "github.com/tomtom215/nuntius/internal/websocket"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("plex_url", cfg.Plex.URL).
		Str("mqtt_broker", cfg.MQTT.URI()).
		Str("topic_strategy", cfg.MQTT.TopicStrategy).
		Msg("Starting Nuntius")

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	publisher, err := mqtt.New(&cfg.MQTT)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build MQTT publisher")
	}
	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.MQTT.ConnectTimeout)
	err = publisher.Connect(connectCtx)
	connectCancel()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to MQTT broker")
	}

	provider := plex.NewProvider(&cfg.Plex)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.Plex.Timeout)
	if err := provider.Ping(pingCtx); err != nil {
		logging.Warn().Err(err).Msg("Plex server unreachable, polling will retry")
	} else {
		logging.Info().Msg("Connected to Plex server")
	}
	pingCancel()

	var store tracking.Store
	if cfg.Tracking.Enabled {
		store, err = tracking.New(&cfg.Tracking)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open tracking store")
		}
	}

	var scrobbler *scrobble.Scrobbler
	if cfg.LastFM.Enabled {
		client := scrobble.NewClient(&cfg.LastFM)
		if !client.Authenticated() {
			logging.Warn().Msg("Last.fm enabled without a session key, scrobbles will fail")
		}
		scrobbler = scrobble.New(&cfg.LastFM, client)
		logging.Info().Float64("threshold", cfg.LastFM.ScrobbleThreshold).Msg("Last.fm scrobbling enabled")
	}

	var registrar *discovery.Registrar
	if cfg.Discovery.Enabled {
		registrar = discovery.NewRegistrar(&cfg.Discovery, &cfg.MQTT, publisher)
		logging.Info().Str("prefix", cfg.Discovery.Prefix).Msg("Home Assistant discovery enabled")
	}

	var hub *ws.Hub
	if cfg.Server.Enabled {
		hub = ws.NewHub()
	}

	state := bridge.NewStateTracker()
	loopCfg := bridge.LoopConfig{
		Config:    cfg,
		Source:    provider,
		Publisher: publisher,
		State:     state,
	}
	// Interface fields stay nil unless the feature is wired, so the loop
	// can gate each side effect with a plain nil check.
	if store != nil {
		loopCfg.Tracker = store
	}
	if scrobbler != nil {
		loopCfg.Scrobbler = scrobbler
	}
	if registrar != nil {
		loopCfg.Registrar = registrar
	}
	if hub != nil {
		loopCfg.Feed = hub
	}
	loop := bridge.NewLoop(loopCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddBridgeService(loop)
	if hub != nil {
		tree.AddBridgeService(hub)
	}
	if cfg.Server.Enabled {
		deps := api.Deps{
			Config:    cfg,
			Loop:      loop,
			State:     state,
			Store:     store,
			Publisher: publisher,
			Hub:       hub,
			Version:   version,
		}
		if scrobbler != nil {
			deps.Scrobbler = scrobbler
		}
		if registrar != nil {
			deps.Registrar = registrar
		}
		tree.AddAPIService(api.NewServer(&cfg.Server, api.NewHandler(deps)))
		logging.Info().Int("port", cfg.Server.Port).Msg("Status API enabled")
	}

	go trackUptime(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutting down, waiting for services to stop")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree failed")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
	}

	if store != nil {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing tracking store")
		}
	}

	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := publisher.Disconnect(disconnectCtx); err != nil {
		logging.Error().Err(err).Msg("Error disconnecting from MQTT broker")
	}
	disconnectCancel()

	logging.Info().Msg("Nuntius stopped")
}

// trackUptime keeps the uptime gauge current until shutdown.
func trackUptime(ctx context.Context) {
	start := time.Now()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.AppUptime.Set(time.Since(start).Seconds())
		}
	}
}
