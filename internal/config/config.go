// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package config loads and validates all Nuntius configuration.
//
// Configuration is layered with Koanf v2, highest priority last:
//  1. Built-in defaults
//  2. Optional YAML config file (NUNTIUS_CONFIG or a default search path)
//  3. Environment variables (PLEX_URL, MQTT_BROKER, ...)
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Plex      PlexConfig      `koanf:"plex"`
	MQTT      MQTTConfig      `koanf:"mqtt"`
	Bridge    BridgeConfig    `koanf:"bridge"`
	LastFM    LastFMConfig    `koanf:"lastfm"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Tracking  TrackingConfig  `koanf:"tracking"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// PlexConfig holds the media server connection settings.
//
// Environment variables:
//   - PLEX_URL: base URL of the Plex server (e.g. http://localhost:32400)
//   - PLEX_TOKEN: X-Plex-Token with access to the server
//   - PLEX_TIMEOUT: per-request timeout (default 30s)
//   - PLEX_VERIFY_TLS: verify the server certificate (default true)
type PlexConfig struct {
	URL       string        `koanf:"url"`
	Token     string        `koanf:"token"`
	Timeout   time.Duration `koanf:"timeout"`
	VerifyTLS bool          `koanf:"verify_tls"`
}

// MQTTConfig holds the message bus settings.
//
// Protocol selects the MQTT protocol version: 3 (v3.1.1) or 5. Version 5
// publishes carry message expiry, content type, and user properties.
// Transport selects the framing: tcp, ssl (TLS), or ws (websocket).
type MQTTConfig struct {
	Broker         string        `koanf:"broker"`
	Port           int           `koanf:"port"`
	Username       string        `koanf:"username"`
	Password       string        `koanf:"password"`
	ClientID       string        `koanf:"client_id"`
	Protocol       int           `koanf:"protocol"`
	Transport      string        `koanf:"transport"`
	Topic          string        `koanf:"topic"`
	TopicStrategy  string        `koanf:"topic_strategy"`
	QoS            int           `koanf:"qos"`
	Retain         bool          `koanf:"retain"`
	KeepAlive      time.Duration `koanf:"keep_alive"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	WSPath         string        `koanf:"ws_path"`
}

// URI returns the broker URI for the configured transport, e.g.
// tcp://host:1883, ssl://host:8883, or ws://host:9001/mqtt.
func (m *MQTTConfig) URI() string {
	switch m.Transport {
	case TransportSSL:
		return fmt.Sprintf("ssl://%s:%d", m.Broker, m.Port)
	case TransportWS:
		return fmt.Sprintf("ws://%s:%d%s", m.Broker, m.Port, m.WSPath)
	default:
		return fmt.Sprintf("tcp://%s:%d", m.Broker, m.Port)
	}
}

// MQTT transport values.
const (
	TransportTCP = "tcp"
	TransportSSL = "ssl"
	TransportWS  = "ws"
)

// BridgeConfig holds the reconciliation loop settings.
//
// SessionStrategy selects the multi-session filter:
// all, priority_user, first_only, user_filter, most_recent.
// PositionDriftMs is the debounce threshold: a position delta must exceed it
// (strictly) to count as a change on its own.
type BridgeConfig struct {
	PollInterval    time.Duration `koanf:"poll_interval"`
	SessionStrategy string        `koanf:"session_strategy"`
	PriorityUser    string        `koanf:"priority_user"`
	AllowedUsers    []string      `koanf:"allowed_users"`
	PublishSummary  bool          `koanf:"publish_summary"`
	PositionDriftMs int64         `koanf:"position_drift_ms"`
}

// LastFMConfig holds scrobbling settings. Scrobbling activates only when
// Enabled is true and all three credentials are set.
//
// ScrobbleThreshold is a 0..1 fraction of play-through required before a
// track is scrobbled (default 0.5).
type LastFMConfig struct {
	Enabled            bool    `koanf:"enabled"`
	APIKey             string  `koanf:"api_key"`
	APISecret          string  `koanf:"api_secret"`
	SessionKey         string  `koanf:"session_key"`
	MinDurationSeconds int     `koanf:"min_duration_seconds"`
	ScrobbleThreshold  float64 `koanf:"scrobble_threshold"`
}

// DiscoveryConfig holds Home Assistant MQTT discovery settings.
type DiscoveryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Prefix  string `koanf:"prefix"`
}

// Tracking store backends.
const (
	TrackingStoreFile   = "file"
	TrackingStoreBadger = "badger"
)

// TrackingConfig holds the seen-users/devices persistence settings.
// Store selects the backend: file (single JSON document, atomic rename)
// or badger (embedded key-value store; Path is the data directory).
type TrackingConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Store    string `koanf:"store"`
	Path     string `koanf:"path"`
	AutoSave bool   `koanf:"auto_save"`
}

// ServerConfig holds the status API settings.
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, the lowest configuration layer.
func defaultConfig() Config {
	return Config{
		Plex: PlexConfig{
			Timeout:   30 * time.Second,
			VerifyTLS: true,
		},
		MQTT: MQTTConfig{
			Port:           1883,
			Protocol:       5,
			Transport:      TransportTCP,
			Topic:          "nuntius/nowplaying",
			TopicStrategy:  "single",
			QoS:            1,
			Retain:         false,
			KeepAlive:      30 * time.Second,
			ConnectTimeout: 10 * time.Second,
			WSPath:         "/mqtt",
		},
		Bridge: BridgeConfig{
			PollInterval:    5 * time.Second,
			SessionStrategy: "all",
			PublishSummary:  false,
			PositionDriftMs: 5000,
		},
		LastFM: LastFMConfig{
			Enabled:            false,
			MinDurationSeconds: 30,
			ScrobbleThreshold:  0.5,
		},
		Discovery: DiscoveryConfig{
			Enabled: false,
			Prefix:  "homeassistant",
		},
		Tracking: TrackingConfig{
			Enabled:  true,
			Store:    TrackingStoreFile,
			Path:     "/data/nuntius_tracking.json",
			AutoSave: true,
		},
		Server: ServerConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            8089,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
