// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "NUNTIUS_CONFIG"

// DefaultConfigPaths are searched in order for an optional YAML config file.
var DefaultConfigPaths = []string{
	"/config/nuntius.yaml",
	"/data/nuntius.yaml",
	"./nuntius.yaml",
	"./config.yaml",
}

// Load builds the configuration from layered sources:
//  1. Defaults from defaultConfig()
//  2. Optional YAML config file (if one is found)
//  3. Environment variables (highest priority)
//
// The result is validated before being returned; a validation failure is a
// fatal startup error for the caller.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// PLEX_URL -> plex.url, MQTT_BROKER -> mqtt.broker, ...
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// A fresh ID per process keeps broker session state from colliding
	// when several instances share a config file.
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "nuntius-" + uuid.NewString()[:8]
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set via
// environment variables.
var sliceConfigPaths = []string{
	"bridge.allowed_users",
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars arrive as strings; YAML arrives as slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped, so unrelated environment
// noise never pollutes the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Plex mappings
		"plex_url":        "plex.url",
		"plex_token":      "plex.token",
		"plex_timeout":    "plex.timeout",
		"plex_verify_tls": "plex.verify_tls",

		// MQTT mappings
		"mqtt_broker":          "mqtt.broker",
		"mqtt_port":            "mqtt.port",
		"mqtt_username":        "mqtt.username",
		"mqtt_password":        "mqtt.password",
		"mqtt_client_id":       "mqtt.client_id",
		"mqtt_protocol":        "mqtt.protocol",
		"mqtt_transport":       "mqtt.transport",
		"mqtt_topic":           "mqtt.topic",
		"mqtt_topic_strategy":  "mqtt.topic_strategy",
		"mqtt_qos":             "mqtt.qos",
		"mqtt_retain":          "mqtt.retain",
		"mqtt_keep_alive":      "mqtt.keep_alive",
		"mqtt_connect_timeout": "mqtt.connect_timeout",
		"mqtt_ws_path":         "mqtt.ws_path",

		// Bridge mappings
		"poll_interval":     "bridge.poll_interval",
		"session_strategy":  "bridge.session_strategy",
		"priority_user":     "bridge.priority_user",
		"allowed_users":     "bridge.allowed_users",
		"publish_summary":   "bridge.publish_summary",
		"position_drift_ms": "bridge.position_drift_ms",

		// Last.fm mappings
		"lastfm_enabled":            "lastfm.enabled",
		"lastfm_api_key":            "lastfm.api_key",
		"lastfm_api_secret":         "lastfm.api_secret",
		"lastfm_session_key":        "lastfm.session_key",
		"lastfm_min_duration":       "lastfm.min_duration_seconds",
		"lastfm_scrobble_threshold": "lastfm.scrobble_threshold",

		// Discovery mappings
		"discovery_enabled": "discovery.enabled",
		"discovery_prefix":  "discovery.prefix",

		// Tracking mappings
		"tracking_enabled":   "tracking.enabled",
		"tracking_store":     "tracking.store",
		"tracking_path":      "tracking.path",
		"tracking_auto_save": "tracking.auto_save",

		// Server mappings
		"http_enabled":        "server.enabled",
		"http_host":           "server.host",
		"http_port":           "server.port",
		"http_timeout":        "server.timeout",
		"cors_origins":        "server.cors_origins",
		"rate_limit_requests": "server.rate_limit_requests",
		"rate_limit_window":   "server.rate_limit_window",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
