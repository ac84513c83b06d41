// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package config

import (
	"fmt"
	"net/url"
)

// Validate checks that required configuration is present and valid.
// Strategy strings (session filter, topic routing) are intentionally not
// validated here: unknown strategies degrade to documented fallbacks at
// runtime instead of refusing to start.
func (c *Config) Validate() error {
	if err := c.validatePlex(); err != nil {
		return err
	}
	if err := c.validateMQTT(); err != nil {
		return err
	}
	if err := c.validateBridge(); err != nil {
		return err
	}
	if err := c.validateLastFM(); err != nil {
		return err
	}
	if err := c.validateTracking(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePlex() error {
	if c.Plex.URL == "" {
		return fmt.Errorf("PLEX_URL is required")
	}
	if err := validateHTTPURL(c.Plex.URL, "PLEX_URL"); err != nil {
		return err
	}
	if c.Plex.Token == "" {
		return fmt.Errorf("PLEX_TOKEN is required")
	}
	if c.Plex.Timeout <= 0 {
		return fmt.Errorf("PLEX_TIMEOUT must be positive, got %v", c.Plex.Timeout)
	}
	return nil
}

func (c *Config) validateMQTT() error {
	if c.MQTT.Broker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		return fmt.Errorf("MQTT_PORT must be 1-65535, got %d", c.MQTT.Port)
	}
	if c.MQTT.Protocol != 3 && c.MQTT.Protocol != 5 {
		return fmt.Errorf("MQTT_PROTOCOL must be 3 or 5, got %d", c.MQTT.Protocol)
	}
	switch c.MQTT.Transport {
	case TransportTCP, TransportSSL, TransportWS:
	default:
		return fmt.Errorf("MQTT_TRANSPORT must be tcp, ssl, or ws, got %q", c.MQTT.Transport)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0-2, got %d", c.MQTT.QoS)
	}
	if c.MQTT.Topic == "" {
		return fmt.Errorf("MQTT_TOPIC must not be empty")
	}
	return nil
}

func (c *Config) validateBridge() error {
	if c.Bridge.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %v", c.Bridge.PollInterval)
	}
	if c.Bridge.PositionDriftMs < 0 {
		return fmt.Errorf("POSITION_DRIFT_MS must be non-negative, got %d", c.Bridge.PositionDriftMs)
	}
	return nil
}

func (c *Config) validateLastFM() error {
	if !c.LastFM.Enabled {
		return nil
	}
	if c.LastFM.APIKey == "" || c.LastFM.APISecret == "" {
		return fmt.Errorf("LASTFM_API_KEY and LASTFM_API_SECRET are required when LASTFM_ENABLED=true")
	}
	if c.LastFM.SessionKey == "" {
		return fmt.Errorf("LASTFM_SESSION_KEY is required when LASTFM_ENABLED=true")
	}
	if c.LastFM.ScrobbleThreshold < 0 || c.LastFM.ScrobbleThreshold > 1 {
		return fmt.Errorf("LASTFM_SCROBBLE_THRESHOLD must be a fraction 0-1, got %v", c.LastFM.ScrobbleThreshold)
	}
	if c.LastFM.MinDurationSeconds < 0 {
		return fmt.Errorf("LASTFM_MIN_DURATION must be non-negative, got %d", c.LastFM.MinDurationSeconds)
	}
	return nil
}

func (c *Config) validateTracking() error {
	if !c.Tracking.Enabled {
		return nil
	}
	switch c.Tracking.Store {
	case TrackingStoreFile, TrackingStoreBadger:
	default:
		return fmt.Errorf("TRACKING_STORE must be file or badger, got %q", c.Tracking.Store)
	}
	if c.Tracking.Path == "" {
		return fmt.Errorf("TRACKING_PATH is required when TRACKING_ENABLED=true")
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL checks that a URL is a bare http(s) base URL: scheme,
// host, no path beyond "/", no query.
func validateHTTPURL(rawURL, fieldName string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse: %w", fieldName, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsed.Path != "" && parsed.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsed.Path)
	}
	if parsed.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters", fieldName)
	}
	return nil
}
