// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package api

import (
	"github.com/tomtom215/nuntius/internal/config"
)

// configView is the sanitized rendering of the running configuration. It is
// an explicit allowlist so a future config field never leaks a credential by
// default, and durations render as strings ("30s") rather than nanoseconds.
type configView struct {
	Plex      plexView      `json:"plex"`
	MQTT      mqttView      `json:"mqtt"`
	Bridge    bridgeView    `json:"bridge"`
	LastFM    lastfmView    `json:"lastfm"`
	Discovery discoveryView `json:"discovery"`
	Tracking  trackingView  `json:"tracking"`
	Server    serverView    `json:"server"`
	Logging   loggingView   `json:"logging"`
}

type plexView struct {
	URL       string `json:"url"`
	Token     string `json:"token"`
	Timeout   string `json:"timeout"`
	VerifyTLS bool   `json:"verify_tls"`
}

type mqttView struct {
	Broker         string `json:"broker"`
	Port           int    `json:"port"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	ClientID       string `json:"client_id"`
	Protocol       int    `json:"protocol"`
	Transport      string `json:"transport"`
	Topic          string `json:"topic"`
	TopicStrategy  string `json:"topic_strategy"`
	QoS            int    `json:"qos"`
	Retain         bool   `json:"retain"`
	KeepAlive      string `json:"keep_alive"`
	ConnectTimeout string `json:"connect_timeout"`
}

type bridgeView struct {
	PollInterval    string   `json:"poll_interval"`
	SessionStrategy string   `json:"session_strategy"`
	PriorityUser    string   `json:"priority_user"`
	AllowedUsers    []string `json:"allowed_users"`
	PublishSummary  bool     `json:"publish_summary"`
	PositionDriftMs int64    `json:"position_drift_ms"`
}

type lastfmView struct {
	Enabled            bool    `json:"enabled"`
	APIKey             string  `json:"api_key"`
	APISecret          string  `json:"api_secret"`
	SessionKey         string  `json:"session_key"`
	MinDurationSeconds int     `json:"min_duration_seconds"`
	ScrobbleThreshold  float64 `json:"scrobble_threshold"`
}

type discoveryView struct {
	Enabled bool   `json:"enabled"`
	Prefix  string `json:"prefix"`
}

type trackingView struct {
	Enabled  bool   `json:"enabled"`
	Store    string `json:"store"`
	Path     string `json:"path"`
	AutoSave bool   `json:"auto_save"`
}

type serverView struct {
	Enabled         bool     `json:"enabled"`
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	Timeout         string   `json:"timeout"`
	CORSOrigins     []string `json:"cors_origins"`
	RateLimitReqs   int      `json:"rate_limit_requests"`
	RateLimitWindow string   `json:"rate_limit_window"`
}

type loggingView struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Caller bool   `json:"caller"`
}

// newConfigView copies the configuration with every credential masked.
func newConfigView(cfg *config.Config) configView {
	return configView{
		Plex: plexView{
			URL:       cfg.Plex.URL,
			Token:     maskSecret(cfg.Plex.Token),
			Timeout:   cfg.Plex.Timeout.String(),
			VerifyTLS: cfg.Plex.VerifyTLS,
		},
		MQTT: mqttView{
			Broker:         cfg.MQTT.Broker,
			Port:           cfg.MQTT.Port,
			Username:       cfg.MQTT.Username,
			Password:       maskSecret(cfg.MQTT.Password),
			ClientID:       cfg.MQTT.ClientID,
			Protocol:       cfg.MQTT.Protocol,
			Transport:      cfg.MQTT.Transport,
			Topic:          cfg.MQTT.Topic,
			TopicStrategy:  cfg.MQTT.TopicStrategy,
			QoS:            cfg.MQTT.QoS,
			Retain:         cfg.MQTT.Retain,
			KeepAlive:      cfg.MQTT.KeepAlive.String(),
			ConnectTimeout: cfg.MQTT.ConnectTimeout.String(),
		},
		Bridge: bridgeView{
			PollInterval:    cfg.Bridge.PollInterval.String(),
			SessionStrategy: cfg.Bridge.SessionStrategy,
			PriorityUser:    cfg.Bridge.PriorityUser,
			AllowedUsers:    cfg.Bridge.AllowedUsers,
			PublishSummary:  cfg.Bridge.PublishSummary,
			PositionDriftMs: cfg.Bridge.PositionDriftMs,
		},
		LastFM: lastfmView{
			Enabled:            cfg.LastFM.Enabled,
			APIKey:             maskSecret(cfg.LastFM.APIKey),
			APISecret:          maskSecret(cfg.LastFM.APISecret),
			SessionKey:         maskSecret(cfg.LastFM.SessionKey),
			MinDurationSeconds: cfg.LastFM.MinDurationSeconds,
			ScrobbleThreshold:  cfg.LastFM.ScrobbleThreshold,
		},
		Discovery: discoveryView{
			Enabled: cfg.Discovery.Enabled,
			Prefix:  cfg.Discovery.Prefix,
		},
		Tracking: trackingView{
			Enabled:  cfg.Tracking.Enabled,
			Store:    cfg.Tracking.Store,
			Path:     cfg.Tracking.Path,
			AutoSave: cfg.Tracking.AutoSave,
		},
		Server: serverView{
			Enabled:         cfg.Server.Enabled,
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			Timeout:         cfg.Server.Timeout.String(),
			CORSOrigins:     cfg.Server.CORSOrigins,
			RateLimitReqs:   cfg.Server.RateLimitReqs,
			RateLimitWindow: cfg.Server.RateLimitWindow.String(),
		},
		Logging: loggingView{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Caller: cfg.Logging.Caller,
		},
	}
}

// maskSecret hides a configured credential while leaving unset ones visibly
// empty.
func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	return maskedSecret
}
