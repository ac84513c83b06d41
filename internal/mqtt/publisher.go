// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package mqtt implements the broker-facing publisher layer. Two
// implementations exist behind one interface: an MQTT v3.1.1 client and an
// MQTT v5 client that additionally carries message expiry, content type,
// and user properties on every publish.
//
// Both publishers register a last-will message on the availability topic so
// the broker marks the bridge offline when the connection drops, and both
// announce "online" (retained) on every successful connect.
package mqtt

import (
	"context"
	"time"

	"github.com/tomtom215/nuntius/internal/config"
)

// Availability payloads announced on AvailabilityTopic. Home Assistant's
// default MQTT availability template expects exactly these strings.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// AvailabilityTopic returns the bridge liveness topic derived from the
// configured base topic. The broker publishes PayloadOffline here via the
// last will when the bridge dies uncleanly.
func AvailabilityTopic(base string) string {
	return base + "/availability"
}

// Message is one outbound publish. Expiry, ContentType, and UserProperties
// only take effect on the v5 publisher; the v3 publisher ignores them.
type Message struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool

	Expiry         time.Duration
	ContentType    string
	UserProperties map[string]string
}

// Publisher is the broker connection the bridge publishes through.
type Publisher interface {
	// Connect establishes the broker connection, blocking until the initial
	// connect succeeds or ctx expires. Both implementations keep reconnecting
	// in the background afterwards.
	Connect(ctx context.Context) error

	// Publish sends one message, blocking until the broker acknowledges it
	// (per the message QoS) or ctx expires.
	Publish(ctx context.Context, msg Message) error

	// Connected reports whether the broker connection is currently up.
	Connected() bool

	// Disconnect announces offline on the availability topic and closes the
	// connection cleanly.
	Disconnect(ctx context.Context) error
}

// New selects the publisher implementation for the configured protocol
// version: 5 for MQTT v5, anything else for v3.1.1.
func New(cfg *config.MQTTConfig) (Publisher, error) {
	if cfg.Protocol == 5 {
		return newV5Publisher(cfg)
	}
	return newV3Publisher(cfg), nil
}

// offlineMessage is the explicit goodbye sent before a clean disconnect,
// since a clean DISCONNECT suppresses the last will.
func offlineMessage(availabilityTopic string) Message {
	return Message{
		Topic:   availabilityTopic,
		Payload: []byte(PayloadOffline),
		QoS:     1,
		Retain:  true,
	}
}
