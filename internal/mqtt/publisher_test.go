// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package mqtt

import (
	"testing"
	"time"

	"github.com/tomtom215/nuntius/internal/config"
)

func testMQTTConfig() *config.MQTTConfig {
	return &config.MQTTConfig{
		Broker:         "broker.local",
		Port:           1883,
		ClientID:       "nuntius-test",
		Protocol:       3,
		Transport:      config.TransportTCP,
		Topic:          "nuntius/nowplaying",
		QoS:            1,
		KeepAlive:      30 * time.Second,
		ConnectTimeout: 10 * time.Second,
	}
}

func TestAvailabilityTopic(t *testing.T) {
	if got := AvailabilityTopic("nuntius/nowplaying"); got != "nuntius/nowplaying/availability" {
		t.Errorf("AvailabilityTopic() = %q, want %q", got, "nuntius/nowplaying/availability")
	}
}

func TestNew_ProtocolSelection(t *testing.T) {
	t.Run("protocol 3 builds v3 publisher", func(t *testing.T) {
		cfg := testMQTTConfig()
		cfg.Protocol = 3

		pub, err := New(cfg)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if _, ok := pub.(*v3Publisher); !ok {
			t.Errorf("New() returned %T, want *v3Publisher", pub)
		}
	})

	t.Run("protocol 5 builds v5 publisher", func(t *testing.T) {
		cfg := testMQTTConfig()
		cfg.Protocol = 5

		pub, err := New(cfg)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if _, ok := pub.(*v5Publisher); !ok {
			t.Errorf("New() returned %T, want *v5Publisher", pub)
		}
	})
}

func TestOfflineMessage(t *testing.T) {
	msg := offlineMessage("nuntius/nowplaying/availability")

	if msg.Topic != "nuntius/nowplaying/availability" {
		t.Errorf("Topic = %q", msg.Topic)
	}
	if string(msg.Payload) != PayloadOffline {
		t.Errorf("Payload = %q, want %q", msg.Payload, PayloadOffline)
	}
	if !msg.Retain {
		t.Error("offline message must be retained")
	}
	if msg.QoS != 1 {
		t.Errorf("QoS = %d, want 1", msg.QoS)
	}
}

func TestBuildV3Options(t *testing.T) {
	t.Run("anonymous connection", func(t *testing.T) {
		opts := buildV3Options(testMQTTConfig())

		if len(opts.Servers) != 1 {
			t.Fatalf("len(Servers) = %d, want 1", len(opts.Servers))
		}
		if got := opts.Servers[0].String(); got != "tcp://broker.local:1883" {
			t.Errorf("broker = %q, want tcp://broker.local:1883", got)
		}
		if opts.ClientID != "nuntius-test" {
			t.Errorf("ClientID = %q", opts.ClientID)
		}
		if opts.Username != "" {
			t.Errorf("Username = %q, want empty for anonymous connection", opts.Username)
		}
		if opts.KeepAlive != 30 {
			t.Errorf("KeepAlive = %d, want 30", opts.KeepAlive)
		}
		if opts.ConnectTimeout != 10*time.Second {
			t.Errorf("ConnectTimeout = %v", opts.ConnectTimeout)
		}
		if !opts.AutoReconnect {
			t.Error("AutoReconnect should be enabled")
		}
	})

	t.Run("credentials applied when configured", func(t *testing.T) {
		cfg := testMQTTConfig()
		cfg.Username = "homeassistant"
		cfg.Password = "hunter2"

		opts := buildV3Options(cfg)
		if opts.Username != "homeassistant" || opts.Password != "hunter2" {
			t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
		}
	})

	t.Run("last will on availability topic", func(t *testing.T) {
		opts := buildV3Options(testMQTTConfig())

		if !opts.WillEnabled {
			t.Fatal("will should be enabled")
		}
		if opts.WillTopic != "nuntius/nowplaying/availability" {
			t.Errorf("WillTopic = %q", opts.WillTopic)
		}
		if string(opts.WillPayload) != PayloadOffline {
			t.Errorf("WillPayload = %q, want %q", opts.WillPayload, PayloadOffline)
		}
		if !opts.WillRetained {
			t.Error("will must be retained")
		}
	})

	t.Run("websocket transport", func(t *testing.T) {
		cfg := testMQTTConfig()
		cfg.Transport = config.TransportWS
		cfg.Port = 9001
		cfg.WSPath = "/mqtt"

		opts := buildV3Options(cfg)
		if got := opts.Servers[0].String(); got != "ws://broker.local:9001/mqtt" {
			t.Errorf("broker = %q, want ws://broker.local:9001/mqtt", got)
		}
	})
}

func TestV5BuildConfig(t *testing.T) {
	t.Run("core fields", func(t *testing.T) {
		cfg := testMQTTConfig()
		cfg.Protocol = 5

		p := &v5Publisher{availabilityTopic: AvailabilityTopic(cfg.Topic)}
		clientCfg, err := p.buildConfig(cfg)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		if len(clientCfg.ServerUrls) != 1 {
			t.Fatalf("len(ServerUrls) = %d, want 1", len(clientCfg.ServerUrls))
		}
		if got := clientCfg.ServerUrls[0].String(); got != "tcp://broker.local:1883" {
			t.Errorf("server = %q", got)
		}
		if clientCfg.KeepAlive != 30 {
			t.Errorf("KeepAlive = %d, want 30", clientCfg.KeepAlive)
		}
		if clientCfg.ClientConfig.ClientID != "nuntius-test" {
			t.Errorf("ClientID = %q", clientCfg.ClientConfig.ClientID)
		}
		if clientCfg.ConnectUsername != "" {
			t.Errorf("ConnectUsername = %q, want empty", clientCfg.ConnectUsername)
		}
	})

	t.Run("will message", func(t *testing.T) {
		cfg := testMQTTConfig()
		cfg.Protocol = 5

		p := &v5Publisher{availabilityTopic: AvailabilityTopic(cfg.Topic)}
		clientCfg, err := p.buildConfig(cfg)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		will := clientCfg.WillMessage
		if will == nil {
			t.Fatal("WillMessage should be set")
		}
		if will.Topic != "nuntius/nowplaying/availability" {
			t.Errorf("WillMessage.Topic = %q", will.Topic)
		}
		if string(will.Payload) != PayloadOffline {
			t.Errorf("WillMessage.Payload = %q", will.Payload)
		}
		if !will.Retain {
			t.Error("will must be retained")
		}
	})

	t.Run("credentials applied when configured", func(t *testing.T) {
		cfg := testMQTTConfig()
		cfg.Protocol = 5
		cfg.Username = "homeassistant"
		cfg.Password = "hunter2"

		p := &v5Publisher{availabilityTopic: AvailabilityTopic(cfg.Topic)}
		clientCfg, err := p.buildConfig(cfg)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		if clientCfg.ConnectUsername != "homeassistant" {
			t.Errorf("ConnectUsername = %q", clientCfg.ConnectUsername)
		}
		if string(clientCfg.ConnectPassword) != "hunter2" {
			t.Errorf("ConnectPassword = %q", clientCfg.ConnectPassword)
		}
	})
}

func TestBuildProperties(t *testing.T) {
	t.Run("nil for plain message", func(t *testing.T) {
		if got := buildProperties(Message{Topic: "t", Payload: []byte("x")}); got != nil {
			t.Errorf("buildProperties() = %+v, want nil", got)
		}
	})

	t.Run("expiry in whole seconds", func(t *testing.T) {
		props := buildProperties(Message{Expiry: 10 * time.Second})
		if props == nil || props.MessageExpiry == nil {
			t.Fatal("MessageExpiry should be set")
		}
		if *props.MessageExpiry != 10 {
			t.Errorf("MessageExpiry = %d, want 10", *props.MessageExpiry)
		}
	})

	t.Run("sub-second expiry rounds up to one", func(t *testing.T) {
		props := buildProperties(Message{Expiry: 500 * time.Millisecond})
		if props == nil || props.MessageExpiry == nil {
			t.Fatal("MessageExpiry should be set")
		}
		if *props.MessageExpiry != 1 {
			t.Errorf("MessageExpiry = %d, want 1", *props.MessageExpiry)
		}
	})

	t.Run("content type", func(t *testing.T) {
		props := buildProperties(Message{ContentType: "application/json"})
		if props == nil || props.ContentType != "application/json" {
			t.Fatalf("ContentType not carried, got %+v", props)
		}
	})

	t.Run("user properties sorted by key", func(t *testing.T) {
		props := buildProperties(Message{UserProperties: map[string]string{
			"user":   "alice",
			"device": "sonos",
			"status": "playing",
		}})
		if props == nil {
			t.Fatal("properties should be set")
		}
		if len(props.User) != 3 {
			t.Fatalf("len(User) = %d, want 3", len(props.User))
		}

		wantOrder := []string{"device", "status", "user"}
		for i, want := range wantOrder {
			if props.User[i].Key != want {
				t.Errorf("User[%d].Key = %q, want %q", i, props.User[i].Key, want)
			}
		}
	})
}
