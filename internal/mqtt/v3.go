// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package mqtt

import (
	"context"
	"fmt"
	"time"

	pahov3 "github.com/eclipse/paho.mqtt.golang"

	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
)

// v3Publisher speaks MQTT v3.1.1 via the classic paho client. Reconnection
// is delegated to the client's auto-reconnect; birth and will messages keep
// the availability topic truthful across drops.
type v3Publisher struct {
	client            pahov3.Client
	availabilityTopic string
}

func newV3Publisher(cfg *config.MQTTConfig) *v3Publisher {
	p := &v3Publisher{
		availabilityTopic: AvailabilityTopic(cfg.Topic),
	}
	p.client = pahov3.NewClient(buildV3Options(cfg))
	return p
}

// buildV3Options translates the MQTT section of the configuration into paho
// client options. Split out so tests can inspect the result without a broker.
func buildV3Options(cfg *config.MQTTConfig) *pahov3.ClientOptions {
	availability := AvailabilityTopic(cfg.Topic)

	opts := pahov3.NewClientOptions().
		AddBroker(cfg.URI()).
		SetClientID(cfg.ClientID).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetBinaryWill(availability, []byte(PayloadOffline), 1, true)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetOnConnectHandler(func(c pahov3.Client) {
		metrics.MQTTConnected.Set(1)
		logging.Info().Str("broker", cfg.URI()).Str("client_id", cfg.ClientID).Msg("Connected to MQTT broker")
		c.Publish(availability, 1, true, []byte(PayloadOnline))
	})

	opts.SetConnectionLostHandler(func(_ pahov3.Client, err error) {
		metrics.MQTTConnected.Set(0)
		logging.Warn().Err(err).Msg("MQTT connection lost")
	})

	opts.SetReconnectingHandler(func(pahov3.Client, *pahov3.ClientOptions) {
		metrics.MQTTReconnects.Inc()
		logging.Info().Msg("Reconnecting to MQTT broker")
	})

	return opts
}

func (p *v3Publisher) Connect(ctx context.Context) error {
	token := p.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("connect to broker: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *v3Publisher) Publish(ctx context.Context, msg Message) error {
	start := time.Now()
	token := p.client.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload)

	var err error
	select {
	case <-token.Done():
		err = token.Error()
	case <-ctx.Done():
		err = ctx.Err()
	}

	metrics.RecordPublish(time.Since(start), err)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Topic, err)
	}

	logging.Debug().Str("topic", msg.Topic).Int("bytes", len(msg.Payload)).Msg("Published message")
	return nil
}

func (p *v3Publisher) Connected() bool {
	return p.client.IsConnectionOpen()
}

func (p *v3Publisher) Disconnect(ctx context.Context) error {
	if p.client.IsConnectionOpen() {
		if err := p.Publish(ctx, offlineMessage(p.availabilityTopic)); err != nil {
			logging.Warn().Err(err).Msg("Failed to announce offline before disconnect")
		}
	}
	p.client.Disconnect(250)
	metrics.MQTTConnected.Set(0)
	logging.Info().Msg("Disconnected from MQTT broker")
	return nil
}
