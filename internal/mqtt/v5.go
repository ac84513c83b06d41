// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
)

// v5Publisher speaks MQTT v5 via autopaho's connection manager, which owns
// reconnection. Publishes carry the v5 properties the v3 path cannot:
// message expiry, content type, and user properties.
type v5Publisher struct {
	cfg               autopaho.ClientConfig
	cm                *autopaho.ConnectionManager
	cancel            context.CancelFunc
	connected         atomic.Bool
	everConnected     atomic.Bool
	availabilityTopic string
}

func newV5Publisher(cfg *config.MQTTConfig) (*v5Publisher, error) {
	p := &v5Publisher{
		availabilityTopic: AvailabilityTopic(cfg.Topic),
	}

	clientCfg, err := p.buildConfig(cfg)
	if err != nil {
		return nil, err
	}
	p.cfg = clientCfg
	return p, nil
}

// buildConfig translates the MQTT section of the configuration into an
// autopaho client config wired to this publisher's connection state.
func (p *v5Publisher) buildConfig(cfg *config.MQTTConfig) (autopaho.ClientConfig, error) {
	brokerURL, err := url.Parse(cfg.URI())
	if err != nil {
		return autopaho.ClientConfig{}, fmt.Errorf("parse broker uri: %w", err)
	}

	clientCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     uint16(cfg.KeepAlive.Seconds()),
		CleanStartOnInitialConnection: true,
		ConnectRetryDelay:             5 * time.Second,
		ConnectTimeout:                cfg.ConnectTimeout,
		WillMessage: &paho.WillMessage{
			Retain:  true,
			QoS:     1,
			Topic:   p.availabilityTopic,
			Payload: []byte(PayloadOffline),
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.connected.Store(true)
			metrics.MQTTConnected.Set(1)
			if p.everConnected.Swap(true) {
				metrics.MQTTReconnects.Inc()
			}
			logging.Info().Str("broker", brokerURL.String()).Str("client_id", cfg.ClientID).Msg("Connected to MQTT broker")

			if _, err := cm.Publish(context.Background(), &paho.Publish{
				Topic:   p.availabilityTopic,
				QoS:     1,
				Retain:  true,
				Payload: []byte(PayloadOnline),
			}); err != nil {
				logging.Warn().Err(err).Msg("Failed to announce online")
			}
		},
		OnConnectError: func(err error) {
			p.connected.Store(false)
			metrics.MQTTConnected.Set(0)
			logging.Warn().Err(err).Msg("MQTT connect attempt failed")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: cfg.ClientID,
			OnClientError: func(err error) {
				p.connected.Store(false)
				metrics.MQTTConnected.Set(0)
				logging.Warn().Err(err).Msg("MQTT client error")
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				p.connected.Store(false)
				metrics.MQTTConnected.Set(0)
				logging.Warn().Uint8("reason_code", uint8(d.ReasonCode)).Msg("MQTT server requested disconnect")
			},
		},
	}

	if cfg.Username != "" {
		clientCfg.ConnectUsername = cfg.Username
		clientCfg.ConnectPassword = []byte(cfg.Password)
	}

	return clientCfg, nil
}

func (p *v5Publisher) Connect(ctx context.Context) error {
	// The manager context outlives the connect call; cancelling it tears the
	// connection down, which Disconnect does.
	managerCtx, cancel := context.WithCancel(context.Background())

	cm, err := autopaho.NewConnection(managerCtx, p.cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("create connection manager: %w", err)
	}

	if err := cm.AwaitConnection(ctx); err != nil {
		cancel()
		return fmt.Errorf("await broker connection: %w", err)
	}

	p.cm = cm
	p.cancel = cancel
	return nil
}

func (p *v5Publisher) Publish(ctx context.Context, msg Message) error {
	if p.cm == nil {
		return errors.New("publisher not connected")
	}

	pub := &paho.Publish{
		Topic:   msg.Topic,
		QoS:     msg.QoS,
		Retain:  msg.Retain,
		Payload: msg.Payload,
	}
	if props := buildProperties(msg); props != nil {
		pub.Properties = props
	}

	start := time.Now()
	_, err := p.cm.Publish(ctx, pub)
	metrics.RecordPublish(time.Since(start), err)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Topic, err)
	}

	logging.Debug().Str("topic", msg.Topic).Int("bytes", len(msg.Payload)).Msg("Published message")
	return nil
}

// buildProperties assembles the v5 publish properties, or nil when the
// message carries none. User properties are emitted in sorted key order so
// payload captures stay diffable.
func buildProperties(msg Message) *paho.PublishProperties {
	if msg.ContentType == "" && msg.Expiry <= 0 && len(msg.UserProperties) == 0 {
		return nil
	}

	props := &paho.PublishProperties{
		ContentType: msg.ContentType,
	}

	if msg.Expiry > 0 {
		expiry := uint32(msg.Expiry / time.Second)
		if expiry == 0 {
			expiry = 1
		}
		props.MessageExpiry = &expiry
	}

	keys := make([]string, 0, len(msg.UserProperties))
	for k := range msg.UserProperties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		props.User = append(props.User, paho.UserProperty{Key: k, Value: msg.UserProperties[k]})
	}

	return props
}

func (p *v5Publisher) Connected() bool {
	return p.connected.Load()
}

func (p *v5Publisher) Disconnect(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}

	if p.Connected() {
		if err := p.Publish(ctx, offlineMessage(p.availabilityTopic)); err != nil {
			logging.Warn().Err(err).Msg("Failed to announce offline before disconnect")
		}
	}

	err := p.cm.Disconnect(ctx)
	p.cancel()
	p.connected.Store(false)
	metrics.MQTTConnected.Set(0)
	logging.Info().Msg("Disconnected from MQTT broker")

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}
