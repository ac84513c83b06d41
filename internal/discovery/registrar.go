// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package discovery registers one Home Assistant MQTT discovery sensor per
// observed (user, device) pair and keeps each sensor's state topic current.
//
// Registration publishes a retained config document under the discovery
// prefix, so Home Assistant picks the sensor up without any YAML. State
// pushes go through a local shadow: a value is only republished when it
// differs from the last one accepted by the broker, which keeps idle
// sessions from generating a state write every poll.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
	"github.com/tomtom215/nuntius/internal/models"
	"github.com/tomtom215/nuntius/internal/mqtt"
)

// NotPlaying is the display state pushed for any session that is not
// actively playing.
const NotPlaying = "Not Playing"

// nodeID groups every Nuntius sensor under one discovery node.
const nodeID = "nuntius"

// sensor is the local bookkeeping for one registered entity. lastState is
// empty until the first successful push; real display values are never
// empty, so the zero value always triggers the initial publish.
type sensor struct {
	objectID  string
	lastState string
}

// sensorConfig is the Home Assistant discovery document.
type sensorConfig struct {
	Name              string     `json:"name"`
	UniqueID          string     `json:"unique_id"`
	StateTopic        string     `json:"state_topic"`
	AvailabilityTopic string     `json:"availability_topic,omitempty"`
	Icon              string     `json:"icon,omitempty"`
	Device            deviceInfo `json:"device"`
}

// deviceInfo groups all Nuntius sensors under one device entry in the
// Home Assistant registry.
type deviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
}

// Registrar owns the discovery lifecycle. Safe for the single reconcile
// goroutine plus concurrent Count readers.
type Registrar struct {
	mu        sync.Mutex
	publisher mqtt.Publisher
	prefix    string
	qos       byte
	avail     string
	sensors   map[string]*sensor
}

// NewRegistrar wires the registrar to the shared broker connection. The
// availability topic ties every sensor to the bridge's online/offline
// lifecycle, so sensors show "unavailable" when the bridge is down instead
// of a stale title.
func NewRegistrar(cfg *config.DiscoveryConfig, mqttCfg *config.MQTTConfig, publisher mqtt.Publisher) *Registrar {
	return &Registrar{
		publisher: publisher,
		prefix:    cfg.Prefix,
		qos:       byte(mqttCfg.QoS),
		avail:     mqtt.AvailabilityTopic(mqttCfg.Topic),
		sensors:   make(map[string]*sensor),
	}
}

// EnsureEntity registers a sensor for the pair if one does not exist yet.
// Idempotent: a second call for the same identity is a no-op.
func (r *Registrar) EnsureEntity(ctx context.Context, user, device string) error {
	key := user + "_" + device

	r.mu.Lock()
	if _, ok := r.sensors[key]; ok {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	object := objectID(user, device)
	doc := sensorConfig{
		Name:              fmt.Sprintf("%s %s Now Playing", user, device),
		UniqueID:          nodeID + "_" + object,
		StateTopic:        r.stateTopic(object),
		AvailabilityTopic: r.avail,
		Icon:              "mdi:music-note",
		Device: deviceInfo{
			Identifiers:  []string{nodeID},
			Name:         "Nuntius",
			Manufacturer: "tomtom215",
			Model:        "Plex Now Playing Bridge",
		},
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal discovery config: %w", err)
	}

	if err := r.publisher.Publish(ctx, mqtt.Message{
		Topic:       r.configTopic(object),
		Payload:     payload,
		QoS:         r.qos,
		Retain:      true,
		ContentType: "application/json",
	}); err != nil {
		return fmt.Errorf("publish discovery config: %w", err)
	}

	r.mu.Lock()
	r.sensors[key] = &sensor{objectID: object}
	metrics.DiscoveryEntities.Set(float64(len(r.sensors)))
	r.mu.Unlock()

	logging.Info().
		Str("user", user).
		Str("device", device).
		Str("object_id", object).
		Msg("Registered discovery sensor")
	return nil
}

// PushState publishes the session's display state, registering the sensor
// first if needed. The display is the track title while playing and the
// NotPlaying sentinel otherwise. Unchanged values are skipped; the shadow
// only advances on broker acknowledgement so a failed push retries on the
// next tick.
func (r *Registrar) PushState(ctx context.Context, sess *models.Session) error {
	if err := r.EnsureEntity(ctx, sess.User, sess.Device); err != nil {
		return err
	}

	display := NotPlaying
	if sess.Status == models.StatusPlaying {
		display = sess.Title
	}

	key := sess.DeviceKey()
	r.mu.Lock()
	s, ok := r.sensors[key]
	if !ok || s.lastState == display {
		r.mu.Unlock()
		return nil
	}
	object := s.objectID
	r.mu.Unlock()

	if err := r.publisher.Publish(ctx, mqtt.Message{
		Topic:   r.stateTopic(object),
		Payload: []byte(display),
		QoS:     r.qos,
		Retain:  true,
	}); err != nil {
		return fmt.Errorf("push discovery state: %w", err)
	}

	r.mu.Lock()
	if s, ok := r.sensors[key]; ok {
		s.lastState = display
	}
	r.mu.Unlock()
	metrics.DiscoveryStatePushes.Inc()
	return nil
}

// RemoveEntity drops the local bookkeeping for the pair and publishes an
// empty retained config, which asks Home Assistant to forget the sensor.
// The downstream removal is best effort; local state is gone either way.
func (r *Registrar) RemoveEntity(ctx context.Context, user, device string) error {
	key := user + "_" + device

	r.mu.Lock()
	s, ok := r.sensors[key]
	if ok {
		delete(r.sensors, key)
		metrics.DiscoveryEntities.Set(float64(len(r.sensors)))
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	if err := r.publisher.Publish(ctx, mqtt.Message{
		Topic:  r.configTopic(s.objectID),
		QoS:    r.qos,
		Retain: true,
	}); err != nil {
		return fmt.Errorf("clear discovery config: %w", err)
	}
	return nil
}

// Count returns the number of registered sensors.
func (r *Registrar) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sensors)
}

func (r *Registrar) configTopic(object string) string {
	return r.prefix + "/sensor/" + nodeID + "/" + object + "/config"
}

func (r *Registrar) stateTopic(object string) string {
	return r.prefix + "/sensor/" + nodeID + "/" + object + "/state"
}

// objectID builds a Home Assistant object id from the pair. The registry
// only accepts lowercase alphanumerics, underscore, and hyphen, which is
// stricter than MQTT topic rules, so this does not reuse the topic
// sanitizer.
func objectID(user, device string) string {
	return sanitizeObjectID(user) + "_" + sanitizeObjectID(device)
}

func sanitizeObjectID(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, c := range strings.ToLower(raw) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
