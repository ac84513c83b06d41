// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package bridge implements the session reconciliation core. Every poll it
// fetches the active sessions from the media source, filters them by the
// configured selection strategy, detects which ones changed enough to
// republish, routes each to its MQTT topic, fires scrobble and discovery
// side effects, and prunes state for sessions that ended.
//
// A single Loop goroutine drives everything sequentially. The StateTracker
// it maintains doubles as the read-only projection served by the status API
// and the websocket feed.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
	"github.com/tomtom215/nuntius/internal/models"
	"github.com/tomtom215/nuntius/internal/mqtt"
)

// SessionSource yields the canonical sessions currently active on the media
// server. A failed fetch is reported as an error, never a partial batch.
type SessionSource interface {
	ActiveSessions(ctx context.Context) ([]models.Session, error)
}

// Scrobbler consumes playing sessions. Implementations own play-through
// thresholds and duplicate suppression; their errors are logged internally,
// never surfaced to the loop.
type Scrobbler interface {
	Observe(ctx context.Context, sess *models.Session)
}

// Registrar keeps home-automation discovery entities in step with sessions.
type Registrar interface {
	PushState(ctx context.Context, sess *models.Session) error
}

// Tracker accumulates the set of users and devices ever observed.
type Tracker interface {
	Observe(user, device string) (newUser, newDevice bool)
	Users() []string
	Devices() []string
	Save() error
}

// Feed receives every successfully published payload for live status
// consumers. Implementations must never block.
type Feed interface {
	BroadcastSession(payload []byte)
	BroadcastStopped(payload []byte)
}

// Loop drives the poll cycle. Source and publisher are required; a nil
// tracker, scrobbler, or registrar disables that concern.
type Loop struct {
	cfg       *config.Config
	source    SessionSource
	publisher mqtt.Publisher
	filter    *Filter
	detector  *Detector
	state     *StateTracker
	tracker   Tracker
	scrobbler Scrobbler
	registrar Registrar
	feed      Feed

	expiry time.Duration

	mu       sync.RWMutex
	ticks    uint64
	lastTick time.Time
	sourceUp bool
}

// LoopConfig wires a Loop's collaborators.
type LoopConfig struct {
	Config    *config.Config
	Source    SessionSource
	Publisher mqtt.Publisher
	State     *StateTracker
	Tracker   Tracker
	Scrobbler Scrobbler
	Registrar Registrar
	Feed      Feed
}

// NewLoop builds the reconciliation loop from its collaborators.
func NewLoop(lc LoopConfig) *Loop {
	return &Loop{
		cfg:       lc.Config,
		source:    lc.Source,
		publisher: lc.Publisher,
		filter:    NewFilter(&lc.Config.Bridge),
		detector:  NewDetector(lc.Config.Bridge.PositionDriftMs),
		state:     lc.State,
		tracker:   lc.Tracker,
		scrobbler: lc.Scrobbler,
		registrar: lc.Registrar,
		feed:      lc.Feed,
		// Retained session payloads age out of v5 brokers after two
		// missed polls instead of lingering as stale state.
		expiry: 2 * lc.Config.Bridge.PollInterval,
	}
}

// Serve implements suture.Service. It polls once immediately, then on every
// tick until the context is canceled, flushing the tracking store on the
// way out.
func (l *Loop) Serve(ctx context.Context) error {
	logging.Info().
		Dur("interval", l.cfg.Bridge.PollInterval).
		Str("session_strategy", l.cfg.Bridge.SessionStrategy).
		Str("topic_strategy", l.cfg.MQTT.TopicStrategy).
		Msg("Starting bridge loop")

	l.tick(ctx)

	ticker := time.NewTicker(l.cfg.Bridge.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.flush()
			logging.Info().Msg("[bridge] Loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// tick runs one full reconciliation cycle. All downstream calls share one
// deadline of a poll interval, so a hung collaborator cannot stall the loop
// past the next cycle.
func (l *Loop) tick(ctx context.Context) {
	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, l.cfg.Bridge.PollInterval)
	defer cancel()

	batch, fetchErr := l.fetch(tctx)
	sessions := l.filter.Apply(batch)

	var newUsers, newDevices bool
	for i := range sessions {
		nu, nd := l.reconcile(tctx, &sessions[i])
		newUsers = newUsers || nu
		newDevices = newDevices || nd
	}

	if len(sessions) > 0 {
		l.state.MarkActive()
	} else if l.state.MarkStopped() {
		l.publishStopped(tctx)
	}

	l.aggregate(tctx, sessions, newUsers, newDevices)
	l.prune(sessions)

	metrics.RecordPollCycle(time.Since(start), len(sessions), fetchErr)
	l.noteTick(start, fetchErr == nil)
}

// fetch pulls the current batch from the media source. A source failure is
// logged and yields an empty batch; the next tick retries independently.
func (l *Loop) fetch(ctx context.Context) ([]models.Session, error) {
	start := time.Now()
	sessions, err := l.source.ActiveSessions(ctx)
	metrics.RecordPlexFetch(time.Since(start), err)
	if err != nil {
		logging.Warn().Err(err).Msg("Session fetch failed, treating batch as empty")
		return nil, err
	}
	return sessions, nil
}

// reconcile processes one active session: tracking, change detection,
// publication, and side effects. Returns whether the session introduced a
// user or device never observed before.
func (l *Loop) reconcile(ctx context.Context, sess *models.Session) (newUser, newDevice bool) {
	if l.tracker != nil {
		newUser, newDevice = l.tracker.Observe(sess.User, sess.Device)
	}

	var last *models.Session
	if prev, ok := l.state.Last(sess.ChangeKey()); ok {
		last = &prev
	}
	if l.detector.ShouldPublish(sess, last) {
		l.publishSession(ctx, sess)
	}

	if sess.Status == models.StatusPlaying && l.scrobbler != nil {
		l.scrobbler.Observe(ctx, sess)
	}
	if l.registrar != nil {
		if err := l.registrar.PushState(ctx, sess); err != nil {
			logging.Warn().Err(err).
				Str("user", sess.User).
				Str("device", sess.Device).
				Msg("Discovery state push failed")
		}
	}

	l.state.Record(*sess)
	return newUser, newDevice
}

// publishSession routes and publishes one changed session. A failed publish
// is logged and dropped; the next detected change republishes naturally.
func (l *Loop) publishSession(ctx context.Context, sess *models.Session) {
	topic := RouteTopic(l.cfg.MQTT.Topic, l.cfg.MQTT.TopicStrategy, sess)
	payload, err := encodeSession(sess)
	if err != nil {
		logging.Error().Err(err).Str("topic", topic).Msg("Session encode failed")
		return
	}
	msg := l.message(topic, payload)
	msg.UserProperties = map[string]string{
		"user":   sess.User,
		"device": sess.Device,
		"status": string(sess.Status),
	}
	if err := l.publisher.Publish(ctx, msg); err != nil {
		logging.Warn().Err(err).Str("topic", topic).Msg("Session publish failed")
		return
	}
	metrics.ChangesPublished.Inc()
	if l.feed != nil {
		l.feed.BroadcastSession(payload)
	}
	logging.Info().
		Str("user", sess.User).
		Str("artist", sess.Artist).
		Str("title", sess.Title).
		Str("status", string(sess.Status)).
		Str("topic", topic).
		Msg("Published session update")
}

// publishStopped announces the nothing-is-playing sentinel on the base topic.
func (l *Loop) publishStopped(ctx context.Context) {
	payload, err := encodeStopped(time.Now().UTC())
	if err != nil {
		logging.Error().Err(err).Msg("Stopped sentinel encode failed")
		return
	}
	if err := l.publisher.Publish(ctx, l.message(l.cfg.MQTT.Topic, payload)); err != nil {
		logging.Warn().Err(err).Msg("Stopped sentinel publish failed")
		return
	}
	if l.feed != nil {
		l.feed.BroadcastStopped(payload)
	}
	logging.Info().Msg("No active sessions, published stopped status")
}

// aggregate publishes the roster topics when the observed sets grew this
// poll, and the batch summary when more than one session is active or
// summaries are forced on by configuration.
func (l *Loop) aggregate(ctx context.Context, sessions []models.Session, newUsers, newDevices bool) {
	now := time.Now().UTC()
	base := l.cfg.MQTT.Topic

	if l.tracker != nil && newUsers {
		l.publishRoster(ctx, base+"/users", l.tracker.Users(), now)
	}
	if l.tracker != nil && newDevices {
		l.publishRoster(ctx, base+"/devices", l.tracker.Devices(), now)
	}

	if len(sessions) > 1 || l.cfg.Bridge.PublishSummary {
		payload, err := encodeSummary(sessions, now)
		if err != nil {
			logging.Error().Err(err).Msg("Summary encode failed")
			return
		}
		if err := l.publisher.Publish(ctx, l.message(base+"/summary", payload)); err != nil {
			logging.Warn().Err(err).Msg("Summary publish failed")
		}
	}
}

// publishRoster publishes one observed-identity set as a retained message so
// new subscribers see the roster immediately.
func (l *Loop) publishRoster(ctx context.Context, topic string, names []string, now time.Time) {
	payload, err := encodeRoster(names, now)
	if err != nil {
		logging.Error().Err(err).Str("topic", topic).Msg("Roster encode failed")
		return
	}
	msg := l.message(topic, payload)
	msg.Retain = true
	msg.Expiry = 0 // rosters do not age out
	if err := l.publisher.Publish(ctx, msg); err != nil {
		logging.Warn().Err(err).Str("topic", topic).Msg("Roster publish failed")
	}
}

// prune drops state for sessions absent from the current batch.
func (l *Loop) prune(sessions []models.Session) {
	activeChange := make(map[string]struct{}, len(sessions))
	activeDevice := make(map[string]struct{}, len(sessions))
	for i := range sessions {
		activeChange[sessions[i].ChangeKey()] = struct{}{}
		activeDevice[sessions[i].DeviceKey()] = struct{}{}
	}
	if dropped := l.state.Prune(activeChange, activeDevice); dropped > 0 {
		logging.Debug().Int("ended", dropped).Msg("Pruned ended sessions")
	}
}

// flush persists tracking state before shutdown.
func (l *Loop) flush() {
	if l.tracker == nil {
		return
	}
	if err := l.tracker.Save(); err != nil {
		logging.Error().Err(err).Msg("Final tracking save failed")
	}
}

// message assembles a publish with the bridge's QoS, retain, and v5 metadata
// defaults. The v3 publisher ignores the metadata fields.
func (l *Loop) message(topic string, payload []byte) mqtt.Message {
	return mqtt.Message{
		Topic:       topic,
		Payload:     payload,
		QoS:         byte(l.cfg.MQTT.QoS),
		Retain:      l.cfg.MQTT.Retain,
		Expiry:      l.expiry,
		ContentType: "application/json",
	}
}

// noteTick records loop liveness for the status API.
func (l *Loop) noteTick(at time.Time, sourceUp bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ticks++
	l.lastTick = at
	l.sourceUp = sourceUp
}

// LoopStats is a point-in-time view of loop liveness.
type LoopStats struct {
	Ticks          uint64    `json:"ticks"`
	LastTick       time.Time `json:"last_tick"`
	SourceHealthy  bool      `json:"source_healthy"`
	Phase          string    `json:"phase"`
	ActiveSessions int       `json:"active_sessions"`
}

// Stats reports loop liveness for the status API.
func (l *Loop) Stats() LoopStats {
	l.mu.RLock()
	ticks := l.ticks
	lastTick := l.lastTick
	sourceUp := l.sourceUp
	l.mu.RUnlock()

	return LoopStats{
		Ticks:          ticks,
		LastTick:       lastTick,
		SourceHealthy:  sourceUp,
		Phase:          l.state.Phase().String(),
		ActiveSessions: l.state.ActiveCount(),
	}
}
