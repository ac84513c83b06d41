// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/nuntius/internal/bridge"
	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/models"
	"github.com/tomtom215/nuntius/internal/mqtt"
	"github.com/tomtom215/nuntius/internal/tracking"
	ws "github.com/tomtom215/nuntius/internal/websocket"
)

// maskedSecret replaces credential values in the config endpoint.
const maskedSecret = "***HIDDEN***"

// StatsSource reports loop liveness for the status payload.
type StatsSource interface {
	Stats() bridge.LoopStats
}

// Ledger reports scrobble dedup ledger occupancy.
type Ledger interface {
	LedgerLen() int
}

// EntityRegistry reports how many discovery sensors have been announced.
type EntityRegistry interface {
	Count() int
}

// Deps collects the collaborators the handlers read from. Config, Loop,
// State, and Publisher are required; leaving an optional collaborator nil
// marks its feature disabled in the status payload.
type Deps struct {
	Config    *config.Config
	Loop      StatsSource
	State     *bridge.StateTracker
	Store     tracking.Store
	Publisher mqtt.Publisher
	Scrobbler Ledger
	Registrar EntityRegistry
	Hub       *ws.Hub
	Version   string
}

// Handler answers the status endpoints from live collaborator state.
type Handler struct {
	cfg       *config.Config
	loop      StatsSource
	state     *bridge.StateTracker
	store     tracking.Store
	publisher mqtt.Publisher
	scrobbler Ledger
	registrar EntityRegistry
	hub       *ws.Hub
	version   string
	startTime time.Time
}

// NewHandler builds the handler set.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		cfg:       deps.Config,
		loop:      deps.Loop,
		state:     deps.State,
		store:     deps.Store,
		publisher: deps.Publisher,
		scrobbler: deps.Scrobbler,
		registrar: deps.Registrar,
		hub:       deps.Hub,
		version:   deps.Version,
		startTime: time.Now(),
	}
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]string{
		"status":  "ok",
		"version": h.version,
		"uptime":  h.uptime(),
	})
}

// statusPayload mirrors the dashboard's status card: connectivity flags,
// counters, and the loop's own liveness block.
type statusPayload struct {
	ServerConnected    bool             `json:"server_connected"`
	MQTTConnected      bool             `json:"mqtt_connected"`
	MQTTBroker         string           `json:"mqtt_broker"`
	MQTTPort           int              `json:"mqtt_port"`
	MQTTProtocol       string           `json:"mqtt_protocol"`
	Transport          string           `json:"transport"`
	TopicStrategy      string           `json:"topic_strategy"`
	PollingInterval    float64          `json:"polling_interval"`
	Uptime             string           `json:"uptime"`
	Version            string           `json:"version"`
	ActiveSessions     int              `json:"active_sessions_count"`
	TotalSessions      int              `json:"total_sessions"`
	TrackedUsers       int              `json:"tracked_users_count"`
	TrackedDevices     int              `json:"tracked_devices_count"`
	LastFMEnabled      bool             `json:"lastfm_enabled"`
	LastFMConnected    bool             `json:"lastfm_connected"`
	ScrobbleLedger     int              `json:"scrobble_ledger_entries"`
	DiscoveryEnabled   bool             `json:"homeassistant_enabled"`
	DiscoveredEntities int              `json:"homeassistant_discovered_entities"`
	Loop               bridge.LoopStats `json:"loop"`
}

// Status reports bridge connectivity and counters.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	stats := h.loop.Stats()
	sessions := h.state.Sessions()

	payload := statusPayload{
		ServerConnected:  stats.SourceHealthy,
		MQTTConnected:    h.publisher.Connected(),
		MQTTBroker:       h.cfg.MQTT.Broker,
		MQTTPort:         h.cfg.MQTT.Port,
		MQTTProtocol:     protocolLabel(h.cfg.MQTT.Protocol),
		Transport:        h.cfg.MQTT.Transport,
		TopicStrategy:    h.cfg.MQTT.TopicStrategy,
		PollingInterval:  h.cfg.Bridge.PollInterval.Seconds(),
		Uptime:           h.uptime(),
		Version:          h.version,
		ActiveSessions:   countActive(sessions),
		TotalSessions:    len(sessions),
		LastFMEnabled:    h.cfg.LastFM.Enabled,
		LastFMConnected:  h.scrobbler != nil,
		DiscoveryEnabled: h.cfg.Discovery.Enabled,
		Loop:             stats,
	}
	if h.store != nil {
		payload.TrackedUsers = len(h.store.Users())
		payload.TrackedDevices = len(h.store.Devices())
	}
	if h.scrobbler != nil {
		payload.ScrobbleLedger = h.scrobbler.LedgerLen()
	}
	if h.registrar != nil {
		payload.DiscoveredEntities = h.registrar.Count()
	}

	WriteSuccess(w, r, payload)
}

// sessionView is one live session as the dashboard renders it, with
// preformatted clock strings and the destination topic.
type sessionView struct {
	SessionKey         string        `json:"session_key"`
	User               string        `json:"user"`
	Device             string        `json:"device"`
	DeviceOriginal     string        `json:"device_original"`
	Title              string        `json:"title"`
	Artist             string        `json:"artist"`
	Album              string        `json:"album"`
	Status             models.Status `json:"status"`
	ProgressPercent    float64       `json:"progress_percent"`
	DurationFormatted  string        `json:"duration_formatted"`
	PositionFormatted  string        `json:"position_formatted"`
	RemainingFormatted string        `json:"remaining_formatted"`
	Thumb              string        `json:"thumb"`
	Year               int           `json:"year"`
	TrackNumber        int           `json:"track_number"`
	Bitrate            int           `json:"bitrate"`
	Codec              string        `json:"codec"`
	Topic              string        `json:"topic"`
	LastUpdated        time.Time     `json:"last_updated"`
}

// Sessions lists the sessions currently playing or paused.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	views := h.sessionViews()
	WriteSuccess(w, r, map[string]any{
		"sessions":     views,
		"count":        len(views),
		"last_updated": time.Now(),
	})
}

func (h *Handler) sessionViews() []sessionView {
	sessions := h.state.Sessions()
	views := make([]sessionView, 0, len(sessions))
	for i := range sessions {
		sess := &sessions[i]
		if sess.Status != models.StatusPlaying && sess.Status != models.StatusPaused {
			continue
		}
		views = append(views, sessionView{
			SessionKey:         sess.DeviceKey(),
			User:               sess.User,
			Device:             sess.Device,
			DeviceOriginal:     sess.DeviceOriginal,
			Title:              sess.Title,
			Artist:             sess.Artist,
			Album:              sess.Album,
			Status:             sess.Status,
			ProgressPercent:    sess.ProgressPercent,
			DurationFormatted:  models.FormatDuration(sess.DurationMs),
			PositionFormatted:  models.FormatDuration(sess.PositionMs),
			RemainingFormatted: models.FormatDuration(sess.DurationMs - sess.PositionMs),
			Thumb:              sess.ThumbURL,
			Year:               sess.Year,
			TrackNumber:        sess.TrackNumber,
			Bitrate:            sess.BitrateKbps,
			Codec:              sess.Codec,
			Topic:              bridge.RouteTopic(h.cfg.MQTT.Topic, h.cfg.MQTT.TopicStrategy, sess),
			LastUpdated:        sess.Timestamp,
		})
	}
	return views
}

// usersDevicesPayload is the combined tracking view plus persistence info.
type usersDevicesPayload struct {
	Users              []string  `json:"users"`
	UsersCount         int       `json:"users_count"`
	Devices            []string  `json:"devices"`
	DevicesCount       int       `json:"devices_count"`
	LastSaved          time.Time `json:"last_saved"`
	PersistenceEnabled bool      `json:"persistence_enabled"`
	PersistenceFile    string    `json:"persistence_file"`
}

// UsersDevices reports every user and device ever observed.
func (h *Handler) UsersDevices(w http.ResponseWriter, r *http.Request) {
	payload := usersDevicesPayload{
		Users:              []string{},
		Devices:            []string{},
		PersistenceEnabled: h.cfg.Tracking.Enabled && h.cfg.Tracking.AutoSave,
		PersistenceFile:    h.cfg.Tracking.Path,
	}
	if h.store != nil {
		snap := h.store.Snapshot()
		payload.Users = snap.Users
		payload.UsersCount = snap.UserCount
		payload.Devices = snap.Devices
		payload.DevicesCount = snap.DeviceCount
		payload.LastSaved = snap.LastSaved
	}
	WriteSuccess(w, r, payload)
}

// SaveTracking forces a tracking store write, the API's only mutation.
func (h *Handler) SaveTracking(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.store == nil {
		rw.ServiceUnavailable("Tracking is disabled")
		return
	}
	if err := h.store.Save(); err != nil {
		logging.Error().Err(err).Msg("Forced tracking save failed")
		rw.InternalError("Failed to save tracking state")
		return
	}
	rw.Success(map[string]any{
		"message":   "Tracking state saved",
		"timestamp": time.Now(),
	})
}

// Users reports the observed user roster.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	users := []string{}
	if h.store != nil {
		users = h.store.Users()
	}
	WriteSuccess(w, r, map[string]any{
		"users":        users,
		"count":        len(users),
		"last_updated": time.Now(),
	})
}

// Devices reports the observed device roster.
func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	devices := []string{}
	if h.store != nil {
		devices = h.store.Devices()
	}
	WriteSuccess(w, r, map[string]any{
		"devices":      devices,
		"count":        len(devices),
		"last_updated": time.Now(),
	})
}

// Config reports the running configuration with credentials masked.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, newConfigView(h.cfg))
}

// WebSocket upgrades the connection and attaches it to the live feed hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Live feed is not enabled")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request.
		logging.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// checkOrigin applies the CORS origin list to websocket upgrades. Browserless
// clients without an Origin header are rejected.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	for _, allowed := range h.cfg.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (h *Handler) uptime() string {
	total := int(time.Since(h.startTime).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

func countActive(sessions []models.Session) int {
	n := 0
	for i := range sessions {
		if sessions[i].Status == models.StatusPlaying || sessions[i].Status == models.StatusPaused {
			n++
		}
	}
	return n
}

func protocolLabel(protocol int) string {
	if protocol == 5 {
		return "MQTT v5"
	}
	return "MQTT v3.1.1"
}
