// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

// Package websocket feeds live playback updates to dashboard clients. The
// Hub fans every published session payload and idle transition out to all
// connected clients; slow clients are dropped rather than allowed to block
// the feed.
package websocket

import (
	"context"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
)

// Message types sent over the feed.
const (
	MessageTypeSession = "session"
	MessageTypeStopped = "stopped"
	MessageTypePing    = "ping"
	MessageTypePong    = "pong"
)

// Message is one feed frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub maintains the set of connected clients and broadcasts messages to
// them. Lifecycle events always win over pending broadcasts so client state
// stays consistent.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
}

// NewHub creates an idle hub; Serve starts it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Serve implements suture.Service. On cancellation every connected client is
// closed before returning, so a supervisor restart never leaks connections.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		// Lifecycle events first, so a disconnecting client is never
		// handed another broadcast.
		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAll(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("Websocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("Websocket client disconnected")
}

// fanOut delivers one message to every client in id order. A client whose
// send buffer is full is disconnected; the feed never waits for a reader.
func (h *Hub) fanOut(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, client := range clients {
		select {
		case client.send <- msg:
			metrics.WSMessagesSent.Inc()
		default:
			close(client.send)
			delete(h.clients, client)
			metrics.WSErrors.WithLabelValues("slow_client").Inc()
		}
	}
	metrics.WSConnections.Set(float64(len(h.clients)))
}

func (h *Hub) closeAll(ctx context.Context) {
	h.mu.Lock()
	count := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WSConnections.Set(0)
	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", count).
		Msg("Websocket hub stopped")
}

// BroadcastSession queues one published session payload for all clients.
// Implements the bridge feed contract; a full queue drops the frame rather
// than stalling the reconcile loop.
func (h *Hub) BroadcastSession(payload []byte) {
	h.enqueue(MessageTypeSession, payload)
}

// BroadcastStopped queues the idle-transition sentinel payload.
func (h *Hub) BroadcastStopped(payload []byte) {
	h.enqueue(MessageTypeStopped, payload)
}

func (h *Hub) enqueue(msgType string, payload []byte) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		metrics.WSErrors.WithLabelValues("decode").Inc()
		logging.Warn().Err(err).Str("type", msgType).Msg("Broadcast payload decode failed")
		return
	}

	select {
	case h.broadcast <- Message{Type: msgType, Data: data}:
	default:
		metrics.WSErrors.WithLabelValues("queue_full").Inc()
		logging.Warn().Str("type", msgType).Msg("Broadcast queue full, dropping frame")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
