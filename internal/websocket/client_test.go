// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialTestHub stands up a hub plus an HTTP endpoint that upgrades and
// registers clients, then dials it. Returns the caller side connection.
func dialTestHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Serve(ctx) }()
	t.Cleanup(cancel)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		client := NewClient(hub, conn)
		hub.Register <- client
		client.Start()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	waitCount(t, hub, 1)
	return hub, conn
}

func TestClient_ReceivesBroadcastOverWire(t *testing.T) {
	hub, conn := dialTestHub(t)

	hub.BroadcastSession([]byte(`{"title":"Glory Box","artist":"Portishead","status":"playing"}`))

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read broadcast frame: %v", err)
	}
	if msg.Type != MessageTypeSession {
		t.Errorf("frame type = %q, want %q", msg.Type, MessageTypeSession)
	}
	data, ok := msg.Data.(map[string]any)
	if !ok {
		t.Fatalf("frame data is %T, want map", msg.Data)
	}
	if data["artist"] != "Portishead" {
		t.Errorf("frame artist = %v, want Portishead", data["artist"])
	}
}

func TestClient_PingAnsweredWithPong(t *testing.T) {
	_, conn := dialTestHub(t)

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read pong frame: %v", err)
	}
	if msg.Type != MessageTypePong {
		t.Errorf("frame type = %q, want %q", msg.Type, MessageTypePong)
	}
}

func TestClient_DisconnectUnregisters(t *testing.T) {
	hub, conn := dialTestHub(t)

	_ = conn.Close()

	if got := waitCount(t, hub, 0); got != 0 {
		t.Fatalf("ClientCount() after disconnect = %d, want 0", got)
	}
}
