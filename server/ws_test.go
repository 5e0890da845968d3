package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newWSTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(log)
	a := newAPI(nil, hub, log, config{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", a.handleWS)
	srv := httptest.NewServer(withLogging(log, mux))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return srv, hub
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendWS(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readWS(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return ev
}

func waitOnline(t *testing.T, hub *Hub, userID int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.IsOnline(userID) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("user %d never came online", userID)
}

func TestWSAnnounceAndStatusBroadcast(t *testing.T) {
	srv, hub := newWSTestServer(t)

	watcher := dialWS(t, srv)
	conn := dialWS(t, srv)

	sendWS(t, conn, "user-online", 42)
	waitOnline(t, hub, 42)

	ev := readWS(t, watcher)
	if ev.Event != "user-status" {
		t.Fatalf("event = %q, want user-status", ev.Event)
	}
	data, _ := ev.Data.(map[string]any)
	if data["status"] != "online" || data["user_id"] != float64(42) {
		t.Errorf("data = %v, want user 42 online", ev.Data)
	}
}

func TestWSJoinProjectReceivesRoomEvents(t *testing.T) {
	srv, hub := newWSTestServer(t)

	conn := dialWS(t, srv)
	outsider := dialWS(t, srv)

	sendWS(t, conn, "user-online", 1)
	waitOnline(t, hub, 1)
	sendWS(t, conn, "join-project", 10)

	// Join has no ack; poll the hub until the room exists.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.rooms[projectRoom(10)])
		hub.mu.RUnlock()
		if n == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(projectRoom(10), "task-created", map[string]any{"id": 7})

	ev := readWS(t, conn)
	if ev.Event != "task-created" {
		t.Errorf("event = %q, want task-created", ev.Event)
	}

	_ = outsider.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := outsider.ReadMessage(); err == nil {
		t.Error("outsider received a room event it never subscribed to")
	}
}

func TestWSLegacyDirectEmit(t *testing.T) {
	srv, hub := newWSTestServer(t)

	member := dialWS(t, srv)
	sender := dialWS(t, srv)

	sendWS(t, member, "join-project", 3)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.rooms[projectRoom(3)])
		hub.mu.RUnlock()
		if n == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Legacy camelCase payload key must still route.
	sendWS(t, sender, "task-update", map[string]any{"projectId": 3, "task": map[string]any{"id": 8}})

	ev := readWS(t, member)
	if ev.Event != "task-updated" {
		t.Errorf("event = %q, want task-updated", ev.Event)
	}
}

func TestWSDisconnectBroadcastsOffline(t *testing.T) {
	srv, hub := newWSTestServer(t)

	watcher := dialWS(t, srv)
	conn := dialWS(t, srv)

	sendWS(t, conn, "user-online", 7)
	waitOnline(t, hub, 7)
	if ev := readWS(t, watcher); ev.Event != "user-status" {
		t.Fatalf("event = %q, want user-status", ev.Event)
	}

	_ = conn.Close()

	ev := readWS(t, watcher)
	if ev.Event != "user-status" {
		t.Fatalf("event = %q, want user-status", ev.Event)
	}
	data, _ := ev.Data.(map[string]any)
	if data["status"] != "offline" || data["user_id"] != float64(7) {
		t.Errorf("data = %v, want user 7 offline", ev.Data)
	}
}

func TestWSIDParsing(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int64
		ok   bool
	}{
		{"number", `12`, 12, true},
		{"string", `"12"`, 12, true},
		{"zero", `0`, 0, false},
		{"junk", `"abc"`, 0, false},
		{"object", `{"id":1}`, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := wsID(json.RawMessage(tc.raw))
			if got != tc.want || ok != tc.ok {
				t.Errorf("wsID(%s) = (%d, %v), want (%d, %v)", tc.raw, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestWSPayloadIDKeyFallback(t *testing.T) {
	raw := json.RawMessage(`{"projectId": "5"}`)
	id, ok := wsPayloadID(raw, "project_id", "projectId")
	if !ok || id != 5 {
		t.Errorf("wsPayloadID = (%d, %v), want (5, true)", id, ok)
	}
	if _, ok := wsPayloadID(json.RawMessage(`{"other": 1}`), "project_id", "projectId"); ok {
		t.Error("wsPayloadID matched a missing key")
	}
}
