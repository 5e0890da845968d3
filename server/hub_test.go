package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestClient(id string, buf int) *wsClient {
	return &wsClient{id: id, send: make(chan []byte, buf)}
}

func recvEvent(t *testing.T, c *wsClient) Event {
	t.Helper()
	select {
	case raw := <-c.send:
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return ev
	default:
		t.Fatalf("no event pending for client %s", c.id)
		return Event{}
	}
}

func drain(c *wsClient) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func TestHubRoomIsolation(t *testing.T) {
	h := newTestHub()
	a := newTestClient("a", 4)
	b := newTestClient("b", 4)
	h.Register(a)
	h.Register(b)
	h.Join(a, projectRoom(1))
	h.Join(b, projectRoom(2))

	h.Publish(projectRoom(1), "task-created", map[string]any{"id": 7})

	ev := recvEvent(t, a)
	if ev.Event != "task-created" {
		t.Errorf("event = %q, want %q", ev.Event, "task-created")
	}
	if len(b.send) != 0 {
		t.Errorf("client b received %d events, want 0", len(b.send))
	}
}

func TestHubBroadcastReachesEveryone(t *testing.T) {
	h := newTestHub()
	a := newTestClient("a", 4)
	b := newTestClient("b", 4)
	h.Register(a)
	h.Register(b)

	h.Publish("", "user-status", map[string]any{"user_id": 3, "status": "online"})

	for _, c := range []*wsClient{a, b} {
		ev := recvEvent(t, c)
		if ev.Event != "user-status" {
			t.Errorf("client %s event = %q, want user-status", c.id, ev.Event)
		}
	}
}

func TestHubPublishEmptyRoomIsSilent(t *testing.T) {
	h := newTestHub()
	a := newTestClient("a", 4)
	h.Register(a)
	h.Join(a, projectRoom(1))

	// No subscribers in project-99; nothing should be delivered anywhere.
	h.Publish(projectRoom(99), "task-updated", nil)
	if len(a.send) != 0 {
		t.Errorf("client a received %d events, want 0", len(a.send))
	}
}

func TestHubPresenceLastWriterWins(t *testing.T) {
	h := newTestHub()
	first := newTestClient("first", 8)
	second := newTestClient("second", 8)
	h.Register(first)
	h.Register(second)

	h.Announce(first, 5)
	h.Announce(second, 5)
	if !h.IsOnline(5) {
		t.Fatal("user 5 should be online")
	}

	// The stale connection going away must not flip the user offline.
	h.Unregister(first)
	if !h.IsOnline(5) {
		t.Error("user 5 went offline after stale connection dropped")
	}

	h.Unregister(second)
	if h.IsOnline(5) {
		t.Error("user 5 still online after owning connection dropped")
	}
}

func TestHubAnnounceJoinsUserRoom(t *testing.T) {
	h := newTestHub()
	c := newTestClient("c", 8)
	h.Register(c)
	h.Announce(c, 9)
	drain(c)

	h.Publish(userRoom(9), "timer-started", map[string]any{"id": 1})
	ev := recvEvent(t, c)
	if ev.Event != "timer-started" {
		t.Errorf("event = %q, want timer-started", ev.Event)
	}
}

func TestHubOfflineBroadcastOnDisconnect(t *testing.T) {
	h := newTestHub()
	watcher := newTestClient("watcher", 8)
	c := newTestClient("c", 8)
	h.Register(watcher)
	h.Register(c)
	h.Announce(c, 4)
	drain(watcher)

	var calls []bool
	h.presence = func(userID int64, online bool) {
		if userID != 4 {
			t.Errorf("presence userID = %d, want 4", userID)
		}
		calls = append(calls, online)
	}
	h.Unregister(c)

	ev := recvEvent(t, watcher)
	if ev.Event != "user-status" {
		t.Fatalf("event = %q, want user-status", ev.Event)
	}
	data, _ := ev.Data.(map[string]any)
	if data["status"] != "offline" {
		t.Errorf("status = %v, want offline", data["status"])
	}
	if len(calls) != 1 || calls[0] != false {
		t.Errorf("presence calls = %v, want [false]", calls)
	}
}

func TestHubLeaveStopsDelivery(t *testing.T) {
	h := newTestHub()
	c := newTestClient("c", 4)
	h.Register(c)
	h.Join(c, projectRoom(3))
	h.Leave(c, projectRoom(3))

	h.Publish(projectRoom(3), "task-updated", nil)
	if len(c.send) != 0 {
		t.Errorf("client received %d events after leaving, want 0", len(c.send))
	}
}

func TestHubSlowClientDropsInsteadOfBlocking(t *testing.T) {
	h := newTestHub()
	c := newTestClient("c", 1)
	h.Register(c)
	h.Join(c, projectRoom(1))

	h.Publish(projectRoom(1), "first", nil)
	h.Publish(projectRoom(1), "second", nil) // buffer full, dropped

	ev := recvEvent(t, c)
	if ev.Event != "first" {
		t.Errorf("event = %q, want first", ev.Event)
	}
	if len(c.send) != 0 {
		t.Errorf("expected overflow event to be dropped, %d pending", len(c.send))
	}
}

func TestHubUnregisterIdempotent(t *testing.T) {
	h := newTestHub()
	c := newTestClient("c", 4)
	h.Register(c)
	h.Unregister(c)
	h.Unregister(c) // second call must not panic on the closed channel

	if _, open := <-c.send; open {
		t.Error("send channel still open after unregister")
	}
}

func TestHubCloseRejectsNewClients(t *testing.T) {
	h := newTestHub()
	a := newTestClient("a", 4)
	h.Register(a)
	h.Close()

	if _, open := <-a.send; open {
		t.Error("existing client channel not closed")
	}

	late := newTestClient("late", 4)
	h.Register(late)
	if _, open := <-late.send; open {
		t.Error("late client should have its channel closed immediately")
	}
}
