package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsMaxMsgSize = 1 << 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The UI is served from arbitrary origins in deployments, same policy
	// as the permissive CORS on the REST surface.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientMsg is the client->server envelope. Data is event-specific.
type clientMsg struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// GET /ws
func (a *api) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Error("ws upgrade", "err", err)
		return
	}
	c := &wsClient{id: uuid.NewString(), send: make(chan []byte, 32)}
	a.hub.Register(c)
	go a.writePump(conn, c)
	a.readPump(conn, c)
}

func (a *api) readPump(conn *websocket.Conn, c *wsClient) {
	defer func() {
		a.hub.Unregister(c)
		_ = conn.Close()
	}()
	conn.SetReadLimit(wsMaxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.log.Info("ws closed", "client", c.id, "err", err)
			}
			return
		}
		var msg clientMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		a.dispatchClientEvent(c, msg)
	}
}

// dispatchClientEvent handles declared-interest messages plus the legacy
// direct-emit path where clients publish mutation events themselves,
// parallel to the REST-triggered path.
func (a *api) dispatchClientEvent(c *wsClient, msg clientMsg) {
	switch msg.Event {
	case "user-online":
		if id, ok := wsID(msg.Data); ok {
			a.hub.Announce(c, id)
		}
	case "join-project":
		if id, ok := wsID(msg.Data); ok {
			a.hub.Join(c, projectRoom(id))
		}
	case "leave-project":
		if id, ok := wsID(msg.Data); ok {
			a.hub.Leave(c, projectRoom(id))
		}
	case "task-update":
		if id, ok := wsPayloadID(msg.Data, "project_id", "projectId"); ok {
			a.hub.Publish(projectRoom(id), "task-updated", json.RawMessage(msg.Data))
		}
	case "timer-start":
		if id, ok := wsPayloadID(msg.Data, "user_id", "userId"); ok {
			a.hub.Publish(userRoom(id), "timer-started", json.RawMessage(msg.Data))
		}
	case "timer-stop":
		if id, ok := wsPayloadID(msg.Data, "user_id", "userId"); ok {
			a.hub.Publish(userRoom(id), "timer-stopped", json.RawMessage(msg.Data))
		}
	case "new-comment":
		if id, ok := wsPayloadID(msg.Data, "project_id", "projectId"); ok {
			a.hub.Publish(projectRoom(id), "comment-added", json.RawMessage(msg.Data))
		}
	}
}

func (a *api) writePump(conn *websocket.Conn, c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// wsID parses an id sent either as a JSON number or a string.
func wsID(raw json.RawMessage) (int64, bool) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, n != 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, n != 0
		}
	}
	return 0, false
}

// wsPayloadID pulls an id field out of an object payload, accepting both
// snake_case and the legacy camelCase key.
func wsPayloadID(raw json.RawMessage, keys ...string) (int64, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, false
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			if id, ok := wsID(v); ok {
				return id, true
			}
		}
	}
	return 0, false
}
