package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket feed for the dispatch board: streams the same zone events as the
// SSE endpoint, wrapped in a small message envelope so clients can multiplex.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// BoardWSHandler handles /v1/board/ws
func (s *Server) BoardWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	subs := map[string]chan SSEEvent{}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	// Serialized writer: the read loop, the keepalive goroutine and every
	// subscription fan-out goroutine all write to the same conn, and
	// gorilla/websocket forbids concurrent writers.
	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		return conn.WriteJSON(v)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for range ticker.C {
					if err := write(wsMessage{Type: "ping"}); err != nil {
						return
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			if _, ok := subs[msg.ID]; ok {
				continue
			}
			ch := s.Broker.Subscribe(TopicZones)
			subs[msg.ID] = ch
			go func(id string, c chan SSEEvent) {
				for evt := range c {
					payload, _ := json.Marshal(map[string]any{"event": evt.Type, "data": evt.Data})
					_ = write(wsMessage{Type: "next", ID: id, Payload: payload})
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch)
		case "complete":
			if ch, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(TopicZones, ch)
				delete(subs, msg.ID)
			}
		default:
			// ignore
		}
	}
	for id, ch := range subs {
		s.Broker.Unsubscribe(TopicZones, ch)
		delete(subs, id)
	}
}
