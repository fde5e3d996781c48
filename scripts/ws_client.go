// Package main runs a demo WebSocket client for the zone board feed.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Seed two nearby orders and a driver so recalculation has work to do
	orders := []byte(`{"orders":[
		{"address":"Demo A","lat":0,"lng":0,"timeSlot":"morning"},
		{"address":"Demo B","lat":0,"lng":0.0045,"timeSlot":"morning"}
	]}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/orders", bytes.NewReader(orders))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role", "admin")
	if _, err := http.DefaultClient.Do(req); err != nil {
		log.Fatal(err)
	}
	staff := []byte(`{"name":"Demo Driver","role":"driver"}`)
	req, _ = http.NewRequest(http.MethodPost, base+"/v1/staff", bytes.NewReader(staff))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role", "admin")
	if _, err := http.DefaultClient.Do(req); err != nil {
		log.Fatal(err)
	}

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/board/ws"}
	hdr := http.Header{}
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	// connection_init, then subscribe to the board
	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1"}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Trigger zone events via a recalculation pass
	time.Sleep(500 * time.Millisecond)
	recReq, _ := http.NewRequest(http.MethodPost, base+"/v1/zones/recalculate", bytes.NewReader([]byte(`{"radiusKm":2}`)))
	recReq.Header.Set("Content-Type", "application/json")
	recReq.Header.Set("X-Role", "admin")
	_, _ = http.DefaultClient.Do(recReq)

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
