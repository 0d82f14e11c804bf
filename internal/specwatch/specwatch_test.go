package specwatch

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	go hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/spectate", hub.HandleSpectate)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + srv.URL[len("http"):] + "/spectate"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPublishSkipsWorkWithNoSpectators(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	// Should not panic or block even though nothing is listening.
	hub.Publish(TickSummary{Tick: 1})
}

func TestSpectatorReceivesTickFrame(t *testing.T) {
	hub, srv := newTestServer(t)
	conn := dial(t, srv)

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, want 1", hub.ClientCount())
	}

	hub.Publish(TickSummary{Tick: 42, Players: 3, Instances: 1})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	var frame struct {
		Event string      `json:"event"`
		Data  TickSummary `json:"data"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame.Event != "tick" {
		t.Errorf("Event = %q, want tick", frame.Event)
	}
	if frame.Data.Tick != 42 || frame.Data.Players != 3 {
		t.Errorf("Data = %+v, want Tick=42 Players=3", frame.Data)
	}
}

func TestDisconnectRemovesSpectator(t *testing.T) {
	hub, srv := newTestServer(t)
	conn := dial(t, srv)

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0 after disconnect", hub.ClientCount())
	}
}
