package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/horaja/arbitrage-engine/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSignalBus hands back a channel per Subscribe call that the test can
// push onto directly, and ignores every other SignalBus method.
type fakeSignalBus struct {
	mu       sync.Mutex
	channels map[string]chan []byte
}

func newFakeSignalBus() *fakeSignalBus {
	return &fakeSignalBus{channels: make(map[string]chan []byte)}
}

func (f *fakeSignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	return nil
}

func (f *fakeSignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 4)
	f.mu.Lock()
	f.channels[channel] = ch
	f.mu.Unlock()
	return ch, nil
}

func (f *fakeSignalBus) channel(name string) (chan []byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[name]
	return ch, ok
}

func (f *fakeSignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	return nil
}

func (f *fakeSignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func TestHubSendsInitialStatusOnConnect(t *testing.T) {
	bus := newFakeSignalBus()
	hub := NewHub(bus, testLogger(), Config{
		Mode:      "engine",
		StartedAt: time.Now().UTC(),
		Status:    func() domain.EngineStatus { return domain.EngineStatus{Mode: "engine", SymbolCount: 5} },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	var envelope struct {
		Type    string               `json:"type"`
		Payload domain.EngineStatus `json:"payload"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal initial status failed: %v", err)
	}
	if envelope.Type != "engine_status" {
		t.Fatalf("envelope.Type = %q, want engine_status", envelope.Type)
	}
	if envelope.Payload.SymbolCount != 5 {
		t.Fatalf("envelope.Payload.SymbolCount = %d, want 5", envelope.Payload.SymbolCount)
	}
}

func TestHubBroadcastsOnlyToSubscribedClients(t *testing.T) {
	bus := newFakeSignalBus()
	hub := NewHub(bus, testLogger(), Config{Mode: "engine"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// Wait for the hub to have subscribed to its default channels.
	deadline := time.Now().Add(2 * time.Second)
	var cycleCh chan []byte
	for {
		if ch, ok := bus.channel("cycle_detected"); ok {
			cycleCh = ch
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for the hub to subscribe to cycle_detected")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	// Drain the initial status message before asserting on the broadcast.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("ReadMessage (initial status) failed: %v", err)
	}

	cycleCh <- []byte(`{"type":"cycle_detected","payload":{}}`)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage (broadcast) failed: %v", err)
	}
	if !strings.Contains(string(data), "cycle_detected") {
		t.Fatalf("broadcast message = %q, want it to contain cycle_detected", data)
	}
}

func TestClientIsSubscribedWildcard(t *testing.T) {
	c := &client{subs: map[string]bool{"cycle_*": true}}
	if !c.isSubscribed("cycle_detected") {
		t.Fatalf("expected cycle_* to match cycle_detected")
	}
	if c.isSubscribed("engine_status") {
		t.Fatalf("did not expect cycle_* to match engine_status")
	}
}

func TestHandleSubscriptionAddsAndRemovesChannels(t *testing.T) {
	c := &client{subs: map[string]bool{"cycle_detected": true}}

	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{"error"}})
	if !c.isSubscribed("error") {
		t.Fatalf("expected subscribe action to add the error channel")
	}

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{"cycle_detected"}})
	if c.isSubscribed("cycle_detected") {
		t.Fatalf("expected unsubscribe action to remove the cycle_detected channel")
	}

	c.handleSubscription(subscribeMsg{Unsubscribe: []string{"error"}})
	if c.isSubscribed("error") {
		t.Fatalf("expected the legacy unsubscribe field to remove the error channel")
	}
}
