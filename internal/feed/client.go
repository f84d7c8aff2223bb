package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/horaja/arbitrage-engine/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// subscribeCommand is the generic subscribe envelope sent on connect. Exact
// exchanges vary in shape; this matches the common "subscribe to a list of
// channel/symbol pairs" convention used by most ticker feeds.
type subscribeCommand struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// tickHandler is invoked for every normalized tick the client decodes.
type tickHandler func(domain.Tick)

// wsClient is a minimal WebSocket client for a streaming ticker feed: it
// connects, subscribes to a channel per symbol, and dispatches decoded
// messages to a handler. It does not reconnect on its own; that is the
// responsibility of ExchangeFeed's Run loop.
type wsClient struct {
	url     string
	symbols []string
	conn    *websocket.Conn

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	handlerMu sync.RWMutex
	onTick    tickHandler
}

func newWSClient(url string, symbols []string) *wsClient {
	return &wsClient{url: url, symbols: symbols, done: make(chan struct{})}
}

func (c *wsClient) onTickMessage(h tickHandler) {
	c.handlerMu.Lock()
	c.onTick = h
	c.handlerMu.Unlock()
}

func (c *wsClient) connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("feed/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("feed/ws: connect: %w", err)
	}
	c.conn = conn

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readLoop()
	go c.pingLoop()

	if len(c.symbols) > 0 {
		cmd := subscribeCommand{Method: "subscribe", Params: c.symbols, ID: time.Now().UnixNano()}
		if err := c.send(cmd); err != nil {
			return fmt.Errorf("feed/ws: subscribe: %w", err)
		}
	}

	return nil
}

func (c *wsClient) send(cmd subscribeCommand) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("feed/ws: marshal command: %w", err)
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	if c.conn != nil {
		_ = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return c.conn.Close()
	}
	return nil
}

func (c *wsClient) readLoop() {
	defer func() {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleMessage(message)
	}
}

func (c *wsClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// tickerMessage is the normalized wire shape this client expects: a symbol
// in "BASE-QUOTE" form and its last traded price as a JSON number (a price
// sent as a string fails to decode and the message is dropped). Concrete
// exchange adapters that speak a different wire format should translate into
// this shape before decoding, or replace handleMessage below.
type tickerMessage struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func (c *wsClient) handleMessage(raw []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return // silently drop unparseable messages, matching the teacher's ws client
	}
	if msg.Symbol == "" {
		return
	}

	c.handlerMu.RLock()
	handler := c.onTick
	c.handlerMu.RUnlock()

	if handler != nil {
		handler(domain.Tick{Symbol: msg.Symbol, Price: msg.Price, Seen: time.Now()})
	}
}
