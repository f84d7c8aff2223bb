package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting, used to throttle outbound
// requests to exchange REST endpoints (e.g. periodic symbol-universe
// discovery) independently of how many feed goroutines are running.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams for fanning detected cycle
// events out to the WebSocket hub and any other interested subscriber.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
