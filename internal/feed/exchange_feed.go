// Package feed produces domain.Tick records for the Tick Queue from a live
// exchange WebSocket, reconnecting with backoff on disconnect. It never
// interprets prices, computes edge weights, or touches engine state.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/horaja/arbitrage-engine/internal/domain"
	"github.com/horaja/arbitrage-engine/internal/queue"
)

// ExchangeFeed connects to a ticker WebSocket, subscribes to the configured
// symbols, and pushes every decoded tick onto a TickQueue. It reconnects on
// disconnect with a fixed backoff, matching the teacher's feed reconnect
// loop.
type ExchangeFeed struct {
	wsURL   string
	symbols []string
	queue   *queue.TickQueue
	logger  *slog.Logger

	onConnect func(bool)

	closeOnce sync.Once
	done      chan struct{}
}

// NewExchangeFeed creates a feed that subscribes to the given symbols and
// pushes ticks onto q.
func NewExchangeFeed(wsURL string, symbols []string, q *queue.TickQueue, logger *slog.Logger) *ExchangeFeed {
	return &ExchangeFeed{
		wsURL:   wsURL,
		symbols: symbols,
		queue:   q,
		logger:  logger.With(slog.String("component", "exchange_feed")),
		done:    make(chan struct{}),
	}
}

// OnConnect registers a callback invoked with true when the feed establishes
// a connection and false whenever it drops one, for status reporting.
func (f *ExchangeFeed) OnConnect(fn func(bool)) {
	f.onConnect = fn
}

// Run connects, subscribes, and pushes ticks onto the queue until ctx is
// cancelled or Close is called. It reconnects with a fixed 2s backoff on
// transient disconnects.
func (f *ExchangeFeed) Run(ctx context.Context) error {
	if len(f.symbols) == 0 {
		f.logger.Info("no symbols to subscribe, exiting")
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("feed disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *ExchangeFeed) runConnection(ctx context.Context) error {
	client := newWSClient(f.wsURL, f.symbols)
	defer client.close()

	client.onTickMessage(func(t domain.Tick) {
		t.Source = f.wsURL
		if err := f.queue.Push(ctx, t); err != nil {
			f.logger.Warn("drop tick, queue push failed", slog.String("symbol", t.Symbol), slog.String("error", err.Error()))
		}
	})

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.connect(connCtx)
	cancel()
	if err != nil {
		return err
	}

	f.logger.Info("feed connected", slog.Int("symbols", len(f.symbols)))
	if f.onConnect != nil {
		f.onConnect(true)
		defer f.onConnect(false)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		return nil
	}
}

// Close stops the feed.
func (f *ExchangeFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
