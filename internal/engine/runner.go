package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/horaja/arbitrage-engine/internal/domain"
	"github.com/horaja/arbitrage-engine/internal/notify"
	"github.com/horaja/arbitrage-engine/internal/queue"
)

// CycleSink is implemented by anything that persists and/or forwards a
// detected cycle. Callers may compose several sinks (store, archiver hint,
// execution gateway) by wrapping them in a single fan-out implementation.
type CycleSink interface {
	HandleCycle(ctx context.Context, event domain.CycleEvent) error
}

// Runner is the single owner goroutine described by the engine's own
// concurrency contract: it drains the Tick Queue, calls UpdatePrice and
// FindArbitrageCycle in strict tick order, and publishes every detected
// cycle to the configured sinks. No other goroutine may call into Engine.
type Runner struct {
	engine *Engine
	queue  *queue.TickQueue
	sinks  []CycleSink
	logger *slog.Logger

	startedAt      time.Time
	feedConnected  atomic.Bool
	cyclesDetected atomic.Int64

	mu          sync.RWMutex
	lastTickAt  time.Time
}

// NewRunner creates a Runner around an already-constructed Engine and the
// Tick Queue it should drain. sinks are invoked in order for every detected
// cycle; an error from one sink is logged but does not stop the remaining
// sinks from running.
func NewRunner(e *Engine, q *queue.TickQueue, logger *slog.Logger, sinks ...CycleSink) *Runner {
	return &Runner{
		engine:    e,
		queue:     q,
		sinks:     sinks,
		logger:    logger.With(slog.String("component", "engine_runner")),
		startedAt: time.Now().UTC(),
	}
}

// SetFeedConnected records the feed's current connection state for status
// reporting. Safe to call from the feed's own goroutine.
func (r *Runner) SetFeedConnected(connected bool) {
	r.feedConnected.Store(connected)
}

// Run drains the Tick Queue until it sees the sentinel tick or ctx is
// cancelled. For every tick it calls Engine.UpdatePrice and, when the update
// is accepted, FindArbitrageCycle exactly once, preserving the order in
// which ticks arrived; a rejected tick is logged and skipped. A detected cycle is turned into a domain.CycleEvent and handed to
// every configured sink before the loop resumes draining.
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-r.queue.Drain():
			if t.Symbol == queue.StopSymbol {
				return nil
			}
			r.handleTick(ctx, t)
		}
	}
}

func (r *Runner) handleTick(ctx context.Context, t domain.Tick) {
	r.mu.Lock()
	r.lastTickAt = t.Seen
	r.mu.Unlock()

	if err := r.engine.UpdatePrice(t.Symbol, t.Price); err != nil {
		r.logger.WarnContext(ctx, "tick rejected",
			slog.String("symbol", t.Symbol),
			slog.Float64("price", t.Price),
			slog.String("error", err.Error()),
		)
		return
	}

	cycle, found := r.engine.FindArbitrageCycle()
	if !found {
		return
	}

	rateProduct, err := r.engine.CycleRateProduct(cycle)
	if err != nil {
		r.logger.ErrorContext(ctx, "cycle rate product computation failed",
			slog.Any("cycle", cycle),
			slog.String("error", err.Error()),
		)
		return
	}

	event := domain.CycleEvent{
		ID:          uuid.NewString(),
		Currencies:  cycle,
		RateProduct: rateProduct,
		DetectedAt:  time.Now().UTC(),
	}
	r.cyclesDetected.Add(1)

	r.logger.InfoContext(ctx, "arbitrage cycle detected",
		slog.Any("currencies", event.Currencies),
		slog.Float64("rate_product", event.RateProduct),
	)

	for _, sink := range r.sinks {
		if err := sink.HandleCycle(ctx, event); err != nil {
			r.logger.ErrorContext(ctx, "cycle sink failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

// Status returns a snapshot of the runner's operational state, suitable for
// the /api/status endpoint and the WebSocket hub's initial payload.
func (r *Runner) Status(mode string) domain.EngineStatus {
	return domain.EngineStatus{
		Mode:           mode,
		FeedConnected:  r.feedConnected.Load(),
		UptimeSeconds:  int64(time.Since(r.startedAt).Seconds()),
		SymbolCount:    r.engine.Size(),
		CyclesDetected: r.cyclesDetected.Load(),
	}
}

// StoreSink persists every detected cycle via a domain.CycleStore.
type StoreSink struct {
	store domain.CycleStore
}

// NewStoreSink wraps store as a CycleSink.
func NewStoreSink(store domain.CycleStore) *StoreSink {
	return &StoreSink{store: store}
}

// HandleCycle inserts event into the underlying store.
func (s *StoreSink) HandleCycle(ctx context.Context, event domain.CycleEvent) error {
	if err := s.store.Insert(ctx, event); err != nil {
		return fmt.Errorf("engine: store sink: %w", err)
	}
	return nil
}

// PublishSink forwards every detected cycle as a JSON payload on a
// domain.SignalBus channel, for the WebSocket hub and any other subscriber.
type PublishSink struct {
	bus     domain.SignalBus
	channel string
}

// NewPublishSink wraps bus as a CycleSink that publishes on channel.
func NewPublishSink(bus domain.SignalBus, channel string) *PublishSink {
	return &PublishSink{bus: bus, channel: channel}
}

// HandleCycle marshals event and publishes it on the configured channel.
func (s *PublishSink) HandleCycle(ctx context.Context, event domain.CycleEvent) error {
	payload, err := json.Marshal(map[string]any{
		"type":    "cycle_detected",
		"payload": event,
	})
	if err != nil {
		return fmt.Errorf("engine: publish sink: marshal: %w", err)
	}
	if err := s.bus.Publish(ctx, s.channel, payload); err != nil {
		return fmt.Errorf("engine: publish sink: %w", err)
	}
	return nil
}

// NotifySink forwards every detected cycle to an operator-facing Notifier
// (Telegram, Discord, ...) as a "cycle_detected" event.
type NotifySink struct {
	notifier *notify.Notifier
}

// NewNotifySink wraps notifier as a CycleSink.
func NewNotifySink(notifier *notify.Notifier) *NotifySink {
	return &NotifySink{notifier: notifier}
}

// HandleCycle sends event to every configured notification sender.
func (s *NotifySink) HandleCycle(ctx context.Context, event domain.CycleEvent) error {
	title := "Arbitrage cycle detected"
	message := fmt.Sprintf("currencies=%v rate_product=%.6f", event.Currencies, event.RateProduct)
	if err := s.notifier.Notify(ctx, "cycle_detected", title, message); err != nil {
		return fmt.Errorf("engine: notify sink: %w", err)
	}
	return nil
}
