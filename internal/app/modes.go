package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/horaja/arbitrage-engine/internal/config"
	"github.com/horaja/arbitrage-engine/internal/domain"
	"github.com/horaja/arbitrage-engine/internal/engine"
	"github.com/horaja/arbitrage-engine/internal/execution"
	"github.com/horaja/arbitrage-engine/internal/feed"
	"github.com/horaja/arbitrage-engine/internal/queue"
	"github.com/horaja/arbitrage-engine/internal/server/handler"
	"github.com/horaja/arbitrage-engine/internal/server/middleware"
	"github.com/horaja/arbitrage-engine/internal/server/ws"
)

// seedSymbols builds the initial currency-pair universe for the engine by
// merging engine.symbols, feed.static_symbols and, when configured, the
// symbols returned by REST discovery, in that order. Empty entries are
// dropped and duplicates keep their first position.
func seedSymbols(ctx context.Context, cfg *config.Config, deps *Dependencies) ([]string, error) {
	symbols := append([]string{}, cfg.Engine.Symbols...)
	symbols = append(symbols, cfg.Feed.StaticSymbols...)

	if cfg.Feed.RESTDiscoveryURL != "" {
		discovered, err := feed.DiscoverSymbols(ctx, cfg.Feed.RESTDiscoveryURL, deps.RateLimiter, http.DefaultClient)
		if err != nil {
			return nil, fmt.Errorf("app: seed symbols: %w", err)
		}
		symbols = append(symbols, discovered...)
	}

	seen := make(map[string]bool, len(symbols))
	unique := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		unique = append(unique, s)
	}
	return unique, nil
}

// buildSinks assembles the CycleSink fan-out shared by every mode: persist
// to the store, publish on the signal bus for the WebSocket hub, notify
// operators, and hand allowed cycles to the execution gateway for signing,
// in that order.
func buildSinks(deps *Dependencies) []engine.CycleSink {
	var sinks []engine.CycleSink
	if deps.CycleStore != nil {
		sinks = append(sinks, engine.NewStoreSink(deps.CycleStore))
	}
	if deps.SignalBus != nil {
		sinks = append(sinks, engine.NewPublishSink(deps.SignalBus, "cycle_detected"))
	}
	if deps.Notifier != nil {
		sinks = append(sinks, engine.NewNotifySink(deps.Notifier))
	}
	if deps.Gateway != nil {
		sinks = append(sinks, &gatewaySink{gateway: deps.Gateway, audit: deps.AuditStore})
	}
	return sinks
}

// gatewaySink adapts execution.Gateway to engine.CycleSink: it asks the
// gateway to evaluate and sign every detected cycle, then records the
// resulting intent (or the rejection) in the audit log. It never places
// an order.
type gatewaySink struct {
	gateway *execution.Gateway
	audit   domain.AuditStore
}

func (s *gatewaySink) HandleCycle(ctx context.Context, event domain.CycleEvent) error {
	intent, err := s.gateway.Evaluate(ctx, event)
	if err != nil {
		return fmt.Errorf("app: gateway sink: %w", err)
	}
	if s.audit == nil {
		return nil
	}
	if intent == nil {
		return s.audit.Log(ctx, "cycle_rejected", map[string]any{
			"currencies":   event.Currencies,
			"rate_product": event.RateProduct,
		})
	}
	return s.audit.Log(ctx, "cycle_intent_signed", map[string]any{
		"currencies":   event.Currencies,
		"rate_product": event.RateProduct,
		"nonce":        intent.Nonce,
		"signature":    intent.Signature,
	})
}

// startArchiverLoop adds the archival background goroutine to g when
// archiving is enabled, periodically copying cycle events older than the
// configured retention window to cold storage.
func (a *App) startArchiverLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Archiver.Enabled || deps.Archiver == nil {
		return
	}
	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Archiver.RunInterval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archiver.RetentionDays)
				count, err := deps.Archiver.ArchiveCycleEvents(ctx, cutoff)
				if err != nil {
					a.logger.WarnContext(ctx, "archiver run failed", slog.String("error", err.Error()))
					continue
				}
				if count > 0 {
					a.logger.InfoContext(ctx, "archiver run completed", slog.Int64("archived", count))
				}
			}
		}
	})
}

// EngineMode wires a live exchange feed through the Tick Queue into the
// engine's owner goroutine, fanning every detected cycle out to storage, the
// WebSocket hub, and operator notifications, while serving the HTTP API.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting engine mode")

	if a.cfg.Feed.WSURL == "" {
		return fmt.Errorf("app: engine mode: feed.ws_url is required")
	}

	symbols, err := seedSymbols(ctx, a.cfg, deps)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		return fmt.Errorf("app: engine mode: no symbols to seed the registry with")
	}

	g, ctx := errgroup.WithContext(ctx)

	e := engine.NewEngine(symbols)
	q := queue.New(a.cfg.Engine.TickQueueCapacity)
	runner := engine.NewRunner(e, q, a.logger, buildSinks(deps)...)

	exchangeFeed := feed.NewExchangeFeed(a.cfg.Feed.WSURL, symbols, q, a.logger)
	exchangeFeed.OnConnect(runner.SetFeedConnected)

	g.Go(func() error {
		defer exchangeFeed.Close()
		return exchangeFeed.Run(ctx)
	})
	g.Go(func() error {
		defer q.Close()
		return runner.Run(ctx)
	})

	if a.cfg.Feed.RESTDiscoveryURL != "" && a.cfg.Feed.DiscoveryInterval.Duration > 0 {
		g.Go(func() error {
			return feed.PollSymbols(ctx, a.cfg.Feed.RESTDiscoveryURL, a.cfg.Feed.DiscoveryInterval.Duration, deps.RateLimiter, http.DefaultClient,
				func(newSymbols []string) {
					a.logger.InfoContext(ctx, "symbol discovery refreshed", slog.Int("count", len(newSymbols)))
				},
				func(err error) {
					a.logger.WarnContext(ctx, "symbol discovery poll failed", slog.String("error", err.Error()))
				},
			)
		})
	}

	a.startArchiverLoop(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, runner, deps)
	}

	return g.Wait()
}

// ReplayMode drains ticks from a newline-delimited JSON source (a recorded
// session, read from stdin) through the same engine/runner/sink pipeline
// EngineMode uses, with no live feed or symbol discovery involved.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting replay mode")

	symbols := append([]string{}, a.cfg.Engine.Symbols...)
	symbols = append(symbols, a.cfg.Feed.StaticSymbols...)
	if len(symbols) == 0 {
		return fmt.Errorf("app: replay mode: engine.symbols or feed.static_symbols must be set")
	}

	g, ctx := errgroup.WithContext(ctx)

	e := engine.NewEngine(symbols)
	q := queue.New(a.cfg.Engine.TickQueueCapacity)
	runner := engine.NewRunner(e, q, a.logger, buildSinks(deps)...)
	runner.SetFeedConnected(true)

	g.Go(func() error {
		return runner.Run(ctx)
	})
	g.Go(func() error {
		defer q.Close()
		return replayTicksFromStdin(ctx, q)
	})

	a.startArchiverLoop(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, runner, deps)
	}

	return g.Wait()
}

// replayTicksFromStdin decodes one domain.Tick per line from stdin and pushes
// each onto q, in file order, until EOF or ctx is cancelled.
func replayTicksFromStdin(ctx context.Context, q *queue.TickQueue) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var t domain.Tick
		if err := json.Unmarshal(line, &t); err != nil {
			return fmt.Errorf("app: replay: decode tick: %w", err)
		}
		if t.Seen.IsZero() {
			t.Seen = time.Now().UTC()
		}
		if err := q.Push(ctx, t); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("app: replay: read stdin: %w", err)
	}
	return nil
}

// startHTTPServer registers the health, status, cycles, and WebSocket
// endpoints on a mux and adds the listen-and-shutdown goroutines to g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, runner *engine.Runner, deps *Dependencies) {
	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	mode := a.cfg.Mode
	statusProvider := func() domain.EngineStatus { return runner.Status(mode) }

	mux := http.NewServeMux()

	health := handler.NewHealthHandler(a.logger)
	mux.HandleFunc("GET /api/health", health.HealthCheck)

	statusH := handler.NewStatusHandler(statusProvider)
	mux.HandleFunc("GET /api/status", statusH.GetStatus)

	if deps.CycleStore != nil {
		cycleH := handler.NewCycleHandler(deps.CycleStore, a.logger)
		mux.HandleFunc("GET /api/cycles/recent", cycleH.ListRecent)
	}

	if deps.SignalBus != nil {
		hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      mode,
			StartedAt: time.Now().UTC(),
			Status:    ws.StatusProvider(statusProvider),
		})
		mux.HandleFunc("GET /ws", hub.HandleWS)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	var h http.Handler = mux
	if len(a.cfg.Server.CORSOrigins) > 0 {
		h = middleware.CORS(a.cfg.Server.CORSOrigins)(h)
	}
	h = middleware.Logging(a.logger)(h)

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.String("addr", addr),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})
}
