package domain

import "time"

// Tick is a single price observation for a "BASE-QUOTE" symbol, as produced
// by a feed and consumed by the engine's owner goroutine.
type Tick struct {
	Symbol string
	Price  float64
	Source string
	Seen   time.Time
}

// CycleEvent is a detected negative-cycle (arbitrage) opportunity: the
// currency sequence the engine returned, the product of the rates along it,
// and when it was detected. RateProduct > 1 indicates a profitable cycle
// before fees and slippage.
type CycleEvent struct {
	ID          string
	Currencies  []string
	RateProduct float64
	DetectedAt  time.Time
}

// EngineStatus summarizes the running engine's operational state, reported
// over the status endpoint and as the WebSocket hub's initial payload.
type EngineStatus struct {
	Mode           string
	FeedConnected  bool
	UptimeSeconds  int64
	SymbolCount    int
	CyclesDetected int64
}
