package engine

import "errors"

var (
	// ErrMalformedSymbol is returned when a symbol lacks the '-' separator or
	// has an empty base or quote side.
	ErrMalformedSymbol = errors.New("engine: malformed symbol")

	// ErrUnknownCurrency is returned when a side of a price update is not in
	// the symbol registry. It is non-fatal: UpdatePrice returns it without
	// mutating the graph, and the caller logs it and carries on.
	ErrUnknownCurrency = errors.New("engine: unknown currency")

	// ErrInvalidPrice is returned when price is non-positive, NaN, or
	// infinite.
	ErrInvalidPrice = errors.New("engine: invalid price")

	// ErrInternalInconsistency indicates cycle reconstruction encountered a
	// predecessor of -1 where a cycle was expected. It signals a bug rather
	// than a caller error; FindArbitrageCycle recovers from it by aborting
	// the current reconstruction and reporting no cycle.
	ErrInternalInconsistency = errors.New("engine: internal inconsistency during cycle reconstruction")
)
