// Package engine implements the incremental negative-cycle detection engine:
// a weighted directed graph over currencies whose edge weights are derived
// from live prices, maintained by an incremental Shortest-Path-Faster variant
// of Bellman-Ford that re-evaluates only vertices affected by recent price
// updates.
//
// An Engine is single-threaded and not internally thread-safe. It expects a
// single owner goroutine to serialize calls to UpdatePrice and
// FindArbitrageCycle; see internal/queue for the boundary that feeds it from
// a separate producer goroutine.
package engine

import "math"

// Engine owns the currency graph and the SPFA bookkeeping needed to detect
// arbitrage cycles incrementally as prices arrive.
type Engine struct {
	registry *symbolRegistry
	graph    *graphStore

	distance      []float64
	predecessor   []int
	updateCounts  []int
	dirty         *dirtyQueue
}

// NewEngine constructs the fixed vertex universe from symbols and allocates
// SPFA state for it. Malformed symbols are skipped during registry
// construction, not reported as errors, matching the symbol registry's own
// construction contract.
func NewEngine(symbols []string) *Engine {
	registry := newSymbolRegistry(symbols)
	n := registry.size()

	distance := make([]float64, n)
	predecessor := make([]int, n)
	for v := range distance {
		distance[v] = math.Inf(1)
		predecessor[v] = -1
	}
	if n > 0 {
		distance[0] = 0
	}

	return &Engine{
		registry:     registry,
		graph:        newGraphStore(n),
		distance:     distance,
		predecessor:  predecessor,
		updateCounts: make([]int, n),
		dirty:        newDirtyQueue(),
	}
}

// Size returns N, the number of currencies the engine was constructed with.
func (e *Engine) Size() int {
	return e.registry.size()
}

// UpdatePrice translates a "BASE-QUOTE" tick into up to two edge-weight
// writes and marks both endpoints dirty for the next relaxation pass.
//
// Forward edge BASE->QUOTE gets weight -log(price); reverse edge QUOTE->BASE
// gets weight +log(price). The two are computed via updateRates with
// independently-named forward/reverse weight parameters so that a future
// best-bid/best-ask split (where the reverse weight comes from its own input
// rather than being derived from the forward price) only changes the call
// site, not this method's contract.
//
// UnknownCurrency is logged-and-swallowed by the caller's convention: it is
// returned here so the owner can log it, but it does not abort processing of
// subsequent ticks and the graph is left unmutated.
func (e *Engine) UpdatePrice(symbol string, price float64) error {
	base, quote, ok := splitSymbol(symbol)
	if !ok {
		return ErrMalformedSymbol
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return ErrInvalidPrice
	}

	baseID, ok := e.registry.idOfCurrency(base)
	if !ok {
		return ErrUnknownCurrency
	}
	quoteID, ok := e.registry.idOfCurrency(quote)
	if !ok {
		return ErrUnknownCurrency
	}

	forwardWeight := -math.Log(price)
	reverseWeight := math.Log(price)
	e.updateRates(baseID, quoteID, forwardWeight, reverseWeight)
	return nil
}

// updateRates writes both directions of a symbol's edges and enqueues both
// endpoints as dirty. Split out from UpdatePrice so a future caller that
// ingests best bid/ask independently can supply forward and reverse weights
// that are not simply negatives of each other.
func (e *Engine) updateRates(baseID, quoteID int, forwardWeight, reverseWeight float64) {
	e.graph.upsertEdge(baseID, quoteID, forwardWeight)
	e.graph.upsertEdge(quoteID, baseID, reverseWeight)
	e.dirty.push(baseID)
	e.dirty.push(quoteID)
}

// FindArbitrageCycle drains the dirty queue, relaxing outward from each
// dequeued vertex until either a negative cycle is detected (a vertex's
// update count reaches N) or the queue empties. On detection it reconstructs
// and returns the cycle's currency sequence, beginning and ending with the
// same currency. SPFA bookkeeping (distance, predecessor, updateCounts) is
// never reset between calls, so a persisting negative cycle will be
// re-detected on the very next call until prices change enough to break it.
func (e *Engine) FindArbitrageCycle() ([]string, bool) {
	n := e.registry.size()
	if n == 0 {
		return nil, false
	}

	for !e.dirty.empty() {
		u := e.dirty.pop()
		if math.IsInf(e.distance[u], 1) {
			continue
		}
		for _, ed := range e.graph.neighbors(u) {
			v := ed.destination
			candidate := e.distance[u] + ed.weight
			if candidate < e.distance[v] {
				e.distance[v] = candidate
				e.predecessor[v] = u
				e.dirty.push(v)
				e.updateCounts[v]++
				if e.updateCounts[v] >= n {
					cycle, ok := e.reconstructCycle(v)
					if !ok {
						return nil, false
					}
					return cycle, true
				}
			}
		}
	}
	return nil, false
}

// reconstructCycle walks the predecessor chain N hops from seed to guarantee
// entry into the negative cycle, then walks predecessors again from that
// entry vertex until the walk returns to it, building the path in traversal
// order. It returns false (InternalInconsistency) if a -1 predecessor is ever
// encountered, which should not happen for a vertex whose update count has
// reached N.
func (e *Engine) reconstructCycle(seed int) ([]string, bool) {
	n := e.registry.size()

	x := seed
	for i := 0; i < n; i++ {
		x = e.predecessor[x]
		if x == -1 {
			return nil, false
		}
	}

	path := []int{x}
	cur := e.predecessor[x]
	for cur != x {
		if cur == -1 {
			return nil, false
		}
		path = append(path, cur)
		cur = e.predecessor[cur]
	}
	path = append(path, x)

	// path was built walking predecessors backward from x, so it lists the
	// cycle in reverse traversal order; reverse it so the returned sequence
	// is traversable forward as listed.
	names := make([]string, len(path))
	for i, v := range path {
		names[len(path)-1-i] = e.registry.nameOfID(v)
	}
	return names, true
}

// CycleRateProduct computes the product of exchange rates along a cycle
// returned by FindArbitrageCycle, by walking its consecutive currency pairs
// and inverting each edge's -log(price) weight. A cycle whose returned
// product exceeds 1 is the risk-free profit this package exists to detect.
// It returns ErrInternalInconsistency if any consecutive pair in cycle has no
// corresponding edge, which should never happen for a cycle this package
// itself produced.
func (e *Engine) CycleRateProduct(cycle []string) (float64, error) {
	sum := 0.0
	for i := 0; i < len(cycle)-1; i++ {
		u, ok := e.registry.idOfCurrency(cycle[i])
		if !ok {
			return 0, ErrInternalInconsistency
		}
		v, ok := e.registry.idOfCurrency(cycle[i+1])
		if !ok {
			return 0, ErrInternalInconsistency
		}
		w, ok := e.graph.weightOf(u, v)
		if !ok {
			return 0, ErrInternalInconsistency
		}
		sum += w
	}
	return math.Exp(-sum), nil
}
