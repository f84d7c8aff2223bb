package engine

import (
	"math"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestSymbolRegistryConstruction(t *testing.T) {
	e := NewEngine([]string{"A-B", "B-C", "A-C"})
	if got := e.Size(); got != 3 {
		t.Fatalf("Size() = %d, want 3", got)
	}
	for i := 0; i < e.Size(); i++ {
		name := e.registry.nameOfID(i)
		id, ok := e.registry.idOfCurrency(name)
		if !ok || id != i {
			t.Fatalf("id_of(name_of(%d)) round-trip failed: name=%q id=%d ok=%v", i, name, id, ok)
		}
	}
}

func TestSymbolRegistrySkipsMalformed(t *testing.T) {
	e := NewEngine([]string{"A-B", "ABUSD", "-B", "A-"})
	if got := e.Size(); got != 2 {
		t.Fatalf("Size() = %d, want 2 (only A-B should register)", got)
	}
}

func TestEmptySymbolList(t *testing.T) {
	e := NewEngine(nil)
	if got := e.Size(); got != 0 {
		t.Fatalf("Size() = %d, want 0", got)
	}
	cycle, found := e.FindArbitrageCycle()
	if found || cycle != nil {
		t.Fatalf("FindArbitrageCycle() on empty engine = (%v, %v), want (nil, false)", cycle, found)
	}
}

func TestUpdatePriceWeights(t *testing.T) {
	e := NewEngine([]string{"A-B"})
	a, _ := e.registry.idOfCurrency("A")
	b, _ := e.registry.idOfCurrency("B")

	if err := e.UpdatePrice("A-B", 2.0); err != nil {
		t.Fatalf("UpdatePrice returned error: %v", err)
	}

	fwd := findWeight(e.graph, a, b)
	rev := findWeight(e.graph, b, a)

	wantFwd := -math.Log(2.0)
	wantRev := math.Log(2.0)
	if !approxEqual(fwd, wantFwd, 1e-12) {
		t.Errorf("forward weight = %v, want %v", fwd, wantFwd)
	}
	if !approxEqual(rev, wantRev, 1e-12) {
		t.Errorf("reverse weight = %v, want %v", rev, wantRev)
	}
	if !approxEqual(fwd+rev, 0, 1e-9) {
		t.Errorf("forward + reverse = %v, want ~0 (round-trip property)", fwd+rev)
	}
}

func TestUpdatePricePriceOfOneIsZeroWeight(t *testing.T) {
	e := NewEngine([]string{"A-B"})
	a, _ := e.registry.idOfCurrency("A")
	b, _ := e.registry.idOfCurrency("B")

	if err := e.UpdatePrice("A-B", 1.0); err != nil {
		t.Fatalf("UpdatePrice returned error: %v", err)
	}
	if fwd := findWeight(e.graph, a, b); fwd != 0 {
		t.Errorf("forward weight for price=1.0 = %v, want exactly 0", fwd)
	}
	if rev := findWeight(e.graph, b, a); rev != 0 {
		t.Errorf("reverse weight for price=1.0 = %v, want exactly 0", rev)
	}
}

func TestUpdatePriceMalformedSymbol(t *testing.T) {
	e := NewEngine([]string{"A-B"})
	err := e.UpdatePrice("ABUSD", 1.0)
	if err != ErrMalformedSymbol {
		t.Fatalf("UpdatePrice(malformed) error = %v, want ErrMalformedSymbol", err)
	}
	// Engine remains usable for subsequent valid updates.
	if err := e.UpdatePrice("A-B", 2.0); err != nil {
		t.Fatalf("UpdatePrice after malformed symbol failed: %v", err)
	}
}

func TestUpdatePriceUnknownCurrency(t *testing.T) {
	e := NewEngine([]string{"A-B"})
	err := e.UpdatePrice("A-C", 1.0)
	if err != ErrUnknownCurrency {
		t.Fatalf("UpdatePrice(unknown currency) error = %v, want ErrUnknownCurrency", err)
	}
	cycle, found := e.FindArbitrageCycle()
	if found || cycle != nil {
		t.Fatalf("FindArbitrageCycle() after unknown-currency update = (%v, %v), want (nil, false)", cycle, found)
	}
}

func TestUpdatePriceInvalidPrice(t *testing.T) {
	e := NewEngine([]string{"A-B"})
	for _, p := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := e.UpdatePrice("A-B", p); err != ErrInvalidPrice {
			t.Errorf("UpdatePrice(%v) error = %v, want ErrInvalidPrice", p, err)
		}
	}
}

func TestEdgeInsertionIsMonotonic(t *testing.T) {
	g := newGraphStore(3)
	g.upsertEdge(0, 1, 1.0)
	firstIdx, ok := g.index[edgeKey(0, 1)]
	if !ok {
		t.Fatalf("edge not indexed after insert")
	}
	g.upsertEdge(0, 2, 2.0)
	g.upsertEdge(0, 1, 5.0) // overwrite, must not move
	secondIdx, ok := g.index[edgeKey(0, 1)]
	if !ok || secondIdx != firstIdx {
		t.Fatalf("edge index changed after overwrite: got %d, want %d", secondIdx, firstIdx)
	}
	if w := findWeight(g, 0, 1); w != 5.0 {
		t.Fatalf("weight after overwrite = %v, want 5.0", w)
	}
}

// Scenario 1 -- trivial no-arbitrage.
func TestScenarioNoArbitrage(t *testing.T) {
	e := NewEngine([]string{"A-B", "B-C", "A-C"})
	mustUpdate(t, e, "A-B", 2.0)
	mustUpdate(t, e, "B-C", 3.0)
	mustUpdate(t, e, "A-C", 6.0)

	if cycle, found := e.FindArbitrageCycle(); found {
		t.Fatalf("expected no cycle, got %v", cycle)
	}
}

// Scenario 2 -- triangular profit A->B->C->A.
func TestScenarioTriangularProfit(t *testing.T) {
	e := NewEngine([]string{"A-B", "B-C", "A-C"})
	mustUpdate(t, e, "A-B", 2.0)
	mustUpdate(t, e, "B-C", 3.0)
	mustUpdate(t, e, "A-C", 5.0)

	cycle, found := e.FindArbitrageCycle()
	if !found {
		t.Fatalf("expected a cycle to be detected")
	}
	assertValidCycle(t, cycle)
	assertNegativeCycleWeight(t, e, cycle)
}

// Scenario 3 -- cycle emerges only after the last tick.
func TestScenarioCycleEmergesAfterLastTick(t *testing.T) {
	e := NewEngine([]string{"A-B", "B-C", "A-C"})
	mustUpdate(t, e, "A-B", 2.0)
	mustUpdate(t, e, "B-C", 3.0)
	mustUpdate(t, e, "A-C", 6.0)

	if _, found := e.FindArbitrageCycle(); found {
		t.Fatalf("expected no cycle before the profitable tick")
	}

	mustUpdate(t, e, "A-C", 5.0)
	cycle, found := e.FindArbitrageCycle()
	if !found {
		t.Fatalf("expected a cycle after the profitable tick")
	}
	assertValidCycle(t, cycle)
}

// Scenario 4 -- malformed symbol, engine remains usable.
func TestScenarioMalformedSymbolRecovers(t *testing.T) {
	e := NewEngine([]string{"A-B"})
	if err := e.UpdatePrice("ABUSD", 1.0); err != ErrMalformedSymbol {
		t.Fatalf("error = %v, want ErrMalformedSymbol", err)
	}
	if err := e.UpdatePrice("A-B", 2.0); err != nil {
		t.Fatalf("subsequent valid update failed: %v", err)
	}
}

// Scenario 5 -- unknown currency leaves the graph unchanged.
func TestScenarioUnknownCurrencyLeavesGraphUnchanged(t *testing.T) {
	e := NewEngine([]string{"A-B"})
	if err := e.UpdatePrice("A-C", 1.0); err != ErrUnknownCurrency {
		t.Fatalf("error = %v, want ErrUnknownCurrency", err)
	}
	if _, found := e.FindArbitrageCycle(); found {
		t.Fatalf("expected no cycle")
	}
}

// Scenario 6 -- direct two-cycle (single pair) never falsely flags.
func TestScenarioDirectTwoCycleNeverFlags(t *testing.T) {
	e := NewEngine([]string{"A-B"})
	mustUpdate(t, e, "A-B", 2.0)
	if _, found := e.FindArbitrageCycle(); found {
		t.Fatalf("expected no cycle after first update")
	}
	mustUpdate(t, e, "A-B", 2.0)
	if _, found := e.FindArbitrageCycle(); found {
		t.Fatalf("expected no cycle after repeated identical update")
	}
}

func TestIdempotentRepeatedUpdate(t *testing.T) {
	e := NewEngine([]string{"A-B"})
	a, _ := e.registry.idOfCurrency("A")
	b, _ := e.registry.idOfCurrency("B")

	mustUpdate(t, e, "A-B", 3.5)
	mustUpdate(t, e, "A-B", 3.5)

	fwd := findWeight(e.graph, a, b)
	rev := findWeight(e.graph, b, a)
	wantFwd := -math.Log(3.5)
	wantRev := math.Log(3.5)
	if !approxEqual(fwd, wantFwd, 1e-12) || !approxEqual(rev, wantRev, 1e-12) {
		t.Fatalf("weights after idempotent re-apply = (%v, %v), want (%v, %v)", fwd, rev, wantFwd, wantRev)
	}
}

func TestInternalInconsistencyAbortsReconstruction(t *testing.T) {
	e := NewEngine([]string{"A-B", "B-C"})
	// Force updateCounts over threshold without a real cycle among
	// predecessors, simulating the internal-inconsistency edge case: a
	// vertex whose predecessor chain does not actually close a loop within N
	// hops because predecessor is -1 partway through.
	n := e.Size()
	e.updateCounts[1] = n
	e.predecessor[1] = -1

	cycle, found := e.reconstructCycleWrapper(1)
	if found {
		t.Fatalf("expected reconstruction to abort, got cycle %v", cycle)
	}
}

// reconstructCycleWrapper exposes reconstructCycle for the inconsistency
// test above without widening the exported surface.
func (e *Engine) reconstructCycleWrapper(seed int) ([]string, bool) {
	return e.reconstructCycle(seed)
}

func TestCycleRateProductMatchesInverseWeights(t *testing.T) {
	e := NewEngine([]string{"A-B", "B-C", "A-C"})
	mustUpdate(t, e, "A-B", 2.0)
	mustUpdate(t, e, "B-C", 3.0)
	mustUpdate(t, e, "A-C", 5.0)

	cycle, found := e.FindArbitrageCycle()
	if !found {
		t.Fatalf("expected a cycle to be detected")
	}

	product, err := e.CycleRateProduct(cycle)
	if err != nil {
		t.Fatalf("CycleRateProduct returned error: %v", err)
	}
	if product <= 1.0 {
		t.Fatalf("CycleRateProduct = %v, want > 1 (profitable cycle)", product)
	}

	// A-C at 6.0 closes the loop exactly (2.0 * 3.0 = 6.0), so the product
	// should be the true rate gain relative to that break-even rate.
	wantApprox := (2.0 * 3.0) / 5.0
	if !approxEqual(product, wantApprox, 1e-9) {
		t.Errorf("CycleRateProduct = %v, want ~%v", product, wantApprox)
	}
}

func TestCycleRateProductUnknownCurrency(t *testing.T) {
	e := NewEngine([]string{"A-B"})
	_, err := e.CycleRateProduct([]string{"A", "Z", "A"})
	if err != ErrInternalInconsistency {
		t.Fatalf("error = %v, want ErrInternalInconsistency", err)
	}
}

func TestCycleRateProductMissingEdge(t *testing.T) {
	e := NewEngine([]string{"A-B", "B-C"})
	mustUpdate(t, e, "A-B", 2.0)
	mustUpdate(t, e, "B-C", 3.0)
	// A->C has no edge: B-C and A-B were updated but A-C never ticked.
	_, err := e.CycleRateProduct([]string{"A", "C", "A"})
	if err != ErrInternalInconsistency {
		t.Fatalf("error = %v, want ErrInternalInconsistency", err)
	}
}

func mustUpdate(t *testing.T, e *Engine, symbol string, price float64) {
	t.Helper()
	if err := e.UpdatePrice(symbol, price); err != nil {
		t.Fatalf("UpdatePrice(%q, %v) failed: %v", symbol, price, err)
	}
}

func findWeight(g *graphStore, u, v int) float64 {
	for _, ed := range g.neighbors(u) {
		if ed.destination == v {
			return ed.weight
		}
	}
	return math.NaN()
}

func assertValidCycle(t *testing.T, cycle []string) {
	t.Helper()
	if len(cycle) < 2 {
		t.Fatalf("cycle length %d, want >= 2", len(cycle))
	}
	if cycle[0] != cycle[len(cycle)-1] {
		t.Fatalf("cycle %v does not begin and end with the same currency", cycle)
	}
}

// assertNegativeCycleWeight checks invariant 4: the sum of edge weights
// along the returned cycle is negative (equivalently, the product of rates
// exceeds 1).
func assertNegativeCycleWeight(t *testing.T, e *Engine, cycle []string) {
	t.Helper()
	sum := 0.0
	for i := 0; i < len(cycle)-1; i++ {
		u, ok := e.registry.idOfCurrency(cycle[i])
		if !ok {
			t.Fatalf("cycle references unregistered currency %q", cycle[i])
		}
		v, ok := e.registry.idOfCurrency(cycle[i+1])
		if !ok {
			t.Fatalf("cycle references unregistered currency %q", cycle[i+1])
		}
		w := findWeight(e.graph, u, v)
		if math.IsNaN(w) {
			t.Fatalf("no edge %s->%s along reported cycle", cycle[i], cycle[i+1])
		}
		sum += w
	}
	if sum >= 0 {
		t.Fatalf("cycle weight sum = %v, want < 0", sum)
	}
}
