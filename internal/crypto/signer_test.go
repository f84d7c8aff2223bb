package crypto

import (
	"strings"
	"testing"
	"time"

	"github.com/horaja/arbitrage-engine/internal/domain"
)

const signerTestKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func sampleCycleEvent() domain.CycleEvent {
	return domain.CycleEvent{
		Currencies:  []string{"A", "B", "C", "A"},
		RateProduct: 1.0234,
		DetectedAt:  time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewSignerDerivesAddressFromKey(t *testing.T) {
	s, err := NewSigner(signerTestKeyHex, 1)
	if err != nil {
		t.Fatalf("NewSigner returned error: %v", err)
	}
	if s.Address().Hex() == "" {
		t.Fatalf("expected a non-empty derived address")
	}
}

func TestNewSignerAcceptsKeyWithOxPrefix(t *testing.T) {
	s1, err := NewSigner(signerTestKeyHex, 1)
	if err != nil {
		t.Fatalf("NewSigner returned error: %v", err)
	}
	s2, err := NewSigner("0x"+signerTestKeyHex, 1)
	if err != nil {
		t.Fatalf("NewSigner with 0x prefix returned error: %v", err)
	}
	if s1.Address() != s2.Address() {
		t.Fatalf("expected identical addresses regardless of 0x prefix")
	}
}

func TestNewSignerRejectsInvalidKey(t *testing.T) {
	if _, err := NewSigner("not-hex", 1); err == nil {
		t.Fatalf("expected an error for a malformed private key")
	}
}

func TestSignIntentProducesHexEncodedSignature(t *testing.T) {
	s, err := NewSigner(signerTestKeyHex, 1)
	if err != nil {
		t.Fatalf("NewSigner returned error: %v", err)
	}

	sig, err := s.SignIntent(sampleCycleEvent(), 42)
	if err != nil {
		t.Fatalf("SignIntent returned error: %v", err)
	}
	if !strings.HasPrefix(sig, "0x") {
		t.Fatalf("signature = %q, want 0x prefix", sig)
	}
	// 65 raw bytes -> 130 hex chars + "0x".
	if len(sig) != 132 {
		t.Fatalf("signature length = %d, want 132", len(sig))
	}
}

func TestSignIntentIsDeterministicForSameInputs(t *testing.T) {
	s, err := NewSigner(signerTestKeyHex, 1)
	if err != nil {
		t.Fatalf("NewSigner returned error: %v", err)
	}
	event := sampleCycleEvent()

	sig1, err := s.SignIntent(event, 7)
	if err != nil {
		t.Fatalf("SignIntent returned error: %v", err)
	}
	sig2, err := s.SignIntent(event, 7)
	if err != nil {
		t.Fatalf("SignIntent returned error: %v", err)
	}
	if sig1 != sig2 {
		t.Fatalf("expected identical signatures for identical inputs, got %q and %q", sig1, sig2)
	}
}

func TestSignIntentChangesWithNonce(t *testing.T) {
	s, err := NewSigner(signerTestKeyHex, 1)
	if err != nil {
		t.Fatalf("NewSigner returned error: %v", err)
	}
	event := sampleCycleEvent()

	sig1, err := s.SignIntent(event, 1)
	if err != nil {
		t.Fatalf("SignIntent returned error: %v", err)
	}
	sig2, err := s.SignIntent(event, 2)
	if err != nil {
		t.Fatalf("SignIntent returned error: %v", err)
	}
	if sig1 == sig2 {
		t.Fatalf("expected different signatures for different nonces")
	}
}

func TestSignIntentChangesWithCurrencies(t *testing.T) {
	s, err := NewSigner(signerTestKeyHex, 1)
	if err != nil {
		t.Fatalf("NewSigner returned error: %v", err)
	}
	a := sampleCycleEvent()
	b := sampleCycleEvent()
	b.Currencies = []string{"X", "Y", "X"}

	sigA, err := s.SignIntent(a, 1)
	if err != nil {
		t.Fatalf("SignIntent returned error: %v", err)
	}
	sigB, err := s.SignIntent(b, 1)
	if err != nil {
		t.Fatalf("SignIntent returned error: %v", err)
	}
	if sigA == sigB {
		t.Fatalf("expected different signatures for different currency cycles")
	}
}

func TestDifferentChainIDsProduceDifferentSignatures(t *testing.T) {
	s1, err := NewSigner(signerTestKeyHex, 1)
	if err != nil {
		t.Fatalf("NewSigner returned error: %v", err)
	}
	s2, err := NewSigner(signerTestKeyHex, 137)
	if err != nil {
		t.Fatalf("NewSigner returned error: %v", err)
	}
	event := sampleCycleEvent()

	sig1, err := s1.SignIntent(event, 1)
	if err != nil {
		t.Fatalf("SignIntent returned error: %v", err)
	}
	sig2, err := s2.SignIntent(event, 1)
	if err != nil {
		t.Fatalf("SignIntent returned error: %v", err)
	}
	if sig1 == sig2 {
		t.Fatalf("expected different chain IDs to yield different domain separators and signatures")
	}
}

func TestNewNonceIsMonotonicAcrossCalls(t *testing.T) {
	n1 := NewNonce()
	time.Sleep(time.Millisecond)
	n2 := NewNonce()
	if n2 <= n1 {
		t.Fatalf("NewNonce() = %d then %d, want strictly increasing", n1, n2)
	}
}
