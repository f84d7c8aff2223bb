// Package execution defines the boundary between a detected arbitrage cycle
// and any actual order placement. It never calls an exchange order
// endpoint: Gateway only produces a signed, auditable record that an
// external risk model approved a cycle for potential execution.
package execution

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/horaja/arbitrage-engine/internal/crypto"
	"github.com/horaja/arbitrage-engine/internal/domain"
)

// RiskGate is implemented by an external latency-risk model. Evaluate
// decides whether a detected cycle is still actionable (e.g. its edge has
// not decayed, the venues involved are not rate-limited). This package ships
// no implementation; a concrete RiskGate is an external collaborator per
// the core spec's non-goals.
type RiskGate interface {
	Evaluate(ctx context.Context, event domain.CycleEvent) (allow bool, reason string, err error)
}

// Intent is the signed audit record Gateway produces for an allowed cycle.
type Intent struct {
	Event     domain.CycleEvent
	Nonce     int64
	Signature string
	Reason    string
}

// Gateway evaluates a cycle against a RiskGate and, if allowed, signs an
// execution-intent digest for audit/hand-off purposes. It never places an
// order.
type Gateway struct {
	gate   RiskGate
	signer *crypto.Signer
	logger *slog.Logger
}

// NewGateway creates a Gateway backed by the given risk model and signer.
func NewGateway(gate RiskGate, signer *crypto.Signer, logger *slog.Logger) *Gateway {
	return &Gateway{gate: gate, signer: signer, logger: logger.With(slog.String("component", "execution_gateway"))}
}

// Evaluate runs the configured RiskGate against event and, if it allows,
// returns a signed Intent. If the gate disallows, it logs the gate's stated
// reason and returns a nil Intent and a nil error.
func (g *Gateway) Evaluate(ctx context.Context, event domain.CycleEvent) (*Intent, error) {
	allow, reason, err := g.gate.Evaluate(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("execution: risk gate evaluate: %w", err)
	}
	if !allow {
		g.logger.Info("cycle rejected by risk gate", slog.String("reason", reason), slog.Any("currencies", event.Currencies))
		return nil, nil
	}

	nonce := crypto.NewNonce()
	sig, err := g.signer.SignIntent(event, nonce)
	if err != nil {
		return nil, fmt.Errorf("execution: sign intent: %w", err)
	}

	g.logger.Info("cycle allowed, intent signed", slog.Any("currencies", event.Currencies), slog.Int64("nonce", nonce))
	return &Intent{Event: event, Nonce: nonce, Signature: sig, Reason: reason}, nil
}
