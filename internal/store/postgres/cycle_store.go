package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/horaja/arbitrage-engine/internal/domain"
)

// CycleStore implements domain.CycleStore using PostgreSQL.
type CycleStore struct {
	pool *pgxpool.Pool
}

// NewCycleStore creates a new CycleStore backed by the given connection pool.
func NewCycleStore(pool *pgxpool.Pool) *CycleStore {
	return &CycleStore{pool: pool}
}

// Insert records a detected cycle event.
func (s *CycleStore) Insert(ctx context.Context, event domain.CycleEvent) error {
	const query = `
		INSERT INTO cycle_events (id, currencies, rate_product, detected_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query, event.ID, event.Currencies, event.RateProduct, event.DetectedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert cycle event %s: %w", event.ID, err)
	}
	return nil
}

// ListRecent returns the most recently detected cycle events, newest first.
func (s *CycleStore) ListRecent(ctx context.Context, limit int) ([]domain.CycleEvent, error) {
	const query = `
		SELECT id, currencies, rate_product, detected_at
		FROM cycle_events
		ORDER BY detected_at DESC
		LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent cycle events: %w", err)
	}
	defer rows.Close()

	var events []domain.CycleEvent
	for rows.Next() {
		var e domain.CycleEvent
		if err := rows.Scan(&e.ID, &e.Currencies, &e.RateProduct, &e.DetectedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan cycle event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list recent cycle events rows: %w", err)
	}
	return events, nil
}

// ListBefore returns all cycle events detected strictly before the given
// cutoff time, for archival purposes.
func (s *CycleStore) ListBefore(ctx context.Context, before time.Time) ([]domain.CycleEvent, error) {
	const query = `
		SELECT id, currencies, rate_product, detected_at
		FROM cycle_events
		WHERE detected_at < $1
		ORDER BY detected_at ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list cycle events before %s: %w", before, err)
	}
	defer rows.Close()

	var events []domain.CycleEvent
	for rows.Next() {
		var e domain.CycleEvent
		if err := rows.Scan(&e.ID, &e.Currencies, &e.RateProduct, &e.DetectedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan cycle event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list cycle events before rows: %w", err)
	}
	return events, nil
}

// Compile-time interface check.
var _ domain.CycleStore = (*CycleStore)(nil)
