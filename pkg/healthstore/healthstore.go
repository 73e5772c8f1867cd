// Package healthstore persists periodic snapshots of plugin registry
// health to PostgreSQL for the discovery API's long-uptime views. It is a
// peripheral diagnostics sink, not part of the core execution path: the
// gateway's DAG engine and registry themselves never persist state across
// restarts (per spec.md §1's non-goals), but an operator dashboard built
// on top of the discovery API benefits from knowing a provider's recorded
// health across gateway restarts.
package healthstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/budecosystem/waav-gateway/pkg/registry"
)

const ddlPluginHealthSnapshots = `
CREATE TABLE IF NOT EXISTS plugin_health_snapshots (
    provider_id    TEXT         NOT NULL,
    provider_type  TEXT         NOT NULL,
    status         TEXT         NOT NULL,
    call_count     BIGINT       NOT NULL DEFAULT 0,
    error_count    BIGINT       NOT NULL DEFAULT 0,
    error_rate     DOUBLE PRECISION NOT NULL DEFAULT 0,
    recorded_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (provider_id, provider_type)
);

CREATE INDEX IF NOT EXISTS idx_plugin_health_snapshots_recorded_at
    ON plugin_health_snapshots (recorded_at);
`

// Store is a PostgreSQL-backed sink for registry.Entry health snapshots.
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and ensures the plugin_health_snapshots table
// exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("healthstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("healthstore: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlPluginHealthSnapshots); err != nil {
		pool.Close()
		return nil, fmt.Errorf("healthstore: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// RecordSnapshot upserts one row per entry, overwriting any snapshot
// previously recorded for that provider id/type pair.
func (s *Store) RecordSnapshot(ctx context.Context, entries []registry.Entry) error {
	const q = `
		INSERT INTO plugin_health_snapshots
		    (provider_id, provider_type, status, call_count, error_count, error_rate, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (provider_id, provider_type) DO UPDATE SET
		    status      = EXCLUDED.status,
		    call_count  = EXCLUDED.call_count,
		    error_count = EXCLUDED.error_count,
		    error_rate  = EXCLUDED.error_rate,
		    recorded_at = EXCLUDED.recorded_at`

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(q,
			e.Metadata.ID,
			e.Type,
			string(e.Health.Status),
			e.Health.CallCount,
			e.Health.ErrorCount,
			e.Health.ErrorRate,
		)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("healthstore: record snapshot: %w", err)
		}
	}
	return nil
}

// Snapshot is a single provider's last recorded health row.
type Snapshot struct {
	ProviderID   string
	ProviderType string
	Status       string
	CallCount    int64
	ErrorCount   int64
	ErrorRate    float64
	RecordedAt   time.Time
}

// LastSnapshot returns the most recently recorded snapshot for id/typ, if
// any has ever been persisted.
func (s *Store) LastSnapshot(ctx context.Context, id, typ string) (Snapshot, bool, error) {
	const q = `
		SELECT provider_id, provider_type, status, call_count, error_count, error_rate, recorded_at
		FROM   plugin_health_snapshots
		WHERE  provider_id = $1 AND provider_type = $2`

	row := s.pool.QueryRow(ctx, q, id, typ)
	var snap Snapshot
	if err := row.Scan(&snap.ProviderID, &snap.ProviderType, &snap.Status, &snap.CallCount, &snap.ErrorCount, &snap.ErrorRate, &snap.RecordedAt); err != nil {
		if err == pgx.ErrNoRows {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("healthstore: last snapshot: %w", err)
	}
	return snap, true, nil
}

// RunPeriodicSnapshots records reg's current Snapshot() to the store every
// interval until ctx is cancelled. It is meant to be run in its own
// goroutine for the lifetime of the gateway process.
func RunPeriodicSnapshots(ctx context.Context, store *Store, reg *registry.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = store.RecordSnapshot(ctx, reg.Snapshot())
		}
	}
}
