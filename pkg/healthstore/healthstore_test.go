package healthstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/budecosystem/waav-gateway/pkg/healthstore"
	"github.com/budecosystem/waav-gateway/pkg/provider/stt"
	mockstt "github.com/budecosystem/waav-gateway/pkg/provider/stt/mock"
	"github.com/budecosystem/waav-gateway/pkg/registry"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if WAAV_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("WAAV_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WAAV_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore opens a fresh healthstore.Store against a clean table.
func newTestStore(t *testing.T) *healthstore.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cleanPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(cleanPool.Close)
	if _, err := cleanPool.Exec(ctx, "DROP TABLE IF EXISTS plugin_health_snapshots CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	store, err := healthstore.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestRecordSnapshotThenLastSnapshotRoundTrips(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entries := []registry.Entry{
		{
			Metadata: registry.Metadata{ID: "deepgram"},
			Type:     "stt",
			Health: registry.Health{
				Status:     registry.StatusHealthy,
				CallCount:  42,
				ErrorCount: 1,
				ErrorRate:  1.0 / 42.0,
			},
		},
	}
	if err := store.RecordSnapshot(ctx, entries); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}

	got, ok, err := store.LastSnapshot(ctx, "deepgram", "stt")
	if err != nil {
		t.Fatalf("LastSnapshot: %v", err)
	}
	if !ok {
		t.Fatal("expected a snapshot to have been recorded")
	}
	if got.Status != "healthy" || got.CallCount != 42 || got.ErrorCount != 1 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.RecordedAt.After(time.Now()) {
		t.Fatalf("recorded_at %v is in the future", got.RecordedAt)
	}
}

func TestRecordSnapshotOverwritesPriorRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := registry.Entry{
		Metadata: registry.Metadata{ID: "deepgram"},
		Type:     "stt",
		Health:   registry.Health{Status: registry.StatusHealthy, CallCount: 1},
	}
	if err := store.RecordSnapshot(ctx, []registry.Entry{base}); err != nil {
		t.Fatalf("RecordSnapshot #1: %v", err)
	}

	updated := base
	updated.Health = registry.Health{Status: registry.StatusDegraded, CallCount: 5, ErrorCount: 2}
	if err := store.RecordSnapshot(ctx, []registry.Entry{updated}); err != nil {
		t.Fatalf("RecordSnapshot #2: %v", err)
	}

	got, ok, err := store.LastSnapshot(ctx, "deepgram", "stt")
	if err != nil {
		t.Fatalf("LastSnapshot: %v", err)
	}
	if !ok || got.Status != "degraded" || got.CallCount != 5 || got.ErrorCount != 2 {
		t.Fatalf("expected upsert to overwrite prior row, got %+v", got)
	}
}

func TestLastSnapshotReturnsFalseWhenNeverRecorded(t *testing.T) {
	store := newTestStore(t)
	_, ok, err := store.LastSnapshot(context.Background(), "nonexistent", "stt")
	if err != nil {
		t.Fatalf("LastSnapshot: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a provider that was never recorded")
	}
}

func TestRunPeriodicSnapshotsStopsOnContextCancel(t *testing.T) {
	store := newTestStore(t)
	reg := registry.New()
	reg.RegisterSTT("deepgram", registry.Metadata{DisplayName: "Deepgram"}, func(registry.PluginConfig) (stt.Provider, error) {
		return &mockstt.Provider{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		healthstore.RunPeriodicSnapshots(ctx, store, reg, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodicSnapshots did not return after context cancellation")
	}
}
