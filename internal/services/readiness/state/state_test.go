package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/shipwatch/internal/services/readiness/storage"
	"github.com/louisbranch/shipwatch/internal/services/readiness/storage/sqlite"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
}

func openTempStore(t *testing.T, clock *fakeClock) storage.Store {
	t.Helper()
	store, err := sqlite.OpenWithClock(filepath.Join(t.TempDir(), "state.db"), clock.Now)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

// stealingKV simulates a racing writer that overwrites every lock write.
type stealingKV struct {
	storage.KV
}

func (s stealingKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.KV.Set(ctx, key, []byte("someone-else"), ttl)
}
