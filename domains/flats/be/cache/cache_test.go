package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gateflow-app/gateflow/domains/flats/be/repo"
	"github.com/gateflow-app/gateflow/platform/go/sheetstore"
)

func newFixture(t *testing.T) (*sheetstore.Memory, *Resolver, *time.Time) {
	t.Helper()

	store := sheetstore.NewMemory()
	store.Seed("Flats",
		[]string{"flat_id", "society_id", "flat_no", "resident_name", "resident_phone", "active"},
		[][]string{
			{"f-1", "S1", "A-101", "Asha", "9999999999", "TRUE"},
			{"f-2", "S1", "B-202", "Ravi", "8888888888", "TRUE"},
		},
	)

	r := New(repo.NewSheetRepository(store, "Flats", nil), DefaultTTL, nil)
	clock := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	return store, r, &clock
}

func TestResolveByNumberAndID(t *testing.T) {
	t.Parallel()

	_, r, _ := newFixture(t)

	flat, ok, err := r.Resolve(context.Background(), "S1", "flat- A-101")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "f-1", flat.FlatID)

	flat, ok, err = r.Resolve(context.Background(), "S1", "f-2")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "B-202", flat.FlatNo)
}

func TestResolveServesStaleUntilTTL(t *testing.T) {
	t.Parallel()

	store, r, clock := newFixture(t)

	// Populate the cache, then deactivate the unit behind its back.
	_, ok, err := r.Resolve(context.Background(), "S1", "A-101")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Update(context.Background(), "Flats", 2,
		[]string{"f-1", "S1", "A-101", "Asha", "9999999999", "FALSE"}))

	// Within the TTL the stale active record still resolves.
	*clock = clock.Add(DefaultTTL - time.Second)
	flat, ok, err := r.Resolve(context.Background(), "S1", "A-101")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, flat.Active)

	// Past the TTL a rebuild happens and the direct path reports the unit
	// inactive.
	*clock = clock.Add(2 * time.Second)
	flat, ok, err = r.Resolve(context.Background(), "S1", "A-101")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, flat.Active)
}

func TestInvalidateDropsTenant(t *testing.T) {
	t.Parallel()

	store, r, _ := newFixture(t)

	_, ok, err := r.Resolve(context.Background(), "S1", "A-101")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Update(context.Background(), "Flats", 2,
		[]string{"f-1", "S1", "A-101", "Asha", "9999999999", "FALSE"}))
	r.Invalidate("S1")

	flat, ok, err := r.Resolve(context.Background(), "S1", "A-101")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, flat.Active)
}

func TestResolveFallsBackWhenRebuildFails(t *testing.T) {
	t.Parallel()

	// Store with no Flats table: rebuild fails, direct path fails too, and
	// that primary-path error surfaces.
	r := New(repo.NewSheetRepository(sheetstore.NewMemory(), "Flats", nil), DefaultTTL, nil)

	_, _, err := r.Resolve(context.Background(), "S1", "A-101")
	require.ErrorIs(t, err, sheetstore.ErrUnavailable)
}

func TestWarmInsertsWithoutRebuild(t *testing.T) {
	t.Parallel()

	store, r, _ := newFixture(t)

	_, ok, err := r.Resolve(context.Background(), "S1", "A-101")
	require.NoError(t, err)
	require.True(t, ok)

	// A unit added after population is found via the direct path and warmed
	// into the live map.
	require.NoError(t, store.Append(context.Background(), "Flats",
		[][]string{{"f-9", "S1", "C-303", "Nila", "6666666666", "TRUE"}}))

	flat, ok, err := r.Resolve(context.Background(), "S1", "C303")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "f-9", flat.FlatID)

	flat, found, live := r.cached("S1", "C303")
	require.True(t, live)
	require.True(t, found)
	require.Equal(t, "f-9", flat.FlatID)
}

func TestConcurrentResolveAndWarm(t *testing.T) {
	t.Parallel()

	_, r, _ := newFixture(t)

	// Prime the tenant so every goroutine hits the live entry.
	_, ok, err := r.Resolve(context.Background(), "S1", "A-101")
	require.NoError(t, err)
	require.True(t, ok)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, _, err := r.Resolve(context.Background(), "S1", "A-101"); err != nil {
					t.Errorf("resolve: %v", err)
					return
				}
			}
		}(i)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Warm("S1", repo.Flat{
					FlatID:    fmt.Sprintf("f-%d-%d", n, j),
					SocietyID: "S1",
					FlatNo:    fmt.Sprintf("D-%d%02d", n, j),
					Active:    true,
				})
			}
		}(i)
	}
	wg.Wait()

	flat, ok, err := r.Resolve(context.Background(), "S1", "A-101")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "f-1", flat.FlatID)
}
