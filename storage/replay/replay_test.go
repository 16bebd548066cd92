package replay

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryClaimOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ok, err := store.Claim(ctx, "mandate_1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Claim(ctx, "mandate_1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	claimed, err := store.IsClaimed(ctx, "mandate_1")
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestMemoryClaimExactlyOnceConcurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const callers = 64
	var wins atomic.Int64
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			ok, err := store.Claim(ctx, "mandate_race", time.Minute)
			require.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(1), wins.Load())
}

func TestMemoryClaimExpiresWithTTL(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	store.SetNowFunc(func() time.Time { return now })

	ok, err := store.Claim(ctx, "mandate_ttl", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	claimed, err := store.IsClaimed(ctx, "mandate_ttl")
	require.NoError(t, err)
	require.False(t, claimed)

	ok, err = store.Claim(ctx, "mandate_ttl", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired claims are reclaimable")
}

func TestMemoryGC(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	store.SetNowFunc(func() time.Time { return now })

	_, err := store.Claim(ctx, "a", time.Minute)
	require.NoError(t, err)
	_, err = store.Claim(ctx, "b", time.Hour)
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	require.Equal(t, 1, store.GC())
}

func TestLevelDBClaimOnce(t *testing.T) {
	store, err := OpenLevelDBStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	ok, err := store.Claim(ctx, "mandate_1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Claim(ctx, "mandate_1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	claimed, err := store.IsClaimed(ctx, "mandate_1")
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestLevelDBGC(t *testing.T) {
	store, err := OpenLevelDBStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	now := time.Unix(1_700_000_000, 0)
	store.SetNowFunc(func() time.Time { return now })
	ctx := context.Background()

	_, err = store.Claim(ctx, "short", time.Minute)
	require.NoError(t, err)
	_, err = store.Claim(ctx, "long", time.Hour)
	require.NoError(t, err)

	now = now.Add(10 * time.Minute)
	removed, err := store.GC()
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	claimed, err := store.IsClaimed(ctx, "long")
	require.NoError(t, err)
	require.True(t, claimed)
}
