package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryRoundtripAndTTL(t *testing.T) {
	mem := NewMemory()
	now := time.Unix(1_700_000_000, 0)
	mem.SetNowFunc(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, "k1", record{Name: "a", Count: 2}, time.Minute))

	var got record
	ok, err := mem.Get(ctx, "k1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record{Name: "a", Count: 2}, got)

	now = now.Add(2 * time.Minute)
	ok, err = mem.Get(ctx, "k1", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryGC(t *testing.T) {
	mem := NewMemory()
	now := time.Unix(1_700_000_000, 0)
	mem.SetNowFunc(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, "short", 1, time.Minute))
	require.NoError(t, mem.Set(ctx, "forever", 2, 0))

	now = now.Add(time.Hour)
	require.Equal(t, 1, mem.GC())

	var v int
	ok, err := mem.Get(ctx, "forever", &v)
	require.NoError(t, err)
	require.True(t, ok)
}

type flakyCache struct {
	inner *Memory
	fail  bool
	gets  int
}

func (f *flakyCache) Get(ctx context.Context, key string, out any) (bool, error) {
	f.gets++
	if f.fail {
		return false, errors.New("connection refused")
	}
	return f.inner.Get(ctx, key, out)
}

func (f *flakyCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if f.fail {
		return errors.New("connection refused")
	}
	return f.inner.Set(ctx, key, value, ttl)
}

func (f *flakyCache) Delete(ctx context.Context, key string) error {
	if f.fail {
		return errors.New("connection refused")
	}
	return f.inner.Delete(ctx, key)
}

func TestTieredReadThrough(t *testing.T) {
	shared := &flakyCache{inner: NewMemory()}
	tiered := NewTiered(shared)
	ctx := context.Background()

	// Seed only the shared tier, simulating another instance's write.
	require.NoError(t, shared.Set(ctx, "k1", record{Name: "a"}, time.Minute))

	var got record
	ok, err := tiered.Get(ctx, "k1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, shared.gets)

	// Second read is served from memory.
	ok, err = tiered.Get(ctx, "k1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, shared.gets)
}

func TestTieredDegradesWhenSharedFails(t *testing.T) {
	shared := &flakyCache{inner: NewMemory(), fail: true}
	tiered := NewTiered(shared)
	ctx := context.Background()

	// Writes land in memory even when the shared tier is down.
	require.NoError(t, tiered.Set(ctx, "k1", record{Name: "a"}, time.Minute))

	var got record
	ok, err := tiered.Get(ctx, "k1", &got)
	require.NoError(t, err)
	require.True(t, ok)

	// A shared-tier read failure is a miss, not an error.
	ok, err = tiered.Get(ctx, "missing", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTieredDelete(t *testing.T) {
	shared := &flakyCache{inner: NewMemory()}
	tiered := NewTiered(shared)
	ctx := context.Background()

	require.NoError(t, tiered.Set(ctx, "k1", 1, time.Minute))
	require.NoError(t, tiered.Delete(ctx, "k1"))

	var v int
	ok, err := tiered.Get(ctx, "k1", &v)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryOnlyTiered(t *testing.T) {
	tiered := NewTiered(nil)
	ctx := context.Background()
	require.NoError(t, tiered.Set(ctx, "k1", 7, 0))
	var v int
	ok, err := tiered.Get(ctx, "k1", &v)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 7, v)
}
