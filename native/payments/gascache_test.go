package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sardis/cache"
	"sardis/native/mandate"
)

type countingExecutor struct {
	estimates int
}

func (c *countingExecutor) ExecuteTransfer(ctx context.Context, p *mandate.PaymentMandate) (*ExecutionReceipt, error) {
	return &ExecutionReceipt{TxHash: "0xabc"}, nil
}

func (c *countingExecutor) EstimateGas(ctx context.Context, chain string) (uint64, error) {
	c.estimates++
	return 60000 + uint64(c.estimates), nil
}

func (c *countingExecutor) SupportedChains() []string {
	return []string{"base"}
}

func TestCachingExecutorServesGasFromCache(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	mem := cache.NewMemory()
	mem.SetNowFunc(func() time.Time { return now })

	inner := &countingExecutor{}
	exec := NewCachingExecutor(inner, mem, time.Minute)

	first, err := exec.EstimateGas(ctx, "base")
	require.NoError(t, err)
	second, err := exec.EstimateGas(ctx, "base")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.estimates)

	now = now.Add(2 * time.Minute)
	third, err := exec.EstimateGas(ctx, "base")
	require.NoError(t, err)
	require.NotEqual(t, first, third)
	require.Equal(t, 2, inner.estimates)
}

func TestCachingExecutorKeysByChain(t *testing.T) {
	ctx := context.Background()
	inner := &countingExecutor{}
	exec := NewCachingExecutor(inner, cache.NewMemory(), 0)

	_, err := exec.EstimateGas(ctx, "base")
	require.NoError(t, err)
	_, err = exec.EstimateGas(ctx, "ethereum")
	require.NoError(t, err)
	require.Equal(t, 2, inner.estimates)
	require.Equal(t, []string{"base"}, exec.SupportedChains())
}
