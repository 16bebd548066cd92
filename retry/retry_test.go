package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sardis/errs"
)

func fastPolicy() Policy {
	p := DefaultPolicy()
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 2 * time.Millisecond
	p.Jitter = 0
	return p
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errs.New(errs.CodeUpstreamUnavailable, "flaky")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		calls++
		return errs.PolicyDenied("per_transaction_limit")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, errs.CodePolicyDenied, errs.CodeOf(err))
}

func TestDoExhaustsBudget(t *testing.T) {
	p := fastPolicy()
	p.MaxRetries = 2
	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return errs.New(errs.CodeTimeout, "deadline")
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestDelayClampedToMax(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 3 * time.Second, ExponentialBase: 2}
	require.Equal(t, 3*time.Second, p.Delay(5))
	require.Equal(t, time.Second, p.Delay(0))
}

func TestDoHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, fastPolicy(), func(context.Context) error {
		t.Fatal("fn should not run with cancelled context")
		return nil
	})
	require.Error(t, err)
}
