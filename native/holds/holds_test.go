package holds

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sardis/errs"
)

type memStore struct {
	mu    sync.Mutex
	holds map[string]*Hold
}

func newMemStore() *memStore { return &memStore{holds: make(map[string]*Hold)} }

func (s *memStore) PutHold(_ context.Context, h *Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holds[h.HoldID] = h.Clone()
	return nil
}

func (s *memStore) GetHold(_ context.Context, holdID string) (*Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holds[holdID]
	if !ok {
		return nil, errs.NotFound("hold", holdID)
	}
	return h.Clone(), nil
}

func (s *memStore) ListHolds(_ context.Context, walletID string) ([]*Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Hold
	for _, h := range s.holds {
		if h.WalletID == walletID {
			out = append(out, h.Clone())
		}
	}
	return out, nil
}

func (s *memStore) ListByStatus(_ context.Context, status Status) ([]*Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Hold
	for _, h := range s.holds {
		if h.Status == status {
			out = append(out, h.Clone())
		}
	}
	return out, nil
}

func testManager(t *testing.T, now *time.Time) (*Manager, *memStore) {
	t.Helper()
	store := newMemStore()
	mgr := NewManager(store,
		WithMinHoldDuration(time.Minute),
		WithClock(func() time.Time { return *now }),
	)
	return mgr, store
}

func TestCreateAndCapture(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	mgr, _ := testManager(t, &now)
	ctx := context.Background()

	hold, err := mgr.Create(ctx, CreateInput{WalletID: "wallet_1", Amount: 500, Token: "usdc", Duration: time.Hour})
	require.NoError(t, err)
	require.Equal(t, StatusActive, hold.Status)
	require.Equal(t, "USDC", hold.Token)
	require.Equal(t, now.Add(time.Hour), hold.ExpiresAt)

	captured, err := mgr.Capture(ctx, hold.HoldID, 300, "tx_1")
	require.NoError(t, err)
	require.Equal(t, StatusCaptured, captured.Status)
	require.Equal(t, int64(300), captured.CapturedAmount)
}

func TestCaptureIdempotentPerTxID(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	mgr, _ := testManager(t, &now)
	ctx := context.Background()

	hold, err := mgr.Create(ctx, CreateInput{WalletID: "wallet_1", Amount: 500, Token: "USDC"})
	require.NoError(t, err)

	first, err := mgr.Capture(ctx, hold.HoldID, 500, "tx_1")
	require.NoError(t, err)

	replay, err := mgr.Capture(ctx, hold.HoldID, 500, "tx_1")
	require.NoError(t, err)
	require.Equal(t, first.CapturedAt, replay.CapturedAt)

	_, err = mgr.Capture(ctx, hold.HoldID, 500, "tx_2")
	require.Error(t, err)
	require.Equal(t, errs.CodeConflict, errs.CodeOf(err))
}

func TestCaptureRejectsOverAmountAndExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	mgr, _ := testManager(t, &now)
	ctx := context.Background()

	hold, err := mgr.Create(ctx, CreateInput{WalletID: "wallet_1", Amount: 500, Token: "USDC", Duration: time.Hour})
	require.NoError(t, err)

	_, err = mgr.Capture(ctx, hold.HoldID, 501, "tx_1")
	require.Error(t, err)

	now = now.Add(2 * time.Hour)
	_, err = mgr.Capture(ctx, hold.HoldID, 100, "tx_1")
	require.Error(t, err)
	require.Equal(t, errs.CodeConflict, errs.CodeOf(err))
}

func TestTransitionsAreOneWay(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	mgr, _ := testManager(t, &now)
	ctx := context.Background()

	hold, err := mgr.Create(ctx, CreateInput{WalletID: "wallet_1", Amount: 500, Token: "USDC"})
	require.NoError(t, err)

	_, err = mgr.Void(ctx, hold.HoldID)
	require.NoError(t, err)

	// No sink state may transition again.
	_, err = mgr.Void(ctx, hold.HoldID)
	require.Equal(t, errs.CodeConflict, errs.CodeOf(err))
	_, err = mgr.Capture(ctx, hold.HoldID, 100, "tx_1")
	require.Equal(t, errs.CodeConflict, errs.CodeOf(err))
}

func TestExpireOldHolds(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	mgr, store := testManager(t, &now)
	ctx := context.Background()

	short, err := mgr.Create(ctx, CreateInput{WalletID: "wallet_1", Amount: 100, Token: "USDC", Duration: time.Minute})
	require.NoError(t, err)
	long, err := mgr.Create(ctx, CreateInput{WalletID: "wallet_1", Amount: 100, Token: "USDC", Duration: 48 * time.Hour})
	require.NoError(t, err)

	now = now.Add(time.Hour)
	expired, err := mgr.ExpireOldHolds(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	got, err := store.GetHold(ctx, short.HoldID)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, got.Status)

	got, err = store.GetHold(ctx, long.HoldID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, got.Status)
}

func TestCreateRaisesShortDurations(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := newMemStore()
	mgr := NewManager(store, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	// The default floor raises short requests.
	hold, err := mgr.Create(ctx, CreateInput{WalletID: "wallet_1", Amount: 100, Token: "USDC", Duration: time.Hour})
	require.NoError(t, err)
	require.Equal(t, now.Add(defaultHoldDuration), hold.ExpiresAt)

	// Requests above the floor keep their duration.
	hold, err = mgr.Create(ctx, CreateInput{WalletID: "wallet_1", Amount: 100, Token: "USDC", Duration: 96 * time.Hour})
	require.NoError(t, err)
	require.Equal(t, now.Add(96*time.Hour), hold.ExpiresAt)
}

func TestCreateValidation(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	mgr, _ := testManager(t, &now)
	ctx := context.Background()

	_, err := mgr.Create(ctx, CreateInput{WalletID: "wallet_1", Amount: 0, Token: "USDC"})
	require.Error(t, err)
	_, err = mgr.Create(ctx, CreateInput{Amount: 10, Token: "USDC"})
	require.Error(t, err)
	_, err = mgr.Create(ctx, CreateInput{WalletID: "wallet_1", Amount: 10})
	require.Error(t, err)
}
