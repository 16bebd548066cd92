package wallet

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"sardis/errs"
)

type memStore struct {
	mu      sync.Mutex
	wallets map[string]*Wallet
}

func newMemStore() *memStore { return &memStore{wallets: make(map[string]*Wallet)} }

func (s *memStore) PutWallet(_ context.Context, w *Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.WalletID] = w.Clone()
	return nil
}

func (s *memStore) GetWallet(_ context.Context, walletID string) (*Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return nil, errs.NotFound("wallet", walletID)
	}
	return w.Clone(), nil
}

func (s *memStore) WalletsForAgent(_ context.Context, agentID string) ([]*Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Wallet
	for _, w := range s.wallets {
		if w.AgentID == agentID {
			out = append(out, w.Clone())
		}
	}
	return out, nil
}

const baseAddr = "0x1111111111111111111111111111111111111111"

func TestCreateAndResolve(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()

	w, err := svc.Create(ctx, CreateInput{
		AgentID:     "agent_1",
		AccountType: AccountMPC,
		Addresses:   map[string]string{"Base": baseAddr},
	})
	require.NoError(t, err)
	require.False(t, w.Frozen)

	addr, err := svc.AddressOn(ctx, w.WalletID, "base")
	require.NoError(t, err)
	require.Equal(t, baseAddr, addr)

	addr, err = svc.WalletAddress(ctx, "agent_1", "base")
	require.NoError(t, err)
	require.Equal(t, baseAddr, addr)

	_, err = svc.AddressOn(ctx, w.WalletID, "solana")
	require.Equal(t, errs.CodeNotFound, errs.CodeOf(err))
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{AccountType: AccountMPC})
	require.Equal(t, errs.CodeValidation, errs.CodeOf(err))

	_, err = svc.Create(ctx, CreateInput{AgentID: "agent_1", AccountType: "custodial_v0"})
	require.Equal(t, errs.CodeValidation, errs.CodeOf(err))

	_, err = svc.Create(ctx, CreateInput{
		AgentID:     "agent_1",
		AccountType: AccountERC437,
		Addresses:   map[string]string{"base": "not-an-address"},
	})
	require.Equal(t, errs.CodeValidation, errs.CodeOf(err))
}

func TestFreezeBlocksSpendAndResolution(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()

	w, err := svc.Create(ctx, CreateInput{
		AgentID:     "agent_1",
		AccountType: AccountMPC,
		Addresses:   map[string]string{"base": baseAddr},
	})
	require.NoError(t, err)

	_, err = svc.EnsureSpendable(ctx, w.WalletID)
	require.NoError(t, err)

	frozen, err := svc.SetFrozen(ctx, w.WalletID, true, "fraud review")
	require.NoError(t, err)
	require.True(t, frozen.Frozen)
	require.Equal(t, "fraud review", frozen.FreezeReason)

	_, err = svc.EnsureSpendable(ctx, w.WalletID)
	require.Equal(t, errs.CodePolicyDenied, errs.CodeOf(err))

	_, err = svc.WalletAddress(ctx, "agent_1", "base")
	require.Equal(t, errs.CodeNotFound, errs.CodeOf(err))

	// Double freeze is a conflict; unfreeze clears the reason.
	_, err = svc.SetFrozen(ctx, w.WalletID, true, "again")
	require.Equal(t, errs.CodeConflict, errs.CodeOf(err))

	thawed, err := svc.SetFrozen(ctx, w.WalletID, false, "")
	require.NoError(t, err)
	require.False(t, thawed.Frozen)
	require.Empty(t, thawed.FreezeReason)
}

func TestFreezeRequiresReason(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()
	w, err := svc.Create(ctx, CreateInput{AgentID: "agent_1", AccountType: AccountMPC})
	require.NoError(t, err)
	_, err = svc.SetFrozen(ctx, w.WalletID, true, " ")
	require.Equal(t, errs.CodeValidation, errs.CodeOf(err))
}
