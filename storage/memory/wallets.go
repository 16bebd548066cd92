package memory

import (
	"context"

	"sardis/errs"
	"sardis/native/policy"
	"sardis/native/wallet"
)

// PutWallet implements wallet.Store.
func (s *Store) PutWallet(_ context.Context, w *wallet.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.WalletID] = w.Clone()
	return nil
}

// GetWallet implements wallet.Store.
func (s *Store) GetWallet(_ context.Context, walletID string) (*wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return nil, errs.NotFound("wallet", walletID)
	}
	return w.Clone(), nil
}

// WalletsForAgent implements wallet.Store.
func (s *Store) WalletsForAgent(_ context.Context, agentID string) ([]*wallet.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*wallet.Wallet
	for _, w := range s.wallets {
		if w.AgentID == agentID {
			out = append(out, w.Clone())
		}
	}
	return out, nil
}

// SetBalance seeds a wallet balance in minor units.
func (s *Store) SetBalance(walletID, chain, token string, amount int64) {
	s.mu.Lock()
	s.balances[balanceKey(walletID, chain, token)] = amount
	s.mu.Unlock()
}

// GetBalance implements policy.BalancePort.
func (s *Store) GetBalance(_ context.Context, walletID, chain, token string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[balanceKey(walletID, chain, token)], nil
}

// PutPolicy stores a spending policy keyed by its wallet.
func (s *Store) PutPolicy(_ context.Context, walletID string, p *policy.SpendingPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[walletID] = p.Clone()
	return nil
}

// PolicyForWallet implements payments.PolicyStore.
func (s *Store) PolicyForWallet(_ context.Context, walletID string) (*policy.SpendingPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[walletID]
	if !ok {
		return nil, errs.NotFound("spending policy", walletID)
	}
	return p.Clone(), nil
}
