package payments

import (
	"context"
	"encoding/binary"
	"sort"
	"strings"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"sardis/errs"
	"sardis/native/mandate"
	"sardis/native/token"
)

// chainProfile holds the per-chain simulation parameters.
type chainProfile struct {
	GasEstimate uint64
	Latency     time.Duration
}

var defaultChainProfiles = map[string]chainProfile{
	"base":     {GasEstimate: 65_000, Latency: 20 * time.Millisecond},
	"ethereum": {GasEstimate: 90_000, Latency: 120 * time.Millisecond},
	"polygon":  {GasEstimate: 70_000, Latency: 30 * time.Millisecond},
	"arbitrum": {GasEstimate: 60_000, Latency: 15 * time.Millisecond},
}

// SimulatedExecutor is the development chain backend. Transaction hashes are
// deterministic over (chain, nonce, destination, amount) so a retried
// dispatch produces the same hash.
type SimulatedExecutor struct {
	mu       sync.Mutex
	chains   map[string]chainProfile
	tokens   *token.Registry
	failNext error
	nowFn    func() time.Time
}

// SimulatedOption customises a SimulatedExecutor.
type SimulatedOption func(*SimulatedExecutor)

// WithSimulatedClock overrides the time source, for tests.
func WithSimulatedClock(now func() time.Time) SimulatedOption {
	return func(e *SimulatedExecutor) {
		if now != nil {
			e.nowFn = now
		}
	}
}

// NewSimulatedExecutor returns an executor over the default chain set and the
// given token registry.
func NewSimulatedExecutor(tokens *token.Registry, opts ...SimulatedOption) *SimulatedExecutor {
	chains := make(map[string]chainProfile, len(defaultChainProfiles))
	for name, profile := range defaultChainProfiles {
		chains[name] = profile
	}
	e := &SimulatedExecutor{chains: chains, tokens: tokens, nowFn: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FailNext makes the next ExecuteTransfer return err once. Test hook.
func (e *SimulatedExecutor) FailNext(err error) {
	e.mu.Lock()
	e.failNext = err
	e.mu.Unlock()
}

// ExecuteTransfer simulates a transfer and returns a deterministic receipt.
func (e *SimulatedExecutor) ExecuteTransfer(ctx context.Context, p *mandate.PaymentMandate) (*ExecutionReceipt, error) {
	e.mu.Lock()
	if err := e.failNext; err != nil {
		e.failNext = nil
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	chain := strings.ToLower(strings.TrimSpace(p.Chain))
	profile, ok := e.chains[chain]
	if !ok {
		return nil, errs.Validation("unsupported chain " + p.Chain)
	}
	if e.tokens != nil {
		if _, err := e.tokens.ContractAddress(p.Token, chain); err != nil {
			return nil, errs.Validation("token " + p.Token + " not deployed on " + chain)
		}
	}
	select {
	case <-ctx.Done():
		return nil, errs.Wrap(errs.CodeTimeout, "simulated dispatch", ctx.Err())
	case <-time.After(profile.Latency):
	}

	amount := make([]byte, 8)
	binary.BigEndian.PutUint64(amount, uint64(p.AmountMinor))
	hash := ethcrypto.Keccak256Hash(
		[]byte(chain),
		[]byte(p.Nonce),
		[]byte(strings.ToLower(p.Destination)),
		amount,
	)
	return &ExecutionReceipt{
		TxHash:      hash.Hex(),
		GasUsed:     profile.GasEstimate,
		SubmittedAt: e.nowFn(),
	}, nil
}

// EstimateGas returns the simulated gas cost of a transfer on the chain.
func (e *SimulatedExecutor) EstimateGas(_ context.Context, chain string) (uint64, error) {
	profile, ok := e.chains[strings.ToLower(strings.TrimSpace(chain))]
	if !ok {
		return 0, errs.Validation("unsupported chain " + chain)
	}
	return profile.GasEstimate, nil
}

// SupportedChains lists the configured chains in stable order.
func (e *SimulatedExecutor) SupportedChains() []string {
	out := make([]string, 0, len(e.chains))
	for name := range e.chains {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
