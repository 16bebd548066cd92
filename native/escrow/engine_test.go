package escrow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sardis/errs"
)

type memState struct {
	mu      sync.Mutex
	escrows map[string]*Escrow
}

func newMemState() *memState { return &memState{escrows: make(map[string]*Escrow)} }

func (s *memState) EscrowPut(_ context.Context, e *Escrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escrows[e.EscrowID] = e.Clone()
	return nil
}

func (s *memState) EscrowGet(_ context.Context, escrowID string) (*Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.escrows[escrowID]
	if !ok {
		return nil, errs.NotFound("escrow", escrowID)
	}
	return e.Clone(), nil
}

func (s *memState) EscrowsByState(_ context.Context, state State) ([]*Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Escrow
	for _, e := range s.escrows {
		if e.State == state {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (s *memState) EscrowsForAgent(_ context.Context, agentID string) ([]*Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Escrow
	for _, e := range s.escrows {
		if e.PayerAgentID == agentID || e.PayeeAgentID == agentID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

type stubSettler struct {
	mu      sync.Mutex
	calls   []string
	refunds []bool
	err     error
}

func (s *stubSettler) Settle(_ context.Context, e *Escrow, refund bool) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", "", s.err
	}
	s.calls = append(s.calls, e.EscrowID)
	s.refunds = append(s.refunds, refund)
	return "0xsettled", "ltx_1", nil
}

func baseCreate() CreateInput {
	return CreateInput{
		PayerAgentID: "agent_payer",
		PayeeAgentID: "agent_payee",
		Amount:       500_000_000,
		Token:        "usdc",
		Chain:        "base",
	}
}

func TestHappyPathLifecycle(t *testing.T) {
	state := newMemState()
	settler := &stubSettler{}
	now := time.Unix(1_700_000_000, 0)
	engine := NewEngine(state, WithSettler(settler), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	esc, err := engine.Create(ctx, baseCreate())
	require.NoError(t, err)
	require.Equal(t, StateCreated, esc.State)
	require.Equal(t, "USDC", esc.Token)

	esc, err = engine.Fund(ctx, esc.EscrowID, "0xfund")
	require.NoError(t, err)
	require.Equal(t, StateFunded, esc.State)
	require.Equal(t, "0xfund", esc.FundingTxHash)

	esc, err = engine.ConfirmDelivery(ctx, esc.EscrowID, "agent_payer", "sha256:deadbeef")
	require.NoError(t, err)
	require.Equal(t, StateDelivered, esc.State)
	require.Equal(t, "sha256:deadbeef", esc.DeliveryProof)
	require.Equal(t, now, esc.DeliveredAt)

	esc, err = engine.Release(ctx, esc.EscrowID)
	require.NoError(t, err)
	require.Equal(t, StateReleased, esc.State)
	require.Equal(t, "0xsettled", esc.ReleaseTxHash)
	require.Equal(t, now, esc.ReleasedAt)
	require.Equal(t, []bool{false}, settler.refunds)
}

func TestFailClosedTransitions(t *testing.T) {
	state := newMemState()
	engine := NewEngine(state)
	ctx := context.Background()

	esc, err := engine.Create(ctx, baseCreate())
	require.NoError(t, err)

	// CREATED cannot be delivered, released or disputed.
	_, err = engine.ConfirmDelivery(ctx, esc.EscrowID, "agent_payer", "proof")
	require.Equal(t, errs.CodeConflict, errs.CodeOf(err))
	_, err = engine.Release(ctx, esc.EscrowID)
	require.Equal(t, errs.CodeConflict, errs.CodeOf(err))
	_, err = engine.Dispute(ctx, esc.EscrowID, "not delivered")
	require.Equal(t, errs.CodeConflict, errs.CodeOf(err))

	// Sinks never move again.
	_, err = engine.Fund(ctx, esc.EscrowID, "0xfund")
	require.NoError(t, err)
	_, err = engine.Refund(ctx, esc.EscrowID, "buyer cancelled")
	require.NoError(t, err)
	_, err = engine.Fund(ctx, esc.EscrowID, "0xagain")
	require.Equal(t, errs.CodeConflict, errs.CodeOf(err))
}

func TestOnlyPayerConfirmsDelivery(t *testing.T) {
	state := newMemState()
	engine := NewEngine(state)
	ctx := context.Background()

	esc, err := engine.Create(ctx, baseCreate())
	require.NoError(t, err)
	_, err = engine.Fund(ctx, esc.EscrowID, "0xfund")
	require.NoError(t, err)

	_, err = engine.ConfirmDelivery(ctx, esc.EscrowID, "agent_payee", "proof")
	require.Equal(t, errs.CodeUnauthorized, errs.CodeOf(err))
}

func TestDisputeResolvesEitherWay(t *testing.T) {
	state := newMemState()
	settler := &stubSettler{}
	engine := NewEngine(state, WithSettler(settler))
	ctx := context.Background()

	// Dispute from FUNDED, resolve as refund.
	esc, err := engine.Create(ctx, baseCreate())
	require.NoError(t, err)
	_, err = engine.Fund(ctx, esc.EscrowID, "0xfund")
	require.NoError(t, err)
	_, err = engine.Dispute(ctx, esc.EscrowID, "item never shipped")
	require.NoError(t, err)
	resolved, err := engine.Refund(ctx, esc.EscrowID, "resolved for payer")
	require.NoError(t, err)
	require.Equal(t, StateRefunded, resolved.State)
	require.Equal(t, "resolved for payer", resolved.RefundReason)
	require.Equal(t, "0xsettled", resolved.RefundTxHash)

	// Dispute from DELIVERED, resolve as release.
	esc2, err := engine.Create(ctx, baseCreate())
	require.NoError(t, err)
	_, err = engine.Fund(ctx, esc2.EscrowID, "0xfund")
	require.NoError(t, err)
	_, err = engine.ConfirmDelivery(ctx, esc2.EscrowID, "agent_payer", "proof")
	require.NoError(t, err)
	_, err = engine.Dispute(ctx, esc2.EscrowID, "wrong item")
	require.NoError(t, err)
	resolved, err = engine.Release(ctx, esc2.EscrowID)
	require.NoError(t, err)
	require.Equal(t, StateReleased, resolved.State)

	require.Equal(t, []bool{true, false}, settler.refunds)
}

func TestSettlementFailureLeavesStateUnchanged(t *testing.T) {
	state := newMemState()
	settler := &stubSettler{err: errs.TransactionFailed("base", "gas spike")}
	engine := NewEngine(state, WithSettler(settler))
	ctx := context.Background()

	esc, err := engine.Create(ctx, baseCreate())
	require.NoError(t, err)
	_, err = engine.Fund(ctx, esc.EscrowID, "0xfund")
	require.NoError(t, err)
	_, err = engine.ConfirmDelivery(ctx, esc.EscrowID, "agent_payer", "proof")
	require.NoError(t, err)

	_, err = engine.Release(ctx, esc.EscrowID)
	require.Error(t, err)

	got, err := engine.Get(ctx, esc.EscrowID)
	require.NoError(t, err)
	require.Equal(t, StateDelivered, got.State)
}

func TestCheckExpired(t *testing.T) {
	state := newMemState()
	settler := &stubSettler{}
	now := time.Unix(1_700_000_000, 0)
	engine := NewEngine(state, WithSettler(settler), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	in := baseCreate()
	in.TTL = time.Hour
	created, err := engine.Create(ctx, in)
	require.NoError(t, err)

	funded, err := engine.Create(ctx, in)
	require.NoError(t, err)
	_, err = engine.Fund(ctx, funded.EscrowID, "0xfund")
	require.NoError(t, err)

	fresh, err := engine.Create(ctx, baseCreate())
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	expired, err := engine.CheckExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, expired)

	for _, id := range []string{created.EscrowID, funded.EscrowID} {
		got, err := engine.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, StateExpired, got.State)
	}
	got, err := engine.Get(ctx, fresh.EscrowID)
	require.NoError(t, err)
	require.Equal(t, StateCreated, got.State)

	// The sweep never moves funds on its own.
	require.Empty(t, settler.calls)
}

func TestExpiredEscrowRefundable(t *testing.T) {
	require.True(t, CanTransition(StateExpired, StateRefunded))
	require.False(t, CanTransition(StateExpired, StateReleased))
	require.False(t, StateExpired.Terminal())

	state := newMemState()
	settler := &stubSettler{}
	now := time.Unix(1_700_000_000, 0)
	engine := NewEngine(state, WithSettler(settler), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	in := baseCreate()
	in.TTL = time.Hour
	unfunded, err := engine.Create(ctx, in)
	require.NoError(t, err)
	funded, err := engine.Create(ctx, in)
	require.NoError(t, err)
	_, err = engine.Fund(ctx, funded.EscrowID, "0xfund")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = engine.CheckExpired(ctx)
	require.NoError(t, err)

	// Release from EXPIRED stays forbidden.
	_, err = engine.Release(ctx, funded.EscrowID)
	require.Equal(t, errs.CodeConflict, errs.CodeOf(err))

	// Refund of a funded escrow moves the locked funds back.
	got, err := engine.Refund(ctx, funded.EscrowID, "expired")
	require.NoError(t, err)
	require.Equal(t, StateRefunded, got.State)
	require.Equal(t, "expired", got.RefundReason)
	require.Equal(t, []string{funded.EscrowID}, settler.calls)
	require.Equal(t, []bool{true}, settler.refunds)

	// Refund of a never-funded escrow has nothing to settle.
	got, err = engine.Refund(ctx, unfunded.EscrowID, "expired")
	require.NoError(t, err)
	require.Equal(t, StateRefunded, got.State)
	require.Empty(t, got.RefundTxHash)
	require.Equal(t, []string{funded.EscrowID}, settler.calls)
}

func TestCreateValidation(t *testing.T) {
	engine := NewEngine(newMemState())
	ctx := context.Background()

	in := baseCreate()
	in.PayeeAgentID = in.PayerAgentID
	_, err := engine.Create(ctx, in)
	require.Equal(t, errs.CodeValidation, errs.CodeOf(err))

	in = baseCreate()
	in.Amount = 0
	_, err = engine.Create(ctx, in)
	require.Equal(t, errs.CodeValidation, errs.CodeOf(err))
}
