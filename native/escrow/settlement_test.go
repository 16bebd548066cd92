package escrow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sardis/native/ledger"
	"sardis/native/mandate"
)

type stubExecutor struct {
	mandates []*mandate.PaymentMandate
}

func (s *stubExecutor) ExecuteTransfer(_ context.Context, p *mandate.PaymentMandate) (string, error) {
	s.mandates = append(s.mandates, p)
	return "0xhash", nil
}

type stubResolver struct{}

func (stubResolver) WalletAddress(_ context.Context, agentID, _ string) (string, error) {
	if agentID == "agent_payer" {
		return "0x1111111111111111111111111111111111111111", nil
	}
	return "0x2222222222222222222222222222222222222222", nil
}

type recordingBook struct {
	inputs []ledger.TransferInput
}

func (b *recordingBook) AppendTransfer(_ context.Context, in ledger.TransferInput) (string, error) {
	b.inputs = append(b.inputs, in)
	return "ltx_1", nil
}

func sampleEscrow() *Escrow {
	return &Escrow{
		EscrowID:     "esc_1",
		PayerAgentID: "agent_payer",
		PayeeAgentID: "agent_payee",
		Amount:       500_000_000,
		Token:        "USDC",
		Chain:        "base",
		State:        StateDelivered,
	}
}

func TestOnChainSettleRelease(t *testing.T) {
	executor := &stubExecutor{}
	book := &recordingBook{}
	now := time.Unix(1_700_000_000, 0)
	settler := NewOnChainSettler(executor, stubResolver{}, book, "pay.sardis.xyz",
		WithSettlerClock(func() time.Time { return now }))

	txHash, ledgerTx, err := settler.Settle(context.Background(), sampleEscrow(), false)
	require.NoError(t, err)
	require.Equal(t, "0xhash", txHash)
	require.Equal(t, "ltx_1", ledgerTx)

	require.Len(t, executor.mandates, 1)
	pm := executor.mandates[0]
	require.Equal(t, "agent_payee", pm.Subject)
	require.Equal(t, "0x2222222222222222222222222222222222222222", pm.Destination)
	require.Equal(t, "a2a:release", pm.Purpose)
	require.Equal(t, "escrow::esc_1", pm.AuditHash)
	require.True(t, pm.AIAgentPresence)
	require.Equal(t, mandate.HumanNotPresent, pm.TransactionModality)
	require.NoError(t, mandate.SanitizePayment(pm))

	require.Len(t, book.inputs, 1)
	entry := book.inputs[0]
	require.Equal(t, "escrow:esc_1", entry.DebitAccount)
	require.Equal(t, "agent:agent_payee", entry.CreditAccount)
	require.Equal(t, int64(500_000_000), entry.Amount)
	require.Equal(t, ledger.StatusConfirmed, entry.Status)
	require.Equal(t, "0xhash", entry.ChainTxHash)
}

func TestOnChainSettleRefundTargetsPayer(t *testing.T) {
	executor := &stubExecutor{}
	book := &recordingBook{}
	settler := NewOnChainSettler(executor, stubResolver{}, book, "pay.sardis.xyz")

	_, _, err := settler.Settle(context.Background(), sampleEscrow(), true)
	require.NoError(t, err)
	require.Equal(t, "agent_payer", executor.mandates[0].Subject)
	require.Equal(t, "0x1111111111111111111111111111111111111111", executor.mandates[0].Destination)
	require.Equal(t, "a2a:refund", executor.mandates[0].Purpose)
	require.Equal(t, "agent:agent_payer", book.inputs[0].CreditAccount)
}

func TestSettlementNonceDeterministic(t *testing.T) {
	executor := &stubExecutor{}
	book := &recordingBook{}
	settler := NewOnChainSettler(executor, stubResolver{}, book, "pay.sardis.xyz")

	_, _, err := settler.Settle(context.Background(), sampleEscrow(), false)
	require.NoError(t, err)
	_, _, err = settler.Settle(context.Background(), sampleEscrow(), false)
	require.NoError(t, err)

	// A retried settlement reuses the nonce so the replay cache can catch it.
	require.Equal(t, executor.mandates[0].Nonce, executor.mandates[1].Nonce)
	require.Len(t, executor.mandates[0].Nonce, 64)
	require.NotEqual(t, executor.mandates[0].MandateID, executor.mandates[1].MandateID)
}

type recordingLog struct {
	rows []*Settlement
}

func (l *recordingLog) SettlementPut(_ context.Context, s *Settlement) error {
	l.rows = append(l.rows, s.Clone())
	return nil
}

func TestSettlementRowsPersisted(t *testing.T) {
	executor := &stubExecutor{}
	book := &recordingBook{}
	log := &recordingLog{}
	settler := NewOnChainSettler(executor, stubResolver{}, book, "pay.sardis.xyz",
		WithSettlementLog(log))

	_, _, err := settler.Settle(context.Background(), sampleEscrow(), false)
	require.NoError(t, err)
	require.Len(t, log.rows, 1)
	row := log.rows[0]
	require.True(t, strings.HasPrefix(row.SettlementID, "settlement_"))
	require.Equal(t, "esc_1", row.EscrowID)
	require.Equal(t, SettlementOnChain, row.Type)
	require.Equal(t, "0xhash", row.TxHash)
	require.Equal(t, "ltx_1", row.LedgerTx)
	require.False(t, row.Refund)

	off := NewOffChainSettler(book, WithOffChainLog(log))
	_, _, err = off.Settle(context.Background(), sampleEscrow(), true)
	require.NoError(t, err)
	require.Len(t, log.rows, 2)
	require.Equal(t, SettlementOffChain, log.rows[1].Type)
	require.Empty(t, log.rows[1].TxHash)
	require.True(t, log.rows[1].Refund)
}

func TestOffChainSettler(t *testing.T) {
	book := &recordingBook{}
	settler := NewOffChainSettler(book)

	txHash, ledgerTx, err := settler.Settle(context.Background(), sampleEscrow(), false)
	require.NoError(t, err)
	require.Empty(t, txHash)
	require.Equal(t, "ltx_1", ledgerTx)
	require.Equal(t, "escrow:esc_1", book.inputs[0].DebitAccount)
	require.Empty(t, book.inputs[0].ChainTxHash)
}
