package gormstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"

	"sardis/native/approval"
	"sardis/native/escrow"
	"sardis/native/ledger"
	"sardis/native/payments"
	"sardis/native/policy"
	"sardis/native/wallet"
	"sardis/services/webhookd"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())))
	require.NoError(t, err)
	return store
}

func TestWalletRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	w := &wallet.Wallet{
		WalletID:    "wallet_abc",
		AgentID:     "agent_1",
		AccountType: wallet.AccountMPC,
		Addresses: map[string]string{
			"base":     "0x1111111111111111111111111111111111111111",
			"ethereum": "0x2222222222222222222222222222222222222222",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.PutWallet(ctx, w))

	got, err := store.GetWallet(ctx, "wallet_abc")
	require.NoError(t, err)
	require.Equal(t, w.Addresses, got.Addresses)
	require.Equal(t, wallet.AccountMPC, got.AccountType)

	w.Frozen = true
	w.FreezeReason = "compliance review"
	require.NoError(t, store.PutWallet(ctx, w))

	got, err = store.GetWallet(ctx, "wallet_abc")
	require.NoError(t, err)
	require.True(t, got.Frozen)
	require.Equal(t, "compliance review", got.FreezeReason)

	mine, err := store.WalletsForAgent(ctx, "agent_1")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	_, err = store.GetWallet(ctx, "wallet_missing")
	require.Error(t, err)
}

func TestBalanceUpsert(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	bal, err := store.GetBalance(ctx, "wallet_abc", "base", "USDC")
	require.NoError(t, err)
	require.Zero(t, bal)

	require.NoError(t, store.SetBalance(ctx, "wallet_abc", "base", "USDC", 1_000_000))
	require.NoError(t, store.SetBalance(ctx, "wallet_abc", "base", "USDC", 750_000))

	bal, err = store.GetBalance(ctx, "wallet_abc", "base", "USDC")
	require.NoError(t, err)
	require.Equal(t, int64(750_000), bal)
}

func TestPolicyDocumentAndSpendWindows(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	p := &policy.SpendingPolicy{
		PolicyID:      "pol_1",
		AgentID:       "agent_1",
		LimitPerTx:    500_000_000,
		LimitTotal:    10_000_000_000,
		AllowedScopes: []string{"shopping"},
		Daily:         &policy.TimeWindowLimit{WindowType: policy.WindowDaily, LimitAmount: 800_000_000},
	}
	require.NoError(t, store.PutPolicy(ctx, "wallet_abc", p))

	got, err := store.PolicyForWallet(ctx, "wallet_abc")
	require.NoError(t, err)
	require.Equal(t, "pol_1", got.PolicyID)
	require.Equal(t, int64(500_000_000), got.LimitPerTx)
	require.NotNil(t, got.Daily)
	require.Equal(t, policy.WindowDaily, got.Daily.WindowType)

	require.NoError(t, store.RecordSpend(ctx, "pol_1", 100, now.Add(-48*time.Hour)))
	require.NoError(t, store.RecordSpend(ctx, "pol_1", 250, now.Add(-time.Hour)))
	require.NoError(t, store.RecordSpend(ctx, "pol_other", 999, now))

	total, err := store.SpentTotal(ctx, "pol_1")
	require.NoError(t, err)
	require.Equal(t, int64(350), total)

	windowed, err := store.WindowSpent(ctx, "pol_1", policy.WindowDaily, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(250), windowed)
}

func TestPaymentOrderingAndReceipt(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		p := &payments.Payment{
			PaymentID: fmt.Sprintf("pay_%d", i),
			WalletID:  "wallet_abc",
			Chain:     "base",
			Token:     "USDC",
			Amount:    int64(100 * (i + 1)),
			Status:    payments.StatusSettled,
			Receipt:   &policy.Receipt{DecisionID: fmt.Sprintf("dec_%d", i), Decision: true},
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
			UpdatedAt: now.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.PutPayment(ctx, p))
	}

	got, err := store.GetPayment(ctx, "pay_1")
	require.NoError(t, err)
	require.NotNil(t, got.Receipt)
	require.Equal(t, "dec_1", got.Receipt.DecisionID)

	recent, err := store.PaymentsForWallet(ctx, "wallet_abc", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "pay_2", recent[0].PaymentID)
	require.Equal(t, "pay_1", recent[1].PaymentID)
}

func TestLedgerAppendAndRecency(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	book := ledger.New(store)

	first, err := book.AppendTransfer(ctx, ledger.TransferInput{
		DebitAccount:  "wallet:w1",
		CreditAccount: "merchant:m1",
		Amount:        500,
		Currency:      "USDC",
		Chain:         "base",
		Status:        ledger.StatusConfirmed,
	})
	require.NoError(t, err)

	second, err := book.AppendTransfer(ctx, ledger.TransferInput{
		DebitAccount:  "wallet:w1",
		CreditAccount: "merchant:m2",
		Amount:        700,
		Currency:      "USDC",
		Chain:         "base",
		Status:        ledger.StatusConfirmed,
	})
	require.NoError(t, err)

	pair, err := store.EntriesByTx(ctx, first)
	require.NoError(t, err)
	require.Len(t, pair, 2)
	require.NoError(t, ledger.CheckConservation(pair))

	recent, err := store.RecentEntries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, second, recent[0].TxID)
}

func TestEscrowQueries(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	e := &escrow.Escrow{
		EscrowID:     "esc_1",
		PayerAgentID: "agent_a",
		PayeeAgentID: "agent_b",
		Amount:       1_000,
		Token:        "USDC",
		Chain:        "base",
		State:        escrow.StateCreated,
		Metadata:     map[string]string{"order": "ord_9"},
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(7 * 24 * time.Hour),
	}
	require.NoError(t, store.EscrowPut(ctx, e))

	got, err := store.EscrowGet(ctx, "esc_1")
	require.NoError(t, err)
	require.Equal(t, "ord_9", got.Metadata["order"])

	created, err := store.EscrowsByState(ctx, escrow.StateCreated)
	require.NoError(t, err)
	require.Len(t, created, 1)

	mine, err := store.EscrowsForAgent(ctx, "agent_b")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	e.State = escrow.StateDelivered
	e.FundedAt = now.Add(time.Minute)
	e.FundingTxHash = "0xfund"
	e.DeliveryProof = "sha256:deadbeef"
	e.DeliveredAt = now.Add(2 * time.Minute)
	require.NoError(t, store.EscrowPut(ctx, e))

	got, err = store.EscrowGet(ctx, "esc_1")
	require.NoError(t, err)
	require.Equal(t, "sha256:deadbeef", got.DeliveryProof)
	require.Equal(t, e.FundedAt, got.FundedAt)
	require.Equal(t, e.DeliveredAt, got.DeliveredAt)
}

func TestSettlementRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	row := &escrow.Settlement{
		SettlementID: "settlement_1",
		EscrowID:     "esc_1",
		Type:         escrow.SettlementOnChain,
		TxHash:       "0xabc",
		LedgerTx:     "ltx_1",
		Amount:       1_000,
		Token:        "USDC",
		Chain:        "base",
		CreatedAt:    now,
	}
	require.NoError(t, store.SettlementPut(ctx, row))

	got, err := store.SettlementsForEscrow(ctx, "esc_1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, escrow.SettlementOnChain, got[0].Type)
	require.Equal(t, "0xabc", got[0].TxHash)

	none, err := store.SettlementsForEscrow(ctx, "esc_2")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestApprovalStatusTransitions(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	mgr := approval.NewManager(store)

	req, err := mgr.Open(ctx, "pay_1", approval.TierManagerApproval, 0.9, nil)
	require.NoError(t, err)

	pending, err := store.RequestsByStatus(ctx, approval.WorkflowPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = mgr.Approve(ctx, req.WorkflowID, "ops_1")
	require.NoError(t, err)

	got, err := store.GetRequest(ctx, req.WorkflowID)
	require.NoError(t, err)
	require.Equal(t, approval.WorkflowApproved, got.Status)
	require.Equal(t, []string{"ops_1"}, got.Approvals)
}

func TestWebhookCountersAndAttempts(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	sub, err := webhookd.NewSubscription(webhookd.CreateInput{
		URL:    "https://hooks.example.com/sardis",
		Secret: "0123456789abcdef0123456789abcdef",
		Events: []string{"payment.settled"},
	}, now)
	require.NoError(t, err)
	require.NoError(t, store.PutSubscription(ctx, sub))

	require.NoError(t, store.CountDelivery(ctx, sub.SubscriptionID, true, now))
	require.NoError(t, store.CountDelivery(ctx, sub.SubscriptionID, false, now.Add(time.Second)))
	require.Error(t, store.CountDelivery(ctx, "whsub_missing", true, now))

	got, err := store.GetSubscription(ctx, sub.SubscriptionID)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.TotalCount)
	require.Equal(t, int64(1), got.SuccessCount)
	require.Equal(t, int64(1), got.FailCount)
	require.Equal(t, []string{"payment.settled"}, got.Events)

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.RecordAttempt(ctx, &webhookd.DeliveryAttempt{
			AttemptID:      fmt.Sprintf("whatt_%d", i),
			SubscriptionID: sub.SubscriptionID,
			EventType:      "payment.settled",
			AttemptNumber:  i,
			AttemptedAt:    now.Add(time.Duration(i) * time.Second),
		}))
	}
	attempts, err := store.AttemptsForSubscription(ctx, sub.SubscriptionID, 2)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	require.Equal(t, 3, attempts[0].AttemptNumber)
}
