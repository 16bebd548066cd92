package payments

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sardis/errs"
	"sardis/native/identity"
	"sardis/native/mandate"
	"sardis/storage/replay"
)

type allowVerifier struct{ err error }

func (v allowVerifier) VerifyAgent(context.Context, string, string, []byte, []byte) error {
	return v.err
}

type registryVerifier struct{ reg *identity.Registry }

func (v registryVerifier) VerifyAgent(_ context.Context, agentID, domain string, message, signature []byte) error {
	_, err := v.reg.Verify(agentID, domain, message, signature)
	return err
}

func testChain(t *testing.T, now time.Time) *mandate.Chain {
	t.Helper()
	header := func(id, purpose string, expiry time.Time) mandate.Header {
		return mandate.Header{
			MandateID: id,
			Issuer:    "agent_1",
			Subject:   "agent_1",
			ExpiresAt: expiry,
			Nonce:     "nonce_" + id,
			Domain:    "pay.sardis.xyz",
			Purpose:   purpose,
		}
	}
	intent := mandate.IntentMandate{
		Header: header("mnd_intent", "shopping", now.Add(time.Hour)),
		Scope:  []string{"shopping"},
	}
	cart := mandate.CartMandate{
		Header:         header("mnd_cart", "checkout", now.Add(2*time.Hour)),
		LineItems:      []mandate.LineItem{{SKU: "sku-1", Name: "Widget", Quantity: 1, PriceMinor: 250_000_000}},
		MerchantDomain: "merchant.example",
		Currency:       "USDC",
		SubtotalMinor:  250_000_000,
	}
	payment := mandate.PaymentMandate{
		Header:              header("mnd_payment", "settle", now.Add(3*time.Hour)),
		Chain:               "base",
		Token:               "USDC",
		AmountMinor:         250_000_000,
		Destination:         "0x2222222222222222222222222222222222222222",
		TransactionModality: mandate.HumanNotPresent,
		WalletID:            "wallet_1",
	}
	chain, err := mandate.NewChain(intent, cart, payment, now)
	require.NoError(t, err)
	return chain
}

func newService(t *testing.T, verifier SignatureVerifier, now time.Time) (*Service, *fixture) {
	t.Helper()
	f := newFixture(t)
	svc := NewService(f.orch, verifier, replay.NewMemoryStore(),
		WithServiceClock(func() time.Time { return now }))
	return svc, f
}

func TestSubmitHappyPath(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	svc, _ := newService(t, allowVerifier{}, now)

	p, err := svc.Submit(context.Background(), testChain(t, now), Context{})
	require.NoError(t, err)
	require.Equal(t, StatusSettled, p.Status)
	require.Equal(t, "agent_1", p.AgentID)
	require.Equal(t, "merchant.example", p.MerchantID)
}

func TestSubmitRejectsReplay(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	svc, _ := newService(t, allowVerifier{}, now)
	ctx := context.Background()

	_, err := svc.Submit(ctx, testChain(t, now), Context{})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, testChain(t, now), Context{})
	require.Equal(t, errs.CodeReplayDetected, errs.CodeOf(err))
}

func TestSubmitRejectsBadSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	svc, f := newService(t, allowVerifier{err: identity.ErrNoValidKey}, now)

	_, err := svc.Submit(context.Background(), testChain(t, now), Context{})
	require.Equal(t, errs.CodeUnauthorized, errs.CodeOf(err))
	require.Zero(t, f.executor.calls)
}

func TestSubmitRejectsExpiredChain(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	svc, _ := newService(t, allowVerifier{}, now.Add(4*time.Hour))

	_, err := svc.Submit(context.Background(), testChain(t, now), Context{})
	require.Error(t, err)
}

func TestSubmitWithRegisteredKey(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	reg := identity.NewRegistry()
	_, err = reg.Register(identity.AgentIdentity{
		AgentID:   "agent_1",
		Algorithm: identity.AlgorithmEd25519,
		Domain:    "pay.sardis.xyz",
	}, pub)
	require.NoError(t, err)

	chain := testChain(t, now)
	payload, err := mandate.PaymentSigningPayload(chain.Payment)
	require.NoError(t, err)
	chain.Payment.Proof = ed25519.Sign(priv, payload)

	svc, _ := newService(t, registryVerifier{reg: reg}, now)
	p, err := svc.Submit(context.Background(), chain, Context{})
	require.NoError(t, err)
	require.Equal(t, StatusSettled, p.Status)

	// Tampering after signing invalidates the proof.
	tampered := testChain(t, now)
	tampered.Payment.Proof = chain.Payment.Proof
	tampered.Payment.AmountMinor = 100_000_000
	tampered.Cart.SubtotalMinor = 100_000_000
	_, err = svc.Submit(context.Background(), tampered, Context{})
	require.Equal(t, errs.CodeUnauthorized, errs.CodeOf(err))
}
