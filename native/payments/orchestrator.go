package payments

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sardis/core/events"
	"sardis/errs"
	"sardis/native/ledger"
	"sardis/native/mandate"
	"sardis/native/policy"
	"sardis/observability"
	"sardis/retry"
)

type publisher interface {
	Publish(events.Emitter)
}

type noopPublisher struct{}

func (noopPublisher) Publish(events.Emitter) {}

// Context carries the evaluation inputs that live outside the mandate itself.
type Context struct {
	AgentID          string
	Scope            string
	MerchantID       string
	MerchantCategory string
	MCC              string
	FeeMinor         int64
	DriftScore       *float64
}

// Orchestrator drives one admitted payment through policy, compliance, chain
// dispatch and the ledger. Admission order is fixed; a stage failure stops
// the pipeline and records the payment as failed.
type Orchestrator struct {
	store       Store
	policies    PolicyStore
	engine      *policy.Engine
	balance     policy.BalancePort
	state       policy.StatePort
	compliance  CompliancePort
	executor    ChainExecutorPort
	book        LedgerPort
	wallets     WalletPort
	approvals   ApprovalPort
	emitter     publisher
	retryPolicy retry.Policy
	gateOnAppr  bool
	log         *slog.Logger
	tracer      trace.Tracer
	nowFn       func() time.Time
}

// OrchestratorOption customises an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithEmitter wires the event bus.
func WithEmitter(p publisher) OrchestratorOption {
	return func(o *Orchestrator) {
		if p != nil {
			o.emitter = p
		}
	}
}

// WithCompliance wires the screening provider. Without one, screening is
// skipped.
func WithCompliance(c CompliancePort) OrchestratorOption {
	return func(o *Orchestrator) { o.compliance = c }
}

// WithApprovals wires the human approval workflow opened when confidence
// routing escalates.
func WithApprovals(a ApprovalPort) OrchestratorOption {
	return func(o *Orchestrator) { o.approvals = a }
}

// RequireApprovalGate holds payments whose policy decision asks for approval
// instead of dispatching them immediately.
func RequireApprovalGate() OrchestratorOption {
	return func(o *Orchestrator) { o.gateOnAppr = true }
}

// WithRetryPolicy overrides the dispatch retry policy.
func WithRetryPolicy(p retry.Policy) OrchestratorOption {
	return func(o *Orchestrator) { o.retryPolicy = p }
}

// WithStatePort wires the authoritative spend aggregate backend.
func WithStatePort(s policy.StatePort) OrchestratorOption {
	return func(o *Orchestrator) { o.state = s }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// WithOrchestratorClock overrides the time source, for tests.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.nowFn = now
		}
	}
}

// NewOrchestrator wires the pipeline. store, policies, engine, balance,
// executor, book and wallets are required.
func NewOrchestrator(
	store Store,
	policies PolicyStore,
	engine *policy.Engine,
	balance policy.BalancePort,
	executor ChainExecutorPort,
	book LedgerPort,
	wallets WalletPort,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		policies:    policies,
		engine:      engine,
		balance:     balance,
		executor:    executor,
		book:        book,
		wallets:     wallets,
		emitter:     noopPublisher{},
		retryPolicy: retry.DefaultPolicy(),
		log:         slog.Default(),
		tracer:      otel.Tracer("sardis/payments"),
		nowFn:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs the pipeline for an already-verified payment mandate.
func (o *Orchestrator) Execute(ctx context.Context, pm *mandate.PaymentMandate, pctx Context) (*Payment, error) {
	ctx, span := o.tracer.Start(ctx, "payments.execute", trace.WithAttributes(
		attribute.String("wallet_id", pm.WalletID),
		attribute.String("chain", pm.Chain),
		attribute.String("token", pm.Token),
		attribute.Int64("amount", pm.AmountMinor),
	))
	defer span.End()

	if _, err := o.wallets.EnsureSpendable(ctx, pm.WalletID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	pol, err := o.policies.PolicyForWallet(ctx, pm.WalletID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	in := policy.Input{
		WalletID:         pm.WalletID,
		AmountMinor:      pm.AmountMinor,
		FeeMinor:         pctx.FeeMinor,
		Chain:            pm.Chain,
		Token:            pm.Token,
		MerchantID:       pctx.MerchantID,
		MerchantCategory: pctx.MerchantCategory,
		MCC:              pctx.MCC,
		Scope:            pctx.Scope,
		DriftScore:       pctx.DriftScore,
		Balance:          o.balance,
		State:            o.state,
	}
	decision, err := o.engine.Evaluate(ctx, pol, in)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	now := o.nowFn()
	receipt, err := policy.Attest(pol, in, decision, now)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("decision_id", receipt.DecisionID))

	payment := &Payment{
		PaymentID:   "pay_" + uuid.NewString(),
		WalletID:    pm.WalletID,
		AgentID:     pctx.AgentID,
		Chain:       pm.Chain,
		Token:       pm.Token,
		Amount:      pm.AmountMinor,
		FeeAmount:   pctx.FeeMinor,
		Destination: pm.Destination,
		MerchantID:  pctx.MerchantID,
		Status:      StatusPending,
		DecisionID:  receipt.DecisionID,
		Receipt:     receipt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if !decision.Allowed {
		payment.Status = StatusFailed
		payment.FailReason = decision.Reason
		if err := o.store.PutPayment(ctx, payment); err != nil {
			return nil, err
		}
		o.emitter.Publish(events.PolicyDenied{
			WalletID:   pm.WalletID,
			AgentID:    pctx.AgentID,
			Amount:     pm.AmountMinor,
			Token:      pm.Token,
			Reason:     decision.Reason,
			DecisionID: receipt.DecisionID,
		})
		o.log.Warn("payment denied by policy",
			"payment_id", payment.PaymentID,
			"wallet_id", pm.WalletID,
			"reason", decision.Reason,
		)
		observability.Payments().RecordDenial(decision.Reason)
		observability.Payments().RecordSubmission(string(payment.Status), pm.Chain, pm.Token)
		return payment.Clone(), errs.PolicyDenied(decision.Reason).WithDetail("decision_id", receipt.DecisionID)
	}

	if decision.Reason == policy.ReasonRequiresApproval && o.gateOnAppr && o.approvals != nil {
		payment.Status = StatusRequiresApproval
		if err := o.store.PutPayment(ctx, payment); err != nil {
			return nil, err
		}
		if _, err := o.approvals.RequestApproval(ctx, payment); err != nil {
			return nil, err
		}
		observability.Payments().RecordSubmission(string(payment.Status), pm.Chain, pm.Token)
		return payment.Clone(), nil
	}

	if o.compliance != nil {
		result, err := o.compliance.Screen(ctx, pm)
		if err != nil {
			span.RecordError(err)
			return nil, errs.Wrap(errs.CodeUpstreamUnavailable, "compliance screening", err)
		}
		if !result.Passed {
			payment.Status = StatusFailed
			payment.FailReason = result.Reason
			if err := o.store.PutPayment(ctx, payment); err != nil {
				return nil, err
			}
			return payment.Clone(), errs.ComplianceDenied(result.Reason, result.Provider, result.RuleID)
		}
	}

	if err := o.store.PutPayment(ctx, payment); err != nil {
		return nil, err
	}
	o.emitter.Publish(events.PaymentInitiated{
		PaymentID: payment.PaymentID,
		WalletID:  pm.WalletID,
		Chain:     pm.Chain,
		Token:     pm.Token,
		Amount:    pm.AmountMinor,
		To:        pm.Destination,
	})

	var receiptOut *ExecutionReceipt
	dispatchStart := time.Now()
	err = retry.Do(ctx, o.retryPolicy, func(ctx context.Context) error {
		var execErr error
		receiptOut, execErr = o.executor.ExecuteTransfer(ctx, pm)
		return execErr
	})
	observability.Payments().ObserveStage("dispatch", time.Since(dispatchStart))
	if err != nil {
		payment.Status = StatusFailed
		payment.FailReason = err.Error()
		payment.UpdatedAt = o.nowFn()
		if putErr := o.store.PutPayment(ctx, payment); putErr != nil {
			return nil, putErr
		}
		o.emitter.Publish(events.PaymentFailed{
			PaymentID: payment.PaymentID,
			WalletID:  pm.WalletID,
			Chain:     pm.Chain,
			Reason:    err.Error(),
		})
		span.RecordError(err)
		o.log.Error("payment dispatch failed",
			"payment_id", payment.PaymentID,
			"chain", pm.Chain,
			"err", err,
		)
		observability.Payments().RecordSubmission(string(payment.Status), pm.Chain, pm.Token)
		if errs.CodeOf(err) == errs.CodeInternal {
			return payment.Clone(), errs.Wrap(errs.CodeTransactionFailed, "dispatch", err)
		}
		return payment.Clone(), err
	}

	creditAccount := "external:" + pm.Destination
	if pctx.MerchantID != "" {
		creditAccount = "merchant:" + pctx.MerchantID
	}
	ledgerTx, err := o.book.AppendTransfer(ctx, ledger.TransferInput{
		DebitAccount:  "wallet:" + pm.WalletID,
		CreditAccount: creditAccount,
		Amount:        pm.AmountMinor,
		Currency:      pm.Token,
		Chain:         pm.Chain,
		ChainTxHash:   receiptOut.TxHash,
		Status:        ledger.StatusConfirmed,
		Metadata:      map[string]string{"payment_id": payment.PaymentID, "decision_id": receipt.DecisionID},
	})
	if err != nil {
		return nil, err
	}

	// Aggregates track the amount only; the fee counts against the per-tx
	// limit, not the running totals.
	if o.state != nil {
		if err := o.state.RecordSpend(ctx, pol.PolicyID, pm.AmountMinor, now); err != nil {
			o.log.Error("spend aggregate update failed", "policy_id", pol.PolicyID, "err", err)
		}
	}
	pol.RecordSpend(pm.AmountMinor, now)

	payment.Status = StatusSettled
	payment.TxHash = receiptOut.TxHash
	payment.LedgerTx = ledgerTx
	payment.UpdatedAt = o.nowFn()
	if err := o.store.PutPayment(ctx, payment); err != nil {
		return nil, err
	}
	o.emitter.Publish(events.PaymentSettled{
		PaymentID: payment.PaymentID,
		WalletID:  pm.WalletID,
		Chain:     pm.Chain,
		Token:     pm.Token,
		Amount:    pm.AmountMinor,
		TxHash:    receiptOut.TxHash,
		LedgerTx:  ledgerTx,
	})
	o.log.Info("payment settled",
		"payment_id", payment.PaymentID,
		"wallet_id", pm.WalletID,
		"tx_hash", receiptOut.TxHash,
	)
	observability.Payments().RecordSubmission(string(payment.Status), pm.Chain, pm.Token)
	return payment.Clone(), nil
}

// Get fetches a payment record.
func (o *Orchestrator) Get(ctx context.Context, paymentID string) (*Payment, error) {
	return o.store.GetPayment(ctx, paymentID)
}

// ListForWallet lists recent payments for a wallet.
func (o *Orchestrator) ListForWallet(ctx context.Context, walletID string, limit int) ([]*Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	return o.store.PaymentsForWallet(ctx, walletID, limit)
}
