package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Stable reason codes returned by Evaluate. These are part of the external
// contract; never rename them.
const (
	ReasonApproved            = "approved"
	ReasonRequiresApproval    = "requires_approval"
	ReasonInvalidAmount       = "invalid_amount"
	ReasonScopeNotAllowed     = "scope_not_allowed"
	ReasonMCCBlocked          = "mcc_blocked"
	ReasonPerTransactionLimit = "per_transaction_limit"
	ReasonVelocityExceeded    = "velocity_exceeded"
	ReasonTotalLimitExceeded  = "total_limit_exceeded"
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonMerchantDenied      = "merchant_denied"
	ReasonNotAllowlisted      = "merchant_not_allowlisted"
	ReasonMerchantRuleLimit   = "merchant_rule_limit"
	ReasonDriftScoreExceeded  = "drift_score_exceeded"
)

// WindowReason returns the reason code for an exhausted window.
func WindowReason(w WindowType) string { return string(w) + "_limit_exceeded" }

// BalancePort reads the on-chain balance of a wallet through the RPC layer.
type BalancePort interface {
	GetBalance(ctx context.Context, walletID, chain, token string) (int64, error)
}

// StatePort provides DB-authoritative spend counters. When present it is the
// source of truth for total and window spend; the in-memory counters on the
// policy are only a fallback.
type StatePort interface {
	SpentTotal(ctx context.Context, policyID string) (int64, error)
	WindowSpent(ctx context.Context, policyID string, window WindowType, start time.Time) (int64, error)
	RecordSpend(ctx context.Context, policyID string, amount int64, at time.Time) error
}

// Decision is the engine verdict. Allowed with ReasonRequiresApproval is a
// signal, not a denial: consumers that want a manual pause must check Reason
// before dispatching.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Input carries everything one evaluation consumes. Optional ports may be nil.
type Input struct {
	WalletID         string
	AmountMinor      int64
	FeeMinor         int64
	Chain            string
	Token            string
	MerchantID       string
	MerchantCategory string
	MCC              string
	Scope            string
	DriftScore       *float64
	Balance          BalancePort
	State            StatePort
}

// VelocityMode selects whether rapid-fire detection denies or only observes.
type VelocityMode string

const (
	VelocityEnforce VelocityMode = "enforce"
	VelocityObserve VelocityMode = "observe"
)

// Engine evaluates spending policies. Construct one per process root.
type Engine struct {
	mcc            *MCCRegistry
	velocityMode   VelocityMode
	velocityLimit  int
	velocityWindow time.Duration
	nowFn          func() time.Time

	mu       sync.Mutex
	attempts map[string][]time.Time

	// observed velocity breaches in observe mode, for metrics scraping
	velocityObserved func(agentID string)
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithMCCRegistry overrides the default MCC registry.
func WithMCCRegistry(r *MCCRegistry) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.mcc = r
		}
	}
}

// WithVelocity configures rapid-fire detection: at most limit evaluations per
// agent inside window.
func WithVelocity(limit int, window time.Duration, mode VelocityMode) EngineOption {
	return func(e *Engine) {
		if limit > 0 {
			e.velocityLimit = limit
		}
		if window > 0 {
			e.velocityWindow = window
		}
		if mode == VelocityEnforce || mode == VelocityObserve {
			e.velocityMode = mode
		}
	}
}

// WithVelocityObserver registers a callback fired when observe-mode velocity
// breaches occur.
func WithVelocityObserver(fn func(agentID string)) EngineOption {
	return func(e *Engine) { e.velocityObserved = fn }
}

// WithEngineClock overrides the time source, for tests.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.nowFn = now
		}
	}
}

// NewEngine constructs a policy engine with velocity enforcement of 10
// evaluations per minute by default.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		mcc:            NewMCCRegistry(),
		velocityMode:   VelocityEnforce,
		velocityLimit:  10,
		velocityWindow: time.Minute,
		nowFn:          time.Now,
		attempts:       make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the ordered checks and short-circuits on the first failure.
// Identical inputs yield identical decisions; an error is returned only when a
// port call fails, never for a policy verdict.
func (e *Engine) Evaluate(ctx context.Context, p *SpendingPolicy, in Input) (Decision, error) {
	if p == nil {
		return Decision{}, fmt.Errorf("policy: nil policy")
	}
	now := e.nowFn()

	// 1. Amount sanity.
	if in.AmountMinor <= 0 || in.FeeMinor < 0 {
		return Decision{Reason: ReasonInvalidAmount}, nil
	}

	// 2. Scope.
	if !p.ScopeAllowed(in.Scope) {
		return Decision{Reason: ReasonScopeNotAllowed}, nil
	}

	// 3. MCC category blocks.
	if mcc := strings.TrimSpace(in.MCC); mcc != "" {
		if entry, ok := e.mcc.Lookup(mcc); ok {
			if entry.DefaultBlocked || categoryBlocked(p, entry.Category) {
				return Decision{Reason: ReasonMCCBlocked}, nil
			}
		}
	}

	// 4. Per-transaction limit. Fee inclusion is a required contract.
	if p.LimitPerTx > 0 && in.AmountMinor+in.FeeMinor > p.LimitPerTx {
		return Decision{Reason: ReasonPerTransactionLimit}, nil
	}

	// 5. Velocity.
	if !e.admitVelocity(p.AgentID, now) {
		if e.velocityMode == VelocityEnforce {
			return Decision{Reason: ReasonVelocityExceeded}, nil
		}
		if e.velocityObserved != nil {
			e.velocityObserved(p.AgentID)
		}
	}

	// 6. Total and window limits.
	if decision, err := e.checkAggregates(ctx, p, in, now); err != nil {
		return Decision{}, err
	} else if !decision.Allowed {
		return decision, nil
	}

	// 7. On-chain balance.
	if in.Balance != nil {
		balance, err := in.Balance.GetBalance(ctx, in.WalletID, in.Chain, in.Token)
		if err != nil {
			return Decision{}, fmt.Errorf("policy: balance lookup: %w", err)
		}
		if balance < in.AmountMinor+in.FeeMinor {
			return Decision{Reason: ReasonInsufficientBalance}, nil
		}
	}

	// 8. Merchant rules.
	if decision := evaluateMerchantRules(p, in, now); !decision.Allowed {
		return decision, nil
	}

	// 9. Drift score.
	if in.DriftScore != nil && p.MaxDriftScore > 0 && *in.DriftScore > p.MaxDriftScore {
		return Decision{Reason: ReasonDriftScoreExceeded}, nil
	}

	// 10. Approval threshold: allowed, flagged.
	if p.ApprovalThreshold > 0 && in.AmountMinor > p.ApprovalThreshold {
		return Decision{Allowed: true, Reason: ReasonRequiresApproval}, nil
	}

	return Decision{Allowed: true, Reason: ReasonApproved}, nil
}

func categoryBlocked(p *SpendingPolicy, category string) bool {
	for _, blocked := range p.BlockedMerchantCategories {
		if strings.EqualFold(blocked, category) {
			return true
		}
	}
	return false
}

func (e *Engine) checkAggregates(ctx context.Context, p *SpendingPolicy, in Input, now time.Time) (Decision, error) {
	spend := in.AmountMinor

	spentTotal := p.SpentTotal
	if in.State != nil {
		dbTotal, err := in.State.SpentTotal(ctx, p.PolicyID)
		if err != nil {
			return Decision{}, fmt.Errorf("policy: spent total: %w", err)
		}
		spentTotal = dbTotal
	}
	if p.LimitTotal > 0 && spentTotal+spend > p.LimitTotal {
		return Decision{Reason: ReasonTotalLimitExceeded}, nil
	}

	for _, w := range p.Windows() {
		w.ResetIfExpired(now)
		current := w.CurrentSpent
		if in.State != nil {
			dbSpent, err := in.State.WindowSpent(ctx, p.PolicyID, w.WindowType, w.WindowStart)
			if err != nil {
				return Decision{}, fmt.Errorf("policy: %s window spent: %w", w.WindowType, err)
			}
			current = dbSpent
		}
		if w.LimitAmount > 0 && current+spend > w.LimitAmount {
			return Decision{Reason: WindowReason(w.WindowType)}, nil
		}
	}
	return Decision{Allowed: true}, nil
}

func evaluateMerchantRules(p *SpendingPolicy, in Input, now time.Time) Decision {
	if in.MerchantID == "" && in.MerchantCategory == "" {
		return Decision{Allowed: true}
	}
	hasAllow := false
	var matchedAllow *MerchantRule
	for i := range p.MerchantRules {
		rule := &p.MerchantRules[i]
		if rule.RuleType == RuleAllow {
			hasAllow = true
		}
		if !rule.Matches(in.MerchantID, in.MerchantCategory, now) {
			continue
		}
		if rule.RuleType == RuleDeny {
			return Decision{Reason: ReasonMerchantDenied}
		}
		if matchedAllow == nil {
			matchedAllow = rule
		}
	}
	if hasAllow {
		if matchedAllow == nil {
			return Decision{Reason: ReasonNotAllowlisted}
		}
		if matchedAllow.MaxPerTx != nil && in.AmountMinor+in.FeeMinor > *matchedAllow.MaxPerTx {
			return Decision{Reason: ReasonMerchantRuleLimit}
		}
	}
	return Decision{Allowed: true}
}

// admitVelocity records an attempt and reports whether the agent is under the
// configured rate. The window slides; stale attempts are pruned on every call.
func (e *Engine) admitVelocity(agentID string, now time.Time) bool {
	if e.velocityLimit <= 0 || agentID == "" {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cutoff := now.Add(-e.velocityWindow)
	kept := e.attempts[agentID][:0]
	for _, at := range e.attempts[agentID] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) >= e.velocityLimit {
		e.attempts[agentID] = kept
		return false
	}
	e.attempts[agentID] = append(kept, now)
	return true
}
