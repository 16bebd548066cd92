// Package policy implements the spending-policy engine: per-transaction and
// aggregate limits, time-window caps, merchant rules, MCC category blocks,
// scope checks, velocity control, and the approval-threshold signal. It also
// produces the Merkle-anchored attestation receipts that prove which policy
// version produced a decision.
package policy

import (
	"strings"
	"time"
)

// TrustLevel grades how much autonomy an agent has earned.
type TrustLevel string

const (
	TrustLow    TrustLevel = "low"
	TrustMedium TrustLevel = "medium"
	TrustHigh   TrustLevel = "high"
)

// WindowType selects a rolling spend window.
type WindowType string

const (
	WindowDaily   WindowType = "daily"
	WindowWeekly  WindowType = "weekly"
	WindowMonthly WindowType = "monthly"
)

// Duration returns the wall-clock length of the window.
func (w WindowType) Duration() time.Duration {
	switch w {
	case WindowDaily:
		return 24 * time.Hour
	case WindowWeekly:
		return 7 * 24 * time.Hour
	case WindowMonthly:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// TimeWindowLimit caps spend inside a rolling window. CurrentSpent and
// WindowStart are runtime counters and are excluded from attestation hashing.
type TimeWindowLimit struct {
	WindowType   WindowType `json:"window_type"`
	LimitAmount  int64      `json:"limit_amount"`
	CurrentSpent int64      `json:"-"`
	WindowStart  time.Time  `json:"-"`
}

// ResetIfExpired zeroes the counter when the window has elapsed. Every
// evaluation resets expired windows before reading them.
func (w *TimeWindowLimit) ResetIfExpired(now time.Time) {
	if w == nil {
		return
	}
	if w.WindowStart.IsZero() || !now.Before(w.WindowStart.Add(w.WindowType.Duration())) {
		w.WindowStart = now
		w.CurrentSpent = 0
	}
}

// RuleType distinguishes allow rules from deny rules.
type RuleType string

const (
	RuleAllow RuleType = "allow"
	RuleDeny  RuleType = "deny"
)

// MerchantRule matches a merchant by id and/or category. Matching is
// case-insensitive; deny rules always win; the presence of any allow rule
// switches the policy to allow-list semantics.
type MerchantRule struct {
	RuleType   RuleType   `json:"rule_type"`
	MerchantID string     `json:"merchant_id,omitempty"`
	Category   string     `json:"category,omitempty"`
	MaxPerTx   *int64     `json:"max_per_tx,omitempty"`
	DailyLimit *int64     `json:"daily_limit,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"-"`
}

// Matches reports whether the rule applies to the merchant context. A rule
// with both id and category set requires both to match; an expired rule never
// matches.
func (r MerchantRule) Matches(merchantID, category string, now time.Time) bool {
	if r.ExpiresAt != nil && !now.Before(*r.ExpiresAt) {
		return false
	}
	if r.MerchantID == "" && r.Category == "" {
		return false
	}
	if r.MerchantID != "" && !strings.EqualFold(r.MerchantID, merchantID) {
		return false
	}
	if r.Category != "" && !strings.EqualFold(r.Category, category) {
		return false
	}
	return true
}

// ScopeAll grants every scope when present in AllowedScopes.
const ScopeAll = "ALL"

// SpendingPolicy is the per-agent authorization envelope. Amounts are minor
// units of the policy's settlement token.
type SpendingPolicy struct {
	PolicyID   string     `json:"policy_id"`
	AgentID    string     `json:"agent_id"`
	TrustLevel TrustLevel `json:"trust_level"`

	LimitPerTx int64 `json:"limit_per_tx"`
	LimitTotal int64 `json:"limit_total"`
	SpentTotal int64 `json:"-"`

	Daily   *TimeWindowLimit `json:"daily,omitempty"`
	Weekly  *TimeWindowLimit `json:"weekly,omitempty"`
	Monthly *TimeWindowLimit `json:"monthly,omitempty"`

	MerchantRules             []MerchantRule `json:"merchant_rules,omitempty"`
	AllowedScopes             []string       `json:"allowed_scopes,omitempty"`
	BlockedMerchantCategories []string       `json:"blocked_merchant_categories,omitempty"`
	AllowedDestinations       []string       `json:"allowed_destinations,omitempty"`
	BlockedDestinations       []string       `json:"blocked_destinations,omitempty"`

	RequirePreauth    bool    `json:"require_preauth"`
	ApprovalThreshold int64   `json:"approval_threshold"`
	MaxDriftScore     float64 `json:"max_drift_score"`
	MaxHoldHours      int     `json:"max_hold_hours"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Clone returns a deep copy safe for callers to mutate.
func (p *SpendingPolicy) Clone() *SpendingPolicy {
	if p == nil {
		return nil
	}
	clone := *p
	cloneWindow := func(w *TimeWindowLimit) *TimeWindowLimit {
		if w == nil {
			return nil
		}
		c := *w
		return &c
	}
	clone.Daily = cloneWindow(p.Daily)
	clone.Weekly = cloneWindow(p.Weekly)
	clone.Monthly = cloneWindow(p.Monthly)
	clone.MerchantRules = append([]MerchantRule(nil), p.MerchantRules...)
	clone.AllowedScopes = append([]string(nil), p.AllowedScopes...)
	clone.BlockedMerchantCategories = append([]string(nil), p.BlockedMerchantCategories...)
	clone.AllowedDestinations = append([]string(nil), p.AllowedDestinations...)
	clone.BlockedDestinations = append([]string(nil), p.BlockedDestinations...)
	return &clone
}

// ScopeAllowed reports whether the scope is covered by the policy.
func (p *SpendingPolicy) ScopeAllowed(scope string) bool {
	for _, allowed := range p.AllowedScopes {
		if strings.EqualFold(allowed, ScopeAll) || strings.EqualFold(allowed, scope) {
			return true
		}
	}
	return false
}

// DestinationAllowed enforces the destination lists: blocked always wins, and
// a non-empty allow list requires membership. Settlement paths consult this
// because the engine's evaluate signature carries no destination.
func (p *SpendingPolicy) DestinationAllowed(destination string) bool {
	for _, blocked := range p.BlockedDestinations {
		if strings.EqualFold(blocked, destination) {
			return false
		}
	}
	if len(p.AllowedDestinations) == 0 {
		return true
	}
	for _, allowed := range p.AllowedDestinations {
		if strings.EqualFold(allowed, destination) {
			return true
		}
	}
	return false
}

// Windows returns the configured windows in a stable order.
func (p *SpendingPolicy) Windows() []*TimeWindowLimit {
	out := make([]*TimeWindowLimit, 0, 3)
	for _, w := range []*TimeWindowLimit{p.Daily, p.Weekly, p.Monthly} {
		if w != nil {
			out = append(out, w)
		}
	}
	return out
}

// RecordSpend updates the in-memory counters after a successful payment.
// Deployments using a DB-authoritative state port update through the port in
// the same serialized transaction as the check instead.
func (p *SpendingPolicy) RecordSpend(amount int64, now time.Time) {
	if amount <= 0 {
		return
	}
	p.SpentTotal += amount
	for _, w := range p.Windows() {
		w.ResetIfExpired(now)
		w.CurrentSpent += amount
	}
	p.UpdatedAt = now
}
