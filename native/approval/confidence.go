// Package approval scores how confident the platform is in dispatching a
// payment without a human, and runs the approval workflows opened when that
// confidence is too low.
package approval

import "math"

// Tier is the routing destination for a scored payment.
type Tier string

const (
	TierAutoApprove     Tier = "AUTO_APPROVE"
	TierManagerApproval Tier = "MANAGER_APPROVAL"
	TierMultiSig        Tier = "MULTI_SIG"
	TierHumanRewrite    Tier = "HUMAN_REWRITE"
)

// KYALevel is the Know-Your-Agent verification tier of the paying agent.
type KYALevel string

const (
	KYANone     KYALevel = "none"
	KYABasic    KYALevel = "basic"
	KYAVerified KYALevel = "verified"
	KYAAttested KYALevel = "attested"
)

// kyaFactor caps at 0.30 for a fully attested agent.
func kyaFactor(level KYALevel) float64 {
	switch level {
	case KYAAttested:
		return 0.30
	case KYAVerified:
		return 0.22
	case KYABasic:
		return 0.12
	default:
		return 0
	}
}

// Inputs are the raw signals the router combines.
type Inputs struct {
	KYA KYALevel
	// AmountMinor is the requested spend; LimitTotalMinor and SpentTotalMinor
	// give budget headroom.
	AmountMinor     int64
	LimitTotalMinor int64
	SpentTotalMinor int64
	// MerchantTxCount is how many settled payments this agent has with the
	// merchant.
	MerchantTxCount int
	// AmountMean and AmountStddev describe the agent's historical spend in
	// minor units; zero stddev disables the normalcy term.
	AmountMean   float64
	AmountStddev float64
	// HourOfDay is the local submission hour, 0-23.
	HourOfDay int
	// ViolationCount is recent compliance violations for the agent.
	ViolationCount int
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// budgetFactor caps at 0.25 when the payment leaves most of the budget
// untouched.
func budgetFactor(in Inputs) float64 {
	if in.LimitTotalMinor <= 0 {
		return 0.10
	}
	remaining := in.LimitTotalMinor - in.SpentTotalMinor - in.AmountMinor
	headroom := float64(remaining) / float64(in.LimitTotalMinor)
	return clamp(headroom, 0, 1) * 0.25
}

// merchantFactor caps at 0.20 after ten successful transactions with the
// merchant.
func merchantFactor(count int) float64 {
	if count <= 0 {
		return 0
	}
	return clamp(float64(count)/10, 0, 1) * 0.20
}

// normalcyFactor caps at 0.15 for amounts at the agent's historical mean and
// decays with the z-score.
func normalcyFactor(in Inputs) float64 {
	if in.AmountStddev <= 0 {
		return 0.05
	}
	z := math.Abs(float64(in.AmountMinor)-in.AmountMean) / in.AmountStddev
	return clamp(1-z/3, 0, 1) * 0.15
}

// timeFactor caps at 0.05 during business hours.
func timeFactor(hour int) float64 {
	if hour >= 8 && hour <= 20 {
		return 0.05
	}
	return 0.01
}

// complianceFactor caps at 0.05 for a clean history.
func complianceFactor(violations int) float64 {
	if violations <= 0 {
		return 0.05
	}
	return clamp(0.05-0.02*float64(violations), 0, 0.05)
}

// Confidence combines the six bounded factors, calibrates the raw sum through
// a sigmoid and clamps to [0,1].
func Confidence(in Inputs) float64 {
	raw := kyaFactor(in.KYA) +
		budgetFactor(in) +
		merchantFactor(in.MerchantTxCount) +
		normalcyFactor(in) +
		timeFactor(in.HourOfDay) +
		complianceFactor(in.ViolationCount)
	calibrated := 1 / (1 + math.Exp(-5*(raw+0.03)))
	return clamp(calibrated, 0, 1)
}

// Route maps a confidence score to its approval tier.
func Route(confidence float64) Tier {
	switch {
	case confidence >= 0.95:
		return TierAutoApprove
	case confidence >= 0.85:
		return TierManagerApproval
	case confidence >= 0.70:
		return TierMultiSig
	default:
		return TierHumanRewrite
	}
}

// Quorum returns how many distinct approvals a tier requires before a held
// payment may proceed.
func (t Tier) Quorum() int {
	switch t {
	case TierAutoApprove:
		return 0
	case TierMultiSig:
		return 2
	default:
		return 1
	}
}
