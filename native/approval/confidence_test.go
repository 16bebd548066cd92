package approval

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strongInputs() Inputs {
	return Inputs{
		KYA:             KYAAttested,
		AmountMinor:     50_000_000,
		LimitTotalMinor: 10_000_000_000,
		SpentTotalMinor: 0,
		MerchantTxCount: 20,
		AmountMean:      50_000_000,
		AmountStddev:    10_000_000,
		HourOfDay:       14,
		ViolationCount:  0,
	}
}

func TestConfidenceBounds(t *testing.T) {
	score := Confidence(strongInputs())
	require.Greater(t, score, 0.95)
	require.LessOrEqual(t, score, 1.0)

	weak := Inputs{
		KYA:             KYANone,
		AmountMinor:     9_000_000_000,
		LimitTotalMinor: 10_000_000_000,
		SpentTotalMinor: 900_000_000,
		HourOfDay:       3,
		ViolationCount:  5,
	}
	low := Confidence(weak)
	require.Less(t, low, 0.70)
	require.GreaterOrEqual(t, low, 0.0)
}

func TestConfidenceMonotoneInEachFactor(t *testing.T) {
	base := strongInputs()
	baseScore := Confidence(base)

	// Weakening any single factor never raises the score.
	downgrades := []func(*Inputs){
		func(in *Inputs) { in.KYA = KYABasic },
		func(in *Inputs) { in.SpentTotalMinor = in.LimitTotalMinor - in.AmountMinor },
		func(in *Inputs) { in.MerchantTxCount = 0 },
		func(in *Inputs) { in.AmountMinor = in.AmountMinor * 10 },
		func(in *Inputs) { in.HourOfDay = 3 },
		func(in *Inputs) { in.ViolationCount = 3 },
	}
	for i, downgrade := range downgrades {
		in := strongInputs()
		downgrade(&in)
		require.LessOrEqual(t, Confidence(in), baseScore, "factor %d", i)
	}

	// KYA ordering is strictly monotone.
	prev := -1.0
	for _, level := range []KYALevel{KYANone, KYABasic, KYAVerified, KYAAttested} {
		in := strongInputs()
		in.KYA = level
		score := Confidence(in)
		require.Greater(t, score, prev)
		prev = score
	}
}

func TestRouteThresholds(t *testing.T) {
	require.Equal(t, TierAutoApprove, Route(0.96))
	require.Equal(t, TierAutoApprove, Route(0.95))
	require.Equal(t, TierManagerApproval, Route(0.90))
	require.Equal(t, TierMultiSig, Route(0.75))
	require.Equal(t, TierHumanRewrite, Route(0.50))
}

func TestTierQuorum(t *testing.T) {
	require.Zero(t, TierAutoApprove.Quorum())
	require.Equal(t, 1, TierManagerApproval.Quorum())
	require.Equal(t, 2, TierMultiSig.Quorum())
	require.Equal(t, 1, TierHumanRewrite.Quorum())
}
