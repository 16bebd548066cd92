package webhookd

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundtrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{"type":"payment.settled"}`)
	header := Sign("super-secret-value", now, payload)
	require.True(t, strings.HasPrefix(header, "t=1700000000,v1="))

	require.NoError(t, Verify("super-secret-value", header, payload, now, 0))
	require.NoError(t, Verify("super-secret-value", header, payload, now.Add(4*time.Minute), 0))
}

func TestVerifyRejectsOutsideTolerance(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{}`)
	header := Sign("super-secret-value", now, payload)

	err := Verify("super-secret-value", header, payload, now.Add(6*time.Minute), 0)
	require.ErrorIs(t, err, ErrTimestampOutside)

	// The verifier clock may also lag the sender.
	err = Verify("super-secret-value", header, payload, now.Add(-6*time.Minute), 0)
	require.ErrorIs(t, err, ErrTimestampOutside)
}

func TestVerifyRejectsTampering(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{"amount":100}`)
	header := Sign("super-secret-value", now, payload)

	err := Verify("super-secret-value", header, []byte(`{"amount":999}`), now, 0)
	require.ErrorIs(t, err, ErrSignatureMismatch)

	err = Verify("other-secret", header, payload, now, 0)
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerifyBindsTimestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{}`)
	header := Sign("super-secret-value", now, payload)

	// Replaying the v1 digest under a fresher t must fail: the HMAC covers t.
	_, v1, ok := strings.Cut(header, ",")
	require.True(t, ok)
	replayed := "t=1700000600," + v1
	err := Verify("super-secret-value", replayed, payload, now.Add(10*time.Minute), 0)
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerifyRejectsMalformedHeaders(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := []byte(`{}`)
	for _, header := range []string{
		"",
		"t=1700000000",
		"v1=abcdef",
		"t=not-a-number,v1=abcdef",
		"t=1700000000,v1=zzzz",
	} {
		err := Verify("super-secret-value", header, payload, now, 0)
		require.Error(t, err, "header %q", header)
		require.NotErrorIs(t, err, ErrSignatureMismatch)
	}
}
