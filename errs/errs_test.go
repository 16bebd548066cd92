package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusTableCoversEveryCode(t *testing.T) {
	codes := []Code{
		CodeValidation, CodeNotFound, CodeConflict, CodeMandateExpired,
		CodeChainLinkage, CodePolicyDenied, CodeComplianceDenied,
		CodeReplayDetected, CodeTransactionFailed, CodeUpstreamUnavailable,
		CodeTimeout, CodeUnauthorized, CodeInternal,
	}
	for _, code := range codes {
		status, ok := statusTable[code]
		require.True(t, ok, "missing status mapping for %s", code)
		require.NotZero(t, status)
	}
}

func TestStatusOf(t *testing.T) {
	require.Equal(t, http.StatusForbidden, StatusOf(PolicyDenied("per_transaction_limit")))
	require.Equal(t, http.StatusConflict, StatusOf(ReplayDetected("mandate_1")))
	require.Equal(t, http.StatusUnavailableForLegalReasons, StatusOf(ComplianceDenied("sanctioned", "tester", "rule-9")))
	require.Equal(t, http.StatusBadGateway, StatusOf(TransactionFailed("base", "nonce too low")))
	require.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("plain failure")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodeUpstreamUnavailable, "rpc call", cause)
	require.ErrorIs(t, err, cause)
	require.Equal(t, CodeUpstreamUnavailable, CodeOf(err))

	wrapped := fmt.Errorf("outer: %w", err)
	require.Equal(t, CodeUpstreamUnavailable, CodeOf(wrapped))
	require.Equal(t, http.StatusServiceUnavailable, StatusOf(wrapped))
}

func TestDetails(t *testing.T) {
	err := TransactionFailed("base", "reverted")
	require.Equal(t, "base", err.Details["chain"])
	require.Equal(t, "reverted", err.Details["reason"])

	nf := NotFound("wallet", "wallet_123")
	require.Equal(t, "wallet", nf.Details["resource"])
	require.Equal(t, "wallet_123", nf.Details["id"])
}
