package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a machine-readable error category. Codes are part of the
// external contract: transports map them to status codes via StatusOf and
// callers branch on them, so values must remain stable.
type Code string

const (
	CodeValidation          Code = "validation_error"
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
	CodeMandateExpired      Code = "mandate_expired"
	CodeChainLinkage        Code = "chain_linkage_error"
	CodePolicyDenied        Code = "policy_denied"
	CodeComplianceDenied    Code = "compliance_denied"
	CodeReplayDetected      Code = "replay_detected"
	CodeTransactionFailed   Code = "transaction_failed"
	CodeUpstreamUnavailable Code = "upstream_unavailable"
	CodeTimeout             Code = "timeout"
	CodeUnauthorized        Code = "unauthorized"
	CodeInternal            Code = "internal_error"
)

// statusTable is the single code to transport-status mapping. The gateway must
// not translate codes anywhere else.
var statusTable = map[Code]int{
	CodeValidation:          http.StatusBadRequest,
	CodeNotFound:            http.StatusNotFound,
	CodeConflict:            http.StatusConflict,
	CodeMandateExpired:      http.StatusBadRequest,
	CodeChainLinkage:        http.StatusBadRequest,
	CodePolicyDenied:        http.StatusForbidden,
	CodeComplianceDenied:    http.StatusUnavailableForLegalReasons,
	CodeReplayDetected:      http.StatusConflict,
	CodeTransactionFailed:   http.StatusBadGateway,
	CodeUpstreamUnavailable: http.StatusServiceUnavailable,
	CodeTimeout:             http.StatusGatewayTimeout,
	CodeUnauthorized:        http.StatusUnauthorized,
	CodeInternal:            http.StatusInternalServerError,
}

// Error is the platform error type. Every failure that crosses a package
// boundary carries a code plus a human-readable message; Details holds
// machine-readable context (reason codes, chain names, rule identifiers).
type Error struct {
	Code    Code
	Message string
	Details map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.cause }

// WithDetail returns the error with an added detail entry. The receiver is
// returned for chaining; details are never used for equality.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string, 1)
	}
	e.Details[key] = value
	return e
}

// New constructs an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while preserving the cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the platform code from err, defaulting to internal_error for
// untyped failures so nothing sensitive leaks through the transport.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeInternal
}

// StatusOf maps err to its transport status using the single status table.
func StatusOf(err error) int {
	if status, ok := statusTable[CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool { return CodeOf(err) == code }

// Validation builds a 400-class input error.
func Validation(message string) *Error { return New(CodeValidation, message) }

// NotFound reports a missing entity by kind and identifier.
func NotFound(kind, id string) *Error {
	return Newf(CodeNotFound, "%s %s not found", kind, id).WithDetail("resource", kind).WithDetail("id", id)
}

// Conflict reports an illegal state transition or duplicate operation.
func Conflict(message string) *Error { return New(CodeConflict, message) }

// PolicyDenied reports a spending-policy rejection with its stable reason code.
func PolicyDenied(reason string) *Error {
	return Newf(CodePolicyDenied, "policy denied: %s", reason).WithDetail("reason", reason)
}

// ComplianceDenied reports a compliance preflight rejection.
func ComplianceDenied(reason, provider, ruleID string) *Error {
	err := Newf(CodeComplianceDenied, "compliance denied: %s", reason).WithDetail("reason", reason)
	if provider != "" {
		err = err.WithDetail("provider", provider)
	}
	if ruleID != "" {
		err = err.WithDetail("rule_id", ruleID)
	}
	return err
}

// ReplayDetected reports a duplicate mandate submission.
func ReplayDetected(mandateID string) *Error {
	return Newf(CodeReplayDetected, "mandate %s already executed", mandateID).WithDetail("mandate_id", mandateID)
}

// TransactionFailed reports a chain executor failure with the raw reason.
func TransactionFailed(chain, reason string) *Error {
	return Newf(CodeTransactionFailed, "transaction failed on %s: %s", chain, reason).
		WithDetail("chain", chain).WithDetail("reason", reason)
}
