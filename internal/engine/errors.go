package engine

import (
	"fmt"
	"strings"
)

// FailureKind classifies execution failures.
type FailureKind int

const (
	// RpcError is a generic network-level rejection.
	RpcError FailureKind = iota
	// RelayRejected means the relay refused to build the transaction.
	RelayRejected
	// InsufficientFunds is recognized from known RPC phrasings and surfaced
	// as its own kind so callers can prompt for funding instead of retrying.
	InsufficientFunds
)

func (k FailureKind) String() string {
	switch k {
	case RelayRejected:
		return "relay_rejected"
	case InsufficientFunds:
		return "insufficient_funds"
	default:
		return "rpc_error"
	}
}

// ExecutionError is a failure past the validation stage. Never retried
// automatically; a submitted transaction with an unknown outcome must not be
// resubmitted.
type ExecutionError struct {
	Kind FailureKind
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed (%s): %v", e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ValidationError rejects bad trade parameters before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// insufficientFundsPhrases are the RPC error fragments that mean the wallet
// cannot cover the trade.
var insufficientFundsPhrases = []string{
	"insufficient funds",
	"insufficient lamports",
	"AccountNotFound",
	"record of a prior credit",
}

// classifySubmitError maps an RPC submission error to a failure kind.
func classifySubmitError(err error) *ExecutionError {
	msg := err.Error()
	for _, phrase := range insufficientFundsPhrases {
		if strings.Contains(msg, phrase) {
			return &ExecutionError{Kind: InsufficientFunds, Err: err}
		}
	}
	return &ExecutionError{Kind: RpcError, Err: err}
}
