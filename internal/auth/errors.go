package auth

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/cardvault/walletcore/internal/host"
)

// Code classifies engine failures. None of them are retried by the engine;
// recovery, if any, is a fresh initiate from the host.
type Code int

const (
	CodeUnknown Code = iota
	// CodeInvalidArguments is a null or malformed input.
	CodeInvalidArguments
	// CodeInvalidState is a request arriving out of order for the state.
	CodeInvalidState
	// CodeDecodingFailed is an inbound message that does not parse.
	CodeDecodingFailed
	// CodeEncodingFailed is a response that cannot be serialized or sent.
	CodeEncodingFailed
	// CodeUnknownRequest is a parsed query outside the auth-card family.
	CodeUnknownRequest
	// CodeAbortOccurred is a user cancel or inactivity timeout; the only
	// code treated as a normal exit.
	CodeAbortOccurred
	// CodeOperationFailed is a hardware or crypto step that failed.
	CodeOperationFailed
)

func (c Code) String() string {
	switch c {
	case CodeInvalidArguments:
		return "INVALID_ARGUMENTS"
	case CodeInvalidState:
		return "INVALID_STATE"
	case CodeDecodingFailed:
		return "DECODING_FAILED"
	case CodeEncodingFailed:
		return "ENCODING_FAILED"
	case CodeUnknownRequest:
		return "UNKNOWN_REQUEST"
	case CodeAbortOccurred:
		return "ABORT_OCCURRED"
	case CodeOperationFailed:
		return "OPERATION_FAILED"
	default:
		return "UNKNOWN"
	}
}

// FlowError is an engine failure with its classification and the operation
// that raised it.
type FlowError struct {
	Code Code
	Op   string
	Err  error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Op)
}

func (e *FlowError) Unwrap() error { return e.Err }

func newFlowError(code Code, op string) *FlowError {
	return &FlowError{Code: code, Op: op}
}

func wrapFlowError(code Code, op string, err error) *FlowError {
	return &FlowError{Code: code, Op: op, Err: err}
}

// CodeOf extracts the classification from an error chain.
func CodeOf(err error) Code {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeUnknown
}

// wireErrorCode maps adapter failures onto the engine taxonomy.
func wireErrorCode(err error) Code {
	switch {
	case errors.Is(err, host.ErrDecodingFailed):
		return CodeDecodingFailed
	case errors.Is(err, host.ErrUnknownRequest):
		return CodeUnknownRequest
	case errors.Is(err, host.ErrInvalidArguments):
		return CodeInvalidArguments
	case errors.Is(err, host.ErrEncodingFailed):
		return CodeEncodingFailed
	default:
		return CodeEncodingFailed
	}
}
