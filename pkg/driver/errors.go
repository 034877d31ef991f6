package driver

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// FailureKind discriminates the DriverFailure taxonomy of the kernel's
// error-handling design.
type FailureKind int

const (
	DecodeError FailureKind = iota
	UnexpectedEOF
	ProtocolViolation
	AgencyViolation
	HandshakeError
	InvalidServerSelection
	NotRecognisedVersion
	Cancelled
)

func (k FailureKind) String() string {
	switch k {
	case DecodeError:
		return "DecodeError"
	case UnexpectedEOF:
		return "UnexpectedEOF"
	case ProtocolViolation:
		return "ProtocolViolation"
	case AgencyViolation:
		return "AgencyViolation"
	case HandshakeError:
		return "HandshakeError"
	case InvalidServerSelection:
		return "InvalidServerSelection"
	case NotRecognisedVersion:
		return "NotRecognisedVersion"
	case Cancelled:
		return "Cancelled"
	default:
		return "UnknownFailure"
	}
}

// Failure is the error type for every failure the driver detects
// itself. It carries a Kind from the taxonomy above and the State the
// driver was in at the time, plus an optional wrapped cause. Errors
// returned by a peer's Effect or Await/Collect continuation, or by the
// codec's Encode, are passed back from Run as they are, not wrapped in
// a Failure.
type Failure struct {
	Kind  FailureKind
	State interface{}
	cause error
}

func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("driver: %s: %v", f.Kind, f.cause)
	}
	return fmt.Sprintf("driver: %s", f.Kind)
}

// Unwrap lets callers use errors.Is/errors.As against the wrapped
// cause, e.g. a codec.ErrDecode sentinel.
func (f *Failure) Unwrap() error {
	return f.cause
}

// newFailure builds a Failure, wrapping cause (if any) with
// pkg/errors so a stack trace is attached at the point a low-level I/O
// or decode error is promoted into the driver's own taxonomy.
func newFailure(kind FailureKind, state interface{}, cause error) *Failure {
	var wrapped error
	if cause != nil {
		wrapped = pkgerrors.Wrap(cause, kind.String())
	}
	return &Failure{Kind: kind, State: state, cause: wrapped}
}
