// Package fault defines the failure taxonomy surfaced to callers of the
// check-in engine. Callers branch on the reason to render distinct messages
// without inspecting wrapped internals.
package fault

import "errors"

type Reason string

const (
	ReasonTimeout          Reason = "timeout"
	ReasonConnectionFailed Reason = "connectionFailed"
	ReasonReadFailed       Reason = "readFailed"
	ReasonDuplicate        Reason = "duplicate"
	ReasonNotFound         Reason = "notFound"
)

var (
	// ErrTimeout means an operation hit its deadline before finishing. In
	// steady-state polling this is a normal outcome, not an error condition.
	ErrTimeout = errors.New("operation timed out")

	// ErrUnreachable means the remote ledger could not be contacted at all,
	// as opposed to contacting it and being rejected.
	ErrUnreachable = errors.New("remote ledger unreachable")

	// ErrNoTag means a hardware read finished without seeing a tag, either
	// because none was presented or because the read was cancelled.
	ErrNoTag = errors.New("no tag read")

	ErrDuplicate = errors.New("duplicate entry")
	ErrNotFound  = errors.New("not found")
)

// ReasonOf maps an error to its surface reason. Unknown errors report as a
// read failure, the most generic of the five.
func ReasonOf(err error) Reason {
	switch {
	case errors.Is(err, ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, ErrUnreachable):
		return ReasonConnectionFailed
	case errors.Is(err, ErrDuplicate):
		return ReasonDuplicate
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	default:
		return ReasonReadFailed
	}
}
