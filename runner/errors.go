package runner

import (
	"errors"
	"fmt"
)

// Sentinel errors for session operations.
var (
	// ErrNotRun indicates a result was accessed before its command was flushed.
	ErrNotRun = errors.New("command has not been run")

	// ErrBatchOnly indicates a batch-only operation on an eager session.
	ErrBatchOnly = errors.New("operation is available in batch mode only")

	// ErrStarted indicates a setting that is only valid before the process starts.
	ErrStarted = errors.New("process already started")

	// ErrHeadAfterDrain indicates a head insertion after blocks were flushed.
	ErrHeadAfterDrain = errors.New("cannot insert before commands already flushed")

	// ErrClosed indicates the session was closed before the result was read.
	ErrClosed = errors.New("session closed")

	// ErrStreamBroken indicates an earlier block failed to frame the output.
	ErrStreamBroken = errors.New("output stream broken by an earlier command")

	// ErrTruncated indicates the output ended before a block's terminal line.
	ErrTruncated = errors.New("output ended before command completed")

	// ErrInputClosed indicates a second flush to a one-shot tool.
	ErrInputClosed = errors.New("tool input already closed")

	// ErrUnimplemented indicates a protocol command that is not supported.
	ErrUnimplemented = errors.New("command not implemented")

	// ErrTooMany indicates a parameter list longer than the tool accepts.
	ErrTooMany = errors.New("too many values")

	// ErrMissingField indicates an expected field absent from the output.
	ErrMissingField = errors.New("expected field missing from output")

	// ErrUnbound indicates a processor that was never queued.
	ErrUnbound = errors.New("processor not queued on a session")
)

// Kind classifies a runner error.
type Kind int

// Error kinds.
const (
	KindSpawn Kind = iota + 1
	KindProtocol
	KindUsage
	KindUnimplemented
	KindClosed
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSpawn:
		return "spawn error"
	case KindProtocol:
		return "protocol error"
	case KindUsage:
		return "usage error"
	case KindUnimplemented:
		return "unimplemented"
	case KindClosed:
		return "closed"
	default:
		return "error"
	}
}

// Error wraps runner errors with their kind and operation.
type Error struct {
	Kind Kind   // Error class
	Op   string // Operation that failed ("find", "run", "start")
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new runner error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// UsageError reports an operation invoked incorrectly. It is raised before
// any I/O.
func UsageError(op string, err error) *Error {
	return NewError(KindUsage, op, err)
}

// ProtocolError reports output that does not have the expected shape, or
// a tool that stopped reading its input.
func ProtocolError(op string, err error) *Error {
	return NewError(KindProtocol, op, err)
}

// MissingField reports a required field absent from a result block.
func MissingField(op, field string) *Error {
	return ProtocolError(op, fmt.Errorf("%w: %s", ErrMissingField, field))
}

// Unimplemented reports a protocol command that is not supported.
func Unimplemented(op string) *Error {
	return NewError(KindUnimplemented, op, ErrUnimplemented)
}

func kindOf(err error) Kind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return 0
}

// IsUsage reports whether err is a usage error.
func IsUsage(err error) bool {
	return kindOf(err) == KindUsage
}

// IsProtocol reports whether err is a protocol error.
func IsProtocol(err error) bool {
	return kindOf(err) == KindProtocol
}

// IsSpawn reports whether the child process failed to start.
func IsSpawn(err error) bool {
	return kindOf(err) == KindSpawn
}

// IsUnimplemented reports whether err is an unimplemented command.
func IsUnimplemented(err error) bool {
	return kindOf(err) == KindUnimplemented || errors.Is(err, ErrUnimplemented)
}

// IsClosed reports whether err was caused by closing the session.
func IsClosed(err error) bool {
	return kindOf(err) == KindClosed || errors.Is(err, ErrClosed)
}
