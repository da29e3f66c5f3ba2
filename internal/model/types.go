// Package model defines the domain types for the tgen traffic generator.
//
// Key design decision: every worker is independent and owns its sockets
// exclusively, so the only values shared between goroutines are immutable
// (the payload) or handed over through channels (Result).
package model

import (
	"errors"
	"fmt"
	"syscall"
	"time"
)

// WorkerState represents the lifecycle state of a single per-port worker.
// The state transitions are:
//
//	Created → Listening → Connected → Streaming → Closed
//	Created → Closed    (socket/bind/listen failure)
//	Listening → Closed  (accept failure)
type WorkerState string

const (
	// StateCreated is the initial state before any socket exists.
	StateCreated WorkerState = "created"

	// StateListening indicates the listening socket is bound and waiting
	// for its single client.
	StateListening WorkerState = "listening"

	// StateConnected indicates the single client has been accepted.
	StateConnected WorkerState = "connected"

	// StateStreaming indicates the payload is being written to the client.
	StateStreaming WorkerState = "streaming"

	// StateClosed is the terminal state. Every socket the worker opened
	// has been released.
	StateClosed WorkerState = "closed"
)

// String returns the string representation of WorkerState.
func (s WorkerState) String() string {
	return string(s)
}

// IsValid checks whether the WorkerState value is one of the
// predefined states.
func (s WorkerState) IsValid() bool {
	switch s {
	case StateCreated, StateListening, StateConnected, StateStreaming, StateClosed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is allowed by the
// worker lifecycle. Any state may move to StateClosed.
func (s WorkerState) CanTransition(next WorkerState) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	if next == StateClosed {
		return s != StateClosed
	}
	switch s {
	case StateCreated:
		return next == StateListening
	case StateListening:
		return next == StateConnected
	case StateConnected:
		return next == StateStreaming
	default:
		return false
	}
}

// WorkerOp names the socket step a worker failed in.
type WorkerOp string

const (
	// OpSocket is socket creation.
	OpSocket WorkerOp = "socket"

	// OpBind is binding the listening socket to its port (e.g. port in use).
	OpBind WorkerOp = "bind"

	// OpListen is marking the bound socket as passive.
	OpListen WorkerOp = "listen"

	// OpAccept is waiting for the single client.
	OpAccept WorkerOp = "accept"
)

// WorkerError is a failure that is fatal to one worker only.
// It is reported on stderr and never changes the process exit code.
type WorkerError struct {
	// Op is the step that failed.
	Op WorkerOp

	// Port is the TCP port owned by the failing worker.
	Port int

	// Err is the underlying OS error.
	Err error
}

// Error satisfies the error interface.
func (e *WorkerError) Error() string {
	return fmt.Sprintf("port %d: %s: %v", e.Port, e.Op, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *WorkerError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one worker, returned through its own channel
// when the worker finishes.
type Result struct {
	// Index is the spawn position of the worker (0-based).
	Index int `json:"index"`

	// Port is the TCP port the worker was assigned.
	Port int `json:"port"`

	// Peer is the remote address of the accepted client, empty if no
	// client ever connected.
	Peer string `json:"peer,omitempty"`

	// BytesSent counts payload bytes accepted by the kernel for the client.
	BytesSent int64 `json:"bytesSent"`

	// AvgRate is the average send rate in bytes per second.
	AvgRate int64 `json:"avgRate"`

	// Duration is how long the client was streamed to.
	Duration time.Duration `json:"duration"`

	// Err is the worker-fatal error, nil when the session ended normally
	// (the peer went away or a write failed).
	Err error `json:"-"`
}

// Failed reports whether the worker hit a socket, bind, listen or accept
// failure.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// Sentinel errors for the process-fatal argument failures. They are wrapped
// with details via fmt.Errorf("%w: ...") and matched with errors.Is.
var (
	// ErrUsage means the positional argument count is wrong.
	ErrUsage = errors.New("usage error")

	// ErrInvalidRange means the port base or range is out of bounds.
	ErrInvalidRange = errors.New("invalid port range")

	// ErrInvalidConfig means the profile file could not be used.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ExitCode defines the CLI exit codes.
type ExitCode int

const (
	// ExitSuccess indicates every worker was joined. Individual worker
	// failures do not change it.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1
)

// ExitInvalidArgument is -EINVAL as seen by a parent process (234 on Linux).
// It is returned for usage errors, invalid port ranges and invalid
// profile files.
var ExitInvalidArgument = ExitCode(-int(syscall.EINVAL) & 0xff)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
