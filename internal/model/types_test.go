package model

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWorkerState_String verifies the string form used in verbose traces.
func TestWorkerState_String(t *testing.T) {
	tests := []struct {
		state    WorkerState
		expected string
	}{
		{StateCreated, "created"},
		{StateListening, "listening"},
		{StateConnected, "connected"},
		{StateStreaming, "streaming"},
		{StateClosed, "closed"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
			assert.True(t, tt.state.IsValid())
		})
	}
	assert.False(t, WorkerState("bogus").IsValid())
}

// TestWorkerState_CanTransition walks the lifecycle, including the error
// exits straight to closed.
func TestWorkerState_CanTransition(t *testing.T) {
	tests := []struct {
		from, to WorkerState
		allowed  bool
	}{
		{StateCreated, StateListening, true},
		{StateListening, StateConnected, true},
		{StateConnected, StateStreaming, true},
		{StateStreaming, StateClosed, true},
		{StateCreated, StateClosed, true},
		{StateListening, StateClosed, true},
		{StateCreated, StateStreaming, false},
		{StateStreaming, StateListening, false},
		{StateCreated, WorkerState("bogus"), false},
		{WorkerState("bogus"), StateClosed, false},
		{StateListening, StateListening, false},
		{StateClosed, StateClosed, false},
		{StateClosed, StateListening, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

// TestWorkerError verifies the message format and that errors.Is reaches
// the OS error underneath.
func TestWorkerError(t *testing.T) {
	err := &WorkerError{Op: OpBind, Port: 8000, Err: syscall.EADDRINUSE}

	assert.Equal(t, fmt.Sprintf("port 8000: bind: %v", syscall.EADDRINUSE), err.Error())
	assert.True(t, errors.Is(err, syscall.EADDRINUSE))

	var wrapped error = fmt.Errorf("worker: %w", err)
	var target *WorkerError
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, OpBind, target.Op)
}

// TestResult_Failed checks that only worker-fatal errors count as failure.
func TestResult_Failed(t *testing.T) {
	ok := Result{Port: 8000, BytesSent: 1 << 20}
	assert.False(t, ok.Failed())

	bad := Result{Port: 8001, Err: &WorkerError{Op: OpAccept, Port: 8001, Err: errors.New("boom")}}
	assert.True(t, bad.Failed())
}

// TestExitInvalidArgument checks the -EINVAL convention.
func TestExitInvalidArgument(t *testing.T) {
	assert.Equal(t, ExitCode(256-int(syscall.EINVAL)), ExitInvalidArgument)
	assert.NotEqual(t, ExitSuccess, ExitInvalidArgument)
}

// TestCLIError verifies message formatting and unwrapping.
func TestCLIError(t *testing.T) {
	t.Run("without underlying error", func(t *testing.T) {
		err := &CLIError{Code: ExitGeneralError, Message: "something failed"}
		assert.Equal(t, "something failed", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("with underlying error", func(t *testing.T) {
		err := WrapCLIError(ExitInvalidArgument, "bad arguments", ErrInvalidRange)
		assert.Equal(t, "bad arguments: invalid port range", err.Error())
		assert.True(t, errors.Is(err, ErrInvalidRange))
		assert.Equal(t, ExitInvalidArgument, err.Code)
	})
}
