//go:build unix

package generator

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudiu-m/dev-tools/internal/model"
)

func TestListen(t *testing.T) {
	r := freeRange(t, 1)

	ln, op, err := listen(context.Background(), "127.0.0.1", r.Base)
	require.NoError(t, err)
	assert.Empty(t, op)
	defer func() { _ = ln.Close() }()

	addr, ok := ln.Addr().(*net.TCPAddr)
	require.True(t, ok)
	assert.Equal(t, r.Base, addr.Port)
	assert.Equal(t, "127.0.0.1", addr.IP.String())

	// A second socket on the same port fails at bind.
	_, op, err = listen(context.Background(), "127.0.0.1", r.Base)
	require.Error(t, err)
	assert.Equal(t, model.OpBind, op)
	assert.True(t, errors.Is(err, syscall.EADDRINUSE), "got %v", err)

	conn, err := net.Dial("tcp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(r.Base)))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	accepted, err := ln.Accept()
	require.NoError(t, err)
	_ = accepted.Close()
}

func TestListen_Errors(t *testing.T) {
	_, op, err := listen(context.Background(), "no-such-host.invalid", 20000)
	require.Error(t, err)
	assert.Equal(t, model.OpBind, op)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = listen(ctx, "", 20000)
	assert.True(t, errors.Is(err, context.Canceled))
}
