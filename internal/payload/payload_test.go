package payload

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// zeroWriter accepts nothing and reports no error, the half-closed socket
// case that must not spin.
type zeroWriter struct{}

func (zeroWriter) Write([]byte) (int, error) { return 0, nil }

// shortWriter accepts half of every write without an error.
type shortWriter struct{}

func (shortWriter) Write(b []byte) (int, error) { return len(b) / 2, nil }

// failWriter always fails after accepting n bytes.
type failWriter struct{ n int }

func (f failWriter) Write([]byte) (int, error) { return f.n, io.ErrClosedPipe }

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, 256*1024, p.Len())
	assert.Equal(t, byte(0xFF), p.Fill())
	var buf bytes.Buffer
	_, err := p.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, -1, p.Verify(buf.Bytes()))
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(0, 0xFF)
	assert.Error(t, err)

	_, err = New(-1, 0xFF)
	assert.Error(t, err)
}

// TestWriteTo verifies a full write carries only the fill byte.
func TestWriteTo(t *testing.T) {
	p, err := New(4096, 0xAB)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := p.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), n)
	assert.Equal(t, bytes.Repeat([]byte{0xAB}, 4096), buf.Bytes())
}

func TestWriteTo_Errors(t *testing.T) {
	p, err := New(1024, 0xFF)
	require.NoError(t, err)

	t.Run("zero bytes is a stall", func(t *testing.T) {
		n, err := p.WriteTo(zeroWriter{})
		assert.Zero(t, n)
		assert.True(t, errors.Is(err, ErrStalled))
	})

	t.Run("short write", func(t *testing.T) {
		n, err := p.WriteTo(shortWriter{})
		assert.Equal(t, int64(512), n)
		assert.True(t, errors.Is(err, io.ErrShortWrite))
	})

	t.Run("writer error wins", func(t *testing.T) {
		n, err := p.WriteTo(failWriter{n: 10})
		assert.Equal(t, int64(10), n)
		assert.True(t, errors.Is(err, io.ErrClosedPipe))
	})
}

func TestVerify(t *testing.T) {
	p := Default()
	assert.Equal(t, -1, p.Verify(bytes.Repeat([]byte{0xFF}, 100)))
	assert.Equal(t, -1, p.Verify(nil))
	assert.Equal(t, 3, p.Verify([]byte{0xFF, 0xFF, 0xFF, 0x00, 0xFF}))
}

// TestWriteTo_Concurrent checks that concurrent readers see identical
// content; run with -race to catch writes to the shared buffer.
func TestWriteTo_Concurrent(t *testing.T) {
	p := Default()
	done := make(chan []byte, 8)
	for i := 0; i < 8; i++ {
		go func() {
			var buf bytes.Buffer
			_, _ = p.WriteTo(&buf)
			done <- buf.Bytes()
		}()
	}
	want := bytes.Repeat([]byte{0xFF}, p.Len())
	for i := 0; i < 8; i++ {
		assert.Equal(t, want, <-done)
	}
}
