// Package payload holds the constant-content buffer every worker streams.
//
// The buffer is filled once at construction and never written again, so it
// is shared by all workers without locking. Callers only get read access
// through WriteTo, Len, Fill and Verify.
package payload

import (
	"errors"
	"fmt"
	"io"
)

const (
	// DefaultSize is 64Ki 32-bit words, 256 KiB.
	DefaultSize = 65536 * 4

	// DefaultFill is the byte every position of the payload holds.
	DefaultFill byte = 0xFF
)

// ErrStalled is returned by WriteTo when the destination accepted zero
// bytes without reporting an error. The streaming loop treats it as the
// end of the session instead of retrying.
var ErrStalled = errors.New("write made no progress")

// Payload is an immutable block of identical bytes.
type Payload struct {
	data []byte
	fill byte
}

// New allocates a payload of size bytes, each set to fill.
func New(size int, fill byte) (*Payload, error) {
	if size <= 0 {
		return nil, fmt.Errorf("payload size must be positive, got %d", size)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = fill
	}
	return &Payload{data: data, fill: fill}, nil
}

// Default returns the 256 KiB 0xFF payload.
func Default() *Payload {
	p, _ := New(DefaultSize, DefaultFill)
	return p
}

// Len returns the payload size in bytes.
func (p *Payload) Len() int {
	return len(p.data)
}

// Fill returns the byte the payload is made of.
func (p *Payload) Fill() byte {
	return p.fill
}

// WriteTo writes the whole payload to w once, implementing io.WriterTo.
// A short write with a nil error is reported as io.ErrShortWrite, and a
// write that moved nothing at all as ErrStalled.
func (p *Payload) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.data)
	if err != nil {
		return int64(n), err
	}
	if n == 0 {
		return 0, ErrStalled
	}
	if n < len(p.data) {
		return int64(n), io.ErrShortWrite
	}
	return int64(n), nil
}

// Verify reports the offset of the first byte of b that differs from the
// payload's fill byte, or -1 if every byte matches. Receivers use it to
// check the stream content without knowing where in the payload a read
// chunk started.
func (p *Payload) Verify(b []byte) int {
	for i, c := range b {
		if c != p.fill {
			return i
		}
	}
	return -1
}
