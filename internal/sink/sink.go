// Package sink is the receiving end of a tgen run.
//
// It connects to every port of a range on a generator host, drains all
// connections concurrently and reports the aggregate receive rate, averaged
// over a sliding window of samples, until it is cancelled, its duration
// expires or every generator worker has closed its stream.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/mxk/go-flowrate/flowrate"
	"golang.org/x/sync/errgroup"

	"github.com/claudiu-m/dev-tools/internal/payload"
	"github.com/claudiu-m/dev-tools/internal/port"
)

// StopReason tells why a sink run ended.
type StopReason string

const (
	// StopEOF means every connection was closed by the generator.
	StopEOF StopReason = "eof"

	// StopCancelled means the caller cancelled the run (e.g. SIGINT).
	StopCancelled StopReason = "cancelled"

	// StopDuration means the configured duration expired.
	StopDuration StopReason = "duration"

	// StopError means a connection failed or carried unexpected bytes.
	StopError StopReason = "error"
)

const mebibyte = 1 << 20

// Options configures a sink run.
type Options struct {
	// Host is the generator host.
	Host string

	// Range is the set of generator ports to connect to.
	Range port.Range

	// ReadBytes is the buffer size of each read.
	ReadBytes int

	// Interval is the time between two rate samples.
	Interval time.Duration

	// Window is the number of samples averaged in each report line.
	Window int

	// Duration stops the run after this long. Zero runs until cancelled
	// or until all streams end.
	Duration time.Duration

	// Verify, if set, checks every received byte against its fill byte.
	Verify *payload.Payload

	// Out receives the live "\r<elapsed>: rate <n> MB/s" line.
	// Nil disables it.
	Out io.Writer

	// Tracef, if set, receives per-connection events for verbose output.
	Tracef func(format string, args ...interface{})
}

// PortStats is the final accounting of one connection.
type PortStats struct {
	Port    int    `json:"port"`
	Bytes   int64  `json:"bytes"`
	AvgRate int64  `json:"avgRate"`
	Error   string `json:"error,omitempty"`
}

// Report is the outcome of a sink run.
type Report struct {
	Host    string        `json:"host"`
	Elapsed time.Duration `json:"elapsed"`
	Reason  StopReason    `json:"reason"`

	// MeanRate is the last windowed average in bytes per second.
	MeanRate float64     `json:"meanRate"`
	Ports    []PortStats `json:"ports"`
}

// TotalBytes sums the bytes received on every port.
func (r *Report) TotalBytes() int64 {
	var total int64
	for _, p := range r.Ports {
		total += p.Bytes
	}
	return total
}

// conn is one metered connection to a generator port.
type conn struct {
	port  int
	raw   net.Conn
	meter *flowrate.Reader
	err   error
}

// Run connects to every port of opts.Range and drains the streams.
// A dial failure aborts the run before any data is read. A read failure
// or verification mismatch on one connection ends the whole run and is
// returned along with the report.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if err := opts.Range.Validate(); err != nil {
		return nil, err
	}
	if opts.ReadBytes <= 0 || opts.Interval <= 0 || opts.Window <= 0 {
		return nil, fmt.Errorf("sink: read size, interval and window must be positive")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.Duration > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, opts.Duration)
		defer cancelTimeout()
	}

	conns, err := dialAll(runCtx, opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(runCtx)

	// Closing the sockets is what unblocks readers on cancellation.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		<-gctx.Done()
		for _, c := range conns {
			_ = c.raw.Close()
		}
	}()

	for _, c := range conns {
		c := c
		g.Go(func() error {
			c.err = drain(gctx, c, opts)
			return c.err
		})
	}

	stopReport := make(chan struct{})
	reported := make(chan float64, 1)
	go func() {
		reported <- report(conns, opts, start, stopReport)
	}()

	runErr := g.Wait()
	<-closed
	close(stopReport)
	mean := <-reported
	if opts.Out != nil {
		_, _ = fmt.Fprintln(opts.Out)
	}

	rep := &Report{
		Host:     opts.Host,
		Elapsed:  time.Since(start),
		MeanRate: mean,
		Ports:    make([]PortStats, 0, len(conns)),
	}
	for _, c := range conns {
		total := c.meter.Done()
		ps := PortStats{Port: c.port, Bytes: total, AvgRate: c.meter.Status().AvgRate}
		if c.err != nil {
			ps.Error = c.err.Error()
		}
		rep.Ports = append(rep.Ports, ps)
	}

	switch {
	case runErr != nil:
		rep.Reason = StopError
	case ctx.Err() != nil:
		rep.Reason = StopCancelled
	case runCtx.Err() != nil:
		rep.Reason = StopDuration
	default:
		rep.Reason = StopEOF
	}
	return rep, runErr
}

// dialAll opens one connection per port, in port order. On failure every
// connection opened so far is closed.
func dialAll(ctx context.Context, opts Options) ([]*conn, error) {
	var d net.Dialer
	conns := make([]*conn, 0, opts.Range.Count)
	for _, p := range opts.Range.Ports() {
		addr := net.JoinHostPort(opts.Host, strconv.Itoa(p))
		raw, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			for _, c := range conns {
				_ = c.raw.Close()
			}
			return nil, fmt.Errorf("connect %s: %w", addr, err)
		}
		if opts.Tracef != nil {
			opts.Tracef("connected to %s from %s", addr, raw.LocalAddr())
		}
		conns = append(conns, &conn{port: p, raw: raw, meter: flowrate.NewReader(raw, 0)})
	}
	return conns, nil
}

// drain reads c until EOF. Errors caused by the run being stopped are
// not failures.
func drain(ctx context.Context, c *conn, opts Options) error {
	buf := make([]byte, opts.ReadBytes)
	var offset int64
	for {
		n, err := c.meter.Read(buf)
		if n > 0 && opts.Verify != nil {
			if i := opts.Verify.Verify(buf[:n]); i >= 0 {
				return fmt.Errorf("port %d: byte %d of the stream is 0x%02x, want 0x%02x",
					c.port, offset+int64(i), buf[i], opts.Verify.Fill())
			}
		}
		offset += int64(n)

		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			if opts.Tracef != nil {
				opts.Tracef("port %d: stream ended after %d bytes", c.port, offset)
			}
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("port %d: %w", c.port, err)
	}
}

// report samples the aggregate byte count every interval until stop is
// closed, printing the windowed average. It returns the last average in
// bytes per second.
func report(conns []*conn, opts Options, start time.Time, stop <-chan struct{}) float64 {
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	w := newWindow(opts.Window)
	last := start
	var lastBytes int64
	for {
		select {
		case <-stop:
			return w.mean()
		case now := <-ticker.C:
			var total int64
			for _, c := range conns {
				total += c.meter.Status().Bytes
			}
			elapsed := now.Sub(last).Seconds()
			if elapsed > 0 {
				w.add(float64(total-lastBytes) / elapsed)
			}
			last, lastBytes = now, total
			if opts.Out != nil {
				_, _ = fmt.Fprintf(opts.Out, "\r%.1f: rate %.1f MB/s", now.Sub(start).Seconds(), w.mean()/mebibyte)
			}
		}
	}
}

// window is a fixed-size ring of rate samples. It is owned by the
// reporting goroutine.
type window struct {
	samples []float64
	next    int
	full    bool
}

func newWindow(size int) *window {
	return &window{samples: make([]float64, size)}
}

func (w *window) add(v float64) {
	w.samples[w.next] = v
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

func (w *window) mean() float64 {
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.samples[:n] {
		sum += v
	}
	return sum / float64(n)
}
