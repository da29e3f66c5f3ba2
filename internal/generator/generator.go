// Package generator runs one streaming worker per port of a range.
//
// Each worker listens on its port, accepts a single client and writes the
// shared payload to it until a write fails, then closes both sockets. The
// Generator spawns all workers at once, joins them in spawn order and never
// cancels one because a sibling failed.
package generator

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/claudiu-m/dev-tools/internal/model"
	"github.com/claudiu-m/dev-tools/internal/payload"
	"github.com/claudiu-m/dev-tools/internal/port"
)

// Options configures a Generator. Zero values are usable: all IPv4
// addresses, the default payload, discarded output.
type Options struct {
	// Host is the local address workers listen on. Empty means all
	// IPv4 addresses.
	Host string

	// Payload is the shared read-only buffer. Nil selects payload.Default().
	Payload *payload.Payload

	// Out receives progress lines (listening, client connected, finished,
	// end marker).
	Out io.Writer

	// Err receives diagnostics with OS error descriptions.
	Err io.Writer

	// Tracef, if set, receives state transitions for verbose output.
	Tracef func(format string, args ...interface{})

	// OnListen, if set, is called from the worker goroutine once its port
	// is accepting connections.
	OnListen func(index, port int)
}

// Generator fans out workers over a port range.
type Generator struct {
	host     string
	payload  *payload.Payload
	traceFn  func(format string, args ...interface{})
	onListen func(index, port int)

	// mu serializes writes to out and errOut from concurrent workers so
	// lines never interleave.
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

// New creates a Generator from opts.
func New(opts Options) *Generator {
	g := &Generator{
		host:     opts.Host,
		payload:  opts.Payload,
		traceFn:  opts.Tracef,
		onListen: opts.OnListen,
		out:      opts.Out,
		errOut:   opts.Err,
	}
	if g.payload == nil {
		g.payload = payload.Default()
	}
	if g.out == nil {
		g.out = io.Discard
	}
	if g.errOut == nil {
		g.errOut = io.Discard
	}
	return g
}

// Run spawns one worker per port of r and blocks until every worker has
// finished. Results are returned in spawn order, one per port. A worker
// failure is recorded in its Result and reported on the error stream; it
// never stops the other workers.
func (g *Generator) Run(ctx context.Context, r port.Range) []model.Result {
	ports := r.Ports()
	done := make([]chan model.Result, len(ports))

	for i, p := range ports {
		ch := make(chan model.Result, 1)
		done[i] = ch
		// Each worker gets its own copy of its index and port.
		go g.spawn(ctx, newWorker(i, p, g), ch)
	}

	results := make([]model.Result, 0, len(ports))
	for i, ch := range done {
		res := <-ch
		g.outf("Thread #%d finished\n", i)
		results = append(results, res)
	}
	g.outf(">>> END\n")
	return results
}

// spawn runs w and delivers its result on ch. A panicking worker is turned
// into a failed Result so the join loop always completes.
func (g *Generator) spawn(ctx context.Context, w *worker, ch chan<- model.Result) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker panicked: %v", r)
			g.diagf("join %v: %v\n", w, err)
			ch <- model.Result{Index: w.index, Port: w.port, Err: err}
		}
	}()
	ch <- w.run(ctx)
}

func (g *Generator) outf(format string, args ...interface{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, _ = fmt.Fprintf(g.out, format, args...)
}

func (g *Generator) diagf(format string, args ...interface{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, _ = fmt.Fprintf(g.errOut, format, args...)
}

func (g *Generator) tracef(format string, args ...interface{}) {
	if g.traceFn != nil {
		g.traceFn(format, args...)
	}
}
