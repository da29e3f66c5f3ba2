package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/mxk/go-flowrate/flowrate"

	"github.com/claudiu-m/dev-tools/internal/model"
	"github.com/claudiu-m/dev-tools/internal/payload"
)

// worker serves at most one client on one TCP port.
// It owns its listener and client connection exclusively.
type worker struct {
	index int
	port  int
	g     *Generator
	state model.WorkerState
}

func newWorker(index, port int, g *Generator) *worker {
	return &worker{index: index, port: port, g: g, state: model.StateCreated}
}

// transition moves the worker to next and traces it.
func (w *worker) transition(next model.WorkerState) {
	if !w.state.CanTransition(next) {
		w.g.tracef("port %d: ignoring transition %s -> %s", w.port, w.state, next)
		return
	}
	w.g.tracef("port %d: %s -> %s", w.port, w.state, next)
	w.state = next
}

// fail records a worker-fatal error on stderr and closes the worker.
func (w *worker) fail(res *model.Result, op model.WorkerOp, err error) model.Result {
	res.Err = &model.WorkerError{Op: op, Port: w.port, Err: err}
	w.g.diagf("%v\n", res.Err)
	w.transition(model.StateClosed)
	return *res
}

// run performs listen, a single accept, the streaming loop and cleanup.
// The context only bounds the listen call; accept and the stream are not
// cancellable and end when a client arrives and goes away.
func (w *worker) run(ctx context.Context) model.Result {
	res := model.Result{Index: w.index, Port: w.port}

	ln, op, err := listen(ctx, w.g.host, w.port)
	if err != nil {
		return w.fail(&res, op, err)
	}

	// Sockets are released on every exit path, panics included: the client
	// first, then the listener.
	var conn net.Conn
	defer func() {
		if conn != nil {
			closeClient(conn)
		}
		_ = ln.Close()
		if w.state != model.StateClosed {
			w.transition(model.StateClosed)
		}
	}()

	w.transition(model.StateListening)
	w.g.outf("listening on port %d\n", w.port)
	if w.g.onListen != nil {
		w.g.onListen(w.index, w.port)
	}

	conn, err = ln.Accept()
	if err != nil {
		return w.fail(&res, model.OpAccept, unwrapOpError(err))
	}
	w.transition(model.StateConnected)
	res.Peer = conn.RemoteAddr().String()
	w.g.outf("got new client (%d)\n", w.port)

	w.transition(model.StateStreaming)
	start := time.Now()
	sent, avg, endErr := w.stream(conn)
	res.BytesSent = sent
	res.AvgRate = avg
	res.Duration = time.Since(start)
	if endErr != nil {
		w.g.diagf("port %d: send: %v\n", w.port, unwrapOpError(endErr))
	}
	return res
}

// closeClient shuts down both directions before releasing the descriptor.
func closeClient(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseRead()
		_ = tcp.CloseWrite()
	}
	_ = conn.Close()
}

// stream writes the shared payload to conn until a write fails.
// It returns the byte count, the average rate in bytes per second and the
// error that ended the session.
func (w *worker) stream(conn net.Conn) (int64, int64, error) {
	meter := flowrate.NewWriter(stallGuard{conn}, 0)

	var err error
	for err == nil {
		_, err = w.g.payload.WriteTo(meter)
	}
	sent := meter.Done()
	return sent, meter.Status().AvgRate, err
}

// stallGuard turns a write that moved nothing without an error into
// payload.ErrStalled, so the streaming loop ends instead of spinning on a
// dead socket.
type stallGuard struct {
	io.Writer
}

func (s stallGuard) Write(b []byte) (int, error) {
	n, err := s.Writer.Write(b)
	if n == 0 && err == nil && len(b) > 0 {
		return 0, payload.ErrStalled
	}
	return n, err
}

// unwrapOpError strips the *net.OpError and *os.SyscallError envelopes so
// diagnostics carry the OS description only ("address already in use").
func unwrapOpError(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		err = opErr.Err
	}
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) && sysErr.Err != nil {
		err = sysErr.Err
	}
	return err
}

// String is used in verbose traces.
func (w *worker) String() string {
	return fmt.Sprintf("worker #%d (port %d, %s)", w.index, w.port, w.state)
}
