//go:build !unix

package generator

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"

	"github.com/claudiu-m/dev-tools/internal/model"
)

// listen opens an IPv4 TCP listener on host:port. Without raw socket
// access the backlog is the system default; the worker still accepts a
// single client.
func listen(ctx context.Context, host string, port int) (net.Listener, model.WorkerOp, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, classifyListenError(err), unwrapOpError(err)
	}
	return ln, "", nil
}

// classifyListenError maps a net.Listen failure onto the socket step that
// produced it. The net package wraps the failing system call in an
// *os.SyscallError named after it.
func classifyListenError(err error) model.WorkerOp {
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		switch sysErr.Syscall {
		case "socket":
			return model.OpSocket
		case "bind":
			return model.OpBind
		}
	}
	return model.OpListen
}
