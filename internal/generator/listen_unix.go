//go:build unix

package generator

import (
	"context"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/claudiu-m/dev-tools/internal/model"
)

// listenBacklog is the pending-connection queue of every worker socket.
// A worker serves exactly one client.
const listenBacklog = 1

// listen opens an IPv4 TCP listener on host:port with a backlog of one.
// The socket is built by hand because net.Listen always asks for the
// system maximum. On failure it returns the step that failed.
func listen(ctx context.Context, host string, port int) (net.Listener, model.WorkerOp, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.OpSocket, err
	}

	sa := &unix.SockaddrInet4{Port: port}
	if host != "" {
		ip, err := net.ResolveIPAddr("ip4", host)
		if err != nil {
			return nil, model.OpBind, err
		}
		copy(sa.Addr[:], ip.IP.To4())
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, model.OpSocket, err
	}
	unix.CloseOnExec(fd)

	// Same as the net package: a port left in TIME_WAIT by a previous run
	// can be bound again.
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, model.OpSocket, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, model.OpBind, err
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		_ = unix.Close(fd)
		return nil, model.OpListen, err
	}

	// FileListener duplicates the descriptor; the original is closed with f.
	f := os.NewFile(uintptr(fd), "tgen-listener")
	ln, err := net.FileListener(f)
	_ = f.Close()
	if err != nil {
		return nil, model.OpListen, err
	}
	return ln, "", nil
}
