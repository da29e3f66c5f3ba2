package port

import (
	"fmt"
	"net"
	"strconv"
)

// Scanner checks whether specific ports are available on the host machine.
//
// It asks the operating system directly by binding and releasing the port,
// rather than parsing /proc/net/* or shelling out to `ss`.
type Scanner struct {
	// host is the address the probe binds to. Empty means all IPv4
	// addresses, the same wildcard the workers listen on.
	host string
}

// NewScanner creates a Scanner that probes the IPv4 wildcard address.
func NewScanner() *Scanner {
	return &Scanner{}
}

// NewScannerForHost creates a Scanner that probes a specific local address.
func NewScannerForHost(host string) *Scanner {
	return &Scanner{host: host}
}

// IsPortAvailable checks whether a single TCP port is free on the host
// machine by attempting net.Listen("tcp4", host:port). If the bind
// succeeds the probe socket is closed before returning.
func (s *Scanner) IsPortAvailable(port int) bool {
	listener, err := net.Listen("tcp4", net.JoinHostPort(s.host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}

// FindAvailablePort scans [startPort, endPort] (inclusive) and returns the
// first free port.
func (s *Scanner) FindAvailablePort(startPort, endPort int) (int, error) {
	for port := startPort; port <= endPort; port++ {
		if s.IsPortAvailable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available tcp port found in range %d-%d", startPort, endPort)
}

// FindAvailableRange returns the first Range of count consecutive free TCP
// ports whose base lies in [startPort, endPort].
//
// Ports are only probed, not reserved: another process may take one
// between this call and the caller's own bind.
func (s *Scanner) FindAvailableRange(startPort, endPort, count int) (Range, error) {
	base, err := s.FindAvailablePort(startPort, endPort)
	for err == nil {
		r := Range{Base: base, Count: count}
		if verr := r.Validate(); verr != nil {
			return Range{}, verr
		}
		used := s.GetUsedPorts(r)
		if len(used) == 0 {
			return r, nil
		}
		// Restart the search just past the last busy port of the block.
		base, err = s.FindAvailablePort(used[len(used)-1]+1, endPort)
	}
	return Range{}, fmt.Errorf("no %d consecutive free tcp ports with base in %d-%d", count, startPort, endPort)
}

// GetUsedPorts returns the TCP ports of r that are currently in use.
// The verbose preflight check uses this to warn about ports whose workers
// are going to fail with a bind error.
func (s *Scanner) GetUsedPorts(r Range) []int {
	var used []int
	for _, port := range r.Ports() {
		if !s.IsPortAvailable(port) {
			used = append(used, port)
		}
	}
	return used
}
