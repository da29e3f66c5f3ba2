// Package port implements port range validation and port availability
// scanning for the tgen traffic generator.
//
// A run drives a contiguous range of TCP ports:
//
//	ports = base, base+1, ..., base+count-1
//
// Range enforces the limits on that set (positive base, 1..16 ports, last
// port below 65536). The Scanner verifies OS-level port availability via
// net.Listen() and is used for the verbose preflight check and by tests
// that need a block of free ports.
package port
