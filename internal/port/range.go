package port

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/claudiu-m/dev-tools/internal/model"
)

const (
	// MaxPorts is the largest number of ports (and therefore concurrent
	// workers) a single run may drive.
	MaxPorts = 16

	// portLimit bounds base+count. The last usable port is portLimit-1.
	portLimit = 65536
)

// Range is a contiguous set of TCP ports [Base, Base+Count).
type Range struct {
	// Base is the first port of the range.
	Base int `json:"base"`

	// Count is the number of ports, 1..MaxPorts.
	Count int `json:"count"`
}

// ParseRange validates the positional arguments of the generator:
// exactly two integers, a port base and a range size.
//
// A wrong argument count wraps model.ErrUsage. Values that do not parse as
// integers or fall outside the limits wrap model.ErrInvalidRange.
func ParseRange(args []string) (Range, error) {
	if len(args) != 2 {
		return Range{}, fmt.Errorf("%w: expected 2 arguments, got %d", model.ErrUsage, len(args))
	}
	return parseBaseAndCount(args[0], args[1])
}

// ParseHostRange validates the positional arguments of the sink:
// a host followed by a port base and a range size.
func ParseHostRange(args []string) (string, Range, error) {
	if len(args) != 3 {
		return "", Range{}, fmt.Errorf("%w: expected 3 arguments, got %d", model.ErrUsage, len(args))
	}
	host := strings.TrimSpace(args[0])
	if host == "" {
		return "", Range{}, fmt.Errorf("%w: host must not be empty", model.ErrUsage)
	}
	r, err := parseBaseAndCount(args[1], args[2])
	if err != nil {
		return "", Range{}, err
	}
	return host, r, nil
}

func parseBaseAndCount(baseArg, countArg string) (Range, error) {
	base, err := strconv.Atoi(strings.TrimSpace(baseArg))
	if err != nil {
		return Range{}, fmt.Errorf("%w: port base %q is not an integer", model.ErrInvalidRange, baseArg)
	}
	count, err := strconv.Atoi(strings.TrimSpace(countArg))
	if err != nil {
		return Range{}, fmt.Errorf("%w: range %q is not an integer", model.ErrInvalidRange, countArg)
	}

	r := Range{Base: base, Count: count}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Validate checks the range against the port space and the worker limit.
// An empty range is rejected: a run with no workers has nothing to do.
func (r Range) Validate() error {
	switch {
	case r.Base <= 0:
		return fmt.Errorf("%w: port base %d must be positive", model.ErrInvalidRange, r.Base)
	case r.Count <= 0:
		return fmt.Errorf("%w: range %d must be at least 1", model.ErrInvalidRange, r.Count)
	case r.Count > MaxPorts:
		return fmt.Errorf("%w: range %d exceeds the limit of %d ports", model.ErrInvalidRange, r.Count, MaxPorts)
	case r.Base+r.Count > portLimit:
		return fmt.Errorf("%w: ports %d-%d exceed %d", model.ErrInvalidRange, r.Base, r.Base+r.Count-1, portLimit-1)
	}
	return nil
}

// Ports returns every port of the range in ascending order.
func (r Range) Ports() []int {
	ports := make([]int, 0, r.Count)
	for i := 0; i < r.Count; i++ {
		ports = append(ports, r.Base+i)
	}
	return ports
}

// Last returns the highest port of the range.
func (r Range) Last() int {
	return r.Base + r.Count - 1
}

// String renders the range as "base-last".
func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Base, r.Last())
}
