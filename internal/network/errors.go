package network

import "fmt"

// TopologyError reports a malformed graph. It is fatal for the scope+date
// being processed: no downstream computation is valid over a broken topology,
// so callers must abort rather than continue.
type TopologyError struct {
	Reason string
}

func (e *TopologyError) Error() string {
	return "invalid topology: " + e.Reason
}

func topologyErrorf(format string, args ...any) error {
	return &TopologyError{Reason: fmt.Sprintf(format, args...)}
}
