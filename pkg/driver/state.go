package driver

import (
	"time"

	"github.com/jabolina/typedproto/pkg/codec"
)

// State is the per-connection record a driver threads through every
// send and receive: leftover bytes from the last decode, the time of
// the last send (for a host's own timeout accounting — the kernel
// enforces no timeout policy itself), and any partial decoder
// suspended mid-message by a non-blocking Collect.
type State struct {
	Leftover []byte
	LastSend time.Time

	pending codec.Decoder
}

// NewState returns a zero-valued State, the one a driver starts from.
func NewState() State {
	return State{}
}
