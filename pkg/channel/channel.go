// Package channel declares the abstract, bidirectional, in-order,
// opaque byte transport a driver runs against, and ships one reference
// implementation (Pipe) for tests and for running two peer programs
// against each other in-memory. Concrete network bearers (TCP, Unix
// sockets, named pipes) are explicitly out of scope for this module
// (see the kernel's purpose-and-scope notes) — a host wires its own
// bearer into this interface.
package channel

import (
	"context"
	"errors"
)

// ErrClosed is returned by Send once Close has been called; Recv
// reports a close as io.EOF instead.
var ErrClosed = errors.New("channel: closed")

// Channel is the transport contract a driver depends on. Send may
// block on backpressure; Recv returns the next available chunk of
// unspecified size (at least one byte) or io.EOF on an orderly close
// from the remote side.
type Channel interface {
	Send(ctx context.Context, p []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}
