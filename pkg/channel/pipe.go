package channel

import (
	"context"
	"io"
	"sync"
)

// pipeEnd is one side of an in-memory Pipe. Chunks sent on one end are
// delivered, whole and in order, to Recv on the other end — a buffered
// Go channel gives FIFO ordering with no duplication or reordering for
// free, the same guarantee the kernel's channel contract requires of
// any bearer.
type pipeEnd struct {
	out       chan []byte
	in        chan []byte
	closeOnce sync.Once
	shared    *closeState
}

// closeState is shared by both ends of a Pipe so a Recv in progress on
// either end observes a Close from the other side.
type closeState struct {
	once   sync.Once
	closed chan struct{}
}

// NewPipe returns two connected Channel endpoints: whatever is sent on
// a is received on b and vice versa. It is the lossless, reorder-free,
// in-memory channel the kernel's end-to-end duality property is stated
// against, and is used throughout this module's own tests.
func NewPipe() (Channel, Channel) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	shared := &closeState{closed: make(chan struct{})}
	a := &pipeEnd{out: ab, in: ba, shared: shared}
	b := &pipeEnd{out: ba, in: ab, shared: shared}
	return a, b
}

func (p *pipeEnd) Send(ctx context.Context, chunk []byte) error {
	select {
	case <-p.shared.closed:
		return ErrClosed
	default:
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	select {
	case p.out <- cp:
		return nil
	case <-p.shared.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Recv(ctx context.Context) ([]byte, error) {
	select {
	case chunk, ok := <-p.in:
		if !ok {
			return nil, io.EOF
		}
		return chunk, nil
	default:
	}
	select {
	case chunk, ok := <-p.in:
		if !ok {
			return nil, io.EOF
		}
		return chunk, nil
	case <-p.shared.closed:
		select {
		case chunk, ok := <-p.in:
			if !ok {
				return nil, io.EOF
			}
			return chunk, nil
		default:
			return nil, io.EOF
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes this end of the pipe: further Sends on it fail, and a
// Recv blocked on the other end unblocks with io.EOF once it has
// drained anything already in flight.
func (p *pipeEnd) Close() error {
	p.closeOnce.Do(func() {
		close(p.out)
	})
	p.shared.once.Do(func() {
		close(p.shared.closed)
	})
	return nil
}
