// Package driver implements the operational semantics that bind a peer
// program to a channel through a codec: the instruction loop, agency
// enforcement, the pipelined outstanding-response queue, and the
// DriverFailure error taxonomy.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jabolina/typedproto/pkg/channel"
	"github.com/jabolina/typedproto/pkg/codec"
	"github.com/jabolina/typedproto/pkg/driver/metrics"
	"github.com/jabolina/typedproto/pkg/peer"
	"github.com/jabolina/typedproto/pkg/plog"
	"github.com/jabolina/typedproto/pkg/protocol"
)

// Driver binds a channel, a codec and a protocol descriptor for one
// connection, run from one role. A Driver is reusable across
// successive Run calls against the same connection; it holds no
// per-run state itself (that lives in State, threaded explicitly).
type Driver struct {
	Channel    channel.Channel
	Codec      codec.Codec
	Descriptor *protocol.Descriptor
	Role       protocol.Role
	Metrics    metrics.Collector
	Log        plog.Logger
}

// Option configures optional Driver fields.
type Option func(*Driver)

// WithMetrics attaches a metrics.Collector; the default is a no-op.
func WithMetrics(c metrics.Collector) Option {
	return func(d *Driver) { d.Metrics = c }
}

// WithLogger attaches a plog.Logger; the default discards everything.
func WithLogger(l plog.Logger) Option {
	return func(d *Driver) { d.Log = l }
}

// New builds a Driver for one connection run as role over ch using cd
// against the states described by desc.
func New(ch channel.Channel, cd codec.Codec, desc *protocol.Descriptor, role protocol.Role, opts ...Option) *Driver {
	d := &Driver{
		Channel:    ch,
		Codec:      cd,
		Descriptor: desc,
		Role:       role,
		Metrics:    metrics.Noop(),
		Log:        plog.NewNoop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run drives prog to completion from the protocol state `initial`,
// returning the peer's result and the dstate that can be inspected or
// reused on failure. This is the kernel's single entry point (§6).
func Run[A any](ctx context.Context, d *Driver, prog peer.Instruction[A], initial protocol.State, dstate State) (A, State, error) {
	var zero A
	cur := initial
	ds := dstate
	q := &responseQueue{}
	instr := prog

	for {
		select {
		case <-ctx.Done():
			return zero, ds, newFailure(Cancelled, cur, ctx.Err())
		default:
		}

		switch ins := instr.(type) {
		case peer.Effect[A]:
			next, err := ins.Run(ctx)
			if err != nil {
				return zero, ds, err
			}
			instr = next

		case peer.Done[A]:
			if q.depth() != 0 {
				f := newFailure(ProtocolViolation, cur, errors.New("done with non-empty pipelined queue"))
				d.Metrics.Failure(f.Kind.String())
				return zero, ds, f
			}
			if !d.Descriptor.IsTerminal(cur) {
				f := newFailure(AgencyViolation, cur, fmt.Errorf("done in non-terminal state %v", cur))
				d.Metrics.Failure(f.Kind.String())
				return zero, ds, f
			}
			return ins.Value, ds, nil

		case peer.Yield[A]:
			if err := d.checkWeHaveAgency(cur); err != nil {
				d.Metrics.Failure(AgencyViolation.String())
				return zero, ds, err
			}
			if verr := d.Descriptor.Validate(cur, ins.Msg, ins.Next); verr != nil {
				f := newFailure(ProtocolViolation, cur, verr)
				d.Metrics.Failure(f.Kind.String())
				return zero, ds, f
			}
			encoded, err := d.Codec.Encode(cur, ins.Msg, ins.Payload)
			if err != nil {
				return zero, ds, err
			}
			if err := d.Channel.Send(ctx, encoded); err != nil {
				f := newFailure(UnexpectedEOF, cur, err)
				d.Metrics.Failure(f.Kind.String())
				return zero, ds, f
			}
			ds.LastSend = time.Now()
			d.Metrics.MessageSent(ins.Msg)
			d.Log.Debugf("yield %s: %v -> %v", ins.Msg, cur, ins.Next)
			cur = ins.Next
			instr = ins.Then

		case peer.YieldPipelined[A]:
			if err := d.checkWeHaveAgency(cur); err != nil {
				d.Metrics.Failure(AgencyViolation.String())
				return zero, ds, err
			}
			if verr := d.Descriptor.Validate(cur, ins.Msg, ins.Next); verr != nil {
				f := newFailure(ProtocolViolation, cur, verr)
				d.Metrics.Failure(f.Kind.String())
				return zero, ds, f
			}
			encoded, err := d.Codec.Encode(cur, ins.Msg, ins.Payload)
			if err != nil {
				return zero, ds, err
			}
			if err := d.Channel.Send(ctx, encoded); err != nil {
				f := newFailure(UnexpectedEOF, cur, err)
				d.Metrics.Failure(f.Kind.String())
				return zero, ds, f
			}
			ds.LastSend = time.Now()
			d.Metrics.MessageSent(ins.Msg)
			q.push(expectation{from: ins.Next, to: ins.Resolved})
			d.Metrics.QueueDepth(q.depth())
			d.Log.Debugf("yield-pipelined %s: %v -> %v (queue depth %d, cur held at %v)", ins.Msg, cur, ins.Next, q.depth(), cur)
			// cur is deliberately left unchanged: a peer may keep
			// pipelining further sends only as long as it still holds
			// agency under the state the queue was opened in. It is
			// restored to the settled per-reply state by CollectDone.
			instr = ins.Then

		case peer.Await[A]:
			if q.depth() != 0 {
				f := newFailure(ProtocolViolation, cur, errors.New("await with a non-empty pipelined queue"))
				d.Metrics.Failure(f.Kind.String())
				return zero, ds, f
			}
			if err := d.checkTheyHaveAgency(cur); err != nil {
				d.Metrics.Failure(AgencyViolation.String())
				return zero, ds, err
			}
			res, newDs, ferr := d.decodeBlocking(ctx, cur, ds)
			if ferr != nil {
				d.Metrics.Failure(ferr.Kind.String())
				return zero, newDs, ferr
			}
			ds = newDs
			branch, ok := ins.Branches[res.Msg]
			if !ok {
				f := newFailure(ProtocolViolation, cur, fmt.Errorf("unexpected message %q in state %v", res.Msg, cur))
				d.Metrics.Failure(f.Kind.String())
				return zero, ds, f
			}
			d.Metrics.MessageReceived(res.Msg)
			d.Log.Debugf("await resolved %s: %v -> %v", res.Msg, cur, res.Next)
			next, err := branch(res.Payload, res.Next)
			if err != nil {
				return zero, ds, err
			}
			cur = res.Next
			instr = next

		case peer.Collect[A]:
			front, ok := q.front()
			if !ok {
				panic("driver: collect on an empty pipelined queue")
			}
			if ins.Alt == nil {
				res, newDs, ferr := d.decodeBlocking(ctx, front.from, ds)
				if ferr != nil {
					d.Metrics.Failure(ferr.Kind.String())
					return zero, newDs, ferr
				}
				ds = newDs
				if res.Next != front.to {
					f := newFailure(ProtocolViolation, front.from, fmt.Errorf("pipelined reply %q resolved to %v, expected %v", res.Msg, res.Next, front.to))
					d.Metrics.Failure(f.Kind.String())
					return zero, ds, f
				}
				d.Metrics.MessageReceived(res.Msg)
				next, err := ins.Then(res.Payload, res.Next)
				if err != nil {
					return zero, ds, err
				}
				instr = next
				continue
			}

			res, newDs, status, ferr := d.decodeNonBlocking(front.from, ds)
			if ferr != nil {
				d.Metrics.Failure(ferr.Kind.String())
				return zero, newDs, ferr
			}
			ds = newDs
			if status != nbAvailable {
				instr = ins.Alt
				continue
			}
			if res.Next != front.to {
				f := newFailure(ProtocolViolation, front.from, fmt.Errorf("pipelined reply %q resolved to %v, expected %v", res.Msg, res.Next, front.to))
				d.Metrics.Failure(f.Kind.String())
				return zero, ds, f
			}
			d.Metrics.MessageReceived(res.Msg)
			next, err := ins.Then(res.Payload, res.Next)
			if err != nil {
				return zero, ds, err
			}
			instr = next

		case peer.CollectDone[A]:
			popped, ok := q.front()
			if !ok {
				panic("driver: collect-done on an empty pipelined queue")
			}
			q.pop()
			if q.depth() == 0 {
				cur = popped.to
			}
			d.Metrics.QueueDepth(q.depth())
			instr = ins.Then

		default:
			return zero, ds, fmt.Errorf("driver: unknown instruction %T", ins)
		}
	}
}

func (d *Driver) checkWeHaveAgency(s protocol.State) *Failure {
	agency, err := d.Descriptor.StateAgency(s)
	if err != nil {
		return newFailure(ProtocolViolation, s, err)
	}
	if protocol.Relative(agency, d.Role) != protocol.WeHaveAgency {
		return newFailure(AgencyViolation, s, fmt.Errorf("role %v does not have agency in state %v", d.Role, s))
	}
	return nil
}

func (d *Driver) checkTheyHaveAgency(s protocol.State) *Failure {
	agency, err := d.Descriptor.StateAgency(s)
	if err != nil {
		return newFailure(ProtocolViolation, s, err)
	}
	if protocol.Relative(agency, d.Role) != protocol.TheyHaveAgency {
		return newFailure(AgencyViolation, s, fmt.Errorf("role %v is not awaiting a message in state %v", d.Role, s))
	}
	return nil
}

// decodeBlocking drives the decoder from state, feeding leftover bytes
// first and then successive channel.Recv chunks, until a full message
// is produced or decoding fails.
func (d *Driver) decodeBlocking(ctx context.Context, state protocol.State, ds State) (codec.Result, State, *Failure) {
	dec := ds.pending
	if dec == nil {
		dec = d.Codec.Decoder(state)
	}
	leftover := ds.Leftover
	ds.Leftover = nil
	ds.pending = nil

	for {
		var chunk []byte
		if leftover != nil {
			chunk = leftover
			leftover = nil
		} else {
			c, err := d.Channel.Recv(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return codec.Result{}, ds, newFailure(Cancelled, state, err)
				}
				if errors.Is(err, io.EOF) {
					return codec.Result{}, ds, newFailure(UnexpectedEOF, state, err)
				}
				return codec.Result{}, ds, newFailure(UnexpectedEOF, state, err)
			}
			if c == nil {
				return codec.Result{}, ds, newFailure(UnexpectedEOF, state, io.EOF)
			}
			chunk = c
		}

		res := dec.Feed(chunk)
		switch res.Kind {
		case codec.Partial:
			continue
		case codec.Done:
			ds.Leftover = res.Leftover
			return res, ds, nil
		case codec.Fail:
			ds.Leftover = res.Leftover
			return codec.Result{}, ds, newFailure(DecodeError, state, res.Err)
		default:
			return codec.Result{}, ds, newFailure(DecodeError, state, fmt.Errorf("unknown decode result kind %v", res.Kind))
		}
	}
}

type nbStatus int

const (
	nbUnavailable nbStatus = iota
	nbAvailable
)

// decodeNonBlocking steps the decoder using only bytes already on hand
// (dstate's leftover, or a decoder suspended by a prior non-blocking
// Collect). It never calls channel.Recv — per §4.5/§5, a non-blocking
// Collect must not suspend waiting on the channel.
func (d *Driver) decodeNonBlocking(state protocol.State, ds State) (codec.Result, State, nbStatus, *Failure) {
	if len(ds.Leftover) == 0 {
		// No new bytes since the last retry: a pending decoder (if any)
		// stays suspended. Feed must not be called with a nil chunk
		// here — that means end of input, not "nothing new yet" — or
		// every ordinary polling retry of a non-blocking Collect would
		// look like the channel just closed.
		return codec.Result{}, ds, nbUnavailable, nil
	}

	dec := ds.pending
	if dec == nil {
		dec = d.Codec.Decoder(state)
	}
	chunk := ds.Leftover
	ds.Leftover = nil

	res := dec.Feed(chunk)
	switch res.Kind {
	case codec.Done:
		ds.pending = nil
		ds.Leftover = res.Leftover
		return res, ds, nbAvailable, nil
	case codec.Fail:
		ds.pending = nil
		ds.Leftover = res.Leftover
		return codec.Result{}, ds, nbUnavailable, newFailure(DecodeError, state, res.Err)
	default: // Partial: preserve the decoder, nothing available yet
		ds.pending = dec
		return codec.Result{}, ds, nbUnavailable, nil
	}
}
