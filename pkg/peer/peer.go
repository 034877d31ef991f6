// Package peer implements the peer program: a lazy, suspendable
// computation that, from a start state, alternately yields a message,
// awaits a message, or finishes, with optional pipelining. It is the
// runtime stand-in for what the source expresses with compile-time
// agency witnesses: every constructor below checks the witness at
// build time and returns AgencyViolation instead of letting an illegal
// peer reach a driver.
package peer

import (
	"context"
	"fmt"

	"github.com/jabolina/typedproto/pkg/protocol"
)

// Instruction is one step of a peer program computing a final value of
// type A. The concrete cases are the exported Effect, Done, Yield,
// Await, YieldPipelined, Collect and CollectDone structs below.
// BuildYield, BuildAwait, BuildDone and BuildYieldPipelined validate
// agency before returning one; Effect, Collect and CollectDone have no
// constructor and are written as literals.
type Instruction[A any] interface {
	// isInstruction is unexported so Instruction has a closed set of
	// implementations, the sealed-variant emulation called for in the
	// source's §9 design notes.
	isInstruction()
}

// Effect performs a host effect and continues with the peer program it
// produces. It is legal from any state.
type Effect[A any] struct {
	Run func(ctx context.Context) (Instruction[A], error)
}

func (Effect[A]) isInstruction() {}

// Done terminates the peer program with a final value. It is legal only
// in a state with nobody agency and an empty pipelining queue; the
// driver enforces both at run time (§4.5 invariant 3).
type Done[A any] struct {
	Value A
}

func (Done[A]) isInstruction() {}

// Yield emits a message carrying the protocol from State to Next and
// continues as Then. Legal only when the running peer's role holds we
// have agency in State.
type Yield[A any] struct {
	State   protocol.State
	Msg     string
	Payload interface{}
	Next    protocol.State
	Then    Instruction[A]
}

func (Yield[A]) isInstruction() {}

// Await blocks for an inbound message while the protocol is in State,
// dispatching to Branches by the decoded message's tag. Legal only
// when the running peer's role holds they have agency in State.
type Await[A any] struct {
	State    protocol.State
	Branches map[string]func(payload interface{}, next protocol.State) (Instruction[A], error)
}

func (Await[A]) isInstruction() {}

// YieldPipelined emits a message without awaiting its reply; the
// reply's expected transition (Next -> Resolved) is pushed onto the
// driver's outstanding-response queue and Then continues in pipelined
// mode with queue depth one greater.
type YieldPipelined[A any] struct {
	State    protocol.State
	Msg      string
	Payload  interface{}
	Next     protocol.State
	Resolved protocol.State
	Then     Instruction[A]
}

func (YieldPipelined[A]) isInstruction() {}

// Collect consumes the front of the outstanding-response queue. If Alt
// is nil the driver blocks until a response is available. If Alt is
// non-nil the driver only takes a response already available from
// leftover bytes, otherwise it runs Alt so the caller can retry later
// without blocking on Recv (§4.5, §5 suspension points).
type Collect[A any] struct {
	Then func(payload interface{}, next protocol.State) (Instruction[A], error)
	Alt  Instruction[A]
}

func (Collect[A]) isInstruction() {}

// CollectDone pops the front of the outstanding-response queue after it
// has been resolved by a prior Collect, then continues with Then.
type CollectDone[A any] struct {
	Then Instruction[A]
}

func (CollectDone[A]) isInstruction() {}

// Builder validates instructions against a protocol descriptor and a
// role before they are ever handed to a driver, rejecting anything
// that violates agency (§4.1, §4.2).
type Builder struct {
	Descriptor *protocol.Descriptor
	Role       protocol.Role
}

// NewBuilder constructs a Builder for the given protocol and role.
func NewBuilder(d *protocol.Descriptor, role protocol.Role) *Builder {
	return &Builder{Descriptor: d, Role: role}
}

func (b *Builder) relative(s protocol.State) (protocol.RelativeAgency, error) {
	agency, err := b.Descriptor.StateAgency(s)
	if err != nil {
		return 0, err
	}
	return protocol.Relative(agency, b.Role), nil
}

// BuildYield validates and builds a Yield instruction. It is a free function
// rather than a method because Go methods cannot introduce the extra
// type parameter A that identifies the peer program's final result
// type; Builder itself stays non-generic and is reused across A's.
func BuildYield[A any](b *Builder, state protocol.State, msg string, payload interface{}, next protocol.State, then Instruction[A]) (Instruction[A], error) {
	rel, err := b.relative(state)
	if err != nil {
		return nil, err
	}
	if rel != protocol.WeHaveAgency {
		return nil, fmt.Errorf("%w: yield %q from state %v without agency", protocol.ErrAgencyViolation, msg, state)
	}
	if err := b.Descriptor.Validate(state, msg, next); err != nil {
		return nil, err
	}
	return Yield[A]{State: state, Msg: msg, Payload: payload, Next: next, Then: then}, nil
}

// BuildAwait validates and builds an Await instruction.
func BuildAwait[A any](b *Builder, state protocol.State, branches map[string]func(interface{}, protocol.State) (Instruction[A], error)) (Instruction[A], error) {
	rel, err := b.relative(state)
	if err != nil {
		return nil, err
	}
	if rel != protocol.TheyHaveAgency {
		return nil, fmt.Errorf("%w: await from state %v without the peer's agency", protocol.ErrAgencyViolation, state)
	}
	return Await[A]{State: state, Branches: branches}, nil
}

// BuildDone validates and builds a Done instruction.
func BuildDone[A any](b *Builder, state protocol.State, value A) (Instruction[A], error) {
	rel, err := b.relative(state)
	if err != nil {
		return nil, err
	}
	if rel != protocol.NobodyHasAgency {
		return nil, fmt.Errorf("%w: done in non-terminal state %v", protocol.ErrAgencyViolation, state)
	}
	return Done[A]{Value: value}, nil
}

// BuildYieldPipelined validates and builds a YieldPipelined instruction.
func BuildYieldPipelined[A any](b *Builder, state protocol.State, msg string, payload interface{}, next, resolved protocol.State, then Instruction[A]) (Instruction[A], error) {
	rel, err := b.relative(state)
	if err != nil {
		return nil, err
	}
	if rel != protocol.WeHaveAgency {
		return nil, fmt.Errorf("%w: pipelined yield %q from state %v without agency", protocol.ErrAgencyViolation, msg, state)
	}
	if err := b.Descriptor.Validate(state, msg, next); err != nil {
		return nil, err
	}
	return YieldPipelined[A]{State: state, Msg: msg, Payload: payload, Next: next, Resolved: resolved, Then: then}, nil
}
