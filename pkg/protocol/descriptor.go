package protocol

import "errors"

var (
	// ErrAgencyViolation is returned when a peer program is built with an
	// instruction that is illegal under the current state's agency.
	ErrAgencyViolation = errors.New("protocol: agency violation")

	// ErrProtocolViolation is returned by a driver when a codec or peer
	// produces a transition that the protocol descriptor never declared.
	ErrProtocolViolation = errors.New("protocol: transition not declared by protocol")

	// ErrUnknownState is returned when a state is queried on a descriptor
	// that never declared it.
	ErrUnknownState = errors.New("protocol: unknown state")
)

// State identifies one of a protocol's finite states. Protocols define
// their own small enums of this underlying type.
type State uint8

// Transition is a labeled edge of a protocol: message name msg carries
// the protocol from From to To.
type Transition struct {
	Msg  string
	From State
	To   State
}

// StateSpec declares one state of a protocol: its agency and the
// transitions it may emit.
type StateSpec struct {
	State       State
	Agency      Agency
	Transitions []Transition
}

// Descriptor is the immutable, static description of a protocol: its
// states, their agency, and the legal transitions out of each state. It
// is safe to share across any number of drivers and peers.
type Descriptor struct {
	name   string
	states map[State]StateSpec
}

// NewDescriptor builds a Descriptor from its per-state specs. It panics
// on a malformed protocol (duplicate state, or a transition whose From
// does not match the owning state) since a broken protocol descriptor is
// a programming error, not a runtime condition a caller can recover
// from.
func NewDescriptor(name string, specs []StateSpec) *Descriptor {
	states := make(map[State]StateSpec, len(specs))
	for _, spec := range specs {
		if _, exists := states[spec.State]; exists {
			panic("protocol: duplicate state in descriptor " + name)
		}
		for _, t := range spec.Transitions {
			if t.From != spec.State {
				panic("protocol: transition From does not match owning state in descriptor " + name)
			}
		}
		states[spec.State] = spec
	}
	return &Descriptor{name: name, states: states}
}

// Name returns the protocol's name, used only for diagnostics.
func (d *Descriptor) Name() string {
	return d.name
}

// StateAgency returns the agency assigned to s.
func (d *Descriptor) StateAgency(s State) (Agency, error) {
	spec, ok := d.states[s]
	if !ok {
		return 0, ErrUnknownState
	}
	return spec.Agency, nil
}

// MessagesFrom returns the legal (msg, to) transitions declared from s.
func (d *Descriptor) MessagesFrom(s State) ([]Transition, error) {
	spec, ok := d.states[s]
	if !ok {
		return nil, ErrUnknownState
	}
	return spec.Transitions, nil
}

// IsTerminal reports whether s has nobody agency.
func (d *Descriptor) IsTerminal(s State) bool {
	spec, ok := d.states[s]
	return ok && spec.Agency == NobodyAgency
}

// Validate checks that a named transition from s is declared by the
// protocol, returning ErrProtocolViolation if it is not.
func (d *Descriptor) Validate(s State, msg string, to State) error {
	transitions, err := d.MessagesFrom(s)
	if err != nil {
		return err
	}
	for _, t := range transitions {
		if t.Msg == msg && t.To == to {
			return nil
		}
	}
	return ErrProtocolViolation
}
