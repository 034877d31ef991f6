package handshake

import "fmt"

// ClientOutcome is the sealed result a client peer program terminates
// with; exactly one of the concrete cases below.
type ClientOutcome interface {
	isClientOutcome()
}

// Accepted is the outcome when the server accepted a proposed version.
type Accepted struct {
	Version VersionNumber
	Params  VersionParams
}

func (Accepted) isClientOutcome() {}

// Refused is the outcome when the server refused the handshake with a
// Refuse message. A failed simultaneous open ends in ClosedLocally
// instead.
type Refused struct {
	Reason RefuseReason
}

func (Refused) isClientOutcome() {}

// InvalidSelection is the outcome when the server accepted a version
// the client never proposed, or returned parameters the client's own
// acceptance predicate rejects.
type InvalidSelection struct {
	Version VersionNumber
	Text    string
}

func (InvalidSelection) isClientOutcome() {}

// ClosedLocally is the outcome of a simultaneous open that the local
// side gives up on without sending any further message: either the
// two proposals share no common version, or the symmetric
// negotiation of the highest common version was rejected locally.
// The channel itself is left open; the driver never closes it.
type ClosedLocally struct {
	Reason string
}

func (ClosedLocally) isClientOutcome() {}

func (a Accepted) String() string {
	return fmt.Sprintf("Accepted(version=%d)", a.Version)
}

func (r Refused) String() string {
	return fmt.Sprintf("Refused(%s)", r.Reason.Kind)
}

func (i InvalidSelection) String() string {
	return fmt.Sprintf("InvalidSelection(version=%d, %s)", i.Version, i.Text)
}

func (c ClosedLocally) String() string {
	return fmt.Sprintf("ClosedLocally(%s)", c.Reason)
}

// ServerOutcome is the sealed result a server peer program terminates
// with.
type ServerOutcome interface {
	isServerOutcome()
}

// ServerAccepted is the outcome when the server chose to accept a
// common version.
type ServerAccepted struct {
	Version VersionNumber
	Params  VersionParams
}

func (ServerAccepted) isServerOutcome() {}

// ServerRefused is the outcome when the server refused the handshake.
type ServerRefused struct {
	Reason RefuseReason
}

func (ServerRefused) isServerOutcome() {}
