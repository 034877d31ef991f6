// Package handshake implements the concrete version-negotiation
// protocol that exercises every feature of the protocol kernel: client
// agency, server agency, a terminal state, and simultaneous open.
package handshake

import "github.com/jabolina/typedproto/pkg/protocol"

// The three states of the handshake protocol.
const (
	StPropose protocol.State = iota
	StConfirm
	StDone
)

// Message names carried on the wire, shared by the codec and the peer
// builders below.
const (
	MsgProposeVersions       = "ProposeVersions"
	MsgProposeVersionsPrime  = "ProposeVersions'"
	MsgAcceptVersion         = "AcceptVersion"
	MsgRefuse                = "Refuse"
)

// Descriptor is the static description of the handshake protocol:
// StPropose (client agency) yields ProposeVersions into StConfirm
// (server agency), which yields either AcceptVersion or Refuse into
// StDone (nobody agency). ProposeVersions' is a distinguished
// transition out of StConfirm reachable only by simultaneous open
// (§4.6.1): both ends advanced to StConfirm locally and then received
// the other's ProposeVersions where a reply was expected.
var Descriptor = protocol.NewDescriptor("handshake", []protocol.StateSpec{
	{
		State:  StPropose,
		Agency: protocol.ClientAgency,
		Transitions: []protocol.Transition{
			{Msg: MsgProposeVersions, From: StPropose, To: StConfirm},
		},
	},
	{
		State:  StConfirm,
		Agency: protocol.ServerAgency,
		Transitions: []protocol.Transition{
			{Msg: MsgProposeVersionsPrime, From: StConfirm, To: StDone},
			{Msg: MsgAcceptVersion, From: StConfirm, To: StDone},
			{Msg: MsgRefuse, From: StConfirm, To: StDone},
		},
	},
	{
		State:       StDone,
		Agency:      protocol.NobodyAgency,
		Transitions: nil,
	},
})
