package protocol_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jabolina/typedproto/pkg/protocol"
)

const (
	stA protocol.State = iota
	stB
	stDone
)

func newTestDescriptor() *protocol.Descriptor {
	return protocol.NewDescriptor("test", []protocol.StateSpec{
		{
			State:  stA,
			Agency: protocol.ClientAgency,
			Transitions: []protocol.Transition{
				{Msg: "Ping", From: stA, To: stB},
				{Msg: "Bye", From: stA, To: stDone},
			},
		},
		{
			State:  stB,
			Agency: protocol.ServerAgency,
			Transitions: []protocol.Transition{
				{Msg: "Pong", From: stB, To: stA},
			},
		},
		{State: stDone, Agency: protocol.NobodyAgency},
	})
}

func TestDescriptorStateAgency(t *testing.T) {
	d := newTestDescriptor()

	agency, err := d.StateAgency(stA)
	require.NoError(t, err)
	require.Equal(t, protocol.ClientAgency, agency)

	_, err = d.StateAgency(protocol.State(99))
	require.ErrorIs(t, err, protocol.ErrUnknownState)
}

func TestDescriptorIsTerminal(t *testing.T) {
	d := newTestDescriptor()
	require.False(t, d.IsTerminal(stA))
	require.False(t, d.IsTerminal(stB))
	require.True(t, d.IsTerminal(stDone))
}

func TestDescriptorValidate(t *testing.T) {
	d := newTestDescriptor()

	require.NoError(t, d.Validate(stA, "Ping", stB))
	require.NoError(t, d.Validate(stA, "Bye", stDone))

	err := d.Validate(stA, "Pong", stA)
	require.ErrorIs(t, err, protocol.ErrProtocolViolation)

	err = d.Validate(stA, "Ping", stDone)
	require.ErrorIs(t, err, protocol.ErrProtocolViolation)

	_, err = d.MessagesFrom(protocol.State(99))
	require.True(t, errors.Is(err, protocol.ErrUnknownState))
}

func TestDescriptorDuplicateStatePanics(t *testing.T) {
	require.Panics(t, func() {
		protocol.NewDescriptor("dup", []protocol.StateSpec{
			{State: stA, Agency: protocol.ClientAgency},
			{State: stA, Agency: protocol.ServerAgency},
		})
	})
}

func TestDescriptorMismatchedTransitionFromPanics(t *testing.T) {
	require.Panics(t, func() {
		protocol.NewDescriptor("bad-from", []protocol.StateSpec{
			{
				State:  stA,
				Agency: protocol.ClientAgency,
				Transitions: []protocol.Transition{
					{Msg: "Oops", From: stB, To: stA},
				},
			},
		})
	})
}
