package driver_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jabolina/typedproto/pkg/channel"
	"github.com/jabolina/typedproto/pkg/codec"
	"github.com/jabolina/typedproto/pkg/driver"
	"github.com/jabolina/typedproto/pkg/peer"
	"github.com/jabolina/typedproto/pkg/protocol"
)

// A synthetic ask/reply protocol: ReqState (client agency) yields Ask
// into RespState (server agency), which yields Reply back into
// ReqState; ReqState may also yield Bye into the terminal DoneState.
// This is the pipelining scenario of §8: N pipelined Asks must
// produce N Replies in order, with queue depth tracing 0,1,2,...,N,...,0.
const (
	ReqState protocol.State = iota
	RespState
	DoneState
)

var testDescriptor = protocol.NewDescriptor("ask-reply", []protocol.StateSpec{
	{
		State:  ReqState,
		Agency: protocol.ClientAgency,
		Transitions: []protocol.Transition{
			{Msg: "Ask", From: ReqState, To: RespState},
			{Msg: "Bye", From: ReqState, To: DoneState},
		},
	},
	{
		State:  RespState,
		Agency: protocol.ServerAgency,
		Transitions: []protocol.Transition{
			{Msg: "Reply", From: RespState, To: ReqState},
		},
	},
	{
		State:       DoneState,
		Agency:      protocol.NobodyAgency,
		Transitions: nil,
	},
})

type askPayload struct {
	N int
}

type replyPayload struct {
	N int
}

// sideCodec is a minimal CBOR codec for the synthetic protocol. No
// discriminator tag is sent: in ReqState, where both Ask and Bye are
// legal, an encoded map carrying an N key is an Ask and an empty map is
// a Bye.
type sideCodec struct{}

func (sideCodec) Encode(s protocol.State, msg string, payload interface{}) ([]byte, error) {
	switch msg {
	case "Ask":
		return cbor.Marshal(payload.(askPayload))
	case "Reply":
		return cbor.Marshal(payload.(replyPayload))
	case "Bye":
		return cbor.Marshal(struct{}{})
	default:
		return nil, fmt.Errorf("unknown message %q", msg)
	}
}

func (sideCodec) Decoder(s protocol.State) codec.Decoder {
	return &sideDecoder{state: s}
}

type sideDecoder struct {
	state protocol.State
	buf   []byte
}

func isIncomplete(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func (d *sideDecoder) Feed(chunk []byte) codec.Result {
	if chunk != nil {
		d.buf = append(d.buf, chunk...)
	}
	if len(d.buf) == 0 {
		return codec.Result{Kind: codec.Partial}
	}

	var msg string
	var next protocol.State
	var payload interface{}

	switch d.state {
	case ReqState:
		var m map[string]int
		rest, err := cbor.UnmarshalFirst(d.buf, &m)
		if err != nil {
			if isIncomplete(err) {
				return codec.Result{Kind: codec.Partial}
			}
			leftover := d.buf
			d.buf = nil
			return codec.Result{Kind: codec.Fail, Leftover: leftover, Err: err}
		}
		d.buf = nil
		if n, ok := m["N"]; ok {
			return codec.Result{Kind: codec.Done, Msg: "Ask", Next: RespState, Payload: askPayload{N: n}, Leftover: rest}
		}
		return codec.Result{Kind: codec.Done, Msg: "Bye", Next: DoneState, Payload: struct{}{}, Leftover: rest}
	case RespState:
		var p replyPayload
		rest, err := cbor.UnmarshalFirst(d.buf, &p)
		if err != nil {
			if isIncomplete(err) {
				return codec.Result{Kind: codec.Partial}
			}
			leftover := d.buf
			d.buf = nil
			return codec.Result{Kind: codec.Fail, Leftover: leftover, Err: err}
		}
		d.buf = nil
		return codec.Result{Kind: codec.Done, Msg: "Reply", Next: ReqState, Payload: p, Leftover: rest}
	default:
		var v struct{}
		rest, err := cbor.UnmarshalFirst(d.buf, &v)
		if err != nil {
			if isIncomplete(err) {
				return codec.Result{Kind: codec.Partial}
			}
			leftover := d.buf
			d.buf = nil
			return codec.Result{Kind: codec.Fail, Leftover: leftover, Err: err}
		}
		d.buf = nil
		msg, next, payload = "Bye", DoneState, v
		return codec.Result{Kind: codec.Done, Msg: msg, Next: next, Payload: payload, Leftover: rest}
	}
}

func TestDriverPipelining(t *testing.T) {
	defer goleak.VerifyNone(t)

	const n = 4
	clientBuilder := peer.NewBuilder(testDescriptor, protocol.Client)

	var results []int
	bye, err := peer.BuildDone[[]int](clientBuilder, DoneState, nil)
	require.NoError(t, err)
	program, err := peer.BuildYield(clientBuilder, ReqState, "Bye", struct{}{}, DoneState, bye)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		next := program
		collectDone := peer.CollectDone[[]int]{Then: next}
		collect := peer.Collect[[]int]{
			Then: func(payload interface{}, _ protocol.State) (peer.Instruction[[]int], error) {
				results = append(results, payload.(replyPayload).N)
				return collectDone, nil
			},
		}
		program = collect
	}
	for i := n - 1; i >= 0; i-- {
		instr, err := peer.BuildYieldPipelined(clientBuilder, ReqState, "Ask", askPayload{N: i}, RespState, ReqState, program)
		require.NoError(t, err)
		program = instr
	}

	serverProgram, err := buildEchoServer(n)
	require.NoError(t, err)

	a, b := channel.NewPipe()
	depths := &depthRecorder{}
	clientDrv := driver.New(a, sideCodec{}, testDescriptor, protocol.Client, driver.WithMetrics(depths))
	serverDrv := driver.New(b, sideCodec{}, testDescriptor, protocol.Server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type out struct {
		err error
	}
	clientCh := make(chan out, 1)
	serverCh := make(chan out, 1)

	go func() {
		_, _, err := driver.Run(ctx, clientDrv, program, ReqState, driver.NewState())
		clientCh <- out{err: err}
	}()
	go func() {
		_, _, err := driver.Run(ctx, serverDrv, serverProgram, ReqState, driver.NewState())
		serverCh <- out{err: err}
	}()

	co := <-clientCh
	so := <-serverCh

	require.NoError(t, co.err)
	require.NoError(t, so.err)
	require.Equal(t, []int{0, 1, 2, 3}, results)
	require.Equal(t, []int{1, 2, 3, 4, 3, 2, 1, 0}, depths.depths)
}

// depthRecorder is a metrics.Collector that only records the queue
// depth trace, used to assert the pipelining invariant of §8.
type depthRecorder struct {
	depths []int
}

func (r *depthRecorder) MessageSent(string)     {}
func (r *depthRecorder) MessageReceived(string) {}
func (r *depthRecorder) QueueDepth(d int)       { r.depths = append(r.depths, d) }
func (r *depthRecorder) Failure(string)         {}

// TestDriverAgencyViolation checks that a driver refuses to send on
// behalf of a peer that lacks agency in its current state, even if the
// instruction somehow reached the loop (e.g. a hand-built peer that
// bypassed peer.BuildYield).
func TestDriverAgencyViolation(t *testing.T) {
	defer goleak.VerifyNone(t)

	// RespState has server agency; a client peer yielding there is a
	// bug the driver must still catch at run time.
	bad := peer.Yield[string]{State: RespState, Msg: "Reply", Payload: replyPayload{}, Next: ReqState, Then: peer.Done[string]{Value: "unreachable"}}

	a, b := channel.NewPipe()
	defer a.Close()
	defer b.Close()
	drv := driver.New(a, sideCodec{}, testDescriptor, protocol.Client)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _, err := driver.Run(ctx, drv, bad, RespState, driver.NewState())
	require.Error(t, err)
	var f *driver.Failure
	require.True(t, errors.As(err, &f))
	require.Equal(t, driver.AgencyViolation, f.Kind)
}

// TestDriverUnexpectedEOF checks that a channel closed while a driver
// awaits a reply surfaces as UnexpectedEOF.
func TestDriverUnexpectedEOF(t *testing.T) {
	defer goleak.VerifyNone(t)

	a, b := channel.NewPipe()
	require.NoError(t, b.Close())

	drv := driver.New(a, sideCodec{}, testDescriptor, protocol.Server)
	prog, err := buildEchoServer(1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _, err = driver.Run(ctx, drv, prog, ReqState, driver.NewState())
	require.Error(t, err)
	var f *driver.Failure
	require.True(t, errors.As(err, &f))
	require.Equal(t, driver.UnexpectedEOF, f.Kind)
	require.NoError(t, a.Close())
}

// buildEchoServer answers n Asks sequentially with a Reply carrying
// the same N, then, on Bye, terminates with the count of Asks it
// answered.
func buildEchoServer(n int) (peer.Instruction[int], error) {
	b := peer.NewBuilder(testDescriptor, protocol.Server)
	return buildEchoStep(b, n, 0)
}

func buildEchoStep(b *peer.Builder, remaining, answered int) (peer.Instruction[int], error) {
	branches := map[string]func(interface{}, protocol.State) (peer.Instruction[int], error){
		"Bye": func(payload interface{}, next protocol.State) (peer.Instruction[int], error) {
			return peer.BuildDone(b, next, answered)
		},
	}
	if remaining > 0 {
		branches["Ask"] = func(payload interface{}, next protocol.State) (peer.Instruction[int], error) {
			p := payload.(askPayload)
			rest, err := buildEchoStep(b, remaining-1, answered+1)
			if err != nil {
				return nil, err
			}
			return peer.BuildYield(b, next, "Reply", replyPayload{N: p.N}, ReqState, rest)
		}
	}
	return peer.BuildAwait(b, ReqState, branches)
}
