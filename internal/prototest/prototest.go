// Package prototest is shared scaffolding for running two driver
// instances against each other over an in-memory channel.Pipe, the
// pattern every duality and handshake scenario test in this module
// needs. It mirrors the concurrent run-and-join shape of the teacher
// codebase's cluster test harness, simplified to a single pair.
package prototest

import (
	"context"

	"github.com/jabolina/typedproto/internal/invoker"
	"github.com/jabolina/typedproto/pkg/driver"
	"github.com/jabolina/typedproto/pkg/peer"
	"github.com/jabolina/typedproto/pkg/protocol"
)

// Outcome is one side's result from RunPair.
type Outcome[A any] struct {
	Value A
	State driver.State
	Err   error
}

// RunPair drives two peer programs concurrently, a over drvA and b
// over drvB, and returns both outcomes once both have finished. The
// two drivers are expected to share a channel.Pipe so their messages
// actually reach each other.
func RunPair[A, B any](
	ctx context.Context,
	drvA *driver.Driver, progA peer.Instruction[A], initialA protocol.State,
	drvB *driver.Driver, progB peer.Instruction[B], initialB protocol.State,
) (Outcome[A], Outcome[B]) {
	var outA Outcome[A]
	var outB Outcome[B]

	inv := invoker.New()
	inv.Spawn(func() {
		v, s, err := driver.Run(ctx, drvA, progA, initialA, driver.NewState())
		outA = Outcome[A]{Value: v, State: s, Err: err}
	})
	inv.Spawn(func() {
		v, s, err := driver.Run(ctx, drvB, progB, initialB, driver.NewState())
		outB = Outcome[B]{Value: v, State: s, Err: err}
	})
	inv.Wait()

	return outA, outB
}
