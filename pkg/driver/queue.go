package driver

import "github.com/jabolina/typedproto/pkg/protocol"

// expectation is one outstanding pipelined response: the transition the
// driver still expects to decode before this entry can be popped by
// CollectDone.
type expectation struct {
	from protocol.State
	to   protocol.State
}

// responseQueue is the depth counter plus FIFO of expected transitions
// described by the kernel: push on YieldPipelined, pop on CollectDone.
// Depth is always non-negative; Yield/Await/Done require it empty,
// Collect/CollectDone require it non-empty (§4.5, §8 property 4).
type responseQueue struct {
	entries []expectation
}

func (q *responseQueue) depth() int {
	return len(q.entries)
}

func (q *responseQueue) push(e expectation) {
	q.entries = append(q.entries, e)
}

// front returns the queue's head without popping it, used to validate
// an inbound response's transition before CollectDone advances past
// it.
func (q *responseQueue) front() (expectation, bool) {
	if len(q.entries) == 0 {
		return expectation{}, false
	}
	return q.entries[0], true
}

func (q *responseQueue) pop() {
	if len(q.entries) == 0 {
		panic("driver: pop on empty response queue")
	}
	q.entries = q.entries[1:]
}
