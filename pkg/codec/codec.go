// Package codec declares the generic serializer/incremental-deserializer
// contract a protocol codec must satisfy, plus the shared three-state
// decoder result (Partial/Done/Fail) used by every concrete codec.
package codec

import (
	"errors"

	"github.com/jabolina/typedproto/pkg/protocol"
)

// ErrDecode is wrapped by every decode failure; callers match it with
// errors.Is to distinguish a protocol decode failure from other errors.
var ErrDecode = errors.New("codec: decode error")

// Codec encodes and incrementally decodes messages of a protocol whose
// states are identified by protocol.State.
type Codec interface {
	// Encode serializes msg, a transition out of state s, to bytes.
	// Encode is total: every legal message has exactly one encoding.
	Encode(s protocol.State, msg string, payload interface{}) ([]byte, error)

	// Decoder returns a fresh incremental decoder for messages expected
	// while the protocol is in state s.
	Decoder(s protocol.State) Decoder
}

// Decoder is a resumable, incremental decoder. Feed is called with
// successive byte chunks (nil signals end of input) until it returns a
// Done or Fail result.
type Decoder interface {
	Feed(chunk []byte) Result
}

// Kind discriminates the three decoder states a Result may report.
type Kind int

const (
	// Partial means more input is required before a message emerges.
	Partial Kind = iota
	// Done means a message was fully decoded.
	Done
	// Fail means the input could never decode to a legal message.
	Fail
)

// Result is the outcome of feeding a chunk to a Decoder.
type Result struct {
	Kind Kind

	// Msg, Next and Payload are populated only when Kind == Done.
	Msg     string
	Next    protocol.State
	Payload interface{}

	// Leftover is populated when Kind is Done or Fail: the bytes past
	// the end of the decoded (or rejected) message, to be fed to the
	// next decode.
	Leftover []byte

	// Err is populated only when Kind == Fail.
	Err error
}
