// Package examplev is a concrete, CBOR-tagged VersionParams shape used
// by the handshake package's own tests and demonstrating how a host
// plugs real parameters into the handshake's opaque payload seam.
package examplev

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/jabolina/typedproto/pkg/handshake"
)

// Params is a toy parameter set: a network magic number and a
// diffusion-mode flag, the kind of thing a real chain-sync-style
// handshake negotiates.
type Params struct {
	NetworkMagic uint32 `cbor:"1,keyasint"`
	Diffusion    bool   `cbor:"2,keyasint"`
}

// Codec implements handshake.ParamsCodec for Params.
type Codec struct{}

func (Codec) EncodeParams(_ handshake.VersionNumber, params handshake.VersionParams) ([]byte, error) {
	p, ok := params.(Params)
	if !ok {
		return nil, fmt.Errorf("examplev: params must be examplev.Params, got %T", params)
	}
	return cbor.Marshal(p)
}

func (Codec) DecodeParams(_ handshake.VersionNumber, raw []byte) (handshake.VersionParams, error) {
	var p Params
	if err := cbor.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// Negotiate is a symmetric negotiation function suitable for
// handshake.NegotiateFunc: it accepts whenever both sides agree on
// NetworkMagic, taking the logical AND of Diffusion so the result does
// not depend on argument order.
func Negotiate(_ handshake.VersionNumber, mine, theirs handshake.VersionParams) (handshake.VersionParams, bool) {
	a, ok := mine.(Params)
	if !ok {
		return nil, false
	}
	b, ok := theirs.(Params)
	if !ok {
		return nil, false
	}
	if a.NetworkMagic != b.NetworkMagic {
		return nil, false
	}
	return Params{NetworkMagic: a.NetworkMagic, Diffusion: a.Diffusion && b.Diffusion}, true
}

// Refine is a server-side refine function suitable for
// handshake.ServerConfig.Refine: accepts any client params whose
// NetworkMagic matches want, turning off Diffusion if the server does
// not support it.
func Refine(want uint32, serverDiffusion bool) func(handshake.VersionNumber, handshake.VersionParams) (handshake.VersionParams, bool) {
	return func(_ handshake.VersionNumber, clientParams handshake.VersionParams) (handshake.VersionParams, bool) {
		p, ok := clientParams.(Params)
		if !ok {
			return nil, false
		}
		if p.NetworkMagic != want {
			return nil, false
		}
		return Params{NetworkMagic: p.NetworkMagic, Diffusion: p.Diffusion && serverDiffusion}, true
	}
}

// Accept is a client-side acceptance predicate suitable for
// handshake.ClientConfig.Accept: accepts whatever the server returns
// as long as NetworkMagic matches want.
func Accept(want uint32) func(handshake.VersionNumber, handshake.VersionParams) (handshake.VersionParams, bool) {
	return func(_ handshake.VersionNumber, params handshake.VersionParams) (handshake.VersionParams, bool) {
		p, ok := params.(Params)
		if !ok {
			return nil, false
		}
		if p.NetworkMagic != want {
			return nil, false
		}
		return p, true
	}
}
