package handshake

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/jabolina/typedproto/pkg/codec"
	"github.com/jabolina/typedproto/pkg/protocol"
)

// ParamsCodec encodes and decodes the opaque VersionParams payload
// nested inside a handshake message, keyed by the version it belongs
// to. The wire format leaves this framing to "the per-version
// sub-codec" (§9); ParamsCodec is that sub-codec's seam. examplev
// ships one concrete implementation.
type ParamsCodec interface {
	EncodeParams(v VersionNumber, params VersionParams) ([]byte, error)
	DecodeParams(v VersionNumber, raw []byte) (VersionParams, error)
}

// NewCodec builds the handshake wire codec: CBOR arrays tagged 0/1/2
// per the wire table, with versionParams delegated to params.
func NewCodec(params ParamsCodec) codec.Codec {
	return &wireCodec{params: params}
}

type wireCodec struct {
	params ParamsCodec
}

func (c *wireCodec) Decoder(s protocol.State) codec.Decoder {
	return &wireDecoder{state: s, params: c.params}
}

type entryWire struct {
	_       struct{} `cbor:",toarray"`
	Version uint64
	Params  cbor.RawMessage
}

func (c *wireCodec) Encode(s protocol.State, msg string, payload interface{}) ([]byte, error) {
	switch msg {
	case MsgProposeVersions, MsgProposeVersionsPrime:
		p, ok := payload.(ProposeVersionsMsg)
		if !ok {
			return nil, fmt.Errorf("handshake: %s payload must be ProposeVersionsMsg", msg)
		}
		if len(p.Versions) == 0 {
			return nil, fmt.Errorf("handshake: %s must carry a non-empty version table", msg)
		}
		versions := make([]VersionNumber, 0, len(p.Versions))
		for v := range p.Versions {
			versions = append(versions, v)
		}
		sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

		entries := make([]entryWire, 0, len(versions))
		for _, v := range versions {
			raw, err := c.params.EncodeParams(v, p.Versions[v])
			if err != nil {
				return nil, fmt.Errorf("handshake: encode params for version %d: %w", v, err)
			}
			entries = append(entries, entryWire{Version: uint64(v), Params: raw})
		}
		return cbor.Marshal([]interface{}{uint64(0), entries})

	case MsgAcceptVersion:
		p, ok := payload.(AcceptVersionMsg)
		if !ok {
			return nil, errors.New("handshake: AcceptVersion payload must be AcceptVersionMsg")
		}
		raw, err := c.params.EncodeParams(p.Version, p.Params)
		if err != nil {
			return nil, fmt.Errorf("handshake: encode params for version %d: %w", p.Version, err)
		}
		return cbor.Marshal([]interface{}{uint64(1), uint64(p.Version), cbor.RawMessage(raw)})

	case MsgRefuse:
		p, ok := payload.(RefuseMsg)
		if !ok {
			return nil, errors.New("handshake: Refuse payload must be RefuseMsg")
		}
		switch p.Reason.Kind {
		case VersionMismatch:
			known := make([]uint64, len(p.Reason.ServerKnown))
			for i, v := range p.Reason.ServerKnown {
				known[i] = uint64(v)
			}
			return cbor.Marshal([]interface{}{uint64(2), uint64(VersionMismatch), known, p.Reason.ClientRawTags})
		case HandshakeDecodeError, ParamsRejected:
			return cbor.Marshal([]interface{}{uint64(2), uint64(p.Reason.Kind), uint64(p.Reason.Version), p.Reason.Text})
		default:
			return nil, fmt.Errorf("handshake: unknown refuse reason kind %v", p.Reason.Kind)
		}

	default:
		return nil, fmt.Errorf("handshake: no wire encoding for message %q", msg)
	}
}

// wireDecoder incrementally decodes one handshake message expected
// while the protocol is in state. It accumulates fed bytes until
// cbor.UnmarshalFirst can parse a complete top-level array, or reports
// Fail if the parsed shape cannot be a legal message from state.
type wireDecoder struct {
	state  protocol.State
	params ParamsCodec
	buf    []byte
}

func (d *wireDecoder) Feed(chunk []byte) codec.Result {
	if chunk != nil {
		d.buf = append(d.buf, chunk...)
	}
	if len(d.buf) == 0 {
		if chunk == nil {
			return codec.Result{Kind: codec.Fail, Err: fmt.Errorf("%w: %v", codec.ErrDecode, io.ErrUnexpectedEOF)}
		}
		return codec.Result{Kind: codec.Partial}
	}

	var items []cbor.RawMessage
	rest, err := cbor.UnmarshalFirst(d.buf, &items)
	if err != nil {
		if isIncompleteCBOR(err) && chunk != nil {
			return codec.Result{Kind: codec.Partial}
		}
		leftover := d.buf
		d.buf = nil
		return codec.Result{Kind: codec.Fail, Leftover: leftover, Err: fmt.Errorf("%w: %v", codec.ErrDecode, err)}
	}
	d.buf = nil

	result, perr := d.parse(items)
	if perr != nil {
		return codec.Result{Kind: codec.Fail, Leftover: rest, Err: fmt.Errorf("%w: %v", codec.ErrDecode, perr)}
	}
	result.Leftover = rest
	return result
}

// isIncompleteCBOR reports whether err indicates the buffer is a
// truncated prefix of a valid item rather than malformed input;
// cbor.UnmarshalFirst surfaces this as io.ErrUnexpectedEOF (or io.EOF
// for an entirely empty item), per the library's documented behavior.
func isIncompleteCBOR(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func (d *wireDecoder) parse(items []cbor.RawMessage) (codec.Result, error) {
	if len(items) == 0 {
		return codec.Result{}, errors.New("empty message array")
	}
	var tag uint64
	if err := cbor.Unmarshal(items[0], &tag); err != nil {
		return codec.Result{}, fmt.Errorf("decode tag: %w", err)
	}

	switch tag {
	case 0:
		return d.parseProposeVersions(items)
	case 1:
		return d.parseAcceptVersion(items)
	case 2:
		return d.parseRefuse(items)
	default:
		return codec.Result{}, fmt.Errorf("unknown message tag %d", tag)
	}
}

func (d *wireDecoder) parseProposeVersions(items []cbor.RawMessage) (codec.Result, error) {
	if len(items) != 2 {
		return codec.Result{}, errors.New("ProposeVersions: expected 2 array items")
	}
	var entries []entryWire
	if err := cbor.Unmarshal(items[1], &entries); err != nil {
		return codec.Result{}, fmt.Errorf("decode version entries: %w", err)
	}
	if len(entries) == 0 {
		return codec.Result{}, errors.New("ProposeVersions: version table must be non-empty")
	}

	table := make(VersionTable, len(entries))
	var last VersionNumber
	for i, e := range entries {
		v := VersionNumber(e.Version)
		if i > 0 && v <= last {
			return codec.Result{}, fmt.Errorf("version table not sorted ascending at entry %d", i)
		}
		last = v
		params, err := d.params.DecodeParams(v, e.Params)
		if err != nil {
			return codec.Result{}, fmt.Errorf("decode params for version %d: %w", v, err)
		}
		table[v] = params
	}

	payload := ProposeVersionsMsg{Versions: table}
	switch d.state {
	case StPropose:
		return codec.Result{Kind: codec.Done, Msg: MsgProposeVersions, Next: StConfirm, Payload: payload}, nil
	case StConfirm:
		return codec.Result{Kind: codec.Done, Msg: MsgProposeVersionsPrime, Next: StDone, Payload: payload}, nil
	default:
		return codec.Result{}, fmt.Errorf("ProposeVersions is not legal while decoding in state %v", d.state)
	}
}

func (d *wireDecoder) parseAcceptVersion(items []cbor.RawMessage) (codec.Result, error) {
	if d.state != StConfirm {
		return codec.Result{}, fmt.Errorf("AcceptVersion is not legal while decoding in state %v", d.state)
	}
	if len(items) != 3 {
		return codec.Result{}, errors.New("AcceptVersion: expected 3 array items")
	}
	var version uint64
	if err := cbor.Unmarshal(items[1], &version); err != nil {
		return codec.Result{}, fmt.Errorf("decode version: %w", err)
	}
	var raw cbor.RawMessage
	if err := cbor.Unmarshal(items[2], &raw); err != nil {
		return codec.Result{}, fmt.Errorf("decode params envelope: %w", err)
	}
	params, err := d.params.DecodeParams(VersionNumber(version), raw)
	if err != nil {
		return codec.Result{}, fmt.Errorf("decode params for version %d: %w", version, err)
	}
	payload := AcceptVersionMsg{Version: VersionNumber(version), Params: params}
	return codec.Result{Kind: codec.Done, Msg: MsgAcceptVersion, Next: StDone, Payload: payload}, nil
}

func (d *wireDecoder) parseRefuse(items []cbor.RawMessage) (codec.Result, error) {
	if d.state != StConfirm {
		return codec.Result{}, fmt.Errorf("Refuse is not legal while decoding in state %v", d.state)
	}
	if len(items) < 2 {
		return codec.Result{}, errors.New("Refuse: missing reason kind")
	}
	var kind uint64
	if err := cbor.Unmarshal(items[1], &kind); err != nil {
		return codec.Result{}, fmt.Errorf("decode refuse reason kind: %w", err)
	}

	var reason RefuseReason
	switch RefuseReasonKind(kind) {
	case VersionMismatch:
		if len(items) != 4 {
			return codec.Result{}, errors.New("Refuse/VersionMismatch: expected 4 array items")
		}
		var known []uint64
		if err := cbor.Unmarshal(items[2], &known); err != nil {
			return codec.Result{}, fmt.Errorf("decode server known versions: %w", err)
		}
		var tags []int64
		if err := cbor.Unmarshal(items[3], &tags); err != nil {
			return codec.Result{}, fmt.Errorf("decode client raw tags: %w", err)
		}
		serverKnown := make([]VersionNumber, len(known))
		for i, v := range known {
			serverKnown[i] = VersionNumber(v)
		}
		reason = RefuseReason{Kind: VersionMismatch, ServerKnown: serverKnown, ClientRawTags: tags}

	case HandshakeDecodeError, ParamsRejected:
		if len(items) != 4 {
			return codec.Result{}, errors.New("Refuse: expected 4 array items")
		}
		var version uint64
		if err := cbor.Unmarshal(items[2], &version); err != nil {
			return codec.Result{}, fmt.Errorf("decode refuse version: %w", err)
		}
		var text string
		if err := cbor.Unmarshal(items[3], &text); err != nil {
			return codec.Result{}, fmt.Errorf("decode refuse text: %w", err)
		}
		reason = RefuseReason{Kind: RefuseReasonKind(kind), Version: VersionNumber(version), Text: text}

	default:
		return codec.Result{}, fmt.Errorf("unknown refuse reason kind %d", kind)
	}

	return codec.Result{Kind: codec.Done, Msg: MsgRefuse, Next: StDone, Payload: RefuseMsg{Reason: reason}}, nil
}
