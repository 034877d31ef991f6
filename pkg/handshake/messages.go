package handshake

// VersionNumber identifies one version of the handshake protocol.
type VersionNumber uint64

// VersionParams is an opaque payload whose concrete shape is owned by
// the caller; the kernel never inspects it. Encoding and decoding is
// delegated to a ParamsCodec keyed by VersionNumber (the "per-version
// sub-codec" the wire format leaves unspecified).
type VersionParams interface{}

// VersionTable maps a proposal or a supported-version set to its
// parameters. Go maps have no iteration order; the codec is
// responsible for emitting entries sorted ascending by VersionNumber,
// the wire invariant tag 0 requires.
type VersionTable map[VersionNumber]VersionParams

// ProposeVersionsMsg is the payload of ProposeVersions and its
// simultaneous-open counterpart ProposeVersions'.
type ProposeVersionsMsg struct {
	Versions VersionTable
}

// AcceptVersionMsg is the payload of AcceptVersion.
type AcceptVersionMsg struct {
	Version VersionNumber
	Params  VersionParams
}

// RefuseReasonKind discriminates the three shapes a Refuse reason may
// take, matching the wire table's tag-2 sub-discriminator.
type RefuseReasonKind uint64

const (
	VersionMismatch RefuseReasonKind = iota
	HandshakeDecodeError
	ParamsRejected
)

func (k RefuseReasonKind) String() string {
	switch k {
	case VersionMismatch:
		return "VersionMismatch"
	case HandshakeDecodeError:
		return "HandshakeDecodeError"
	case ParamsRejected:
		return "ParamsRejected"
	default:
		return "UnknownRefuseReason"
	}
}

// RefuseReason is the payload of Refuse. Only the fields relevant to
// Kind are populated.
type RefuseReason struct {
	Kind RefuseReasonKind

	// VersionMismatch fields.
	ServerKnown   []VersionNumber
	ClientRawTags []int64

	// HandshakeDecodeError and ParamsRejected fields.
	Version VersionNumber
	Text    string
}

// RefuseMsg is the payload of Refuse.
type RefuseMsg struct {
	Reason RefuseReason
}
