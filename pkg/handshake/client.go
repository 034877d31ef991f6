package handshake

import (
	"fmt"
	"sort"

	"github.com/jabolina/typedproto/pkg/peer"
	"github.com/jabolina/typedproto/pkg/protocol"
)

// NegotiateFunc computes the agreed parameters for version v from two
// sides' locally-held parameters. It must be symmetric — negotiate(v,
// a, b) == negotiate(v, b, a) — for simultaneous-open resolution to
// agree on both ends; the kernel does not verify this, only requires
// it (§4.6.1).
type NegotiateFunc func(v VersionNumber, mine, theirs VersionParams) (VersionParams, bool)

// ClientConfig configures a client peer: the version table it
// proposes, a predicate deciding whether an accepted version's
// parameters are acceptable (and how to refine them locally), and the
// negotiation function used only when simultaneous open is detected.
type ClientConfig struct {
	Proposal  VersionTable
	Accept    func(v VersionNumber, params VersionParams) (VersionParams, bool)
	Negotiate NegotiateFunc
}

// BuildClient builds the client side of the handshake: propose, then
// await AcceptVersion, Refuse, or (on simultaneous open)
// ProposeVersions'.
func BuildClient(cfg ClientConfig) (peer.Instruction[ClientOutcome], error) {
	b := peer.NewBuilder(Descriptor, protocol.Client)

	branches := map[string]func(interface{}, protocol.State) (peer.Instruction[ClientOutcome], error){
		MsgAcceptVersion: func(payload interface{}, next protocol.State) (peer.Instruction[ClientOutcome], error) {
			msg, ok := payload.(AcceptVersionMsg)
			if !ok {
				return nil, fmt.Errorf("handshake: unexpected payload for %s", MsgAcceptVersion)
			}
			if _, proposed := cfg.Proposal[msg.Version]; !proposed {
				return peer.BuildDone[ClientOutcome](b, next, InvalidSelection{
					Version: msg.Version,
					Text:    "version not in client's proposal",
				})
			}
			adjusted, ok := cfg.Accept(msg.Version, msg.Params)
			if !ok {
				return peer.BuildDone[ClientOutcome](b, next, InvalidSelection{
					Version: msg.Version,
					Text:    "params not acceptable to client",
				})
			}
			return peer.BuildDone[ClientOutcome](b, next, Accepted{Version: msg.Version, Params: adjusted})
		},
		MsgRefuse: func(payload interface{}, next protocol.State) (peer.Instruction[ClientOutcome], error) {
			msg, ok := payload.(RefuseMsg)
			if !ok {
				return nil, fmt.Errorf("handshake: unexpected payload for %s", MsgRefuse)
			}
			return peer.BuildDone[ClientOutcome](b, next, Refused{Reason: msg.Reason})
		},
		MsgProposeVersionsPrime: func(payload interface{}, next protocol.State) (peer.Instruction[ClientOutcome], error) {
			msg, ok := payload.(ProposeVersionsMsg)
			if !ok {
				return nil, fmt.Errorf("handshake: unexpected payload for %s", MsgProposeVersionsPrime)
			}
			return peer.BuildDone[ClientOutcome](b, next, resolveSimultaneousOpen(cfg, msg.Versions))
		},
	}

	awaitInstr, err := peer.BuildAwait(b, StConfirm, branches)
	if err != nil {
		return nil, err
	}
	return peer.BuildYield(b, StPropose, MsgProposeVersions, ProposeVersionsMsg{Versions: cfg.Proposal}, StConfirm, awaitInstr)
}

// resolveSimultaneousOpen applies the deterministic, symmetric
// selection both sides must reach independently: intersect the two
// proposals, pick the highest common version, negotiate its
// parameters. theirs is the peer's proposal, just decoded as
// ProposeVersions'.
func resolveSimultaneousOpen(cfg ClientConfig, theirs VersionTable) ClientOutcome {
	var common []VersionNumber
	for v := range cfg.Proposal {
		if _, ok := theirs[v]; ok {
			common = append(common, v)
		}
	}
	if len(common) == 0 {
		return ClosedLocally{Reason: "no common version in simultaneous open"}
	}
	sort.Slice(common, func(i, j int) bool { return common[i] < common[j] })
	best := common[len(common)-1]

	agreed, ok := cfg.Negotiate(best, cfg.Proposal[best], theirs[best])
	if !ok {
		return ClosedLocally{Reason: fmt.Sprintf("symmetric negotiation of version %d rejected", best)}
	}
	return Accepted{Version: best, Params: agreed}
}
