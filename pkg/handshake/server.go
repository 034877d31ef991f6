package handshake

import (
	"fmt"
	"sort"

	"github.com/jabolina/typedproto/pkg/peer"
	"github.com/jabolina/typedproto/pkg/protocol"
)

// ServerConfig configures a server peer: the versions it supports, and
// a per-version refine function deciding whether a client's proposed
// parameters are acceptable and, if so, the server's own refinement of
// them to send back in AcceptVersion.
type ServerConfig struct {
	Supported VersionTable
	Refine    func(v VersionNumber, clientParams VersionParams) (VersionParams, bool)
}

// BuildServer builds the server side of the handshake: await
// ProposeVersions, then yield either AcceptVersion or Refuse.
func BuildServer(cfg ServerConfig) (peer.Instruction[ServerOutcome], error) {
	b := peer.NewBuilder(Descriptor, protocol.Server)

	branches := map[string]func(interface{}, protocol.State) (peer.Instruction[ServerOutcome], error){
		MsgProposeVersions: func(payload interface{}, next protocol.State) (peer.Instruction[ServerOutcome], error) {
			msg, ok := payload.(ProposeVersionsMsg)
			if !ok {
				return nil, fmt.Errorf("handshake: unexpected payload for %s", MsgProposeVersions)
			}

			var common []VersionNumber
			for v := range cfg.Supported {
				if _, ok := msg.Versions[v]; ok {
					common = append(common, v)
				}
			}
			if len(common) == 0 {
				reason := RefuseReason{
					Kind:          VersionMismatch,
					ServerKnown:   sortedVersions(cfg.Supported),
					ClientRawTags: rawTags(msg.Versions),
				}
				done, err := peer.BuildDone[ServerOutcome](b, StDone, ServerRefused{Reason: reason})
				if err != nil {
					return nil, err
				}
				return peer.BuildYield(b, next, MsgRefuse, RefuseMsg{Reason: reason}, StDone, done)
			}

			sort.Slice(common, func(i, j int) bool { return common[i] < common[j] })
			best := common[len(common)-1]

			refined, ok := cfg.Refine(best, msg.Versions[best])
			if !ok {
				reason := RefuseReason{Kind: ParamsRejected, Version: best, Text: "parameters out of range"}
				done, err := peer.BuildDone[ServerOutcome](b, StDone, ServerRefused{Reason: reason})
				if err != nil {
					return nil, err
				}
				return peer.BuildYield(b, next, MsgRefuse, RefuseMsg{Reason: reason}, StDone, done)
			}

			done, err := peer.BuildDone[ServerOutcome](b, StDone, ServerAccepted{Version: best, Params: refined})
			if err != nil {
				return nil, err
			}
			return peer.BuildYield(b, next, MsgAcceptVersion, AcceptVersionMsg{Version: best, Params: refined}, StDone, done)
		},
	}

	return peer.BuildAwait(b, StPropose, branches)
}

func sortedVersions(t VersionTable) []VersionNumber {
	out := make([]VersionNumber, 0, len(t))
	for v := range t {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func rawTags(t VersionTable) []int64 {
	out := make([]int64, 0, len(t))
	for v := range t {
		out = append(out, int64(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
