package ecdsa_test

import (
	"github.com/daglabs/replicad/ecdsa"
	"github.com/daglabs/replicad/types"
)

type fakeBlockReader struct {
	height    types.Height
	requested []*types.IDkgTranscriptParams
}

func (r *fakeBlockReader) Height() types.Height { return r.height }
func (r *fakeBlockReader) RequestedTranscripts() []*types.IDkgTranscriptParams {
	return r.requested
}

type fakeConsensusPoolCache struct {
	reader *fakeBlockReader
}

func (c *fakeConsensusPoolCache) FinalizedBlock() ecdsa.BlockReader {
	return c.reader
}

func nodeSet(nodes ...types.NodeId) map[types.NodeId]struct{} {
	set := make(map[types.NodeId]struct{}, len(nodes))
	for _, n := range nodes {
		set[n] = struct{}{}
	}
	return set
}

func params(transcriptID types.IDkgTranscriptID, dealers, receivers []types.NodeId) *types.IDkgTranscriptParams {
	return &types.IDkgTranscriptParams{
		TranscriptID:          transcriptID,
		Dealers:               nodeSet(dealers...),
		Receivers:             nodeSet(receivers...),
		RegistryVersion:       1,
		Algorithm:             "test-algorithm",
		Operation:             types.OperationType{Kind: types.OperationRandom},
		CollectionThreshold:   2,
		VerificationThreshold: 1,
	}
}

// noopTranscriptLoader never has any completed transcripts; every
// transcript with no dependencies still loads fine since Dependencies()
// returns nil for OperationRandom.
type noopTranscriptLoader struct{}

func (noopTranscriptLoader) CompletedTranscript(id types.IDkgTranscriptID) (*types.IDkgTranscript, bool) {
	return nil, false
}
