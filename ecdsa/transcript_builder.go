package ecdsa

import (
	"sync"

	"github.com/daglabs/replicad/crypto"
	"github.com/daglabs/replicad/logger"
	"github.com/daglabs/replicad/types"
)

var xscbLog, _ = logger.Get(logger.SubsystemTags.XSCB)

// transcriptState accumulates, per requested transcript, the dealings
// that have collected enough dealing supports to count as completed.
type transcriptState struct {
	params            *types.IDkgTranscriptParams
	completedDealings map[types.NodeId]*types.MultiSignedDealing
}

// TranscriptBuilder aggregates multi-signature support shares into
// completed dealings, and combines completed dealings into IDKG
// transcripts once the collection threshold is met. GetCompletedTranscripts
// is idempotent: called repeatedly over the same pool snapshot, it
// produces the same transcripts. Its only side effect is recording each
// completed transcript for CompletedTranscript.
type TranscriptBuilder struct {
	crypto crypto.ConsensusCrypto

	mu       sync.Mutex
	byHeight map[types.IDkgTranscriptID]*types.IDkgTranscript
}

// NewTranscriptBuilder constructs a TranscriptBuilder.
func NewTranscriptBuilder(consensusCrypto crypto.ConsensusCrypto) *TranscriptBuilder {
	return &TranscriptBuilder{
		crypto:   consensusCrypto,
		byHeight: make(map[types.IDkgTranscriptID]*types.IDkgTranscript),
	}
}

// GetCompletedTranscripts implements the three-step algorithm: group
// validated dealings and supports by requested transcript, aggregate
// supports into completed dealings once the verification threshold is
// met, then combine completed dealings into a transcript once the
// collection threshold is met.
func (b *TranscriptBuilder) GetCompletedTranscripts(pool Pool, reader BlockReader) []*types.IDkgTranscript {
	state := make(map[types.IDkgTranscriptID]*transcriptState)
	for _, params := range reader.RequestedTranscripts() {
		state[params.TranscriptID] = &transcriptState{
			params:            params,
			completedDealings: make(map[types.NodeId]*types.MultiSignedDealing),
		}
	}

	supportsByDealingKey := make(map[types.DealingKey][]types.MultiSignatureShare)
	for _, s := range pool.Validated().DealingSupports() {
		key := s.Content.Key()
		supportsByDealingKey[key] = append(supportsByDealingKey[key], s.Signature)
	}

	for _, d := range pool.Validated().Dealings() {
		st, ok := state[d.TranscriptID]
		if !ok {
			continue
		}
		shares := supportsByDealingKey[d.Key()]
		if len(shares) < st.params.VerificationThreshold {
			continue
		}

		aggregated, err := b.crypto.Aggregate(d, shares, st.params.RegistryVersion)
		if err != nil {
			xscbLog.Debugf("aggregate failed for dealing %+v: %s", d.Key(), err)
			continue
		}
		st.completedDealings[d.DealerID] = &types.MultiSignedDealing{Content: *d, Signature: aggregated}
	}

	var completed []*types.IDkgTranscript
	for transcriptID, st := range state {
		if len(st.completedDealings) < st.params.CollectionThreshold {
			continue
		}
		transcript, err := b.crypto.CreateTranscript(st.params, st.completedDealings)
		if err != nil {
			xscbLog.Debugf("create_transcript failed for transcript %d: %s", transcriptID, err)
			continue
		}
		b.recordCompleted(transcript)
		completed = append(completed, transcript)
	}
	return completed
}

func (b *TranscriptBuilder) recordCompleted(transcript *types.IDkgTranscript) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byHeight[transcript.TranscriptID] = transcript
}

// CompletedTranscript implements TranscriptLoader, letting Pass 1 resolve
// a dependency transcript id into the transcript this builder most
// recently completed for it.
func (b *TranscriptBuilder) CompletedTranscript(id types.IDkgTranscriptID) (*types.IDkgTranscript, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.byHeight[id]
	return t, ok
}
