package ecdsa

import "github.com/daglabs/replicad/types"

// ActionKind is the three-way triage verdict for an incoming artifact.
type ActionKind int

const (
	// ActionProcess means the artifact references a transcript the
	// subnet is currently building; Params carries that transcript's
	// parameters.
	ActionProcess ActionKind = iota
	// ActionDefer means the sender is ahead of this replica's view of
	// the finalized block; keep the artifact in the unvalidated pool
	// and re-evaluate on a later tick.
	ActionDefer
	// ActionDrop means the artifact's transcript is neither requested
	// nor in the future; it is no longer relevant.
	ActionDrop
)

// Action is the classifier's verdict for one artifact. The caller must
// not mutate the block reader's requested-transcript set while holding an
// Action's Params — it is a borrow against a single snapshot.
type Action struct {
	Kind   ActionKind
	Params *types.IDkgTranscriptParams
}

// classify triages an artifact referencing (msgHeight, transcriptID)
// against the current block reader state.
func classify(msgHeight types.Height, transcriptID types.IDkgTranscriptID, reader BlockReader, requestedByID map[types.IDkgTranscriptID]*types.IDkgTranscriptParams) Action {
	if msgHeight > reader.Height() {
		return Action{Kind: ActionDefer}
	}
	if params, ok := requestedByID[transcriptID]; ok {
		return Action{Kind: ActionProcess, Params: params}
	}
	return Action{Kind: ActionDrop}
}

// indexRequestedTranscripts builds the transcript_id -> params index every
// pass needs to evaluate Action.
func indexRequestedTranscripts(reader BlockReader) map[types.IDkgTranscriptID]*types.IDkgTranscriptParams {
	requested := reader.RequestedTranscripts()
	index := make(map[types.IDkgTranscriptID]*types.IDkgTranscriptParams, len(requested))
	for _, params := range requested {
		index[params.TranscriptID] = params
	}
	return index
}
