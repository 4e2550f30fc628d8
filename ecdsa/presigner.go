package ecdsa

import (
	"github.com/pkg/errors"

	"github.com/daglabs/replicad/crypto"
	"github.com/daglabs/replicad/logger"
	"github.com/daglabs/replicad/metrics"
	"github.com/daglabs/replicad/types"
)

var log, _ = logger.Get(logger.SubsystemTags.ECDS)

const (
	reasonDuplicateDealingInBatch = "Duplicate dealing in unvalidated batch"
	reasonDuplicateSupportInBatch = "Duplicate dealing support in unvalidated batch"
	reasonUnexpectedDealer        = "Dealing from unexpected node"
	reasonDuplicateDealing        = "duplicate dealing"
	reasonUnexpectedSigner        = "Dealing support from unexpected node"
	reasonDuplicateSupport        = "duplicate dealing support"
)

const passCount = 5

// passNames labels each OnStateChange pass for the on_state_change_duration
// metric and for logging.
var passNames = [passCount]string{
	"send_dealings",
	"validate_dealings",
	"send_support",
	"validate_support",
	"purge",
}

// TranscriptLoader resolves a completed transcript id into the transcript
// itself, so Pass 1 can load a new transcript's dependencies before
// dealing into it. TranscriptBuilder.GetCompletedTranscripts populates
// the backing store this satisfies.
type TranscriptLoader interface {
	CompletedTranscript(id types.IDkgTranscriptID) (*types.IDkgTranscript, bool)
}

// PreSigner drives the IDKG dealing/support lifecycle for one node. A
// single integer round-robin cursor, advanced once per OnStateChange call,
// is its only mutable state — not shared externally (spec.md §5).
type PreSigner struct {
	nodeID     types.NodeId
	cache      ConsensusPoolCache
	crypto     crypto.ConsensusCrypto
	transcripts TranscriptLoader

	cursor int
}

// NewPreSigner constructs a PreSigner for nodeID.
func NewPreSigner(nodeID types.NodeId, cache ConsensusPoolCache, consensusCrypto crypto.ConsensusCrypto, transcripts TranscriptLoader) *PreSigner {
	return &PreSigner{
		nodeID:      nodeID,
		cache:       cache,
		crypto:      consensusCrypto,
		transcripts: transcripts,
	}
}

// OnStateChange runs passes round-robin starting from the persisted
// cursor, returning the first non-empty ChangeSet. Each pass is a pure
// function of (pool snapshot, block reader); at most passCount passes run
// per call, bounding the work done per tick.
func (p *PreSigner) OnStateChange(pool Pool) ChangeSet {
	reader := p.cache.FinalizedBlock()
	start := p.cursor
	p.cursor = (p.cursor + 1) % passCount

	for i := 0; i < passCount; i++ {
		idx := (start + i) % passCount
		timer := metrics.NewTimer(metrics.OnStateChangeDuration.WithLabelValues(passNames[idx]))
		changes := p.runPass(idx, pool, reader)
		timer.Stop()
		if len(changes) > 0 {
			return changes
		}
	}
	return nil
}

// OnStateChangeForTest runs a single named pass directly, bypassing the
// round-robin cursor, so tests can exercise one pass deterministically
// regardless of the presigner's current position in the rotation.
func (p *PreSigner) OnStateChangeForTest(pool Pool, passName string) ChangeSet {
	reader := p.cache.FinalizedBlock()
	for idx, name := range passNames {
		if name == passName {
			return p.runPass(idx, pool, reader)
		}
	}
	return nil
}

func (p *PreSigner) runPass(idx int, pool Pool, reader BlockReader) ChangeSet {
	switch idx {
	case 0:
		return p.sendDealings(pool, reader)
	case 1:
		return p.validateDealings(pool, reader)
	case 2:
		return p.sendDealingSupport(pool, reader)
	case 3:
		return p.validateDealingSupport(pool, reader)
	case 4:
		return p.purgeArtifacts(pool, reader)
	default:
		return nil
	}
}

// sendDealings implements Pass 1.
func (p *PreSigner) sendDealings(pool Pool, reader BlockReader) ChangeSet {
	validated := pool.Validated().Dealings()
	issued := make(map[types.IDkgTranscriptID]bool, len(validated))
	for _, d := range validated {
		if d.DealerID == p.nodeID {
			issued[d.TranscriptID] = true
		}
	}

	var changes ChangeSet
	for _, params := range reader.RequestedTranscripts() {
		if !params.HasDealer(p.nodeID) || issued[params.TranscriptID] {
			continue
		}

		if !p.loadDependencies(params) {
			log.Debugf("skipping transcript %d: a dependency transcript could not be loaded", params.TranscriptID)
			continue
		}

		opaque, err := p.crypto.CreateDealing(params, p.nodeID)
		if err != nil {
			metrics.PreSignErrorsTotal.WithLabelValues("create_dealing").Inc()
			log.Warnf("create_dealing failed for transcript %d: %s", params.TranscriptID, err)
			continue
		}

		dealing := &types.EcdsaDealing{
			RequestedHeight:   reader.Height(),
			TranscriptID:      params.TranscriptID,
			DealerID:          p.nodeID,
			OpaqueDealingByes: opaque,
		}
		metrics.PreSignEventsTotal.WithLabelValues("dealing_sent").Inc()
		changes = append(changes, &AddToValidated{Dealing: dealing})
	}
	return changes
}

func (p *PreSigner) loadDependencies(params *types.IDkgTranscriptParams) bool {
	for _, depID := range params.Operation.Dependencies() {
		dep, ok := p.transcripts.CompletedTranscript(depID)
		if !ok {
			return false
		}
		if err := p.crypto.LoadTranscript(dep); err != nil {
			return false
		}
	}
	return true
}

// validateDealings implements Pass 2.
func (p *PreSigner) validateDealings(pool Pool, reader BlockReader) ChangeSet {
	requested := indexRequestedTranscripts(reader)
	unvalidated := pool.Unvalidated().Dealings()
	validatedKeys := dealingKeySet(pool.Validated().Dealings())

	duplicates := duplicateDealingKeys(unvalidated)

	var changes ChangeSet
	for _, d := range unvalidated {
		if duplicates[d.Key()] {
			changes = append(changes, &HandleInvalid{Dealing: d, Reason: reasonDuplicateDealingInBatch})
			continue
		}

		action := classify(d.RequestedHeight, d.TranscriptID, reader, requested)
		switch action.Kind {
		case ActionDrop:
			changes = append(changes, &RemoveUnvalidated{Dealing: d})
		case ActionDefer:
			// no change
		case ActionProcess:
			params := action.Params
			if !params.HasDealer(d.DealerID) {
				changes = append(changes, &HandleInvalid{Dealing: d, Reason: reasonUnexpectedDealer})
				continue
			}
			if validatedKeys[d.Key()] {
				changes = append(changes, &HandleInvalid{Dealing: d, Reason: reasonDuplicateDealing})
				continue
			}
			if err := p.crypto.VerifyDealingPublic(params, d); err != nil {
				if isPermanent(err) {
					changes = append(changes, &HandleInvalid{Dealing: d, Reason: err.Error()})
				}
				// transient: no change, retry next tick
				continue
			}
			changes = append(changes, &MoveToValidated{Dealing: d})
		}
	}
	return changes
}

// sendDealingSupport implements Pass 3.
func (p *PreSigner) sendDealingSupport(pool Pool, reader BlockReader) ChangeSet {
	requested := indexRequestedTranscripts(reader)
	validatedSupportKeys := supportKeySet(pool.Validated().DealingSupports())

	var changes ChangeSet
	for _, d := range pool.Validated().Dealings() {
		params, ok := requested[d.TranscriptID]
		if !ok {
			continue
		}
		if !params.HasReceiver(p.nodeID) {
			continue
		}
		if validatedSupportKeys[types.SupportKey{TranscriptID: d.TranscriptID, DealerID: d.DealerID, Signer: p.nodeID}] {
			continue
		}

		if err := p.crypto.VerifyDealingPrivate(params, d); err != nil {
			if isPermanent(err) {
				// A permanent failure here indicts the dealing
				// itself, not the support this pass would have
				// produced: a validated-pool artifact is marked
				// invalid mid-pass, a case the pool must handle
				// on re-entry the same as any other removal.
				changes = append(changes, &HandleInvalid{Dealing: d, Reason: err.Error()})
				metrics.PreSignErrorsTotal.WithLabelValues("verify_dealing_private").Inc()
			}
			continue
		}

		share, err := p.crypto.Sign(d, p.nodeID, params.RegistryVersion)
		if err != nil {
			metrics.PreSignErrorsTotal.WithLabelValues("sign").Inc()
			log.Warnf("sign failed for dealing %+v: %s", d.Key(), err)
			continue
		}

		support := &types.EcdsaDealingSupport{Content: *d, Signature: share}
		metrics.PreSignEventsTotal.WithLabelValues("support_sent").Inc()
		changes = append(changes, &AddToValidated{Support: support})
	}
	return changes
}

// validateDealingSupport implements Pass 4.
func (p *PreSigner) validateDealingSupport(pool Pool, reader BlockReader) ChangeSet {
	requested := indexRequestedTranscripts(reader)
	unvalidated := pool.Unvalidated().DealingSupports()
	validatedDealingKeys := dealingKeySet(pool.Validated().Dealings())
	validatedSupportKeys := supportKeySet(pool.Validated().DealingSupports())

	duplicates := duplicateSupportKeys(unvalidated)

	var changes ChangeSet
	for _, s := range unvalidated {
		if duplicates[s.Key()] {
			changes = append(changes, &HandleInvalid{Support: s, Reason: reasonDuplicateSupportInBatch})
			continue
		}

		action := classify(s.Content.RequestedHeight, s.Content.TranscriptID, reader, requested)
		switch action.Kind {
		case ActionDrop:
			changes = append(changes, &RemoveUnvalidated{Support: s})
		case ActionDefer:
			// no change
		case ActionProcess:
			params := action.Params
			if !params.HasReceiver(s.Signature.Signer) {
				changes = append(changes, &HandleInvalid{Support: s, Reason: reasonUnexpectedSigner})
				continue
			}
			if !validatedDealingKeys[supportToDealingKey(s.Key())] {
				// The dealing hasn't validated yet; the support
				// may still be valid once it does (scenario S5).
				continue
			}
			if validatedSupportKeys[s.Key()] {
				changes = append(changes, &HandleInvalid{Support: s, Reason: reasonDuplicateSupport})
				continue
			}
			if err := p.crypto.Verify(s, params.RegistryVersion); err != nil {
				changes = append(changes, &HandleInvalid{Support: s, Reason: err.Error()})
				continue
			}
			changes = append(changes, &MoveToValidated{Support: s})
		}
	}
	return changes
}

// purgeArtifacts implements Pass 5.
func (p *PreSigner) purgeArtifacts(pool Pool, reader BlockReader) ChangeSet {
	inProgress := make(map[types.IDkgTranscriptID]bool)
	for _, params := range reader.RequestedTranscripts() {
		inProgress[params.TranscriptID] = true
	}
	height := reader.Height()
	shouldPurge := func(requestedHeight types.Height, transcriptID types.IDkgTranscriptID) bool {
		return requestedHeight <= height && !inProgress[transcriptID]
	}

	var changes ChangeSet
	for _, d := range pool.Unvalidated().Dealings() {
		if shouldPurge(d.RequestedHeight, d.TranscriptID) {
			changes = append(changes, &RemoveUnvalidated{Dealing: d})
		}
	}
	for _, d := range pool.Validated().Dealings() {
		if shouldPurge(d.RequestedHeight, d.TranscriptID) {
			changes = append(changes, &RemoveValidated{Dealing: d})
		}
	}
	for _, s := range pool.Unvalidated().DealingSupports() {
		if shouldPurge(s.Content.RequestedHeight, s.Content.TranscriptID) {
			changes = append(changes, &RemoveUnvalidated{Support: s})
		}
	}
	for _, s := range pool.Validated().DealingSupports() {
		if shouldPurge(s.Content.RequestedHeight, s.Content.TranscriptID) {
			changes = append(changes, &RemoveValidated{Support: s})
		}
	}
	if len(changes) > 0 {
		metrics.PreSignEventsTotal.WithLabelValues("purged").Add(float64(len(changes)))
	}
	return changes
}

func dealingKeySet(dealings []*types.EcdsaDealing) map[types.DealingKey]bool {
	set := make(map[types.DealingKey]bool, len(dealings))
	for _, d := range dealings {
		set[d.Key()] = true
	}
	return set
}

func supportKeySet(supports []*types.EcdsaDealingSupport) map[types.SupportKey]bool {
	set := make(map[types.SupportKey]bool, len(supports))
	for _, s := range supports {
		set[s.Key()] = true
	}
	return set
}

// duplicateDealingKeys returns the set of DealingKeys appearing two or
// more times among dealings, so every message sharing that key can be
// marked invalid — a Byzantine peer must not be able to amplify work by
// flooding the unvalidated pool with copies of the same key.
func duplicateDealingKeys(dealings []*types.EcdsaDealing) map[types.DealingKey]bool {
	counts := make(map[types.DealingKey]int, len(dealings))
	for _, d := range dealings {
		counts[d.Key()]++
	}
	duplicates := make(map[types.DealingKey]bool)
	for key, count := range counts {
		if count >= 2 {
			duplicates[key] = true
		}
	}
	return duplicates
}

func duplicateSupportKeys(supports []*types.EcdsaDealingSupport) map[types.SupportKey]bool {
	counts := make(map[types.SupportKey]int, len(supports))
	for _, s := range supports {
		counts[s.Key()]++
	}
	duplicates := make(map[types.SupportKey]bool)
	for key, count := range counts {
		if count >= 2 {
			duplicates[key] = true
		}
	}
	return duplicates
}

// isPermanent reports whether err is (or wraps) a crypto.Error flagged
// replicated. A non-crypto error is treated as permanent: an unrecognized
// failure shape must not be silently retried forever.
func isPermanent(err error) bool {
	var cryptoErr *crypto.Error
	if errors.As(err, &cryptoErr) {
		return cryptoErr.IsReplicated()
	}
	return true
}

func supportToDealingKey(k types.SupportKey) types.DealingKey {
	return types.DealingKey{TranscriptID: k.TranscriptID, DealerID: k.DealerID}
}
