// Package ecdsa implements the threshold-ECDSA pre-signer: it drives the
// interactive distributed key generation (IDKG) sub-protocol by producing,
// validating, supporting, aggregating, and garbage-collecting dealings and
// dealing supports against an artifact pool shared with a gossip layer.
//
// The package never mutates the pool directly. Every pass is a pure
// function from a pool snapshot and a block reader to a ChangeSet; the
// pool (external, supplied by the caller) applies the ChangeSet
// atomically.
package ecdsa

import "github.com/daglabs/replicad/types"

// PoolSection exposes the dealings and dealing supports held in one half
// (unvalidated or validated) of the artifact pool. Iteration order is
// unspecified; callers that need a deterministic order impose one
// themselves. The duplicate-in-batch detection in validateDealings counts
// keys, so its result does not depend on the order.
type PoolSection interface {
	Dealings() []*types.EcdsaDealing
	DealingSupports() []*types.EcdsaDealingSupport
}

// Pool is the artifact pool view the pre-signer reads from and writes to
// (via ChangeSet only). Implementations must provide snapshot semantics:
// within one OnStateChange call, repeated iteration over the same half
// must return consistent results.
type Pool interface {
	Unvalidated() PoolSection
	Validated() PoolSection
}

// BlockReader is a view over the latest finalized block.
type BlockReader interface {
	Height() types.Height
	RequestedTranscripts() []*types.IDkgTranscriptParams
}

// ConsensusPoolCache supplies the latest finalized block reader.
type ConsensusPoolCache interface {
	FinalizedBlock() BlockReader
}

// ChangeAction is one mutation in a ChangeSet. The pre-signer never
// applies these itself; it only ever returns them for the pool to apply
// atomically. Within a single ChangeSet, order is insignificant to
// correctness.
type ChangeAction interface {
	isChangeAction()
}

// AddToValidated adds a brand-new artifact straight into the validated
// pool (used when this replica itself produced the artifact, so it never
// needs independent validation).
type AddToValidated struct {
	Dealing *types.EcdsaDealing
	Support *types.EcdsaDealingSupport
}

// MoveToValidated moves an artifact already present in the unvalidated
// pool into the validated pool.
type MoveToValidated struct {
	Dealing *types.EcdsaDealing
	Support *types.EcdsaDealingSupport
}

// RemoveUnvalidated removes an artifact from the unvalidated pool without
// marking it invalid (used by Purge).
type RemoveUnvalidated struct {
	Dealing *types.EcdsaDealing
	Support *types.EcdsaDealingSupport
}

// RemoveValidated removes an artifact from the validated pool (used by
// Purge).
type RemoveValidated struct {
	Dealing *types.EcdsaDealing
	Support *types.EcdsaDealingSupport
}

// HandleInvalid marks an artifact invalid, with a human-readable reason,
// and removes it from whichever half of the pool holds it. Passes 2 and 4
// emit it for unvalidated artifacts; pass 3 emits it for a validated
// dealing that fails private verification. No artifact ever moves back to
// Unvalidated once removed; Removed is terminal.
type HandleInvalid struct {
	Dealing *types.EcdsaDealing
	Support *types.EcdsaDealingSupport
	Reason  string
}

func (*AddToValidated) isChangeAction()     {}
func (*MoveToValidated) isChangeAction()    {}
func (*RemoveUnvalidated) isChangeAction()  {}
func (*RemoveValidated) isChangeAction()    {}
func (*HandleInvalid) isChangeAction()      {}

// ChangeSet is an ordered batch of mutations to the artifact pool,
// produced by one pre-signer pass.
type ChangeSet []ChangeAction
