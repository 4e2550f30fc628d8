// Package crypto defines the cryptographic boundary the pre-signer and
// transcript builder consume: opaque IDKG dealing primitives, plus a
// multi-signature layer used to support and aggregate those dealings. The
// IDKG primitives themselves stay opaque byte blobs; only the multi-
// signature layer gets a concrete, secp256k1-backed implementation, since
// multi-signatures are ordinary Schnorr math rather than IDKG-specific.
package crypto

import (
	"github.com/daglabs/replicad/types"
)

// Error is the tagged error every crypto operation returns. Transient is
// the negation of the consensus-layer "is_replicated()" bit: true means the
// failure is local and retriable, false means every correct replica would
// observe the same failure and the artifact must be rejected outright.
type Error struct {
	Err       error
	Transient bool
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsReplicated reports whether every correct replica evaluating this
// operation would hit the same error (a permanent failure), as opposed to
// a transient, locally-recoverable one.
func (e *Error) IsReplicated() bool {
	return !e.Transient
}

// Permanent builds a crypto.Error that every correct replica would agree
// on (is_replicated() == true).
func Permanent(err error) *Error {
	return &Error{Err: err, Transient: false}
}

// Transient builds a crypto.Error local to this replica, safe to retry.
func Transient(err error) *Error {
	return &Error{Err: err, Transient: true}
}

// IDkg is the IDKG dealing/verification/transcript-construction boundary.
// Every method treats the dealing payload as an opaque blob: the core
// never interprets opaque_dealing_bytes itself.
type IDkg interface {
	// CreateDealing produces this replica's dealing for params. Returns
	// a crypto.Error on failure; dependency transcripts referenced by
	// params.Operation must already be loadable via LoadTranscript.
	CreateDealing(params *types.IDkgTranscriptParams, dealer types.NodeId) ([]byte, error)

	// VerifyDealingPublic performs the publicly-checkable half of
	// dealing verification (no private key material required).
	VerifyDealingPublic(params *types.IDkgTranscriptParams, dealing *types.EcdsaDealing) error

	// VerifyDealingPrivate performs the privately-checkable half of
	// dealing verification, requiring the local node's share of key
	// material for params.Receivers.
	VerifyDealingPrivate(params *types.IDkgTranscriptParams, dealing *types.EcdsaDealing) error

	// LoadTranscript loads a previously completed transcript so later
	// operations that depend on it (reshares, products) can proceed.
	// Returns a crypto.Error on failure; failing to load a dependency
	// means the transcript that depends on it cannot be dealt into yet.
	LoadTranscript(transcript *types.IDkgTranscript) error

	// CreateTranscript combines completedDealings into the final
	// transcript once params.CollectionThreshold dealings are signed.
	CreateTranscript(params *types.IDkgTranscriptParams, completedDealings map[types.NodeId]*types.MultiSignedDealing) (*types.IDkgTranscript, error)
}

// MultiSig is the multi-signature sign/verify/aggregate boundary used to
// support dealings and combine supports into a completed dealing.
type MultiSig interface {
	// Sign produces signer's share over dealing.
	Sign(dealing *types.EcdsaDealing, signer types.NodeId, registryVersion types.RegistryVersion) (types.MultiSignatureShare, error)

	// Verify checks support's share against dealing under
	// registryVersion's key material.
	Verify(support *types.EcdsaDealingSupport, registryVersion types.RegistryVersion) error

	// Aggregate combines shares over the same dealing into a single
	// multi-signature, once len(shares) >= the caller's threshold.
	Aggregate(dealing *types.EcdsaDealing, shares []types.MultiSignatureShare, registryVersion types.RegistryVersion) ([]byte, error)
}

// ConsensusCrypto bundles the IDKG and multi-signature boundaries into the
// single collaborator the pre-signer and transcript builder depend on.
type ConsensusCrypto interface {
	IDkg
	MultiSig
}
