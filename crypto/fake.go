package crypto

import (
	"sort"
	"sync"

	"github.com/kaspanet/go-secp256k1"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/daglabs/replicad/types"
)

// FakeConsensusCrypto is a test and harness implementation of
// ConsensusCrypto. Its IDKG half is a deterministic, opaque stand-in (real
// IDKG math is out of scope for this core); its multi-signature half signs
// and verifies real Schnorr signatures over secp256k1, keyed per node, so
// support-aggregation and threshold logic exercise genuine cryptography
// rather than a signature-free stub.
type FakeConsensusCrypto struct {
	mu         sync.Mutex
	keys       map[types.NodeId]*secp256k1.PrivateKey
	transcripts map[types.IDkgTranscriptID]*types.IDkgTranscript

	// FailDealers, if set, makes CreateDealing fail permanently for the
	// named dealers; used by tests to exercise the "skip transcript on
	// failure" path of pass 1.
	FailDealers map[types.NodeId]bool
}

// NewFakeConsensusCrypto builds a FakeConsensusCrypto with a freshly
// generated signing key for each of the given nodes.
func NewFakeConsensusCrypto(nodes ...types.NodeId) (*FakeConsensusCrypto, error) {
	keys := make(map[types.NodeId]*secp256k1.PrivateKey, len(nodes))
	for _, node := range nodes {
		key, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, errors.Wrapf(err, "generating key for node %s", node)
		}
		keys[node] = key
	}
	return &FakeConsensusCrypto{
		keys:        keys,
		transcripts: make(map[types.IDkgTranscriptID]*types.IDkgTranscript),
	}, nil
}

// CreateDealing implements IDkg with a deterministic opaque payload: the
// blake2b hash of the transcript id, dealer, and operation kind. Real IDKG
// dealings are far larger and carry actual key-share material; this
// stands in for that shape without implementing the math.
func (c *FakeConsensusCrypto) CreateDealing(params *types.IDkgTranscriptParams, dealer types.NodeId) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FailDealers[dealer] {
		return nil, Permanent(errors.Errorf("dealer %s is configured to fail", dealer))
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, Transient(errors.Wrap(err, "constructing blake2b hasher"))
	}
	_, _ = h.Write([]byte(dealer))
	_, _ = h.Write(uint64Bytes(uint64(params.TranscriptID)))
	_, _ = h.Write([]byte(params.Operation.Kind.String()))
	return h.Sum(nil), nil
}

// VerifyDealingPublic accepts any non-empty opaque dealing payload. A real
// implementation would check proof-of-correct-sharing here.
func (c *FakeConsensusCrypto) VerifyDealingPublic(params *types.IDkgTranscriptParams, dealing *types.EcdsaDealing) error {
	if len(dealing.OpaqueDealingByes) == 0 {
		return Permanent(errors.New("empty dealing payload"))
	}
	return nil
}

// VerifyDealingPrivate accepts any non-empty opaque dealing payload. A
// real implementation would decrypt and check this receiver's share here.
func (c *FakeConsensusCrypto) VerifyDealingPrivate(params *types.IDkgTranscriptParams, dealing *types.EcdsaDealing) error {
	if len(dealing.OpaqueDealingByes) == 0 {
		return Permanent(errors.New("empty dealing payload"))
	}
	return nil
}

// LoadTranscript records a completed transcript for later reshare/product
// operations to depend on.
func (c *FakeConsensusCrypto) LoadTranscript(transcript *types.IDkgTranscript) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcripts[transcript.TranscriptID] = transcript
	return nil
}

// CreateTranscript builds an IDkgTranscript from completedDealings once
// the caller has confirmed the collection threshold is met.
func (c *FakeConsensusCrypto) CreateTranscript(params *types.IDkgTranscriptParams, completedDealings map[types.NodeId]*types.MultiSignedDealing) (*types.IDkgTranscript, error) {
	if len(completedDealings) < params.CollectionThreshold {
		return nil, Permanent(errors.Errorf("have %d completed dealings, need %d", len(completedDealings), params.CollectionThreshold))
	}
	return &types.IDkgTranscript{
		TranscriptID:      params.TranscriptID,
		Params:            params,
		CompletedDealings: completedDealings,
	}, nil
}

// dealingHash is the message a support's Schnorr signature is over.
func dealingHash(dealing *types.EcdsaDealing) (*secp256k1.Hash, error) {
	encoded, err := dealing.MarshalBinary()
	if err != nil {
		return nil, err
	}
	digest := blake2b.Sum256(encoded)
	hash := secp256k1.Hash(digest)
	return &hash, nil
}

// Sign implements MultiSig with a real Schnorr signature over
// dealing's canonical encoding, under signer's key.
func (c *FakeConsensusCrypto) Sign(dealing *types.EcdsaDealing, signer types.NodeId, registryVersion types.RegistryVersion) (types.MultiSignatureShare, error) {
	c.mu.Lock()
	key, ok := c.keys[signer]
	c.mu.Unlock()
	if !ok {
		return types.MultiSignatureShare{}, Permanent(errors.Errorf("no signing key for node %s", signer))
	}

	hash, err := dealingHash(dealing)
	if err != nil {
		return types.MultiSignatureShare{}, Transient(errors.Wrap(err, "hashing dealing"))
	}
	signature, err := key.SchnorrSign(hash)
	if err != nil {
		return types.MultiSignatureShare{}, Transient(errors.Wrap(err, "schnorr signing dealing"))
	}

	return types.MultiSignatureShare{
		Signer:    signer,
		ShareByes: signature.Serialize()[:],
	}, nil
}

// Verify implements MultiSig by checking support.Signature against
// support.Content under the signer's public key.
func (c *FakeConsensusCrypto) Verify(support *types.EcdsaDealingSupport, registryVersion types.RegistryVersion) error {
	c.mu.Lock()
	key, ok := c.keys[support.Signature.Signer]
	c.mu.Unlock()
	if !ok {
		return Permanent(errors.Errorf("no signing key for node %s", support.Signature.Signer))
	}
	publicKey, err := key.SchnorrPublicKey()
	if err != nil {
		return Transient(errors.Wrap(err, "deriving public key"))
	}

	hash, err := dealingHash(&support.Content)
	if err != nil {
		return Transient(errors.Wrap(err, "hashing dealing"))
	}
	signature, err := secp256k1.DeserializeSchnorrSignature(support.Signature.ShareByes)
	if err != nil {
		return Permanent(errors.Wrap(err, "deserializing share"))
	}
	if !signature.Verify(hash, publicKey) {
		return Permanent(errors.Errorf("invalid signature from %s", support.Signature.Signer))
	}
	return nil
}

// Aggregate combines shares into a multi-signature. The fake
// implementation concatenates the shares in signer order without
// re-verifying them; a real multi-sig scheme would compress them into a
// single constant-size signature, but the core only ever treats the result
// as an opaque blob.
func (c *FakeConsensusCrypto) Aggregate(dealing *types.EcdsaDealing, shares []types.MultiSignatureShare, registryVersion types.RegistryVersion) ([]byte, error) {
	if len(shares) == 0 {
		return nil, Permanent(errors.New("no shares to aggregate"))
	}
	sorted := make([]types.MultiSignatureShare, len(shares))
	copy(sorted, shares)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Signer < sorted[j].Signer })
	aggregated := make([]byte, 0, len(shares)*65)
	for _, share := range sorted {
		aggregated = appendShare(aggregated, share)
	}
	return aggregated, nil
}

func appendShare(buf []byte, share types.MultiSignatureShare) []byte {
	buf = append(buf, byte(len(share.Signer)))
	buf = append(buf, []byte(share.Signer)...)
	buf = append(buf, share.ShareByes...)
	return buf
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v >> (8 * i))
	}
	return b
}
