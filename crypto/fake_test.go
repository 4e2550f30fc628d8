package crypto_test

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/daglabs/replicad/crypto"
	"github.com/daglabs/replicad/types"
)

func testParams(transcriptID types.IDkgTranscriptID) *types.IDkgTranscriptParams {
	return &types.IDkgTranscriptParams{
		TranscriptID:          transcriptID,
		Dealers:               map[types.NodeId]struct{}{"A": {}},
		Receivers:             map[types.NodeId]struct{}{"B": {}},
		RegistryVersion:       1,
		Algorithm:             "test-algorithm",
		Operation:             types.OperationType{Kind: types.OperationRandom},
		CollectionThreshold:   1,
		VerificationThreshold: 1,
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	c, err := crypto.NewFakeConsensusCrypto("A", "B")
	if err != nil {
		t.Fatalf("NewFakeConsensusCrypto: %+v", err)
	}

	dealing := &types.EcdsaDealing{TranscriptID: 1, DealerID: "A", OpaqueDealingByes: []byte{0xAB, 0xCD}}
	share, err := c.Sign(dealing, "B", 1)
	if err != nil {
		t.Fatalf("Sign: %+v", err)
	}
	if share.Signer != "B" {
		t.Fatalf("expected share.Signer == B, got %s", share.Signer)
	}

	support := &types.EcdsaDealingSupport{Content: *dealing, Signature: share}
	if err := c.Verify(support, 1); err != nil {
		t.Fatalf("Verify of a genuine signature should succeed, got: %+v", err)
	}
}

func TestVerifyRejectsTamperedContent(t *testing.T) {
	c, err := crypto.NewFakeConsensusCrypto("A", "B")
	if err != nil {
		t.Fatalf("NewFakeConsensusCrypto: %+v", err)
	}

	dealing := &types.EcdsaDealing{TranscriptID: 1, DealerID: "A", OpaqueDealingByes: []byte{0xAB, 0xCD}}
	share, err := c.Sign(dealing, "B", 1)
	if err != nil {
		t.Fatalf("Sign: %+v", err)
	}

	tampered := types.EcdsaDealing{TranscriptID: 1, DealerID: "A", OpaqueDealingByes: []byte{0xFF, 0xFF}}
	support := &types.EcdsaDealingSupport{Content: tampered, Signature: share}
	if err := c.Verify(support, 1); err == nil {
		t.Fatalf("expected Verify to reject a signature over tampered content")
	}
}

func TestVerifyRejectsUnknownSigner(t *testing.T) {
	c, err := crypto.NewFakeConsensusCrypto("A")
	if err != nil {
		t.Fatalf("NewFakeConsensusCrypto: %+v", err)
	}

	dealing := types.EcdsaDealing{TranscriptID: 1, DealerID: "A", OpaqueDealingByes: []byte{0x01}}
	support := &types.EcdsaDealingSupport{
		Content:   dealing,
		Signature: types.MultiSignatureShare{Signer: "ghost", ShareByes: []byte{0x00}},
	}
	err = c.Verify(support, 1)
	if err == nil {
		t.Fatalf("expected Verify to reject a signer with no known key")
	}
	var cryptoErr *crypto.Error
	if !errors.As(err, &cryptoErr) {
		t.Fatalf("expected a *crypto.Error, got %T: %v", err, err)
	}
	if !cryptoErr.IsReplicated() {
		t.Fatalf("expected an unknown signer to be a permanent failure")
	}
}

func TestCreateDealingRespectsFailDealers(t *testing.T) {
	c, err := crypto.NewFakeConsensusCrypto("A")
	if err != nil {
		t.Fatalf("NewFakeConsensusCrypto: %+v", err)
	}
	c.FailDealers = map[types.NodeId]bool{"A": true}

	_, err = c.CreateDealing(testParams(1), "A")
	if err == nil {
		t.Fatalf("expected CreateDealing to fail for a configured-to-fail dealer")
	}
	var cryptoErr *crypto.Error
	if !errors.As(err, &cryptoErr) || !cryptoErr.IsReplicated() {
		t.Fatalf("expected a permanent crypto.Error, got %+v", err)
	}
}

func TestCreateTranscriptRequiresCollectionThreshold(t *testing.T) {
	c, err := crypto.NewFakeConsensusCrypto("A")
	if err != nil {
		t.Fatalf("NewFakeConsensusCrypto: %+v", err)
	}
	params := testParams(1)
	params.CollectionThreshold = 2

	_, err = c.CreateTranscript(params, map[types.NodeId]*types.MultiSignedDealing{
		"A": {Content: types.EcdsaDealing{TranscriptID: 1, DealerID: "A"}},
	})
	if err == nil {
		t.Fatalf("expected CreateTranscript to fail with only 1 of 2 required completed dealings")
	}
}
