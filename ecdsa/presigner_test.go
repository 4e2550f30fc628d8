package ecdsa_test

import (
	"testing"

	"github.com/daglabs/replicad/crypto"
	"github.com/daglabs/replicad/ecdsa"
	"github.com/daglabs/replicad/ecdsa/pool"
	"github.com/daglabs/replicad/types"
)

const (
	nodeLocal  = types.NodeId("local")
	nodeB      = types.NodeId("B")
	nodeC      = types.NodeId("C")
)

func newPreSigner(t *testing.T) (*ecdsa.PreSigner, *pool.MemoryPool, *fakeBlockReader) {
	t.Helper()
	fakeCrypto, err := crypto.NewFakeConsensusCrypto(nodeLocal, nodeB, nodeC)
	if err != nil {
		t.Fatalf("NewFakeConsensusCrypto: %+v", err)
	}
	reader := &fakeBlockReader{}
	cache := &fakeConsensusPoolCache{reader: reader}
	memPool := pool.NewMemoryPool()
	presigner := ecdsa.NewPreSigner(nodeLocal, cache, fakeCrypto, noopTranscriptLoader{})
	return presigner, memPool, reader
}

func countAddToValidated(changes ecdsa.ChangeSet) int {
	n := 0
	for _, c := range changes {
		if _, ok := c.(*ecdsa.AddToValidated); ok {
			n++
		}
	}
	return n
}

// TestSendDealings implements scenario S2.
func TestSendDealings(t *testing.T) {
	presigner, memPool, reader := newPreSigner(t)

	memPool.ApplyChanges(ecdsa.ChangeSet{&ecdsa.AddToValidated{Dealing: &types.EcdsaDealing{
		TranscriptID: 1, DealerID: nodeLocal, OpaqueDealingByes: []byte{0x01},
	}}})

	reader.height = 10
	reader.requested = []*types.IDkgTranscriptParams{
		params(1, []types.NodeId{nodeLocal}, nil),
		params(4, []types.NodeId{nodeLocal}, nil),
		params(5, []types.NodeId{nodeLocal}, nil),
	}

	changes := runPassUntil(presigner, memPool, "send_dealings")
	if countAddToValidated(changes) != 2 {
		t.Fatalf("expected exactly 2 AddToValidated entries (transcripts 4 and 5), got %d: %+v", len(changes), changes)
	}
	for _, c := range changes {
		add := c.(*ecdsa.AddToValidated)
		if add.Dealing.TranscriptID != 4 && add.Dealing.TranscriptID != 5 {
			t.Fatalf("unexpected transcript %d in send-dealings output", add.Dealing.TranscriptID)
		}
	}
}

// TestDuplicateDealingInBatch implements scenario S3.
func TestDuplicateDealingInBatch(t *testing.T) {
	_, memPool, reader := newPreSigner(t)
	fakeCrypto, err := crypto.NewFakeConsensusCrypto(nodeLocal, nodeB, nodeC)
	if err != nil {
		t.Fatalf("NewFakeConsensusCrypto: %+v", err)
	}
	presigner := ecdsa.NewPreSigner(nodeLocal, &fakeConsensusPoolCache{reader: reader}, fakeCrypto, noopTranscriptLoader{})

	dealingB1 := &types.EcdsaDealing{TranscriptID: 2, DealerID: nodeB, OpaqueDealingByes: []byte{0x01}}
	dealingB2 := &types.EcdsaDealing{TranscriptID: 2, DealerID: nodeB, OpaqueDealingByes: []byte{0x02}}
	dealingC := &types.EcdsaDealing{TranscriptID: 2, DealerID: nodeC, OpaqueDealingByes: []byte{0x03}}
	memPool.AddUnvalidatedDealing(dealingB1)
	memPool.AddUnvalidatedDealing(dealingB2)
	memPool.AddUnvalidatedDealing(dealingC)

	reader.height = 5
	reader.requested = []*types.IDkgTranscriptParams{params(2, []types.NodeId{nodeB, nodeC}, nil)}

	changes := runValidateDealings(t, presigner, memPool)

	var invalidCount int
	var movedC bool
	for _, c := range changes {
		switch v := c.(type) {
		case *ecdsa.HandleInvalid:
			if v.Dealing != dealingB1 && v.Dealing != dealingB2 {
				t.Fatalf("unexpected HandleInvalid target: %+v", v.Dealing)
			}
			invalidCount++
		case *ecdsa.MoveToValidated:
			if v.Dealing == dealingC {
				movedC = true
			}
		}
	}
	if invalidCount != 2 {
		t.Fatalf("expected both B dealings to be HandleInvalid, got %d invalid entries: %+v", invalidCount, changes)
	}
	if !movedC {
		t.Fatalf("expected the C dealing to MoveToValidated: %+v", changes)
	}
}

// TestUnexpectedDealer implements scenario S4.
func TestUnexpectedDealer(t *testing.T) {
	_, memPool, reader := newPreSigner(t)
	fakeCrypto, err := crypto.NewFakeConsensusCrypto(nodeLocal, nodeB, nodeC)
	if err != nil {
		t.Fatalf("NewFakeConsensusCrypto: %+v", err)
	}
	presigner := ecdsa.NewPreSigner(nodeLocal, &fakeConsensusPoolCache{reader: reader}, fakeCrypto, noopTranscriptLoader{})

	dealing := &types.EcdsaDealing{TranscriptID: 2, DealerID: nodeB, OpaqueDealingByes: []byte{0x01}}
	memPool.AddUnvalidatedDealing(dealing)

	reader.height = 5
	reader.requested = []*types.IDkgTranscriptParams{params(2, []types.NodeId{nodeC}, nil)}

	changes := runValidateDealings(t, presigner, memPool)
	if len(changes) != 1 {
		t.Fatalf("expected exactly one change, got %+v", changes)
	}
	invalid, ok := changes[0].(*ecdsa.HandleInvalid)
	if !ok || invalid.Dealing != dealing {
		t.Fatalf("expected HandleInvalid for the unexpected dealer, got %+v", changes[0])
	}
}

// TestSupportDeferredWithoutDealing implements scenario S5.
func TestSupportDeferredWithoutDealing(t *testing.T) {
	_, memPool, reader := newPreSigner(t)
	fakeCrypto, err := crypto.NewFakeConsensusCrypto(nodeLocal, nodeB, nodeC)
	if err != nil {
		t.Fatalf("NewFakeConsensusCrypto: %+v", err)
	}
	presigner := ecdsa.NewPreSigner(nodeLocal, &fakeConsensusPoolCache{reader: reader}, fakeCrypto, noopTranscriptLoader{})

	dealing := types.EcdsaDealing{TranscriptID: 3, DealerID: nodeB, OpaqueDealingByes: []byte{0x01}}
	share, err := fakeCrypto.Sign(&dealing, nodeC, 1)
	if err != nil {
		t.Fatalf("Sign: %+v", err)
	}
	support := &types.EcdsaDealingSupport{Content: dealing, Signature: share}
	memPool.AddUnvalidatedDealingSupport(support)

	reader.height = 5
	reader.requested = []*types.IDkgTranscriptParams{params(3, []types.NodeId{nodeB}, []types.NodeId{nodeC})}

	changes := presigner.OnStateChangeForTest(memPool, "validate_support")
	if len(changes) != 0 {
		t.Fatalf("expected no change while the dealing hasn't validated yet, got %+v", changes)
	}

	// Once the dealing validates, the support should move on a later tick.
	memPool.ApplyChanges(ecdsa.ChangeSet{&ecdsa.AddToValidated{Dealing: &dealing}})
	changes = presigner.OnStateChangeForTest(memPool, "validate_support")
	if len(changes) != 1 {
		t.Fatalf("expected the support to MoveToValidated once its dealing exists, got %+v", changes)
	}
	if _, ok := changes[0].(*ecdsa.MoveToValidated); !ok {
		t.Fatalf("expected MoveToValidated, got %+v", changes[0])
	}
}

// TestPurge implements scenario S6.
func TestPurge(t *testing.T) {
	_, memPool, reader := newPreSigner(t)
	fakeCrypto, err := crypto.NewFakeConsensusCrypto(nodeLocal)
	if err != nil {
		t.Fatalf("NewFakeConsensusCrypto: %+v", err)
	}
	presigner := ecdsa.NewPreSigner(nodeLocal, &fakeConsensusPoolCache{reader: reader}, fakeCrypto, noopTranscriptLoader{})

	expired := &types.EcdsaDealing{RequestedHeight: 20, TranscriptID: 2, DealerID: nodeB, OpaqueDealingByes: []byte{0x01}}
	retained := &types.EcdsaDealing{RequestedHeight: 200, TranscriptID: 2, DealerID: nodeC, OpaqueDealingByes: []byte{0x02}}
	memPool.ApplyChanges(ecdsa.ChangeSet{
		&ecdsa.AddToValidated{Dealing: expired},
		&ecdsa.AddToValidated{Dealing: retained},
	})

	reader.height = 100
	reader.requested = []*types.IDkgTranscriptParams{params(1, nil, nil)}

	changes := presigner.OnStateChangeForTest(memPool, "purge")
	if len(changes) != 1 {
		t.Fatalf("expected exactly one purge removal, got %+v", changes)
	}
	remove, ok := changes[0].(*ecdsa.RemoveValidated)
	if !ok || remove.Dealing != expired {
		t.Fatalf("expected RemoveValidated(expired), got %+v", changes[0])
	}

	memPool.ApplyChanges(changes)
	remaining := memPool.Validated().Dealings()
	if len(remaining) != 1 || remaining[0] != retained {
		t.Fatalf("expected only the retained dealing to survive purge, got %+v", remaining)
	}
}

// runPassUntil drives OnStateChange until it returns a non-empty
// ChangeSet or exhausts the round (5 calls is always enough to visit
// every pass at least once from any starting cursor).
func runPassUntil(p *ecdsa.PreSigner, memPool *pool.MemoryPool, _ string) ecdsa.ChangeSet {
	for i := 0; i < 5; i++ {
		if changes := p.OnStateChange(memPool); len(changes) > 0 {
			return changes
		}
	}
	return nil
}

func runValidateDealings(t *testing.T, p *ecdsa.PreSigner, memPool *pool.MemoryPool) ecdsa.ChangeSet {
	t.Helper()
	return p.OnStateChangeForTest(memPool, "validate_dealings")
}
