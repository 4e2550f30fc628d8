package payload

import (
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/daglabs/replicad/registry"
	"github.com/daglabs/replicad/types"
)

const testSubnetID = SubnetID("subnet-1")

func newTestBuilder(t *testing.T, ingressCap, xnetCap uint64) (*Builder, *types.ValidationContext) {
	t.Helper()

	client := registry.NewStaticClient()
	client.Set(string(testSubnetID), 1, registry.SubnetRecord{
		MaxBlockPayloadSize:       MaxXNetPayloadInBytes,
		MaxIngressBytesPerMessage: 0,
	})

	builder := NewBuilder(testSubnetID, client,
		&fakeIngressSelector{capacity: ingressCap},
		&fakeXNetBuilder{capacity: xnetCap},
		&fakeSelfValidatingBuilder{size: 1024},
	)

	ctx := &types.ValidationContext{
		CertifiedHeight: 0,
		RegistryVersion: 1,
		Time:            time.Unix(1_700_000_000, 0),
	}
	return builder, ctx
}

// TestPayloadSizeTieBreak implements scenario S1: at an even height xnet
// is reserved first (producing a ~3/4 xnet, ~1/4 ingress split under a
// shared budget), at an odd height ingress is reserved first (the
// opposite split), and a hand-built 3/4-ingress-plus-3/4-xnet payload is
// rejected as too big (checked at height 1; validation does not depend on
// height parity).
func TestPayloadSizeTieBreak(t *testing.T) {
	const threeQuarterish = 3*512*1024 - 1000 // "3*512 KiB - 1000 B" from the scenario
	const budget = uint64(MaxXNetPayloadInBytes)

	builder, ctx := newTestBuilder(t, threeQuarterish, threeQuarterish)

	even, err := builder.GetPayload(0, nil, nil, ctx)
	if err != nil {
		t.Fatalf("GetPayload(height=0): %+v", err)
	}
	if even.XNet.ByteSize() != threeQuarterish {
		t.Fatalf("even height: expected xnet reserved first at capacity %d, got %d", threeQuarterish, even.XNet.ByteSize())
	}
	wantIngressEven := budget - threeQuarterish
	if even.Ingress.ByteSize() != wantIngressEven {
		t.Fatalf("even height: expected ingress = budget - xnet = %d, got %d", wantIngressEven, even.Ingress.ByteSize())
	}

	odd, err := builder.GetPayload(1, nil, nil, ctx)
	if err != nil {
		t.Fatalf("GetPayload(height=1): %+v", err)
	}
	if odd.Ingress.ByteSize() != threeQuarterish {
		t.Fatalf("odd height: expected ingress reserved first at capacity %d, got %d", threeQuarterish, odd.Ingress.ByteSize())
	}
	wantXNetOdd := budget - threeQuarterish
	if odd.XNet.ByteSize() != wantXNetOdd {
		t.Fatalf("odd height: expected xnet = budget - ingress = %d, got %d", wantXNetOdd, odd.XNet.ByteSize())
	}

	if err := builder.ValidatePayload(1, odd, nil, ctx); err != nil {
		t.Fatalf("expected the ingress-heavy split to validate, got %+v", err)
	}

	oversized := &types.BatchPayload{
		Ingress: &fakeIngressPayload{size: threeQuarterish},
		XNet:    &fakeXNetPayload{size: threeQuarterish},
		SelfValidating: &fakeSelfValidatingPayload{size: 0},
	}
	err = builder.ValidatePayload(1, oversized, nil, ctx)
	if err == nil {
		t.Fatal("expected a 3/4 + 3/4 payload to be rejected as too big")
	}
	var tooBig *PayloadTooBigError
	if !asPayloadTooBig(err, &tooBig) {
		t.Fatalf("expected *PermanentError wrapping *PayloadTooBigError, got %s", spew.Sdump(err))
	}
}

func asPayloadTooBig(err error, target **PayloadTooBigError) bool {
	permErr, ok := err.(*PermanentError)
	if !ok {
		return false
	}
	tooBig, ok := permErr.Err.(*PayloadTooBigError)
	if !ok {
		return false
	}
	*target = tooBig
	return true
}

// TestGetPayloadThenValidate implements invariant 2: validating a payload
// this builder just produced always succeeds, when the selectors return
// data fitting the budget.
func TestGetPayloadThenValidate(t *testing.T) {
	builder, ctx := newTestBuilder(t, 400*1024, 400*1024)

	for height := types.Height(0); height < 4; height++ {
		batch, err := builder.GetPayload(height, nil, nil, ctx)
		if err != nil {
			t.Fatalf("GetPayload(height=%d): %+v", height, err)
		}
		if err := builder.ValidatePayload(height, batch, nil, ctx); err != nil {
			t.Fatalf("ValidatePayload(height=%d) rejected own GetPayload output: %+v", height, err)
		}
	}
}

// TestGetPayloadDeterministic implements invariant 3: GetPayload called
// twice with the same arguments against deterministic selectors yields
// byte-identical output.
func TestGetPayloadDeterministic(t *testing.T) {
	builder, ctx := newTestBuilder(t, 777*1024, 333*1024)

	first, err := builder.GetPayload(5, nil, nil, ctx)
	if err != nil {
		t.Fatalf("GetPayload (first): %+v", err)
	}
	second, err := builder.GetPayload(5, nil, nil, ctx)
	if err != nil {
		t.Fatalf("GetPayload (second): %+v", err)
	}

	if first.Ingress.ByteSize() != second.Ingress.ByteSize() || first.XNet.ByteSize() != second.XNet.ByteSize() {
		t.Fatalf("non-deterministic output: first=%+v second=%+v", first, second)
	}
}

// TestValidationIgnoresNonCanonicalXNetByteSize covers the open question
// in the design notes: validation must use the canonical byte count
// returned by the xnet validator, never xnet.ByteSize() directly.
func TestValidationIgnoresNonCanonicalXNetByteSize(t *testing.T) {
	client := registry.NewStaticClient()
	client.Set(string(testSubnetID), 1, registry.SubnetRecord{MaxBlockPayloadSize: MaxXNetPayloadInBytes})

	xnetBuilder := &fakeXNetBuilder{canonicalSize: 1024}
	builder := NewBuilder(testSubnetID, client,
		&fakeIngressSelector{capacity: 1024},
		xnetBuilder,
		&fakeSelfValidatingBuilder{size: 0},
	)
	ctx := &types.ValidationContext{RegistryVersion: 1, Time: time.Unix(0, 0)}

	batch := &types.BatchPayload{
		Ingress:        &fakeIngressPayload{size: 1024},
		XNet:           &fakeXNetPayload{size: 1024, reportedByteSize: MaxXNetPayloadInBytes * 10},
		SelfValidating: &fakeSelfValidatingPayload{size: 0},
	}

	if err := builder.ValidatePayload(2, batch, nil, ctx); err != nil {
		t.Fatalf("expected validation to use the canonical xnet size (1024), not ByteSize(); got %+v", err)
	}
}

// TestCacheGCMonotone implements invariant 6: after GetPayload, every
// cache key's height is at least the minimum ancestor height passed in.
func TestCacheGCMonotone(t *testing.T) {
	builder, ctx := newTestBuilder(t, 1024, 1024)

	oldPayload := &types.BatchPayload{
		Ingress:        &fakeIngressPayload{size: 0, ids: []types.IngressMessageID{{0x01}}},
		XNet:           &fakeXNetPayload{size: 0},
		SelfValidating: &fakeSelfValidatingPayload{size: 0},
	}
	past := []types.PastPayload{
		{Height: 10, Time: ctx.Time, Payload: oldPayload},
	}

	if _, err := builder.GetPayload(11, nil, past, ctx); err != nil {
		t.Fatalf("GetPayload: %+v", err)
	}
	if builder.cache.size() == 0 {
		t.Fatal("expected the ancestor's ingress set to be cached")
	}

	// A later call whose oldest ancestor is height 50 must GC away the
	// height-10 entry.
	newerPast := []types.PastPayload{
		{Height: 50, Time: ctx.Time, Payload: oldPayload},
	}
	if _, err := builder.GetPayload(51, nil, newerPast, ctx); err != nil {
		t.Fatalf("GetPayload: %+v", err)
	}
	for key := range builder.cache.entries {
		if key.height < 50 {
			t.Fatalf("expected no cache entries below height 50, found one at height %d", key.height)
		}
	}
}

// TestRegistryUnavailableIsTransient covers the registry-missing path.
func TestRegistryUnavailableIsTransient(t *testing.T) {
	client := registry.NewStaticClient()
	builder := NewBuilder(testSubnetID, client,
		&fakeIngressSelector{capacity: 1024},
		&fakeXNetBuilder{capacity: 1024},
		&fakeSelfValidatingBuilder{size: 0},
	)
	ctx := &types.ValidationContext{RegistryVersion: 99}

	_, err := builder.GetPayload(0, nil, nil, ctx)
	if err == nil {
		t.Fatal("expected an error when the registry has no record for this version")
	}
	if _, ok := err.(*TransientError); !ok {
		t.Fatalf("expected *TransientError, got %T: %+v", err, err)
	}
}
