package payload

import (
	"github.com/daglabs/replicad/types"
)

type fakeIngressPayload struct {
	size uint64
	ids  []types.IngressMessageID
}

func (p *fakeIngressPayload) ByteSize() uint64                       { return p.size }
func (p *fakeIngressPayload) MessageIDs() []types.IngressMessageID { return p.ids }

type fakeXNetPayload struct {
	size uint64
	// reportedByteSize, when non-zero, is what ByteSize() returns
	// instead of size — used to simulate a non-deterministic local
	// ByteSize() that validation must not rely on.
	reportedByteSize uint64
}

func (p *fakeXNetPayload) ByteSize() uint64 {
	if p.reportedByteSize != 0 {
		return p.reportedByteSize
	}
	return p.size
}

type fakeSelfValidatingPayload struct {
	size uint64
}

func (p *fakeSelfValidatingPayload) ByteSize() uint64 { return p.size }

// fakeIngressSelector always supplies up to capacity bytes of ingress,
// saturating to whatever byteLimit the builder requests.
type fakeIngressSelector struct {
	capacity     uint64
	validateErr  error
}

func (s *fakeIngressSelector) GetIngressPayload(poolView IngressPoolView, query IngressSetQuery, ctx *types.ValidationContext, byteLimit uint64) (types.IngressPayload, error) {
	size := s.capacity
	if byteLimit < size {
		size = byteLimit
	}
	return &fakeIngressPayload{size: size}, nil
}

func (s *fakeIngressSelector) ValidateIngressPayload(ingress types.IngressPayload, query IngressSetQuery, ctx *types.ValidationContext) error {
	return s.validateErr
}

// fakeXNetBuilder always supplies up to capacity bytes of xnet, saturating
// to whatever byteLimit the builder requests. canonicalSize, when
// non-zero, overrides the byte count ValidateXNetPayload reports.
type fakeXNetBuilder struct {
	capacity      uint64
	canonicalSize uint64
	validateErr   error
}

func (b *fakeXNetBuilder) GetXNetPayload(ctx *types.ValidationContext, pastXNet []types.XNetPayload, byteLimit uint64) (types.XNetPayload, error) {
	size := b.capacity
	if byteLimit < size {
		size = byteLimit
	}
	return &fakeXNetPayload{size: size}, nil
}

func (b *fakeXNetBuilder) ValidateXNetPayload(xnet types.XNetPayload, ctx *types.ValidationContext, pastXNet []types.XNetPayload) (uint64, error) {
	if b.validateErr != nil {
		return 0, b.validateErr
	}
	if b.canonicalSize != 0 {
		return b.canonicalSize, nil
	}
	return xnet.(*fakeXNetPayload).size, nil
}

type fakeSelfValidatingBuilder struct {
	size uint64
}

func (b *fakeSelfValidatingBuilder) GetSelfValidatingPayload(ctx *types.ValidationContext, byteLimit uint64) (types.SelfValidatingPayload, error) {
	size := b.size
	if byteLimit < size {
		size = byteLimit
	}
	return &fakeSelfValidatingPayload{size: size}, nil
}

func (b *fakeSelfValidatingBuilder) ValidateSelfValidatingPayload(selfValidating types.SelfValidatingPayload, ctx *types.ValidationContext) error {
	return nil
}
