package payload

import (
	"github.com/daglabs/replicad/types"
)

// emptyIngressPayload is the zero-message ingress payload an IngressSelector
// returns when its pool view has nothing to offer.
type emptyIngressPayload struct{}

func (emptyIngressPayload) ByteSize() uint64                     { return 0 }
func (emptyIngressPayload) MessageIDs() []types.IngressMessageID { return nil }

type emptyXNetPayload struct{}

func (emptyXNetPayload) ByteSize() uint64 { return 0 }

type emptySelfValidatingPayload struct{}

func (emptySelfValidatingPayload) ByteSize() uint64 { return 0 }

// NoopIngressSelector is an IngressSelector that never has anything to
// offer; it lets a harness drive GetPayload/ValidatePayload before a real
// ingress pool is wired in.
type NoopIngressSelector struct{}

func (NoopIngressSelector) GetIngressPayload(IngressPoolView, IngressSetQuery, *types.ValidationContext, uint64) (types.IngressPayload, error) {
	return emptyIngressPayload{}, nil
}

func (NoopIngressSelector) ValidateIngressPayload(types.IngressPayload, IngressSetQuery, *types.ValidationContext) error {
	return nil
}

// NoopXNetPayloadBuilder is an XNetPayloadBuilder that never has anything
// to offer.
type NoopXNetPayloadBuilder struct{}

func (NoopXNetPayloadBuilder) GetXNetPayload(*types.ValidationContext, []types.XNetPayload, uint64) (types.XNetPayload, error) {
	return emptyXNetPayload{}, nil
}

func (NoopXNetPayloadBuilder) ValidateXNetPayload(xnet types.XNetPayload, _ *types.ValidationContext, _ []types.XNetPayload) (uint64, error) {
	return xnet.ByteSize(), nil
}

// NoopSelfValidatingPayloadBuilder is a SelfValidatingPayloadBuilder that
// never has anything to offer.
type NoopSelfValidatingPayloadBuilder struct{}

func (NoopSelfValidatingPayloadBuilder) GetSelfValidatingPayload(*types.ValidationContext, uint64) (types.SelfValidatingPayload, error) {
	return emptySelfValidatingPayload{}, nil
}

func (NoopSelfValidatingPayloadBuilder) ValidateSelfValidatingPayload(types.SelfValidatingPayload, *types.ValidationContext) error {
	return nil
}
