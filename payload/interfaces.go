package payload

import (
	"time"

	"github.com/daglabs/replicad/types"
)

// IngressSetQuery answers "have we already seen this ingress message
// among ancestors still reachable from the current tip?" without
// requiring the caller to materialize the full ancestor set.
type IngressSetQuery interface {
	// Contains reports whether id appears in any of the ancestor
	// ingress sets this query was built from.
	Contains(id types.IngressMessageID) bool

	// ExpiryLowerBound is the earliest time any message considered by
	// this query could still be valid (the oldest ancestor's time, or
	// the current validation context's time if there are no ancestors).
	ExpiryLowerBound() time.Time
}

// IngressPoolView is an opaque handle to the ingress pool, passed through
// to the ingress selector unexamined.
type IngressPoolView interface{}

// IngressSelector builds and validates the ingress fraction of a payload.
// It is an external collaborator; the payload builder never inspects
// ingress message contents itself.
type IngressSelector interface {
	GetIngressPayload(poolView IngressPoolView, query IngressSetQuery, ctx *types.ValidationContext, byteLimit uint64) (types.IngressPayload, error)
	ValidateIngressPayload(ingress types.IngressPayload, query IngressSetQuery, ctx *types.ValidationContext) error
}

// XNetPayloadBuilder builds and validates the cross-subnet fraction of a
// payload. ValidateXNetPayload returns the canonical byte count the
// validator computed, which MUST be used instead of xnet.ByteSize() when
// enforcing the block payload budget (xnet.ByteSize() may not be
// deterministic across replicas).
type XNetPayloadBuilder interface {
	GetXNetPayload(ctx *types.ValidationContext, pastXNet []types.XNetPayload, byteLimit uint64) (types.XNetPayload, error)
	ValidateXNetPayload(xnet types.XNetPayload, ctx *types.ValidationContext, pastXNet []types.XNetPayload) (byteCount uint64, err error)
}

// SelfValidatingPayloadBuilder builds and validates the self-validating
// fraction of a payload, fetched independently of the combined ingress/
// xnet budget.
type SelfValidatingPayloadBuilder interface {
	GetSelfValidatingPayload(ctx *types.ValidationContext, byteLimit uint64) (types.SelfValidatingPayload, error)
	ValidateSelfValidatingPayload(selfValidating types.SelfValidatingPayload, ctx *types.ValidationContext) error
}
