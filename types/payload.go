package types

import "time"

// IngressMessageID is an opaque, totally ordered, hashable identifier for a
// single ingress message. It is compared and ordered by raw byte value so
// that replicas agree on ordering without sharing any interpretation of the
// bytes themselves.
type IngressMessageID [32]byte

// Less gives IngressMessageID a total order, used when a deterministic
// iteration order over a set of ids is required (e.g. hashing a payload's
// ids for the payload builder's ingress cache key).
func (id IngressMessageID) Less(other IngressMessageID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// IngressPayload is opaque to the core except for its byte size. Its
// ByteSize method MUST be a pure function of the payload's contents: every
// replica computing it over the same bytes must get the same answer, since
// the payload builder's budget decisions depend on it directly (unlike
// XNetPayload, see below).
type IngressPayload interface {
	ByteSize() uint64

	// MessageIDs returns every ingress message id contained in this
	// payload, in no particular order. Used to populate the ingress
	// fingerprint cache and to answer IngressSetQuery.Contains.
	MessageIDs() []IngressMessageID
}

// XNetPayload is opaque to the core except for its byte size. Its ByteSize
// method MAY vary across replicas (its internal representation may depend
// on local state not guaranteed to be byte-identical), so it MUST NOT be
// used to enforce the block payload budget during validation — the
// canonical size reported by the XNet validator is used there instead.
type XNetPayload interface {
	ByteSize() uint64
}

// SelfValidatingPayload is opaque to the core except for its byte size.
type SelfValidatingPayload interface {
	ByteSize() uint64
}

// BatchPayload is the data portion of a block proposal.
type BatchPayload struct {
	Ingress        IngressPayload
	XNet           XNetPayload
	SelfValidating SelfValidatingPayload

	// IsSummary marks a summary (non-data) block: validation always
	// accepts a summary block without inspecting the sub-payloads.
	IsSummary bool
}

// PastPayload is one entry of the finite, descending-height sequence of
// ancestor payloads passed into GetPayload/ValidatePayload.
type PastPayload struct {
	Height  Height
	Time    time.Time
	Payload *BatchPayload
}
