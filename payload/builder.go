// Package payload implements the block payload builder: it composes the
// ingress, cross-subnet, and self-validating fractions of a block proposal
// under a byte budget derived from the registry, and validates payloads
// proposed by peers against the same budget. Both GetPayload and
// ValidatePayload are synchronous, CPU-bound, and bounded per call —
// generalized here from daglabs-btcd/mining.NewBlockTemplate's
// byte-budgeted, single-pass assembly of a block's transactions.
package payload

import (
	"github.com/pkg/errors"

	"github.com/daglabs/replicad/logger"
	"github.com/daglabs/replicad/metrics"
	"github.com/daglabs/replicad/registry"
	"github.com/daglabs/replicad/types"
)

var log, _ = logger.Get(logger.SubsystemTags.PAYB)

// MaxXNetPayloadInBytes is the independent byte cap applied to the
// self-validating payload, and the floor used when deriving the combined
// budget from the registry.
const MaxXNetPayloadInBytes = 2 * 1024 * 1024 // 2 MiB

// SubnetID identifies which subnet's registry record governs this
// builder's byte budget.
type SubnetID string

// Builder assembles and validates block payloads for one subnet. It owns
// the ingress fingerprint cache, so a Builder must not be shared across
// subnets with different ancestor chains.
type Builder struct {
	subnetID SubnetID
	registry registry.Client
	ingress  IngressSelector
	xnet     XNetPayloadBuilder
	selfVal  SelfValidatingPayloadBuilder

	cache *ingressCache
}

// NewBuilder constructs a Builder for subnetID, delegating to the given
// collaborators.
func NewBuilder(subnetID SubnetID, registryClient registry.Client, ingress IngressSelector, xnet XNetPayloadBuilder, selfVal SelfValidatingPayloadBuilder) *Builder {
	return &Builder{
		subnetID: subnetID,
		registry: registryClient,
		ingress:  ingress,
		xnet:     xnet,
		selfVal:  selfVal,
		cache:    newIngressCache(),
	}
}

// maxBlockPayloadSize derives the combined ingress+xnet byte budget from
// the subnet record: max(subnet_record.max_block_payload_size,
// max(MaxXNetPayloadInBytes, subnet_record.max_ingress_bytes_per_message)).
func (b *Builder) maxBlockPayloadSize(ctx *types.ValidationContext) (uint64, error) {
	record, err := b.registry.GetSubnetRecord(string(b.subnetID), ctx.RegistryVersion)
	if err != nil {
		return 0, transient(errors.Wrapf(ErrRegistryUnavailable, "%s", err))
	}

	floor := MaxXNetPayloadInBytes
	if record.MaxIngressBytesPerMessage > uint64(floor) {
		floor = int(record.MaxIngressBytesPerMessage)
	}
	budget := record.MaxBlockPayloadSize
	if uint64(floor) > budget {
		budget = uint64(floor)
	}
	return budget, nil
}

// GetPayload synthesizes a BatchPayload obeying the byte budget. It must
// not block: every collaborator call is synchronous and bounded.
func (b *Builder) GetPayload(height types.Height, poolView IngressPoolView, pastPayloads []types.PastPayload, ctx *types.ValidationContext) (*types.BatchPayload, error) {
	timer := metrics.NewTimer(metrics.GetPayloadDuration)
	defer timer.Stop()

	b.cache.mu.Lock()
	defer b.cache.mu.Unlock()

	budget, err := b.maxBlockPayloadSize(ctx)
	if err != nil {
		return nil, err
	}

	ingressSets := b.cache.buildIngressSets(pastPayloads, ctx)
	pastXNet := pastXNetPayloads(pastPayloads)

	metrics.PastPayloadsLength.Set(float64(len(pastPayloads)))

	var ingressLimit, xnetLimit uint64
	xnetFirst := height%2 == 0

	var xnetPayload types.XNetPayload
	var ingressPayload types.IngressPayload

	if xnetFirst {
		xnetPayload, err = b.xnet.GetXNetPayload(ctx, pastXNet, budget)
		if err != nil {
			return nil, transient(errors.Wrap(err, "building xnet payload"))
		}
		xnetLimit = xnetPayload.ByteSize()
		ingressLimit = saturatingSub(budget, xnetLimit)
		ingressPayload, err = b.ingress.GetIngressPayload(poolView, ingressSets, ctx, ingressLimit)
		if err != nil {
			return nil, transient(errors.Wrap(err, "building ingress payload"))
		}
	} else {
		ingressPayload, err = b.ingress.GetIngressPayload(poolView, ingressSets, ctx, budget)
		if err != nil {
			return nil, transient(errors.Wrap(err, "building ingress payload"))
		}
		ingressLimit = ingressPayload.ByteSize()
		xnetLimit = saturatingSub(budget, ingressLimit)
		xnetPayload, err = b.xnet.GetXNetPayload(ctx, pastXNet, xnetLimit)
		if err != nil {
			return nil, transient(errors.Wrap(err, "building xnet payload"))
		}
	}

	selfValidating, err := b.selfVal.GetSelfValidatingPayload(ctx, MaxXNetPayloadInBytes)
	if err != nil {
		return nil, transient(errors.Wrap(err, "building self-validating payload"))
	}

	b.cache.gc(minAncestorHeight(pastPayloads, ctx))
	metrics.IngressPayloadCacheSize.Set(float64(b.cache.size()))

	log.Debugf("built payload at height %d: ingress=%d bytes, xnet=%d bytes, budget=%d",
		height, ingressPayload.ByteSize(), xnetPayload.ByteSize(), budget)

	return &types.BatchPayload{
		Ingress:        ingressPayload,
		XNet:           xnetPayload,
		SelfValidating: selfValidating,
	}, nil
}

// ValidatePayload is a pure predicate: Ok (nil), a *PermanentError, or a
// *TransientError.
func (b *Builder) ValidatePayload(height types.Height, batch *types.BatchPayload, pastPayloads []types.PastPayload, ctx *types.ValidationContext) error {
	timer := metrics.NewTimer(metrics.ValidatePayloadDuration)
	defer timer.Stop()

	if batch.IsSummary {
		return nil
	}

	b.cache.mu.Lock()
	defer b.cache.mu.Unlock()

	budget, err := b.maxBlockPayloadSize(ctx)
	if err != nil {
		return err
	}

	ingressSets := b.cache.buildIngressSets(pastPayloads, ctx)
	pastXNet := pastXNetPayloads(pastPayloads)

	if err := b.ingress.ValidateIngressPayload(batch.Ingress, ingressSets, ctx); err != nil {
		return permanent(errors.Wrap(err, "ingress payload rejected"))
	}

	xnetSize, err := b.xnet.ValidateXNetPayload(batch.XNet, ctx, pastXNet)
	if err != nil {
		return permanent(errors.Wrap(err, "xnet payload rejected"))
	}

	ingressSize := batch.Ingress.ByteSize()
	if xnetSize+ingressSize > budget {
		return permanent(&PayloadTooBigError{Expected: budget, Received: xnetSize + ingressSize})
	}

	if err := b.selfVal.ValidateSelfValidatingPayload(batch.SelfValidating, ctx); err != nil {
		return permanent(errors.Wrap(err, "self-validating payload rejected"))
	}

	b.cache.gc(minAncestorHeight(pastPayloads, ctx))
	metrics.IngressPayloadCacheSize.Set(float64(b.cache.size()))

	return nil
}

func pastXNetPayloads(pastPayloads []types.PastPayload) []types.XNetPayload {
	out := make([]types.XNetPayload, 0, len(pastPayloads))
	for _, past := range pastPayloads {
		if past.Payload == nil || past.Payload.IsSummary || past.Payload.XNet == nil {
			continue
		}
		out = append(out, past.Payload.XNet)
	}
	return out
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
