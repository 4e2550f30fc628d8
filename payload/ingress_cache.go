package payload

import (
	"sync"
	"time"

	"github.com/daglabs/replicad/types"
)

// cacheKey is the IngressPayloadCache key: (height, block_payload_hash).
type cacheKey struct {
	height types.Height
	hash   [32]byte
}

// idSet is an immutable-after-construction set of ingress message ids,
// shared by reference among every cache entry and IngressSets built from
// it. Go's garbage collector retires it once the last referencing cache
// entry and IngressSets are gone, so no explicit reference counting is
// needed — construction happens entirely under the cache's exclusive
// section, and the set is never mutated afterward.
type idSet struct {
	ids map[types.IngressMessageID]struct{}
}

func newIDSet(ids []types.IngressMessageID) *idSet {
	set := &idSet{ids: make(map[types.IngressMessageID]struct{}, len(ids))}
	for _, id := range ids {
		set.ids[id] = struct{}{}
	}
	return set
}

func (s *idSet) contains(id types.IngressMessageID) bool {
	_, ok := s.ids[id]
	return ok
}

// ingressCache implements the IngressPayloadCache described in the data
// model: a map from (height, block_payload_hash) to a shared, immutable
// set of ingress message ids, guarded by an exclusive lock held for the
// entire duration of one GetPayload/ValidatePayload call (cache reads,
// population of missing entries, and GC all happen under one section —
// see mining.BlkTmplGenerator's RLock/RUnlock discipline in
// daglabs-btcd/mining/mining.go, generalized here to a single exclusive
// lock since every call both reads and garbage-collects).
type ingressCache struct {
	mu      sync.Mutex
	entries map[cacheKey]*idSet
}

func newIngressCache() *ingressCache {
	return &ingressCache{entries: make(map[cacheKey]*idSet)}
}

// getOrInsert returns the cached id set for (height, hash), computing and
// inserting it via compute if absent. The cache is a performance aid
// only: correctness never depends on whether an entry was already
// present, only on the value returned.
func (c *ingressCache) getOrInsert(height types.Height, hash [32]byte, compute func() []types.IngressMessageID) *idSet {
	key := cacheKey{height: height, hash: hash}
	if set, ok := c.entries[key]; ok {
		return set
	}
	set := newIDSet(compute())
	c.entries[key] = set
	return set
}

// gc drops every entry with height < minHeight. It is always safe to call
// regardless of whether ancestor heights are monotonically non-decreasing
// across calls.
func (c *ingressCache) gc(minHeight types.Height) {
	for key := range c.entries {
		if key.height < minHeight {
			delete(c.entries, key)
		}
	}
}

func (c *ingressCache) size() int {
	return len(c.entries)
}

// ingressSets implements IngressSetQuery over a collection of past
// payloads' cached id sets.
type ingressSets struct {
	sets             []*idSet
	expiryLowerBound time.Time
}

func (s *ingressSets) Contains(id types.IngressMessageID) bool {
	for _, set := range s.sets {
		if set.contains(id) {
			return true
		}
	}
	return false
}

func (s *ingressSets) ExpiryLowerBound() time.Time {
	return s.expiryLowerBound
}

// buildIngressSets populates the cache from pastPayloads (scanning each
// ancestor's ingress payload once, on a cache miss) and returns the
// resulting IngressSetQuery.
func (c *ingressCache) buildIngressSets(pastPayloads []types.PastPayload, ctx *types.ValidationContext) *ingressSets {
	sets := make([]*idSet, 0, len(pastPayloads))
	expiry := ctx.Time
	for i, past := range pastPayloads {
		if i == 0 || past.Time.Before(expiry) {
			expiry = past.Time
		}
		if past.Payload == nil || past.Payload.IsSummary || past.Payload.Ingress == nil {
			continue
		}
		hash := hashPayload(past.Payload)
		set := c.getOrInsert(past.Height, hash, past.Payload.Ingress.MessageIDs)
		sets = append(sets, set)
	}
	return &ingressSets{sets: sets, expiryLowerBound: expiry}
}

// minAncestorHeight returns the lowest height among pastPayloads, or
// ctx.CertifiedHeight if pastPayloads is empty.
func minAncestorHeight(pastPayloads []types.PastPayload, ctx *types.ValidationContext) types.Height {
	if len(pastPayloads) == 0 {
		return ctx.CertifiedHeight
	}
	min := pastPayloads[0].Height
	for _, past := range pastPayloads[1:] {
		if past.Height < min {
			min = past.Height
		}
	}
	return min
}
