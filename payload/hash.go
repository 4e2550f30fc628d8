package payload

import (
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/daglabs/replicad/types"
)

// hashPayload derives the IngressPayloadCache key's hash component from a
// past payload's ingress message ids. Message ids are sorted first so the
// hash is a pure function of the ingress set's contents, independent of
// any particular iteration order MessageIDs() happens to return —
// required since the cache key participates in a determinism-sensitive
// path (see types.IngressPayload.ByteSize's purity requirement).
func hashPayload(p *types.BatchPayload) [32]byte {
	var ids []types.IngressMessageID
	if p.Ingress != nil {
		ids = p.Ingress.MessageIDs()
	}
	sorted := make([]types.IngressMessageID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for an invalid key length, and we
		// never pass one.
		panic(err)
	}
	for _, id := range sorted {
		_, _ = h.Write(id[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
