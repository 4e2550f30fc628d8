// Package pool provides an in-memory implementation of ecdsa.Pool, used
// by tests and by the cmd/replicad harness. It is the capability set the
// design notes describe: unvalidated/validated iterators over dealings
// and dealing supports, plus atomic ChangeSet application.
package pool

import (
	"sync"

	"github.com/daglabs/replicad/ecdsa"
	"github.com/daglabs/replicad/types"
)

// unvalidatedSection holds peer-supplied, unchecked artifacts. Unlike the
// validated half, it is keyed by object identity rather than by
// (transcript_id, dealer_id[, signer]): a Byzantine peer may submit two
// distinct dealings sharing the same key, and the duplicate-in-batch pass
// needs to see and individually invalidate every one of them.
type unvalidatedSection struct {
	dealings []*types.EcdsaDealing
	supports []*types.EcdsaDealingSupport
}

func newUnvalidatedSection() *unvalidatedSection {
	return &unvalidatedSection{}
}

func (s *unvalidatedSection) Dealings() []*types.EcdsaDealing {
	out := make([]*types.EcdsaDealing, len(s.dealings))
	copy(out, s.dealings)
	return out
}

func (s *unvalidatedSection) DealingSupports() []*types.EcdsaDealingSupport {
	out := make([]*types.EcdsaDealingSupport, len(s.supports))
	copy(out, s.supports)
	return out
}

func (s *unvalidatedSection) removeDealing(target *types.EcdsaDealing) {
	for i, d := range s.dealings {
		if d == target {
			s.dealings = append(s.dealings[:i], s.dealings[i+1:]...)
			return
		}
	}
}

func (s *unvalidatedSection) removeSupport(target *types.EcdsaDealingSupport) {
	for i, sup := range s.supports {
		if sup == target {
			s.supports = append(s.supports[:i], s.supports[i+1:]...)
			return
		}
	}
}

// validatedSection holds locally-verified artifacts. It is keyed by
// (transcript_id, dealer_id[, signer]) since the validated half must never
// contain more than one artifact per key (invariant 4).
type validatedSection struct {
	dealings map[types.DealingKey]*types.EcdsaDealing
	supports map[types.SupportKey]*types.EcdsaDealingSupport
}

func newValidatedSection() *validatedSection {
	return &validatedSection{
		dealings: make(map[types.DealingKey]*types.EcdsaDealing),
		supports: make(map[types.SupportKey]*types.EcdsaDealingSupport),
	}
}

func (s *validatedSection) Dealings() []*types.EcdsaDealing {
	out := make([]*types.EcdsaDealing, 0, len(s.dealings))
	for _, d := range s.dealings {
		out = append(out, d)
	}
	return out
}

func (s *validatedSection) DealingSupports() []*types.EcdsaDealingSupport {
	out := make([]*types.EcdsaDealingSupport, 0, len(s.supports))
	for _, sup := range s.supports {
		out = append(out, sup)
	}
	return out
}

// MemoryPool is an in-memory ecdsa.Pool. It is safe for concurrent use;
// every read method returns a point-in-time snapshot copy, giving callers
// snapshot semantics across repeated iteration within one OnStateChange
// call even if another goroutine later applies a ChangeSet.
type MemoryPool struct {
	mu          sync.Mutex
	unvalidated *unvalidatedSection
	validated   *validatedSection
}

// NewMemoryPool builds an empty MemoryPool.
func NewMemoryPool() *MemoryPool {
	return &MemoryPool{
		unvalidated: newUnvalidatedSection(),
		validated:   newValidatedSection(),
	}
}

// Unvalidated implements ecdsa.Pool.
func (p *MemoryPool) Unvalidated() ecdsa.PoolSection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &unvalidatedSection{dealings: p.unvalidated.Dealings(), supports: p.unvalidated.DealingSupports()}
}

// Validated implements ecdsa.Pool.
func (p *MemoryPool) Validated() ecdsa.PoolSection {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := newValidatedSection()
	for k, v := range p.validated.dealings {
		snap.dealings[k] = v
	}
	for k, v := range p.validated.supports {
		snap.supports[k] = v
	}
	return snap
}

// AddUnvalidatedDealing seeds the unvalidated half directly, bypassing
// ApplyChanges; used by tests and by the gossip-facing ingestion path to
// admit peer-supplied artifacts, duplicates included.
func (p *MemoryPool) AddUnvalidatedDealing(d *types.EcdsaDealing) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unvalidated.dealings = append(p.unvalidated.dealings, d)
}

// AddUnvalidatedDealingSupport seeds the unvalidated half directly.
func (p *MemoryPool) AddUnvalidatedDealingSupport(s *types.EcdsaDealingSupport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unvalidated.supports = append(p.unvalidated.supports, s)
}

// ApplyChanges applies changeSet atomically. Order within the set is
// insignificant to correctness; this implementation applies it in the
// given order under a single lock acquisition.
func (p *MemoryPool) ApplyChanges(changeSet ecdsa.ChangeSet) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, change := range changeSet {
		switch c := change.(type) {
		case *ecdsa.AddToValidated:
			if c.Dealing != nil {
				p.validated.dealings[c.Dealing.Key()] = c.Dealing
			}
			if c.Support != nil {
				p.validated.supports[c.Support.Key()] = c.Support
			}
		case *ecdsa.MoveToValidated:
			if c.Dealing != nil {
				p.unvalidated.removeDealing(c.Dealing)
				p.validated.dealings[c.Dealing.Key()] = c.Dealing
			}
			if c.Support != nil {
				p.unvalidated.removeSupport(c.Support)
				p.validated.supports[c.Support.Key()] = c.Support
			}
		case *ecdsa.RemoveUnvalidated:
			if c.Dealing != nil {
				p.unvalidated.removeDealing(c.Dealing)
			}
			if c.Support != nil {
				p.unvalidated.removeSupport(c.Support)
			}
		case *ecdsa.RemoveValidated:
			if c.Dealing != nil {
				delete(p.validated.dealings, c.Dealing.Key())
			}
			if c.Support != nil {
				delete(p.validated.supports, c.Support.Key())
			}
		case *ecdsa.HandleInvalid:
			// HandleInvalid removes the artifact from whichever
			// half currently holds it: passes 2 and 4 apply it
			// against the unvalidated pool, but pass 3 can also
			// apply it against a dealing already in the validated
			// pool (verify_dealing_private failing permanently
			// during support creation indicts the dealing itself,
			// not the support this pass would have produced).
			if c.Dealing != nil {
				p.unvalidated.removeDealing(c.Dealing)
				delete(p.validated.dealings, c.Dealing.Key())
			}
			if c.Support != nil {
				p.unvalidated.removeSupport(c.Support)
				delete(p.validated.supports, c.Support.Key())
			}
		}
	}
}
