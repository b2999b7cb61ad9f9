package sharding

import (
	"math/rand"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-rendezvous"
)

// LoadSource reports a candidate engine's current load (e.g. player
// count), fresh within a TTL the caller enforces; on a stale reading
// Select picks at random between its two candidates instead of
// trusting it.
type LoadSource interface {
	// Load returns the engine's current load and whether the reading
	// is still fresh.
	Load(engineID string) (load int, fresh bool)
}

// Selector ranks candidate engines for a zone deterministically via
// rendezvous hashing, then picks between the top two by load
// (power-of-two-choices over a rendezvous-narrowed candidate set).
type Selector struct {
	rdv  *rendezvous.Rendezvous
	load LoadSource
	rng  *rand.Rand
}

// NewSelector builds a selector over the given candidate engine ids.
func NewSelector(engineIDs []string, load LoadSource) *Selector {
	return &Selector{
		rdv:  rendezvous.New(engineIDs, rendezvousHash),
		load: load,
		rng:  rand.New(rand.NewSource(7)),
	}
}

// rendezvousHash adapts cespare/xxhash into the Hasher signature
// dgryski/go-rendezvous expects.
func rendezvousHash(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Add registers a newly joined engine as a selection candidate.
func (s *Selector) Add(engineID string) {
	s.rdv.Add(engineID)
}

// Remove drops an engine that left the cluster from the candidate set.
func (s *Selector) Remove(engineID string) {
	s.rdv.Remove(engineID)
}

// Select picks an engine for zone: the rendezvous ranking narrows the
// candidate set to the top two deterministic choices, then the one
// with lower reported load wins. If either candidate's load reading is
// stale, selection picks one of the two at random rather than
// trusting stale telemetry.
func (s *Selector) Select(zone string) string {
	top2 := s.rdv.GetN(2, zone)
	if len(top2) == 0 {
		return ""
	}
	if len(top2) == 1 || s.load == nil {
		return top2[0]
	}

	loadA, freshA := s.load.Load(top2[0])
	loadB, freshB := s.load.Load(top2[1])
	if !freshA || !freshB {
		return top2[s.rng.Intn(len(top2))]
	}
	if loadA <= loadB {
		return top2[0]
	}
	return top2[1]
}

// RandomFallback picks uniformly among the candidates, used when no
// load telemetry is configured at all (e.g. a fresh cluster with no
// metrics yet).
func (s *Selector) RandomFallback(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[s.rng.Intn(len(candidates))]
}
