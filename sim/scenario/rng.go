package scenario

import (
	"hash/fnv"
	"math/rand"
)

// RNG subsystems used by scenarios.
const (
	// SubsystemPopulation seeds agent creation. It uses the master seed
	// directly, so a given --seed always yields the same population.
	SubsystemPopulation = "population"
	SubsystemBehavior   = "behavior"
	SubsystemContext    = "context"
)

// RNG hands out deterministic, isolated random sources per subsystem, so
// adding draws in one subsystem never perturbs another.
//
// Derivation: SubsystemPopulation uses the seed directly; every other
// subsystem uses seed XOR fnv1a64(name).
//
// Not safe for concurrent use; scenarios draw from the tick goroutine.
type RNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

func NewRNG(seed int64) *RNG {
	return &RNG{seed: seed, subsystems: make(map[string]*rand.Rand)}
}

// For returns the source for the named subsystem. Repeated calls return the
// same instance.
func (r *RNG) For(name string) *rand.Rand {
	if rng, ok := r.subsystems[name]; ok {
		return rng
	}
	derived := r.seed
	if name != SubsystemPopulation {
		derived ^= fnv1a64(name)
	}
	rng := rand.New(rand.NewSource(derived))
	r.subsystems[name] = rng
	return rng
}

func (r *RNG) Seed() int64 { return r.seed }

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
