package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// SimulationKey uniquely identifies a reproducible race run. Two races with
// the same SimulationKey and identical configuration MUST produce identical
// event logs and standings (sequential scalar path) or tolerance-bound ones
// (parallel path).
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

const (
	// SubsystemPhysics is the RNG subsystem feeding the noise model.
	SubsystemPhysics = "physics"

	// SubsystemEvents is the RNG subsystem for crash/overtake/caution draws.
	SubsystemEvents = "events"

	// SubsystemWeather is the RNG subsystem for weather evolution.
	SubsystemWeather = "weather"

	// SubsystemQualifying is the RNG subsystem for qualifying lap times.
	SubsystemQualifying = "qualifying"
)

// Streams provides deterministic, isolated RNG instances per subsystem.
//
// Derivation: masterSeed XOR fnv1a64(subsystemName). Draws from one
// subsystem never perturb another, so enabling or disabling a subsystem
// leaves the rest of the run bit-identical.
//
// Thread-safety: NOT thread-safe. The parallel scalar path must not share
// these; it derives per-car streams via CarTickStream instead.
type Streams struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewStreams creates a Streams set from a SimulationKey.
func NewStreams(key SimulationKey) *Streams {
	return &Streams{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named
// subsystem. The same name always returns the same cached *rand.Rand.
// Never returns nil.
func (s *Streams) ForSubsystem(name string) *rand.Rand {
	if rng, ok := s.subsystems[name]; ok {
		return rng
	}
	derived := int64(s.key) ^ fnv1a64(name)
	rng := rand.New(rand.NewSource(derived))
	s.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this Streams set.
func (s *Streams) Key() SimulationKey {
	return s.key
}

// CarTickStream derives an independent RNG for one car at one tick. The
// parallel scalar engine uses these so results do not depend on goroutine
// scheduling: the stream is a pure function of (seed, car id, tick index),
// never a generator shared across workers.
func CarTickStream(key SimulationKey, carID, tick int) *rand.Rand {
	derived := int64(key) ^ fnv1a64(fmt.Sprintf("car_%d_tick_%d", carID, tick))
	return rand.New(rand.NewSource(derived))
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
