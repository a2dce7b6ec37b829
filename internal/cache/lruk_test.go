package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplacer_EvictNilWhenNothingEvictable(t *testing.T) {
	assert := assert.New(t)

	r := NewReplacer(4, 2)
	r.RecordAccess(0)

	_, ok := r.Evict()
	assert.False(ok)
}

func TestReplacer_UnderSampledOutranksFullySampled(t *testing.T) {
	assert := assert.New(t)

	r := NewReplacer(4, 2)

	// frame 0 accessed once (under-sampled, K=2)
	r.RecordAccess(0)
	// frame 1 accessed twice (fully-sampled)
	r.RecordAccess(1)
	r.RecordAccess(1)

	r.SetEvictable(0, true)
	r.SetEvictable(1, true)

	victim, ok := r.Evict()
	assert.True(ok)
	assert.Equal(0, victim, "under-sampled frame must be evicted before a fully-sampled one")
}

func TestReplacer_FullySampledPicksLargestKDistance(t *testing.T) {
	assert := assert.New(t)

	r := NewReplacer(4, 2)

	r.RecordAccess(0) // now=1
	r.RecordAccess(0) // now=2, history=[1,2]
	r.RecordAccess(1) // now=3
	r.RecordAccess(1) // now=4, history=[3,4]

	r.SetEvictable(0, true)
	r.SetEvictable(1, true)

	// frame 0's K-distance = now(4) - history.front(1) = 3
	// frame 1's K-distance = now(4) - history.front(3) = 1
	victim, ok := r.Evict()
	assert.True(ok)
	assert.Equal(0, victim)
}

func TestReplacer_RemoveNoOpWhenAbsent(t *testing.T) {
	r := NewReplacer(4, 2)
	assert.NotPanics(t, func() { r.Remove(7) })
}

func TestReplacer_RemovePanicsOnNonEvictable(t *testing.T) {
	r := NewReplacer(4, 2)
	r.RecordAccess(0)

	assert.Panics(t, func() { r.Remove(0) })
}

func TestReplacer_SetEvictableIsIdempotent(t *testing.T) {
	assert := assert.New(t)

	r := NewReplacer(4, 2)
	r.RecordAccess(0)

	r.SetEvictable(0, true)
	r.SetEvictable(0, true)
	assert.Equal(1, r.Size())

	r.SetEvictable(0, false)
	r.SetEvictable(0, false)
	assert.Equal(0, r.Size())
}

// TestReplacer_SpecScenarioEviction mirrors spec.md §8 scenario 2: N=2,
// K=2, frames for a.html/b.html already installed and accessed once
// each, then a third distinct key forces an eviction. Whichever of a/b
// was least recently touched (fewer than K accesses, earliest last
// access) loses.
func TestReplacer_SpecScenarioEviction(t *testing.T) {
	assert := assert.New(t)

	r := NewReplacer(2, 2)

	// GET /a.html — frame 0
	r.RecordAccess(0)
	r.SetEvictable(0, true)

	// GET /b.html — frame 1
	r.RecordAccess(1)
	r.SetEvictable(1, true)

	// GET /c.html forces eviction; a was touched first so it is the
	// least-recently-accessed under-sampled node
	victim, ok := r.Evict()
	assert.True(ok)
	assert.Equal(0, victim)
}
