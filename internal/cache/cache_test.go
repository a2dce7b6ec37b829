package cache

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache_LookupMissOnEmptyCache(t *testing.T) {
	c := NewCache(2, MaxFrameBytes, 2)

	_, ok := c.Lookup("/a.html")
	assert.False(t, ok)
}

func TestCache_InstallLookupRoundTrip(t *testing.T) {
	assert := assert.New(t)

	c := NewCache(2, MaxFrameBytes, 2)

	assert.NoError(c.Install("/a.html", []byte("A")))

	body, ok := c.Lookup("/a.html")
	assert.True(ok)
	assert.Equal([]byte("A"), body)
}

func TestCache_IdempotentInstall(t *testing.T) {
	assert := assert.New(t)

	c := NewCache(2, MaxFrameBytes, 2)

	assert.NoError(c.Install("/a.html", []byte("A")))
	assert.NoError(c.Install("/a.html", []byte("B")))

	body, ok := c.Lookup("/a.html")
	assert.True(ok)
	assert.Equal([]byte("A"), body, "first writer wins; sequential re-install is a no-op")
}

// TestCache_SpecScenarioEviction mirrors spec.md §8 scenario 2 end to end:
// N=2, K=2, GET a, GET b, GET c — the third install forces eviction of a.
func TestCache_SpecScenarioEviction(t *testing.T) {
	assert := assert.New(t)

	c := NewCache(2, MaxFrameBytes, 2)

	assert.NoError(c.Install("/a.html", []byte("A")))
	assert.NoError(c.Install("/b.html", []byte("B")))
	assert.NoError(c.Install("/c.html", []byte("C")))

	_, ok := c.Lookup("/a.html")
	assert.False(ok, "a.html should have been evicted")

	body, ok := c.Lookup("/b.html")
	assert.True(ok)
	assert.Equal([]byte("B"), body)

	body, ok = c.Lookup("/c.html")
	assert.True(ok)
	assert.Equal([]byte("C"), body)
}

func TestCache_InvalidateFreesFrame(t *testing.T) {
	assert := assert.New(t)

	c := NewCache(1, MaxFrameBytes, 2)
	assert.NoError(c.Install("/a.html", []byte("A")))

	c.Invalidate("/a.html")
	_, ok := c.Lookup("/a.html")
	assert.False(ok)

	assert.NoError(c.Install("/b.html", []byte("B")))
	body, ok := c.Lookup("/b.html")
	assert.True(ok)
	assert.Equal([]byte("B"), body)
}

func TestCache_PopulateCoalescesConcurrentMisses(t *testing.T) {
	assert := assert.New(t)

	c := NewCache(2, MaxFrameBytes, 2)

	var loadCount int64
	var wg sync.WaitGroup
	results := make([][]byte, 8)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			data, err := c.Populate("/a.html", func() ([]byte, error) {
				atomic.AddInt64(&loadCount, 1)
				return []byte("A"), nil
			})
			assert.NoError(err)
			results[idx] = data
		}(i)
	}

	wg.Wait()

	assert.Equal(int64(1), atomic.LoadInt64(&loadCount), "only one goroutine should perform the load")
	for _, r := range results {
		assert.Equal([]byte("A"), r)
	}
}
