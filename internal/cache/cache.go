package cache

import (
	"errors"
	"sync"
)

// ErrNoFrameAvailable is returned by Install when every frame is taken and
// the replacer has nothing evictable left to reclaim (spec.md §7:
// "Eviction needed but none evictable" — abort install, still serve
// uncached).
var ErrNoFrameAvailable = errors.New("cache: no frame available for install")

// Cache maps a normalised cache key (CK) to the frame_id currently
// holding that key's response bytes, coordinating installs against the
// frame pool and the LRU-K replacer. One exclusive lock serialises every
// mutation (install, victim selection, evictable toggles); lookups use
// the same lock's read-side so concurrent hits don't block each other
// while a rewrite elsewhere is excluded (spec.md §5/§9 locking
// discipline).
type Cache struct {
	mu         sync.RWMutex
	pool       *Pool
	replacer   *Replacer
	keyToFrame map[string]int
	frameToKey map[int]string
	freeList   []int

	inflightMu sync.Mutex
	inflight   map[string]*populateEntry
}

// populateEntry coalesces concurrent fills for the same key into a single
// filesystem read, grounded on the other_examples perch.go single-flight
// idiom: a per-key mutex + condition variable guarding a "loading" flag,
// broadcast to waiters once the first caller's load completes.
type populateEntry struct {
	mu    sync.Mutex
	cond  *sync.Cond
	done  bool
	bytes []byte
	err   error
}

// NewCache allocates a frame pool of the given size/capacity and an LRU-K
// replacer with the given K, with every frame initially free.
func NewCache(frameCount, frameBytes, k int) *Cache {
	freeList := make([]int, frameCount)
	for i := range freeList {
		freeList[i] = i
	}

	return &Cache{
		pool:       NewPool(frameCount, frameBytes),
		replacer:   NewReplacer(frameCount, k),
		keyToFrame: make(map[string]int),
		frameToKey: make(map[int]string),
		freeList:   freeList,
		inflight:   make(map[string]*populateEntry),
	}
}

// Lookup returns a copy of the cached bytes for ck, recording an access
// with the replacer on hit. The returned slice is safe to retain past the
// call since it is copied out while the read lock is held.
func (c *Cache) Lookup(ck string) ([]byte, bool) {
	c.mu.RLock()
	frameID, ok := c.keyToFrame[ck]
	if !ok {
		c.mu.RUnlock()
		return nil, false
	}

	frame := c.pool.Get(frameID)
	out := make([]byte, len(frame.Bytes()))
	copy(out, frame.Bytes())
	c.replacer.RecordAccess(frameID)
	c.mu.RUnlock()

	return out, true
}

// Install associates ck with a frame holding bytes. If ck is already
// present the existing entry wins and bytes is discarded (idempotent
// install, first writer wins under a race). Obtains a frame by popping
// the free list first, falling back to asking the replacer for a victim;
// returns ErrNoFrameAvailable if neither succeeds.
func (c *Cache) Install(ck string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.keyToFrame[ck]; exists {
		return nil
	}

	frameID, err := c.acquireFrame()
	if err != nil {
		return err
	}

	c.pool.Reset(frameID)
	c.pool.Write(frameID, data)

	c.keyToFrame[ck] = frameID
	c.frameToKey[frameID] = ck

	c.replacer.RecordAccess(frameID)
	c.replacer.SetEvictable(frameID, true)

	return nil
}

// acquireFrame returns a frame id ready to receive a new key, reusing a
// free frame if one exists, otherwise evicting a victim and dropping its
// key from the map. Must be called with c.mu held for writing.
func (c *Cache) acquireFrame() (int, error) {
	if n := len(c.freeList); n > 0 {
		frameID := c.freeList[n-1]
		c.freeList = c.freeList[:n-1]
		return frameID, nil
	}

	victim, ok := c.replacer.Evict()
	if !ok {
		return 0, ErrNoFrameAvailable
	}

	if oldKey, had := c.frameToKey[victim]; had {
		delete(c.keyToFrame, oldKey)
		delete(c.frameToKey, victim)
	}

	return victim, nil
}

// Invalidate best-effort removes ck from the cache, returning its frame
// to the free list. Not exercised by the minimum request path; provided
// for higher layers that need explicit invalidation.
func (c *Cache) Invalidate(ck string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	frameID, ok := c.keyToFrame[ck]
	if !ok {
		return
	}

	delete(c.keyToFrame, ck)
	delete(c.frameToKey, frameID)
	c.replacer.Remove(frameID)
	c.pool.Reset(frameID)
	c.freeList = append(c.freeList, frameID)
}

// FramesInUse reports how many frames currently hold a cached key, for
// metrics exposition.
func (c *Cache) FramesInUse() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keyToFrame)
}

// Populate coalesces concurrent cache-miss fills for the same key into a
// single call to load. Callers losing the race block on the winner's
// result instead of performing a redundant filesystem read; this is the
// single-flight strategy spec.md §4.3/§9 explicitly permits in place of
// "let every racer read independently and only one install wins".
func (c *Cache) Populate(ck string, load func() ([]byte, error)) ([]byte, error) {
	c.inflightMu.Lock()
	if entry, exists := c.inflight[ck]; exists {
		c.inflightMu.Unlock()
		return waitForPopulate(entry)
	}

	entry := &populateEntry{}
	entry.cond = sync.NewCond(&entry.mu)
	c.inflight[ck] = entry
	c.inflightMu.Unlock()

	data, err := load()

	entry.mu.Lock()
	entry.bytes, entry.err, entry.done = data, err, true
	entry.mu.Unlock()
	entry.cond.Broadcast()

	c.inflightMu.Lock()
	delete(c.inflight, ck)
	c.inflightMu.Unlock()

	return data, err
}

func waitForPopulate(entry *populateEntry) ([]byte, error) {
	entry.mu.Lock()
	for !entry.done {
		entry.cond.Wait()
	}
	data, err := entry.bytes, entry.err
	entry.mu.Unlock()
	return data, err
}
