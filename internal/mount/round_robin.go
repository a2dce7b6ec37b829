package mount

import (
	"errors"
	"sync"
)

// RoundRobinSelector distributes cache-key lookups evenly across mounts,
// skipping unhealthy ones
type RoundRobinSelector struct {
	mounts  []Mount
	current int
	mutex   sync.RWMutex
}

// NewRoundRobinSelector creates a round-robin mount selector
func NewRoundRobinSelector(mounts []Mount) *RoundRobinSelector {
	return &RoundRobinSelector{mounts: mounts}
}

// SelectMount chooses the next mount in rotation. The key is accepted for
// interface symmetry with other selectors but round-robin ignores it.
func (rb *RoundRobinSelector) SelectMount(key string) (Mount, error) {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()

	if len(rb.mounts) == 0 {
		return nil, errors.New("no mounts available")
	}

	start := rb.current
	for {
		m := rb.mounts[rb.current]
		rb.current = (rb.current + 1) % len(rb.mounts)

		if m.IsHealthy() {
			return m, nil
		}

		if rb.current == start {
			return nil, errors.New("no healthy mounts available")
		}
	}
}

func (rb *RoundRobinSelector) UpdateMountHealth(path string, healthy bool) {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()

	for _, m := range rb.mounts {
		if m.GetPath() == path {
			m.SetHealthy(healthy)
			return
		}
	}
}

func (rb *RoundRobinSelector) GetMounts() []Mount {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()

	mounts := make([]Mount, len(rb.mounts))
	copy(mounts, rb.mounts)
	return mounts
}
