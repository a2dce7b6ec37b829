package mount

import (
	"errors"
	"sync"
)

// LeastConnectionsSelector routes to the healthy mount with the fewest
// connections currently in flight
type LeastConnectionsSelector struct {
	mounts []Mount
	mutex  sync.RWMutex
}

func NewLeastConnectionsSelector(mounts []Mount) *LeastConnectionsSelector {
	return &LeastConnectionsSelector{mounts: mounts}
}

func (lc *LeastConnectionsSelector) SelectMount(key string) (Mount, error) {
	lc.mutex.RLock()
	defer lc.mutex.RUnlock()

	if len(lc.mounts) == 0 {
		return nil, errors.New("no mounts available")
	}

	var selected Mount
	minConnections := int64(-1)

	for _, m := range lc.mounts {
		if !m.IsHealthy() {
			continue
		}

		connections := m.GetConnections()
		if minConnections == -1 || connections < minConnections {
			selected = m
			minConnections = connections
		}
	}

	if selected == nil {
		return nil, errors.New("no healthy mounts available")
	}

	return selected, nil
}

func (lc *LeastConnectionsSelector) UpdateMountHealth(path string, healthy bool) {
	lc.mutex.Lock()
	defer lc.mutex.Unlock()

	for _, m := range lc.mounts {
		if m.GetPath() == path {
			m.SetHealthy(healthy)
			return
		}
	}
}

func (lc *LeastConnectionsSelector) GetMounts() []Mount {
	lc.mutex.RLock()
	defer lc.mutex.RUnlock()

	mounts := make([]Mount, len(lc.mounts))
	copy(mounts, lc.mounts)
	return mounts
}
