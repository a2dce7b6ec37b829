package mount

import (
	"errors"
	"sync"
)

// WeightedRoundRobinSelector distributes selections proportionally to
// mount weight using the smooth weighted round-robin algorithm, so a
// heavier mount (e.g. a bigger disk) gets proportionally more keys
// without bursting.
type WeightedRoundRobinSelector struct {
	mounts         []Mount
	currentWeights []int
	mutex          sync.Mutex
}

func NewWeightedRoundRobinSelector(mounts []Mount) *WeightedRoundRobinSelector {
	return &WeightedRoundRobinSelector{
		mounts:         mounts,
		currentWeights: make([]int, len(mounts)),
	}
}

func (wrr *WeightedRoundRobinSelector) SelectMount(key string) (Mount, error) {
	wrr.mutex.Lock()
	defer wrr.mutex.Unlock()

	if len(wrr.mounts) == 0 {
		return nil, errors.New("no mounts available")
	}

	selectedIndex := -1
	maxCurrentWeight := -1

	for i, m := range wrr.mounts {
		if !m.IsHealthy() {
			continue
		}

		wrr.currentWeights[i] += m.GetWeight()

		if wrr.currentWeights[i] > maxCurrentWeight {
			selectedIndex = i
			maxCurrentWeight = wrr.currentWeights[i]
		}
	}

	if selectedIndex == -1 {
		return nil, errors.New("no healthy mounts available")
	}

	totalWeight := 0
	for _, m := range wrr.mounts {
		if m.IsHealthy() {
			totalWeight += m.GetWeight()
		}
	}

	wrr.currentWeights[selectedIndex] -= totalWeight

	return wrr.mounts[selectedIndex], nil
}

func (wrr *WeightedRoundRobinSelector) UpdateMountHealth(path string, healthy bool) {
	wrr.mutex.Lock()
	defer wrr.mutex.Unlock()

	for _, m := range wrr.mounts {
		if m.GetPath() == path {
			m.SetHealthy(healthy)
			return
		}
	}
}

func (wrr *WeightedRoundRobinSelector) GetMounts() []Mount {
	wrr.mutex.Lock()
	defer wrr.mutex.Unlock()

	mounts := make([]Mount, len(wrr.mounts))
	copy(mounts, wrr.mounts)
	return mounts
}
