package mount

import (
	"fmt"
	"strings"

	"github.com/WillKirkmanM/staticcache/internal/config"
)

// Algorithm identifies a mount selection strategy
type Algorithm string

const (
	RoundRobin         Algorithm = "round-robin"
	LeastConnections   Algorithm = "least-connections"
	WeightedRoundRobin Algorithm = "weighted-round-robin"
)

// NewSelector builds a Selector over the configured mounts using the
// factory pattern, mirroring the teacher's NewLoadBalancer
func NewSelector(algorithm string, mountConfigs []config.MountConfig) (Selector, error) {
	if len(mountConfigs) == 0 {
		return nil, fmt.Errorf("no mounts configured")
	}

	mounts := make([]Mount, len(mountConfigs))
	for i, cfg := range mountConfigs {
		mounts[i] = NewDirMount(cfg.Path, cfg.Weight)
	}

	switch Algorithm(strings.ToLower(algorithm)) {
	case RoundRobin, "":
		return NewRoundRobinSelector(mounts), nil
	case LeastConnections:
		return NewLeastConnectionsSelector(mounts), nil
	case WeightedRoundRobin:
		return NewWeightedRoundRobinSelector(mounts), nil
	default:
		return nil, fmt.Errorf("unsupported mount selection algorithm: %s", algorithm)
	}
}

// SupportedAlgorithms returns the list of selection algorithms this
// package implements
func SupportedAlgorithms() []string {
	return []string{
		string(RoundRobin),
		string(LeastConnections),
		string(WeightedRoundRobin),
	}
}
