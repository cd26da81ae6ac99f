package modelstore

import (
	"fmt"

	"github.com/fystack/modelstore/pkg/config"
)

// RuntimeMode selects the deployment flavour the store runs in.
type RuntimeMode int

const (
	Standalone RuntimeMode = iota
	Cluster
)

const (
	standalonePartitions = 1
	clusterPartitions    = 4
)

func (m RuntimeMode) String() string {
	switch m {
	case Standalone:
		return config.RuntimeModeStandalone
	case Cluster:
		return config.RuntimeModeCluster
	}
	return fmt.Sprintf("RuntimeMode(%d)", int(m))
}

func ParseRuntimeMode(s string) (RuntimeMode, error) {
	switch s {
	case config.RuntimeModeStandalone, "":
		return Standalone, nil
	case config.RuntimeModeCluster:
		return Cluster, nil
	}
	return Standalone, fmt.Errorf("unknown runtime mode %q", s)
}

// PartitionCount is the partition count requested when a model table is
// created.
func PartitionCount(mode RuntimeMode) int {
	if mode == Cluster {
		return clusterPartitions
	}
	return standalonePartitions
}
