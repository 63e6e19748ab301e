package app

import (
	"cmp"
	"slices"

	"github.com/dkeye/Conductor/internal/cluster"
)

// Policy picks the node that should host a new room.
type Policy interface {
	Pick(candidates []cluster.Usage) (cluster.NodeID, bool)
}

// LeastLoaded picks the node with the fewest active rooms.
// Ties go to the lexicographically lowest node id so every node agrees.
type LeastLoaded struct{}

func (LeastLoaded) Pick(candidates []cluster.Usage) (cluster.NodeID, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	best := slices.MinFunc(candidates, func(a, b cluster.Usage) int {
		if c := cmp.Compare(a.ActiveRooms, b.ActiveRooms); c != 0 {
			return c
		}
		return cmp.Compare(a.Node, b.Node)
	})
	return best.Node, true
}
