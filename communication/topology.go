package communication

import (
	"fmt"

	"github.com/samber/lo"
)

// Topology places a process in the fixed-fanout worker tree: children of id
// are id*fanout+1 .. id*fanout+fanout, bounded by size.
type Topology struct {
	id       int
	size     int
	fanout   int
	children []int
}

func NewTopology(id, size, fanout int) (Topology, error) {
	if size <= 0 {
		return Topology{}, fmt.Errorf("process count %d must be positive", size)
	}
	if id < 0 || id >= size {
		return Topology{}, fmt.Errorf("rank %d outside 0..%d", id, size-1)
	}
	if fanout <= 0 {
		return Topology{}, fmt.Errorf("fanout %d must be positive", fanout)
	}
	children := lo.Filter(lo.RangeFrom(id*fanout+1, fanout), func(child int, _ int) bool {
		return child < size
	})
	return Topology{id: id, size: size, fanout: fanout, children: children}, nil
}

func (t Topology) ID() int     { return t.id }
func (t Topology) Size() int   { return t.size }
func (t Topology) Fanout() int { return t.fanout }

func (t Topology) IsMaster() bool { return t.id == 0 }

// Children returns the direct children. The slice must not be modified.
func (t Topology) Children() []int { return t.children }

// Parent returns the parent rank, or -1 for the master.
func (t Topology) Parent() int {
	if t.IsMaster() {
		return -1
	}
	return (t.id - 1) / t.fanout
}

// Workers lists every rank except the master.
func (t Topology) Workers() []int {
	return lo.RangeFrom(1, t.size-1)
}
