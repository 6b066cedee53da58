package algorithm

import (
	"sort"

	"github.com/inferloop/anonymizer/internal/hierarchy"
	"github.com/inferloop/anonymizer/internal/lattice"
)

// Strategy orders candidate nodes for the traversal. Candidates are ranked by
// the sum of their per-dimension height shares ascending (bias toward less
// generalization), tie-broken by the levels of the dimensions in priority
// order (taller hierarchies first) and finally by identifier, so the
// traversal is a pure function of lattice and hierarchies.
type Strategy struct {
	space    *lattice.SolutionSpace
	heights  []int
	priority []int
}

// NewStrategy derives the ordering from the hierarchy heights.
func NewStrategy(space *lattice.SolutionSpace, hierarchies []*hierarchy.Hierarchy) *Strategy {
	heights := make([]int, len(hierarchies))
	for d, h := range hierarchies {
		heights[d] = h.Height()
	}
	priority := make([]int, len(heights))
	for d := range priority {
		priority[d] = d
	}
	sort.SliceStable(priority, func(i, j int) bool {
		return heights[priority[i]] > heights[priority[j]]
	})
	return &Strategy{space: space, heights: heights, priority: priority}
}

// weight returns the accumulated height share of a node's levels
func (s *Strategy) weight(levels []int) float64 {
	total := 0.0
	for d, level := range levels {
		if s.heights[d] > 1 {
			total += float64(level) / float64(s.heights[d]-1)
		}
	}
	return total
}

// Less reports whether node a should be visited before node b.
func (s *Strategy) Less(a, b int64) bool {
	la := s.space.Levels(a)
	lb := s.space.Levels(b)
	wa := s.weight(la)
	wb := s.weight(lb)
	if wa != wb {
		return wa < wb
	}
	for _, d := range s.priority {
		if la[d] != lb[d] {
			return la[d] < lb[d]
		}
	}
	return a < b
}

// Sort orders node identifiers in place
func (s *Strategy) Sort(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return s.Less(ids[i], ids[j]) })
}
