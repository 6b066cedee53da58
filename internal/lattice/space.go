package lattice

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonymizer/pkg/errors"
	"github.com/inferloop/anonymizer/pkg/models"
)

// maxMaterializedNodes bounds the per-node property bitmap, which is
// allocated once at construction.
const maxMaterializedNodes = 1 << 28

// SolutionSpace is the product lattice over per-attribute generalization
// levels. Nodes are encoded as mixed-radix 64-bit identifiers; dimension 0 is
// the most significant digit. The space owns the per-node property bitmap and
// the information-loss cells written back by the node checker.
type SolutionSpace struct {
	minLevels  []int
	maxLevels  []int
	radix      []int
	multiplier []int64
	numNodes   int64
	maxLevel   int

	bits       []uint16
	directions [numProperties]Direction

	utility    map[int64]float64
	lowerBound map[int64]float64

	materialized []int64
	touched      map[int64]bool

	levelIndex [][]int64

	logger *logrus.Logger
}

// NewSolutionSpace creates the lattice for the given per-dimension level
// ranges. The monotonicity of the privacy model determines whether the
// aggregate anonymity verdict is predictive.
func NewSolutionSpace(minLevels, maxLevels []int, monotonicity models.Monotonicity, logger *logrus.Logger) (*SolutionSpace, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if len(minLevels) == 0 || len(minLevels) != len(maxLevels) {
		return nil, errors.NewConfigurationError("LATTICE_DIMENSIONS",
			"min and max level vectors must be non-empty and of equal length")
	}

	dims := len(minLevels)
	s := &SolutionSpace{
		minLevels:  append([]int(nil), minLevels...),
		maxLevels:  append([]int(nil), maxLevels...),
		radix:      make([]int, dims),
		multiplier: make([]int64, dims),
		utility:    make(map[int64]float64),
		lowerBound: make(map[int64]float64),
		touched:    make(map[int64]bool),
		logger:     logger,
	}

	numNodes := int64(1)
	for d := 0; d < dims; d++ {
		if minLevels[d] < 0 || maxLevels[d] < minLevels[d] {
			return nil, errors.WrapError(errors.ErrInvalidLevelRange,
				errors.ErrorTypeConfiguration, "LATTICE_LEVEL_RANGE",
				fmt.Sprintf("dimension %d: min=%d max=%d", d, minLevels[d], maxLevels[d]))
		}
		s.radix[d] = maxLevels[d] - minLevels[d] + 1
		if numNodes > math.MaxInt64/int64(s.radix[d]) {
			return nil, errors.WrapError(errors.ErrSpaceTooLarge,
				errors.ErrorTypeConfiguration, "LATTICE_TOO_LARGE",
				"the solution space exceeds 2^63 nodes")
		}
		numNodes *= int64(s.radix[d])
		s.maxLevel += maxLevels[d]
	}
	if numNodes > maxMaterializedNodes {
		return nil, errors.WrapError(errors.ErrSpaceTooLarge,
			errors.ErrorTypeConfiguration, "LATTICE_TOO_LARGE",
			fmt.Sprintf("%d nodes cannot be materialized", numNodes))
	}
	s.numNodes = numNodes
	s.bits = make([]uint16, numNodes)

	// Mixed-radix multipliers, last dimension least significant
	s.multiplier[dims-1] = 1
	for d := dims - 2; d >= 0; d-- {
		s.multiplier[d] = s.multiplier[d+1] * int64(s.radix[d+1])
	}

	for p := Property(0); p < numProperties; p++ {
		s.directions[p] = DirectionNone
	}
	s.directions[PropertyKAnonymous] = DirectionUp
	s.directions[PropertyNotKAnonymous] = DirectionDown
	s.directions[PropertyInsufficientUtility] = DirectionUp
	s.directions[PropertySuccessorsPruned] = DirectionUp
	if monotonicity == models.MonotonicityFull {
		s.directions[PropertyAnonymous] = DirectionUp
		s.directions[PropertyNotAnonymous] = DirectionDown
	}

	logger.WithFields(logrus.Fields{
		"dimensions": dims,
		"nodes":      numNodes,
		"max_level":  s.maxLevel,
	}).Debug("Solution space created")

	return s, nil
}

// Size returns the total number of transformations in the solution space
func (s *SolutionSpace) Size() int64 { return s.numNodes }

// Dimensions returns the number of quasi-identifying attributes
func (s *SolutionSpace) Dimensions() int { return len(s.minLevels) }

// MinLevels returns the per-dimension lower bounds
func (s *SolutionSpace) MinLevels() []int { return s.minLevels }

// MaxLevels returns the per-dimension upper bounds
func (s *SolutionSpace) MaxLevels() []int { return s.maxLevels }

// MaxLevel returns the level of the top transformation
func (s *SolutionSpace) MaxLevel() int { return s.maxLevel }

// Bottom returns the identifier of the bottom transformation
func (s *SolutionSpace) Bottom() int64 { return s.ID(s.minLevels) }

// Top returns the identifier of the top transformation
func (s *SolutionSpace) Top() int64 { return s.ID(s.maxLevels) }

// ID encodes a level tuple into its mixed-radix identifier
func (s *SolutionSpace) ID(levels []int) int64 {
	var id int64
	for d, level := range levels {
		id += int64(level-s.minLevels[d]) * s.multiplier[d]
	}
	return id
}

// Levels decodes an identifier into its level tuple
func (s *SolutionSpace) Levels(id int64) []int {
	levels := make([]int, len(s.minLevels))
	for d := range s.multiplier {
		levels[d] = int(id/s.multiplier[d]) + s.minLevels[d]
		id %= s.multiplier[d]
	}
	return levels
}

// Level returns the sum of generalization levels of the given node
func (s *SolutionSpace) Level(id int64) int {
	level := 0
	for d := range s.multiplier {
		level += int(id/s.multiplier[d]) + s.minLevels[d]
		id %= s.multiplier[d]
	}
	return level
}

// LevelOf returns the level of a transformation tuple
func (s *SolutionSpace) LevelOf(levels []int) int {
	level := 0
	for _, l := range levels {
		level += l
	}
	return level
}

// Predecessors returns the one-step predecessors of the given node, i.e. all
// nodes with exactly one dimension decremented.
func (s *SolutionSpace) Predecessors(id int64) []int64 {
	levels := s.Levels(id)
	result := make([]int64, 0, len(levels))
	for d := 0; d < len(levels); d++ {
		if levels[d] > s.minLevels[d] {
			result = append(result, id-s.multiplier[d])
		}
	}
	return result
}

// Successors returns the one-step successors of the given node in reverse
// dimensional order. Callers rely on this order for reproducible traversal
// traces.
func (s *SolutionSpace) Successors(id int64) []int64 {
	levels := s.Levels(id)
	result := make([]int64, 0, len(levels))
	for d := len(levels) - 1; d >= 0; d-- {
		if levels[d] < s.maxLevels[d] {
			result = append(result, id+s.multiplier[d])
		}
	}
	return result
}

// IsParentChildOrEqual reports whether parent generalizes child (or equals
// it) in every dimension.
func (s *SolutionSpace) IsParentChildOrEqual(parent, child int64) bool {
	for d := range s.multiplier {
		if parent/s.multiplier[d] < child/s.multiplier[d] {
			return false
		}
		parent %= s.multiplier[d]
		child %= s.multiplier[d]
	}
	return true
}

// IsDirectParentChild reports whether parent is a one-step successor of child
func (s *SolutionSpace) IsDirectParentChild(parent, child int64) bool {
	diff := 0
	for d := range s.multiplier {
		p := parent / s.multiplier[d]
		c := child / s.multiplier[d]
		if p < c {
			return false
		}
		diff += int(p - c)
		parent %= s.multiplier[d]
		child %= s.multiplier[d]
	}
	return diff == 1
}

// EqualDimensionsBitmask returns a mask with bit d set iff both nodes agree
// on dimension d.
func (s *SolutionSpace) EqualDimensionsBitmask(a, b int64) uint64 {
	var mask uint64
	for d := range s.multiplier {
		if a/s.multiplier[d] == b/s.multiplier[d] {
			mask |= 1 << uint(d)
		}
		a %= s.multiplier[d]
		b %= s.multiplier[d]
	}
	return mask
}

// PutProperty tags a node with the given property. Directional properties are
// propagated eagerly through the cone of ancestors or descendants, so that
// HasProperty is a plain bitmap probe.
func (s *SolutionSpace) PutProperty(id int64, p Property) {
	mask := uint16(1) << uint(p)
	if s.bits[id]&mask != 0 {
		return
	}
	s.set(id, mask)

	switch s.directions[p] {
	case DirectionUp:
		stack := s.Successors(id)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if s.bits[n]&mask != 0 {
				continue
			}
			s.set(n, mask)
			stack = append(stack, s.Successors(n)...)
		}
	case DirectionDown:
		stack := s.Predecessors(id)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if s.bits[n]&mask != 0 {
				continue
			}
			s.set(n, mask)
			stack = append(stack, s.Predecessors(n)...)
		}
	}
}

// HasProperty reports whether the node carries the property, either directly
// or through directional propagation.
func (s *SolutionSpace) HasProperty(id int64, p Property) bool {
	return s.bits[id]&(uint16(1)<<uint(p)) != 0
}

// PropertyDirection returns the configured direction of the given property
func (s *SolutionSpace) PropertyDirection(p Property) Direction {
	return s.directions[p]
}

// SetLoss records information loss and lower bound for a checked node
func (s *SolutionSpace) SetLoss(id int64, loss, bound float64) {
	s.utility[id] = loss
	s.lowerBound[id] = bound
	s.materialize(id)
}

// Loss returns the recorded information loss of a node
func (s *SolutionSpace) Loss(id int64) (float64, bool) {
	v, ok := s.utility[id]
	return v, ok
}

// LowerBound returns the recorded lower bound of a node
func (s *SolutionSpace) LowerBound(id int64) (float64, bool) {
	v, ok := s.lowerBound[id]
	return v, ok
}

// MaterializedTransformations returns all nodes that have been touched by the
// search, in insertion order.
func (s *SolutionSpace) MaterializedTransformations() []int64 {
	return s.materialized
}

// UnsafeNodesAtLevel enumerates all nodes on the given level. This performs a
// full sweep of the space on first use and only suits small spaces.
func (s *SolutionSpace) UnsafeNodesAtLevel(level int) []int64 {
	if s.levelIndex == nil {
		s.levelIndex = make([][]int64, s.maxLevel+1)
		for id := int64(0); id < s.numNodes; id++ {
			l := s.Level(id)
			s.levelIndex[l] = append(s.levelIndex[l], id)
		}
	}
	if level < 0 || level > s.maxLevel {
		return nil
	}
	return s.levelIndex[level]
}

// UnsafeAllNodes enumerates every node identifier in ascending order
func (s *SolutionSpace) UnsafeAllNodes() []int64 {
	result := make([]int64, s.numNodes)
	for id := int64(0); id < s.numNodes; id++ {
		result[id] = id
	}
	return result
}

// Transformation returns a wrapper with access to the node's tuple and state
func (s *SolutionSpace) Transformation(id int64) *Transformation {
	return &Transformation{space: s, id: id, levels: s.Levels(id)}
}

func (s *SolutionSpace) set(id int64, mask uint16) {
	s.bits[id] |= mask
	s.materialize(id)
}

func (s *SolutionSpace) materialize(id int64) {
	if !s.touched[id] {
		s.touched[id] = true
		s.materialized = append(s.materialized, id)
	}
}
