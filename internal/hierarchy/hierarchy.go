package hierarchy

import (
	"fmt"

	"github.com/inferloop/anonymizer/pkg/errors"
)

// Hierarchy holds the generalization rules for one quasi-identifying
// attribute. The input is a rectangular matrix H[v][l] of dictionary codes
// where rows are leaf values and columns are generalization levels; column 0
// is the identity. Internally the mapping is extended so that a code produced
// at any level can be generalized further, which is what snapshot-based
// groupification relies on.
type Hierarchy struct {
	name      string
	height    int
	leaves    int
	matrix    [][]int
	extended  map[int][]int
	domains   []int
	shareByLevel []map[int]int
}

// New builds and validates a hierarchy from its leaf matrix.
func New(name string, matrix [][]int) (*Hierarchy, error) {
	if len(matrix) == 0 || len(matrix[0]) == 0 {
		return nil, errors.NewConfigurationError("HIERARCHY_EMPTY",
			fmt.Sprintf("hierarchy for attribute '%s' is empty", name))
	}
	height := len(matrix[0])
	for _, row := range matrix {
		if len(row) != height {
			return nil, errors.NewConfigurationError("HIERARCHY_RAGGED",
				fmt.Sprintf("hierarchy for attribute '%s' is not rectangular", name))
		}
	}

	h := &Hierarchy{
		name:   name,
		height: height,
		leaves: len(matrix),
		matrix: matrix,
	}
	if !h.isMonotonic() {
		return nil, errors.WrapError(errors.ErrHierarchyNotMonotonic,
			errors.ErrorTypeConfiguration, "HIERARCHY_NOT_MONOTONIC",
			fmt.Sprintf("the hierarchy for attribute '%s' is not monotonic", name))
	}

	h.buildExtendedMap()
	h.buildShares()
	return h, nil
}

// Name returns the attribute name
func (h *Hierarchy) Name() string { return h.name }

// Height returns the number of generalization levels
func (h *Hierarchy) Height() int { return h.height }

// Leaves returns the number of leaf values
func (h *Hierarchy) Leaves() int { return h.leaves }

// Map generalizes a code to the given level. The code may itself be a
// generalized code from a lower level; the mapping then fix-points through
// the extended table.
func (h *Hierarchy) Map(code, level int) int {
	row, ok := h.extended[code]
	if !ok || row[level] < 0 {
		return code
	}
	return row[level]
}

// DomainSize returns the number of distinct codes at the given level
func (h *Hierarchy) DomainSize(level int) int { return h.domains[level] }

// Share returns the fraction of the level-0 domain covered by the preimage of
// the given generalized code at the given level. The result is in (0, 1].
func (h *Hierarchy) Share(code, level int) float64 {
	n := h.shareByLevel[level][code]
	if n == 0 {
		n = 1
	}
	return float64(n) / float64(h.domains[0])
}

// isMonotonic verifies that generalization never refines: once two leaves
// share a code at some level, they share codes at every higher level.
func (h *Hierarchy) isMonotonic() bool {
	for level := 0; level < h.height-1; level++ {
		next := make(map[int]int)
		for _, row := range h.matrix {
			if prev, seen := next[row[level]]; seen {
				if prev != row[level+1] {
					return false
				}
			} else {
				next[row[level]] = row[level+1]
			}
		}
	}
	return true
}

func (h *Hierarchy) buildExtendedMap() {
	h.extended = make(map[int][]int)
	for _, row := range h.matrix {
		for level := 0; level < h.height; level++ {
			code := row[level]
			ext, ok := h.extended[code]
			if !ok {
				ext = make([]int, h.height)
				for i := range ext {
					ext[i] = -1
				}
				h.extended[code] = ext
			}
			for target := level; target < h.height; target++ {
				ext[target] = row[target]
			}
		}
	}
}

func (h *Hierarchy) buildShares() {
	h.domains = make([]int, h.height)
	h.shareByLevel = make([]map[int]int, h.height)
	for level := 0; level < h.height; level++ {
		counts := make(map[int]int)
		for _, row := range h.matrix {
			counts[row[level]]++
		}
		h.shareByLevel[level] = counts
		h.domains[level] = len(counts)
	}
}
