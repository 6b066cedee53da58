package criteria

import (
	"fmt"
	"math"
	"sort"

	"github.com/inferloop/anonymizer/internal/groupify"
	"github.com/inferloop/anonymizer/internal/hierarchy"
	"github.com/inferloop/anonymizer/pkg/errors"
	"github.com/inferloop/anonymizer/pkg/models"
)

// Criterion is a privacy predicate over a single equivalence class. A node is
// anonymous iff every non-empty class satisfies every criterion, up to the
// configured outlier budget.
type Criterion interface {
	Name() string
	// IsMonotonic reports whether satisfaction is preserved along lattice
	// ascents, which allows directional pruning.
	IsMonotonic() bool
	IsAnonymous(e *groupify.Entry) bool
}

// KAnonymity requires every class to contain at least K rows.
type KAnonymity struct {
	K int
}

func (c *KAnonymity) Name() string      { return fmt.Sprintf("%d-anonymity", c.K) }
func (c *KAnonymity) IsMonotonic() bool { return true }
func (c *KAnonymity) IsAnonymous(e *groupify.Entry) bool {
	return e.Count >= c.K
}

// DistinctLDiversity requires at least L distinct sensitive values per class.
type DistinctLDiversity struct {
	L         int
	DistIndex int
}

func (c *DistinctLDiversity) Name() string      { return fmt.Sprintf("distinct-%d-diversity", c.L) }
func (c *DistinctLDiversity) IsMonotonic() bool { return true }
func (c *DistinctLDiversity) IsAnonymous(e *groupify.Entry) bool {
	return e.Distributions[c.DistIndex].Distinct() >= c.L
}

// EntropyLDiversity requires the entropy of the sensitive distribution of
// every class to be at least log(L).
type EntropyLDiversity struct {
	L         int
	DistIndex int
}

func (c *EntropyLDiversity) Name() string      { return fmt.Sprintf("entropy-%d-diversity", c.L) }
func (c *EntropyLDiversity) IsMonotonic() bool { return true }
func (c *EntropyLDiversity) IsAnonymous(e *groupify.Entry) bool {
	d := e.Distributions[c.DistIndex]
	total := float64(d.Total())
	if total == 0 {
		return true
	}
	entropy := 0.0
	for _, v := range d.Values() {
		p := float64(d.Count(v)) / total
		entropy -= p * math.Log(p)
	}
	return entropy >= math.Log(float64(c.L))
}

// RecursiveCLDiversity implements recursive (c,l)-diversity: with class value
// frequencies r1 >= r2 >= ... >= rm, require r1 < c * (rl + ... + rm).
type RecursiveCLDiversity struct {
	C         float64
	L         int
	DistIndex int
}

func (c *RecursiveCLDiversity) Name() string {
	return fmt.Sprintf("recursive-(%g,%d)-diversity", c.C, c.L)
}
func (c *RecursiveCLDiversity) IsMonotonic() bool { return true }
func (c *RecursiveCLDiversity) IsAnonymous(e *groupify.Entry) bool {
	d := e.Distributions[c.DistIndex]
	if d.Distinct() < c.L {
		return false
	}
	counts := make([]int, 0, d.Distinct())
	for _, v := range d.Values() {
		counts = append(counts, d.Count(v))
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))
	tail := 0
	for i := c.L - 1; i < len(counts); i++ {
		tail += counts[i]
	}
	return float64(counts[0]) < c.C*float64(tail)
}

// EqualTCloseness bounds the earth mover's distance, under the equal ground
// distance, between a class's sensitive distribution and the global one.
type EqualTCloseness struct {
	T         float64
	DistIndex int
	Global    map[int]float64
	order     []int
}

// NewEqualTCloseness creates the criterion for a precomputed global
// distribution (value code to relative frequency).
func NewEqualTCloseness(t float64, distIndex int, global map[int]float64) *EqualTCloseness {
	order := make([]int, 0, len(global))
	for v := range global {
		order = append(order, v)
	}
	sort.Ints(order)
	return &EqualTCloseness{T: t, DistIndex: distIndex, Global: global, order: order}
}

func (c *EqualTCloseness) Name() string      { return fmt.Sprintf("equal-%g-closeness", c.T) }
func (c *EqualTCloseness) IsMonotonic() bool { return true }
func (c *EqualTCloseness) IsAnonymous(e *groupify.Entry) bool {
	d := e.Distributions[c.DistIndex]
	total := float64(d.Total())
	if total == 0 {
		return true
	}
	// EMD with equal ground distance is half the variational distance
	distance := 0.0
	for _, v := range c.order {
		distance += math.Abs(float64(d.Count(v))/total - c.Global[v])
	}
	return distance/2 <= c.T
}

// HierarchicalTCloseness bounds the earth mover's distance under the
// hierarchical ground distance induced by the sensitive attribute's
// generalization hierarchy.
type HierarchicalTCloseness struct {
	T         float64
	DistIndex int
	Global    map[int]float64
	Hierarchy *hierarchy.Hierarchy
	order     []int
}

// NewHierarchicalTCloseness creates the criterion for a precomputed global
// distribution and the sensitive attribute's hierarchy.
func NewHierarchicalTCloseness(t float64, distIndex int, global map[int]float64, h *hierarchy.Hierarchy) *HierarchicalTCloseness {
	order := make([]int, 0, len(global))
	for v := range global {
		order = append(order, v)
	}
	sort.Ints(order)
	return &HierarchicalTCloseness{T: t, DistIndex: distIndex, Global: global, Hierarchy: h, order: order}
}

func (c *HierarchicalTCloseness) Name() string      { return fmt.Sprintf("hierarchical-%g-closeness", c.T) }
func (c *HierarchicalTCloseness) IsMonotonic() bool { return true }

// IsAnonymous computes the tree EMD as the height-normalized sum of the total
// variation distances of the level-wise coarsenings: mass matched only at
// level l has to travel l/H, and the telescoped sum of travelled distances is
// (1/H) * sum over levels of the variational distance at that level.
func (c *HierarchicalTCloseness) IsAnonymous(e *groupify.Entry) bool {
	d := e.Distributions[c.DistIndex]
	total := float64(d.Total())
	if total == 0 {
		return true
	}
	height := c.Hierarchy.Height()
	if height <= 1 {
		// Degenerate tree, equal ground distance applies
		eq := EqualTCloseness{T: c.T, DistIndex: c.DistIndex, Global: c.Global, order: c.order}
		return eq.IsAnonymous(e)
	}

	distance := 0.0
	for level := 0; level < height-1; level++ {
		extra := make(map[int]float64)
		for _, v := range c.order {
			g := c.Hierarchy.Map(v, level)
			extra[g] += float64(d.Count(v))/total - c.Global[v]
		}
		variation := 0.0
		keys := make([]int, 0, len(extra))
		for g := range extra {
			keys = append(keys, g)
		}
		sort.Ints(keys)
		for _, g := range keys {
			variation += math.Abs(extra[g])
		}
		distance += variation / 2
	}
	distance /= float64(height - 1)
	return distance <= c.T
}

// GlobalDistribution computes the relative frequency of each sensitive value
// code over the whole dataset for the given column.
func GlobalDistribution(ds *models.Dataset, col int) map[int]float64 {
	counts := make(map[int]int)
	for row := 0; row < ds.Rows(); row++ {
		counts[ds.Value(row, col)]++
	}
	global := make(map[int]float64, len(counts))
	for v, n := range counts {
		global[v] = float64(n) / float64(ds.Rows())
	}
	return global
}

// FromSpecs assembles criterion instances from declarative specs.
// sensitiveHierarchies maps a sensitive column position to its hierarchy and
// is only needed for hierarchical t-closeness.
func FromSpecs(specs []models.CriterionSpec, ds *models.Dataset, sensitiveHierarchies map[int]*hierarchy.Hierarchy) ([]Criterion, error) {
	distIndex := make(map[int]int)
	for i, col := range ds.SensitiveIndices() {
		distIndex[col] = i
	}

	result := make([]Criterion, 0, len(specs))
	for _, spec := range specs {
		needsSensitive := spec.Kind != models.CriterionKAnonymity
		idx := 0
		if needsSensitive {
			var ok bool
			idx, ok = distIndex[spec.SensitiveIndex]
			if !ok {
				return nil, errors.WrapError(errors.ErrMissingSensitive,
					errors.ErrorTypeConfiguration, "CRITERION_SENSITIVE",
					fmt.Sprintf("column %d is not declared sensitive", spec.SensitiveIndex))
			}
		}
		switch spec.Kind {
		case models.CriterionKAnonymity:
			result = append(result, &KAnonymity{K: spec.K})
		case models.CriterionDistinctLDiversity:
			result = append(result, &DistinctLDiversity{L: spec.L, DistIndex: idx})
		case models.CriterionEntropyLDiversity:
			result = append(result, &EntropyLDiversity{L: spec.L, DistIndex: idx})
		case models.CriterionRecursiveDiversity:
			result = append(result, &RecursiveCLDiversity{C: spec.C, L: spec.L, DistIndex: idx})
		case models.CriterionEqualTCloseness:
			global := GlobalDistribution(ds, spec.SensitiveIndex)
			result = append(result, NewEqualTCloseness(spec.T, idx, global))
		case models.CriterionHierarchicalTCloseness:
			h, ok := sensitiveHierarchies[spec.SensitiveIndex]
			if !ok {
				return nil, errors.NewConfigurationError("CRITERION_HIERARCHY",
					fmt.Sprintf("hierarchical t-closeness on column %d requires a hierarchy", spec.SensitiveIndex))
			}
			global := GlobalDistribution(ds, spec.SensitiveIndex)
			result = append(result, NewHierarchicalTCloseness(spec.T, idx, global, h))
		default:
			return nil, errors.NewConfigurationError("CRITERION_UNKNOWN",
				fmt.Sprintf("unknown criterion kind '%s'", spec.Kind))
		}
	}
	return result, nil
}
