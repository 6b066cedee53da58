package metric

import (
	"math"

	"github.com/inferloop/anonymizer/internal/groupify"
	"github.com/inferloop/anonymizer/internal/hierarchy"
)

// WithBound pairs the realized information loss of a transformation with a
// lower bound that ignores suppression and attacker success. The bound is
// monotone along lattice ascents and drives utility pruning.
type WithBound struct {
	Loss  float64
	Bound float64
}

// Metric computes the information loss of a candidate transformation from its
// equivalence-class partitioning.
type Metric interface {
	Name() string
	// Initialize precomputes per-dimension state from the hierarchies. rows
	// is the number of records in the input.
	Initialize(hierarchies []*hierarchy.Hierarchy, rows int) error
	// Loss returns realized loss and lower bound for the partitioning
	// produced under the given per-dimension generalization levels.
	Loss(generalization []int, g *groupify.HashGroupify) WithBound
	// IsMonotonic reports whether the realized loss itself is monotone along
	// lattice ascents.
	IsMonotonic() bool
	MinLoss() float64
	MaxLoss() float64
}

// gsFactors derives the generalization and suppression weights from a single
// factor in [0,1]. Both weights are 1 at 0.5; lower values discount
// generalization, higher values discount suppression.
func gsFactors(gsFactor float64) (gFactor, sFactor float64) {
	gFactor = 1
	if gsFactor < 0.5 {
		gFactor = 2 * gsFactor
	}
	sFactor = 1
	if gsFactor > 0.5 {
		sFactor = 2 * (1 - gsFactor)
	}
	return gFactor, sFactor
}

// entropyShares precomputes the share lookup used by the entropy-based loss:
// the loss of a class is the log-scaled product of the per-dimension shares
// of its generalized key, normalized into [0,1] by the log of the product of
// the level-0 domain sizes.
type entropyShares struct {
	hierarchies []*hierarchy.Hierarchy
	maxIL       float64
}

func newEntropyShares(hierarchies []*hierarchy.Hierarchy) entropyShares {
	maxIL := 1.0
	for _, h := range hierarchies {
		maxIL *= float64(h.DomainSize(0))
	}
	return entropyShares{
		hierarchies: hierarchies,
		maxIL:       math.Log10(maxIL),
	}
}

// classLoss returns the entropy-based information loss of one class in [0,1]:
// zero at the identity transformation, one at full generalization.
func (s entropyShares) classLoss(generalization []int, e *groupify.Entry) float64 {
	product := 1.0
	for d, h := range s.hierarchies {
		product *= h.Share(e.Key[d], generalization[d])
	}
	return math.Log10(product)/s.maxIL + 1
}
