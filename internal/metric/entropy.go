package metric

import (
	"github.com/inferloop/anonymizer/internal/groupify"
	"github.com/inferloop/anonymizer/internal/hierarchy"
)

// EntropyLoss is the entropy-based information-loss metric. The loss of a
// class is its per-row entropy loss scaled by the class size; suppressed
// classes pay the maximal per-row loss weighted by the suppression factor.
type EntropyLoss struct {
	shares  entropyShares
	rows    int
	gFactor float64
	sFactor float64
}

// NewEntropyLoss creates the metric with the given
// generalization/suppression factor.
func NewEntropyLoss(gsFactor float64) *EntropyLoss {
	g, s := gsFactors(gsFactor)
	return &EntropyLoss{gFactor: g, sFactor: s}
}

func (m *EntropyLoss) Name() string { return "entropy-based loss" }

func (m *EntropyLoss) Initialize(hierarchies []*hierarchy.Hierarchy, rows int) error {
	m.shares = newEntropyShares(hierarchies)
	m.rows = rows
	return nil
}

func (m *EntropyLoss) IsMonotonic() bool { return true }

func (m *EntropyLoss) MinLoss() float64 { return 0 }

func (m *EntropyLoss) MaxLoss() float64 { return float64(m.rows) }

func (m *EntropyLoss) Loss(generalization []int, g *groupify.HashGroupify) WithBound {
	real := 0.0
	bound := 0.0
	for e := g.First(); e != nil; e = e.NextOrdered {
		if e.Count == 0 {
			continue
		}
		loss := m.shares.classLoss(generalization, e)
		if e.IsNotOutlier {
			real += m.gFactor * float64(e.Count) * loss
		} else {
			real += m.sFactor * float64(e.Count)
		}
		bound += m.gFactor * float64(e.Count) * loss
	}
	return WithBound{Loss: real, Bound: bound}
}
