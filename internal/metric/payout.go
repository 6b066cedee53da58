package metric

import (
	"github.com/inferloop/anonymizer/internal/groupify"
	"github.com/inferloop/anonymizer/internal/hierarchy"
	"github.com/inferloop/anonymizer/internal/risk"
	"github.com/inferloop/anonymizer/pkg/models"
)

// PublisherPayout is the Stackelberg-game metric: the loss of a class is the
// publisher benefit foregone against a rational attacker, combining
// entropy-based generalization cost with the attacker's per-class success
// probability. The bound assumes the attacker never succeeds.
type PublisherPayout struct {
	shares     entropyShares
	model      *risk.StackelbergModel
	journalist bool
	rows       int
	gFactor    float64
	sFactor    float64
}

// NewPublisherPayout creates the metric for the given attacker model and
// financial configuration.
func NewPublisherPayout(attackerModel models.AttackerModel, model *risk.StackelbergModel, gsFactor float64) *PublisherPayout {
	g, s := gsFactors(gsFactor)
	return &PublisherPayout{
		model:      model,
		journalist: attackerModel == models.AttackerJournalist,
		gFactor:    g,
		sFactor:    s,
	}
}

func (m *PublisherPayout) Name() string { return "publisher payout" }

func (m *PublisherPayout) Initialize(hierarchies []*hierarchy.Hierarchy, rows int) error {
	m.shares = newEntropyShares(hierarchies)
	m.rows = rows
	return nil
}

// IsMonotonic is false for the realized loss; only the bound is monotone.
func (m *PublisherPayout) IsMonotonic() bool { return false }

func (m *PublisherPayout) MinLoss() float64 { return 0 }

func (m *PublisherPayout) MaxLoss() float64 {
	return float64(m.rows) * m.model.PublisherBenefit()
}

// successProbability returns the attacker's per-record success probability.
// Under the journalist model a missing population count silently falls back
// to the prosecutor model.
func (m *PublisherPayout) successProbability(e *groupify.Entry) float64 {
	if !m.journalist || e.PCount == 0 {
		return 1 / float64(e.Count)
	}
	return 1 / float64(e.PCount)
}

func (m *PublisherPayout) Loss(generalization []int, g *groupify.HashGroupify) WithBound {
	real := 0.0
	bound := 0.0
	maxPayout := m.model.PublisherBenefit()
	for e := g.First(); e != nil; e = e.NextOrdered {
		if e.Count == 0 {
			continue
		}
		infoLoss := m.shares.classLoss(generalization, e)
		realPayout := m.model.ExpectedPublisherPayout(infoLoss, m.successProbability(e))
		boundPayout := m.model.ExpectedPublisherPayout(infoLoss, 0)
		if e.IsNotOutlier {
			real += m.gFactor * float64(e.Count) * (maxPayout - realPayout)
		} else {
			real += m.sFactor * float64(e.Count) * maxPayout
		}
		bound += m.gFactor * float64(e.Count) * (maxPayout - boundPayout)
	}
	return WithBound{Loss: real, Bound: bound}
}
