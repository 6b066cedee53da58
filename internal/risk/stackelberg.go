package risk

// StackelbergModel computes the expected publisher payout in the
// publisher-vs-attacker game. The publisher earns the information-scaled
// benefit; a rational attacker only mounts an attack when the expected gain
// exceeds the attack cost, in which case the payout is discounted by the
// attacker's success probability.
type StackelbergModel struct {
	publisherBenefit float64
	attackerCost     float64
}

// NewStackelbergModel creates a model from the financial configuration.
func NewStackelbergModel(publisherBenefit, attackerCost float64) *StackelbergModel {
	return &StackelbergModel{
		publisherBenefit: publisherBenefit,
		attackerCost:     attackerCost,
	}
}

// PublisherBenefit returns the maximal payout per record
func (m *StackelbergModel) PublisherBenefit() float64 { return m.publisherBenefit }

// AttackerCost returns the attacker's cost per attack
func (m *StackelbergModel) AttackerCost() float64 { return m.attackerCost }

// ExpectedPublisherPayout returns the expected payout for a record with the
// given information loss and attacker success probability.
func (m *StackelbergModel) ExpectedPublisherPayout(informationLoss, successProbability float64) float64 {
	benefit := m.publisherBenefit * (1 - informationLoss)
	if successProbability*m.publisherBenefit <= m.attackerCost {
		// Attacking is not rational, the publisher keeps the full benefit
		return benefit
	}
	return benefit * (1 - successProbability*m.attackerCost/m.publisherBenefit)
}
