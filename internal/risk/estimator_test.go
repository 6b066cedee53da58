package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonymizer/pkg/errors"
	"github.com/inferloop/anonymizer/pkg/models"
)

func datasetFromKeys(keys [][]int) *models.Dataset {
	qi := make([]int, len(keys[0]))
	for i := range qi {
		qi[i] = i
	}
	return models.NewDataset(keys, nil, qi, nil)
}

func TestEstimatorClassStatistics(t *testing.T) {
	ds := datasetFromKeys([][]int{
		{1, 1}, {1, 1}, {1, 1},
		{2, 2}, {2, 2},
		{3, 3},
	})
	e := NewEstimator(ds, 0.1, nil)

	assert.Equal(t, 1, e.MinimalClassSize())
	assert.Equal(t, 3, e.MaximalClassSize())
	assert.InDelta(t, 1.0, e.HighestIndividualRisk(), 1e-12)
	assert.InDelta(t, 1.0, e.HighestRiskAffected(), 1e-12)
	assert.InDelta(t, 1.0/6.0, e.SampleUniquesRisk(), 1e-12)
	// 3 classes over 6 records
	assert.InDelta(t, 0.5, e.EquivalenceClassRisk(), 1e-12)
}

func TestEstimatorDefaultsBadSamplingFraction(t *testing.T) {
	ds := datasetFromKeys([][]int{{1}, {2}})
	e := NewEstimator(ds, 0, nil)
	assert.Equal(t, 0.1, e.samplingFraction)

	e = NewEstimator(ds, 1.5, nil)
	assert.Equal(t, 0.1, e.samplingFraction)
}

func TestPopulationUniquesRequiresSampleUniques(t *testing.T) {
	ds := datasetFromKeys([][]int{{1}, {1}, {2}, {2}})
	e := NewEstimator(ds, 0.1, nil)

	_, err := e.PopulationUniquesRisk()
	require.Error(t, err)
	assert.True(t, errors.IsPreconditionError(err))
	assert.ErrorIs(t, err, errors.ErrNoSampleUniques)
}

func TestPopulationUniquesZayatzWhenNoDoubletons(t *testing.T) {
	// Uniques but no classes of size two: the selection rule goes straight
	// to the Zayatz model
	ds := datasetFromKeys([][]int{
		{1}, {2}, {3},
		{4}, {4}, {4},
	})
	e := NewEstimator(ds, 0.5, nil)

	result, err := e.PopulationUniquesRisk()
	require.NoError(t, err)
	if !math.IsNaN(result) {
		assert.GreaterOrEqual(t, result, 0.0)
		assert.LessOrEqual(t, result, 1.0)
	}
}

func TestPopulationUniquesChainReturnsFiniteOrNaN(t *testing.T) {
	keys := make([][]int, 0, 40)
	for i := 0; i < 12; i++ {
		keys = append(keys, []int{i})
	}
	for i := 0; i < 8; i++ {
		keys = append(keys, []int{100 + i}, []int{100 + i})
	}
	for i := 0; i < 4; i++ {
		keys = append(keys, []int{200 + i}, []int{200 + i}, []int{200 + i})
	}
	ds := datasetFromKeys(keys)

	for _, pi := range []float64{0.05, 0.5} {
		e := NewEstimator(ds, pi, nil)
		result, err := e.PopulationUniquesRisk()
		require.NoError(t, err)
		if !math.IsNaN(result) {
			assert.GreaterOrEqual(t, result, 0.0)
			assert.LessOrEqual(t, result, 1.0)
		}
	}
}

func TestStackelbergPayout(t *testing.T) {
	m := NewStackelbergModel(1200, 4)

	// No attacker success: the publisher keeps the information-scaled benefit
	assert.InDelta(t, 1200, m.ExpectedPublisherPayout(0, 0), 1e-12)
	assert.InDelta(t, 600, m.ExpectedPublisherPayout(0.5, 0), 1e-12)

	// Rational attack discounts the payout
	assert.InDelta(t, 1199.96, m.ExpectedPublisherPayout(0, 0.01), 1e-9)

	// Unprofitable attack leaves the payout untouched
	unattractive := NewStackelbergModel(1200, 1500)
	assert.InDelta(t, 1200, unattractive.ExpectedPublisherPayout(0, 1), 1e-12)
}

func TestStackelbergPayoutMonotoneInLoss(t *testing.T) {
	m := NewStackelbergModel(1200, 4)
	previous := math.Inf(1)
	for _, loss := range []float64{0, 0.25, 0.5, 0.75, 1} {
		payout := m.ExpectedPublisherPayout(loss, 0.1)
		assert.Less(t, payout, previous)
		previous = payout
	}
}
